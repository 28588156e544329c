package audio

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// ZipClips packages clips as NN_<id>.<ext>, numbering by position in the
// list. Clips without audio are skipped but keep their number.
func ZipClips(clips []Clip) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, clip := range clips {
		if clip.URL == "" {
			continue
		}
		data, mime, err := DecodeDataURI(clip.URL)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", clip.ID, err)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   fmt.Sprintf("%02d_%s.%s", i+1, clip.ID, Extension(mime)),
			Method: zip.Deflate,
		})
		if err != nil {
			return nil, fmt.Errorf("create zip entry: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write zip entry: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}
