// Package export hands finished projects to the AutoVideoMaker service and
// tracks the resulting jobs.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/contentbuddy/contentbuddy/internal/audio"
)

// FolderPrefix names every export directory under the temp dir.
const FolderPrefix = "cb-export-"

var ErrNoSegments = errors.New("export needs at least one segment")

// SegmentAsset is one segment's finished media as sent by the client.
type SegmentAsset struct {
	ID       string `json:"id" validate:"required"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
	AudioURL string `json:"audioUrl"`
}

// Request is everything the video assembler needs.
type Request struct {
	SessionID    string
	Script       string
	Segments     []SegmentAsset
	AvatarName   string
	Avatar       io.Reader
	SkipSubtitle bool
}

type manifestEntry struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
	Audio string `json:"audio,omitempty"`
}

// Folder is a written export directory.
type Folder struct {
	Path       string
	AvatarPath string
}

// WriteFolder lays out the request under tempDir as
//
//	cb-export-<random>/
//	  avatar.mp4
//	  script.txt
//	  segments.json
//	  images/NN_<id>.<ext>
//	  audio/NN_<id>.<ext>
func WriteFolder(tempDir string, req Request) (Folder, error) {
	if len(req.Segments) == 0 {
		return Folder{}, ErrNoSegments
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return Folder{}, fmt.Errorf("create temp dir: %w", err)
	}
	dir, err := os.MkdirTemp(tempDir, FolderPrefix+"*")
	if err != nil {
		return Folder{}, fmt.Errorf("create export folder: %w", err)
	}
	folder := Folder{Path: dir}
	cleanup := func(err error) (Folder, error) {
		_ = os.RemoveAll(dir)
		return Folder{}, err
	}

	for _, sub := range []string{"images", "audio"} {
		if err := os.Mkdir(filepath.Join(dir, sub), 0o755); err != nil {
			return cleanup(fmt.Errorf("create %s dir: %w", sub, err))
		}
	}

	if req.Avatar != nil {
		ext := strings.ToLower(filepath.Ext(req.AvatarName))
		if ext == "" {
			ext = ".mp4"
		}
		folder.AvatarPath = filepath.Join(dir, "avatar"+ext)
		f, err := os.Create(folder.AvatarPath)
		if err != nil {
			return cleanup(fmt.Errorf("create avatar file: %w", err))
		}
		_, err = io.Copy(f, req.Avatar)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return cleanup(fmt.Errorf("write avatar file: %w", err))
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "script.txt"), []byte(req.Script), 0o644); err != nil {
		return cleanup(fmt.Errorf("write script: %w", err))
	}

	manifest := make([]manifestEntry, 0, len(req.Segments))
	for i, seg := range req.Segments {
		entry := manifestEntry{Index: i + 1, ID: seg.ID, Text: seg.Text}
		if seg.ImageURL != "" {
			name, err := writeDataURI(dir, "images", i+1, seg.ID, seg.ImageURL, imageExt)
			if err != nil {
				return cleanup(fmt.Errorf("segment %s image: %w", seg.ID, err))
			}
			entry.Image = name
		}
		if seg.AudioURL != "" {
			name, err := writeDataURI(dir, "audio", i+1, seg.ID, seg.AudioURL, audio.Extension)
			if err != nil {
				return cleanup(fmt.Errorf("segment %s audio: %w", seg.ID, err))
			}
			entry.Audio = name
		}
		manifest = append(manifest, entry)
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return cleanup(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "segments.json"), data, 0o644); err != nil {
		return cleanup(fmt.Errorf("write manifest: %w", err))
	}
	return folder, nil
}

func writeDataURI(dir, sub string, index int, id, uri string, ext func(string) string) (string, error) {
	data, mime, err := audio.DecodeDataURI(uri)
	if err != nil {
		return "", err
	}
	name := filepath.Join(sub, fmt.Sprintf("%02d_%s.%s", index, safeName(id), ext(mime)))
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	return filepath.ToSlash(name), nil
}

func imageExt(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

// safeName keeps segment ids from escaping the folder.
func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, id)
}
