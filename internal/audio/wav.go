package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrNoClips        = errors.New("no clips to merge")
	ErrNotWAV         = errors.New("clip is not a wav file")
	ErrFormatMismatch = errors.New("clips have different formats")
)

// Clip is one segment's narration.
type Clip struct {
	ID  string `json:"id" validate:"required"`
	URL string `json:"audioUrl"`
}

// Merged is the concatenated narration.
type Merged struct {
	WAV []byte
	// Duration in seconds.
	Duration float64
}

// DataURI encodes the merged narration.
func (m Merged) DataURI() string { return EncodeDataURI("audio/wav", m.WAV) }

// WAVDuration returns the length of a WAV file in seconds.
func WAVDuration(data []byte) (float64, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return 0, ErrNotWAV
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("read wav duration: %w", err)
	}
	return d.Seconds(), nil
}

// MergeWAV concatenates WAV clips in order into one 16-bit PCM file using the
// first clip's sample rate and channel count. Every clip must match them.
func MergeWAV(clips []Clip) (Merged, error) {
	if len(clips) == 0 {
		return Merged{}, ErrNoClips
	}
	var (
		format  *goaudio.Format
		samples []int
	)
	for _, clip := range clips {
		if clip.URL == "" {
			return Merged{}, fmt.Errorf("segment %s missing audio", clip.ID)
		}
		data, _, err := DecodeDataURI(clip.URL)
		if err != nil {
			return Merged{}, fmt.Errorf("segment %s: %w", clip.ID, err)
		}
		buf, err := decodePCM(data)
		if err != nil {
			return Merged{}, fmt.Errorf("segment %s: %w", clip.ID, err)
		}
		if format == nil {
			format = buf.Format
		} else if buf.Format.SampleRate != format.SampleRate || buf.Format.NumChannels != format.NumChannels {
			return Merged{}, fmt.Errorf("segment %s: %w", clip.ID, ErrFormatMismatch)
		}
		samples = append(samples, to16Bit(buf.Data, buf.SourceBitDepth)...)
	}

	out := &seekBuffer{}
	enc := wav.NewEncoder(out, format.SampleRate, 16, format.NumChannels, 1)
	if err := enc.Write(&goaudio.IntBuffer{Format: format, Data: samples, SourceBitDepth: 16}); err != nil {
		return Merged{}, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return Merged{}, fmt.Errorf("close wav encoder: %w", err)
	}
	frames := len(samples) / format.NumChannels
	return Merged{WAV: out.Bytes(), Duration: float64(frames) / float64(format.SampleRate)}, nil
}

func decodePCM(data []byte) (*goaudio.IntBuffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, ErrNotWAV
	}
	if buf.SourceBitDepth == 0 {
		buf.SourceBitDepth = int(dec.BitDepth)
	}
	return buf, nil
}

// to16Bit rescales interleaved samples to 16-bit and clamps them.
func to16Bit(in []int, bitDepth int) []int {
	out := make([]int, len(in))
	for i, v := range in {
		switch {
		case bitDepth == 8:
			// 8-bit WAV is unsigned.
			v = (v - 128) << 8
		case bitDepth > 16:
			v >>= bitDepth - 16
		}
		out[i] = clamp16(v)
	}
	return out
}

func clamp16(v int) int {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return v
}

// seekBuffer is an in-memory io.WriteSeeker for the WAV encoder, which
// rewrites the header sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	copy(s.buf[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position")
	}
	s.pos = int(abs)
	return abs, nil
}

func (s *seekBuffer) Bytes() []byte { return s.buf }
