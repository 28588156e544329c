// Package tts synthesizes narration for a segment.
package tts

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/contentbuddy/contentbuddy/internal/config"
	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
)

var ErrNoAudio = errors.New("no audio in response")

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	Text           string
	VoiceID        string
	Pronunciations []pronunciation.Item
	Speed          float64
	Emotion        string
}

// SynthResult is a complete encoded clip.
type SynthResult struct {
	Audio    []byte
	MIMEType string
	// Duration in seconds.
	Duration float64
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (SynthResult, error)
}

// NewSynthesizer selects a backend from config.
func NewSynthesizer(cfg config.TTSConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "minimax":
		return NewMiniMaxSynth(MiniMaxOptions{
			Endpoint:   cfg.Endpoint,
			APIKey:     cfg.APIKey,
			GroupID:    cfg.GroupID,
			Model:      cfg.Model,
			SampleRate: cfg.SampleRate,
			Bitrate:    cfg.Bitrate,
			Format:     cfg.Format,
			MaxRetries: cfg.MaxRetries,
			Timeout:    time.Duration(cfg.TimeoutMS) * time.Millisecond,
		})
	case "exec":
		return NewExecSynth(cfg.Command)
	case "mock", "":
		return NewMockSynth(cfg.SampleRate), nil
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}

// estimateDuration approximates narration length at five characters per second.
func estimateDuration(text string) float64 {
	return float64(utf8.RuneCountInString(text)) / 5
}

func mimeForFormat(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/pcm"
	case "flac":
		return "audio/flac"
	default:
		return "audio/mp3"
	}
}
