package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/contentbuddy/contentbuddy/internal/audio"
	"github.com/contentbuddy/contentbuddy/internal/llm"
	"github.com/contentbuddy/contentbuddy/internal/project"
	"github.com/contentbuddy/contentbuddy/internal/protocol"
	"github.com/contentbuddy/contentbuddy/internal/segment"
	"github.com/contentbuddy/contentbuddy/internal/tts"
)

var errBackendMissing = errors.New("backend not configured")

func (s *Server) handleSlice(w http.ResponseWriter, r *http.Request) {
	var req SliceRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.b.Director == nil {
		s.upstreamError(w, r, "Failed to slice script", errBackendMissing)
		return
	}
	start := time.Now()
	texts, err := s.b.Director.Slice(r.Context(), req.Script)
	s.observe(r.Context(), protocol.KindSlice, "", start, err)
	if err != nil {
		s.upstreamError(w, r, "Failed to slice script", err)
		return
	}
	writeJSON(w, http.StatusOK, SliceResponse{Segments: segment.FromTexts(texts)})
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Style == "" {
		req.Style = llm.DefaultStyle
	}
	if s.b.Director == nil {
		s.upstreamError(w, r, "Failed to generate prompt", errBackendMissing)
		return
	}
	start := time.Now()
	prompt, err := s.b.Director.ImagePrompt(r.Context(), req.Text, req.Style)
	s.observe(r.Context(), protocol.KindPrompt, req.SegmentID, start, err)
	if err != nil {
		s.upstreamError(w, r, "Failed to generate prompt", err)
		return
	}
	writeJSON(w, http.StatusOK, PromptResponse{SegmentID: req.SegmentID, Prompt: prompt})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	var req ImageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.b.Painter == nil {
		s.upstreamError(w, r, "Failed to generate image", errBackendMissing)
		return
	}
	start := time.Now()
	img, err := s.b.Painter.Paint(r.Context(), req.Prompt)
	s.observe(r.Context(), protocol.KindImage, req.SegmentID, start, err)
	if err != nil {
		s.upstreamError(w, r, "Failed to generate image", err)
		return
	}
	writeJSON(w, http.StatusOK, ImageResponse{SegmentID: req.SegmentID, ImageURL: img.DataURI()})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	var req AudioRequest
	if !s.decode(w, r, &req) {
		return
	}
	speed := project.DefaultVoiceSpeed
	if req.Speed != nil {
		speed = *req.Speed
	}
	emotion := req.Emotion
	if emotion == "" {
		emotion = project.DefaultVoiceEmotion
	}
	if s.b.Synth == nil {
		s.upstreamError(w, r, "Failed to generate audio", errBackendMissing)
		return
	}
	start := time.Now()
	res, err := s.b.Synth.Synthesize(r.Context(), tts.SynthRequest{
		Text:           req.Text,
		VoiceID:        req.VoiceID,
		Pronunciations: req.PronunciationDict,
		Speed:          speed,
		Emotion:        emotion,
	})
	s.observe(r.Context(), protocol.KindAudio, req.SegmentID, start, err)
	if err != nil {
		s.upstreamError(w, r, "Failed to generate audio", err)
		return
	}
	writeJSON(w, http.StatusOK, AudioResponse{
		SegmentID: req.SegmentID,
		AudioURL:  audio.EncodeDataURI(res.MIMEType, res.Audio),
		Duration:  res.Duration,
	})
}

func (s *Server) handleStyles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StylesResponse{Styles: llm.Styles()})
}
