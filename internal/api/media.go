package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/contentbuddy/contentbuddy/internal/audio"
)

func (s *Server) handleAudioMerge(w http.ResponseWriter, r *http.Request) {
	var req ClipsRequest
	if !s.decode(w, r, &req) {
		return
	}
	merged, err := audio.MergeWAV(req.Segments)
	if err != nil {
		if errors.Is(err, audio.ErrNotWAV) || errors.Is(err, audio.ErrFormatMismatch) || errors.Is(err, audio.ErrInvalidDataURI) {
			writeError(w, http.StatusBadRequest, "Validation error", err.Error())
			return
		}
		s.upstreamError(w, r, "Failed to merge audio", err)
		return
	}
	writeJSON(w, http.StatusOK, MergeResponse{AudioURL: merged.DataURI(), Duration: merged.Duration})
}

func (s *Server) handleAudioZip(w http.ResponseWriter, r *http.Request) {
	var req ClipsRequest
	if !s.decode(w, r, &req) {
		return
	}
	data, err := audio.ZipClips(req.Segments)
	if err != nil {
		if errors.Is(err, audio.ErrInvalidDataURI) {
			writeError(w, http.StatusBadRequest, "Validation error", err.Error())
			return
		}
		s.upstreamError(w, r, "Failed to create zip", err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="audio_segments.zip"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
