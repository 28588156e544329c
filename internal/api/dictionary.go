package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/contentbuddy/contentbuddy/internal/dictionary"
	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
	"github.com/contentbuddy/contentbuddy/internal/protocol"
)

func (s *Server) handleDictionaryAll(w http.ResponseWriter, r *http.Request) {
	if s.b.Dictionary == nil {
		s.upstreamError(w, r, "Failed to fetch dictionary", errBackendMissing)
		return
	}
	items, err := s.b.Dictionary.All(r.Context())
	if err != nil {
		s.upstreamError(w, r, "Failed to fetch dictionary", err)
		return
	}
	if items == nil {
		items = []pronunciation.Item{}
	}
	writeJSON(w, http.StatusOK, DictionaryResponse{PronunciationDict: items})
}

func (s *Server) handleDictionaryCheck(w http.ResponseWriter, r *http.Request) {
	var req WordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.b.Dictionary == nil {
		s.upstreamError(w, r, "Failed to check dictionary", errBackendMissing)
		return
	}
	entry, ok, err := s.b.Dictionary.Check(r.Context(), strings.TrimSpace(req.Word))
	if err != nil {
		s.upstreamError(w, r, "Failed to check dictionary", err)
		return
	}
	resp := CheckResponse{Exists: ok}
	if ok {
		resp.Entry = &entry
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDictionarySave(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.b.Dictionary == nil {
		s.upstreamError(w, r, "Failed to save to dictionary", errBackendMissing)
		return
	}
	var (
		words []string
		err   error
	)
	if len(req.Entries) > 0 {
		entries := make([]dictionary.Entry, 0, len(req.Entries))
		for _, e := range req.Entries {
			entries = append(entries, dictionary.Entry{Word: e.Word, Pinyin: e.Pinyin})
			words = append(words, strings.TrimSpace(e.Word))
		}
		err = s.b.Dictionary.SaveBatch(r.Context(), entries)
	} else {
		entry := dictionary.Entry{Word: req.Word, Pinyin: req.Pinyin}
		if req.RowIndex != nil {
			entry.RowIndex = *req.RowIndex
		}
		words = []string{strings.TrimSpace(req.Word)}
		err = s.b.Dictionary.Save(r.Context(), entry)
	}
	if errors.Is(err, dictionary.ErrEmptyWord) || errors.Is(err, dictionary.ErrEmptyPinyin) {
		writeError(w, http.StatusBadRequest, "Validation error", err.Error())
		return
	}
	if err != nil {
		s.upstreamError(w, r, "Failed to save to dictionary", err)
		return
	}
	if s.b.Events != nil {
		s.b.Events.Emit(protocol.SubjectDictionarySaved, protocol.DictionarySaved{
			SessionID: sessionID(r.Context()),
			Words:     words,
			Timestamp: time.Now().UTC(),
		})
	}
	writeJSON(w, http.StatusOK, SaveResponse{Success: true})
}

func (s *Server) handleGeneratePinyin(w http.ResponseWriter, r *http.Request) {
	var req WordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.b.Director == nil {
		s.upstreamError(w, r, "Failed to generate pinyin", errBackendMissing)
		return
	}
	start := time.Now()
	pinyin, err := s.b.Director.Pinyin(r.Context(), req.Word)
	s.observe(r.Context(), protocol.KindPinyin, "", start, err)
	if err != nil {
		s.upstreamError(w, r, "Failed to generate pinyin", err)
		return
	}
	writeJSON(w, http.StatusOK, PinyinResponse{Pinyin: pinyin})
}
