package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/contentbuddy/contentbuddy/internal/export"
)

type exportForm struct {
	Script   string                `validate:"required"`
	Segments []export.SegmentAsset `validate:"min=1,dive"`
}

func (s *Server) handleExportSubmit(w http.ResponseWriter, r *http.Request) {
	if s.b.Export == nil {
		s.upstreamError(w, r, "Failed to export video", errBackendMissing)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := exportForm{Script: r.FormValue("script")}
	if raw := r.FormValue("segments"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &form.Segments); err != nil {
			writeError(w, http.StatusBadRequest, "Validation error", "invalid segments JSON: "+err.Error())
			return
		}
	}
	if !s.check(w, form) {
		return
	}
	skip := false
	if raw := r.FormValue("skipSubtitle"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Validation error", fmt.Sprintf("skipSubtitle: %v", err))
			return
		}
		skip = v
	}
	file, header, err := r.FormFile("avatarVideo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", "avatarVideo: file required")
		return
	}
	defer file.Close()

	job, err := s.b.Export.Submit(r.Context(), export.Request{
		SessionID:    sessionID(r.Context()),
		Script:       form.Script,
		Segments:     form.Segments,
		AvatarName:   header.Filename,
		Avatar:       file,
		SkipSubtitle: skip,
	})
	if err != nil {
		s.upstreamError(w, r, "Failed to export video", err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{JobID: job.ID, Status: job.Status, FolderPath: job.FolderPath})
}

func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	if s.b.Export == nil {
		s.upstreamError(w, r, "Failed to fetch export status", errBackendMissing)
		return
	}
	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "Validation error", "jobId: required")
		return
	}
	job, err := s.b.Export.Status(r.Context(), jobID)
	if errors.Is(err, export.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "Job not found", jobID)
		return
	}
	if err != nil {
		s.upstreamError(w, r, "Failed to fetch export status", err)
		return
	}
	writeJSON(w, http.StatusOK, ExportStatusResponse{
		Status:         job.Status,
		OutputFilePath: job.OutputFilePath,
		Error:          job.Error,
		Message:        job.Message,
	})
}

func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	tempDir := os.TempDir()
	if s.b.Export != nil {
		tempDir = s.b.Export.TempDir()
	}
	path, err := export.ResolveDownload(tempDir, r.URL.Query().Get("path"))
	switch {
	case errors.Is(err, export.ErrMissingPath):
		writeError(w, http.StatusBadRequest, "Missing path parameter", "")
		return
	case errors.Is(err, export.ErrPathForbidden):
		writeError(w, http.StatusForbidden, "Invalid file path", "")
		return
	case errors.Is(err, export.ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found", "")
		return
	case err != nil:
		s.upstreamError(w, r, "Failed to download file", err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found", "")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.upstreamError(w, r, "Failed to download file", err)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filepath.Base(path)))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}
