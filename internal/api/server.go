// Package api serves the ContentBuddy HTTP interface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/contentbuddy/contentbuddy/internal/dictionary"
	"github.com/contentbuddy/contentbuddy/internal/export"
	"github.com/contentbuddy/contentbuddy/internal/imagegen"
	"github.com/contentbuddy/contentbuddy/internal/llm"
	"github.com/contentbuddy/contentbuddy/internal/protocol"
	"github.com/contentbuddy/contentbuddy/internal/tts"
)

const defaultMaxBodyBytes = 64 << 20

// Backends are the vendor integrations behind the routes.
type Backends struct {
	Director   *llm.Director
	Painter    imagegen.Painter
	Synth      tts.Synthesizer
	Dictionary dictionary.Store
	Export     *export.Service
	Events     export.Emitter
}

// Options tune the server.
type Options struct {
	Logger *slog.Logger
	// MaxUploadBytes bounds multipart export uploads.
	MaxUploadBytes int64
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
	// Ready reports readiness for /readyz; nil means always ready.
	Ready func() bool
}

type Server struct {
	b        Backends
	opts     Options
	log      *slog.Logger
	validate *validator.Validate
	metrics  *instruments
	router   *mux.Router
}

func New(b Backends, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 512 << 20
	}
	metrics, err := newInstruments(b.Export)
	if err != nil {
		return nil, fmt.Errorf("create api instruments: %w", err)
	}
	s := &Server{
		b:        b,
		opts:     opts,
		log:      opts.Logger.With(slog.String("component", "api")),
		validate: newValidator(),
		metrics:  metrics,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.withSession, s.withLogging)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics).Methods(http.MethodGet)
	}

	a := r.PathPrefix("/api").Subrouter()
	a.HandleFunc("/slice", s.handleSlice).Methods(http.MethodPost)
	a.HandleFunc("/generate/prompt", s.handlePrompt).Methods(http.MethodPost)
	a.HandleFunc("/generate/image", s.handleImage).Methods(http.MethodPost)
	a.HandleFunc("/generate/audio", s.handleAudio).Methods(http.MethodPost)
	a.HandleFunc("/styles", s.handleStyles).Methods(http.MethodGet)

	a.HandleFunc("/dictionary/all", s.handleDictionaryAll).Methods(http.MethodGet)
	a.HandleFunc("/dictionary/check", s.handleDictionaryCheck).Methods(http.MethodPost)
	a.HandleFunc("/dictionary/save", s.handleDictionarySave).Methods(http.MethodPost)
	a.HandleFunc("/dictionary/generate-pinyin", s.handleGeneratePinyin).Methods(http.MethodPost)

	a.HandleFunc("/audio/merge", s.handleAudioMerge).Methods(http.MethodPost)
	a.HandleFunc("/audio/zip", s.handleAudioZip).Methods(http.MethodPost)

	a.HandleFunc("/export", s.handleExportSubmit).Methods(http.MethodPost)
	a.HandleFunc("/export", s.handleExportStatus).Methods(http.MethodGet)
	a.HandleFunc("/export/download", s.handleExportDownload).Methods(http.MethodGet)
	return r
}

type sessionKey struct{}

func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(SessionHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(SessionHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

func sessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging wraps each request in a server span and logs its outcome.
func (s *Server) withLogging(next http.Handler) http.Handler {
	tracer := otel.Tracer(meterName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("contentbuddy.session_id", sessionID(r.Context())),
			))
		defer span.End()
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
		level := slog.LevelDebug
		if rec.status >= 500 {
			level = slog.LevelWarn
		}
		s.log.Log(r.Context(), level, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("session_id", sessionID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Ready == nil || s.opts.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. It writes the 400
// reply itself and reports false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, defaultMaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", "invalid JSON body: "+err.Error())
		return false
	}
	return s.check(w, dst)
}

func (s *Server) check(w http.ResponseWriter, v any) bool {
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		msg := field + ": failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// upstreamError logs and replies 500 for a failed vendor call.
func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.log.Warn(strings.ToLower(msg), slog.String("session_id", sessionID(r.Context())), slogError(err))
	writeError(w, http.StatusInternalServerError, msg, err.Error())
}

// observe records metrics and publishes a generation event for one vendor call.
func (s *Server) observe(ctx context.Context, kind, segmentID string, start time.Time, err error) {
	elapsed := time.Since(start)
	outcome := protocol.OutcomeSucceeded
	evt := protocol.GenerationEvent{
		SessionID:  sessionID(ctx),
		SegmentID:  segmentID,
		Kind:       kind,
		DurationMS: elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		outcome = protocol.OutcomeFailed
		evt.Error = err.Error()
	}
	evt.Outcome = outcome
	s.metrics.record(ctx, kind, outcome, elapsed)
	if s.b.Events != nil {
		s.b.Events.Emit(protocol.GenerateSubject(kind, outcome), evt)
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
