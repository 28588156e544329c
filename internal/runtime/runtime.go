// Package runtime assembles the ContentBuddy service from config and runs it
// until its context ends.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/contentbuddy/contentbuddy/internal/api"
	"github.com/contentbuddy/contentbuddy/internal/bus"
	"github.com/contentbuddy/contentbuddy/internal/config"
	"github.com/contentbuddy/contentbuddy/internal/dictionary"
	"github.com/contentbuddy/contentbuddy/internal/eventstore"
	"github.com/contentbuddy/contentbuddy/internal/export"
	"github.com/contentbuddy/contentbuddy/internal/imagegen"
	"github.com/contentbuddy/contentbuddy/internal/llm"
	"github.com/contentbuddy/contentbuddy/internal/natsserver"
	"github.com/contentbuddy/contentbuddy/internal/tts"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	telemetry telemetry
	nats      *natsserver.EmbeddedServer
	bus       *bus.Client
	events    *eventstore.Store
	recorder  *eventstore.Recorder
	dict      dictionary.Store
	exports   *export.Service

	httpServer    *http.Server
	metricsServer *http.Server
	addr          atomic.Value
	ready         atomic.Bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Addr is the address the API listens on once Start has bound it.
func (r *Runtime) Addr() string {
	addr, _ := r.addr.Load().(string)
	return addr
}

// Ready reports whether the API is serving and its dependencies are healthy.
func (r *Runtime) Ready() bool {
	if !r.ready.Load() {
		return false
	}
	if r.cfg.Bus.Enabled && !r.bus.Healthy() {
		return false
	}
	return r.exports == nil || r.exports.Healthy()
}

// Start builds every component, serves the API and blocks until ctx is done.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tel, err := setupTelemetry(ctx, r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	r.telemetry = tel
	defer r.shutdown()

	handler, err := r.build(ctx)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port))
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	r.addr.Store(ln.Addr().String())
	r.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(r.cfg.HTTP.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(r.cfg.HTTP.WriteTimeoutMS) * time.Millisecond,
	}
	r.serve("http", r.httpServer, ln)

	if tel.metrics != nil && r.cfg.Telemetry.PrometheusBind != "" {
		mln, err := net.Listen("tcp", r.cfg.Telemetry.PrometheusBind)
		if err != nil {
			r.logger.Warn("metrics listener unavailable", slog.String("bind", r.cfg.Telemetry.PrometheusBind), slogError(err))
		} else {
			mux := http.NewServeMux()
			mux.Handle("/metrics", tel.metrics)
			r.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			r.serve("metrics", r.metricsServer, mln)
		}
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", r.Addr()), slog.String("environment", r.cfg.Environment))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	return nil
}

func (r *Runtime) serve(name string, srv *http.Server, ln net.Listener) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error(name+" server failed", slogError(err))
		}
	}()
}

// build wires the bus, journal, vendor backends and export service into the
// API handler.
func (r *Runtime) build(ctx context.Context) (http.Handler, error) {
	cfg := r.cfg

	if cfg.Bus.Enabled {
		busCfg := cfg.Bus
		if busCfg.Embedded {
			ns, err := natsserver.Start(busCfg, r.logger)
			if err != nil {
				return nil, err
			}
			r.nats = ns
			busCfg.Servers = []string{ns.ClientURL()}
		}
		client, err := bus.Connect(ctx, busCfg, r.logger.With(slog.String("component", "bus")))
		if err != nil {
			return nil, err
		}
		r.bus = client
	}

	events, err := eventstore.Open(ctx, cfg.EventStore, r.logger.With(slog.String("component", "eventstore")))
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	r.events = events
	r.recorder = eventstore.NewRecorder(events, r.bus, r.logger)
	if err := r.recorder.Start(); err != nil {
		return nil, fmt.Errorf("start event recorder: %w", err)
	}

	gen, err := llm.NewGenerator(cfg.LLM)
	if err != nil {
		return nil, err
	}
	painter, err := imagegen.New(ctx, cfg.Image)
	if err != nil {
		return nil, err
	}
	synth, err := tts.NewSynthesizer(cfg.TTS)
	if err != nil {
		return nil, err
	}
	dict, err := dictionary.Open(ctx, cfg.Dictionary, r.logger.With(slog.String("component", "dictionary")))
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	r.dict = dict

	avm := export.NewAVMClient(cfg.Export.ServiceURL, time.Duration(cfg.Export.TimeoutMS)*time.Millisecond)
	r.exports = export.NewService(ctx, cfg.Export, avm, r.recorder, r.logger)

	server, err := api.New(api.Backends{
		Director:   llm.NewDirector(gen, cfg.LLM),
		Painter:    painter,
		Synth:      synth,
		Dictionary: dict,
		Export:     r.exports,
		Events:     r.recorder,
	}, api.Options{
		Logger:         r.logger,
		MaxUploadBytes: int64(cfg.HTTP.MaxUploadMB) << 20,
		Metrics:        r.telemetry.metrics,
		Ready:          r.Ready,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("backends configured",
		slog.String("llm", cfg.LLM.Mode),
		slog.String("image", cfg.Image.Mode),
		slog.String("tts", cfg.TTS.Mode),
		slog.String("dictionary", cfg.Dictionary.Backend),
		slog.Bool("bus", r.bus != nil),
		slog.Bool("journal", events.Enabled()))
	return server.Handler(), nil
}

// shutdown stops components in reverse start order. Components that were
// never started are skipped.
func (r *Runtime) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range []*http.Server{r.httpServer, r.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slogError(err))
		}
	}
	r.wg.Wait()

	if r.exports != nil {
		r.exports.Close()
	}
	if r.dict != nil {
		if err := r.dict.Close(); err != nil {
			r.logger.Warn("dictionary close error", slogError(err))
		}
	}
	if r.recorder != nil {
		r.recorder.Close()
	}
	if r.events != nil {
		if err := r.events.Close(); err != nil {
			r.logger.Warn("event store close error", slogError(err))
		}
	}
	r.bus.Close()
	r.nats.Shutdown()

	if r.telemetry.shutdown != nil {
		if err := r.telemetry.shutdown(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slogError(err))
		}
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
