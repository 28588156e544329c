// Package natsserver runs an in-process NATS server for single-binary
// deployments where no broker is configured.
package natsserver

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/contentbuddy/contentbuddy/internal/config"
)

const defaultReadyTimeout = 5 * time.Second

type EmbeddedServer struct {
	ns  *server.Server
	log *slog.Logger
}

// Start launches the server on loopback when the bus is configured as
// embedded and returns nil otherwise. Port -1 picks a free port. The bus
// credentials are enforced so clients dial it with the same config they
// would use against an external broker.
func Start(cfg config.BusConfig, log *slog.Logger) (*EmbeddedServer, error) {
	if !cfg.Embedded {
		return nil, nil
	}

	ns, err := server.NewServer(serverOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}
	go ns.Start()

	wait := defaultReadyTimeout
	if cfg.ConnectTimeout > 0 {
		wait = time.Duration(cfg.ConnectTimeout) * time.Millisecond
	}
	if !ns.ReadyForConnections(wait) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready after %s", wait)
	}

	log.Info("embedded nats server started",
		slog.String("url", ns.ClientURL()),
		slog.Bool("auth", cfg.Token != "" || cfg.Username != ""))
	return &EmbeddedServer{ns: ns, log: log}, nil
}

func serverOptions(cfg config.BusConfig) *server.Options {
	opts := &server.Options{
		ServerName: "contentbuddy",
		Host:       "127.0.0.1",
		Port:       cfg.Port,
		NoLog:      true,
		NoSigs:     true,
	}
	switch {
	case cfg.Token != "":
		opts.Authorization = cfg.Token
	case cfg.Username != "":
		opts.Username = cfg.Username
		opts.Password = cfg.Password
	}
	return opts
}

// ClientURL is the nats:// address clients should dial.
func (e *EmbeddedServer) ClientURL() string {
	if e == nil || e.ns == nil {
		return ""
	}
	return e.ns.ClientURL()
}

// Connections reports the number of connected clients.
func (e *EmbeddedServer) Connections() int {
	if e == nil || e.ns == nil {
		return 0
	}
	return e.ns.NumClients()
}

func (e *EmbeddedServer) Shutdown() {
	if e == nil || e.ns == nil {
		return
	}
	e.log.Info("shutting down embedded nats server")
	e.ns.Shutdown()
	e.ns.WaitForShutdown()
}
