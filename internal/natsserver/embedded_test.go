package natsserver

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/contentbuddy/contentbuddy/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartDisabled(t *testing.T) {
	cfg := config.Default().Bus
	cfg.Embedded = false
	srv, err := Start(cfg, discardLogger())
	if err != nil || srv != nil {
		t.Fatalf("expected no server, got %v %v", srv, err)
	}
	if srv.ClientURL() != "" || srv.Connections() != 0 {
		t.Fatalf("nil server should report nothing")
	}
	srv.Shutdown()
}

func TestStartEnforcesToken(t *testing.T) {
	cfg := config.Default().Bus
	cfg.Embedded = true
	cfg.Port = -1
	cfg.Token = "s3cret"
	srv, err := Start(cfg, discardLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Shutdown()

	if _, err := nats.Connect(srv.ClientURL(), nats.Timeout(time.Second)); err == nil {
		t.Fatalf("expected anonymous connection to be rejected")
	}
	conn, err := nats.Connect(srv.ClientURL(), nats.Token("s3cret"), nats.Timeout(time.Second))
	if err != nil {
		t.Fatalf("connect with token: %v", err)
	}
	defer conn.Close()
	if srv.Connections() != 1 {
		t.Fatalf("expected one client, got %d", srv.Connections())
	}
}
