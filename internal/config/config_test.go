package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Batch.ChunkSize != 3 {
		t.Fatalf("expected chunk size 3, got %d", cfg.Batch.ChunkSize)
	}
	if cfg.Export.PollIntervalMS != 3000 {
		t.Fatalf("expected 3s export polling, got %d", cfg.Export.PollIntervalMS)
	}
	if cfg.Export.JobRetentionMS != 3600000 {
		t.Fatalf("expected 1h export job retention, got %d", cfg.Export.JobRetentionMS)
	}
	if cfg.Playback.DefaultSegmentDuration != 5 || cfg.Playback.DriftThreshold != 0.5 || cfg.Playback.EndedDebounceMS != 500 {
		t.Fatalf("unexpected playback defaults %+v", cfg.Playback)
	}
	if cfg.LLM.SliceModel != "gpt-4o-mini" || cfg.LLM.PinyinModel != "gpt-4.1-mini" {
		t.Fatalf("unexpected model defaults %+v", cfg.LLM)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CB_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("CB_BUS_USERNAME", "alice")
	t.Setenv("CB_BUS_PASSWORD", "secret")
	t.Setenv("CB_BUS_TLS_INSECURE", "true")
	t.Setenv("CB_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("CB_EVENT_STORE_PATH", "./tmp.db")
	t.Setenv("CB_EVENT_STORE_RETENTION_MODE", "persistent")
	t.Setenv("CB_EVENT_STORE_RETENTION_DAYS", "7")
	t.Setenv("CB_EVENT_STORE_MAX_SESSIONS", "123")
	t.Setenv("CB_EVENT_STORE_VACUUM_ON_START", "true")
	t.Setenv("CB_BATCH_CHUNK_SIZE", "0")
	t.Setenv("CB_PLAYBACK_DRIFT_THRESHOLD", "0.25")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.EventStore.Path != "./tmp.db" {
		t.Fatalf("expected event store path override")
	}
	if cfg.EventStore.RetentionMode != "persistent" {
		t.Fatalf("expected event store retention mode override")
	}
	if cfg.EventStore.RetentionDays != 7 {
		t.Fatalf("expected event store retention days override")
	}
	if cfg.EventStore.MaxSessions != 123 {
		t.Fatalf("expected event store max sessions override")
	}
	if !cfg.EventStore.VacuumOnStart {
		t.Fatalf("expected event store vacuum flag override")
	}
	if cfg.Batch.ChunkSize != 0 {
		t.Fatalf("expected unbounded batch override, got %d", cfg.Batch.ChunkSize)
	}
	if cfg.Playback.DriftThreshold != 0.25 {
		t.Fatalf("expected drift threshold override, got %v", cfg.Playback.DriftThreshold)
	}
}

func TestVendorKeyFallbacks(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("MINIMAX_API_KEY", "mm-key")
	t.Setenv("MINIMAX_GROUP_ID", "group-1")
	t.Setenv("CB_LLM_MODE", "openai")
	t.Setenv("CB_IMAGE_MODE", "gemini")
	t.Setenv("CB_TTS_MODE", "minimax")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "sk-openai" || cfg.Image.APIKey != "gem-key" {
		t.Fatalf("expected vendor key fallbacks, got llm=%q image=%q", cfg.LLM.APIKey, cfg.Image.APIKey)
	}
	if cfg.TTS.APIKey != "mm-key" || cfg.TTS.GroupID != "group-1" {
		t.Fatalf("expected minimax credentials")
	}

	t.Setenv("CB_LLM_API_KEY", "sk-explicit")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "sk-explicit" {
		t.Fatalf("CB_ key must win over vendor fallback, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contentbuddy.yaml")
	data := `
service_name: cb-test
http:
  port: 9090
dictionary:
  backend: sqlite
  path: /tmp/dict.db
tts:
  mode: exec
  command: "say-json --voice 'Mei Jia'"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != "cb-test" || cfg.HTTP.Port != 9090 {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.Dictionary.Backend != "sqlite" || cfg.TTS.Mode != "exec" {
		t.Fatalf("unexpected backends %q %q", cfg.Dictionary.Backend, cfg.TTS.Mode)
	}
	if cfg.HTTP.Bind != "0.0.0.0" {
		t.Fatalf("defaults must survive partial yaml, bind=%q", cfg.HTTP.Bind)
	}
}

func TestValidateRejectsIncompleteVendors(t *testing.T) {
	cases := map[string]map[string]string{
		"openai without key":   {"CB_LLM_MODE": "openai", "OPENAI_API_KEY": "", "CB_LLM_API_KEY": ""},
		"unknown llm mode":     {"CB_LLM_MODE": "ollama"},
		"exec tts no command":  {"CB_TTS_MODE": "exec"},
		"sheets without id":    {"CB_DICTIONARY_BACKEND": "sheets", "GOOGLE_SHEET_ID": "", "CB_DICTIONARY_SPREADSHEET_ID": ""},
		"bad retention":        {"CB_EVENT_STORE_RETENTION_MODE": "forever"},
		"negative chunk size":  {"CB_BATCH_CHUNK_SIZE": "-1"},
		"unknown dictionary":   {"CB_DICTIONARY_BACKEND": "redis"},
		"minimax without keys": {"CB_TTS_MODE": "minimax", "MINIMAX_API_KEY": "", "CB_TTS_API_KEY": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Fatalf("expected validation error")
			} else if strings.TrimSpace(err.Error()) == "" {
				t.Fatalf("expected descriptive error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
