// Package dictionary stores the shared pronunciation dictionary that every
// TTS request merges with segment-local corrections.
package dictionary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/contentbuddy/contentbuddy/internal/config"
	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
)

var (
	ErrEmptyWord   = errors.New("word is required")
	ErrEmptyPinyin = errors.New("pinyin is required")
)

// Entry is one dictionary row. RowIndex is the backend's 1-based row number
// and is zero for entries not yet stored.
type Entry struct {
	Word     string `json:"word"`
	Pinyin   string `json:"pinyin"`
	RowIndex int    `json:"rowIndex,omitempty"`
}

// Store is a pronunciation dictionary backend.
type Store interface {
	// All returns every complete entry in row order.
	All(ctx context.Context) ([]pronunciation.Item, error)
	// Check looks a word up by exact match.
	Check(ctx context.Context, word string) (Entry, bool, error)
	// Save updates the row at RowIndex when set, otherwise appends.
	Save(ctx context.Context, entry Entry) error
	// SaveBatch upserts entries by word.
	SaveBatch(ctx context.Context, entries []Entry) error
	Close() error
}

// Normalize trims an entry and checks the required fields.
func Normalize(e Entry) (Entry, error) {
	e.Word = strings.TrimSpace(e.Word)
	e.Pinyin = strings.TrimSpace(e.Pinyin)
	if e.Word == "" {
		return e, ErrEmptyWord
	}
	if e.Pinyin == "" {
		return e, ErrEmptyPinyin
	}
	if e.RowIndex < 0 {
		e.RowIndex = 0
	}
	return e, nil
}

func normalizeAll(entries []Entry) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	for i, e := range entries {
		n, err := Normalize(e)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Open builds the configured backend, wrapped in a read cache when a TTL is set.
func Open(ctx context.Context, cfg config.DictionaryConfig, log *slog.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case "sheets":
		creds := []byte(cfg.CredentialsJSON)
		if len(creds) == 0 && cfg.CredentialsFile != "" {
			creds, err = os.ReadFile(cfg.CredentialsFile)
			if err != nil {
				return nil, fmt.Errorf("read sheets credentials: %w", err)
			}
		}
		store, err = NewSheetsStore(ctx, SheetsOptions{
			SpreadsheetID:   cfg.SpreadsheetID,
			SheetName:       cfg.SheetName,
			CredentialsJSON: creds,
			Endpoint:        cfg.Endpoint,
		})
	case "sqlite":
		store, err = OpenSQLite(ctx, cfg.Path)
	case "memory", "":
		store = NewMemoryStore(nil)
	default:
		return nil, fmt.Errorf("unsupported dictionary backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheTTLMS > 0 {
		store = NewCached(store, cfg.CacheSize, time.Duration(cfg.CacheTTLMS)*time.Millisecond)
	}
	if log != nil {
		log.Info("dictionary ready", slog.String("backend", cfg.Backend), slog.Int("cache_ttl_ms", cfg.CacheTTLMS))
	}
	return store, nil
}
