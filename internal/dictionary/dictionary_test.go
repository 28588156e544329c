package dictionary

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/contentbuddy/contentbuddy/internal/config"
	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if err := store.Save(ctx, Entry{Word: " 會計 ", Pinyin: " (kuai4)(ji4) "}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, Entry{Word: "還債", Pinyin: "(hai2)(zhai4)"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	entry, ok, err := store.Check(ctx, "還債")
	if err != nil || !ok {
		t.Fatalf("check: ok=%v err=%v", ok, err)
	}
	if entry.RowIndex == 0 {
		t.Fatalf("expected row index on stored entry")
	}
	entry.Pinyin = "(huan2)(zhai4)"
	if err := store.Save(ctx, entry); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := store.SaveBatch(ctx, []Entry{{Word: "會計", Pinyin: "(kuai4)(ji4)"}, {Word: "誰", Pinyin: "(shei2)"}}); err != nil {
		t.Fatalf("save batch: %v", err)
	}

	items, err := store.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	want := []pronunciation.Item{
		{Text: "會計", Pronunciation: "(kuai4)(ji4)"},
		{Text: "還債", Pronunciation: "(huan2)(zhai4)"},
		{Text: "誰", Pronunciation: "(shei2)"},
	}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %v", len(want), items)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("item %d: got %v want %v", i, items[i], want[i])
		}
	}

	if _, ok, err := store.Check(ctx, "不存在"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if err := store.Save(ctx, Entry{Word: "x"}); !errors.Is(err, ErrEmptyPinyin) {
		t.Fatalf("expected ErrEmptyPinyin, got %v", err)
	}
	if err := store.SaveBatch(ctx, []Entry{{Word: " ", Pinyin: "p"}}); !errors.Is(err, ErrEmptyWord) {
		t.Fatalf("expected ErrEmptyWord, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(nil))
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "dict.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

// fakeSheet serves the subset of the Sheets v4 values API the store uses.
type fakeSheet struct {
	mu   sync.Mutex
	rows [][]string
	hits map[string]int
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	var body struct {
		Range  string     `json:"range"`
		Values [][]string `json:"values"`
		Data   []struct {
			Range  string     `json:"range"`
			Values [][]string `json:"values"`
		} `json:"data"`
	}
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		f.hits["batchUpdate"]++
		for _, d := range body.Data {
			f.setRow(d.Range, d.Values[0])
		}
		_, _ = io.WriteString(w, `{}`)
	case strings.HasSuffix(path, ":append"):
		f.hits["append"]++
		f.rows = append(f.rows, body.Values...)
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPut:
		f.hits["update"]++
		if r.URL.Query().Get("valueInputOption") != "RAW" {
			http.Error(w, `{"error":{"code":400,"message":"RAW expected"}}`, http.StatusBadRequest)
			return
		}
		f.setRow(path[strings.LastIndex(path, "/")+1:], body.Values[0])
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodGet:
		f.hits["get"]++
		if !strings.HasSuffix(path, "'Sheet1'!A:B") {
			http.Error(w, `{"error":{"code":400,"message":"bad range"}}`, http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Sheet1!A1:B10", "majorDimension": "ROWS", "values": f.rows})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSheet) setRow(rng string, values []string) {
	// 'Sheet1'!A3:B3
	cell := rng[strings.Index(rng, "!A")+2:]
	cell = cell[:strings.Index(cell, ":")]
	var idx int
	for _, c := range cell {
		idx = idx*10 + int(c-'0')
	}
	for len(f.rows) < idx {
		f.rows = append(f.rows, nil)
	}
	f.rows[idx-1] = values
}

func TestSheetsStore(t *testing.T) {
	fake := &fakeSheet{rows: [][]string{{"詞語", "拼音"}}, hits: map[string]int{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store, err := NewSheetsStore(context.Background(), SheetsOptions{SpreadsheetID: "sheet-1", Endpoint: srv.URL + "/"})
	if err != nil {
		t.Fatalf("new sheets store: %v", err)
	}
	exerciseStore(t, store)

	entry, ok, err := store.Check(context.Background(), "會計")
	if err != nil || !ok || entry.RowIndex != 2 {
		t.Fatalf("expected first data row to be row 2, got %+v ok=%v err=%v", entry, ok, err)
	}
	if fake.hits["batchUpdate"] != 1 || fake.hits["update"] != 1 {
		t.Fatalf("unexpected request mix %v", fake.hits)
	}
}

func TestSheetsSkipsIncompleteRows(t *testing.T) {
	fake := &fakeSheet{rows: [][]string{{"word", "pinyin"}, {"孤"}, {"好", "(hao3)"}}, hits: map[string]int{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store, err := NewSheetsStore(context.Background(), SheetsOptions{SpreadsheetID: "sheet-1", Endpoint: srv.URL + "/"})
	if err != nil {
		t.Fatalf("new sheets store: %v", err)
	}
	items, err := store.All(context.Background())
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 1 || items[0].Text != "好" {
		t.Fatalf("unexpected items %v", items)
	}
}

type countingStore struct {
	*MemoryStore
	calls int
}

func (c *countingStore) All(ctx context.Context) ([]pronunciation.Item, error) {
	c.calls++
	return c.MemoryStore.All(ctx)
}

func TestCachedInvalidatesOnSave(t *testing.T) {
	inner := &countingStore{MemoryStore: NewMemoryStore([]pronunciation.Item{{Text: "a", Pronunciation: "(a1)"}})}
	cached := NewCached(inner, 1, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		items, err := cached.All(ctx)
		if err != nil || len(items) != 1 {
			t.Fatalf("all: %v %v", items, err)
		}
		items[0].Text = "mutated"
	}
	if inner.calls != 1 {
		t.Fatalf("expected a single backend read, got %d", inner.calls)
	}
	if err := cached.Save(ctx, Entry{Word: "b", Pinyin: "(b1)"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	items, _ := cached.All(ctx)
	if len(items) != 2 || items[0].Text != "a" || inner.calls != 2 {
		t.Fatalf("expected fresh read after save, got %v calls=%d", items, inner.calls)
	}
}

func TestOpenBackends(t *testing.T) {
	cfg := config.Default().Dictionary
	store, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := store.(*Cached); !ok {
		t.Fatalf("expected cached store with default ttl")
	}

	cfg.Backend = "sqlite"
	cfg.Path = filepath.Join(t.TempDir(), "dict.db")
	cfg.CacheTTLMS = 0
	store, err = Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*SQLiteStore); !ok {
		t.Fatalf("expected bare sqlite store without ttl")
	}

	cfg.Backend = "sheets"
	if _, err := Open(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error without spreadsheet id")
	}
	cfg.Backend = "bogus"
	if _, err := Open(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
}
