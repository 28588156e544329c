package dictionary

import (
	"context"
	"sync"

	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
)

// MemoryStore keeps entries in process. Row indexes are 1-based positions.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore(seed []pronunciation.Item) *MemoryStore {
	m := &MemoryStore{}
	for _, item := range seed {
		m.entries = append(m.entries, Entry{Word: item.Text, Pinyin: item.Pronunciation})
	}
	return m
}

func (m *MemoryStore) All(ctx context.Context) ([]pronunciation.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]pronunciation.Item, 0, len(m.entries))
	for _, e := range m.entries {
		if e.Word != "" && e.Pinyin != "" {
			items = append(items, pronunciation.Item{Text: e.Word, Pronunciation: e.Pinyin})
		}
	}
	return items, nil
}

func (m *MemoryStore) Check(ctx context.Context, word string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, e := range m.entries {
		if e.Word == word {
			e.RowIndex = i + 1
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (m *MemoryStore) Save(ctx context.Context, entry Entry) error {
	entry, err := Normalize(entry)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.RowIndex > 0 && entry.RowIndex <= len(m.entries) {
		m.entries[entry.RowIndex-1] = Entry{Word: entry.Word, Pinyin: entry.Pinyin}
		return nil
	}
	m.entries = append(m.entries, Entry{Word: entry.Word, Pinyin: entry.Pinyin})
	return nil
}

func (m *MemoryStore) SaveBatch(ctx context.Context, entries []Entry) error {
	entries, err := normalizeAll(entries)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		found := false
		for i := range m.entries {
			if m.entries[i].Word == e.Word {
				m.entries[i].Pinyin = e.Pinyin
				found = true
				break
			}
		}
		if !found {
			m.entries = append(m.entries, Entry{Word: e.Word, Pinyin: e.Pinyin})
		}
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
