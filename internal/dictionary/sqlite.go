package dictionary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
)

// SQLiteStore keeps the dictionary in a local database file. RowIndex maps
// to the table's integer primary key.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("dictionary path required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	ddl := `
CREATE TABLE IF NOT EXISTS dictionary (
    row_index INTEGER PRIMARY KEY AUTOINCREMENT,
    word TEXT NOT NULL UNIQUE,
    pinyin TEXT NOT NULL
);`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("init dictionary schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) All(ctx context.Context) ([]pronunciation.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT word, pinyin FROM dictionary WHERE word <> '' AND pinyin <> '' ORDER BY row_index`)
	if err != nil {
		return nil, fmt.Errorf("query dictionary: %w", err)
	}
	defer rows.Close()
	var items []pronunciation.Item
	for rows.Next() {
		var item pronunciation.Item
		if err := rows.Scan(&item.Text, &item.Pronunciation); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Check(ctx context.Context, word string) (Entry, bool, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx, `SELECT row_index, word, pinyin FROM dictionary WHERE word = ?`, word).
		Scan(&e.RowIndex, &e.Word, &e.Pinyin)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("check word: %w", err)
	}
	return e, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, entry Entry) error {
	entry, err := Normalize(entry)
	if err != nil {
		return err
	}
	if entry.RowIndex > 0 {
		res, err := s.db.ExecContext(ctx, `UPDATE dictionary SET word = ?, pinyin = ? WHERE row_index = ?`,
			entry.Word, entry.Pinyin, entry.RowIndex)
		if err != nil {
			return fmt.Errorf("update word: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
	}
	return upsert(ctx, s.db, entry)
}

func (s *SQLiteStore) SaveBatch(ctx context.Context, entries []Entry) error {
	entries, err := normalizeAll(entries)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	for _, e := range entries {
		if err := upsert(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, e Entry) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO dictionary(word, pinyin) VALUES(?, ?)
		 ON CONFLICT(word) DO UPDATE SET pinyin=excluded.pinyin`,
		e.Word, e.Pinyin)
	if err != nil {
		return fmt.Errorf("save word: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
