package dictionary

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
)

// SheetsOptions locates the dictionary spreadsheet. Column A holds the word,
// column B the pinyin, and row 1 is a header.
type SheetsOptions struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON []byte
	// Endpoint overrides the API base URL and disables authentication.
	Endpoint string
}

type SheetsStore struct {
	values    *sheets.SpreadsheetsValuesService
	id        string
	sheetName string
}

func NewSheetsStore(ctx context.Context, opts SheetsOptions) (*SheetsStore, error) {
	if opts.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id required")
	}
	if opts.SheetName == "" {
		opts.SheetName = "Sheet1"
	}
	clientOpts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	switch {
	case opts.Endpoint != "":
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint), option.WithoutAuthentication())
	case len(opts.CredentialsJSON) > 0:
		clientOpts = append(clientOpts, option.WithCredentialsJSON(opts.CredentialsJSON))
	}
	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return &SheetsStore{values: srv.Spreadsheets.Values, id: opts.SpreadsheetID, sheetName: opts.SheetName}, nil
}

func (s *SheetsStore) columns() string {
	return fmt.Sprintf("'%s'!A:B", s.sheetName)
}

func (s *SheetsStore) row(index int) string {
	return fmt.Sprintf("'%s'!A%d:B%d", s.sheetName, index, index)
}

// rows returns data rows with their 1-based sheet row numbers, header skipped.
func (s *SheetsStore) rows(ctx context.Context) ([]Entry, error) {
	resp, err := s.values.Get(s.id, s.columns()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read dictionary sheet: %w", err)
	}
	var out []Entry
	for i, row := range resp.Values {
		if i == 0 {
			continue
		}
		e := Entry{RowIndex: i + 1}
		if len(row) > 0 {
			e.Word = cell(row[0])
		}
		if len(row) > 1 {
			e.Pinyin = cell(row[1])
		}
		out = append(out, e)
	}
	return out, nil
}

func cell(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (s *SheetsStore) All(ctx context.Context) ([]pronunciation.Item, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]pronunciation.Item, 0, len(rows))
	for _, e := range rows {
		if e.Word != "" && e.Pinyin != "" {
			items = append(items, pronunciation.Item{Text: e.Word, Pronunciation: e.Pinyin})
		}
	}
	return items, nil
}

func (s *SheetsStore) Check(ctx context.Context, word string) (Entry, bool, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range rows {
		if e.Word == word {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (s *SheetsStore) Save(ctx context.Context, entry Entry) error {
	entry, err := Normalize(entry)
	if err != nil {
		return err
	}
	values := &sheets.ValueRange{Values: [][]interface{}{{entry.Word, entry.Pinyin}}}
	if entry.RowIndex > 0 {
		if _, err := s.values.Update(s.id, s.row(entry.RowIndex), values).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update dictionary row: %w", err)
		}
		return nil
	}
	if _, err := s.values.Append(s.id, s.columns(), values).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append dictionary row: %w", err)
	}
	return nil
}

// SaveBatch reads the sheet once, rewrites rows whose word already exists and
// appends the rest in a single request.
func (s *SheetsStore) SaveBatch(ctx context.Context, entries []Entry) error {
	entries, err := normalizeAll(entries)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	rows, err := s.rows(ctx)
	if err != nil {
		return err
	}
	existing := make(map[string]int, len(rows))
	for _, e := range rows {
		if e.Word != "" {
			existing[e.Word] = e.RowIndex
		}
	}

	var updates []*sheets.ValueRange
	var appends [][]interface{}
	pending := make(map[string]int)
	for _, e := range entries {
		if idx, ok := existing[e.Word]; ok {
			updates = append(updates, &sheets.ValueRange{Range: s.row(idx), Values: [][]interface{}{{e.Word, e.Pinyin}}})
			continue
		}
		if pos, ok := pending[e.Word]; ok {
			appends[pos] = []interface{}{e.Word, e.Pinyin}
			continue
		}
		pending[e.Word] = len(appends)
		appends = append(appends, []interface{}{e.Word, e.Pinyin})
	}

	if len(updates) > 0 {
		req := &sheets.BatchUpdateValuesRequest{ValueInputOption: "RAW", Data: updates}
		if _, err := s.values.BatchUpdate(s.id, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("update dictionary rows: %w", err)
		}
	}
	if len(appends) > 0 {
		if _, err := s.values.Append(s.id, s.columns(), &sheets.ValueRange{Values: appends}).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("append dictionary rows: %w", err)
		}
	}
	return nil
}

func (s *SheetsStore) Close() error { return nil }
