// Package pronunciation models pronunciation dictionary entries and the
// precedence rules used when combining the global dictionary with per-segment
// overrides.
package pronunciation

import "strings"

// Item maps a written word to the pronunciation the synthesizer should use.
type Item struct {
	Text          string `json:"text"`
	Pronunciation string `json:"pronunciation"`
}

// Merge combines global entries with segment-local overrides. Entries are
// keyed by Text; a local entry replaces the global pronunciation in place.
// Order is insertion order: global entries first, then local-only entries.
func Merge(global, local []Item) []Item {
	positions := make(map[string]int, len(global)+len(local))
	out := make([]Item, 0, len(global)+len(local))
	insert := func(item Item) {
		if pos, ok := positions[item.Text]; ok {
			out[pos] = item
			return
		}
		positions[item.Text] = len(out)
		out = append(out, item)
	}
	for _, item := range global {
		insert(item)
	}
	for _, item := range local {
		insert(item)
	}
	return out
}

// ToneList renders items in the "text/pronunciation" form MiniMax expects.
func ToneList(items []Item) []string {
	tones := make([]string, 0, len(items))
	for _, item := range items {
		tones = append(tones, item.Text+"/"+item.Pronunciation)
	}
	return tones
}

// ParseToneList is the inverse of ToneList. Malformed entries are skipped.
func ParseToneList(tones []string) []Item {
	items := make([]Item, 0, len(tones))
	for _, tone := range tones {
		text, pron, ok := strings.Cut(tone, "/")
		if !ok || text == "" || pron == "" {
			continue
		}
		items = append(items, Item{Text: text, Pronunciation: pron})
	}
	return items
}

// Clone returns a copy so callers can replace an override list wholesale.
func Clone(items []Item) []Item {
	if items == nil {
		return nil
	}
	return append([]Item(nil), items...)
}
