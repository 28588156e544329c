package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

type mockGenerator struct{}

// NewMockGenerator answers every task locally: slicing splits on sentence
// terminators, prompts echo the text and pinyin is a placeholder syllable per
// character.
func NewMockGenerator() Generator { return &mockGenerator{} }

func (m *mockGenerator) Generate(ctx context.Context, req Request) (Completion, error) {
	select {
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	case <-time.After(5 * time.Millisecond):
	}

	var content string
	switch req.Task {
	case TaskSlice:
		data, err := json.Marshal(map[string][]string{"segments": splitSentences(req.Prompt)})
		if err != nil {
			return Completion{}, err
		}
		content = string(data)
	case TaskImagePrompt:
		data, err := json.Marshal(map[string]string{"prompt": "Illustration of " + strings.TrimSpace(req.Prompt)})
		if err != nil {
			return Completion{}, err
		}
		content = string(data)
	case TaskPinyin:
		content = strings.Repeat("(mock5)", utf8.RuneCountInString(strings.TrimSpace(req.Prompt)))
	default:
		content = "[mock completion for " + strings.TrimSpace(req.Prompt) + "]"
	}
	return Completion{Content: content, Latency: 5 * time.Millisecond}, nil
}

func splitSentences(text string) []string {
	var out []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}
	for _, r := range text {
		current.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？', '\n':
			flush()
		}
	}
	flush()
	return out
}
