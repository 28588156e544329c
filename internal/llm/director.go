package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/contentbuddy/contentbuddy/internal/config"
)

var ErrEmptyResponse = errors.New("model returned no usable content")

// Director turns model completions into segments, image prompts and pinyin.
type Director struct {
	gen Generator
	cfg config.LLMConfig
}

func NewDirector(gen Generator, cfg config.LLMConfig) *Director {
	return &Director{gen: gen, cfg: cfg}
}

// Slice splits a script into scene-sized texts.
func (d *Director) Slice(ctx context.Context, script string) ([]string, error) {
	out, err := d.gen.Generate(ctx, Request{
		Task:        TaskSlice,
		Model:       d.cfg.SliceModel,
		System:      sliceSystemPrompt,
		Prompt:      script,
		Temperature: d.cfg.SliceTemperature,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(out.Content) {
		return nil, fmt.Errorf("parse slice response: invalid json")
	}
	result := gjson.Get(out.Content, "segments")
	if !result.IsArray() {
		return nil, fmt.Errorf("parse slice response: %w", ErrEmptyResponse)
	}
	var texts []string
	for _, item := range result.Array() {
		if text := strings.TrimSpace(item.String()); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("parse slice response: %w", ErrEmptyResponse)
	}
	return texts, nil
}

// ImagePrompt writes an English image prompt for text in the given style.
func (d *Director) ImagePrompt(ctx context.Context, text, style string) (string, error) {
	out, err := d.gen.Generate(ctx, Request{
		Task:        TaskImagePrompt,
		Model:       d.cfg.PromptModel,
		System:      imagePromptSystem(StyleSpec(style)),
		Prompt:      text,
		Temperature: d.cfg.PromptTemperature,
		JSON:        true,
	})
	if err != nil {
		return "", err
	}
	if !gjson.Valid(out.Content) {
		return "", fmt.Errorf("parse prompt response: invalid json")
	}
	for _, field := range []string{"prompt", "image_prompt", "description"} {
		if v := gjson.Get(out.Content, field); v.Exists() && strings.TrimSpace(v.String()) != "" {
			return strings.TrimSpace(v.String()), nil
		}
	}
	return "", fmt.Errorf("parse prompt response: missing prompt field: %w", ErrEmptyResponse)
}

// Pinyin returns the bracketed numeric-tone pronunciation of a word, for
// example "(kuai4)(ji4)".
func (d *Director) Pinyin(ctx context.Context, word string) (string, error) {
	out, err := d.gen.Generate(ctx, Request{
		Task:        TaskPinyin,
		Model:       d.cfg.PinyinModel,
		System:      pinyinSystemPrompt,
		Prompt:      strings.TrimSpace(word),
		Temperature: d.cfg.PinyinTemperature,
		MaxTokens:   d.cfg.PinyinMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Content), nil
}
