package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/contentbuddy/contentbuddy/internal/config"
)

// Task names the kind of completion being requested. Backends that do not
// talk to a real model (mock, exec) use it to shape their answer.
type Task string

const (
	TaskSlice       Task = "slice"
	TaskImagePrompt Task = "image_prompt"
	TaskPinyin      Task = "pinyin"
)

// Request describes a chat completion.
type Request struct {
	Task        Task
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// JSON asks the backend for a JSON object response.
	JSON bool
}

// Completion is the model output.
type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Generator defines a pluggable LLM backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (Completion, error)
}

// NewGenerator selects a backend from config.
func NewGenerator(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Mode {
	case "openai":
		return NewOpenAIGenerator(cfg.APIKey, cfg.BaseURL, time.Duration(cfg.TimeoutMS)*time.Millisecond), nil
	case "exec":
		return NewExecGenerator(cfg.Command)
	case "mock", "":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported llm mode %q", cfg.Mode)
	}
}
