// Package imagegen renders image prompts into pictures returned as data URIs.
package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/contentbuddy/contentbuddy/internal/config"
)

var ErrNoImage = errors.New("no image in response")

// Image is a rendered picture.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURI encodes the image for direct use in an <img> tag.
func (i Image) DataURI() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Painter turns a prompt into an image.
type Painter interface {
	Paint(ctx context.Context, prompt string) (Image, error)
}

// New selects a backend from config.
func New(ctx context.Context, cfg config.ImageConfig) (Painter, error) {
	switch cfg.Mode {
	case "gemini":
		return NewGeminiPainter(ctx, cfg.APIKey, cfg.Model, time.Duration(cfg.TimeoutMS)*time.Millisecond)
	case "mock", "":
		return MockPainter{}, nil
	default:
		return nil, fmt.Errorf("unsupported image mode %q", cfg.Mode)
	}
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type geminiPainter struct {
	models  contentGenerator
	model   string
	timeout time.Duration
}

func NewGeminiPainter(ctx context.Context, apiKey, model string, timeout time.Duration) (Painter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiPainter{models: client.Models, model: model, timeout: timeout}, nil
}

func (g *geminiPainter) Paint(ctx context.Context, prompt string) (Image, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return Image{}, fmt.Errorf("gemini generate content: %w", err)
	}
	return firstInlineImage(resp)
}

func firstInlineImage(resp *genai.GenerateContentResponse) (Image, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Image{}, fmt.Errorf("gemini: %w", ErrNoImage)
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return Image{Data: part.InlineData.Data, MIMEType: mime}, nil
	}
	return Image{}, fmt.Errorf("gemini: %w", ErrNoImage)
}

// 1x1 PNG.
const placeholderPNGBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

var placeholderPNG, _ = base64.StdEncoding.DecodeString(placeholderPNGBase64)

// MockPainter returns a placeholder PNG for every prompt.
type MockPainter struct{}

func (MockPainter) Paint(ctx context.Context, prompt string) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	return Image{Data: append([]byte(nil), placeholderPNG...), MIMEType: "image/png"}, nil
}
