package imagegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/contentbuddy/contentbuddy/internal/config"
)

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = cfg
	return f.resp, f.err
}

func TestGeminiReturnsFirstInlineImage(t *testing.T) {
	fake := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here is your image"},
				{InlineData: &genai.Blob{Data: []byte{1, 2, 3}, MIMEType: "image/jpeg"}},
				{InlineData: &genai.Blob{Data: []byte{9}, MIMEType: "image/png"}},
			}},
		}},
	}}
	p := &geminiPainter{models: fake, model: "gemini-2.5-flash-image"}
	img, err := p.Paint(context.Background(), "a mountain at dawn")
	if err != nil {
		t.Fatalf("paint: %v", err)
	}
	if img.MIMEType != "image/jpeg" || len(img.Data) != 3 {
		t.Fatalf("unexpected image %+v", img)
	}
	if img.DataURI() != "data:image/jpeg;base64,AQID" {
		t.Fatalf("unexpected data uri %q", img.DataURI())
	}
	if fake.model != "gemini-2.5-flash-image" {
		t.Fatalf("unexpected model %q", fake.model)
	}
	if len(fake.config.ResponseModalities) != 2 {
		t.Fatalf("expected text and image modalities, got %v", fake.config.ResponseModalities)
	}
}

func TestGeminiWithoutImage(t *testing.T) {
	for _, resp := range []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "sorry"}}}}}},
	} {
		p := &geminiPainter{models: &fakeModels{resp: resp}}
		if _, err := p.Paint(context.Background(), "x"); !errors.Is(err, ErrNoImage) {
			t.Fatalf("expected ErrNoImage, got %v", err)
		}
	}
}

func TestGeminiError(t *testing.T) {
	p := &geminiPainter{models: &fakeModels{err: errors.New("quota exceeded")}}
	_, err := p.Paint(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected wrapped vendor error, got %v", err)
	}
}

func TestMockPainter(t *testing.T) {
	painter, err := New(context.Background(), config.Default().Image)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	img, err := painter.Paint(context.Background(), "anything")
	if err != nil {
		t.Fatalf("paint: %v", err)
	}
	if !strings.HasPrefix(img.DataURI(), "data:image/png;base64,iVBORw0KGgo") {
		t.Fatalf("expected png data uri, got %q", img.DataURI())
	}
}
