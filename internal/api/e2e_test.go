package api_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/contentbuddy/contentbuddy/internal/api"
	"github.com/contentbuddy/contentbuddy/internal/batch"
	"github.com/contentbuddy/contentbuddy/internal/client"
	"github.com/contentbuddy/contentbuddy/internal/config"
	"github.com/contentbuddy/contentbuddy/internal/dictionary"
	"github.com/contentbuddy/contentbuddy/internal/imagegen"
	"github.com/contentbuddy/contentbuddy/internal/llm"
	"github.com/contentbuddy/contentbuddy/internal/project"
	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
	"github.com/contentbuddy/contentbuddy/internal/timeline"
	"github.com/contentbuddy/contentbuddy/internal/tts"
)

func TestScriptToTimeline(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := api.New(api.Backends{
		Director:   llm.NewDirector(llm.NewMockGenerator(), config.Default().LLM),
		Painter:    imagegen.MockPainter{},
		Synth:      tts.NewMockSynth(16000),
		Dictionary: dictionary.NewMemoryStore([]pronunciation.Item{{Text: "world", Pronunciation: "(wurld)"}}),
	}, api.Options{Logger: logger})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx := context.Background()
	c := client.New(srv.URL)
	script := "Hello world. This is a test."
	segs, err := c.Slice(ctx, script)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if len(segs) != 2 || segs[0].Text != "Hello world." || segs[1].Text != "This is a test." {
		t.Fatalf("unexpected segments %+v", segs)
	}

	store := project.NewStore(project.Initial())
	store.Dispatch(project.SetScript{Script: script})
	store.Dispatch(project.SetVoiceID{VoiceID: "female-1"})
	store.Dispatch(project.SetSegments{Segments: segs})
	store.Dispatch(project.InitializeAssets{})

	orch := batch.New(store, c, batch.Options{ChunkSize: batch.DefaultChunkSize, Logger: logger})
	if err := orch.Run(ctx, segs); err != nil {
		t.Fatalf("batch: %v", err)
	}

	state := store.Snapshot()
	if !state.AllComplete() {
		t.Fatalf("expected every segment complete, got %+v", state.Assets)
	}
	for _, seg := range segs {
		a := state.AssetsFor(seg.ID)
		if !strings.HasPrefix(*a.ImageURL, "data:image/png;base64,") || !strings.HasPrefix(*a.AudioURL, "data:audio/wav;base64,") {
			t.Fatalf("segment %s: unexpected asset urls", seg.ID)
		}
	}

	tl := timeline.FromState(state)
	if total := timeline.Total(tl); math.Abs(total-5.4) > 1e-9 {
		t.Fatalf("expected 2.4+3.0 seconds, got %v", total)
	}
	if tl[1].StartTime != tl[0].End() {
		t.Fatalf("segments must be contiguous: %+v", tl)
	}
}
