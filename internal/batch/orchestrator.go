// Package batch generates prompts, images and narration for every segment of a
// project, recording progress in the project store.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/contentbuddy/contentbuddy/internal/project"
	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
	"github.com/contentbuddy/contentbuddy/internal/segment"
)

var (
	ErrBatchRunning   = errors.New("batch generation already running")
	ErrAlreadyLoading = errors.New("generation already in progress")
	ErrUnknownSegment = errors.New("unknown segment")
	ErrMissingPrompt  = errors.New("segment has no image prompt")
)

// DefaultChunkSize bounds how many segments are generated at once.
const DefaultChunkSize = 3

// AudioRequest is one narration request.
type AudioRequest struct {
	SegmentID      string
	Text           string
	VoiceID        string
	Pronunciations []pronunciation.Item
	Speed          float64
	Emotion        string
}

// AudioResult is a synthesized clip as a data URI with its length in seconds.
type AudioResult struct {
	URL      string
	Duration float64
}

// Generator performs the remote generation calls.
type Generator interface {
	Dictionary(ctx context.Context) ([]pronunciation.Item, error)
	Prompt(ctx context.Context, segmentID, text, style string) (string, error)
	Image(ctx context.Context, segmentID, prompt string) (string, error)
	Audio(ctx context.Context, req AudioRequest) (AudioResult, error)
}

type Options struct {
	// ChunkSize is the number of segments generated concurrently; zero runs
	// every segment at once.
	ChunkSize int
	Logger    *slog.Logger
}

// Orchestrator drives generation against a project store.
type Orchestrator struct {
	store     *project.Store
	gen       Generator
	chunkSize int
	log       *slog.Logger

	running atomic.Bool
	claimMu sync.Mutex
}

func New(store *project.Store, gen Generator, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	chunk := opts.ChunkSize
	if chunk < 0 {
		chunk = DefaultChunkSize
	}
	return &Orchestrator{
		store:     store,
		gen:       gen,
		chunkSize: chunk,
		log:       logger.With(slog.String("component", "batch")),
	}
}

// Running reports whether a batch is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run generates missing assets for segs. Per-segment failures are recorded in
// the store and do not stop the batch. Run returns ErrBatchRunning if another
// batch is active.
func (o *Orchestrator) Run(ctx context.Context, segs []segment.Segment) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrBatchRunning
	}
	defer o.running.Store(false)

	global, err := o.gen.Dictionary(ctx)
	if err != nil {
		o.log.Warn("fetch dictionary failed, continuing without", slogError(err))
		global = nil
	}

	snapshot := o.store.Snapshot()
	pending := make([]segment.Segment, 0, len(segs))
	for _, seg := range segs {
		if !snapshot.AssetsFor(seg.ID).Complete() {
			pending = append(pending, seg)
		}
	}
	o.log.Info("batch generation started",
		slog.Int("segments", len(segs)),
		slog.Int("pending", len(pending)),
		slog.Int("dictionary_entries", len(global)),
	)

	size := o.chunkSize
	if size == 0 {
		size = len(pending)
	}
	for start := 0; start < len(pending); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + size
		if end > len(pending) {
			end = len(pending)
		}
		var g errgroup.Group
		for _, seg := range pending[start:end] {
			seg := seg
			g.Go(func() error {
				o.generateSegment(ctx, seg, global)
				return nil
			})
		}
		_ = g.Wait()
	}

	final := o.store.Snapshot()
	o.log.Info("batch generation finished",
		slog.Int("completed", final.CompletedCount()),
		slog.Int("segments", len(final.Segments)),
	)
	return nil
}

func (o *Orchestrator) generateSegment(ctx context.Context, seg segment.Segment, global []pronunciation.Item) {
	assets := o.store.Snapshot().AssetsFor(seg.ID)
	var g errgroup.Group
	if assets.ImageStatus != project.StatusSuccess || assets.ImageURL == nil {
		g.Go(func() error {
			if assets.ImagePrompt == nil || *assets.ImagePrompt == "" {
				if err := o.generatePrompt(ctx, seg); err != nil {
					return nil
				}
			}
			_ = o.generateImage(ctx, seg.ID)
			return nil
		})
	}
	if assets.AudioStatus != project.StatusSuccess {
		g.Go(func() error {
			_ = o.generateAudio(ctx, seg, global)
			return nil
		})
	}
	_ = g.Wait()
}

// GeneratePrompt requests an image prompt for one segment.
func (o *Orchestrator) GeneratePrompt(ctx context.Context, segmentID string) error {
	seg, err := o.segment(segmentID)
	if err != nil {
		return err
	}
	return o.generatePrompt(ctx, seg)
}

// GenerateImage renders the segment's current prompt.
func (o *Orchestrator) GenerateImage(ctx context.Context, segmentID string) error {
	if _, err := o.segment(segmentID); err != nil {
		return err
	}
	return o.generateImage(ctx, segmentID)
}

// GenerateAudio narrates one segment, fetching and merging the dictionary the
// same way a batch does.
func (o *Orchestrator) GenerateAudio(ctx context.Context, segmentID string) error {
	seg, err := o.segment(segmentID)
	if err != nil {
		return err
	}
	global, err := o.gen.Dictionary(ctx)
	if err != nil {
		o.log.Warn("fetch dictionary failed, continuing without", slogError(err))
		global = nil
	}
	return o.generateAudio(ctx, seg, global)
}

func (o *Orchestrator) generatePrompt(ctx context.Context, seg segment.Segment) error {
	state, err := o.claim(seg.ID, func(a project.SegmentAssets) project.Status { return a.PromptStatus }, project.PromptLoading())
	if err != nil {
		return err
	}
	prompt, err := o.gen.Prompt(ctx, seg.ID, seg.Text, state.VisualStyle)
	if err != nil {
		o.log.Warn("generate prompt failed", slog.String("segment_id", seg.ID), slogError(err))
		o.store.Update(seg.ID, project.PromptFailed(err.Error()))
		return err
	}
	o.store.Update(seg.ID, project.PromptSucceeded(prompt))
	return nil
}

func (o *Orchestrator) generateImage(ctx context.Context, segmentID string) error {
	prompt := o.store.Snapshot().AssetsFor(segmentID).ImagePrompt
	if prompt == nil || *prompt == "" {
		return ErrMissingPrompt
	}
	if _, err := o.claim(segmentID, func(a project.SegmentAssets) project.Status { return a.ImageStatus }, project.ImageLoading()); err != nil {
		return err
	}
	url, err := o.gen.Image(ctx, segmentID, *prompt)
	if err != nil {
		o.log.Warn("generate image failed", slog.String("segment_id", segmentID), slogError(err))
		o.store.Update(segmentID, project.ImageFailed(err.Error()))
		return err
	}
	o.store.Update(segmentID, project.ImageSucceeded(url))
	return nil
}

func (o *Orchestrator) generateAudio(ctx context.Context, seg segment.Segment, global []pronunciation.Item) error {
	state, err := o.claim(seg.ID, func(a project.SegmentAssets) project.Status { return a.AudioStatus }, project.AudioLoading())
	if err != nil {
		return err
	}
	assets := state.AssetsFor(seg.ID)
	res, err := o.gen.Audio(ctx, AudioRequest{
		SegmentID:      seg.ID,
		Text:           seg.Text,
		VoiceID:        state.VoiceID,
		Pronunciations: pronunciation.Merge(global, assets.CustomPronunciations),
		Speed:          assets.VoiceSpeed,
		Emotion:        assets.VoiceEmotion,
	})
	if err != nil {
		o.log.Warn("generate audio failed", slog.String("segment_id", seg.ID), slogError(err))
		o.store.Update(seg.ID, project.AudioFailed(err.Error()))
		return err
	}
	o.store.Update(seg.ID, project.AudioSucceeded(res.URL, res.Duration))
	return nil
}

// claim marks a field loading unless it already is. It returns the snapshot
// taken before the transition.
func (o *Orchestrator) claim(segmentID string, field func(project.SegmentAssets) project.Status, loading project.AssetUpdate) (project.State, error) {
	o.claimMu.Lock()
	defer o.claimMu.Unlock()
	state := o.store.Snapshot()
	if field(state.AssetsFor(segmentID)) == project.StatusLoading {
		return state, fmt.Errorf("segment %s: %w", segmentID, ErrAlreadyLoading)
	}
	o.store.Update(segmentID, loading)
	return state, nil
}

func (o *Orchestrator) segment(id string) (segment.Segment, error) {
	seg, ok := segment.Find(o.store.Snapshot().Segments, id)
	if !ok {
		return segment.Segment{}, fmt.Errorf("segment %s: %w", id, ErrUnknownSegment)
	}
	return seg, nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
