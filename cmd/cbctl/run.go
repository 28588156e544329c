package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/contentbuddy/contentbuddy/internal/batch"
	"github.com/contentbuddy/contentbuddy/internal/llm"
	"github.com/contentbuddy/contentbuddy/internal/playback"
	"github.com/contentbuddy/contentbuddy/internal/project"
	"github.com/contentbuddy/contentbuddy/internal/timeline"
)

const defaultVoice = "female-shaonv"

func newRunCmd(a *app) *cobra.Command {
	var (
		voice   string
		style   string
		outPath string
		chunk   int
		retry   bool
	)
	cmd := &cobra.Command{
		Use:   "run <script-file|->",
		Short: "Slice a script and generate prompt, image and narration for every segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readInput(args[0])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			if voice == "" {
				voice = a.cfg.TTS.DefaultVoice
			}
			if voice == "" {
				voice = defaultVoice
			}
			if !cmd.Flags().Changed("chunk") {
				chunk = a.cfg.Batch.ChunkSize
			}
			state, err := a.generate(cmd.Context(), strings.TrimSpace(string(script)), voice, style, chunk, retry)
			if err != nil {
				return err
			}
			a.printSummary(state)
			if outPath != "" {
				if err := saveProject(outPath, state); err != nil {
					return fmt.Errorf("save project: %w", err)
				}
			}
			if !state.AllComplete() {
				return fmt.Errorf("%d of %d segments incomplete", len(state.Segments)-state.CompletedCount(), len(state.Segments))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&voice, "voice", "", "Voice id (defaults to tts.default_voice)")
	f.StringVar(&style, "style", llm.DefaultStyle, "Visual style id, see `cbctl styles`")
	f.StringVarP(&outPath, "out", "o", "project.json", "Where to write the project state (- for stdout, empty to skip)")
	f.IntVar(&chunk, "chunk", batch.DefaultChunkSize, "Segments generated concurrently (0 = all at once)")
	f.BoolVar(&retry, "retry", false, "Retry failed fields once after the batch")
	return cmd
}

func (a *app) generate(ctx context.Context, script, voice, style string, chunk int, retry bool) (project.State, error) {
	segs, err := a.client.Slice(ctx, script)
	if err != nil {
		return project.State{}, fmt.Errorf("slice script: %w", err)
	}
	a.printf("sliced into %d segments\n", len(segs))

	store := project.NewStore(project.Initial())
	store.Dispatch(project.SetScript{Script: script})
	store.Dispatch(project.SetVoiceID{VoiceID: voice})
	store.Dispatch(project.SetVisualStyle{Style: style})
	store.Dispatch(project.SetSegments{Segments: segs})
	store.Dispatch(project.InitializeAssets{})
	store.Dispatch(project.SetCurrentStep{Step: project.StepReview})

	var (
		mu   sync.Mutex
		last int
	)
	unsubscribe := store.Subscribe(func(s project.State) {
		mu.Lock()
		defer mu.Unlock()
		if done := s.CompletedCount(); done != last {
			last = done
			a.printf("  %d/%d segments complete\n", done, len(s.Segments))
		}
	})
	defer unsubscribe()

	orch := batch.New(store, a.client, batch.Options{ChunkSize: chunk, Logger: a.logger})
	start := time.Now()
	if err := orch.Run(ctx, segs); err != nil {
		return store.Snapshot(), fmt.Errorf("batch generation: %w", err)
	}

	if retry {
		for _, seg := range segs {
			assets := store.Snapshot().AssetsFor(seg.ID)
			if assets.PromptStatus == project.StatusError {
				if err := orch.GeneratePrompt(ctx, seg.ID); err == nil {
					_ = orch.GenerateImage(ctx, seg.ID)
				}
			} else if assets.ImageStatus == project.StatusError {
				_ = orch.GenerateImage(ctx, seg.ID)
			}
			if assets.AudioStatus == project.StatusError {
				_ = orch.GenerateAudio(ctx, seg.ID)
			}
		}
	}
	a.printf("generation finished in %s\n", time.Since(start).Round(time.Millisecond))
	return store.Snapshot(), nil
}

func (a *app) printSummary(state project.State) {
	tl := timeline.FromState(state)
	for i, seg := range tl {
		duration := "-"
		if seg.Assets.AudioDuration != nil {
			duration = fmt.Sprintf("%.2fs", *seg.Assets.AudioDuration)
		}
		a.printf("%2d %-14s %6.2fs  prompt=%-7s image=%-7s audio=%-7s %6s  %s\n",
			i+1, seg.ID, seg.StartTime,
			seg.Assets.PromptStatus, seg.Assets.ImageStatus, seg.Assets.AudioStatus,
			duration, truncate(seg.Text, 40))
		for _, msg := range []string{seg.Assets.PromptError, seg.Assets.ImageError, seg.Assets.AudioError} {
			if msg != "" {
				a.printf("   error: %s\n", msg)
			}
		}
	}
	a.printf("total %.2fs, %d/%d complete\n", timeline.Total(tl), state.CompletedCount(), len(state.Segments))
}

func newPreviewCmd(a *app) *cobra.Command {
	var (
		rate  float64
		from  string
		regen string
	)
	cmd := &cobra.Command{
		Use:   "preview <project.json>",
		Short: "Play a generated project through the timeline on a simulated clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := loadProject(args[0])
			if err != nil {
				return err
			}
			if regen == "" {
				return a.preview(cmd.Context(), state, rate, from, false)
			}
			state, err = a.regenerateAudio(cmd.Context(), state, regen)
			if err != nil {
				return err
			}
			if err := saveProject(args[0], state); err != nil {
				return fmt.Errorf("save project: %w", err)
			}
			return a.preview(cmd.Context(), state, rate, regen, true)
		},
	}
	cmd.Flags().Float64Var(&rate, "rate", 1, "Playback rate")
	cmd.Flags().StringVar(&from, "from", "", "Start at this segment id")
	cmd.Flags().StringVar(&regen, "regen-audio", "", "Regenerate this segment's narration, save the project and play from it")
	return cmd
}

// regenerateAudio synthesizes one segment's narration again with its current
// voice settings and pronunciation overrides.
func (a *app) regenerateAudio(ctx context.Context, state project.State, segmentID string) (project.State, error) {
	store := project.NewStore(state)
	orch := batch.New(store, a.client, batch.Options{Logger: a.logger})
	if err := orch.GenerateAudio(ctx, segmentID); err != nil {
		return store.Snapshot(), fmt.Errorf("regenerate audio for %s: %w", segmentID, err)
	}
	next := store.Snapshot()
	if d := next.AssetsFor(segmentID).AudioDuration; d != nil {
		a.printf("regenerated %s (%.2fs)\n", segmentID, *d)
	}
	return next, nil
}

// preview plays the project on a simulated clock. With playSegment the
// segment named by from is played even when other segments are incomplete.
func (a *app) preview(ctx context.Context, state project.State, rate float64, from string, playSegment bool) error {
	tl := timeline.FromState(state)
	if len(tl) == 0 {
		return fmt.Errorf("project has no segments")
	}
	if from != "" && timeline.IndexOf(tl, from) < 0 {
		return fmt.Errorf("unknown segment %q", from)
	}
	if rate <= 0 {
		rate = 1
	}
	durations := make(map[string]float64, len(tl))
	shortest := 0.0
	for _, seg := range tl {
		if seg.Assets.AudioURL != nil {
			durations[*seg.Assets.AudioURL] = seg.Duration
			if seg.Duration > 0 && (shortest == 0 || seg.Duration < shortest) {
				shortest = seg.Duration
			}
		}
	}
	source := playback.NewSimulatedSource(func(url string) float64 { return durations[url] })

	done := make(chan struct{})
	stuck := make(chan struct{}, 1)
	var once sync.Once
	ctrl := playback.New(project.NewStore(state), source, playback.Options{
		DriftThreshold: a.cfg.Playback.DriftThreshold,
		EndedDebounce:  previewDebounce(a.cfg.Playback.EndedDebounceMS, shortest, rate),
		FrameInterval:  time.Duration(a.cfg.Playback.FrameIntervalMS) * time.Millisecond,
		Logger:         a.logger,
		OnSegmentChange: func(id string) {
			if idx := timeline.IndexOf(tl, id); idx >= 0 {
				a.printf("%7.2fs  ▶ %s  %s\n", tl[idx].StartTime, id, truncate(tl[idx].Text, 50))
			}
		},
		OnStateChange: func(s playback.State) {
			if s == playback.Waiting {
				select {
				case stuck <- struct{}{}:
				default:
				}
			}
		},
		OnComplete: func() { once.Do(func() { close(done) }) },
	})
	defer ctrl.Close()
	ctrl.SetPlaybackRate(rate)

	switch {
	case playSegment:
		if err := ctrl.PlaySegment(from); err != nil {
			return err
		}
	case from != "":
		if err := ctrl.SelectSegment(from); err != nil {
			return err
		}
	}
	if ctrl.State() != playback.Playing {
		if err := ctrl.SetPlaying(true); err != nil {
			return err
		}
	}
	switch ctrl.State() {
	case playback.Idle, playback.Ready:
		return fmt.Errorf("segment at %.2fs has no audio; run generation first", ctrl.CurrentTime())
	}

	select {
	case <-done:
		a.printf("%7.2fs  ■ complete\n", ctrl.Total())
		return nil
	case <-stuck:
		return fmt.Errorf("playback waiting for segment %s, which has no audio", ctrl.WaitingFor())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// previewDebounce scales the ended-event debounce to the playback rate and
// keeps it below half the shortest clip so a genuine end is never dropped.
func previewDebounce(ms int, shortest, rate float64) time.Duration {
	debounce := time.Duration(float64(ms) * float64(time.Millisecond) / rate)
	if shortest > 0 {
		if limit := time.Duration(shortest / rate / 2 * float64(time.Second)); limit < debounce {
			debounce = limit
		}
	}
	if debounce <= 0 {
		return -1
	}
	return debounce
}
