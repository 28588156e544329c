package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/contentbuddy/contentbuddy/internal/project"
	"github.com/contentbuddy/contentbuddy/internal/segment"
)

type fakeSource struct {
	mu      sync.Mutex
	loads   []string
	plays   int
	playing bool
	current float64
	playErr error
	ended   func()
}

func (f *fakeSource) Load(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, url)
	f.current = 0
	f.playing = false
	return nil
}

func (f *fakeSource) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.plays++
	f.playing = true
	return nil
}

func (f *fakeSource) Pause() {
	f.mu.Lock()
	f.playing = false
	f.mu.Unlock()
}

func (f *fakeSource) CurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeSource) SetCurrentTime(seconds float64) {
	f.mu.Lock()
	f.current = seconds
	f.mu.Unlock()
}

func (f *fakeSource) OnEnded(fn func()) {
	f.mu.Lock()
	f.ended = fn
	f.mu.Unlock()
}

func (f *fakeSource) lastLoad() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.loads) == 0 {
		return ""
	}
	return f.loads[len(f.loads)-1]
}

func (f *fakeSource) isPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newStore builds a project with one segment per duration; a nil duration
// leaves that segment's audio idle.
func newStore(durations ...*float64) *project.Store {
	s := project.Initial()
	segs := make([]segment.Segment, 0, len(durations))
	for i := range durations {
		id := string(rune('a' + i))
		segs = append(segs, segment.Segment{ID: id, Text: id})
	}
	s = project.Reduce(s, project.SetSegments{Segments: segs})
	s = project.Reduce(s, project.InitializeAssets{})
	for i, d := range durations {
		if d == nil {
			continue
		}
		id := string(rune('a' + i))
		s = project.Reduce(s, project.UpdateAsset{SegmentID: id, Update: project.AudioSucceeded("audio-"+id, *d)})
	}
	return project.NewStore(s)
}

func ptr(v float64) *float64 { return &v }

func newController(t *testing.T, store *project.Store, src *fakeSource, clock *fakeClock, opts Options) *Controller {
	t.Helper()
	opts.Now = clock.Now
	if opts.FrameInterval == 0 {
		opts.FrameInterval = time.Hour
	}
	c := New(store, src, opts)
	t.Cleanup(c.Close)
	return c
}

func TestSeekBoundaries(t *testing.T) {
	store := newStore(ptr(5), ptr(5), ptr(5))
	src := &fakeSource{}
	c := newController(t, store, src, &fakeClock{}, Options{})

	cases := []struct {
		at    float64
		index int
		local float64
		time  float64
	}{
		{4.9, 0, 4.9, 4.9},
		{5.0, 1, 0, 5.0},
		{14.9, 2, 4.9, 14.9},
		{100, 2, 5, 15},
		{-3, 0, 0, 0},
	}
	for _, tc := range cases {
		c.Seek(tc.at)
		if got := c.CurrentIndex(); got != tc.index {
			t.Fatalf("Seek(%v): index %d, want %d", tc.at, got, tc.index)
		}
		if got := c.CurrentTime(); got != tc.time {
			t.Fatalf("Seek(%v): time %v, want %v", tc.at, got, tc.time)
		}
		if diff := src.CurrentTime() - tc.local; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("Seek(%v): local %v, want %v", tc.at, src.CurrentTime(), tc.local)
		}
	}
}

func TestSeekReloadsWhenURLChanges(t *testing.T) {
	store := newStore(ptr(5), ptr(5))
	src := &fakeSource{}
	c := newController(t, store, src, &fakeClock{}, Options{})
	c.Seek(1)
	loads := len(src.loads)
	c.Seek(2)
	if len(src.loads) != loads {
		t.Fatalf("same segment and url must not reload")
	}

	store.Update("a", project.AudioSucceeded("audio-a-v2", 5))
	if src.lastLoad() != "audio-a-v2" {
		t.Fatalf("expected regenerated audio loaded, got %q", src.lastLoad())
	}
}

func TestSetPlayingWithoutAudioIsNoop(t *testing.T) {
	store := newStore(nil, ptr(5))
	src := &fakeSource{}
	c := newController(t, store, src, &fakeClock{}, Options{})
	if err := c.SetPlaying(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State() == Playing || src.plays != 0 {
		t.Fatalf("expected no playback, state %v", c.State())
	}
}

func TestAdvanceToReadySegment(t *testing.T) {
	store := newStore(ptr(5), ptr(4))
	src := &fakeSource{}
	var changed []string
	c := newController(t, store, src, &fakeClock{}, Options{
		OnSegmentChange: func(id string) { changed = append(changed, id) },
	})
	if err := c.SetPlaying(true); err != nil {
		t.Fatalf("play: %v", err)
	}
	src.SetCurrentTime(4.99)
	c.OnEnded()

	if c.CurrentIndex() != 1 {
		t.Fatalf("expected segment 1, got %d", c.CurrentIndex())
	}
	if got := c.CurrentTime(); got < 5 || got > 5.02 {
		t.Fatalf("expected playhead just past 5, got %v", got)
	}
	if c.State() != Playing || !src.isPlaying() {
		t.Fatalf("expected to keep playing, state %v", c.State())
	}
	if src.lastLoad() != "audio-b" {
		t.Fatalf("expected audio-b loaded, got %q", src.lastLoad())
	}
	if len(changed) == 0 || changed[len(changed)-1] != "b" {
		t.Fatalf("expected segment change to b, got %v", changed)
	}
}

func TestWaitingThenAutoResume(t *testing.T) {
	store := newStore(ptr(5), nil)
	src := &fakeSource{}
	var states []State
	var mu sync.Mutex
	c := newController(t, store, src, &fakeClock{}, Options{
		OnStateChange: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})
	if err := c.SetPlaying(true); err != nil {
		t.Fatalf("play: %v", err)
	}
	c.OnEnded()

	if c.State() != Waiting {
		t.Fatalf("expected waiting, got %v", c.State())
	}
	if c.WaitingFor() != "b" {
		t.Fatalf("expected waiting for b, got %q", c.WaitingFor())
	}
	if c.CurrentTime() > 5 {
		t.Fatalf("playhead advanced past segment end: %v", c.CurrentTime())
	}
	if src.isPlaying() {
		t.Fatalf("source must be paused while waiting")
	}

	store.Update("b", project.AudioLoading())
	if c.State() != Waiting {
		t.Fatalf("loading must keep waiting, got %v", c.State())
	}

	store.Update("b", project.AudioSucceeded("audio-b", 3))
	if c.State() != Playing {
		t.Fatalf("expected auto resume, got %v", c.State())
	}
	if c.CurrentIndex() != 1 {
		t.Fatalf("expected segment 1, got %d", c.CurrentIndex())
	}
	if got := c.CurrentTime(); got < 5 || got > 5.02 {
		t.Fatalf("expected resume at segment 1 start, got %v", got)
	}
	if src.lastLoad() != "audio-b" || !src.isPlaying() {
		t.Fatalf("expected audio-b playing")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{Ready, Playing, Waiting, Playing}
	if len(states) != len(want) {
		t.Fatalf("unexpected transitions %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("unexpected transitions %v", states)
		}
	}
}

func TestLastSegmentCompletes(t *testing.T) {
	store := newStore(ptr(2), ptr(3))
	src := &fakeSource{}
	completed := 0
	c := newController(t, store, src, &fakeClock{}, Options{
		OnComplete: func() { completed++ },
	})
	c.Seek(2.5)
	if err := c.SetPlaying(true); err != nil {
		t.Fatalf("play: %v", err)
	}
	c.OnEnded()
	if c.State() != Completed {
		t.Fatalf("expected completed, got %v", c.State())
	}
	if c.CurrentTime() != 0 || completed != 1 || src.isPlaying() {
		t.Fatalf("expected stop at 0 with one completion, time=%v completed=%d", c.CurrentTime(), completed)
	}

	c.OnEnded()
	if completed != 1 {
		t.Fatalf("ended after completion must be ignored")
	}

	if err := c.Replay(); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if c.State() != Playing || c.CurrentIndex() != 0 {
		t.Fatalf("expected replay from first segment, state %v index %d", c.State(), c.CurrentIndex())
	}
}

func TestEndedDebounceAfterAdvance(t *testing.T) {
	store := newStore(ptr(5), ptr(5), ptr(5))
	src := &fakeSource{}
	clock := &fakeClock{now: time.Unix(0, 0)}
	c := newController(t, store, src, clock, Options{})
	if err := c.SetPlaying(true); err != nil {
		t.Fatalf("play: %v", err)
	}
	c.OnEnded()
	if c.CurrentIndex() != 1 {
		t.Fatalf("expected first advance")
	}

	clock.Advance(100 * time.Millisecond)
	c.OnEnded()
	if c.CurrentIndex() != 1 {
		t.Fatalf("spurious ended within debounce advanced to %d", c.CurrentIndex())
	}

	clock.Advance(time.Second)
	c.OnEnded()
	if c.CurrentIndex() != 2 {
		t.Fatalf("expected advance after debounce, got %d", c.CurrentIndex())
	}
}

func TestDriftGuardAttributesEndToPreviousSegment(t *testing.T) {
	for _, tc := range []struct {
		name      string
		local     float64
		threshold float64
		want      int
	}{
		{name: "within default threshold", local: 5.2, want: 1},
		{name: "exact boundary", local: 5.0, want: 1},
		{name: "beyond threshold", local: 5.6, want: 2},
		{name: "custom threshold", local: 5.6, threshold: 1, want: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(ptr(5), ptr(5), ptr(5))
			src := &fakeSource{}
			c := newController(t, store, src, &fakeClock{}, Options{
				DriftThreshold: tc.threshold,
				FrameInterval:  time.Millisecond,
			})
			if err := c.SetPlaying(true); err != nil {
				t.Fatalf("play: %v", err)
			}
			src.SetCurrentTime(tc.local)
			deadline := time.Now().Add(2 * time.Second)
			for c.CurrentTime() != tc.local {
				if time.Now().After(deadline) {
					t.Fatalf("frame loop did not report %v, got %v", tc.local, c.CurrentTime())
				}
				time.Sleep(time.Millisecond)
			}
			c.OnEnded()
			if got := c.CurrentIndex(); got != tc.want {
				t.Fatalf("expected segment %d after ended, got %d", tc.want, got)
			}
		})
	}
}

func TestFrameLoopStopsOnPause(t *testing.T) {
	store := newStore(ptr(5))
	src := &fakeSource{}
	var mu sync.Mutex
	updates := 0
	c := newController(t, store, src, &fakeClock{}, Options{
		FrameInterval: time.Millisecond,
		OnTimeUpdate: func(float64) {
			mu.Lock()
			updates++
			mu.Unlock()
		},
	})
	for i := 0; i < 5; i++ {
		if err := c.SetPlaying(true); err != nil {
			t.Fatalf("play: %v", err)
		}
		if err := c.SetPlaying(false); err != nil {
			t.Fatalf("pause: %v", err)
		}
	}
	if err := c.SetPlaying(true); err != nil {
		t.Fatalf("play: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := c.SetPlaying(false); err != nil {
		t.Fatalf("pause: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	mu.Lock()
	before := updates
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	after := updates
	mu.Unlock()
	if before == 0 {
		t.Fatalf("expected frame updates while playing")
	}
	if after != before {
		t.Fatalf("frame loop kept running after pause: %d -> %d", before, after)
	}
}

func TestPlayRejection(t *testing.T) {
	store := newStore(ptr(5))
	src := &fakeSource{playErr: ErrAborted}
	c := newController(t, store, src, &fakeClock{}, Options{})
	if err := c.SetPlaying(true); err != nil {
		t.Fatalf("abort must be swallowed, got %v", err)
	}
	if c.State() == Playing {
		t.Fatalf("expected paused after abort")
	}

	boom := errors.New("not allowed")
	src.mu.Lock()
	src.playErr = boom
	src.mu.Unlock()
	if err := c.SetPlaying(true); !errors.Is(err, boom) {
		t.Fatalf("expected play error, got %v", err)
	}
	if c.State() == Playing {
		t.Fatalf("expected paused after rejection")
	}

	src.mu.Lock()
	src.playErr = nil
	src.mu.Unlock()
	if err := c.SetPlaying(true); err != nil || c.State() != Playing {
		t.Fatalf("expected retry to play, state %v err %v", c.State(), err)
	}
}

func TestSelectSegmentPlaysWhenComplete(t *testing.T) {
	store := newStore(ptr(2), ptr(2))
	src := &fakeSource{}
	c := newController(t, store, src, &fakeClock{}, Options{})
	if err := c.SelectSegment("b"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if c.CurrentTime() != 2 || c.State() == Playing {
		t.Fatalf("expected seek without play, time %v state %v", c.CurrentTime(), c.State())
	}
	for _, id := range []string{"a", "b"} {
		store.Update(id, project.PromptSucceeded("p"))
		store.Update(id, project.ImageSucceeded("i"))
	}
	if err := c.SelectSegment("a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if c.State() != Playing || c.CurrentIndex() != 0 {
		t.Fatalf("expected playback of a, state %v index %d", c.State(), c.CurrentIndex())
	}
}

func TestPlaySegmentAfterRegeneration(t *testing.T) {
	store := newStore(ptr(2), nil, ptr(2))
	src := &fakeSource{}
	c := newController(t, store, src, &fakeClock{}, Options{})

	store.Update("b", project.AudioLoading())
	store.Update("b", project.AudioSucceeded("audio-b-v2", 3))
	if err := c.PlaySegment("b"); err != nil {
		t.Fatalf("play segment: %v", err)
	}
	if c.State() != Playing || c.CurrentIndex() != 1 || c.CurrentTime() != 2 {
		t.Fatalf("expected b playing from 2s, state %v index %d time %v", c.State(), c.CurrentIndex(), c.CurrentTime())
	}
	if src.lastLoad() != "audio-b-v2" || !src.isPlaying() {
		t.Fatalf("expected regenerated clip playing, loaded %q", src.lastLoad())
	}
	if c.Total() != 7 {
		t.Fatalf("timeline should pick up the new duration, total %v", c.Total())
	}
	if err := c.PlaySegment("zzz"); err == nil {
		t.Fatalf("expected error for unknown segment")
	}
}

func TestEmptyTimelineIsIdle(t *testing.T) {
	store := project.NewStore(project.Initial())
	src := &fakeSource{}
	c := newController(t, store, src, &fakeClock{}, Options{})
	if c.State() != Idle || c.CurrentIndex() != -1 {
		t.Fatalf("expected idle, got %v", c.State())
	}
	if err := c.SetPlaying(true); err != nil || c.State() != Idle {
		t.Fatalf("play on empty timeline must be a no-op")
	}
}

func TestSimulatedSourcePlaysThrough(t *testing.T) {
	store := newStore(ptr(0.03), ptr(0.03))
	src := NewSimulatedSource(func(url string) float64 { return 0.03 })
	done := make(chan struct{})
	c := New(store, src, Options{
		EndedDebounce: -1,
		FrameInterval: time.Millisecond,
		OnComplete:    func() { close(done) },
	})
	defer c.Close()
	if err := c.SetPlaying(true); err != nil {
		t.Fatalf("play: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("playback did not complete, state %v", c.State())
	}
	if c.State() != Completed {
		t.Fatalf("expected completed, got %v", c.State())
	}
}
