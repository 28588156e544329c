// Package playback maps one global playhead onto per-segment audio clips that
// arrive independently, advancing across segment boundaries and waiting when
// the next clip is not ready yet.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/contentbuddy/contentbuddy/internal/project"
	"github.com/contentbuddy/contentbuddy/internal/timeline"
)

// State of the controller.
type State int

const (
	Idle State = iota
	Ready
	Playing
	Waiting
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Waiting:
		return "waiting"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

const (
	DefaultDriftThreshold = 0.5
	DefaultEndedDebounce  = 500 * time.Millisecond
	DefaultAdvanceEpsilon = 0.01
	DefaultFrameInterval  = 16 * time.Millisecond
)

// Options tune the controller. Callbacks run on the goroutine that caused the
// change, after internal locks are released. They must not dispatch to the
// project store synchronously.
type Options struct {
	DriftThreshold float64
	EndedDebounce  time.Duration
	AdvanceEpsilon float64
	FrameInterval  time.Duration
	Now            func() time.Time
	Logger         *slog.Logger

	OnTimeUpdate    func(seconds float64)
	OnStateChange   func(State)
	OnSegmentChange func(segmentID string)
	OnComplete      func()
}

func (o *Options) applyDefaults() {
	if o.DriftThreshold <= 0 {
		o.DriftThreshold = DefaultDriftThreshold
	}
	if o.EndedDebounce < 0 {
		o.EndedDebounce = 0
	} else if o.EndedDebounce == 0 {
		o.EndedDebounce = DefaultEndedDebounce
	}
	if o.AdvanceEpsilon <= 0 {
		o.AdvanceEpsilon = DefaultAdvanceEpsilon
	}
	if o.FrameInterval <= 0 {
		o.FrameInterval = DefaultFrameInterval
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Controller drives a single AudioSource from the project timeline.
type Controller struct {
	source AudioSource
	opts   Options
	log    *slog.Logger

	mu          sync.Mutex
	segments    []timeline.Segment
	currentTime float64
	index       int
	loadedID    string
	loadedURL   string
	state       State
	waitingFor  string
	lastAdvance time.Time
	frameStop   chan struct{}
	closed      bool

	unsubscribe func()
}

// New attaches a controller to store and source. The controller follows the
// store until Close.
func New(store *project.Store, source AudioSource, opts Options) *Controller {
	opts.applyDefaults()
	c := &Controller{
		source: source,
		opts:   opts,
		log:    opts.Logger.With(slog.String("component", "playback")),
		index:  -1,
	}
	snapshot := store.Snapshot()
	c.segments = timeline.FromState(snapshot)
	source.OnEnded(c.OnEnded)
	fx := c.seekLocked(0)
	c.unsubscribe = store.Subscribe(c.watch)
	run(fx)
	return c
}

type effects []func()

func run(fx effects) {
	for _, fn := range fx {
		fn()
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

// CurrentIndex is the position of the loaded segment, or -1.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// WaitingFor returns the id of the segment playback is blocked on.
func (c *Controller) WaitingFor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitingFor
}

func (c *Controller) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return timeline.Total(c.segments)
}

// Seek moves the playhead to t, clamped to the timeline.
func (c *Controller) Seek(t float64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	fx := c.seekLocked(t)
	c.mu.Unlock()
	run(fx)
}

// SetPlaying starts or pauses the current segment. Starting a segment whose
// audio is not ready is a no-op. Play failures other than ErrAborted are
// logged and returned; the controller stays paused either way.
func (c *Controller) SetPlaying(playing bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	var fx effects
	var err error
	if playing {
		fx, err = c.startLocked()
	} else {
		fx = c.pauseLocked()
	}
	c.mu.Unlock()
	run(fx)
	return err
}

// Replay restarts from the beginning.
func (c *Controller) Replay() error {
	c.Seek(0)
	return c.SetPlaying(true)
}

// SelectSegment seeks to the start of a segment and plays it when every
// segment has all of its assets.
func (c *Controller) SelectSegment(id string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	idx := timeline.IndexOf(c.segments, id)
	if idx < 0 {
		c.mu.Unlock()
		return nil
	}
	allComplete := true
	for _, seg := range c.segments {
		if !seg.Assets.Complete() {
			allComplete = false
			break
		}
	}
	fx := c.seekLocked(c.segments[idx].StartTime)
	c.mu.Unlock()
	run(fx)
	if allComplete {
		return c.SetPlaying(true)
	}
	return nil
}

// PlaySegment seeks to the start of a segment and plays it whether or not the
// rest of the project is complete. Used after regenerating one segment's audio
// so the new clip can be heard straight away.
func (c *Controller) PlaySegment(id string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	idx := timeline.IndexOf(c.segments, id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("unknown segment %q", id)
	}
	fx := c.seekLocked(c.segments[idx].StartTime)
	c.mu.Unlock()
	run(fx)
	return c.SetPlaying(true)
}

// SetPlaybackRate forwards the rate to sources that support it.
func (c *Controller) SetPlaybackRate(rate float64) {
	if rs, ok := c.source.(RateSetter); ok {
		rs.SetRate(rate)
	}
}

// OnEnded handles end of media for the loaded clip.
func (c *Controller) OnEnded() {
	c.mu.Lock()
	if c.closed || c.state != Playing || len(c.segments) == 0 {
		c.mu.Unlock()
		return
	}
	now := c.opts.Now()
	if !c.lastAdvance.IsZero() && now.Sub(c.lastAdvance) < c.opts.EndedDebounce {
		c.mu.Unlock()
		c.log.Debug("ignoring ended event after advance")
		return
	}
	finished := c.finishedIndexLocked()
	var fx effects
	if finished >= len(c.segments)-1 {
		fx = c.completeLocked()
	} else {
		next := c.segments[finished+1]
		if next.Assets.AudioStatus == project.StatusSuccess {
			fx = c.advanceLocked(finished + 1)
		} else {
			fx = c.waitLocked(finished, next.ID)
		}
	}
	c.mu.Unlock()
	run(fx)
}

// Close detaches from the store and stops playback.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopFramesLocked()
	c.source.Pause()
	unsubscribe := c.unsubscribe
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// finishedIndexLocked attributes an ended event to a segment. When the
// playhead has already crossed into the next segment by less than the drift
// threshold, the clip that ended belongs to the previous one.
func (c *Controller) finishedIndexLocked() int {
	located := timeline.Locate(c.segments, c.currentTime)
	if located > 0 && located != c.index {
		local := c.currentTime - c.segments[located].StartTime
		if local < c.opts.DriftThreshold {
			return located - 1
		}
	}
	return located
}

func (c *Controller) watch(s project.State) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.segments = timeline.FromState(s)
	var fx effects
	switch c.state {
	case Waiting:
		idx := timeline.IndexOf(c.segments, c.waitingFor)
		switch {
		case idx < 0:
			c.waitingFor = ""
			fx = append(fx, c.setStateLocked(Ready)...)
			fx = append(fx, c.seekLocked(c.currentTime)...)
		case c.segments[idx].Assets.AudioStatus == project.StatusSuccess:
			fx = c.advanceLocked(idx)
		}
	case Playing:
		if idx := timeline.IndexOf(c.segments, c.loadedID); idx >= 0 {
			c.index = idx
		} else {
			fx = append(fx, c.pauseLocked()...)
			fx = append(fx, c.seekLocked(c.currentTime)...)
		}
	case Completed:
	default:
		fx = c.seekLocked(c.currentTime)
	}
	c.mu.Unlock()
	run(fx)
}

func (c *Controller) seekLocked(t float64) effects {
	var fx effects
	total := timeline.Total(c.segments)
	if t < 0 {
		t = 0
	}
	if t > total {
		t = total
	}
	c.currentTime = t
	idx := timeline.Locate(c.segments, t)
	if idx < 0 {
		c.stopFramesLocked()
		c.source.Pause()
		c.index = -1
		c.loadedID = ""
		c.loadedURL = ""
		c.waitingFor = ""
		fx = append(fx, c.setStateLocked(Idle)...)
		return append(fx, c.timeUpdate(t))
	}

	wasPlaying := c.state == Playing
	if c.state == Waiting {
		c.waitingFor = ""
	}
	seg := c.segments[idx]
	fx = append(fx, c.loadLocked(idx)...)
	if c.loadedURL != "" {
		c.source.SetCurrentTime(t - seg.StartTime)
	}
	fx = append(fx, c.timeUpdate(t))

	switch {
	case wasPlaying && c.loadedURL != "":
		fx = append(fx, c.playLocked()...)
	case wasPlaying:
		c.stopFramesLocked()
		c.source.Pause()
		fx = append(fx, c.setStateLocked(Ready)...)
	default:
		fx = append(fx, c.setStateLocked(Ready)...)
	}
	return fx
}

// loadLocked makes idx the current segment and loads its audio when the
// segment changed or its url differs from the one loaded.
func (c *Controller) loadLocked(idx int) effects {
	var fx effects
	seg := c.segments[idx]
	url := ""
	if seg.Assets.AudioStatus == project.StatusSuccess && seg.Assets.AudioURL != nil {
		url = *seg.Assets.AudioURL
	}
	changed := idx != c.index || seg.ID != c.loadedID
	if changed || url != c.loadedURL {
		c.source.Pause()
		if url != "" {
			if err := c.source.Load(url); err != nil {
				c.log.Warn("load segment audio failed", slog.String("segment_id", seg.ID), slogError(err))
				url = ""
			}
		}
		c.loadedURL = url
	}
	c.index = idx
	c.loadedID = seg.ID
	if changed {
		if cb := c.opts.OnSegmentChange; cb != nil {
			id := seg.ID
			fx = append(fx, func() { cb(id) })
		}
	}
	return fx
}

func (c *Controller) startLocked() (effects, error) {
	if len(c.segments) == 0 || c.state == Playing {
		return nil, nil
	}
	var fx effects
	if c.state == Completed || c.index < 0 {
		fx = append(fx, c.seekLocked(c.currentTime)...)
	}
	if c.state == Waiting {
		return fx, nil
	}
	seg := c.segments[c.index]
	if seg.Assets.AudioStatus != project.StatusSuccess {
		return fx, nil
	}
	fx = append(fx, c.loadLocked(c.index)...)
	if c.loadedURL == "" {
		return fx, nil
	}
	if err := c.source.Play(); err != nil {
		if errors.Is(err, ErrAborted) {
			return fx, nil
		}
		c.log.Warn("play failed", slog.String("segment_id", seg.ID), slogError(err))
		return fx, err
	}
	fx = append(fx, c.setStateLocked(Playing)...)
	c.startFramesLocked()
	return fx, nil
}

func (c *Controller) playLocked() effects {
	if err := c.source.Play(); err != nil {
		c.stopFramesLocked()
		if !errors.Is(err, ErrAborted) {
			c.log.Warn("play failed", slog.String("segment_id", c.loadedID), slogError(err))
		}
		return c.setStateLocked(Ready)
	}
	fx := c.setStateLocked(Playing)
	c.startFramesLocked()
	return fx
}

func (c *Controller) pauseLocked() effects {
	c.source.Pause()
	c.stopFramesLocked()
	c.waitingFor = ""
	if c.state == Playing || c.state == Waiting {
		return c.setStateLocked(Ready)
	}
	return nil
}

func (c *Controller) advanceLocked(idx int) effects {
	var fx effects
	seg := c.segments[idx]
	c.waitingFor = ""
	c.currentTime = seg.StartTime + c.opts.AdvanceEpsilon
	fx = append(fx, c.loadLocked(idx)...)
	if c.loadedURL != "" {
		c.source.SetCurrentTime(0)
	}
	c.lastAdvance = c.opts.Now()
	fx = append(fx, c.timeUpdate(c.currentTime))
	fx = append(fx, c.playLocked()...)
	return fx
}

func (c *Controller) waitLocked(finished int, nextID string) effects {
	c.source.Pause()
	c.stopFramesLocked()
	if end := c.segments[finished].End(); c.currentTime > end {
		c.currentTime = end
	}
	c.waitingFor = nextID
	c.log.Debug("waiting for next segment audio", slog.String("segment_id", nextID))
	return c.setStateLocked(Waiting)
}

func (c *Controller) completeLocked() effects {
	c.source.Pause()
	c.stopFramesLocked()
	c.currentTime = 0
	c.waitingFor = ""
	fx := effects{c.timeUpdate(0)}
	fx = append(fx, c.setStateLocked(Completed)...)
	if cb := c.opts.OnComplete; cb != nil {
		fx = append(fx, cb)
	}
	return fx
}

func (c *Controller) setStateLocked(next State) effects {
	if c.state == next {
		return nil
	}
	c.state = next
	if cb := c.opts.OnStateChange; cb != nil {
		return effects{func() { cb(next) }}
	}
	return nil
}

func (c *Controller) timeUpdate(t float64) func() {
	cb := c.opts.OnTimeUpdate
	return func() {
		if cb != nil {
			cb(t)
		}
	}
}

// startFramesLocked runs the sampling loop. Only one loop is live at a time;
// each loop exits once its stop channel is closed or replaced.
func (c *Controller) startFramesLocked() {
	if c.frameStop != nil {
		return
	}
	stop := make(chan struct{})
	c.frameStop = stop
	go c.frames(stop)
}

func (c *Controller) stopFramesLocked() {
	if c.frameStop != nil {
		close(c.frameStop)
		c.frameStop = nil
	}
}

func (c *Controller) frames(stop chan struct{}) {
	ticker := time.NewTicker(c.opts.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		c.mu.Lock()
		if c.frameStop != stop || c.state != Playing || c.index < 0 {
			c.mu.Unlock()
			return
		}
		t := c.segments[c.index].StartTime + c.source.CurrentTime()
		c.currentTime = t
		cb := c.opts.OnTimeUpdate
		c.mu.Unlock()
		if cb != nil {
			cb(t)
		}
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
