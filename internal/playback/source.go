package playback

import (
	"errors"
	"sync"
	"time"
)

// ErrAborted is returned by sources when a play request was interrupted by a
// source change. The controller drops it silently.
var ErrAborted = errors.New("playback aborted")

// AudioSource is a single media element the controller drives.
type AudioSource interface {
	Load(url string) error
	Play() error
	Pause()
	CurrentTime() float64
	SetCurrentTime(seconds float64)
	OnEnded(fn func())
}

// RateSetter is implemented by sources that support variable speed.
type RateSetter interface {
	SetRate(rate float64)
}

// SimulatedSource plays nothing; it advances a clock and reports end of media
// once the loaded clip's duration has elapsed. Durations come from Resolve.
type SimulatedSource struct {
	Resolve func(url string) float64

	mu        sync.Mutex
	url       string
	duration  float64
	position  float64
	rate      float64
	playing   bool
	startedAt time.Time
	timer     *time.Timer
	gen       int
	ended     func()
}

func NewSimulatedSource(resolve func(url string) float64) *SimulatedSource {
	return &SimulatedSource{Resolve: resolve, rate: 1}
}

func (s *SimulatedSource) Load(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.url = url
	s.position = 0
	s.duration = 0
	if s.Resolve != nil {
		s.duration = s.Resolve(url)
	}
	return nil
}

func (s *SimulatedSource) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.url == "" {
		return ErrAborted
	}
	if s.playing {
		return nil
	}
	s.playing = true
	s.startedAt = time.Now()
	s.scheduleLocked()
	return nil
}

func (s *SimulatedSource) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.position = s.positionLocked()
	s.stopLocked()
}

func (s *SimulatedSource) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *SimulatedSource) SetCurrentTime(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	if seconds > s.duration {
		seconds = s.duration
	}
	s.position = seconds
	if s.playing {
		s.startedAt = time.Now()
		s.scheduleLocked()
	}
}

func (s *SimulatedSource) SetRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rate <= 0 {
		return
	}
	if s.playing {
		s.position = s.positionLocked()
		s.startedAt = time.Now()
	}
	s.rate = rate
	if s.playing {
		s.scheduleLocked()
	}
}

func (s *SimulatedSource) OnEnded(fn func()) {
	s.mu.Lock()
	s.ended = fn
	s.mu.Unlock()
}

func (s *SimulatedSource) positionLocked() float64 {
	pos := s.position
	if s.playing {
		pos += time.Since(s.startedAt).Seconds() * s.rate
	}
	if pos > s.duration {
		pos = s.duration
	}
	return pos
}

func (s *SimulatedSource) stopLocked() {
	s.playing = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *SimulatedSource) scheduleLocked() {
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	remaining := (s.duration - s.position) / s.rate
	if remaining < 0 {
		remaining = 0
	}
	s.timer = time.AfterFunc(time.Duration(remaining*float64(time.Second)), func() {
		s.mu.Lock()
		if gen != s.gen || !s.playing {
			s.mu.Unlock()
			return
		}
		s.position = s.duration
		s.playing = false
		s.timer = nil
		ended := s.ended
		s.mu.Unlock()
		if ended != nil {
			ended()
		}
	})
}
