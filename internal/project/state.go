// Package project holds the state of one editing session: segments, generated
// assets per segment and the review settings. State changes go through Reduce,
// which never mutates its input.
package project

import (
	"github.com/contentbuddy/contentbuddy/internal/segment"
)

// Steps of the editing wizard.
const (
	StepScript = iota + 1
	StepSegments
	StepVoice
	StepReview
	StepExport
)

// PlaybackRates is the cycle order for CyclePlaybackRate.
var PlaybackRates = []float64{0.5, 1, 1.25, 1.5, 2}

// State is an immutable snapshot of a project.
type State struct {
	Script              string                   `json:"script"`
	Segments            []segment.Segment        `json:"segments"`
	Assets              map[string]SegmentAssets `json:"assets"`
	VoiceID             string                   `json:"voiceId"`
	VisualStyle         string                   `json:"visualStyle"`
	CurrentStep         int                      `json:"currentStep"`
	PlaybackRate        float64                  `json:"playbackRate"`
	MergedAudioURL      *string                  `json:"mergedAudioUrl,omitempty"`
	MergedAudioDuration *float64                 `json:"mergedAudioDuration,omitempty"`
}

// Initial returns the starting state.
func Initial() State {
	return State{
		Assets:       map[string]SegmentAssets{},
		VisualStyle:  "default",
		CurrentStep:  StepScript,
		PlaybackRate: 1,
	}
}

// AssetsFor returns the assets of a segment, or the all-idle default.
func (s State) AssetsFor(id string) SegmentAssets {
	if a, ok := s.Assets[id]; ok {
		return a
	}
	return EmptyAssets()
}

// HasGeneratedContent reports whether leaving the review step would discard
// generated work.
func (s State) HasGeneratedContent() bool {
	for _, a := range s.Assets {
		if a.HasContent() {
			return true
		}
	}
	return s.MergedAudioURL != nil
}

// AllComplete reports whether every segment has prompt, image and audio.
func (s State) AllComplete() bool {
	if len(s.Segments) == 0 {
		return false
	}
	return s.CompletedCount() == len(s.Segments)
}

// CompletedCount counts segments whose assets are all complete.
func (s State) CompletedCount() int {
	n := 0
	for _, seg := range s.Segments {
		if a, ok := s.Assets[seg.ID]; ok && a.Complete() {
			n++
		}
	}
	return n
}

// Action is a state transition understood by Reduce.
type Action interface {
	isAction()
}

type (
	SetScript      struct{ Script string }
	SetVoiceID     struct{ VoiceID string }
	SetVisualStyle struct{ Style string }
	SetSegments    struct{ Segments []segment.Segment }
	SetCurrentStep struct{ Step int }

	UpdateSegmentText struct {
		ID   string
		Text string
	}
	MergeSegments struct{ ID string }
	SplitSegment  struct {
		ID     string
		Offset int
	}

	// InitializeAssets ensures an entry exists for every current segment.
	InitializeAssets struct{}

	UpdateAsset struct {
		SegmentID string
		Update    AssetUpdate
	}

	ClearGeneratedAssets struct{}
	SetMergedAudio       struct {
		URL      string
		Duration float64
	}
	ClearMergedAudio  struct{}
	CyclePlaybackRate struct{}
	ResetProject      struct{}
)

func (SetScript) isAction()            {}
func (SetVoiceID) isAction()           {}
func (SetVisualStyle) isAction()       {}
func (SetSegments) isAction()          {}
func (SetCurrentStep) isAction()       {}
func (UpdateSegmentText) isAction()    {}
func (MergeSegments) isAction()        {}
func (SplitSegment) isAction()         {}
func (InitializeAssets) isAction()     {}
func (UpdateAsset) isAction()          {}
func (ClearGeneratedAssets) isAction() {}
func (SetMergedAudio) isAction()       {}
func (ClearMergedAudio) isAction()     {}
func (CyclePlaybackRate) isAction()    {}
func (ResetProject) isAction()         {}

// Reduce applies an action and returns the next state. Maps and slices of the
// previous state are never written to.
func Reduce(s State, action Action) State {
	switch a := action.(type) {
	case SetScript:
		s.Script = a.Script
	case SetVoiceID:
		s.VoiceID = a.VoiceID
	case SetVisualStyle:
		s.VisualStyle = a.Style
	case SetSegments:
		s.Segments = append([]segment.Segment(nil), a.Segments...)
	case SetCurrentStep:
		if a.Step >= StepScript && a.Step <= StepExport {
			s.CurrentStep = a.Step
		}
	case UpdateSegmentText:
		s.Segments = segment.UpdateText(s.Segments, a.ID, a.Text)
	case MergeSegments:
		s.Segments = segment.Merge(s.Segments, a.ID)
	case SplitSegment:
		s.Segments = segment.Split(s.Segments, a.ID, a.Offset)
	case InitializeAssets:
		assets := make(map[string]SegmentAssets, len(s.Segments))
		for _, seg := range s.Segments {
			if existing, ok := s.Assets[seg.ID]; ok {
				assets[seg.ID] = existing
				continue
			}
			assets[seg.ID] = EmptyAssets()
		}
		s.Assets = assets
	case UpdateAsset:
		if a.Update == nil {
			return s
		}
		assets := copyAssets(s.Assets)
		entry := s.AssetsFor(a.SegmentID).clone()
		a.Update(&entry)
		assets[a.SegmentID] = entry
		s.Assets = assets
	case ClearGeneratedAssets:
		s.Assets = map[string]SegmentAssets{}
		s.MergedAudioURL = nil
		s.MergedAudioDuration = nil
	case SetMergedAudio:
		url, duration := a.URL, a.Duration
		s.MergedAudioURL = &url
		s.MergedAudioDuration = &duration
	case ClearMergedAudio:
		s.MergedAudioURL = nil
		s.MergedAudioDuration = nil
	case CyclePlaybackRate:
		s.PlaybackRate = nextRate(s.PlaybackRate)
	case ResetProject:
		return Initial()
	}
	return s
}

func copyAssets(in map[string]SegmentAssets) map[string]SegmentAssets {
	out := make(map[string]SegmentAssets, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func nextRate(current float64) float64 {
	for i, r := range PlaybackRates {
		if r == current {
			return PlaybackRates[(i+1)%len(PlaybackRates)]
		}
	}
	return 1
}
