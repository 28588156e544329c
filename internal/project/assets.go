package project

import "github.com/contentbuddy/contentbuddy/internal/pronunciation"

// Status tracks one generation field of a segment.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

const (
	DefaultVoiceSpeed   = 1.2
	DefaultVoiceEmotion = "neutral"
)

// SegmentAssets holds everything generated for one segment.
type SegmentAssets struct {
	ImagePrompt  *string `json:"imagePrompt"`
	PromptStatus Status  `json:"promptStatus"`
	PromptError  string  `json:"promptError,omitempty"`

	ImageURL    *string `json:"imageUrl"`
	ImageStatus Status  `json:"imageStatus"`
	ImageError  string  `json:"imageError,omitempty"`

	AudioURL      *string  `json:"audioUrl"`
	AudioDuration *float64 `json:"audioDuration"`
	AudioStatus   Status   `json:"audioStatus"`
	AudioError    string   `json:"audioError,omitempty"`

	CustomPronunciations []pronunciation.Item `json:"customPronunciations,omitempty"`
	VoiceSpeed           float64              `json:"voiceSpeed"`
	VoiceEmotion         string               `json:"voiceEmotion"`
}

// EmptyAssets returns the all-idle default entry.
func EmptyAssets() SegmentAssets {
	return SegmentAssets{
		PromptStatus: StatusIdle,
		ImageStatus:  StatusIdle,
		AudioStatus:  StatusIdle,
		VoiceSpeed:   DefaultVoiceSpeed,
		VoiceEmotion: DefaultVoiceEmotion,
	}
}

// Complete reports whether the image and the audio both succeeded. The prompt
// only feeds the image and may have been entered by hand.
func (a SegmentAssets) Complete() bool {
	return a.ImageStatus == StatusSuccess && a.AudioStatus == StatusSuccess
}

// HasContent reports whether a prompt, image or audio clip is present.
// Loading and error states alone are not content.
func (a SegmentAssets) HasContent() bool {
	return nonEmpty(a.ImagePrompt) || nonEmpty(a.ImageURL) || nonEmpty(a.AudioURL)
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

func (a SegmentAssets) clone() SegmentAssets {
	a.CustomPronunciations = pronunciation.Clone(a.CustomPronunciations)
	return a
}

// AssetUpdate replaces one or more fields of a SegmentAssets value.
type AssetUpdate func(*SegmentAssets)

func PromptLoading() AssetUpdate {
	return func(a *SegmentAssets) {
		a.PromptStatus = StatusLoading
		a.PromptError = ""
	}
}

func PromptSucceeded(prompt string) AssetUpdate {
	return func(a *SegmentAssets) {
		a.ImagePrompt = &prompt
		a.PromptStatus = StatusSuccess
		a.PromptError = ""
	}
}

func PromptFailed(msg string) AssetUpdate {
	return func(a *SegmentAssets) {
		a.PromptStatus = StatusError
		a.PromptError = msg
	}
}

// SetImagePrompt stores a hand-edited prompt.
func SetImagePrompt(prompt string) AssetUpdate {
	return func(a *SegmentAssets) {
		a.ImagePrompt = &prompt
	}
}

func ImageLoading() AssetUpdate {
	return func(a *SegmentAssets) {
		a.ImageStatus = StatusLoading
		a.ImageError = ""
	}
}

func ImageSucceeded(url string) AssetUpdate {
	return func(a *SegmentAssets) {
		a.ImageURL = &url
		a.ImageStatus = StatusSuccess
		a.ImageError = ""
	}
}

func ImageFailed(msg string) AssetUpdate {
	return func(a *SegmentAssets) {
		a.ImageStatus = StatusError
		a.ImageError = msg
	}
}

func AudioLoading() AssetUpdate {
	return func(a *SegmentAssets) {
		a.AudioStatus = StatusLoading
		a.AudioError = ""
	}
}

// AudioSucceeded sets url, duration and status in one update so observers
// never see a successful status without a duration.
func AudioSucceeded(url string, duration float64) AssetUpdate {
	return func(a *SegmentAssets) {
		a.AudioURL = &url
		a.AudioDuration = &duration
		a.AudioStatus = StatusSuccess
		a.AudioError = ""
	}
}

func AudioFailed(msg string) AssetUpdate {
	return func(a *SegmentAssets) {
		a.AudioStatus = StatusError
		a.AudioError = msg
	}
}

func SetCustomPronunciations(items []pronunciation.Item) AssetUpdate {
	items = pronunciation.Clone(items)
	return func(a *SegmentAssets) {
		a.CustomPronunciations = items
	}
}

// SetVoiceSettings updates speed and emotion; zero values keep the current setting.
func SetVoiceSettings(speed float64, emotion string) AssetUpdate {
	return func(a *SegmentAssets) {
		if speed > 0 {
			a.VoiceSpeed = speed
		}
		if emotion != "" {
			a.VoiceEmotion = emotion
		}
	}
}
