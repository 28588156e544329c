package api

import (
	"github.com/contentbuddy/contentbuddy/internal/audio"
	"github.com/contentbuddy/contentbuddy/internal/dictionary"
	"github.com/contentbuddy/contentbuddy/internal/llm"
	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
	"github.com/contentbuddy/contentbuddy/internal/segment"
)

// SessionHeader carries the caller's project session id.
const SessionHeader = "X-Session-ID"

// ErrorResponse is the body of every 4xx/5xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type SliceRequest struct {
	Script string `json:"script" validate:"min=10"`
}

type SliceResponse struct {
	Segments []segment.Segment `json:"segments"`
}

type PromptRequest struct {
	SegmentID string `json:"segmentId"`
	Text      string `json:"text" validate:"min=1"`
	Style     string `json:"style,omitempty"`
}

type PromptResponse struct {
	SegmentID string `json:"segmentId"`
	Prompt    string `json:"prompt"`
}

type ImageRequest struct {
	SegmentID string `json:"segmentId"`
	Prompt    string `json:"prompt" validate:"min=1"`
}

type ImageResponse struct {
	SegmentID string `json:"segmentId"`
	ImageURL  string `json:"imageUrl"`
}

type AudioRequest struct {
	SegmentID         string               `json:"segmentId"`
	Text              string               `json:"text" validate:"min=1"`
	VoiceID           string               `json:"voiceId" validate:"min=1"`
	PronunciationDict []pronunciation.Item `json:"pronunciationDict,omitempty"`
	Speed             *float64             `json:"speed,omitempty" validate:"omitempty,min=0.5,max=2"`
	Emotion           string               `json:"emotion,omitempty"`
}

type AudioResponse struct {
	SegmentID string  `json:"segmentId"`
	AudioURL  string  `json:"audioUrl"`
	Duration  float64 `json:"duration"`
}

type DictionaryResponse struct {
	PronunciationDict []pronunciation.Item `json:"pronunciationDict"`
}

type WordRequest struct {
	Word string `json:"word" validate:"required"`
}

type CheckResponse struct {
	Exists bool              `json:"exists"`
	Entry  *dictionary.Entry `json:"entry"`
}

type SaveEntry struct {
	Word   string `json:"word" validate:"required"`
	Pinyin string `json:"pinyin" validate:"required"`
}

// SaveRequest holds either a single word (with an optional row to update)
// or a batch of entries.
type SaveRequest struct {
	Word     string      `json:"word,omitempty" validate:"required_without=Entries"`
	Pinyin   string      `json:"pinyin,omitempty" validate:"required_without=Entries"`
	RowIndex *int        `json:"rowIndex,omitempty" validate:"omitempty,min=1"`
	Entries  []SaveEntry `json:"entries,omitempty" validate:"omitempty,dive"`
}

type SaveResponse struct {
	Success bool `json:"success"`
}

type PinyinResponse struct {
	Pinyin string `json:"pinyin"`
}

type ExportResponse struct {
	JobID      string `json:"jobId"`
	Status     string `json:"status"`
	FolderPath string `json:"folderPath"`
}

type ExportStatusResponse struct {
	Status         string `json:"status"`
	OutputFilePath string `json:"outputFilePath,omitempty"`
	Error          string `json:"error,omitempty"`
	Message        string `json:"message,omitempty"`
}

type ClipsRequest struct {
	Segments []audio.Clip `json:"segments" validate:"min=1,dive"`
}

type MergeResponse struct {
	AudioURL string  `json:"audioUrl"`
	Duration float64 `json:"duration"`
}

type StylesResponse struct {
	Styles []llm.Style `json:"styles"`
}
