package protocol

import "time"

// Generation kinds.
const (
	KindSlice  = "slice"
	KindPrompt = "prompt"
	KindImage  = "image"
	KindAudio  = "audio"
	KindPinyin = "pinyin"
)

// Generation outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

const (
	SubjectGeneratePrefix  = "generate"
	SubjectGenerateAll     = "generate.>"
	SubjectExportStatus    = "export.job.status"
	SubjectDictionarySaved = "dictionary.saved"
)

// GenerateSubject returns generate.<kind>.<outcome>.
func GenerateSubject(kind, outcome string) string {
	return SubjectGeneratePrefix + "." + kind + "." + outcome
}

// GenerationEvent reports one vendor call made on behalf of a segment.
type GenerationEvent struct {
	SessionID  string    `json:"session_id,omitempty"`
	SegmentID  string    `json:"segment_id,omitempty"`
	Kind       string    `json:"kind"`
	Outcome    string    `json:"outcome"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ExportStatus is published whenever a tracked export job changes status.
type ExportStatus struct {
	SessionID      string    `json:"session_id,omitempty"`
	JobID          string    `json:"job_id"`
	Status         string    `json:"status"`
	FolderPath     string    `json:"folder_path,omitempty"`
	OutputFilePath string    `json:"output_file_path,omitempty"`
	Error          string    `json:"error,omitempty"`
	Message        string    `json:"message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// DictionarySaved lists words written to the shared dictionary.
type DictionarySaved struct {
	SessionID string    `json:"session_id,omitempty"`
	Words     []string  `json:"words"`
	Timestamp time.Time `json:"timestamp"`
}
