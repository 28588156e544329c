package segment

import (
	"strings"

	"github.com/google/uuid"
)

// MergeSeparator joins the texts of two merged segments.
const MergeSeparator = "\n\n"

// SplitSuffix is appended to the id of the second half of a split.
const SplitSuffix = "_split"

// Segment is one scene-sized slice of the script.
type Segment struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// NewID returns a short random segment identifier such as "seg_1a2b3c4d".
func NewID() string {
	return "seg_" + uuid.NewString()[:8]
}

// FromTexts assigns fresh ids to sliced texts, trimming surrounding whitespace.
func FromTexts(texts []string) []Segment {
	out := make([]Segment, 0, len(texts))
	for _, text := range texts {
		out = append(out, Segment{ID: NewID(), Text: strings.TrimSpace(text)})
	}
	return out
}

// Index returns the position of id in segs or -1.
func Index(segs []Segment, id string) int {
	for i, seg := range segs {
		if seg.ID == id {
			return i
		}
	}
	return -1
}

// UpdateText replaces the text of the segment with the given id.
func UpdateText(segs []Segment, id, text string) []Segment {
	out := make([]Segment, len(segs))
	for i, seg := range segs {
		if seg.ID == id {
			seg.Text = text
		}
		out[i] = seg
	}
	return out
}

// Merge folds the segment after id into it. The merged segment keeps the
// first id. Unknown ids and the last segment leave the list untouched.
func Merge(segs []Segment, id string) []Segment {
	index := Index(segs, id)
	if index == -1 || index >= len(segs)-1 {
		return segs
	}
	merged := Segment{
		ID:   segs[index].ID,
		Text: segs[index].Text + MergeSeparator + segs[index+1].Text,
	}
	out := make([]Segment, 0, len(segs)-1)
	out = append(out, segs[:index]...)
	out = append(out, merged)
	out = append(out, segs[index+2:]...)
	return out
}

// Split cuts the segment with the given id at a character offset. Both halves
// are trimmed; if either ends up empty the list is returned unchanged.
func Split(segs []Segment, id string, offset int) []Segment {
	index := Index(segs, id)
	if index == -1 {
		return segs
	}
	runes := []rune(segs[index].Text)
	if offset < 0 {
		offset = 0
	}
	if offset > len(runes) {
		offset = len(runes)
	}
	first := strings.TrimSpace(string(runes[:offset]))
	second := strings.TrimSpace(string(runes[offset:]))
	if first == "" || second == "" {
		return segs
	}
	out := make([]Segment, 0, len(segs)+1)
	out = append(out, segs[:index]...)
	out = append(out,
		Segment{ID: segs[index].ID, Text: first},
		Segment{ID: segs[index].ID + SplitSuffix, Text: second},
	)
	out = append(out, segs[index+1:]...)
	return out
}

// Find returns the segment with the given id.
func Find(segs []Segment, id string) (Segment, bool) {
	if i := Index(segs, id); i >= 0 {
		return segs[i], true
	}
	return Segment{}, false
}
