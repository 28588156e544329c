// Package timeline lays segments end to end using their narration length.
package timeline

import (
	"github.com/contentbuddy/contentbuddy/internal/project"
	"github.com/contentbuddy/contentbuddy/internal/segment"
)

// DefaultSegmentDuration is used for segments without generated audio, in seconds.
const DefaultSegmentDuration = 5.0

// Segment is a segment placed on the timeline.
type Segment struct {
	segment.Segment
	StartTime float64               `json:"startTime"`
	Duration  float64               `json:"duration"`
	Assets    project.SegmentAssets `json:"assets"`
}

// End returns StartTime + Duration.
func (s Segment) End() float64 {
	return s.StartTime + s.Duration
}

// Build places segments in order. A recorded audio duration is used as is,
// zero included; otherwise DefaultSegmentDuration applies.
func Build(segs []segment.Segment, assets map[string]project.SegmentAssets) []Segment {
	return BuildWithDefault(segs, assets, DefaultSegmentDuration)
}

func BuildWithDefault(segs []segment.Segment, assets map[string]project.SegmentAssets, fallback float64) []Segment {
	out := make([]Segment, 0, len(segs))
	start := 0.0
	for _, seg := range segs {
		a, ok := assets[seg.ID]
		if !ok {
			a = project.EmptyAssets()
		}
		duration := fallback
		if a.AudioDuration != nil {
			duration = *a.AudioDuration
		}
		out = append(out, Segment{Segment: seg, StartTime: start, Duration: duration, Assets: a})
		start += duration
	}
	return out
}

// FromState builds the timeline of a project snapshot.
func FromState(s project.State) []Segment {
	return Build(s.Segments, s.Assets)
}

// Total is the end of the last segment.
func Total(segs []Segment) float64 {
	if len(segs) == 0 {
		return 0
	}
	return segs[len(segs)-1].End()
}

// Locate returns the index of the segment whose [start, end) contains t. Times
// at or past the end map to the last segment; an empty timeline returns -1.
func Locate(segs []Segment, t float64) int {
	if len(segs) == 0 {
		return -1
	}
	for i, seg := range segs {
		if t >= seg.StartTime && t < seg.End() {
			return i
		}
	}
	if t < 0 {
		return 0
	}
	return len(segs) - 1
}

// IndexOf returns the position of the segment with the given id or -1.
func IndexOf(segs []Segment, id string) int {
	for i, seg := range segs {
		if seg.ID == id {
			return i
		}
	}
	return -1
}
