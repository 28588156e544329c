package segment

import (
	"strings"
	"testing"
)

func sample() []Segment {
	return []Segment{
		{ID: "a", Text: "First part."},
		{ID: "b", Text: "Second part."},
		{ID: "c", Text: "Third part."},
	}
}

func TestMergeKeepsFirstID(t *testing.T) {
	out := Merge(sample(), "a")
	if len(out) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(out))
	}
	if out[0].ID != "a" {
		t.Fatalf("expected merged id a, got %s", out[0].ID)
	}
	if out[0].Text != "First part.\n\nSecond part." {
		t.Fatalf("unexpected merged text %q", out[0].Text)
	}
	if out[1].ID != "c" {
		t.Fatalf("expected c to follow, got %s", out[1].ID)
	}
}

func TestMergeLastIsNoop(t *testing.T) {
	in := sample()
	out := Merge(in, "c")
	if len(out) != 3 {
		t.Fatalf("expected no change, got %d segments", len(out))
	}
	if out := Merge(in, "missing"); len(out) != 3 {
		t.Fatalf("expected no change for unknown id")
	}
}

func TestSplitDerivesSecondID(t *testing.T) {
	out := Split(sample(), "b", 7)
	if len(out) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(out))
	}
	if out[1].ID != "b" || out[1].Text != "Second" {
		t.Fatalf("unexpected first half %+v", out[1])
	}
	if out[2].ID != "b_split" || out[2].Text != "part." {
		t.Fatalf("unexpected second half %+v", out[2])
	}
	if out[3].ID != "c" {
		t.Fatalf("expected c after split, got %s", out[3].ID)
	}
}

func TestSplitRejectsEmptyHalf(t *testing.T) {
	for _, offset := range []int{0, 3, 100, -4} {
		out := Split([]Segment{{ID: "x", Text: "   abc"}}, "x", offset)
		if len(out) != 1 {
			t.Fatalf("offset %d: expected no split, got %d segments", offset, len(out))
		}
	}
}

func TestSplitCountsRunes(t *testing.T) {
	out := Split([]Segment{{ID: "zh", Text: "這是第一句。這是第二句。"}}, "zh", 6)
	if len(out) != 2 {
		t.Fatalf("expected split, got %d segments", len(out))
	}
	if out[0].Text != "這是第一句。" || out[1].Text != "這是第二句。" {
		t.Fatalf("unexpected halves %q / %q", out[0].Text, out[1].Text)
	}
}

func TestSplitMergeRoundTrip(t *testing.T) {
	original := Segment{ID: "s", Text: "Hello world. This is a test."}
	split := Split([]Segment{original}, "s", 12)
	if len(split) != 2 {
		t.Fatalf("expected split into two, got %d", len(split))
	}
	first, second := split[0], split[1]
	merged := Merge(split, "s")
	if len(merged) != 1 {
		t.Fatalf("expected single segment after merge, got %d", len(merged))
	}
	if merged[0].ID != "s" {
		t.Fatalf("expected id s, got %s", merged[0].ID)
	}
	if merged[0].Text != first.Text+MergeSeparator+second.Text {
		t.Fatalf("merge did not concatenate halves: %q", merged[0].Text)
	}
	if strings.Join(strings.Fields(merged[0].Text), " ") != original.Text {
		t.Fatalf("content changed: %q", merged[0].Text)
	}
}

func TestUpdateTextDoesNotMutateInput(t *testing.T) {
	in := sample()
	out := UpdateText(in, "b", "changed")
	if in[1].Text != "Second part." {
		t.Fatalf("input mutated")
	}
	if out[1].Text != "changed" {
		t.Fatalf("expected update, got %q", out[1].Text)
	}
}

func TestFromTextsAssignsIDs(t *testing.T) {
	out := FromTexts([]string{"  one ", "two"})
	if len(out) != 2 {
		t.Fatalf("expected 2 segments")
	}
	if out[0].Text != "one" {
		t.Fatalf("expected trimmed text, got %q", out[0].Text)
	}
	if !strings.HasPrefix(out[0].ID, "seg_") || len(out[0].ID) != 12 {
		t.Fatalf("unexpected id format %q", out[0].ID)
	}
	if out[0].ID == out[1].ID {
		t.Fatalf("ids must be unique")
	}
}
