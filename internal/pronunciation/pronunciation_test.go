package pronunciation

import (
	"reflect"
	"testing"
)

func TestMergeLocalOverridesGlobal(t *testing.T) {
	merged := Merge(
		[]Item{{Text: "AI", Pronunciation: "ai4"}},
		[]Item{{Text: "AI", Pronunciation: "ei1"}},
	)
	if len(merged) != 1 {
		t.Fatalf("expected exactly one entry, got %v", merged)
	}
	if merged[0].Pronunciation != "ei1" {
		t.Fatalf("expected local pronunciation, got %q", merged[0].Pronunciation)
	}
}

func TestMergeDisjointKeepsOrder(t *testing.T) {
	merged := Merge(
		[]Item{{Text: "A", Pronunciation: "1"}},
		[]Item{{Text: "B", Pronunciation: "2"}},
	)
	want := []Item{{Text: "A", Pronunciation: "1"}, {Text: "B", Pronunciation: "2"}}
	if !reflect.DeepEqual(merged, want) {
		t.Fatalf("expected %v, got %v", want, merged)
	}
}

func TestMergeOverrideStaysInGlobalPosition(t *testing.T) {
	global := []Item{
		{Text: "AI", Pronunciation: "ai4"},
		{Text: "GPT", Pronunciation: "ji4"},
		{Text: "API", Pronunciation: "ai4pi4"},
	}
	local := []Item{
		{Text: "CUDA", Pronunciation: "(ku4)(da2)"},
		{Text: "GPT", Pronunciation: "override"},
	}
	merged := Merge(global, local)
	texts := make([]string, 0, len(merged))
	for _, item := range merged {
		texts = append(texts, item.Text)
	}
	if !reflect.DeepEqual(texts, []string{"AI", "GPT", "API", "CUDA"}) {
		t.Fatalf("unexpected order %v", texts)
	}
	if merged[1].Pronunciation != "override" {
		t.Fatalf("expected GPT override, got %q", merged[1].Pronunciation)
	}
	if global[1].Pronunciation != "ji4" {
		t.Fatalf("global slice mutated")
	}
}

func TestMergeEmpty(t *testing.T) {
	if merged := Merge(nil, nil); len(merged) != 0 {
		t.Fatalf("expected empty merge, got %v", merged)
	}
}

func TestToneListRoundTrip(t *testing.T) {
	items := []Item{{Text: "會計", Pronunciation: "(kuai4)(ji4)"}, {Text: "誰", Pronunciation: "(shei2)"}}
	tones := ToneList(items)
	if tones[0] != "會計/(kuai4)(ji4)" {
		t.Fatalf("unexpected tone entry %q", tones[0])
	}
	parsed := ParseToneList(append(tones, "broken", "/x"))
	if !reflect.DeepEqual(parsed, items) {
		t.Fatalf("expected %v, got %v", items, parsed)
	}
}
