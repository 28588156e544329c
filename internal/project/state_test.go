package project

import (
	"sync"
	"testing"

	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
	"github.com/contentbuddy/contentbuddy/internal/segment"
)

func seeded() State {
	s := Initial()
	s = Reduce(s, SetSegments{Segments: []segment.Segment{{ID: "a", Text: "one"}, {ID: "b", Text: "two"}}})
	return Reduce(s, InitializeAssets{})
}

func TestInitializeAssetsCoversEverySegment(t *testing.T) {
	s := seeded()
	for _, id := range []string{"a", "b"} {
		a, ok := s.Assets[id]
		if !ok {
			t.Fatalf("missing assets for %s", id)
		}
		if a.AudioStatus != StatusIdle || a.VoiceSpeed != DefaultVoiceSpeed || a.VoiceEmotion != DefaultVoiceEmotion {
			t.Fatalf("unexpected defaults %+v", a)
		}
	}
}

func TestInitializeAssetsKeepsExistingAndDropsStale(t *testing.T) {
	s := seeded()
	s = Reduce(s, UpdateAsset{SegmentID: "a", Update: PromptSucceeded("sunset")})
	s = Reduce(s, MergeSegments{ID: "a"})
	s = Reduce(s, InitializeAssets{})
	if len(s.Assets) != 1 {
		t.Fatalf("expected stale entry dropped, got %d entries", len(s.Assets))
	}
	if p := s.Assets["a"].ImagePrompt; p == nil || *p != "sunset" {
		t.Fatalf("expected prompt kept")
	}
}

func TestUpdateAssetDoesNotMutatePrevious(t *testing.T) {
	before := seeded()
	after := Reduce(before, UpdateAsset{SegmentID: "a", Update: AudioSucceeded("data:audio/mp3;base64,AA==", 3.5)})
	if before.Assets["a"].AudioStatus != StatusIdle {
		t.Fatalf("previous state mutated")
	}
	a := after.Assets["a"]
	if a.AudioStatus != StatusSuccess || a.AudioDuration == nil || *a.AudioDuration != 3.5 || a.AudioURL == nil {
		t.Fatalf("audio not recorded atomically: %+v", a)
	}
}

func TestFailedUpdateKeepsPreviousValue(t *testing.T) {
	s := seeded()
	s = Reduce(s, UpdateAsset{SegmentID: "a", Update: ImageSucceeded("data:image/png;base64,AA==")})
	s = Reduce(s, UpdateAsset{SegmentID: "a", Update: ImageLoading()})
	s = Reduce(s, UpdateAsset{SegmentID: "a", Update: ImageFailed("quota")})
	a := s.Assets["a"]
	if a.ImageStatus != StatusError || a.ImageError != "quota" {
		t.Fatalf("unexpected image state %+v", a)
	}
	if a.ImageURL == nil {
		t.Fatalf("expected previous image url kept")
	}
}

func TestCustomPronunciationsReplacedWhole(t *testing.T) {
	items := []pronunciation.Item{{Text: "AI", Pronunciation: "ei1"}}
	s := Reduce(seeded(), UpdateAsset{SegmentID: "b", Update: SetCustomPronunciations(items)})
	items[0].Pronunciation = "changed"
	if got := s.Assets["b"].CustomPronunciations[0].Pronunciation; got != "ei1" {
		t.Fatalf("expected stored copy, got %q", got)
	}
}

func TestClearAndReset(t *testing.T) {
	pending := Reduce(seeded(), UpdateAsset{SegmentID: "a", Update: PromptLoading()})
	pending = Reduce(pending, UpdateAsset{SegmentID: "b", Update: AudioFailed("quota")})
	if pending.HasGeneratedContent() {
		t.Fatalf("loading and error states alone must not count as generated content")
	}
	s := Reduce(pending, UpdateAsset{SegmentID: "a", Update: PromptSucceeded("a prompt")})
	if !s.HasGeneratedContent() {
		t.Fatalf("expected generated content")
	}
	cleared := Reduce(s, ClearGeneratedAssets{})
	if len(cleared.Assets) != 0 || cleared.HasGeneratedContent() {
		t.Fatalf("expected cleared assets")
	}
	if len(cleared.Segments) != 2 {
		t.Fatalf("clearing assets must keep segments")
	}
	reset := Reduce(Reduce(s, SetVoiceID{VoiceID: "v1"}), ResetProject{})
	if reset.VoiceID != "" || len(reset.Segments) != 0 || len(reset.Assets) != 0 || reset.CurrentStep != StepScript {
		t.Fatalf("expected initial state, got %+v", reset)
	}
}

func TestCyclePlaybackRate(t *testing.T) {
	s := Initial()
	want := []float64{1.25, 1.5, 2, 0.5, 1}
	for _, rate := range want {
		s = Reduce(s, CyclePlaybackRate{})
		if s.PlaybackRate != rate {
			t.Fatalf("expected %v, got %v", rate, s.PlaybackRate)
		}
	}
}

func TestCompletion(t *testing.T) {
	s := seeded()
	if s.AllComplete() {
		t.Fatalf("nothing generated yet")
	}
	s = Reduce(s, UpdateAsset{SegmentID: "a", Update: PromptSucceeded("p")})
	s = Reduce(s, UpdateAsset{SegmentID: "b", Update: SetImagePrompt("edited by hand")})
	for _, id := range []string{"a", "b"} {
		s = Reduce(s, UpdateAsset{SegmentID: id, Update: ImageSucceeded("i")})
		if s.Assets[id].Complete() {
			t.Fatalf("%s: image alone is not complete", id)
		}
		s = Reduce(s, UpdateAsset{SegmentID: id, Update: AudioSucceeded("a", 1)})
	}
	if !s.AllComplete() || s.CompletedCount() != 2 {
		t.Fatalf("expected all complete, hand-edited prompt included")
	}
}

func TestSetCurrentStepBounds(t *testing.T) {
	s := Reduce(Initial(), SetCurrentStep{Step: StepReview})
	if s.CurrentStep != StepReview {
		t.Fatalf("expected review step")
	}
	if s = Reduce(s, SetCurrentStep{Step: 9}); s.CurrentStep != StepReview {
		t.Fatalf("out of range step applied")
	}
}

func TestStoreNotifiesSubscribers(t *testing.T) {
	store := NewStore(seeded())
	var mu sync.Mutex
	var seen []Status
	unsubscribe := store.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s.Assets["a"].AudioStatus)
		mu.Unlock()
	})
	store.Update("a", AudioLoading())
	store.Update("a", AudioFailed("boom"))
	unsubscribe()
	store.Update("a", AudioLoading())

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != StatusLoading || seen[1] != StatusError {
		t.Fatalf("unexpected notifications %v", seen)
	}
	if store.Snapshot().Assets["a"].AudioStatus != StatusLoading {
		t.Fatalf("snapshot not updated")
	}
}

func TestStoreConcurrentUpdates(t *testing.T) {
	store := NewStore(seeded())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Update("a", PromptSucceeded("p"))
		}()
		go func() {
			defer wg.Done()
			store.Update("b", AudioSucceeded("u", 2))
		}()
	}
	wg.Wait()
	s := store.Snapshot()
	if s.Assets["a"].PromptStatus != StatusSuccess || s.Assets["b"].AudioStatus != StatusSuccess {
		t.Fatalf("lost update: %+v", s.Assets)
	}
}
