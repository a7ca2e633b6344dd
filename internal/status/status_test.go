package status

import "testing"

func TestItemGetSetRoundTrip(t *testing.T) {
	var word uint32
	word = ItemSet(word, ItemCover, Succeeded)
	word = ItemSet(word, ItemInfoXML, Retrying)
	word = ItemSet(word, ItemUploaderAvatar, Failed)

	if got := ItemGet(word, ItemCover); got != Succeeded {
		t.Fatalf("cover = %v, want Succeeded", got)
	}
	if got := ItemGet(word, ItemInfoXML); got != Retrying {
		t.Fatalf("info-xml = %v, want Retrying", got)
	}
	if got := ItemGet(word, ItemUploaderAvatar); got != Failed {
		t.Fatalf("uploader-avatar = %v, want Failed", got)
	}
	if got := ItemGet(word, ItemUploaderInfo); got != NotStarted {
		t.Fatalf("uploader-info = %v, want NotStarted (untouched)", got)
	}
}

func TestItemCompleteAndFullyFailed(t *testing.T) {
	var word uint32
	for t_ := ItemCover; t_ < itemSubtaskCount; t_++ {
		word = ItemSet(word, t_, Succeeded)
	}
	if !ItemComplete(word) {
		t.Fatalf("expected complete")
	}
	if ItemFullyFailed(word) {
		t.Fatalf("all-succeeded should not be fully-failed")
	}

	word = ItemSet(word, ItemCover, Failed)
	if ItemComplete(word) {
		t.Fatalf("should not be complete after marking one Failed")
	}
	if !ItemFullyFailed(word) {
		t.Fatalf("expected fully-failed: one Failed, rest Succeeded (no runnable)")
	}

	word = ItemSet(word, ItemInfoXML, Retrying)
	if ItemFullyFailed(word) {
		t.Fatalf("should not be fully-failed while a subtask is still runnable")
	}
}

func TestResetUnfinishedPreservesSucceeded(t *testing.T) {
	// Scenario S2 from spec.md: cover=Succeeded, info-xml=Succeeded,
	// uploader-avatar=Retrying(1), uploader-info=NotStarted, pages=NotStarted.
	var word uint32
	word = ItemSet(word, ItemCover, Succeeded)
	word = ItemSet(word, ItemInfoXML, Succeeded)
	word = ItemSet(word, ItemUploaderAvatar, Retrying)
	word = ItemSet(word, ItemUploaderInfo, NotStarted)
	word = ItemSet(word, ItemPagesAggregate, NotStarted)

	reset := ResetItemUnfinished(word, false)

	if got := ItemGet(reset, ItemCover); got != Succeeded {
		t.Fatalf("cover after reset = %v, want Succeeded", got)
	}
	if got := ItemGet(reset, ItemInfoXML); got != Succeeded {
		t.Fatalf("info-xml after reset = %v, want Succeeded", got)
	}
	if got := ItemGet(reset, ItemUploaderAvatar); got != NotStarted {
		t.Fatalf("uploader-avatar after reset = %v, want NotStarted", got)
	}

	summary := SummarizeItem(reset)
	if summary.Succeeded != 2 || summary.Runnable != 3 || summary.Failed != 0 {
		t.Fatalf("summary after reset = %+v, want {Succeeded:2 Runnable:3 Failed:0}", summary)
	}
}

func TestResetUnfinishedForceResetsSucceeded(t *testing.T) {
	var word uint32
	word = ItemSet(word, ItemCover, Succeeded)
	reset := ResetItemUnfinished(word, true)
	if got := ItemGet(reset, ItemCover); got != NotStarted {
		t.Fatalf("forced reset cover = %v, want NotStarted", got)
	}
}

func TestPageCodecIndependentOfItemCodec(t *testing.T) {
	var word uint32
	word = PageSet(word, PageVideoStream, Succeeded)
	word = PageSet(word, PageMux, Failed)
	if got := PageGet(word, PageVideoStream); got != Succeeded {
		t.Fatalf("video-stream = %v, want Succeeded", got)
	}
	if got := PageGet(word, PageAudioStream); got != NotStarted {
		t.Fatalf("audio-stream = %v, want NotStarted", got)
	}
	if PageComplete(word) {
		t.Fatalf("should not be complete: mux is Failed")
	}
}

func TestShouldRun(t *testing.T) {
	cases := map[State]bool{
		NotStarted: true,
		Retrying:   true,
		Failed:     false,
		Succeeded:  false,
	}
	for s, want := range cases {
		if got := ShouldRun(s); got != want {
			t.Errorf("ShouldRun(%v) = %v, want %v", s, got, want)
		}
	}
}
