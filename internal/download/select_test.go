package download

import (
	"testing"
	"time"

	"github.com/snapetech/bili-sync/internal/upstream"
)

func variant(kind, codec string, quality int) upstream.StreamVariant {
	return upstream.StreamVariant{Kind: kind, Codec: codec, Quality: quality}
}

func TestSelectVideoRespectsQualityBounds(t *testing.T) {
	variants := []upstream.StreamVariant{
		variant("video", "avc", 1080),
		variant("video", "avc", 720),
		variant("video", "avc", 4320),
	}
	got, ok := SelectVideo(variants, SelectOptions{VideoMaxQuality: 1080, VideoMinQuality: 480})
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Quality != 1080 {
		t.Fatalf("quality = %d, want 1080 (highest within bounds)", got.Quality)
	}
}

func TestSelectVideoPrefersCodecPriorityOverQuality(t *testing.T) {
	variants := []upstream.StreamVariant{
		variant("video", "avc", 1080),
		variant("video", "av1", 720),
	}
	got, ok := SelectVideo(variants, SelectOptions{Codecs: []string{"av1", "avc"}})
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Codec != "av1" {
		t.Fatalf("codec = %q, want av1 (higher priority beats higher quality)", got.Codec)
	}
}

func TestSelectVideoExcludesDolbyWhenFlagSet(t *testing.T) {
	dolby := variant("video", "avc", 1080)
	dolby.IsDolby = true
	variants := []upstream.StreamVariant{dolby, variant("video", "avc", 720)}
	got, ok := SelectVideo(variants, SelectOptions{NoDolbyVideo: true})
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Quality != 720 {
		t.Fatalf("quality = %d, want 720 (dolby variant excluded)", got.Quality)
	}
}

func TestSelectAudioExcludesHiResWhenFlagSet(t *testing.T) {
	hires := variant("audio", "flac", 192)
	hires.IsHiRes = true
	variants := []upstream.StreamVariant{hires, variant("audio", "aac", 128)}
	got, ok := SelectAudio(variants, SelectOptions{NoHiRes: true})
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Quality != 128 {
		t.Fatalf("quality = %d, want 128 (hi-res variant excluded)", got.Quality)
	}
}

func TestSelectVideoCDNSortingPicksLowestLatencyAmongBestCodec(t *testing.T) {
	fast := variant("video", "avc", 1080)
	fast.CDNLatency = 10 * time.Millisecond
	slow := variant("video", "avc", 1080)
	slow.CDNLatency = 200 * time.Millisecond
	got, ok := SelectVideo([]upstream.StreamVariant{slow, fast}, SelectOptions{CDNSorting: true})
	if !ok {
		t.Fatal("expected a match")
	}
	if got.CDNLatency != 10*time.Millisecond {
		t.Fatalf("latency = %v, want the 10ms variant", got.CDNLatency)
	}
}

func TestSelectVideoNoCandidatesReturnsFalse(t *testing.T) {
	_, ok := SelectVideo(nil, SelectOptions{})
	if ok {
		t.Fatal("expected ok=false with no variants")
	}
}

func TestSelectIgnoresWrongKind(t *testing.T) {
	variants := []upstream.StreamVariant{variant("audio", "aac", 320)}
	_, ok := SelectVideo(variants, SelectOptions{})
	if ok {
		t.Fatal("SelectVideo should not match an audio-kind variant")
	}
}
