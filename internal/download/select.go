package download

import (
	"sort"

	"github.com/snapetech/bili-sync/internal/upstream"
)

// SelectOptions is the subset of the configuration bundle the video-stream
// and audio-stream subtasks consult (§4.8, §6).
type SelectOptions struct {
	VideoMaxQuality int
	VideoMinQuality int
	AudioMaxQuality int
	AudioMinQuality int
	Codecs          []string // ordered priority, most preferred first
	NoDolbyVideo    bool
	NoDolbyAudio    bool
	NoHDR           bool
	NoHiRes         bool
	CDNSorting      bool
}

// SelectVideo picks the first acceptable video variant per §4.8: filtered by
// [video_min_quality, video_max_quality] and the no-dolby/no-hdr flags, then
// ordered by codec priority (earlier in Codecs wins), then by quality
// descending, then (if cdn_sorting) by measured CDN latency ascending.
func SelectVideo(variants []upstream.StreamVariant, opts SelectOptions) (upstream.StreamVariant, bool) {
	candidates := filterVariants(variants, "video", opts.VideoMinQuality, opts.VideoMaxQuality, func(v upstream.StreamVariant) bool {
		if opts.NoDolbyVideo && v.IsDolby {
			return false
		}
		if opts.NoHDR && v.IsHDR {
			return false
		}
		return true
	})
	return pickBest(candidates, opts)
}

// SelectAudio picks the first acceptable audio variant per §4.8: filtered by
// [audio_min_quality, audio_max_quality] and the no-dolby-audio/no-hires
// flags, ranked the same way as SelectVideo.
func SelectAudio(variants []upstream.StreamVariant, opts SelectOptions) (upstream.StreamVariant, bool) {
	candidates := filterVariants(variants, "audio", opts.AudioMinQuality, opts.AudioMaxQuality, func(v upstream.StreamVariant) bool {
		if opts.NoDolbyAudio && v.IsDolby {
			return false
		}
		if opts.NoHiRes && v.IsHiRes {
			return false
		}
		return true
	})
	return pickBest(candidates, opts)
}

func filterVariants(variants []upstream.StreamVariant, kind string, min, max int, extra func(upstream.StreamVariant) bool) []upstream.StreamVariant {
	var out []upstream.StreamVariant
	for _, v := range variants {
		if v.Kind != kind {
			continue
		}
		if min > 0 && v.Quality < min {
			continue
		}
		if max > 0 && v.Quality > max {
			continue
		}
		if !extra(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func codecRank(codecs []string, codec string) int {
	for i, c := range codecs {
		if c == codec {
			return i
		}
	}
	return len(codecs) // unlisted codecs sort after every named one
}

func pickBest(candidates []upstream.StreamVariant, opts SelectOptions) (upstream.StreamVariant, bool) {
	if len(candidates) == 0 {
		return upstream.StreamVariant{}, false
	}
	if opts.CDNSorting {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].CDNLatency < candidates[j].CDNLatency
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := codecRank(opts.Codecs, candidates[i].Codec), codecRank(opts.Codecs, candidates[j].Codec)
		if ri != rj {
			return ri < rj
		}
		return candidates[i].Quality > candidates[j].Quality
	})
	return candidates[0], true
}
