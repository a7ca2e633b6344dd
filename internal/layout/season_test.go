package layout

import "testing"

func TestExtractSeriesTitle(t *testing.T) {
	cases := map[string]string{
		"进击的巨人 第四季":    "进击的巨人",
		"Attack on Titan Season 4": "Attack on Titan",
		"Attack on Titan S4":       "Attack on Titan",
		"No Season Marker":        "No Season Marker",
	}
	for in, want := range cases {
		if got := ExtractSeriesTitle(in); got != want {
			t.Errorf("ExtractSeriesTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSeasonFolder(t *testing.T) {
	if got := SeasonFolder(1, false); got != "" {
		t.Errorf("SeasonFolder(1, false) = %q, want empty", got)
	}
	if got := SeasonFolder(4, true); got != "Season 04" {
		t.Errorf("SeasonFolder(4, true) = %q, want \"Season 04\"", got)
	}
	if got := SeasonFolder(0, true); got != "Season 01" {
		t.Errorf("SeasonFolder(0, true) = %q, want \"Season 01\" (clamped)", got)
	}
}

func TestEpisodePad(t *testing.T) {
	if got := EpisodePad(3); got != "03" {
		t.Errorf("EpisodePad(3) = %q, want \"03\"", got)
	}
	if got := EpisodePad(42); got != "42" {
		t.Errorf("EpisodePad(42) = %q, want \"42\"", got)
	}
}
