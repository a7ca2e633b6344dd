package layout

import (
	"fmt"
	"regexp"
	"strings"
)

// seasonSuffix matches a trailing Chinese "第N季" marker or an ASCII
// "Season N" / "SN" suffix, so the series title used for a bangumi season
// folder doesn't itself carry the season number twice (§4.2).
var seasonSuffix = regexp.MustCompile(`(?i)\s*(第[0-9一二三四五六七八九十]+季|season\s*\d+|s\d+)\s*$`)

// ExtractSeriesTitle strips a trailing season marker from title, returning
// the bare series name used to build a bangumi season folder.
func ExtractSeriesTitle(title string) string {
	return strings.TrimSpace(seasonSuffix.ReplaceAllString(title, ""))
}

// SeasonFolder returns "Season NN" for seasonNumber, or "" if
// useSeasonStructure is false. seasonNumber below 1 is clamped to 1 — a
// missing/zero season number must still produce a valid folder name rather
// than "Season 00".
func SeasonFolder(seasonNumber int, useSeasonStructure bool) string {
	if !useSeasonStructure {
		return ""
	}
	if seasonNumber < 1 {
		seasonNumber = 1
	}
	return fmt.Sprintf("Season %02d", seasonNumber)
}

// EpisodePad formats episodeNumber for the unified-collection filename
// pattern "S01E<pad>" (§4.2, §4.8).
func EpisodePad(episodeNumber int) string {
	return fmt.Sprintf("%02d", episodeNumber)
}
