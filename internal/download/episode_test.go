package download

import (
	"testing"
	"time"

	"github.com/snapetech/bili-sync/internal/db"
)

func TestAssignEpisodeNumberIsOneBasedPosition(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []db.Item{
		{ID: 11, PubTime: timePtr(t0)},
		{ID: 12, PubTime: timePtr(t0.Add(time.Hour))},
		{ID: 13, PubTime: timePtr(t0.Add(2 * time.Hour))},
	}
	n, ok := AssignEpisodeNumber(items, 12)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if n != 2 {
		t.Fatalf("episode number = %d, want 2", n)
	}
}

func TestAssignEpisodeNumberFallsBackWhenItemAbsent(t *testing.T) {
	items := []db.Item{{ID: 1}, {ID: 2}}
	_, ok := AssignEpisodeNumber(items, 999)
	if ok {
		t.Fatal("expected ok=false for an item missing from its own source's listing")
	}
}

func timePtr(t time.Time) *time.Time { return &t }
