package scheduler

import (
	"fmt"
	"log"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/status"
)

// ResetScope selects which items a manual Reset operates over (§4.10's
// "alternative manual trigger"). Exactly one of ItemID, SourceID, or All
// should be set; Reset checks them in that order.
type ResetScope struct {
	ItemID   int64
	SourceID int64
	All      bool
}

// handleRiskControlAbort implements the automatic path of C10: reset every
// unfinished subtask of the source currently being scanned (§5: "the
// scheduler cancels the current source's scope"). Whether the enumeration
// cursor still advances despite the abort is decided by the caller
// (runSourceCycle, per the advance_cursor_on_abort toggle) since that
// decision depends on the enumeration result, which this function never
// sees.
func (s *Scheduler) handleRiskControlAbort(src db.Source) {
	log.Printf("scheduler: risk-control abort on source %d (%s); resetting unfinished subtasks", src.ID, src.Name)
	if err := s.resetSourceUnfinished(src.ID, false); err != nil {
		log.Printf("scheduler: reset unfinished subtasks for source %d: %v", src.ID, err)
	}
}

// Reset implements §4.10's manual "alternative manual trigger": the same
// state-rewriting rule risk-control recovery applies automatically, exposed
// to an operator-chosen scope, optionally forcing Succeeded back to
// NotStarted too.
func (s *Scheduler) Reset(scope ResetScope, force bool) error {
	switch {
	case scope.ItemID != 0:
		return s.resetItemUnfinished(scope.ItemID, force)
	case scope.SourceID != 0:
		return s.resetSourceUnfinished(scope.SourceID, force)
	case scope.All:
		sources, err := s.Sources.List()
		if err != nil {
			return fmt.Errorf("scheduler: list sources for full reset: %w", err)
		}
		for _, src := range sources {
			if err := s.resetSourceUnfinished(src.ID, force); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("scheduler: Reset requires an item, source, or All scope")
	}
}

func (s *Scheduler) resetSourceUnfinished(sourceID int64, force bool) error {
	items, err := s.Store.ListBySource(sourceID)
	if err != nil {
		return fmt.Errorf("scheduler: list items for source %d: %w", sourceID, err)
	}
	for _, it := range items {
		if err := s.resetItemStatus(it, force); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) resetItemUnfinished(itemID int64, force bool) error {
	it, err := s.Store.Get(itemID)
	if err != nil {
		return fmt.Errorf("scheduler: get item %d: %w", itemID, err)
	}
	return s.resetItemStatus(it, force)
}

// resetItemStatus applies the §4.10 reset rule to one item and its pages.
// A fully-complete item is left untouched unless force is set, so a
// risk-control abort never regresses work that already finished (P6).
func (s *Scheduler) resetItemStatus(it db.Item, force bool) error {
	if status.ItemComplete(it.DownloadStatus) && !force {
		return nil
	}
	word := status.ResetItemUnfinished(it.DownloadStatus, force)
	if word != it.DownloadStatus {
		if err := s.Store.UpdateItemStatus(it.ID, word); err != nil {
			return fmt.Errorf("scheduler: reset item %d status: %w", it.ID, err)
		}
	}
	pages, err := s.Store.PagesOf(it.ID)
	if err != nil {
		return fmt.Errorf("scheduler: list pages of item %d: %w", it.ID, err)
	}
	for _, pg := range pages {
		pword := status.ResetPageUnfinished(pg.DownloadStatus, force)
		if pword == pg.DownloadStatus {
			continue
		}
		if err := s.Store.UpdatePageStatus(pg.ID, pword); err != nil {
			return fmt.Errorf("scheduler: reset page %d status: %w", pg.ID, err)
		}
	}
	return nil
}
