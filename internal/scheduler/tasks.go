package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/queue"
	"github.com/snapetech/bili-sync/internal/source"
)

// ConfigApplier is the narrow interface the scheduler needs from C11 to
// drain UpdateConfig/ReloadConfig tasks, kept separate from the concrete
// internal/config type so this package does not import it directly.
type ConfigApplier interface {
	ApplyUpdate(payload string) error
	Reload() error
}

type addSourcePayload struct {
	Kind               db.SourceKind `json:"kind"`
	UpstreamKey        string        `json:"upstream_key"`
	Name               string        `json:"name"`
	Path               string        `json:"path"`
	DownloadAllSeasons bool          `json:"download_all_seasons"`
	SelectedSeasons    []string      `json:"selected_seasons"`
	MergeToSourceID    int64         `json:"merge_to_source_id"`
}

type deleteSourcePayload struct {
	SourceID int64 `json:"source_id"`
}

type deleteItemPayload struct {
	ItemID int64 `json:"item_id"`
}

// taskRunners builds the DrainOrder-keyed runner map C4's Drain/DrainAll
// dispatch against (§4.4).
func (s *Scheduler) taskRunners() map[db.TaskKind]queue.Runner {
	return map[db.TaskKind]queue.Runner{
		db.TaskUpdateConfig: s.runUpdateConfig,
		db.TaskReloadConfig: s.runReloadConfig,
		db.TaskDeleteSource: s.runDeleteSource,
		db.TaskDeleteItem:   s.runDeleteItem,
		db.TaskAddSource:    s.runAddSource,
	}
}

func (s *Scheduler) runUpdateConfig(ctx context.Context, t db.TaskRecord) error {
	if s.ConfigApplier == nil {
		return nil
	}
	return s.ConfigApplier.ApplyUpdate(t.Payload)
}

func (s *Scheduler) runReloadConfig(ctx context.Context, t db.TaskRecord) error {
	if s.ConfigApplier == nil {
		return nil
	}
	return s.ConfigApplier.Reload()
}

func (s *Scheduler) runDeleteSource(ctx context.Context, t db.TaskRecord) error {
	var p deleteSourcePayload
	if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
		return fmt.Errorf("scheduler: decode DeleteSource payload: %w", err)
	}
	return s.Sources.Delete(p.SourceID)
}

func (s *Scheduler) runDeleteItem(ctx context.Context, t db.TaskRecord) error {
	var p deleteItemPayload
	if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
		return fmt.Errorf("scheduler: decode DeleteItem payload: %w", err)
	}
	return s.Store.Delete(p.ItemID)
}

func (s *Scheduler) runAddSource(ctx context.Context, t db.TaskRecord) error {
	var p addSourcePayload
	if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
		return fmt.Errorf("scheduler: decode AddSource payload: %w", err)
	}
	_, err := s.Sources.Upsert(source.AddRequest{
		Kind:               p.Kind,
		UpstreamKey:        p.UpstreamKey,
		Name:               p.Name,
		Path:               p.Path,
		DownloadAllSeasons: p.DownloadAllSeasons,
		SelectedSeasons:    p.SelectedSeasons,
		MergeToSourceID:    p.MergeToSourceID,
	})
	return err
}
