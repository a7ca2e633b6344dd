// Package source is the Source Registry (C5): an in-memory view over the
// registered subscriptions, backed by internal/db's SourceStore. Toggle
// changes are visible to the next scan tick only — callers must snapshot
// ListEnabled once per scheduler cycle rather than re-querying mid-tick.
package source

import (
	"time"

	"github.com/snapetech/bili-sync/internal/db"
)

// Registry is the Source Registry.
type Registry struct {
	store *db.SourceStore
}

func New(store *db.SourceStore) *Registry { return &Registry{store: store} }

// ListEnabled returns all enabled sources, ordered never-scanned-first
// (§4.9 step 3). Call once per scan tick and thread the snapshot through the
// whole cycle — a Toggle mid-tick must not retroactively change this list.
func (r *Registry) ListEnabled() ([]db.Source, error) {
	return r.store.ListEnabled()
}

// List returns every registered source regardless of enabled state.
func (r *Registry) List() ([]db.Source, error) {
	return r.store.List()
}

// Get returns a single source.
func (r *Registry) Get(id int64) (db.Source, error) {
	return r.store.Get(id)
}

// Toggle flips enabled for id. The change is durable immediately but only
// observed by the scheduler on its next tick (§4.5).
func (r *Registry) Toggle(id int64, enabled bool) error {
	return r.store.Toggle(id, enabled)
}

// AddRequest is the payload behind an AddSource task (§4.4, §4.5).
type AddRequest struct {
	Kind               db.SourceKind
	UpstreamKey        string
	Name               string
	Path               string
	DownloadAllSeasons bool
	SelectedSeasons    []string
	// MergeToSourceID, when non-zero and Kind is bangumi, merges
	// UpstreamKey/SelectedSeasons into the existing source instead of
	// creating a new row (§4.5 bangumi merge rule).
	MergeToSourceID int64
	Cursor          *time.Time
}

// Upsert applies an AddRequest: a plain idempotent insert, or — for bangumi
// with MergeToSourceID set — a union-merge into the target source.
func (r *Registry) Upsert(req AddRequest) (int64, error) {
	if req.Kind == db.KindBangumi && req.MergeToSourceID != 0 {
		if err := r.store.MergeBangumi(req.MergeToSourceID, req.UpstreamKey, req.SelectedSeasons, req.Cursor); err != nil {
			return 0, err
		}
		return req.MergeToSourceID, nil
	}
	return r.store.Upsert(db.Source{
		Kind:               req.Kind,
		UpstreamKey:        req.UpstreamKey,
		Name:               req.Name,
		Path:               req.Path,
		Enabled:            true,
		DownloadAllSeasons: req.DownloadAllSeasons,
		SelectedSeasons:    req.SelectedSeasons,
	})
}

// Delete removes a source (§4.5). Cascading local files is a decision made
// by the DeleteSource task handler above this package, not here.
func (r *Registry) Delete(id int64) error {
	return r.store.Delete(id)
}

// AdvanceCursor records the latest-seen cursor after a successful
// enumeration pass over id (§4.6).
func (r *Registry) AdvanceCursor(id int64, cursor time.Time) error {
	return r.store.AdvanceCursor(id, cursor)
}

// TouchScanned records that id was scanned this cycle without advancing its
// cursor. The scheduler calls it after every source cycle that ends without
// a risk-control abort; an aborted cycle leaves the scan time unchanged.
func (r *Registry) TouchScanned(id int64) error {
	return r.store.TouchScanned(id)
}
