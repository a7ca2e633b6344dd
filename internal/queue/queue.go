// Package queue is the Durable Task Queue (C4): user-initiated mutations
// (AddSource, DeleteSource, DeleteItem, UpdateConfig, ReloadConfig) persist
// to internal/db's task_queue table before taking effect, so a crash
// mid-mutation resumes on restart instead of losing the request. An
// in-memory per-kind queue mirrors the durable rows for fast draining;
// recover_on_start rehydrates it.
//
// Grounded on the teacher's supervisor.Run loop shape (load state, act,
// persist) and on internal/indexer/fetch/state.go's atomic
// load-then-save-on-completion discipline, generalized from a single
// fetch-state file to a per-kind in-memory queue backed by sqlite rows.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/snapetech/bili-sync/internal/db"
)

// Runner processes one task's payload. A non-nil error marks the task
// Failed (retry_count incremented); the row stays available for a manual
// requeue decision made above this package.
type Runner func(ctx context.Context, task db.TaskRecord) error

// Queue is the in-memory mirror plus durable backing for task_queue.
type Queue struct {
	store *db.QueueStore

	mu      sync.Mutex
	scanning bool
	byKind   map[db.TaskKind][]db.TaskRecord
}

// New constructs a Queue over store. Call RecoverOnStart once before using
// it so in-memory state matches what survived a previous crash.
func New(store *db.QueueStore) *Queue {
	return &Queue{store: store, byKind: make(map[db.TaskKind][]db.TaskRecord)}
}

// Enqueue persists a Pending row and pushes it onto the in-memory queue of
// its kind.
func (q *Queue) Enqueue(kind db.TaskKind, payload string) (string, error) {
	id := uuid.NewString()
	if err := q.store.Enqueue(id, kind, payload); err != nil {
		return "", fmt.Errorf("queue: enqueue %s: %w", kind, err)
	}
	task, err := q.store.Get(id)
	if err != nil {
		return "", err
	}
	q.mu.Lock()
	q.byKind[kind] = append(q.byKind[kind], task)
	q.mu.Unlock()
	return id, nil
}

// HasPending reports whether a Pending task of kind with the given payload
// already exists, used to suppress a duplicate auto-created DeleteItem
// (§4.8, 87007 handling).
func (q *Queue) HasPending(kind db.TaskKind, payload string) (bool, error) {
	return q.store.HasPending(kind, payload)
}

// RecoverOnStart loads all Pending rows ordered by created_at and rehydrates
// the in-memory kind-specific queues. Call once at process init.
func (q *Queue) RecoverOnStart() error {
	tasks, err := q.store.RecoverOnStart()
	if err != nil {
		return fmt.Errorf("queue: recover_on_start: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.byKind = make(map[db.TaskKind][]db.TaskRecord)
	for _, t := range tasks {
		q.byKind[t.Kind] = append(q.byKind[t.Kind], t)
	}
	return nil
}

// SetScanning toggles the is_scanning gate Drain refuses to run under
// (§4.4 invariant: "the queue must not be drained while is_scanning is
// true").
func (q *Queue) SetScanning(scanning bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scanning = scanning
}

// ErrScanInProgress is returned by Drain when is_scanning is true.
var ErrScanInProgress = fmt.Errorf("queue: cannot drain while a scan is in progress")

// Drain pops and invokes runner for every task of kind, in FIFO order,
// marking each Completed or Failed as runner dictates. It refuses to run
// while is_scanning is true (§4.4).
func (q *Queue) Drain(ctx context.Context, kind db.TaskKind, runner Runner) error {
	q.mu.Lock()
	if q.scanning {
		q.mu.Unlock()
		return ErrScanInProgress
	}
	tasks := q.byKind[kind]
	q.byKind[kind] = nil
	q.mu.Unlock()

	for _, t := range tasks {
		err := runner(ctx, t)
		if err != nil {
			if markErr := q.store.MarkFailed(t.ID); markErr != nil {
				return fmt.Errorf("queue: mark %s failed: %w (runner error: %v)", t.ID, markErr, err)
			}
			continue
		}
		if err := q.store.MarkCompleted(t.ID); err != nil {
			return fmt.Errorf("queue: mark %s completed: %w", t.ID, err)
		}
	}
	return nil
}

// DrainAll drains every kind in db.DrainOrder, the fixed ordering (§4.4):
// UpdateConfig/ReloadConfig first, then DeleteSource, then DeleteItem, then
// AddSource.
func (q *Queue) DrainAll(ctx context.Context, runners map[db.TaskKind]Runner) error {
	for _, kind := range db.DrainOrder {
		runner, ok := runners[kind]
		if !ok {
			continue
		}
		if err := q.Drain(ctx, kind, runner); err != nil {
			return err
		}
	}
	return nil
}

// PendingCount returns how many tasks of kind are queued in memory, mostly
// useful for tests and metrics.
func (q *Queue) PendingCount(kind db.TaskKind) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byKind[kind])
}
