package db

import (
	"database/sql"
	"errors"
	"time"
)

// QueueStore is the durable task queue's persistence layer (C4). Every
// mutation (AddSource, DeleteSource, DeleteItem, UpdateConfig, ReloadConfig)
// is recorded here before it takes effect, so a crash mid-mutation resumes
// on restart instead of losing the request (§4.4).
type QueueStore struct {
	pool *Pool
}

func NewQueueStore(pool *Pool) *QueueStore { return &QueueStore{pool: pool} }

const taskColumns = `id, task_type, task_data, status, retry_count, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (TaskRecord, error) {
	var t TaskRecord
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Kind, &t.Payload, &t.Status, &t.RetryCount, &createdAt, &updatedAt); err != nil {
		return TaskRecord{}, err
	}
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		t.UpdatedAt = ts
	}
	return t, nil
}

// Enqueue inserts a new Pending task with a caller-supplied id (the caller
// uses github.com/google/uuid so ids are safe to generate before the
// transaction opens, and to keep them stable across an enqueue retry).
func (s *QueueStore) Enqueue(id string, kind TaskKind, payload string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	return s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO task_queue (id, task_type, task_data, status, retry_count, created_at, updated_at)
			VALUES (?, ?, ?, 'Pending', 0, ?, ?)`, id, kind, payload, now, now)
		return err
	})
}

// ListPending returns every Pending task. Callers apply the fixed DrainOrder
// (§4.4) themselves when deciding which to process next; this store makes no
// ordering promise beyond insertion order within a kind.
func (s *QueueStore) ListPending() ([]TaskRecord, error) {
	rows, err := s.pool.db.Query(`SELECT `+taskColumns+` FROM task_queue
		WHERE status = 'Pending' ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TaskRecord
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListPendingByKind returns Pending tasks of one kind in FIFO order, the
// granularity C4's drain loop actually consumes (it drains one kind fully
// before moving to the next kind in DrainOrder).
func (s *QueueStore) ListPendingByKind(kind TaskKind) ([]TaskRecord, error) {
	rows, err := s.pool.db.Query(`SELECT `+taskColumns+` FROM task_queue
		WHERE status = 'Pending' AND task_type = ? ORDER BY created_at ASC, rowid ASC`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TaskRecord
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkCompleted transitions a task to Completed.
func (s *QueueStore) MarkCompleted(id string) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE task_queue SET status = 'Completed', updated_at = ? WHERE id = ?`,
			time.Now().UTC().Format(time.RFC3339), id)
		return err
	})
}

// MarkFailed transitions a task to Failed and increments retry_count. The
// caller decides whether Failed is terminal or eligible for a later manual
// requeue (§3 notes the queue itself does not auto-retry task-level
// failures — only subtask-level download retries are automatic).
func (s *QueueStore) MarkFailed(id string) error {
	return s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE task_queue SET status = 'Failed', retry_count = retry_count + 1, updated_at = ? WHERE id = ?`,
			time.Now().UTC().Format(time.RFC3339), id)
		return err
	})
}

// RecoverOnStart returns every Pending task so the in-memory queue can be
// rehydrated after a restart; it updates no rows. Since this store only ever
// writes Pending, Completed, or Failed, and Completed/Failed are terminal, no
// task is ever left in a transient state, so there is nothing to recover
// beyond re-reading ListPending — this method exists as the named
// entrypoint C4 calls on startup (§4.4 "recover_on_start") and documents that
// fact rather than performing a row update.
func (s *QueueStore) RecoverOnStart() ([]TaskRecord, error) {
	return s.ListPending()
}

// Get returns a single task by id.
func (s *QueueStore) Get(id string) (TaskRecord, error) {
	row := s.pool.db.QueryRow(`SELECT `+taskColumns+` FROM task_queue WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TaskRecord{}, ErrNotFound
	}
	return t, err
}

// HasPending reports whether a Pending task of kind with exactly this
// payload exists — used by the
// 87007 handler to avoid enqueueing a duplicate DeleteItem (§4.8).
func (s *QueueStore) HasPending(kind TaskKind, payload string) (bool, error) {
	var n int
	err := s.pool.db.QueryRow(`SELECT COUNT(*) FROM task_queue
		WHERE status = 'Pending' AND task_type = ? AND task_data = ?`, kind, payload).Scan(&n)
	return n > 0, err
}
