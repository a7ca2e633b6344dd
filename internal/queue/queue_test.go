package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/snapetech/bili-sync/internal/db"
)

func openTestPool(t *testing.T) *db.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	pool, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestEnqueueAndDrainMarksCompleted(t *testing.T) {
	pool := openTestPool(t)
	q := New(db.NewQueueStore(pool))

	id, err := q.Enqueue(db.TaskAddSource, `{"kind":"favorite"}`)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var ran string
	err = q.Drain(context.Background(), db.TaskAddSource, func(ctx context.Context, task db.TaskRecord) error {
		ran = task.ID
		return nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if ran != id {
		t.Fatalf("runner ran task %q, want %q", ran, id)
	}

	task, err := db.NewQueueStore(pool).Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task.Status != db.TaskCompleted {
		t.Fatalf("task status = %s, want Completed", task.Status)
	}
}

func TestDrainRefusesWhileScanning(t *testing.T) {
	pool := openTestPool(t)
	q := New(db.NewQueueStore(pool))
	q.SetScanning(true)

	_, err := q.Enqueue(db.TaskDeleteItem, `{}`)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	err = q.Drain(context.Background(), db.TaskDeleteItem, func(ctx context.Context, task db.TaskRecord) error {
		t.Fatal("runner should not run while scanning")
		return nil
	})
	if !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("err = %v, want ErrScanInProgress", err)
	}
}

func TestDrainMarksFailedOnRunnerError(t *testing.T) {
	pool := openTestPool(t)
	store := db.NewQueueStore(pool)
	q := New(store)

	id, _ := q.Enqueue(db.TaskDeleteSource, `{}`)
	wantErr := errors.New("boom")
	err := q.Drain(context.Background(), db.TaskDeleteSource, func(ctx context.Context, task db.TaskRecord) error {
		return wantErr
	})
	if err != nil {
		t.Fatalf("Drain returned %v, want nil (runner error is handled, not propagated)", err)
	}

	task, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task.Status != db.TaskFailed {
		t.Fatalf("task status = %s, want Failed", task.Status)
	}
	if task.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", task.RetryCount)
	}
}

func TestRecoverOnStartRehydratesFromDurableRows(t *testing.T) {
	pool := openTestPool(t)
	store := db.NewQueueStore(pool)

	if err := store.Enqueue("task-1", db.TaskAddSource, `{}`); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	q := New(store)
	if err := q.RecoverOnStart(); err != nil {
		t.Fatalf("RecoverOnStart: %v", err)
	}
	if got := q.PendingCount(db.TaskAddSource); got != 1 {
		t.Fatalf("PendingCount = %d, want 1", got)
	}
}

func TestDrainAllUsesFixedOrder(t *testing.T) {
	pool := openTestPool(t)
	q := New(db.NewQueueStore(pool))

	var order []db.TaskKind
	for _, kind := range []db.TaskKind{db.TaskAddSource, db.TaskDeleteItem, db.TaskDeleteSource, db.TaskUpdateConfig} {
		if _, err := q.Enqueue(kind, `{}`); err != nil {
			t.Fatalf("Enqueue(%s): %v", kind, err)
		}
	}
	runners := make(map[db.TaskKind]Runner)
	for _, kind := range []db.TaskKind{db.TaskAddSource, db.TaskDeleteItem, db.TaskDeleteSource, db.TaskUpdateConfig} {
		k := kind
		runners[k] = func(ctx context.Context, task db.TaskRecord) error {
			order = append(order, k)
			return nil
		}
	}
	if err := q.DrainAll(context.Background(), runners); err != nil {
		t.Fatalf("DrainAll: %v", err)
	}
	want := []db.TaskKind{db.TaskUpdateConfig, db.TaskDeleteSource, db.TaskDeleteItem, db.TaskAddSource}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestHasPendingReflectsDurableState(t *testing.T) {
	pool := openTestPool(t)
	q := New(db.NewQueueStore(pool))
	if _, err := q.Enqueue(db.TaskDeleteItem, `{"video_id":7}`); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	ok, err := q.HasPending(db.TaskDeleteItem, `{"video_id":7}`)
	if err != nil {
		t.Fatalf("HasPending: %v", err)
	}
	if !ok {
		t.Fatal("HasPending = false, want true")
	}
	ok, err = q.HasPending(db.TaskDeleteItem, `{"video_id":8}`)
	if err != nil {
		t.Fatalf("HasPending: %v", err)
	}
	if ok {
		t.Fatal("HasPending = true for unrelated payload, want false")
	}
}
