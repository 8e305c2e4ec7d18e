package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"quizroom/internal/apperr"
	"quizroom/internal/game"
	"quizroom/internal/metrics"
)

type fakeSaver struct {
	mu      sync.Mutex
	calls   int
	fail    int
	err     error
	batches [][]game.Snapshot
	saved   chan struct{}
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{saved: make(chan struct{}, 100)}
}

func (f *fakeSaver) SaveSnapshots(_ context.Context, snaps []game.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fail {
		return f.err
	}
	f.batches = append(f.batches, append([]game.Snapshot(nil), snaps...))
	f.saved <- struct{}{}
	return nil
}

func (f *fakeSaver) snapshot() (int, [][]game.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.batches
}

func waitSaved(t *testing.T, f *fakeSaver) {
	t.Helper()
	select {
	case <-f.saved:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
	}
}

func snap(code string, version uint64) game.Snapshot {
	return game.Snapshot{Code: code, Version: version}
}

func TestWriter_CoalescesPerRoom(t *testing.T) {
	saver := newFakeSaver()
	w := NewWriter(saver, WriterConfig{FlushInterval: 20 * time.Millisecond})
	w.Record(snap("AAAAAA", 1))
	w.Record(snap("BBBBBB", 1))
	w.Record(snap("AAAAAA", 3))
	w.Record(snap("AAAAAA", 2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	waitSaved(t, saver)

	_, batches := saver.snapshot()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("batches = %v, want one batch of 2 rooms", batches)
	}
	if got := batches[0][0]; got.Code != "AAAAAA" || got.Version != 3 {
		t.Errorf("first = %s v%d, want AAAAAA v3", got.Code, got.Version)
	}
}

func TestWriter_FlushesAtBatchSize(t *testing.T) {
	saver := newFakeSaver()
	w := NewWriter(saver, WriterConfig{BatchSize: 5, FlushInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for i := 0; i < 5; i++ {
		w.Record(snap(fmt.Sprintf("ROOM%02d", i), 1))
	}
	waitSaved(t, saver)
	if _, batches := saver.snapshot(); len(batches[0]) != 5 {
		t.Errorf("batch size = %d, want 5", len(batches[0]))
	}
}

func TestWriter_RetriesTransient(t *testing.T) {
	saver := newFakeSaver()
	saver.fail = 2
	saver.err = fmt.Errorf("connection reset: %w", apperr.ErrTransient)
	w := NewWriter(saver, WriterConfig{FlushInterval: 10 * time.Millisecond, Backoff: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Record(snap("AAAAAA", 1))
	waitSaved(t, saver)
	if calls, _ := saver.snapshot(); calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWriter_GivesUpAfterRetries(t *testing.T) {
	m := metrics.New()
	saver := newFakeSaver()
	saver.fail = 100
	saver.err = fmt.Errorf("down: %w", apperr.ErrTransient)
	w := NewWriter(saver, WriterConfig{Backoff: time.Millisecond, Metrics: m})

	w.flush(context.Background(), []game.Snapshot{snap("AAAAAA", 1)})

	if calls, _ := saver.snapshot(); calls != DefaultRetries+1 {
		t.Errorf("calls = %d, want %d", calls, DefaultRetries+1)
	}
	if got := testutil.ToFloat64(m.PersistFailures); got != 1 {
		t.Errorf("persist failures = %v, want 1", got)
	}
}

func TestWriter_NoRetryOnPermanentError(t *testing.T) {
	saver := newFakeSaver()
	saver.fail = 100
	saver.err = errors.New("constraint violation")
	w := NewWriter(saver, WriterConfig{Backoff: time.Millisecond})

	w.flush(context.Background(), []game.Snapshot{snap("AAAAAA", 1)})
	if calls, _ := saver.snapshot(); calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWriter_RecordDropsWhenFull(t *testing.T) {
	m := metrics.New()
	w := NewWriter(newFakeSaver(), WriterConfig{Buffer: 1, Metrics: m})
	w.Record(snap("AAAAAA", 1))
	w.Record(snap("AAAAAA", 2))
	if got := testutil.ToFloat64(m.SnapshotsDropped); got != 1 {
		t.Errorf("snapshots dropped = %v, want 1", got)
	}
}

func TestWriter_FlushesOnShutdown(t *testing.T) {
	saver := newFakeSaver()
	w := NewWriter(saver, WriterConfig{FlushInterval: time.Hour})
	w.Record(snap("AAAAAA", 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	if _, batches := saver.snapshot(); len(batches) != 1 {
		t.Errorf("batches after shutdown = %d, want 1", len(batches))
	}
}
