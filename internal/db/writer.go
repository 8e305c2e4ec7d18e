package db

import (
	"context"
	"errors"
	"time"

	"quizroom/internal/apperr"
	"quizroom/internal/game"
	"quizroom/internal/logger"
	"quizroom/internal/metrics"
)

const (
	DefaultWriterBuffer  = 1000
	DefaultBatchSize     = 50
	DefaultFlushInterval = 500 * time.Millisecond
	DefaultRetries       = 3
	DefaultBackoff       = 100 * time.Millisecond

	shutdownFlushTimeout = 5 * time.Second
)

// SnapshotSaver persists a batch of room snapshots.
type SnapshotSaver interface {
	SaveSnapshots(ctx context.Context, snaps []game.Snapshot) error
}

type WriterConfig struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
	Retries       int
	Backoff       time.Duration
	Metrics       *metrics.Metrics
}

func (c *WriterConfig) defaults() {
	if c.Buffer <= 0 {
		c.Buffer = DefaultWriterBuffer
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
}

// Writer persists snapshots off the dispatch path. Snapshots of the same room
// waiting in one batch collapse into the newest.
type Writer struct {
	saver  SnapshotSaver
	buffer chan game.Snapshot
	cfg    WriterConfig
}

func NewWriter(saver SnapshotSaver, cfg WriterConfig) *Writer {
	cfg.defaults()
	return &Writer{
		saver:  saver,
		buffer: make(chan game.Snapshot, cfg.Buffer),
		cfg:    cfg,
	}
}

// Record queues snap without blocking. When the buffer is full the snapshot
// is dropped; the room's next snapshot supersedes it.
func (w *Writer) Record(snap game.Snapshot) {
	select {
	case w.buffer <- snap:
	default:
		logger.Log.Warnf("[DB] snapshot buffer full, dropping %s v%d", snap.Code, snap.Version)
		w.cfg.Metrics.SnapshotDropped()
	}
}

// Run flushes every FlushInterval or once BatchSize rooms are pending. When
// ctx ends it drains what is queued and flushes one last time.
func (w *Writer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	batch := newBatch()
	for {
		select {
		case snap := <-w.buffer:
			batch.add(snap)
			if batch.len() >= w.cfg.BatchSize {
				w.flush(ctx, batch.take())
			}
		case <-ticker.C:
			if batch.len() > 0 {
				w.flush(ctx, batch.take())
			}
		case <-ctx.Done():
			w.drain(batch)
			return
		}
	}
}

func (w *Writer) drain(batch *pending) {
	for {
		select {
		case snap := <-w.buffer:
			batch.add(snap)
			continue
		default:
		}
		break
	}
	if batch.len() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()
	w.flush(ctx, batch.take())
}

func (w *Writer) flush(ctx context.Context, snaps []game.Snapshot) {
	backoff := w.cfg.Backoff
	for attempt := 0; ; attempt++ {
		err := w.saver.SaveSnapshots(ctx, snaps)
		if err == nil {
			return
		}
		if !errors.Is(err, apperr.ErrTransient) || attempt >= w.cfg.Retries {
			logger.Log.Errorf("[DB] SaveSnapshots failed, dropping %d rooms: %v", len(snaps), err)
			w.cfg.Metrics.PersistFailed()
			return
		}
		logger.Log.Warnf("[DB] SaveSnapshots attempt %d failed: %v", attempt+1, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			logger.Log.Errorf("[DB] SaveSnapshots abandoned, dropping %d rooms: %v", len(snaps), ctx.Err())
			w.cfg.Metrics.PersistFailed()
			return
		}
		backoff *= 2
	}
}

// pending keeps the newest snapshot per room in arrival order.
type pending struct {
	order []string
	rooms map[string]game.Snapshot
}

func newBatch() *pending {
	return &pending{rooms: make(map[string]game.Snapshot)}
}

func (p *pending) add(snap game.Snapshot) {
	cur, ok := p.rooms[snap.Code]
	if !ok {
		p.order = append(p.order, snap.Code)
	} else if cur.Version > snap.Version {
		return
	}
	p.rooms[snap.Code] = snap
}

func (p *pending) len() int {
	return len(p.order)
}

func (p *pending) take() []game.Snapshot {
	out := make([]game.Snapshot, 0, len(p.order))
	for _, code := range p.order {
		out = append(out, p.rooms[code])
	}
	p.order = p.order[:0]
	clear(p.rooms)
	return out
}
