package broadcast

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"quizroom/internal/apperr"
	"quizroom/internal/events"
	"quizroom/internal/game"
	"quizroom/internal/logger"
	"quizroom/internal/metrics"
)

const DefaultBuffer = 16

// Recorder receives every snapshot produced by an applied command. It must
// not block; durability happens off the dispatch path.
type Recorder interface {
	Record(snap game.Snapshot)
}

type Options struct {
	Buffer   int
	Recorder Recorder
	Metrics  *metrics.Metrics
}

// Result is what a successful Dispatch returns to its caller.
type Result struct {
	Outcome  game.Outcome
	Snapshot game.Snapshot
}

// Hub owns one room's game. Commands are applied one at a time and each
// successful command is broadcast before the next one runs, so every
// subscriber sees the same order.
type Hub struct {
	mu   sync.Mutex
	game *game.Game

	subMu       sync.Mutex
	subscribers map[string]chan events.Event
	closed      bool

	buffer   int
	recorder Recorder
	metrics  *metrics.Metrics
}

func NewHub(g *game.Game, opts Options) *Hub {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	return &Hub{
		game:        g,
		subscribers: make(map[string]chan events.Event),
		buffer:      opts.Buffer,
		recorder:    opts.Recorder,
		metrics:     opts.Metrics,
	}
}

// Dispatch applies cmd and broadcasts the result. Errors go back to the
// caller only, except ErrCorruptState, which ends the game for everyone.
func (h *Hub) Dispatch(cmd game.Command) (Result, error) {
	start := time.Now()
	h.mu.Lock()
	res, err := h.apply(cmd)
	h.mu.Unlock()
	h.metrics.ObserveCommand(cmd.Name(), err, time.Since(start))
	return res, err
}

func (h *Hub) apply(cmd game.Command) (Result, error) {
	if h.isClosed() {
		return Result{}, fmt.Errorf("room %s is closed: %w", h.game.Code(), apperr.ErrNotFound)
	}
	before := h.game.Version()
	out, err := cmd.Apply(h.game)
	if err != nil {
		if errors.Is(err, apperr.ErrCorruptState) {
			h.terminate(err)
		}
		return Result{}, err
	}

	snap := h.game.Snapshot()
	h.publish(events.ForOutcome(out, &snap)...)
	if snap.Version != before {
		h.record(snap)
	}
	return Result{Outcome: out, Snapshot: snap}, nil
}

func (h *Hub) terminate(cause error) {
	logger.Log.Errorf("[Hub:%s] terminating room: %v", h.game.Code(), cause)
	h.game.Abort()
	snap := h.game.Snapshot()
	h.publish(events.Fatal("the game was stopped because of an internal error", &snap)...)
	h.record(snap)
}

func (h *Hub) record(snap game.Snapshot) {
	if h.recorder != nil {
		h.recorder.Record(snap)
	}
}

// Broadcast delivers evs to every subscriber in order with the room's commands.
// It is a no-op once the hub is closed.
func (h *Hub) Broadcast(evs ...events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publish(evs...)
}

// publish never blocks: a subscriber without room for an event is dropped and
// its channel closed. Callers hold h.mu.
func (h *Hub) publish(evs ...events.Event) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for id, ch := range h.subscribers {
		for _, ev := range evs {
			select {
			case ch <- ev:
				continue
			default:
			}
			logger.Log.Warnf("[Hub:%s] dropping slow subscriber %s", h.game.Code(), id)
			delete(h.subscribers, id)
			close(ch)
			h.metrics.SubscriberDropped()
			break
		}
	}
}

// Subscribe registers a connection and returns its event channel, primed with
// the current game_state. The channel is closed on Unsubscribe, when the
// subscriber falls behind, or when the room closes.
func (h *Hub) Subscribe(connID string) (<-chan events.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subMu.Lock()
	defer h.subMu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("room %s is closed: %w", h.game.Code(), apperr.ErrNotFound)
	}
	if _, exists := h.subscribers[connID]; exists {
		return nil, fmt.Errorf("subscriber %s already registered: %w", connID, apperr.ErrInvalidInput)
	}

	ch := make(chan events.Event, h.buffer)
	snap := h.game.Snapshot()
	ch <- events.State(&snap)
	h.subscribers[connID] = ch
	return ch, nil
}

func (h *Hub) Unsubscribe(connID string) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if ch, ok := h.subscribers[connID]; ok {
		delete(h.subscribers, connID)
		close(ch)
	}
}

func (h *Hub) isClosed() bool {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	return h.closed
}

func (h *Hub) SubscriberCount() int {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) Snapshot() game.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.game.Snapshot()
}

func (h *Hub) Distribution() (game.Distribution, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.game.Distribution()
}

// Idle describes a room for eviction decisions.
type Idle struct {
	Status      game.Status
	EndedAt     time.Time
	Subscribers int
}

// CloseIf closes the hub when pred accepts its current state. Checking and
// closing happen atomically with respect to Subscribe and Dispatch.
func (h *Hub) CloseIf(pred func(Idle) bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subMu.Lock()
	defer h.subMu.Unlock()

	if h.closed {
		return true
	}
	idle := Idle{Status: h.game.Status(), EndedAt: h.game.EndedAt(), Subscribers: len(h.subscribers)}
	if !pred(idle) {
		return false
	}
	h.closeLocked()
	return true
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.closeLocked()
}

func (h *Hub) closeLocked() {
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}
