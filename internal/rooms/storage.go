package rooms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quizroom/internal/apperr"
	"quizroom/internal/broadcast"
	"quizroom/internal/game"
	"quizroom/internal/logger"
	"quizroom/internal/metrics"
)

const (
	DefaultWaitingTTL   = 30 * time.Minute
	DefaultCompletedTTL = 5 * time.Minute

	codeAttempts  = 10
	ledgerTimeout = 2 * time.Second
)

var ErrCodesExhausted = errors.New("failed to generate unique room code")

// CodeLedger knows codes held by rooms that are no longer in memory. A
// code found there is never handed out again.
type CodeLedger interface {
	RoomExists(ctx context.Context, code string) (bool, error)
}

type Config struct {
	Hub          broadcast.Options
	Ledger       CodeLedger
	WaitingTTL   time.Duration
	CompletedTTL time.Duration
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

// Store is the process-wide room registry. Rooms live until the sweeper
// evicts them or Remove is called.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room
	cfg   Config
}

func NewStore(cfg Config) *Store {
	if cfg.WaitingTTL <= 0 {
		cfg.WaitingTTL = DefaultWaitingTTL
	}
	if cfg.CompletedTTL <= 0 {
		cfg.CompletedTTL = DefaultCompletedTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Hub.Metrics == nil {
		cfg.Hub.Metrics = cfg.Metrics
	}
	return &Store{
		rooms: make(map[string]*Room),
		cfg:   cfg,
	}
}

// Create makes a room under a fresh random code, unused in memory and in the
// ledger.
func (s *Store) Create(p Params) (*Room, error) {
	if err := p.Quiz.Validate(); err != nil {
		return nil, err
	}

	for range codeAttempts {
		code, err := GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		if s.usedBefore(code) {
			continue
		}
		s.mu.Lock()
		if _, exists := s.rooms[code]; !exists {
			room := s.insertLocked(code, p)
			s.mu.Unlock()
			return room, nil
		}
		s.mu.Unlock()
	}
	logger.Log.Errorf("[Rooms] no free code after %d attempts with %d rooms", codeAttempts, len(s.List()))
	return nil, fmt.Errorf("%w after %d attempts", ErrCodesExhausted, codeAttempts)
}

// usedBefore asks the ledger about code. An unreachable ledger does not
// block room creation.
func (s *Store) usedBefore(code string) bool {
	if s.cfg.Ledger == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	used, err := s.cfg.Ledger.RoomExists(ctx, code)
	if err != nil {
		logger.Log.Warnf("[Rooms] checking code %s against the ledger: %v", code, err)
		return false
	}
	return used
}

// GetOrCreate returns the room under code, creating it from p when absent.
// The boolean reports whether a room was created.
func (s *Store) GetOrCreate(code string, p Params) (*Room, bool, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, false, fmt.Errorf("empty room code: %w", apperr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[code]; ok {
		return room, false, nil
	}
	if err := p.Quiz.Validate(); err != nil {
		return nil, false, err
	}
	return s.insertLocked(code, p), true, nil
}

func (s *Store) insertLocked(code string, p Params) *Room {
	g := game.New(code, p.HostID, p.Quiz, game.Config{MaxPlayers: p.MaxPlayers, Now: s.cfg.Now})
	room := &Room{
		Code:      code,
		Hub:       broadcast.NewHub(g, s.cfg.Hub),
		CreatedAt: s.cfg.Now(),
		HostID:    p.HostID,
	}
	s.rooms[code] = room
	s.cfg.Metrics.SetRooms(len(s.rooms))
	logger.Log.Infof("[Rooms] created %s for host %s", code, p.HostID)
	return room
}

func (s *Store) Get(code string) (*Room, error) {
	code = NormalizeCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", code, apperr.ErrNotFound)
	}
	return room, nil
}

// Remove drops the room and disconnects its subscribers.
func (s *Store) Remove(code string) {
	code = NormalizeCode(code)
	s.mu.Lock()
	room, ok := s.rooms[code]
	delete(s.rooms, code)
	s.cfg.Metrics.SetRooms(len(s.rooms))
	s.mu.Unlock()
	if ok {
		room.Hub.Close()
	}
}

func (s *Store) List() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, r)
	}
	return list
}

// Sweep evicts idle rooms: completed ones with nobody connected once
// CompletedTTL has passed since the end, and waiting ones with nobody
// connected after WaitingTTL. It returns the evicted codes.
func (s *Store) Sweep(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for code, room := range s.rooms {
		createdAt := room.CreatedAt
		idle := room.Hub.CloseIf(func(st broadcast.Idle) bool {
			if st.Subscribers > 0 {
				return false
			}
			switch st.Status {
			case game.StatusCompleted:
				return now.Sub(st.EndedAt) > s.cfg.CompletedTTL
			case game.StatusWaiting:
				return now.Sub(createdAt) > s.cfg.WaitingTTL
			}
			return false
		})
		if !idle {
			continue
		}
		delete(s.rooms, code)
		evicted = append(evicted, code)
		s.cfg.Metrics.RoomEvicted()
	}
	s.cfg.Metrics.SetRooms(len(s.rooms))
	if len(evicted) > 0 {
		logger.Log.Infof("[Rooms] evicted %d idle rooms", len(evicted))
	}
	return evicted
}

// Run sweeps on every tick until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.cfg.Now())
		}
	}
}
