package players

import (
	"fmt"
	"time"

	"quizroom/internal/apperr"
	"quizroom/internal/utility"
)

// Store holds the players of one room in join order. It has no lock of its
// own: the owning room serializes every access.
type Store struct {
	players map[string]*Player
	order   []string
}

func NewStore() *Store {
	return &Store{
		players: make(map[string]*Player),
	}
}

// Add creates a player, failing with ErrAlreadyJoined if the id is taken.
func (s *Store) Add(id string, now time.Time) (*Player, error) {
	if _, exists := s.players[id]; exists {
		return nil, fmt.Errorf("player %q: %w", id, apperr.ErrAlreadyJoined)
	}
	return s.insert(id, now), nil
}

// GetOrCreate returns the player with id, creating it if needed.
func (s *Store) GetOrCreate(id string, now time.Time) (*Player, bool) {
	if p, ok := s.players[id]; ok {
		return p, false
	}
	return s.insert(id, now), true
}

func (s *Store) insert(id string, now time.Time) *Player {
	player := &Player{ID: id, Color: utility.RandomColorHex(), JoinedAt: now}
	s.players[id] = player
	s.order = append(s.order, id)
	return player
}

func (s *Store) Get(id string) *Player {
	return s.players[id]
}

// GetList returns players in join order.
func (s *Store) GetList() []*Player {
	playerList := make([]*Player, 0, len(s.order))
	for _, id := range s.order {
		playerList = append(playerList, s.players[id])
	}
	return playerList
}

func (s *Store) Count() int {
	return len(s.order)
}

func (s *Store) SetReady(id string, isReady bool, now time.Time) *Player {
	p, _ := s.GetOrCreate(id, now)
	p.Ready = isReady
	return p
}

func (s *Store) AllReady() bool {
	if len(s.players) == 0 {
		return false
	}
	for _, player := range s.players {
		if !player.Ready {
			return false
		}
	}
	return true
}

// AllAnswered reports whether every player has answered the current question.
func (s *Store) AllAnswered() bool {
	if len(s.players) == 0 {
		return false
	}
	for _, player := range s.players {
		if !player.HasAnswered() {
			return false
		}
	}
	return true
}

// CloseQuestion resets every player's answer for the next question.
func (s *Store) CloseQuestion() {
	for _, p := range s.players {
		p.CloseQuestion()
	}
}
