package wshub

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"quizroom/internal/apperr"
	"quizroom/internal/game"
)

// Inbound message types.
const (
	TypePlayerReady  = "player_ready"
	TypeStartGame    = "start_game"
	TypeNextQuestion = "next_question"
	TypeSubmitAnswer = "submit_answer"
)

var errMalformed = errors.New("malformed message")

// ClientMessage is the JSON structure received from clients.
type ClientMessage struct {
	Type       string   `json:"type"`
	UserID     string   `json:"user_id,omitempty"`
	IsReady    *bool    `json:"is_ready,omitempty"`
	Username   string   `json:"username,omitempty"`
	Answer     *int     `json:"answer,omitempty"`
	AnswerTime *float64 `json:"answer_time,omitempty"`
}

// decode parses a raw frame. Anything that cannot become a command is
// errMalformed.
func decode(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	switch msg.Type {
	case TypePlayerReady:
		if msg.IsReady == nil {
			return ClientMessage{}, fmt.Errorf("%w: player_ready without is_ready", errMalformed)
		}
	case TypeStartGame, TypeNextQuestion:
	case TypeSubmitAnswer:
		if msg.Answer == nil {
			return ClientMessage{}, fmt.Errorf("%w: submit_answer without answer", errMalformed)
		}
	default:
		return ClientMessage{}, fmt.Errorf("%w: unknown type %q", errMalformed, msg.Type)
	}
	return msg, nil
}

// command turns msg into a game command acting as identity. A message may
// name its user, but only the connection's own.
func command(msg ClientMessage, identity string) (game.Command, error) {
	if identity == "" {
		return nil, fmt.Errorf("%s requires an authenticated connection: %w", msg.Type, apperr.ErrUnauthenticated)
	}
	claimed := msg.Username
	if msg.Type == TypePlayerReady {
		claimed = msg.UserID
	}
	if claimed != "" && claimed != identity {
		return nil, fmt.Errorf("cannot act as %s: %w", claimed, apperr.ErrForbidden)
	}

	switch msg.Type {
	case TypePlayerReady:
		return game.SetReady{UserID: identity, Ready: *msg.IsReady}, nil
	case TypeStartGame:
		return game.Start{UserID: identity}, nil
	case TypeNextQuestion:
		return game.Advance{UserID: identity}, nil
	default:
		elapsed := math.NaN()
		if msg.AnswerTime != nil {
			elapsed = *msg.AnswerTime
		}
		return game.SubmitAnswer{UserID: identity, Option: *msg.Answer, Elapsed: elapsed}, nil
	}
}
