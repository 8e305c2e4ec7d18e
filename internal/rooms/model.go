package rooms

import (
	"time"

	"quizroom/internal/broadcast"
	"quizroom/internal/quiz"
)

type Room struct {
	Code      string
	Hub       *broadcast.Hub
	CreatedAt time.Time
	HostID    string
}

// Params describes a room to create. MaxPlayers of zero means the default.
type Params struct {
	HostID     string
	Quiz       quiz.Definition
	MaxPlayers int
}
