package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/lib/pq"

	"quizroom/internal/apperr"
	"quizroom/internal/game"
)

const upsertRoom = `
	INSERT INTO rooms (code, host_id, status, current_question, total_questions, max_players, version, created_at, started_at, ended_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	ON CONFLICT (code) DO UPDATE SET
		status = EXCLUDED.status,
		current_question = EXCLUDED.current_question,
		version = EXCLUDED.version,
		started_at = EXCLUDED.started_at,
		ended_at = EXCLUDED.ended_at,
		updated_at = now()
	WHERE rooms.version < EXCLUDED.version`

const upsertRoomPlayer = `
	INSERT INTO room_players (room_code, user_id, position, color, score, is_ready, correct_answers, current_streak, best_streak, total_questions, average_time, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (room_code, user_id) DO UPDATE SET
		score = EXCLUDED.score,
		is_ready = EXCLUDED.is_ready,
		correct_answers = EXCLUDED.correct_answers,
		current_streak = EXCLUDED.current_streak,
		best_streak = EXCLUDED.best_streak,
		total_questions = EXCLUDED.total_questions,
		average_time = EXCLUDED.average_time,
		version = EXCLUDED.version
	WHERE room_players.version < EXCLUDED.version`

// SaveSnapshots writes rooms and their players in one transaction. Rows
// already holding a newer version are left alone.
func (d *DB) SaveSnapshots(ctx context.Context, snaps []game.Snapshot) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return saveError("beginning transaction", err)
	}
	defer tx.Rollback()

	roomStmt, err := tx.PrepareContext(ctx, upsertRoom)
	if err != nil {
		return saveError("preparing room statement", err)
	}
	defer roomStmt.Close()

	playerStmt, err := tx.PrepareContext(ctx, upsertRoomPlayer)
	if err != nil {
		return saveError("preparing player statement", err)
	}
	defer playerStmt.Close()

	for _, s := range snaps {
		if _, err := roomStmt.ExecContext(ctx, s.Code, s.Host, string(s.Status), s.CurrentQuestion,
			s.TotalQuestions, s.MaxPlayers, int64(s.Version), s.CreatedAt, nullTime(s.StartedAt), nullTime(s.EndedAt)); err != nil {
			return saveError(fmt.Sprintf("saving room %s", s.Code), err)
		}
		for i, p := range s.Players {
			if _, err := playerStmt.ExecContext(ctx, s.Code, p.Username, i, p.Color, p.Score, p.IsReady,
				p.CorrectAnswers, p.CurrentStreak, p.BestStreak, p.TotalQuestions, p.AverageTime, int64(s.Version)); err != nil {
				return saveError(fmt.Sprintf("saving player %s in %s", p.Username, s.Code), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return saveError("committing snapshots", err)
	}
	return nil
}

// saveError marks err transient when a later attempt may succeed.
func saveError(msg string, err error) error {
	if retryable(err) {
		return fmt.Errorf("%s: %v: %w", msg, err, apperr.ErrTransient)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// retryable reports lost connections, serialization failures, deadlocks and
// resource exhaustion. Constraint and data errors fail the same way every time.
func retryable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// RoomExists reports whether code was ever persisted.
func (d *DB) RoomExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := d.conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking room %s: %w", code, err)
	}
	return exists, nil
}

// RoomRecord is the stored header of a room.
type RoomRecord struct {
	Code            string
	HostID          string
	Status          string
	CurrentQuestion int
	TotalQuestions  int
	MaxPlayers      int
	Version         int64
	CreatedAt       time.Time
	StartedAt       *time.Time
	EndedAt         *time.Time
}

func (d *DB) GetRoom(ctx context.Context, code string) (*RoomRecord, error) {
	var r RoomRecord
	var started, ended sql.NullTime
	err := d.conn.QueryRowContext(ctx, `
		SELECT code, host_id, status, current_question, total_questions, max_players, version, created_at, started_at, ended_at
		FROM rooms WHERE code = $1
	`, code).Scan(&r.Code, &r.HostID, &r.Status, &r.CurrentQuestion, &r.TotalQuestions, &r.MaxPlayers,
		&r.Version, &r.CreatedAt, &started, &ended)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("room %s: %w", code, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting room: %w", err)
	}
	if started.Valid {
		r.StartedAt = &started.Time
	}
	if ended.Valid {
		r.EndedAt = &ended.Time
	}
	return &r, nil
}
