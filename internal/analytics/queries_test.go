package analytics

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"quizroom/internal/apperr"
	"quizroom/internal/db"
	"quizroom/internal/game"
)

func TestAccuracy(t *testing.T) {
	tests := []struct {
		correct, answered int
		want              float64
	}{
		{0, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{5, 5, 100},
	}
	for _, tt := range tests {
		if got := accuracy(tt.correct, tt.answered); got != tt.want {
			t.Errorf("accuracy(%d, %d) = %v, want %v", tt.correct, tt.answered, got, tt.want)
		}
	}
}

func getTestQueries(t *testing.T) (*db.DB, *Queries) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}
	ctx := context.Background()
	database, err := db.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := database.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	t.Cleanup(func() {
		database.Conn().Exec("DELETE FROM room_players")
		database.Conn().Exec("DELETE FROM rooms")
		database.Close()
	})
	return database, NewQueries(database)
}

func completedSnapshot(code string, players ...game.PlayerView) game.Snapshot {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return game.Snapshot{
		Code:           code,
		Status:         game.StatusCompleted,
		Host:           "host",
		TotalQuestions: 2,
		MaxPlayers:     10,
		Version:        9,
		CreatedAt:      at,
		StartedAt:      &at,
		EndedAt:        &at,
		Players:        players,
	}
}

func TestGameLeaderboard(t *testing.T) {
	database, q := getTestQueries(t)
	ctx := context.Background()

	snap := completedSnapshot("ANLY01",
		game.PlayerView{Username: "host", Score: 500},
		game.PlayerView{Username: "alice", Score: 1500},
		game.PlayerView{Username: "bob", Score: 500},
	)
	if err := database.SaveSnapshots(ctx, []game.Snapshot{snap}); err != nil {
		t.Fatal(err)
	}

	recap, err := q.GameLeaderboard(ctx, "ANLY01")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alice", "host", "bob"}
	if len(recap.Leaderboard) != len(want) {
		t.Fatalf("leaderboard = %+v", recap.Leaderboard)
	}
	for i, name := range want {
		if recap.Leaderboard[i].Username != name {
			t.Errorf("leaderboard[%d] = %q, want %q", i, recap.Leaderboard[i].Username, name)
		}
	}
	if !recap.Leaderboard[1].IsHost {
		t.Error("host should be flagged")
	}

	if _, err := q.GameLeaderboard(ctx, "NOPE00"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing room error = %v, want ErrNotFound", err)
	}
}

func TestPlayerLifetimeStats(t *testing.T) {
	database, q := getTestQueries(t)
	ctx := context.Background()

	database.SaveSnapshots(ctx, []game.Snapshot{
		completedSnapshot("ANLY02",
			game.PlayerView{Username: "alice", Score: 900, CorrectAnswers: 1, TotalQuestions: 2, BestStreak: 1},
			game.PlayerView{Username: "bob", Score: 300}),
		completedSnapshot("ANLY03",
			game.PlayerView{Username: "alice", Score: 100, TotalQuestions: 2},
			game.PlayerView{Username: "bob", Score: 700}),
	})

	stats, err := q.PlayerLifetimeStats(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if stats.GamesPlayed != 2 || stats.TotalScore != 1000 || stats.BestGame != 900 || stats.WinCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Accuracy != 25 {
		t.Errorf("Accuracy = %v, want 25", stats.Accuracy)
	}

	if _, err := q.PlayerLifetimeStats(ctx, "nobody"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown player error = %v, want ErrNotFound", err)
	}
}
