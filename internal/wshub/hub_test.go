package wshub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"quizroom/internal/broadcast"
	"quizroom/internal/events"
	"quizroom/internal/game"
	"quizroom/internal/quiz"
)

func newRoom() *broadcast.Hub {
	def := quiz.Definition{
		Title: "ws",
		Questions: []quiz.Question{
			{Text: "Q1", Options: []string{"A", "B"}, CorrectIndex: 0, TimeLimitSeconds: 30},
			{Text: "Q2", Options: []string{"A", "B"}, CorrectIndex: 1, TimeLimitSeconds: 30},
		},
	}
	return broadcast.NewHub(game.New("WSTEST", "host", def, game.DefaultConfig()), broadcast.Options{Buffer: 32})
}

func newServer(t *testing.T, room *broadcast.Hub) *httptest.Server {
	t.Helper()
	gw := &Gateway{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		gw.Serve(r.Context(), conn, room, r.URL.Query().Get("user"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var ev events.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func expect(t *testing.T, conn *websocket.Conn, typ string) events.Event {
	t.Helper()
	ev := read(t, conn)
	if ev.Type != typ {
		t.Fatalf("event = %+v, want type %q", ev, typ)
	}
	return ev
}

func TestGateway_GameFlow(t *testing.T) {
	room := newRoom()
	if _, err := room.Dispatch(game.Join{UserID: "alice"}); err != nil {
		t.Fatal(err)
	}
	srv := newServer(t, room)

	host := dial(t, srv, "host")
	alice := dial(t, srv, "alice")
	if ev := expect(t, host, events.GameState); len(ev.Game.Players) != 2 {
		t.Errorf("initial players = %d, want 2", len(ev.Game.Players))
	}
	expect(t, alice, events.GameState)

	// non-host start goes back to alice alone
	send(t, alice, `{"type":"start_game","username":"alice"}`)
	if ev := expect(t, alice, events.Error); ev.Code != "forbidden" {
		t.Errorf("error code = %q, want forbidden", ev.Code)
	}

	send(t, host, `{"type":"start_game","username":"host"}`)
	for _, c := range []*websocket.Conn{host, alice} {
		ev := expect(t, c, events.GameStarted)
		if ev.Game.Question == nil || ev.Game.Question.CorrectAnswer != nil {
			t.Errorf("started snapshot question = %+v, want question without answer", ev.Game.Question)
		}
	}

	send(t, alice, `{"type":"submit_answer","username":"alice","answer":0,"answer_time":3}`)
	for _, c := range []*websocket.Conn{host, alice} {
		ev := expect(t, c, events.AnswerSubmitted)
		if ev.Player != "alice" || *ev.Answer != 0 || !*ev.IsCorrect {
			t.Errorf("answer event = %+v", ev)
		}
		upd := expect(t, c, events.GameStateUpdate)
		if p, _ := upd.Game.Player("alice"); p.Score == 0 {
			t.Error("alice should have scored")
		}
	}

	// malformed frames are dropped and the session survives
	send(t, alice, `{not json`)
	send(t, alice, `{"type":"submit_answer","answer":1}`)
	expect(t, alice, events.GameStateUpdate)
	expect(t, host, events.GameStateUpdate)

	send(t, host, `{"type":"next_question","username":"host"}`)
	if ev := expect(t, alice, events.NextQuestion); ev.Game.CurrentQuestion != 1 {
		t.Errorf("current question = %d, want 1", ev.Game.CurrentQuestion)
	}
}

func TestGateway_ObserverCannotAct(t *testing.T) {
	room := newRoom()
	srv := newServer(t, room)
	obs := dial(t, srv, "")
	expect(t, obs, events.GameState)

	send(t, obs, `{"type":"start_game","username":"host"}`)
	if ev := expect(t, obs, events.Error); ev.Code != "unauthenticated" {
		t.Errorf("error code = %q, want unauthenticated", ev.Code)
	}
	if room.Snapshot().Status != game.StatusWaiting {
		t.Error("observer must not change the room")
	}
}

func TestGateway_ImpersonationForbidden(t *testing.T) {
	room := newRoom()
	srv := newServer(t, room)
	alice := dial(t, srv, "alice")
	expect(t, alice, events.GameState)

	send(t, alice, `{"type":"start_game","username":"host"}`)
	if ev := expect(t, alice, events.Error); ev.Code != "forbidden" {
		t.Errorf("error code = %q, want forbidden", ev.Code)
	}
}

func TestGateway_DisconnectUnsubscribes(t *testing.T) {
	room := newRoom()
	srv := newServer(t, room)
	conn := dial(t, srv, "alice")
	expect(t, conn, events.GameState)
	if room.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", room.SubscriberCount())
	}

	conn.Close(websocket.StatusNormalClosure, "bye")
	deadline := time.Now().Add(2 * time.Second)
	for room.SubscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if room.SubscriberCount() != 0 {
		t.Error("closed connection should be unsubscribed")
	}
	if room.Snapshot().Version != 0 {
		t.Error("disconnect must not change the room")
	}
}

func TestGateway_ClosedRoomDisconnects(t *testing.T) {
	room := newRoom()
	srv := newServer(t, room)
	conn := dial(t, srv, "alice")
	expect(t, conn, events.GameState)

	room.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusTryAgainLater {
		t.Errorf("close status = %v (err %v), want StatusTryAgainLater", status, err)
	}
}
