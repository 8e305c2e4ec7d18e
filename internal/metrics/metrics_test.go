package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCommand("start_game", nil, time.Millisecond)
	m.SetRooms(3)
	m.IncConnections()
	m.DecConnections()
	m.SubscriberDropped()
	m.SnapshotDropped()
	m.PersistFailed()
	m.RoomEvicted()
}

func TestObserveCommand(t *testing.T) {
	m := New()
	m.ObserveCommand("start_game", nil, time.Millisecond)
	m.ObserveCommand("start_game", errors.New("forbidden"), time.Millisecond)
	m.ObserveCommand("start_game", nil, time.Millisecond)

	if got := testutil.ToFloat64(m.Commands.WithLabelValues("start_game", "ok")); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Commands.WithLabelValues("start_game", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetRooms(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "quizroom_rooms_active 2") {
		t.Errorf("metrics output missing rooms gauge:\n%s", body)
	}
}

func TestNewIsolatedRegistries(t *testing.T) {
	// separate registries, no duplicate registration panic
	New()
	New()
}
