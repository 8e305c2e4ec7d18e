package db

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/lib/pq"

	"quizroom/internal/apperr"
)

func TestSaveError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"bad connection", driver.ErrBadConn, true},
		{"network", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}, true},
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"too many connections", &pq.Error{Code: "53300"}, true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"invalid text", &pq.Error{Code: "22P02"}, false},
		{"undefined column", &pq.Error{Code: "42703"}, false},
		{"wrapped pq error", fmt.Errorf("exec: %w", &pq.Error{Code: "23503"}), false},
		{"encoding", errors.New("sql: converting argument $3 type: unsupported type"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := saveError("saving room AAAAAA", tt.err)
			if got := errors.Is(err, apperr.ErrTransient); got != tt.transient {
				t.Errorf("transient = %v, want %v (err %v)", got, tt.transient, err)
			}
			if !errors.Is(err, tt.err) && !tt.transient {
				t.Errorf("permanent error should keep its cause, got %v", err)
			}
		})
	}
}
