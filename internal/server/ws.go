package server

import (
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/julienschmidt/httprouter"

	"quizroom/internal/auth"
	"quizroom/internal/logger"
)

// handleWS upgrades to a room connection. Callers without credentials join
// as observers; bad credentials are refused before the upgrade.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := s.Rooms.Get(ps.ByName("code"))
	if err != nil {
		writeError(w, err, http.StatusUnauthorized)
		return
	}
	user, err := auth.Identify(r, s.Auth)
	if err != nil && !errors.Is(err, auth.ErrNoCredentials) {
		writeError(w, err, http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.OriginPatterns})
	if err != nil {
		logger.Log.Warnf("[WSHub] accept failed: %v", err)
		return
	}
	defer conn.CloseNow()

	if err := s.Gateway.Serve(r.Context(), conn, room.Hub, user); err != nil {
		logger.Log.Debugf("[WSHub] connection to %s ended: %v", room.Code, err)
	}
}
