package server

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"quizroom/internal/apperr"
	"quizroom/internal/catalog"
	"quizroom/internal/logger"
)

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	username := ps.ByName("username")
	logger.Log.Infof("[Handle:PlayerStats] Request Received for %s", username)

	if s.Analytics == nil {
		writeError(w, fmt.Errorf("stats need a database: %w", apperr.ErrNotFound), http.StatusBadRequest)
		return
	}
	stats, err := s.Analytics.PlayerLifetimeStats(r.Context(), username)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list := []catalog.Summary{}
	if s.Catalog != nil {
		found, err := s.Catalog.List(r.Context())
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		list = append(list, found...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": list})
}
