package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"quizroom/internal/analytics"
	"quizroom/internal/apperr"
	"quizroom/internal/auth"
	"quizroom/internal/catalog"
	"quizroom/internal/db"
	"quizroom/internal/game"
	"quizroom/internal/logger"
	"quizroom/internal/metrics"
	"quizroom/internal/quiz"
	"quizroom/internal/rooms"
	"quizroom/internal/wshub"
)

const (
	maxBodyBytes = 1 << 20
	qrSize       = 320
)

// Authenticator resolves callers and issues WebSocket tickets.
type Authenticator interface {
	auth.Resolver
	GenerateWSTicket(username string) (string, error)
}

type Server struct {
	Rooms          *rooms.Store
	Auth           Authenticator
	Catalog        catalog.Catalog     // nil if no quiz catalog configured
	DB             *db.DB              // nil if no database configured
	Analytics      *analytics.Queries  // nil if no database configured
	Metrics        *metrics.Metrics
	Gateway        *wshub.Gateway
	TicketTTL      time.Duration
	MaxPlayers     int
	OriginPatterns []string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnf("[HTTP] encoding response: %v", err)
	}
}

// writeError maps err onto a status. Unauthenticated callers get
// unauthenticated, which differs per endpoint.
func writeError(w http.ResponseWriter, err error, unauthenticated int) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrUnauthenticated):
		status = unauthenticated
	case errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrRoomFull),
		errors.Is(err, apperr.ErrAlreadyJoined),
		errors.Is(err, apperr.ErrConfiguration),
		errors.Is(err, apperr.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Log.Errorf("[HTTP] %v", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: apperr.Code(err)})
}

// decodeBody reads a JSON body into v and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v: %w", err, apperr.ErrInvalidInput)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid request: %v: %w", err, apperr.ErrInvalidInput)
	}
	return nil
}

// caller resolves the request's identity. A username in the body, when
// present, has to match it.
func (s *Server) caller(r *http.Request, username string) (string, error) {
	user, err := auth.Identify(r, s.Auth)
	if err != nil {
		return "", err
	}
	if username != "" && username != user {
		return "", fmt.Errorf("cannot act as %s: %w", username, apperr.ErrForbidden)
	}
	return user, nil
}

type createRoomRequest struct {
	QuizData   json.RawMessage `json:"quiz_data"`
	QuizID     string          `json:"quiz_id"`
	MaxPlayers *int            `json:"max_players" validate:"omitempty,min=1,max=100"`
	Username   string          `json:"username"`
}

type roomResponse struct {
	GameCode string         `json:"game_code"`
	Game     *game.Snapshot `json:"game"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	logger.Log.Info("[Handle:CreateRoom] Request Received")

	host, err := s.caller(r, "")
	if err != nil {
		writeError(w, err, http.StatusUnauthorized)
		return
	}
	var req createRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err, http.StatusUnauthorized)
		return
	}
	if req.Username != "" && req.Username != host {
		writeError(w, fmt.Errorf("cannot create as %s: %w", req.Username, apperr.ErrForbidden), http.StatusUnauthorized)
		return
	}

	def, err := s.loadQuiz(r.Context(), req)
	if err != nil {
		writeError(w, err, http.StatusUnauthorized)
		return
	}

	maxPlayers := s.MaxPlayers
	if req.MaxPlayers != nil {
		maxPlayers = *req.MaxPlayers
	}
	room, err := s.Rooms.Create(rooms.Params{HostID: host, Quiz: def, MaxPlayers: maxPlayers})
	if err != nil {
		writeError(w, err, http.StatusUnauthorized)
		return
	}

	snap := room.Hub.Snapshot()
	logger.Log.Infof("[Handle:CreateRoom] Created room %s", room.Code)
	writeJSON(w, http.StatusCreated, roomResponse{GameCode: room.Code, Game: &snap})
}

func (s *Server) loadQuiz(ctx context.Context, req createRoomRequest) (quiz.Definition, error) {
	switch {
	case len(req.QuizData) > 0 && req.QuizID != "":
		return quiz.Definition{}, fmt.Errorf("give quiz_data or quiz_id, not both: %w", apperr.ErrInvalidInput)
	case len(req.QuizData) > 0:
		return quiz.Parse(req.QuizData)
	case req.QuizID != "":
		if s.Catalog == nil {
			return quiz.Definition{}, fmt.Errorf("no quiz catalog configured: %w", apperr.ErrNotFound)
		}
		return s.Catalog.Get(ctx, req.QuizID)
	default:
		return quiz.Definition{}, fmt.Errorf("quiz_data or quiz_id is required: %w", apperr.ErrInvalidInput)
	}
}

type joinRoomRequest struct {
	GameCode string `json:"game_code" validate:"required"`
	Username string `json:"username"`
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	logger.Log.Info("[Handle:JoinRoom] Request Received")

	var req joinRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err, http.StatusForbidden)
		return
	}
	user, err := s.caller(r, req.Username)
	if err != nil {
		writeError(w, err, http.StatusForbidden)
		return
	}
	room, err := s.Rooms.Get(req.GameCode)
	if err != nil {
		writeError(w, err, http.StatusForbidden)
		return
	}
	res, err := room.Hub.Dispatch(game.Join{UserID: user})
	if err != nil {
		writeError(w, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{GameCode: room.Code, Game: &res.Snapshot})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := s.Rooms.Get(ps.ByName("code"))
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	snap := room.Hub.Snapshot()
	writeJSON(w, http.StatusOK, &snap)
}

type hostRequest struct {
	Username string `json:"username"`
}

// dispatchHost runs a host command built for the caller.
func (s *Server) dispatchHost(w http.ResponseWriter, r *http.Request, ps httprouter.Params, build func(user string) game.Command) {
	var req hostRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err, http.StatusForbidden)
			return
		}
	}
	room, err := s.Rooms.Get(ps.ByName("code"))
	if err != nil {
		writeError(w, err, http.StatusForbidden)
		return
	}
	user, err := s.caller(r, req.Username)
	if err != nil {
		writeError(w, err, http.StatusForbidden)
		return
	}
	res, err := room.Hub.Dispatch(build(user))
	if err != nil {
		writeError(w, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, &res.Snapshot)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	logger.Log.Infof("[Handle:Start] Request Received for %s", ps.ByName("code"))
	s.dispatchHost(w, r, ps, func(user string) game.Command { return game.Start{UserID: user} })
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	logger.Log.Infof("[Handle:Next] Request Received for %s", ps.ByName("code"))
	s.dispatchHost(w, r, ps, func(user string) game.Command { return game.Advance{UserID: user} })
}

type answerRequest struct {
	Username   string   `json:"username"`
	Answer     *int     `json:"answer" validate:"required"`
	AnswerTime *float64 `json:"answer_time" validate:"required"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := s.Rooms.Get(ps.ByName("code"))
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	var req answerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	user, err := s.caller(r, req.Username)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	res, err := room.Hub.Dispatch(game.SubmitAnswer{UserID: user, Option: *req.Answer, Elapsed: *req.AnswerTime})
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, res.Outcome.Answer)
}

type leaderboardResponse struct {
	GameCode    string          `json:"game_code"`
	Status      string          `json:"status"`
	Leaderboard []game.Standing `json:"leaderboard"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := rooms.NormalizeCode(ps.ByName("code"))
	room, err := s.Rooms.Get(code)
	if err == nil {
		snap := room.Hub.Snapshot()
		writeJSON(w, http.StatusOK, leaderboardResponse{GameCode: snap.Code, Status: string(snap.Status), Leaderboard: snap.Leaderboard()})
		return
	}
	if s.Analytics == nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	recap, err := s.Analytics.GameLeaderboard(r.Context(), code)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{GameCode: recap.RoomCode, Status: recap.Status, Leaderboard: recap.Leaderboard})
}

func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := s.Rooms.Get(ps.ByName("code"))
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	d, err := room.Hub.Distribution()
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleQR renders a PNG QR code linking to the room's join page.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := s.Rooms.Get(ps.ByName("code"))
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	url := fmt.Sprintf("%s://%s/?game=%s", scheme, r.Host, room.Code)

	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, fmt.Errorf("qr generation failed: %w", err), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

type ticketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"`
}

func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := s.caller(r, "")
	if err != nil {
		writeError(w, err, http.StatusUnauthorized)
		return
	}
	ticket, err := s.Auth.GenerateWSTicket(user)
	if err != nil {
		writeError(w, err, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, ticketResponse{Ticket: ticket, ExpiresIn: int(s.TicketTTL / time.Second)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.DB.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_error", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
