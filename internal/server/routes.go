package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"

	"quizroom/internal/analytics"
	"quizroom/internal/auth"
	"quizroom/internal/broadcast"
	"quizroom/internal/catalog"
	"quizroom/internal/config"
	"quizroom/internal/db"
	"quizroom/internal/logger"
	"quizroom/internal/metrics"
	"quizroom/internal/rooms"
	"quizroom/internal/wshub"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 10 * time.Minute
	shutdownTimeout   = 5 * time.Second
	connectTimeout    = 10 * time.Second
)

// Run wires the process from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	m := metrics.New()

	jwtSvc, err := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL, cfg.WSTicketTTL)
	if err != nil {
		return err
	}

	srv := &Server{
		Auth:       jwtSvc,
		TicketTTL:  cfg.WSTicketTTL,
		MaxPlayers: cfg.MaxPlayers,
		Metrics:    m,
		Gateway:    &wshub.Gateway{SendBuffer: cfg.SendBuffer, Metrics: m},
	}

	var catalogs catalog.Chain
	if cfg.QuizDir != "" {
		catalogs = append(catalogs, catalog.NewFileCatalog(cfg.QuizDir))
		logger.Log.Infof("[Catalog] serving quizzes from %s", cfg.QuizDir)
	}

	var recorder broadcast.Recorder
	var ledger rooms.CodeLedger
	var writer *db.Writer

	// Optional database connection
	if cfg.DatabaseURL != "" {
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		database, err := db.Connect(cctx, cfg.DatabaseURL)
		if err == nil {
			err = database.Migrate(cctx)
		}
		cancel()
		if err != nil {
			logger.Log.Errorf("[DB] %v (running without database)", err)
		} else {
			defer database.Close()
			srv.DB = database
			srv.Analytics = analytics.NewQueries(database)
			writer = db.NewWriter(database, db.WriterConfig{Metrics: m})
			recorder = writer
			ledger = database

			if gc, err := catalog.OpenGormCatalog(cfg.DatabaseURL); err != nil {
				logger.Log.Errorf("[Catalog] %v (database quizzes unavailable)", err)
			} else {
				defer gc.Close()
				catalogs = append(catalogs, gc)
			}
			logger.Log.Info("[DB] Database connected and migrations applied")
		}
	} else {
		logger.Log.Info("[DB] DATABASE_URL not set, running without database")
	}
	if len(catalogs) > 0 {
		srv.Catalog = catalogs
	}

	srv.Rooms = rooms.NewStore(rooms.Config{
		Hub:          broadcast.Options{Buffer: cfg.SendBuffer, Recorder: recorder, Metrics: m},
		Ledger:       ledger,
		WaitingTTL:   cfg.WaitingTTL,
		CompletedTTL: cfg.CompletedTTL,
		Metrics:      m,
	})

	var wg sync.WaitGroup
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if writer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			writer.Run(bgCtx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.Rooms.Run(bgCtx, cfg.SweepInterval)
	}()

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Log.Infof("Server listening on http://%s", cfg.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case <-ctx.Done():
	case err := <-errs:
		stopBackground()
		wg.Wait()
		return err
	}

	logger.Log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = httpSrv.Shutdown(shutdownCtx)
	// websocket connections are hijacked and not covered by Shutdown
	for _, room := range srv.Rooms.List() {
		srv.Rooms.Remove(room.Code)
	}
	stopBackground()
	wg.Wait()
	return err
}

// Routes builds the HTTP API.
func (s *Server) Routes() http.Handler {
	mux := httprouter.New()
	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		logger.Log.Errorw("[HTTP] panic", "path", r.URL.Path, "panic", v)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
	}

	mux.POST("/api/game/create", s.handleCreateRoom)
	mux.POST("/api/game/join", s.handleJoinRoom)
	mux.GET("/api/game/:code/status", s.handleStatus)
	mux.POST("/api/game/:code/start", s.handleStart)
	mux.POST("/api/game/:code/answer", s.handleAnswer)
	mux.POST("/api/game/:code/next", s.handleNext)
	mux.GET("/api/game/:code/leaderboard", s.handleLeaderboard)
	mux.GET("/api/game/:code/qr", s.handleQR)
	mux.GET("/api/answer_distribution/:code", s.handleDistribution)
	mux.POST("/api/auth/ws-ticket", s.handleWSTicket)
	mux.GET("/api/quizzes", s.handleListQuizzes)
	mux.GET("/api/players/:username/stats", s.handlePlayerStats)
	mux.GET("/ws/game/:code", s.handleWS)
	mux.GET("/healthz", s.handleHealth)
	mux.Handler(http.MethodGet, "/metrics", s.Metrics.Handler())
	return mux
}
