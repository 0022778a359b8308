package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/cohabit/internal/config"
	"github.com/dukerupert/cohabit/internal/handler"
	"github.com/dukerupert/cohabit/internal/middleware"
	"github.com/dukerupert/cohabit/internal/service"
	ws "github.com/dukerupert/cohabit/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	accounts     *service.AccountService
	households   *service.HouseholdService
	accountH     *handler.AccountHandler
	householdH   *handler.HouseholdHandler
	taskH        *handler.TaskHandler
	leaderboardH *handler.LeaderboardHandler
	rateLimiter  *middleware.RateLimiter
	cfg          *config.Config
	logger       *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	accounts := service.NewAccountService(db, logger.With("component", "account"), cfg.Session.TTL)
	households := service.NewHouseholdService(db, logger.With("component", "household"), service.HouseholdOptions{
		FetchTimeout:       cfg.Household.FetchTimeout,
		InviteCodeAttempts: cfg.Household.InviteCodeAttempts,
	})
	tasks := service.NewTaskService(db, logger.With("component", "task"), service.TaskOptions{
		StrictUncomplete: cfg.Task.StrictUncomplete,
	})
	leaderboard := service.NewLeaderboardService(db)

	return &Server{
		db:           db,
		hub:          hub,
		accounts:     accounts,
		households:   households,
		accountH:     handler.NewAccountHandler(accounts, logger.With("component", "account_handler")),
		householdH:   handler.NewHouseholdHandler(households, hub, logger.With("component", "household_handler")),
		taskH:        handler.NewTaskHandler(tasks, hub, logger.With("component", "task_handler")),
		leaderboardH: handler.NewLeaderboardHandler(leaderboard, logger.With("component", "leaderboard_handler")),
		rateLimiter:  middleware.NewRateLimiter(),
		cfg:          cfg,
		logger:       logger,
	}
}

// Accounts returns the account service for session cleanup.
func (s *Server) Accounts() *service.AccountService {
	return s.accounts
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.accountH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.accountH.Login))

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.accounts)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestID(middleware.RequestLogger(s.logger.With("component", "http"))(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "ws_clients": s.hub.ClientCount()})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r) + " " + r.URL.Path
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, s.cfg.Server.LoginRate, s.cfg.Server.LoginWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Account
	mux.HandleFunc("POST /api/auth/logout", s.accountH.Logout)
	mux.HandleFunc("GET /api/me", s.accountH.Me)
	mux.HandleFunc("PUT /api/me/display-name", s.accountH.UpdateDisplayName)
	mux.HandleFunc("PUT /api/me/username", s.accountH.ChangeUsername)
	mux.HandleFunc("PUT /api/me/password", s.accountH.ChangePassword)

	// Household registry, join workflow, membership
	mux.HandleFunc("GET /api/household/current", s.householdH.Current)
	mux.HandleFunc("POST /api/household", s.householdH.Create)
	mux.HandleFunc("GET /api/household/invite/{code}", s.householdH.Find)
	mux.HandleFunc("POST /api/households/{id}/join", s.householdH.RequestToJoin)
	mux.HandleFunc("GET /api/households/{id}/requests", s.householdH.PendingRequests)
	mux.HandleFunc("POST /api/join-requests/{id}", s.householdH.HandleRequest)
	mux.HandleFunc("POST /api/household/leave", s.householdH.Leave)

	// Tasks
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/toggle", s.taskH.Toggle)

	mux.HandleFunc("GET /api/leaderboard", s.leaderboardH.Get)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.households, s.logger.With("component", "websocket")))
}
