package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/turnrelay/internal/api/apierr"
	"github.com/mcoot/turnrelay/internal/api/handler"
	"github.com/mcoot/turnrelay/internal/middleware"
	"github.com/mcoot/turnrelay/internal/services/auth"
	"github.com/mcoot/turnrelay/internal/services/match"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger           *slog.Logger
	AuthService      *auth.Service
	MatchService     *match.Service
	WebSocketHandler *handler.WebSocketHandler
}

// NewRouter creates the HTTP router: read-only status endpoints under
// /api/v1 and the websocket transport at /ws
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	statusHandler := handler.NewStatusHandler(cfg.AuthService, cfg.MatchService)

	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger, apiPanicHandler)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	api.HandleFunc("/health", statusHandler.Health).Methods(http.MethodGet)
	api.HandleFunc("/users/online", statusHandler.OnlineUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{username}", statusHandler.GetUser).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", statusHandler.GetEvent).Methods(http.MethodGet)

	if cfg.WebSocketHandler != nil {
		ws := r.PathPrefix("/ws").Subrouter()
		ws.Use(recoveryMiddleware)
		ws.Use(loggingMiddleware)
		ws.HandleFunc("", cfg.WebSocketHandler.Serve).Methods(http.MethodGet)
	}

	return r
}

func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}
