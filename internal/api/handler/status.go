package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/turnrelay/internal/api/apierr"
	"github.com/mcoot/turnrelay/internal/api/response"
	"github.com/mcoot/turnrelay/internal/model"
	"github.com/mcoot/turnrelay/internal/services/auth"
	"github.com/mcoot/turnrelay/internal/services/match"
)

// StatusHandler serves read-only views of users and events
type StatusHandler struct {
	authService  *auth.Service
	matchService *match.Service
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(authService *auth.Service, matchService *match.Service) *StatusHandler {
	return &StatusHandler{
		authService:  authService,
		matchService: matchService,
	}
}

// Health reports that the server is up
func (h *StatusHandler) Health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

// OnlineUsers handles GET /users/online
func (h *StatusHandler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListOnline(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	resp := response.OnlineUsers{Users: make([]response.User, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, response.UserFromModel(u))
	}
	response.JSON(w, http.StatusOK, resp)
}

// GetUser handles GET /users/{username}
func (h *StatusHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.GetUser(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UserFromModel(*user))
}

// GetEvent handles GET /events/{id}
func (h *StatusHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		apierr.WriteError(w, apierr.NewInvalidRequestError("Event id must be a positive integer"))
		return
	}

	event, err := h.matchService.GetEvent(r.Context(), model.EventID(id))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.EventFromModel(event))
}
