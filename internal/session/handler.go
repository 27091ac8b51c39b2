// Package session holds per-connection state and routes requests to the
// pairing and match services.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mcoot/turnrelay/internal/model"
	"github.com/mcoot/turnrelay/internal/protocol"
	"github.com/mcoot/turnrelay/internal/services/auth"
	"github.com/mcoot/turnrelay/internal/services/match"
	"github.com/mcoot/turnrelay/internal/services/pairing"
)

// Success messages
const (
	MsgRegistered     = "Registration successful"
	MsgLoggedIn       = "Login successful"
	MsgPairing        = "Pairing information retrieved successfully"
	MsgInvitationSent = "Invitation sent successfully"
	MsgAccepted       = "Invitation accepted successfully"
	MsgDeclined       = "Invitation declined successfully"
	MsgAcknowledged   = "Response acknowledged successfully"
	MsgMoveRetrieved  = "Move retrieved successfully"
	MsgMoveSent       = "Move sent successfully"
	MsgGameAborted    = "Game aborted successfully"
	MsgGameCompleted  = "Game completed successfully"
)

// Handler builds sessions that share the same services
type Handler struct {
	auth    *auth.Service
	pairing *pairing.Service
	match   *match.Service
	logger  *slog.Logger
}

// NewHandler creates a new session Handler
func NewHandler(auth *auth.Service, pairing *pairing.Service, match *match.Service, logger *slog.Logger) *Handler {
	return &Handler{
		auth:    auth,
		pairing: pairing,
		match:   match,
		logger:  logger,
	}
}

// NewSession starts an unauthenticated session for one connection.
// A nil logger uses the handler's.
func (h *Handler) NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = h.logger
	}
	return &Session{handler: h, logger: logger}
}

// Session is the state of one client connection
type Session struct {
	handler *Handler
	logger  *slog.Logger

	mu       sync.Mutex
	username string
	eventID  model.EventID
	closed   bool
}

// Username returns the logged in user, or "" before LOGIN
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// CurrentEvent returns the bound match, if any
func (s *Session) CurrentEvent() (model.EventID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventID, s.eventID != 0
}

// HandleFrame decodes a raw request and handles it. Undecodable input is
// answered with a failure rather than an error.
func (s *Session) HandleFrame(ctx context.Context, frame []byte) *protocol.Response {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		s.logger.Debug("undecodable request", slog.String("error", err.Error()))
		return protocol.Failure(failureMessage(err))
	}
	return s.HandleRequest(ctx, req)
}

// HandleRequest runs one request against the session
func (s *Session) HandleRequest(ctx context.Context, req *protocol.Request) *protocol.Response {
	reqType, ok := req.Type.Canonical()
	if !ok {
		return protocol.Failure(failureMessage(model.ErrUnknownRequest))
	}
	r, ok := routes[reqType]
	if !ok {
		return protocol.Failure(failureMessage(model.ErrUnknownRequest))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return protocol.Failure(failureMessage(model.ErrUnauthenticated))
	}

	var resp *protocol.Response
	err := s.checkState(r)
	if err == nil {
		resp, err = r.handle(s, ctx, req.Data)
	}
	if err != nil {
		return s.fail(reqType, err)
	}
	return resp
}

// Close ends the session. A logged in user is marked offline and then
// every active event they take part in is aborted. Later calls do nothing.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	username := s.username
	s.username = ""
	s.eventID = 0
	if username == "" {
		return
	}

	// Offline first: an invitation sent after this point is rejected, so
	// the abort below sees every event the user will ever have.
	if err := s.handler.auth.Logout(ctx, username); err != nil {
		s.logger.Error("failed to mark user offline",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
	}
	if _, err := s.handler.pairing.AbortUserEvents(ctx, username); err != nil {
		s.logger.Error("failed to abort events on disconnect",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Session) checkState(r route) error {
	if r.needsAuth && s.username == "" {
		return model.ErrUnauthenticated
	}
	if r.needsMatch && s.eventID == 0 {
		return model.ErrNoActiveMatch
	}
	return nil
}

func (s *Session) fail(reqType protocol.RequestType, err error) *protocol.Response {
	msg := failureMessage(err)
	if msg == internalErrorMessage || errors.Is(err, model.ErrStore) {
		s.logger.Error("request failed",
			slog.String("type", string(reqType)),
			slog.String("username", s.username),
			slog.String("error", err.Error()),
		)
		return protocol.Failure(internalErrorMessage)
	}

	s.logger.Debug("request rejected",
		slog.String("type", string(reqType)),
		slog.String("username", s.username),
		slog.String("reason", err.Error()),
	)
	return protocol.Failure(msg)
}
