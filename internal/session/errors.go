package session

import (
	"errors"

	"github.com/mcoot/turnrelay/internal/model"
)

// failureMessages maps domain errors to the text clients see
var failureMessages = []struct {
	err     error
	message string
}{
	{model.ErrUnknownRequest, "Invalid request type"},
	{model.ErrInvalidRequest, "Invalid request data"},
	{model.ErrUnauthenticated, "Not logged in"},
	{model.ErrAlreadyLoggedIn, "Already logged in"},
	{model.ErrNoActiveMatch, "No active match"},
	{model.ErrUserNotFound, "User not registered"},
	{model.ErrUserExists, "User already registered"},
	{model.ErrInvalidCredentials, "Invalid username or password"},
	{model.ErrUserOnline, "User is already logged in"},
	{model.ErrEventNotFound, "Event not found"},
	{model.ErrUnauthorized, "Not a participant in this event"},
	{model.ErrInvalidInvitation, "Invalid invitation"},
	{model.ErrInvalidState, "Match is not in progress"},
	{model.ErrOpponentUnavailable, "Opponent is not available"},
	{model.ErrInvalidMove, "Move must be between 0 and 8"},
	{model.ErrNotYourTurn, "Not your turn"},
}

const internalErrorMessage = "Internal server error"

// failureMessage returns the client-facing text for err
func failureMessage(err error) string {
	for _, fm := range failureMessages {
		if errors.Is(err, fm.err) {
			return fm.message
		}
	}
	return internalErrorMessage
}
