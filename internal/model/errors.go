package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Session errors
	ErrUnauthenticated = errors.New("not logged in")
	ErrAlreadyLoggedIn = errors.New("session is already logged in")
	ErrNoActiveMatch   = errors.New("no active match")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrUnknownRequest  = errors.New("invalid request type")

	// User errors
	ErrUserNotFound       = errors.New("user not registered")
	ErrUserExists         = errors.New("user already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserOnline         = errors.New("user is already logged in elsewhere")

	// Event errors
	ErrEventNotFound       = errors.New("event not found")
	ErrUnauthorized        = errors.New("not a participant in this event")
	ErrInvalidInvitation   = errors.New("invalid invitation")
	ErrInvalidState        = errors.New("event is not in a valid state for this action")
	ErrOpponentUnavailable = errors.New("opponent is not available")

	// Move errors
	ErrInvalidMove = errors.New("move must be between 0 and 8")
	ErrNotYourTurn = errors.New("not this player's turn")

	// Storage errors
	ErrStore = errors.New("store failure")
)

// domainErrors pass through StoreError untouched
var domainErrors = []error{
	ErrUserNotFound, ErrUserExists, ErrEventNotFound, ErrStore,
	ErrInvalidInvitation, ErrInvalidState, ErrUnauthorized, ErrOpponentUnavailable,
	ErrInvalidMove, ErrNotYourTurn, ErrInvalidCredentials, ErrUserOnline,
}

// StoreError tags an unexpected persistence failure with ErrStore.
// Errors that already carry a domain meaning are returned unchanged.
func StoreError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}
