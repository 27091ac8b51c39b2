package match

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/turnrelay/internal/dependencies/clock"
	"github.com/mcoot/turnrelay/internal/model"
	"github.com/mcoot/turnrelay/internal/storage"
)

// Messages reported to a player whose match has ended
const (
	MessageOpponentAborted = "opponent aborted"
	MessageOpponentEnded   = "opponent ended the match"
)

// MoveResult is the outcome of polling a match for the opponent's move
type MoveResult struct {
	// Active is false once the match was aborted or completed
	Active bool
	// Move is the opponent's unread move, or model.NoMove
	Move int
	// Message explains why the match is no longer active
	Message string
}

// Service relays moves between the two players of a match.
// Each operation is a single atomic read-modify-write on the event.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new match Service
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger,
	}
}

// SubmitMove records move as username's unread move.
// It fails with ErrNotYourTurn while a previous move is still unread.
func (s *Service) SubmitMove(ctx context.Context, username string, id model.EventID, move int) error {
	if !model.ValidMove(move) {
		return model.ErrInvalidMove
	}

	now := s.clock.Now()
	_, err := s.storage.UpdateEvent(ctx, id, func(e *model.Event) error {
		if !e.Involves(username) {
			return model.ErrUnauthorized
		}
		if !e.Status.IsPlayable() {
			return model.ErrInvalidState
		}
		if e.HasPendingMove() {
			return model.ErrNotYourTurn
		}
		e.Move = move
		e.Turn = username
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return translate(err)
	}

	s.logger.Debug("move submitted",
		slog.Int64("event_id", int64(id)),
		slog.String("username", username),
		slog.Int("move", move),
	)
	return nil
}

// RequestMove reports whether the match is still active and consumes the
// opponent's unread move if there is one
func (s *Service) RequestMove(ctx context.Context, username string, id model.EventID) (*MoveResult, error) {
	var result MoveResult
	now := s.clock.Now()

	_, err := s.storage.UpdateEvent(ctx, id, func(e *model.Event) error {
		if !e.Involves(username) {
			return model.ErrUnauthorized
		}

		result = MoveResult{Active: true, Move: model.NoMove}
		switch e.Status {
		case model.EventStatusAborted:
			result.Active = false
			result.Message = MessageOpponentAborted
		case model.EventStatusCompleted:
			result.Active = false
			result.Message = MessageOpponentEnded
		}

		if !e.HasPendingMove() || e.Turn == username {
			return errNothingToRead
		}
		result.Move = e.Move
		e.ClearMove()
		e.UpdatedAt = now
		return nil
	})
	if err != nil && !errors.Is(err, errNothingToRead) {
		return nil, translate(err)
	}

	return &result, nil
}

// CompleteGame ends a playable match normally
func (s *Service) CompleteGame(ctx context.Context, username string, id model.EventID) (*model.Event, error) {
	return s.finish(ctx, username, id, model.EventStatusCompleted, "match completed")
}

// AbortGame ends a playable match early
func (s *Service) AbortGame(ctx context.Context, username string, id model.EventID) (*model.Event, error) {
	return s.finish(ctx, username, id, model.EventStatusAborted, "match aborted")
}

func (s *Service) finish(ctx context.Context, username string, id model.EventID, status model.EventStatus, msg string) (*model.Event, error) {
	now := s.clock.Now()
	event, err := s.storage.UpdateEvent(ctx, id, func(e *model.Event) error {
		if !e.Involves(username) {
			return model.ErrUnauthorized
		}
		if !e.Status.IsPlayable() {
			return model.ErrInvalidState
		}
		e.Status = status
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Info(msg,
		slog.Int64("event_id", int64(id)),
		slog.String("username", username),
		slog.String("opponent", event.OtherParty(username)),
	)
	return event, nil
}

// GetEvent returns an event by id
func (s *Service) GetEvent(ctx context.Context, id model.EventID) (*model.Event, error) {
	event, err := s.storage.GetEvent(ctx, id)
	if err != nil {
		return nil, model.StoreError(err)
	}
	return event, nil
}

// errNothingToRead skips the write when a poll changes nothing
var errNothingToRead = errors.New("no unread move")

func translate(err error) error {
	if errors.Is(err, model.ErrEventNotFound) {
		return model.ErrInvalidState
	}
	return model.StoreError(err)
}
