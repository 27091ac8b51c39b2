package pairing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/turnrelay/internal/dependencies/clock"
	"github.com/mcoot/turnrelay/internal/model"
	"github.com/mcoot/turnrelay/internal/services/lockset"
	"github.com/mcoot/turnrelay/internal/storage"
)

// Availability is what a user sees when polling for opponents
type Availability struct {
	// AvailableUsers are online users with no active event, excluding the caller
	AvailableUsers []model.User
	// Invitation is the newest PENDING event the caller was invited to
	Invitation *model.Event
	// InvitationResponse is the caller's newest outgoing event still awaiting
	// an answer or an acknowledgement (PENDING, DECLINED or ACCEPTED)
	InvitationResponse *model.Event
}

// Service drives the invitation lifecycle.
//
// Every transition holds the locks of both participants, so a user's set of
// active events never changes underneath a check that depends on it.
type Service struct {
	storage storage.Storage
	locks   *lockset.Set
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new pairing Service
func New(storage storage.Storage, locks *lockset.Set, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		locks:   locks,
		clock:   clock,
		logger:  logger,
	}
}

// ComputeAvailability lists possible opponents and the caller's open invitations
func (s *Service) ComputeAvailability(ctx context.Context, username string) (*Availability, error) {
	online, err := s.storage.ListOnlineUsers(ctx)
	if err != nil {
		return nil, model.StoreError(err)
	}

	result := &Availability{AvailableUsers: []model.User{}}
	for _, u := range online {
		if u.Username == username {
			continue
		}
		busy, err := s.hasActiveEvent(ctx, u.Username)
		if err != nil {
			return nil, err
		}
		if !busy {
			result.AvailableUsers = append(result.AvailableUsers, u.Public())
		}
	}

	events, err := s.storage.ListEventsForUser(ctx, username)
	if err != nil {
		return nil, model.StoreError(err)
	}
	// Events are ordered by id, so the last match wins
	for _, e := range events {
		switch {
		case e.Opponent == username && e.Status == model.EventStatusPending:
			result.Invitation = e
		case e.Sender == username && awaitingSender(e.Status):
			result.InvitationResponse = e
		}
	}

	return result, nil
}

// SendInvitation creates a PENDING event from sender to opponent
func (s *Service) SendInvitation(ctx context.Context, sender, opponent string) (*model.Event, error) {
	if opponent == "" || opponent == sender {
		return nil, model.ErrOpponentUnavailable
	}

	unlock := s.locks.Lock(sender, opponent)
	defer unlock()

	user, err := s.storage.GetUser(ctx, opponent)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrOpponentUnavailable
		}
		return nil, model.StoreError(err)
	}
	if !user.Online {
		return nil, model.ErrOpponentUnavailable
	}

	busy, err := s.hasActiveEvent(ctx, opponent)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, model.ErrOpponentUnavailable
	}

	now := s.clock.Now()
	event := &model.Event{
		Sender:    sender,
		Opponent:  opponent,
		Status:    model.EventStatusPending,
		Move:      model.NoMove,
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := s.storage.CreateEvent(ctx, event)
	if err != nil {
		return nil, model.StoreError(err)
	}
	event.EventID = id

	s.logger.Info("invitation sent",
		slog.Int64("event_id", int64(id)),
		slog.String("sender", sender),
		slog.String("opponent", opponent),
	)

	return event, nil
}

// AcceptInvitation moves a PENDING invitation addressed to acceptor to
// ACCEPTED and aborts every other active event of both participants.
// Both locks are held, so no second invitation of the sender can be
// accepted in between.
func (s *Service) AcceptInvitation(ctx context.Context, acceptor string, id model.EventID) (*model.Event, error) {
	event, unlock, err := s.lockInvitation(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.clock.Now()
	accepted, err := s.storage.UpdateEvent(ctx, id, func(e *model.Event) error {
		if e.Opponent != acceptor || e.Status != model.EventStatusPending {
			return model.ErrInvalidInvitation
		}
		e.Status = model.EventStatusAccepted
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, model.StoreError(err)
	}

	aborted, err := s.abortOthers(ctx, acceptor, id)
	if err != nil {
		return nil, err
	}
	senderAborted, err := s.abortOthers(ctx, event.Sender, id)
	if err != nil {
		return nil, err
	}
	aborted += senderAborted

	s.logger.Info("invitation accepted",
		slog.Int64("event_id", int64(id)),
		slog.String("sender", event.Sender),
		slog.String("opponent", acceptor),
		slog.Int("aborted", aborted),
	)

	return accepted, nil
}

// DeclineInvitation moves a PENDING invitation addressed to decliner to DECLINED
func (s *Service) DeclineInvitation(ctx context.Context, decliner string, id model.EventID) (*model.Event, error) {
	_, unlock, err := s.lockInvitation(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.clock.Now()
	declined, err := s.storage.UpdateEvent(ctx, id, func(e *model.Event) error {
		if e.Opponent != decliner || e.Status != model.EventStatusPending {
			return model.ErrInvalidInvitation
		}
		e.Status = model.EventStatusDeclined
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, model.StoreError(err)
	}

	s.logger.Info("invitation declined",
		slog.Int64("event_id", int64(id)),
		slog.String("sender", declined.Sender),
		slog.String("opponent", decliner),
	)

	return declined, nil
}

// AcknowledgeResponse lets the sender close out the answer to an invitation.
// DECLINED becomes ABORTED; ACCEPTED becomes PLAYING and the sender's other
// active events are aborted. Any other status is left untouched.
func (s *Service) AcknowledgeResponse(ctx context.Context, sender string, id model.EventID) (*model.Event, error) {
	_, unlock, err := s.lockInvitation(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var previous model.EventStatus
	now := s.clock.Now()
	event, err := s.storage.UpdateEvent(ctx, id, func(e *model.Event) error {
		if e.Sender != sender {
			return model.ErrUnauthorized
		}
		previous = e.Status
		switch e.Status {
		case model.EventStatusDeclined:
			e.Status = model.EventStatusAborted
			e.UpdatedAt = now
		case model.EventStatusAccepted:
			e.Status = model.EventStatusPlaying
			e.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, model.StoreError(err)
	}

	switch previous {
	case model.EventStatusDeclined:
		s.logger.Info("decline acknowledged",
			slog.Int64("event_id", int64(id)),
			slog.String("sender", sender),
		)
	case model.EventStatusAccepted:
		aborted, err := s.abortOthers(ctx, sender, id)
		if err != nil {
			return nil, err
		}
		s.logger.Info("match started",
			slog.Int64("event_id", int64(id)),
			slog.String("sender", sender),
			slog.String("opponent", event.Opponent),
			slog.Int("aborted", aborted),
		)
	}

	return event, nil
}

// AbortUserEvents aborts every active event involving username.
// It runs when a connection closes and returns how many events it aborted.
func (s *Service) AbortUserEvents(ctx context.Context, username string) (int, error) {
	events, err := s.storage.ListEventsForUser(ctx, username)
	if err != nil {
		return 0, model.StoreError(err)
	}

	aborted := 0
	for _, e := range storage.ActiveEvents(events) {
		ok, err := s.abortLocked(ctx, e)
		if err != nil {
			return aborted, err
		}
		if ok {
			aborted++
		}
	}

	if aborted > 0 {
		s.logger.Info("user events aborted",
			slog.String("username", username),
			slog.Int("aborted", aborted),
		)
	}
	return aborted, nil
}

// lockInvitation loads the event to learn its participants and locks both
func (s *Service) lockInvitation(ctx context.Context, id model.EventID) (*model.Event, func(), error) {
	event, err := s.storage.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrEventNotFound) {
			return nil, nil, model.ErrInvalidInvitation
		}
		return nil, nil, model.StoreError(err)
	}
	return event, s.locks.Lock(event.Sender, event.Opponent), nil
}

// abortOthers aborts username's active events other than keep.
// The caller must hold username's lock.
func (s *Service) abortOthers(ctx context.Context, username string, keep model.EventID) (int, error) {
	events, err := s.storage.ListEventsForUser(ctx, username)
	if err != nil {
		return 0, model.StoreError(err)
	}

	aborted := 0
	for _, e := range storage.ActiveEvents(events) {
		if e.EventID == keep {
			continue
		}
		ok, err := s.abort(ctx, e.EventID)
		if err != nil {
			return aborted, err
		}
		if ok {
			aborted++
		}
	}
	return aborted, nil
}

// abortLocked takes the participants' locks and aborts e if still active
func (s *Service) abortLocked(ctx context.Context, e *model.Event) (bool, error) {
	unlock := s.locks.Lock(e.Sender, e.Opponent)
	defer unlock()
	return s.abort(ctx, e.EventID)
}

// abort moves an event to ABORTED unless it has already finished
func (s *Service) abort(ctx context.Context, id model.EventID) (bool, error) {
	now := s.clock.Now()
	_, err := s.storage.UpdateEvent(ctx, id, func(e *model.Event) error {
		if !e.Status.IsActive() {
			return errAlreadyFinished
		}
		e.Status = model.EventStatusAborted
		e.UpdatedAt = now
		return nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errAlreadyFinished), errors.Is(err, model.ErrEventNotFound):
		return false, nil
	default:
		return false, model.StoreError(err)
	}
}

var errAlreadyFinished = errors.New("event already finished")

func (s *Service) hasActiveEvent(ctx context.Context, username string) (bool, error) {
	events, err := s.storage.ListEventsForUser(ctx, username)
	if err != nil {
		return false, model.StoreError(err)
	}
	return len(storage.ActiveEvents(events)) > 0, nil
}

func awaitingSender(status model.EventStatus) bool {
	switch status {
	case model.EventStatusPending, model.EventStatusDeclined, model.EventStatusAccepted:
		return true
	default:
		return false
	}
}
