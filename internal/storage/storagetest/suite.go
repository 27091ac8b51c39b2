// Package storagetest holds the behaviour every storage backend must share.
// Backends embed Suite in their own test suite and supply a fresh store.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/turnrelay/internal/model"
	"github.com/mcoot/turnrelay/internal/storage"
)

// Suite runs the storage contract against Store
type Suite struct {
	suite.Suite
	Store storage.Storage
	Ctx   context.Context
}

func (s *Suite) createUser(username string, online bool) *model.User {
	user := &model.User{
		Username:    username,
		Password:    "hash-" + username,
		DisplayName: "User " + username,
		Online:      online,
		CreatedAt:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.Store.CreateUser(s.Ctx, user))
	return user
}

// ensureUser registers username unless it already exists, so backends with
// referential integrity accept events between ad-hoc participants
func (s *Suite) ensureUser(username string) {
	err := s.Store.CreateUser(s.Ctx, &model.User{Username: username, Password: "x", DisplayName: username})
	if err != nil && !errors.Is(err, model.ErrUserExists) {
		s.Require().NoError(err)
	}
}

func (s *Suite) createEvent(sender, opponent string) model.EventID {
	s.ensureUser(sender)
	s.ensureUser(opponent)
	id, err := s.Store.CreateEvent(s.Ctx, &model.Event{
		Sender:   sender,
		Opponent: opponent,
		Status:   model.EventStatusPending,
		Move:     model.NoMove,
	})
	s.Require().NoError(err)
	return id
}

// User tests

func (s *Suite) TestCreateAndGetUser() {
	user := s.createUser("alice", false)

	retrieved, err := s.Store.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(user.Username, retrieved.Username)
	s.Equal(user.Password, retrieved.Password)
	s.Equal(user.DisplayName, retrieved.DisplayName)
	s.False(retrieved.Online)
}

func (s *Suite) TestCreateUserTwiceFails() {
	s.createUser("alice", false)

	err := s.Store.CreateUser(s.Ctx, &model.User{Username: "alice", Password: "other"})
	s.ErrorIs(err, model.ErrUserExists)
}

func (s *Suite) TestGetUserNotFound() {
	_, err := s.Store.GetUser(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestSetUserOnline() {
	s.createUser("alice", false)

	s.Require().NoError(s.Store.SetUserOnline(s.Ctx, "alice", true))
	user, err := s.Store.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.True(user.Online)

	s.Require().NoError(s.Store.SetUserOnline(s.Ctx, "alice", false))
	user, err = s.Store.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.False(user.Online)
}

func (s *Suite) TestSetUserOnlineNotFound() {
	err := s.Store.SetUserOnline(s.Ctx, "nobody", true)
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestListOnlineUsers() {
	s.createUser("carol", true)
	s.createUser("alice", true)
	s.createUser("bob", false)

	users, err := s.Store.ListOnlineUsers(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(users, 2)
	s.Equal("alice", users[0].Username)
	s.Equal("carol", users[1].Username)
}

func (s *Suite) TestResetPresence() {
	s.createUser("alice", true)
	s.createUser("bob", true)

	s.Require().NoError(s.Store.ResetPresence(s.Ctx))

	users, err := s.Store.ListOnlineUsers(s.Ctx)
	s.Require().NoError(err)
	s.Empty(users)
}

// Event tests

func (s *Suite) TestCreateEventAssignsIncreasingIDs() {
	first := s.createEvent("alice", "bob")
	second := s.createEvent("carol", "dave")

	s.Positive(int64(first))
	s.Greater(second, first)
}

func (s *Suite) TestGetEvent() {
	id := s.createEvent("alice", "bob")

	event, err := s.Store.GetEvent(s.Ctx, id)
	s.Require().NoError(err)
	s.Equal(id, event.EventID)
	s.Equal("alice", event.Sender)
	s.Equal("bob", event.Opponent)
	s.Equal(model.EventStatusPending, event.Status)
	s.Equal(model.NoMove, event.Move)
	s.Empty(event.Turn)
}

func (s *Suite) TestGetEventNotFound() {
	_, err := s.Store.GetEvent(s.Ctx, 999)
	s.ErrorIs(err, model.ErrEventNotFound)
}

func (s *Suite) TestListEventsForUser() {
	first := s.createEvent("alice", "bob")
	second := s.createEvent("carol", "alice")
	s.createEvent("carol", "dave")

	events, err := s.Store.ListEventsForUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(first, events[0].EventID)
	s.Equal(second, events[1].EventID)

	events, err = s.Store.ListEventsForUser(s.Ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *Suite) TestUpdateEvent() {
	id := s.createEvent("alice", "bob")

	updated, err := s.Store.UpdateEvent(s.Ctx, id, func(e *model.Event) error {
		e.Status = model.EventStatusPlaying
		e.Move = 4
		e.Turn = "alice"
		return nil
	})
	s.Require().NoError(err)
	s.Equal(model.EventStatusPlaying, updated.Status)

	event, err := s.Store.GetEvent(s.Ctx, id)
	s.Require().NoError(err)
	s.Equal(model.EventStatusPlaying, event.Status)
	s.Equal(4, event.Move)
	s.Equal("alice", event.Turn)
}

func (s *Suite) TestUpdateEventMutatorErrorLeavesEventUnchanged() {
	id := s.createEvent("alice", "bob")
	sentinel := errors.New("rejected")

	_, err := s.Store.UpdateEvent(s.Ctx, id, func(e *model.Event) error {
		e.Status = model.EventStatusAborted
		return sentinel
	})
	s.ErrorIs(err, sentinel)

	event, err := s.Store.GetEvent(s.Ctx, id)
	s.Require().NoError(err)
	s.Equal(model.EventStatusPending, event.Status)
}

func (s *Suite) TestUpdateEventNotFound() {
	_, err := s.Store.UpdateEvent(s.Ctx, 999, func(e *model.Event) error { return nil })
	s.ErrorIs(err, model.ErrEventNotFound)
}

func (s *Suite) TestUpdateEventConcurrentTransitionHasOneWinner() {
	id := s.createEvent("alice", "bob")

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Store.UpdateEvent(s.Ctx, id, func(e *model.Event) error {
				if e.Status != model.EventStatusPending {
					return model.ErrInvalidInvitation
				}
				e.Status = model.EventStatusAccepted
				return nil
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, winners)
}

func (s *Suite) TestTruncate() {
	s.createUser("alice", true)
	s.createEvent("alice", "bob")

	s.Require().NoError(s.Store.Truncate(s.Ctx))

	_, err := s.Store.GetUser(s.Ctx, "alice")
	s.ErrorIs(err, model.ErrUserNotFound)
	events, err := s.Store.ListEventsForUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Empty(events)
}
