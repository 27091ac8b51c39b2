package storage

import (
	"context"

	"github.com/mcoot/turnrelay/internal/model"
)

// EventMutator edits an event in place inside an atomic read-modify-write.
// Returning an error aborts the write and is passed back to the caller.
type EventMutator func(event *model.Event) error

// Storage defines the interface for data persistence
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, username string) (*model.User, error)
	SetUserOnline(ctx context.Context, username string, online bool) error
	ListOnlineUsers(ctx context.Context) ([]*model.User, error)
	ResetPresence(ctx context.Context) error

	// Event operations
	CreateEvent(ctx context.Context, event *model.Event) (model.EventID, error)
	GetEvent(ctx context.Context, id model.EventID) (*model.Event, error)
	ListEventsForUser(ctx context.Context, username string) ([]*model.Event, error)
	UpdateEvent(ctx context.Context, id model.EventID, fn EventMutator) (*model.Event, error)

	// Truncate removes all users and events
	Truncate(ctx context.Context) error
}

// ActiveEvents filters events down to those still tying up their participants
func ActiveEvents(events []*model.Event) []*model.Event {
	var active []*model.Event
	for _, e := range events {
		if e.Status.IsActive() {
			active = append(active, e)
		}
	}
	return active
}
