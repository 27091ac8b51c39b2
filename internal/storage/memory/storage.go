package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/turnrelay/internal/model"
	"github.com/mcoot/turnrelay/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Values are copied in and out so callers never share state with the store.
type Storage struct {
	mu sync.RWMutex

	users       map[string]*model.User
	events      map[model.EventID]*model.Event
	userEvents  map[string][]model.EventID
	nextEventID model.EventID
}

// New creates a new in-memory storage instance
func New() *Storage {
	s := &Storage{}
	s.reset()
	return s
}

func (s *Storage) reset() {
	s.users = make(map[string]*model.User)
	s.events = make(map[model.EventID]*model.Event)
	s.userEvents = make(map[string][]model.EventID)
	s.nextEventID = 1
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return model.ErrUserExists
	}
	u := *user
	s.users[user.Username] = &u
	return nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *Storage) SetUserOnline(ctx context.Context, username string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return model.ErrUserNotFound
	}
	user.Online = online
	return nil
}

func (s *Storage) ListOnlineUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []*model.User
	for _, user := range s.users {
		if user.Online {
			u := *user
			users = append(users, &u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Storage) ResetPresence(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		user.Online = false
	}
	return nil
}

// Event operations

func (s *Storage) CreateEvent(ctx context.Context, event *model.Event) (model.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextEventID
	s.nextEventID++

	e := *event
	e.EventID = id
	s.events[id] = &e
	s.userEvents[e.Sender] = append(s.userEvents[e.Sender], id)
	if e.Opponent != e.Sender {
		s.userEvents[e.Opponent] = append(s.userEvents[e.Opponent], id)
	}
	return id, nil
}

func (s *Storage) GetEvent(ctx context.Context, id model.EventID) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	e := *event
	return &e, nil
}

func (s *Storage) ListEventsForUser(ctx context.Context, username string) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.userEvents[username]
	events := make([]*model.Event, 0, len(ids))
	for _, id := range ids {
		e := *s.events[id]
		events = append(events, &e)
	}
	return events, nil
}

func (s *Storage) UpdateEvent(ctx context.Context, id model.EventID, fn storage.EventMutator) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}

	// Mutate a copy so a failed mutator leaves the stored event untouched
	e := *current
	if err := fn(&e); err != nil {
		return nil, err
	}
	e.EventID = id
	s.events[id] = &e

	out := e
	return &out, nil
}

func (s *Storage) Truncate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
