package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/mcoot/turnrelay/internal/model"
	"github.com/mcoot/turnrelay/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, eris.Wrap(err, "invalid redis url")
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "failed to ping redis")
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return eris.Wrap(err, "failed to encode user")
	}

	created, err := s.client.SetNX(ctx, userKey(user.Username), data, 0).Result()
	if err != nil {
		return eris.Wrapf(err, "failed to create user %s", user.Username)
	}
	if !created {
		return model.ErrUserExists
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, usersIndexKey(), user.Username)
	if user.Online {
		pipe.SAdd(ctx, onlineIndexKey(), user.Username)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return eris.Wrapf(err, "failed to index user %s", user.Username)
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.User, error) {
	data, err := s.client.Get(ctx, userKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, eris.Wrapf(err, "failed to get user %s", username)
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, eris.Wrapf(err, "failed to decode user %s", username)
	}
	return &user, nil
}

func (s *Storage) SetUserOnline(ctx context.Context, username string, online bool) error {
	key := userKey(username)
	return s.withRetry(ctx, func() error {
		return s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return model.ErrUserNotFound
				}
				return err
			}

			var user model.User
			if err := json.Unmarshal(data, &user); err != nil {
				return err
			}
			user.Online = online
			updated, err := json.Marshal(&user)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				if online {
					pipe.SAdd(ctx, onlineIndexKey(), username)
				} else {
					pipe.SRem(ctx, onlineIndexKey(), username)
				}
				return nil
			})
			return err
		}, key)
	})
}

func (s *Storage) ListOnlineUsers(ctx context.Context) ([]*model.User, error) {
	usernames, err := s.client.SMembers(ctx, onlineIndexKey()).Result()
	if err != nil {
		return nil, eris.Wrap(err, "failed to list online users")
	}

	users, err := s.getUsers(ctx, usernames)
	if err != nil {
		return nil, err
	}

	online := users[:0]
	for _, u := range users {
		if u.Online {
			online = append(online, u)
		}
	}
	sort.Slice(online, func(i, j int) bool { return online[i].Username < online[j].Username })
	return online, nil
}

func (s *Storage) ResetPresence(ctx context.Context) error {
	usernames, err := s.client.SMembers(ctx, onlineIndexKey()).Result()
	if err != nil {
		return eris.Wrap(err, "failed to list online users")
	}
	for _, username := range usernames {
		if err := s.SetUserOnline(ctx, username, false); err != nil && !errors.Is(err, model.ErrUserNotFound) {
			return err
		}
	}
	return s.client.Del(ctx, onlineIndexKey()).Err()
}

// getUsers fetches users by name in one MGET, skipping missing keys
func (s *Storage) getUsers(ctx context.Context, usernames []string) ([]*model.User, error) {
	if len(usernames) == 0 {
		return []*model.User{}, nil
	}

	keys := make([]string, len(usernames))
	for i, name := range usernames {
		keys[i] = userKey(name)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, eris.Wrap(err, "failed to fetch users")
	}

	users := make([]*model.User, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var user model.User
		if err := json.Unmarshal([]byte(str), &user); err != nil {
			continue // Skip invalid data
		}
		users = append(users, &user)
	}
	return users, nil
}

// Event operations

func (s *Storage) CreateEvent(ctx context.Context, event *model.Event) (model.EventID, error) {
	seq, err := s.client.Incr(ctx, eventSequenceKey()).Result()
	if err != nil {
		return 0, eris.Wrap(err, "failed to allocate event id")
	}
	id := model.EventID(seq)

	e := *event
	e.EventID = id
	data, err := json.Marshal(&e)
	if err != nil {
		return 0, eris.Wrap(err, "failed to encode event")
	}

	member := redis.Z{Score: float64(id), Member: strconv.FormatInt(int64(id), 10)}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, eventKey(id), data, 0)
	pipe.ZAdd(ctx, userEventsIndexKey(e.Sender), member)
	pipe.ZAdd(ctx, userEventsIndexKey(e.Opponent), member)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, eris.Wrapf(err, "failed to save event %d", id)
	}
	return id, nil
}

func (s *Storage) GetEvent(ctx context.Context, id model.EventID) (*model.Event, error) {
	data, err := s.client.Get(ctx, eventKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrEventNotFound
		}
		return nil, eris.Wrapf(err, "failed to get event %d", id)
	}

	var event model.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, eris.Wrapf(err, "failed to decode event %d", id)
	}
	return &event, nil
}

func (s *Storage) ListEventsForUser(ctx context.Context, username string) ([]*model.Event, error) {
	ids, err := s.client.ZRange(ctx, userEventsIndexKey(username), 0, -1).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to list events for %s", username)
	}
	if len(ids) == 0 {
		return []*model.Event{}, nil
	}

	keys := make([]string, len(ids))
	for i, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "corrupt event index for %s", username)
		}
		keys[i] = eventKey(model.EventID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to fetch events for %s", username)
	}

	events := make([]*model.Event, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var event model.Event
		if err := json.Unmarshal([]byte(str), &event); err != nil {
			continue // Skip invalid data
		}
		events = append(events, &event)
	}
	return events, nil
}

func (s *Storage) UpdateEvent(ctx context.Context, id model.EventID, fn storage.EventMutator) (*model.Event, error) {
	key := eventKey(id)
	var result model.Event

	err := s.withRetry(ctx, func() error {
		return s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return model.ErrEventNotFound
				}
				return err
			}

			var event model.Event
			if err := json.Unmarshal(data, &event); err != nil {
				return err
			}
			if err := fn(&event); err != nil {
				return mutatorError{err}
			}
			event.EventID = id

			updated, err := json.Marshal(&event)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			if err == nil {
				result = event
			}
			return err
		}, key)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Storage) Truncate(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, allKeysPattern(), 100).Result()
		if err != nil {
			return eris.Wrap(err, "failed to scan keys")
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return eris.Wrap(err, "failed to delete keys")
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// mutatorError carries an error produced by the caller's mutator through WATCH
type mutatorError struct {
	err error
}

func (e mutatorError) Error() string { return e.err.Error() }
func (e mutatorError) Unwrap() error { return e.err }

// withRetry reruns an optimistic transaction while its watched key keeps changing
func (s *Storage) withRetry(ctx context.Context, txn func() error) error {
	retries := s.cfg.MaxTxRetries
	if retries <= 0 {
		retries = DefaultConfig().MaxTxRetries
	}

	for i := 0; i < retries; i++ {
		err := txn()
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		var me mutatorError
		if errors.As(err, &me) {
			return me.err
		}
		if errors.Is(err, model.ErrUserNotFound) || errors.Is(err, model.ErrEventNotFound) {
			return err
		}
		return eris.Wrap(err, "redis transaction failed")
	}
	return eris.New("redis transaction retries exhausted")
}
