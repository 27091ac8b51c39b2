package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/turnrelay/internal/dependencies/clock"
	"github.com/mcoot/turnrelay/internal/model"
	"github.com/mcoot/turnrelay/internal/services/lockset"
	"github.com/mcoot/turnrelay/internal/storage"
)

// Config holds configuration for the auth service
type Config struct {
	// BcryptCost is the work factor for password hashes
	BcryptCost int
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost: bcrypt.DefaultCost,
	}
}

// Service is the user directory: registration, credential checks and presence
type Service struct {
	storage storage.Storage
	locks   *lockset.Set
	clock   clock.Clock
	logger  *slog.Logger
	cost    int
}

// New creates a new auth Service
func New(storage storage.Storage, locks *lockset.Set, clock clock.Clock, logger *slog.Logger, cfg Config) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	return &Service{
		storage: storage,
		locks:   locks,
		clock:   clock,
		logger:  logger,
		cost:    cfg.BcryptCost,
	}
}

// Register creates a new account. It does not log the caller in.
func (s *Service) Register(ctx context.Context, username, password, displayName string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, model.ErrInvalidRequest
	}
	if displayName == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:    username,
		Password:    string(hash),
		DisplayName: displayName,
		Online:      false,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, model.StoreError(err)
	}

	s.logger.Info("user registered", slog.String("username", username))

	public := user.Public()
	return &public, nil
}

// Login checks credentials and marks the user online
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, model.ErrInvalidRequest
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	user, err := s.storage.GetUser(ctx, username)
	if err != nil {
		return nil, model.StoreError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, model.ErrInvalidCredentials
		}
		// Stored value is not a bcrypt hash
		s.logger.Error("unreadable password hash", slog.String("username", username), slog.String("error", err.Error()))
		return nil, model.ErrInvalidCredentials
	}

	if user.Online {
		return nil, model.ErrUserOnline
	}

	if err := s.storage.SetUserOnline(ctx, username, true); err != nil {
		return nil, model.StoreError(err)
	}
	user.Online = true

	s.logger.Info("user logged in", slog.String("username", username))

	public := user.Public()
	return &public, nil
}

// Logout marks the user offline
func (s *Service) Logout(ctx context.Context, username string) error {
	unlock := s.locks.Lock(username)
	defer unlock()

	if err := s.storage.SetUserOnline(ctx, username, false); err != nil {
		return model.StoreError(err)
	}

	s.logger.Info("user logged out", slog.String("username", username))
	return nil
}

// GetUser returns the public view of a user
func (s *Service) GetUser(ctx context.Context, username string) (*model.User, error) {
	user, err := s.storage.GetUser(ctx, username)
	if err != nil {
		return nil, model.StoreError(err)
	}
	public := user.Public()
	return &public, nil
}

// ListOnline returns the public view of every online user, sorted by username
func (s *Service) ListOnline(ctx context.Context) ([]model.User, error) {
	users, err := s.storage.ListOnlineUsers(ctx)
	if err != nil {
		return nil, model.StoreError(err)
	}

	result := make([]model.User, 0, len(users))
	for _, u := range users {
		result = append(result, u.Public())
	}
	return result, nil
}

// ResetPresence marks every user offline. Called once at server start.
func (s *Service) ResetPresence(ctx context.Context) error {
	if err := s.storage.ResetPresence(ctx); err != nil {
		return model.StoreError(err)
	}
	return nil
}
