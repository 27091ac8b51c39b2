package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/turnrelay/internal/api/handler"
	"github.com/mcoot/turnrelay/internal/dependencies/clock"
	"github.com/mcoot/turnrelay/internal/dependencies/random"
	"github.com/mcoot/turnrelay/internal/services/auth"
	"github.com/mcoot/turnrelay/internal/services/lockset"
	"github.com/mcoot/turnrelay/internal/services/match"
	"github.com/mcoot/turnrelay/internal/services/pairing"
	"github.com/mcoot/turnrelay/internal/session"
	"github.com/mcoot/turnrelay/internal/storage"
	"github.com/mcoot/turnrelay/internal/storage/memory"
	pgstorage "github.com/mcoot/turnrelay/internal/storage/postgres"
	redisstorage "github.com/mcoot/turnrelay/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Locks          *lockset.Set
	AuthService    *auth.Service
	PairingService *pairing.Service
	MatchService   *match.Service

	// Transports
	SessionHandler   *session.Handler
	WebSocketHandler *handler.WebSocketHandler
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds Postgres connection settings (required if StorageType is "postgres")
	PostgresConfig *pgstorage.Config
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	authCfg := cfg.AuthConfig
	if authCfg.BcryptCost == 0 {
		authCfg = auth.DefaultConfig()
	}

	return newWithDependencies(store, clock.New(), random.New(), authCfg, logger), nil
}

func newStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		return pgstorage.New(ctx, *cfg.PostgresConfig)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'postgres'", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, authCfg auth.Config, logger *slog.Logger) *App {
	locks := lockset.New()
	authService := auth.New(store, locks, clk, logger, authCfg)
	pairingService := pairing.New(store, locks, clk, logger)
	matchService := match.New(store, clk, logger)
	sessionHandler := session.NewHandler(authService, pairingService, matchService, logger)

	return &App{
		Storage:          store,
		Clock:            clk,
		Random:           rnd,
		Locks:            locks,
		AuthService:      authService,
		PairingService:   pairingService,
		MatchService:     matchService,
		SessionHandler:   sessionHandler,
		WebSocketHandler: handler.NewWebSocketHandler(sessionHandler, rnd, logger),
	}
}

// Close releases the storage backend's connections
func (a *App) Close() error {
	if closer, ok := a.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
