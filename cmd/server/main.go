package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JeremyLoy/config"

	"github.com/mcoot/turnrelay/internal/api"
	"github.com/mcoot/turnrelay/internal/factory"
	"github.com/mcoot/turnrelay/internal/server"
	pgstorage "github.com/mcoot/turnrelay/internal/storage/postgres"
	redisstorage "github.com/mcoot/turnrelay/internal/storage/redis"
)

// Config is read from the environment
type Config struct {
	Host        string `config:"MATCH_HOST"`
	TCPPort     int    `config:"MATCH_TCP_PORT"`
	HTTPPort    int    `config:"MATCH_HTTP_PORT"`
	StorageType string `config:"STORAGE_TYPE"`
	RedisURL    string `config:"REDIS_URL"`
	DatabaseURL string `config:"DATABASE_URL"`
	LogLevel    string `config:"LOG_LEVEL"`
}

func loadConfig() (Config, error) {
	cfg := Config{
		TCPPort:     server.DefaultConfig().Port,
		HTTPPort:    api.DefaultServerConfig().Port,
		StorageType: factory.StorageTypeMemory,
		LogLevel:    "info",
	}
	if err := config.FromEnv().To(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.HTTPPort < 0 || cfg.HTTPPort > 65535 {
		return Config{}, fmt.Errorf("invalid MATCH_HTTP_PORT %d", cfg.HTTPPort)
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build factory config from environment
	factoryCfg := factory.Config{
		Logger:      logger,
		StorageType: cfg.StorageType,
	}

	switch cfg.StorageType {
	case factory.StorageTypeRedis:
		if cfg.RedisURL == "" {
			logger.Error("REDIS_URL required when STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	case factory.StorageTypePostgres:
		if cfg.DatabaseURL == "" {
			logger.Error("DATABASE_URL required when STORAGE_TYPE=postgres")
			os.Exit(1)
		}
		pgCfg := pgstorage.DefaultConfig()
		pgCfg.URL = cfg.DatabaseURL
		factoryCfg.PostgresConfig = &pgCfg
	}

	// Create application factory
	app, err := factory.New(ctx, factoryCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	// Nobody is connected yet, whatever the store remembers
	if err := app.AuthService.ResetPresence(ctx); err != nil {
		logger.Error("failed to reset presence", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// TCP matchmaking server
	tcpConfig := server.DefaultConfig()
	tcpConfig.Host = cfg.Host
	tcpConfig.Port = cfg.TCPPort
	tcpServer, err := server.NewServer(app.SessionHandler, app.Random, tcpConfig, logger)
	if err != nil {
		logger.Error("failed to create TCP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// HTTP status API and websocket transport
	router := api.NewRouter(api.RouterConfig{
		Logger:           logger,
		AuthService:      app.AuthService,
		MatchService:     app.MatchService,
		WebSocketHandler: app.WebSocketHandler,
	})
	httpConfig := api.DefaultServerConfig()
	httpConfig.Host = cfg.Host
	httpConfig.Port = cfg.HTTPPort
	httpServer := api.NewServer(router, httpConfig, logger)
	httpServer.OnShutdown(app.WebSocketHandler.CloseAll)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- tcpServer.Start()
	}()
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info("server started",
		slog.String("tcp_addr", tcpServer.Addr()),
		slog.String("http_addr", httpServer.Addr()),
		slog.String("storage", cfg.StorageType),
	)

	// Wait for shutdown or error
	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
	}

	if err := tcpServer.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		exitCode = 1
	}
	if err := httpServer.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("server stopped")
	if exitCode != 0 {
		_ = app.Close()
		os.Exit(exitCode)
	}
}
