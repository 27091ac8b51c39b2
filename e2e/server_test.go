package e2e_test

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcoot/turnrelay/internal/api"
	"github.com/mcoot/turnrelay/internal/factory"
	"github.com/mcoot/turnrelay/internal/server"
)

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer runs the TCP server and the HTTP API on loopback ports
type testServer struct {
	app       *factory.App
	tcpAddr   string
	serverURL string
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.Background()

	app, err := factory.New(ctx, factory.Config{Logger: logger})
	require.NoError(t, err)

	tcpConfig := server.DefaultConfig()
	tcpConfig.Host = "127.0.0.1"
	tcpConfig.Port = 0
	tcpServer, err := server.NewServer(app.SessionHandler, app.Random, tcpConfig, logger)
	require.NoError(t, err)
	require.NoError(t, tcpServer.Listen())
	go func() {
		if err := tcpServer.Serve(); err != nil {
			t.Logf("tcp server error: %v", err)
		}
	}()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	router := api.NewRouter(api.RouterConfig{
		Logger:           logger,
		AuthService:      app.AuthService,
		MatchService:     app.MatchService,
		WebSocketHandler: app.WebSocketHandler,
	})
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}
	httpServer.RegisterOnShutdown(app.WebSocketHandler.CloseAll)
	go func() {
		if err := httpServer.Serve(listener); err != http.ErrServerClosed {
			t.Logf("http server error: %v", err)
		}
	}()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
		_ = tcpServer.Shutdown(ctx)
		_ = app.Close()
	})

	return &testServer{
		app:       app,
		tcpAddr:   tcpServer.Addr(),
		serverURL: "http://" + listener.Addr().String(),
	}
}
