// Package server accepts TCP connections and runs one session per connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mcoot/turnrelay/internal/dependencies/random"
	"github.com/mcoot/turnrelay/internal/protocol"
	"github.com/mcoot/turnrelay/internal/session"
)

const (
	// ConnIDLength is the length of generated connection ids
	ConnIDLength = 8
	// ConnIDAlphabet is the characters used in connection ids
	ConnIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// ErrInvalidPort is returned for ports outside 0-65535
var ErrInvalidPort = errors.New("invalid port")

// Config holds configuration for the TCP server
type Config struct {
	Host            string
	Port            int
	CleanupTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the TCP server
func DefaultConfig() Config {
	return Config{
		Host:            "",
		Port:            5000,
		CleanupTimeout:  10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate rejects configurations the listener cannot use
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	return nil
}

// Server runs the framed request/response protocol over TCP
type Server struct {
	config  Config
	handler *session.Handler
	random  random.Random
	logger  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]net.Conn
	closing  bool
	seq      int
	wg       sync.WaitGroup
}

// NewServer creates a TCP server. The port is validated here.
func NewServer(handler *session.Handler, random random.Random, config Config, logger *slog.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.CleanupTimeout == 0 {
		config.CleanupTimeout = DefaultConfig().CleanupTimeout
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	return &Server{
		config:  config,
		handler: handler,
		random:  random,
		logger:  logger,
		conns:   make(map[string]net.Conn),
	}, nil
}

// Listen binds the configured address
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen error: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("starting TCP server", slog.String("addr", ln.Addr().String()))
	return nil
}

// Serve accepts connections until Shutdown is called
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server is not listening")
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept error: %w", err)
		}

		id := s.track(conn)
		if id == "" {
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConn(id, conn)
	}
}

// Start listens and serves
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown stops accepting, closes every connection and waits for their
// sessions to finish cleaning up
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down TCP server")

	s.mu.Lock()
	s.closing = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("TCP server stopped")
		return nil
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown error: %w", shutdownCtx.Err())
	}
}

// Addr returns the bound address, or the configured one before Listen
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// ConnectionCount returns the number of open connections
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handleConn(id string, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(id)
	defer conn.Close()

	logger := s.logger.With(
		slog.String("conn_id", id),
		slog.String("remote", conn.RemoteAddr().String()),
	)
	logger.Info("client connected")

	sess := s.handler.NewSession(logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.CleanupTimeout)
		defer cancel()
		sess.Close(ctx)
		logger.Info("client disconnected", slog.String("username", sess.Username()))
	}()

	codec := protocol.NewConn(conn)
	ctx := context.Background()
	for {
		frame, err := codec.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Warn("read failed", slog.String("error", err.Error()))
			}
			return
		}

		resp := sess.HandleFrame(ctx, frame)
		if err := codec.WriteResponse(resp); err != nil {
			logger.Warn("write failed", slog.String("error", err.Error()))
			return
		}
	}
}

// track registers conn under a fresh id, or returns "" while shutting down
func (s *Server) track(conn net.Conn) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return ""
	}

	id := s.random.String(ConnIDLength, ConnIDAlphabet)
	if _, exists := s.conns[id]; exists || id == "" {
		s.seq++
		id = fmt.Sprintf("conn-%d", s.seq)
	}
	s.conns[id] = conn
	return id
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}
