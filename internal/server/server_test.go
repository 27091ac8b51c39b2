package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/turnrelay/internal/dependencies/clock"
	"github.com/mcoot/turnrelay/internal/dependencies/mocks"
	"github.com/mcoot/turnrelay/internal/protocol"
	"github.com/mcoot/turnrelay/internal/services/auth"
	"github.com/mcoot/turnrelay/internal/services/lockset"
	"github.com/mcoot/turnrelay/internal/services/match"
	"github.com/mcoot/turnrelay/internal/services/pairing"
	"github.com/mcoot/turnrelay/internal/session"
	"github.com/mcoot/turnrelay/internal/storage/memory"
	"github.com/mcoot/turnrelay/internal/testutil"
)

type ServerSuite struct {
	suite.Suite
	storage *memory.Storage
	random  *mocks.MockRandom
	server  *Server
	done    chan error
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.storage = memory.New()
	s.random = mocks.NewMockRandom()
	clk := clock.New()
	locks := lockset.New()
	logger := testutil.NopLogger()

	handler := session.NewHandler(
		auth.New(s.storage, locks, clk, logger, auth.Config{BcryptCost: bcrypt.MinCost}),
		pairing.New(s.storage, locks, clk, logger),
		match.New(s.storage, clk, logger),
		logger,
	)

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0

	srv, err := NewServer(handler, s.random, cfg, logger)
	s.Require().NoError(err)
	s.Require().NoError(srv.Listen())
	s.server = srv

	s.done = make(chan error, 1)
	go func() { s.done <- srv.Serve() }()
}

func (s *ServerSuite) TearDownTest() {
	s.Require().NoError(s.server.Shutdown(context.Background()))
	s.NoError(<-s.done)
}

func (s *ServerSuite) dial() (net.Conn, *protocol.Conn) {
	conn, err := net.Dial("tcp", s.server.Addr())
	s.Require().NoError(err)
	return conn, protocol.NewConn(conn)
}

func (s *ServerSuite) roundTrip(c *protocol.Conn, t protocol.RequestType, data any) *protocol.Response {
	req, err := protocol.NewRequest(t, data)
	s.Require().NoError(err)
	s.Require().NoError(c.WriteRequest(req))
	resp, err := c.ReadResponse()
	s.Require().NoError(err)
	return resp
}

func (s *ServerSuite) TestNegativePortRejected() {
	cfg := DefaultConfig()
	cfg.Port = -1

	_, err := NewServer(nil, s.random, cfg, testutil.NopLogger())
	s.ErrorIs(err, ErrInvalidPort)
}

func (s *ServerSuite) TestDefaultPort() {
	s.Equal(5000, DefaultConfig().Port)
}

func (s *ServerSuite) TestRequestResponse() {
	conn, c := s.dial()
	defer conn.Close()

	creds := protocol.Credentials{Username: "alice", Password: "pw"}
	resp := s.roundTrip(c, protocol.RequestRegister, creds)
	s.True(resp.OK(), resp.Message)
	s.Equal(session.MsgRegistered, resp.Message)

	resp = s.roundTrip(c, protocol.RequestLogin, creds)
	s.True(resp.OK(), resp.Message)

	resp = s.roundTrip(c, protocol.RequestUpdatePairing, "")
	s.True(resp.OK())
	s.Equal(protocol.KindPairing, resp.Kind)
	s.NotNil(resp.PairingPayload)
}

func (s *ServerSuite) TestMalformedRequestKeepsConnection() {
	conn, c := s.dial()
	defer conn.Close()

	s.Require().NoError(protocol.WriteFrame(conn, []byte("garbage")))
	resp, err := c.ReadResponse()
	s.Require().NoError(err)
	s.False(resp.OK())
	s.Equal("Invalid request type", resp.Message)

	resp = s.roundTrip(c, protocol.RequestRegister, protocol.Credentials{Username: "bob", Password: "pw"})
	s.True(resp.OK())
}

func (s *ServerSuite) TestDisconnectRunsCleanup() {
	s.random.QueueString("conn0001")
	conn, c := s.dial()

	creds := protocol.Credentials{Username: "alice", Password: "pw"}
	s.roundTrip(c, protocol.RequestRegister, creds)
	s.True(s.roundTrip(c, protocol.RequestLogin, creds).OK())
	s.Equal(1, s.server.ConnectionCount())

	s.Require().NoError(conn.Close())

	s.Eventually(func() bool {
		user, err := s.storage.GetUser(context.Background(), "alice")
		return err == nil && !user.Online
	}, 2*time.Second, 10*time.Millisecond)
	s.Eventually(func() bool { return s.server.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func (s *ServerSuite) TestShutdownClosesClients() {
	conn, c := s.dial()
	defer conn.Close()

	creds := protocol.Credentials{Username: "alice", Password: "pw"}
	s.roundTrip(c, protocol.RequestRegister, creds)
	s.True(s.roundTrip(c, protocol.RequestLogin, creds).OK())

	s.Require().NoError(s.server.Shutdown(context.Background()))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := c.ReadFrame()
	s.Error(err)

	user, err := s.storage.GetUser(context.Background(), "alice")
	s.Require().NoError(err)
	s.False(user.Online)
	s.Equal(0, s.server.ConnectionCount())
}
