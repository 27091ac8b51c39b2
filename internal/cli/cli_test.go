package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/turnrelay/internal/api"
	"github.com/mcoot/turnrelay/internal/factory"
	"github.com/mcoot/turnrelay/internal/protocol"
	"github.com/mcoot/turnrelay/internal/server"
	"github.com/mcoot/turnrelay/internal/testutil"
)

type CLISuite struct {
	suite.Suite
	app     *factory.TestApp
	tcp     *server.Server
	tcpDone chan error
	http    *httptest.Server
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) SetupTest() {
	s.app = factory.NewTestApp()
	logger := testutil.NopLogger()

	cfg := server.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	srv, err := server.NewServer(s.app.SessionHandler, s.app.Random, cfg, logger)
	s.Require().NoError(err)
	s.Require().NoError(srv.Listen())
	s.tcp = srv
	s.tcpDone = make(chan error, 1)
	go func() { s.tcpDone <- srv.Serve() }()

	s.http = httptest.NewServer(api.NewRouter(api.RouterConfig{
		Logger:       logger,
		AuthService:  s.app.AuthService,
		MatchService: s.app.MatchService,
	}))
}

func (s *CLISuite) TearDownTest() {
	s.http.Close()
	s.Require().NoError(s.tcp.Shutdown(context.Background()))
	s.NoError(<-s.tcpDone)
}

// run executes the CLI with stdin and returns what it printed
func (s *CLISuite) run(stdin string, args ...string) (string, error) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--addr", s.tcp.Addr(), "--server", s.http.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (s *CLISuite) TestParseLine() {
	req, err := ParseLine(`  login {"username":"a","password":"b"} `)
	s.Require().NoError(err)
	s.Equal(protocol.RequestLogin, req.Type)
	s.Equal(`{"username":"a","password":"b"}`, req.Data)

	req, err = ParseLine("UPDATE_PAIRING")
	s.Require().NoError(err)
	s.Equal(protocol.RequestUpdatePairing, req.Type)
	s.Empty(req.Data)

	req, err = ParseLine("# comment")
	s.NoError(err)
	s.Nil(req)

	req, err = ParseLine("   ")
	s.NoError(err)
	s.Nil(req)

	_, err = ParseLine("quit")
	s.ErrorIs(err, errQuit)
}

func (s *CLISuite) TestReplSession() {
	script := strings.Join([]string{
		`REGISTER {"username":"alice","password":"pw"}`,
		`LOGIN {"username":"alice","password":"pw"}`,
		`# nobody else is online`,
		`UPDATE_PAIRING`,
		`REQUEST_MOVE`,
		`quit`,
		`UPDATE_PAIRING`,
	}, "\n")

	out, err := s.run(script, "repl")
	s.Require().NoError(err)

	s.Contains(out, "SUCCESS: Registration successful")
	s.Contains(out, "SUCCESS: Login successful")
	s.Contains(out, "Available: (none)")
	s.Contains(out, "FAILURE: No active match")
	s.Equal(1, strings.Count(out, "Available:"))
}

func (s *CLISuite) TestReplJSONOutput() {
	out, err := s.run(`DANCE`, "repl", "-o", "json")
	s.Require().NoError(err)

	resp, err := protocol.DecodeResponse([]byte(strings.TrimSpace(out)))
	s.Require().NoError(err)
	s.False(resp.OK())
	s.Equal("Invalid request type", resp.Message)
}

func (s *CLISuite) TestReplLogsOutOnExit() {
	_, err := s.run("REGISTER {\"username\":\"bob\",\"password\":\"pw\"}\nLOGIN {\"username\":\"bob\",\"password\":\"pw\"}\n", "repl")
	s.Require().NoError(err)

	s.Eventually(func() bool {
		user, err := s.app.AuthService.GetUser(context.Background(), "bob")
		return err == nil && !user.Online
	}, testutil.WaitTimeout, testutil.PollInterval)
}

func (s *CLISuite) TestReplConnectFailure() {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--addr", "127.0.0.1:1", "repl"})
	s.Error(cmd.Execute())
}

func (s *CLISuite) TestHealth() {
	out, err := s.run("", "health")
	s.Require().NoError(err)
	s.Contains(out, "Server status: ok")
	s.NotContains(out, "TCP:")

	out, err = s.run("", "health", "--tcp")
	s.Require().NoError(err)
	s.Contains(out, "TCP: reachable")
}

func (s *CLISuite) TestUsers() {
	ctx := context.Background()
	_, err := s.app.AuthService.Register(ctx, "carol", "pw", "Carol")
	s.Require().NoError(err)
	_, err = s.app.AuthService.Login(ctx, "carol", "pw")
	s.Require().NoError(err)

	out, err := s.run("", "users")
	s.Require().NoError(err)
	s.Contains(out, "Online users (1):")
	s.Contains(out, "Carol (carol)")
}

func (s *CLISuite) TestEvent() {
	ctx := context.Background()
	for _, name := range []string{"alice", "bob"} {
		_, err := s.app.AuthService.Register(ctx, name, "pw", "")
		s.Require().NoError(err)
		_, err = s.app.AuthService.Login(ctx, name, "pw")
		s.Require().NoError(err)
	}
	_, err := s.app.PairingService.SendInvitation(ctx, "alice", "bob")
	s.Require().NoError(err)

	out, err := s.run("", "event", "1")
	s.Require().NoError(err)
	s.Contains(out, "Event: #1")
	s.Contains(out, "Status: PENDING")

	_, err = s.run("", "event", "99")
	s.ErrorContains(err, "EVENT_NOT_FOUND")

	_, err = s.run("", "event", "abc")
	s.Error(err)
}
