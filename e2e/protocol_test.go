package e2e_test

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/turnrelay/internal/protocol"
)

// tcpClient speaks the framed protocol over one connection
type tcpClient struct {
	t     *testing.T
	conn  net.Conn
	codec *protocol.Conn
}

func dial(t *testing.T, addr string) *tcpClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &tcpClient{t: t, conn: conn, codec: protocol.NewConn(conn)}
}

func (c *tcpClient) send(reqType protocol.RequestType, data any) *protocol.Response {
	c.t.Helper()
	req, err := protocol.NewRequest(reqType, data)
	require.NoError(c.t, err)

	require.NoError(c.t, c.conn.SetDeadline(time.Now().Add(5*time.Second)))
	require.NoError(c.t, c.codec.WriteRequest(req))
	resp, err := c.codec.ReadResponse()
	require.NoError(c.t, err)
	return resp
}

func (c *tcpClient) mustSend(reqType protocol.RequestType, data any) *protocol.Response {
	c.t.Helper()
	resp := c.send(reqType, data)
	require.True(c.t, resp.OK(), "%s: %s", reqType, resp.Message)
	return resp
}

func (c *tcpClient) signIn(username string) {
	c.t.Helper()
	creds := protocol.Credentials{Username: username, Password: "pw-" + username}
	c.mustSend(protocol.RequestRegister, creds)
	c.mustSend(protocol.RequestLogin, creds)
}

func TestMatchOverTCP(t *testing.T) {
	ts := startTestServer(t)

	user1 := dial(t, ts.tcpAddr)
	user2 := dial(t, ts.tcpAddr)
	user1.signIn("user1")
	user2.signIn("user2")

	// user1 invites user2
	resp := user1.mustSend(protocol.RequestUpdatePairing, "")
	require.Len(t, resp.AvailableUsers, 1)
	assert.Equal(t, "user2", resp.AvailableUsers[0].Username)
	user1.mustSend(protocol.RequestSendInvitation, "user2")

	// user2 sees the invitation and accepts
	resp = user2.mustSend(protocol.RequestUpdatePairing, "")
	require.NotNil(t, resp.Invitation)
	assert.Equal(t, "user1", resp.Invitation.Sender)
	eventID := fmt.Sprint(resp.Invitation.EventID)
	user2.mustSend(protocol.RequestAcceptInvitation, eventID)

	// user1 sees the acceptance and acknowledges
	resp = user1.mustSend(protocol.RequestUpdatePairing, "")
	require.NotNil(t, resp.InvitationResponse)
	assert.Equal(t, "ACCEPTED", string(resp.InvitationResponse.Status))
	user1.mustSend(protocol.RequestAcknowledgeResponse, eventID)

	// move exchange
	user1.mustSend(protocol.RequestSendMove, "4")
	resp = user2.mustSend(protocol.RequestRequestMove, "")
	assert.Equal(t, protocol.KindMove, resp.Kind)
	assert.True(t, resp.Active)
	assert.Equal(t, 4, resp.Move)

	user2.mustSend(protocol.RequestSendMove, "0")
	resp = user1.mustSend(protocol.RequestRequestMove, "")
	assert.True(t, resp.Active)
	assert.Equal(t, 0, resp.Move)

	// user1 aborts
	user1.mustSend(protocol.RequestAbortGame, "")
	resp = user2.mustSend(protocol.RequestRequestMove, "")
	assert.False(t, resp.Active)

	// both are available again
	resp = user2.mustSend(protocol.RequestUpdatePairing, "")
	require.Len(t, resp.AvailableUsers, 1)
	assert.Equal(t, "user1", resp.AvailableUsers[0].Username)
}

func TestDisconnectMidMatch(t *testing.T) {
	ts := startTestServer(t)

	user1 := dial(t, ts.tcpAddr)
	user2 := dial(t, ts.tcpAddr)
	user1.signIn("user1")
	user2.signIn("user2")

	user1.mustSend(protocol.RequestSendInvitation, "user2")
	resp := user2.mustSend(protocol.RequestUpdatePairing, "")
	require.NotNil(t, resp.Invitation)
	eventID := fmt.Sprint(resp.Invitation.EventID)
	user2.mustSend(protocol.RequestAcceptInvitation, eventID)
	user1.mustSend(protocol.RequestAcknowledgeResponse, eventID)

	require.NoError(t, user1.conn.Close())

	assert.Eventually(t, func() bool {
		resp := user2.send(protocol.RequestRequestMove, "")
		return resp.OK() && !resp.Active
	}, 5*time.Second, 20*time.Millisecond)

	// user1 can log in again on a fresh connection
	again := dial(t, ts.tcpAddr)
	assert.Eventually(t, func() bool {
		return again.send(protocol.RequestLogin, protocol.Credentials{Username: "user1", Password: "pw-user1"}).OK()
	}, 5*time.Second, 20*time.Millisecond)
}

func TestOneConnectionPerUser(t *testing.T) {
	ts := startTestServer(t)

	first := dial(t, ts.tcpAddr)
	first.signIn("alice")

	second := dial(t, ts.tcpAddr)
	resp := second.send(protocol.RequestLogin, protocol.Credentials{Username: "alice", Password: "pw-alice"})
	assert.False(t, resp.OK())
	assert.Equal(t, "User is already logged in", resp.Message)
}
