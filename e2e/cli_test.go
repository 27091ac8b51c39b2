package e2e_test

import (
	"bufio"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/turnrelay/internal/protocol"
)

func buildCLI(t *testing.T) string {
	t.Helper()

	projectRoot := findProjectRoot(t)
	binaryPath := filepath.Join(t.TempDir(), "matchctl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/matchctl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))
	return binaryPath
}

// replProcess drives one interactive matchctl repl
type replProcess struct {
	t      *testing.T
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func startRepl(t *testing.T, binary string, ts *testServer) *replProcess {
	t.Helper()

	cmd := exec.Command(binary, "--addr", ts.tcpAddr, "--server", ts.serverURL, "--output", "json", "repl")
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	p := &replProcess{t: t, cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}
	t.Cleanup(func() {
		_ = stdin.Close()
		_ = cmd.Wait()
	})
	return p
}

func (p *replProcess) send(line string) *protocol.Response {
	p.t.Helper()

	_, err := io.WriteString(p.stdin, line+"\n")
	require.NoError(p.t, err)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		l, err := p.stdout.ReadString('\n')
		ch <- result{l, err}
	}()

	select {
	case r := <-ch:
		require.NoError(p.t, r.err)
		resp, err := protocol.DecodeResponse([]byte(strings.TrimSpace(r.line)))
		require.NoError(p.t, err, r.line)
		return resp
	case <-time.After(10 * time.Second):
		p.t.Fatalf("no response to %q", line)
		return nil
	}
}

func TestCLIMatch(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the CLI binary")
	}

	ts := startTestServer(t)
	binary := buildCLI(t)

	alice := startRepl(t, binary, ts)
	bob := startRepl(t, binary, ts)

	require.True(t, alice.send(`REGISTER {"username":"alice","password":"a"}`).OK())
	require.True(t, alice.send(`LOGIN {"username":"alice","password":"a"}`).OK())
	require.True(t, bob.send(`REGISTER {"username":"bob","password":"b"}`).OK())
	require.True(t, bob.send(`LOGIN {"username":"bob","password":"b"}`).OK())

	require.True(t, alice.send(`SEND_INVITATION bob`).OK())

	resp := bob.send(`UPDATE_PAIRING`)
	require.NotNil(t, resp.Invitation)
	require.True(t, bob.send(`ACCEPT_INVITATION 1`).OK())
	require.True(t, alice.send(`ACKNOWLEDGE_RESPONSE 1`).OK())

	require.True(t, alice.send(`SEND_MOVE 8`).OK())
	resp = alice.send(`SEND_MOVE 2`)
	assert.False(t, resp.OK())
	assert.Equal(t, "Not your turn", resp.Message)

	resp = bob.send(`REQUEST_MOVE`)
	assert.True(t, resp.Active)
	assert.Equal(t, 8, resp.Move)

	require.True(t, bob.send(`COMPLETE_GAME`).OK())
	resp = alice.send(`REQUEST_MOVE`)
	assert.False(t, resp.Active)
}

func TestCLIHealth(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the CLI binary")
	}

	ts := startTestServer(t)
	binary := buildCLI(t)

	out, err := exec.Command(binary, "--server", ts.serverURL, "health").CombinedOutput()
	require.NoError(t, err, string(out))
	assert.Contains(t, string(out), "Server status: ok")
}
