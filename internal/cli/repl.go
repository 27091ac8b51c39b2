package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/turnrelay/internal/protocol"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Send requests over one TCP session",
		Long: `Read requests from stdin, one per line, and print each response.

Each line is a request type followed by its data:

  REGISTER {"username":"alice","password":"secret"}
  LOGIN {"username":"alice","password":"secret"}
  UPDATE_PAIRING
  SEND_INVITATION bob
  ACKNOWLEDGE_RESPONSE 1
  SEND_MOVE 4

Blank lines and lines starting with # are skipped. The session ends at EOF
or on the line "quit".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := Dial(cfg.Addr, cfg.Timeout)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			return runRepl(session, bufio.NewScanner(cmd.InOrStdin()), out)
		},
	}
}

// errQuit ends the repl without error
var errQuit = errors.New("quit")

func runRepl(session *SessionClient, in *bufio.Scanner, out *Output) error {
	for in.Scan() {
		req, err := ParseLine(in.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			out.PrintError(err)
			continue
		}
		if req == nil {
			continue
		}

		if cfg.Verbose {
			out.PrintMessage(fmt.Sprintf("> %s %s", req.Type, req.Data))
		}
		resp, err := session.Send(req)
		if err != nil {
			return err
		}
		out.Print(resp)
	}
	return in.Err()
}

// ParseLine turns "TYPE [data]" into a request. It returns nil for blank and
// comment lines.
func ParseLine(line string) (*protocol.Request, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	reqType, data, _ := strings.Cut(line, " ")
	reqType = strings.ToUpper(reqType)
	if reqType == "QUIT" || reqType == "EXIT" {
		return nil, errQuit
	}
	return &protocol.Request{Type: protocol.RequestType(reqType), Data: strings.TrimSpace(data)}, nil
}
