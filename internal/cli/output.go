package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mcoot/turnrelay/internal/model"
	"github.com/mcoot/turnrelay/internal/protocol"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintf(o.w, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	if resp, ok := data.(*protocol.Response); ok {
		// one line per response so scripted sessions can be piped
		b, err := resp.Encode()
		if err == nil {
			fmt.Fprintln(o.w, string(b))
			return
		}
	}
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case *protocol.Response:
		o.printResponse(v)
	case HealthResult:
		o.printHealthResult(v)
	case OnlineUsers:
		o.printOnlineUsers(v)
	case Event:
		o.printEvent(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
	TCP    string `json:"tcp,omitempty"`
}

// User response type (matches API)
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Online      bool   `json:"online"`
}

// OnlineUsers response type
type OnlineUsers struct {
	Users []User `json:"users"`
}

// Event response type
type Event struct {
	ID          int64     `json:"id"`
	Sender      string    `json:"sender"`
	Opponent    string    `json:"opponent"`
	Status      string    `json:"status"`
	PendingMove bool      `json:"pending_move"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (o *Output) printResponse(r *protocol.Response) {
	fmt.Fprintf(o.w, "%s: %s\n", r.Status, r.Message)

	if p := r.PairingPayload; p != nil {
		names := make([]string, 0, len(p.AvailableUsers))
		for _, u := range p.AvailableUsers {
			names = append(names, u.Username)
		}
		if len(names) == 0 {
			fmt.Fprintln(o.w, "  Available: (none)")
		} else {
			fmt.Fprintf(o.w, "  Available: %s\n", strings.Join(names, ", "))
		}
		if inv := p.Invitation; inv != nil {
			fmt.Fprintf(o.w, "  Invitation: #%d from %s\n", inv.EventID, inv.Sender)
		}
		if ir := p.InvitationResponse; ir != nil {
			fmt.Fprintf(o.w, "  Response: #%d to %s (%s)\n", ir.EventID, ir.Opponent, ir.Status)
		}
	}

	if m := r.MovePayload; m != nil {
		move := "none"
		if m.Move != model.NoMove {
			move = fmt.Sprint(m.Move)
		}
		fmt.Fprintf(o.w, "  Active: %t  Move: %s\n", m.Active, move)
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Server status: %s\n", h.Status)
	if h.TCP != "" {
		fmt.Fprintf(o.w, "TCP: %s\n", h.TCP)
	}
}

func (o *Output) printOnlineUsers(u OnlineUsers) {
	fmt.Fprintf(o.w, "Online users (%d):\n", len(u.Users))
	for _, user := range u.Users {
		fmt.Fprintf(o.w, "  - %s (%s)\n", user.DisplayName, user.Username)
	}
}

func (o *Output) printEvent(e Event) {
	fmt.Fprintf(o.w, "Event: #%d\n", e.ID)
	fmt.Fprintf(o.w, "Sender: %s\n", e.Sender)
	fmt.Fprintf(o.w, "Opponent: %s\n", e.Opponent)
	fmt.Fprintf(o.w, "Status: %s\n", e.Status)
	if e.PendingMove {
		fmt.Fprintln(o.w, "Pending move: yes")
	}
	fmt.Fprintf(o.w, "Updated: %s\n", e.UpdatedAt.Format(time.RFC3339))
}
