package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcoot/turnrelay/internal/model"
)

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Health is the health check body
type Health struct {
	Status string `json:"status"`
}

// User represents a user in API responses
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Online      bool   `json:"online"`
}

// UserFromModel converts a model.User
func UserFromModel(u model.User) User {
	return User{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Online:      u.Online,
	}
}

// OnlineUsers lists the connected users
type OnlineUsers struct {
	Users []User `json:"users"`
}

// Event represents an event in API responses
type Event struct {
	ID          int64     `json:"id"`
	Sender      string    `json:"sender"`
	Opponent    string    `json:"opponent"`
	Status      string    `json:"status"`
	PendingMove bool      `json:"pending_move"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EventFromModel converts a model.Event. The unread move itself is not exposed.
func EventFromModel(e *model.Event) Event {
	return Event{
		ID:          int64(e.EventID),
		Sender:      e.Sender,
		Opponent:    e.Opponent,
		Status:      string(e.Status),
		PendingMove: e.HasPendingMove(),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
