package model

import "time"

// EventID is assigned by the store when an event is created
type EventID int64

// EventStatus is the lifecycle state of an invitation-to-match event
type EventStatus string

const (
	EventStatusPending   EventStatus = "PENDING"
	EventStatusDeclined  EventStatus = "DECLINED"
	EventStatusAccepted  EventStatus = "ACCEPTED"
	EventStatusPlaying   EventStatus = "PLAYING"
	EventStatusCompleted EventStatus = "COMPLETED"
	EventStatusAborted   EventStatus = "ABORTED"
)

// NoMove marks an event with no unread move
const NoMove = -1

// Valid move range, inclusive
const (
	MinMove = 0
	MaxMove = 8
)

// IsActive reports whether the status still ties up both participants
func (s EventStatus) IsActive() bool {
	switch s {
	case EventStatusPending, EventStatusAccepted, EventStatusPlaying:
		return true
	default:
		return false
	}
}

// IsPlayable reports whether moves may be exchanged.
// ACCEPTED counts: the acceptor may start before the sender acknowledges.
func (s EventStatus) IsPlayable() bool {
	return s == EventStatusAccepted || s == EventStatusPlaying
}

// Event is one invitation and, once accepted, the match that follows it.
//
// Turn names whoever placed the unread Move; it is empty when Move is NoMove.
type Event struct {
	EventID   EventID     `json:"eventId"`
	Sender    string      `json:"sender"`
	Opponent  string      `json:"opponent"`
	Status    EventStatus `json:"status"`
	Turn      string      `json:"turn,omitempty"`
	Move      int         `json:"move"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Equal reports whether two events share an identity
func (e *Event) Equal(other *Event) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.EventID == other.EventID
}

// Involves reports whether username is a participant
func (e *Event) Involves(username string) bool {
	return e.Sender == username || e.Opponent == username
}

// OtherParty returns the participant that is not username
func (e *Event) OtherParty(username string) string {
	if e.Sender == username {
		return e.Opponent
	}
	return e.Sender
}

// HasPendingMove reports whether a move is waiting to be read
func (e *Event) HasPendingMove() bool {
	return e.Move != NoMove
}

// ClearMove marks the pending move as consumed
func (e *Event) ClearMove() {
	e.Move = NoMove
	e.Turn = ""
}

// ValidMove reports whether m is inside the board range
func ValidMove(m int) bool {
	return m >= MinMove && m <= MaxMove
}
