package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventStatusIsActive(t *testing.T) {
	active := []EventStatus{EventStatusPending, EventStatusAccepted, EventStatusPlaying}
	terminal := []EventStatus{EventStatusDeclined, EventStatusCompleted, EventStatusAborted}

	for _, s := range active {
		assert.True(t, s.IsActive(), s)
	}
	for _, s := range terminal {
		assert.False(t, s.IsActive(), s)
	}
}

func TestEventStatusIsPlayable(t *testing.T) {
	assert.True(t, EventStatusAccepted.IsPlayable())
	assert.True(t, EventStatusPlaying.IsPlayable())
	assert.False(t, EventStatusPending.IsPlayable())
	assert.False(t, EventStatusAborted.IsPlayable())
}

func TestEventEqualUsesID(t *testing.T) {
	a := &Event{EventID: 1, Sender: "alice"}
	b := &Event{EventID: 1, Sender: "bob"}
	c := &Event{EventID: 2, Sender: "alice"}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestEventParticipants(t *testing.T) {
	e := &Event{Sender: "alice", Opponent: "bob"}

	assert.True(t, e.Involves("alice"))
	assert.True(t, e.Involves("bob"))
	assert.False(t, e.Involves("carol"))
	assert.Equal(t, "bob", e.OtherParty("alice"))
	assert.Equal(t, "alice", e.OtherParty("bob"))
}

func TestEventClearMove(t *testing.T) {
	e := &Event{Move: 4, Turn: "alice"}
	assert.True(t, e.HasPendingMove())

	e.ClearMove()
	assert.False(t, e.HasPendingMove())
	assert.Equal(t, NoMove, e.Move)
	assert.Empty(t, e.Turn)
}

func TestValidMove(t *testing.T) {
	assert.True(t, ValidMove(0))
	assert.True(t, ValidMove(8))
	assert.False(t, ValidMove(-1))
	assert.False(t, ValidMove(9))
}

func TestUserPublicDropsPassword(t *testing.T) {
	u := User{Username: "alice", Password: "secret"}

	pub := u.Public()
	assert.Empty(t, pub.Password)
	assert.Equal(t, "secret", u.Password)
	assert.True(t, (&u).Equal(&pub))
}
