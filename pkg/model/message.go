package model

import (
	"fmt"
	"time"
)

// MaxContentLength is the upper bound, in runes, of a message body.
const MaxContentLength = 1000

type Message struct {
	ID        int64     `json:"id,string"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Delivered bool      `json:"delivered"`
	IsRead    bool      `json:"isRead"`
}

// ConversationID returns the key shared by both directions of a direct
// conversation, e.g. "dm:5:alice:3:bob" for either (alice, bob) or
// (bob, alice). Each id is length-prefixed so ids containing ':' cannot make
// two pairs collide.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%d:%s:%d:%s", len(a), a, len(b), b)
}

// Counterpart returns the other participant of m as seen by userID.
func (m Message) Counterpart(userID string) string {
	if m.Sender == userID {
		return m.Receiver
	}
	return m.Sender
}

// Between reports whether m belongs to the conversation of a and b, in
// either direction.
func (m Message) Between(a, b string) bool {
	return (m.Sender == a || m.Receiver == a) && m.Counterpart(a) == b
}

// Before reports whether m sorts before other in conversation order.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
