// Package chat contains core concepts of the club chat.
// Messages are immutable once accepted by a store.
package chat

import (
	"time"
)

type ClubID string

// Message is a single club chat message as delivered in a snapshot.
// Timestamp is nil while the store has accepted the message but not yet stamped it.
type Message struct {
	ID         string     `json:"id"`
	ClubID     ClubID     `json:"clubId"`
	SenderID   string     `json:"senderId"`
	SenderName string     `json:"senderName"`
	Text       string     `json:"text"`
	Timestamp  *time.Time `json:"timestamp"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// IsPending reports whether the store has not assigned an ordering timestamp yet.
func (m Message) IsPending() bool {
	return m.Timestamp == nil
}

// ResolvedTime is the server timestamp, or the provisional local time while pending.
func (m Message) ResolvedTime() time.Time {
	if m.Timestamp != nil {
		return *m.Timestamp
	}
	return m.CreatedAt
}

// Snapshot is the full ordered message list of one club at a point in time.
type Snapshot []Message
