package models

import "time"

// Breakpoint is a debug-time construct: it pauses a dispatch pass before a
// node so a developer can inspect state. Removed on normal completion or by
// the breakpoint expiry sweep; it has no durable terminal states.
type Breakpoint struct {
	ID          string    `json:"id" bson:"_id"`
	ExecutionID string    `json:"execution_id" bson:"execution_id"`
	NodeID      string    `json:"node_id" bson:"node_id"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt   time.Time `json:"expires_at" bson:"expires_at"`
}

// Expired reports whether the breakpoint is past its expiry.
func (b *Breakpoint) Expired(now time.Time) bool {
	return !b.ExpiresAt.After(now)
}
