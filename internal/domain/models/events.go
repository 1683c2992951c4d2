// internal/domain/models/events.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Event kinds carried on the wire envelope.
const (
	EventMessage        = "message"
	EventMessageUpdated = "message_updated"
	EventPresence       = "presence"
)

// ChatEvent is the closed set of events a subscriber can receive. Handlers
// switch over the two concrete variants; there is no open payload type.
type ChatEvent interface {
	Kind() string
	Group() primitive.ObjectID
}

// MessageEvent carries a newly appended message (kind "message") or a
// message whose reaction map changed (kind "message_updated").
type MessageEvent struct {
	Type    string  `json:"type"` // EventMessage | EventMessageUpdated
	Message Message `json:"message"`
}

func (e MessageEvent) Kind() string              { return e.Type }
func (e MessageEvent) Group() primitive.ObjectID { return e.Message.GroupID }

// PresenceEvent carries the full typing snapshot for a group. Sending the
// whole set (rather than a delta) keeps late or dropped deliveries harmless:
// the next event overwrites whatever state the client holds.
type PresenceEvent struct {
	Type        string             `json:"type"` // EventPresence
	GroupID     primitive.ObjectID `json:"group_id"`
	TypingUsers []string           `json:"typing_users"` // user ids, hex
}

func (e PresenceEvent) Kind() string              { return e.Type }
func (e PresenceEvent) Group() primitive.ObjectID { return e.GroupID }
