// internal/domain/models/message.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attachment MIME categories.
const (
	AttachmentImage    = "image"
	AttachmentDocument = "document"
)

// Attachment is file metadata fixed to a message at send time. The binary
// itself lives with the object storage collaborator; only the retrieval
// URL and descriptive metadata are persisted here.
type Attachment struct {
	ID       string `bson:"id" json:"id"`
	FileName string `bson:"file_name" json:"file_name"`
	Kind     string `bson:"kind" json:"kind"` // "image" | "document"
	Size     int64  `bson:"size" json:"size"`
	URL      string `bson:"url" json:"url"`
}

// Message is one entry in a group's append-only log.
//
// Invariants:
//   - Seq is strictly increasing per group and totally orders the log.
//   - Content and Attachments are immutable after Append; Reactions is
//     the only mutable field.
//   - Reactions maps emoji -> user ids (hex), each user at most once per emoji.
type Message struct {
	ID          primitive.ObjectID  `bson:"_id" json:"id"`
	GroupID     primitive.ObjectID  `bson:"group_id" json:"group_id"`
	SenderID    primitive.ObjectID  `bson:"sender_id" json:"sender_id"`
	SenderName  string              `bson:"sender_name" json:"sender_name"`
	Content     string              `bson:"content" json:"content"`
	Attachments []Attachment        `bson:"attachments" json:"attachments"`
	Reactions   map[string][]string `bson:"reactions" json:"reactions"`
	Seq         int64               `bson:"seq" json:"seq"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
}

// HasReaction reports whether userID (hex) currently reacts to the
// message with emoji.
func (m *Message) HasReaction(emoji, userID string) bool {
	for _, id := range m.Reactions[emoji] {
		if id == userID {
			return true
		}
	}
	return false
}
