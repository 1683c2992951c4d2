// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the minimal identity record the chat core keeps.
// Authentication happens upstream; the session layer hands us an already
// trusted user id and display name, and this document only exists so
// member lists and message events can render names without a second hop.
type User struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	DisplayName   string             `bson:"display_name" json:"display_name"`
	DisplayNameCI string             `bson:"display_name_ci" json:"-"`
	Email         *string            `bson:"email,omitempty" json:"email,omitempty"`
	Status        string             `bson:"status" json:"status"` // "active" | "disabled"

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
