// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Group represents a study group that shares one message stream.
//
// NOTE:
//   - Member lists are not embedded on Group. All membership is stored
//     in the group_memberships collection.
//   - The owner always holds an admin membership; group creation writes
//     both documents.
//   - Groups are never deleted.
type Group struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Description string             `bson:"description" json:"description"`
	Visibility  string             `bson:"visibility" json:"visibility"` // "public" | "private"
	OwnerID     primitive.ObjectID `bson:"owner_id" json:"owner_id"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// IsValidVisibility reports whether v is a recognized visibility value.
func IsValidVisibility(v string) bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}
