// internal/domain/models/membership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Membership is the authoritative join between users and groups.
// Exactly one document per (group_id, user_id); a user must hold a
// Membership before they may read or write messages in that group.
type Membership struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID  primitive.ObjectID `bson:"group_id" json:"group_id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Admin    bool               `bson:"admin" json:"admin"`
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}
