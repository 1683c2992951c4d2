// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/studychat/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrNotAMember    = errors.New("user is not a member of this group")
)

type Store struct {
	c      *mongo.Collection
	groups *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:      db.Collection("group_memberships"),
		groups: db.Collection("groups"),
	}
}

// IsMember is a pure lookup with no side effect.
func (s *Store) IsMember(ctx context.Context, groupID, userID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsAdmin reports whether the user holds an admin membership in the group.
func (s *Store) IsAdmin(ctx context.Context, groupID, userID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID, "admin": true}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Join creates a membership. Joining a group the user already belongs to is
// an idempotent success: the existing membership is returned unchanged.
// Returns ErrGroupNotFound when the group does not exist. The first member
// of a group is marked admin (normally the owner, written at creation; this
// covers groups that somehow lost all members).
func (s *Store) Join(ctx context.Context, groupID, userID primitive.ObjectID) (models.Membership, error) {
	if err := s.groups.FindOne(ctx, bson.M{"_id": groupID}).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Membership{}, ErrGroupNotFound
		}
		return models.Membership{}, err
	}

	var existing models.Membership
	err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&existing)
	if err == nil {
		return existing, nil
	}
	if err != mongo.ErrNoDocuments {
		return models.Membership{}, err
	}

	count, err := s.c.CountDocuments(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return models.Membership{}, err
	}

	m := models.Membership{
		ID:       primitive.NewObjectID(),
		GroupID:  groupID,
		UserID:   userID,
		Admin:    count == 0,
		JoinedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		// Lost a race with a concurrent join; the unique index caught it.
		// Fall back to the winner's document to keep Join idempotent.
		if wafflemongo.IsDup(err) {
			if err2 := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&existing); err2 == nil {
				return existing, nil
			}
		}
		return models.Membership{}, err
	}
	return m, nil
}

// Leave removes the membership for (groupID, userID). Returns ErrNotAMember
// when there is nothing to remove. If the leaver was the sole admin, the
// longest-tenured remaining member is promoted so the group keeps an admin.
func (s *Store) Leave(ctx context.Context, groupID, userID primitive.ObjectID) error {
	var leaving models.Membership
	err := s.c.FindOneAndDelete(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&leaving)
	if err == mongo.ErrNoDocuments {
		return ErrNotAMember
	}
	if err != nil {
		return err
	}

	if !leaving.Admin {
		return nil
	}
	admins, err := s.c.CountDocuments(ctx, bson.M{"group_id": groupID, "admin": true})
	if err != nil || admins > 0 {
		return err
	}

	// Promote the earliest joiner still present, if any.
	opts := options.FindOneAndUpdate().SetSort(bson.D{{Key: "joined_at", Value: 1}})
	err = s.c.FindOneAndUpdate(ctx,
		bson.M{"group_id": groupID},
		bson.M{"$set": bson.M{"admin": true}},
		opts,
	).Err()
	if err == mongo.ErrNoDocuments {
		return nil // group is now empty; admin re-established on next join
	}
	return err
}

// ListMembers returns all memberships for a group ordered by join time.
func (s *Store) ListMembers(ctx context.Context, groupID primitive.ObjectID) ([]models.Membership, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.Membership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// CountByGroup returns the number of members in a group.
func (s *Store) CountByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"group_id": groupID})
}
