// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/studychat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrInvalidName   = errors.New("group name is required")
	ErrBadVisibility = errors.New(`visibility must be "public" or "private"`)
)

type Store struct {
	c           *mongo.Collection
	memberships *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:           db.Collection("groups"),
		memberships: db.Collection("group_memberships"),
	}
}

// Create inserts the group and the owner's admin membership. The owner is
// always an admin member; writing both documents here keeps that invariant
// out of the callers' hands.
func (s *Store) Create(ctx context.Context, name, description, visibility string, ownerID primitive.ObjectID) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, ErrInvalidName
	}
	if !models.IsValidVisibility(visibility) {
		return models.Group{}, ErrBadVisibility
	}

	now := time.Now().UTC()
	g := models.Group{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		Description: description,
		Visibility:  visibility,
		OwnerID:     ownerID,
		CreatedAt:   now,
	}
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}

	owner := models.Membership{
		ID:       primitive.NewObjectID(),
		GroupID:  g.ID,
		UserID:   ownerID,
		Admin:    true,
		JoinedAt: now,
	}
	if _, err := s.memberships.InsertOne(ctx, owner); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// GetByID returns the group or ErrGroupNotFound.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g)
	if err == mongo.ErrNoDocuments {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// ListVisible returns public groups plus private groups the user belongs to,
// newest first.
func (s *Store) ListVisible(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	memberOf, err := s.groupIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"$or": []bson.M{
		{"visibility": models.VisibilityPublic},
		{"_id": bson.M{"$in": memberOf}},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *Store) groupIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.memberships.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetProjection(bson.M{"group_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	ids := make([]primitive.ObjectID, 0)
	for cur.Next(ctx) {
		var row struct {
			GroupID primitive.ObjectID `bson:"group_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.GroupID)
	}
	return ids, cur.Err()
}
