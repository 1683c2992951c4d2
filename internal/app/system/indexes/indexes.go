// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureGroups(ctx, db); err != nil {
		problems = append(problems, "groups: "+err.Error())
	}
	if err := ensureGroupMemberships(ctx, db); err != nil {
		problems = append(problems, "group_memberships: "+err.Error())
	}
	if err := ensureMessages(ctx, db); err != nil {
		problems = append(problems, "messages: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensure(ctx context.Context, db *mongo.Database, collection string, idx []mongo.IndexModel) error {
	_, err := db.Collection(collection).Indexes().CreateMany(ctx, idx)
	return err
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensure(ctx, db, "users", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "display_name_ci", Value: 1}},
			Options: options.Index().SetName("display_name_ci"),
		},
	})
}

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	return ensure(ctx, db, "groups", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "visibility", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("visibility_created"),
		},
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("name_ci"),
		},
	})
}

func ensureGroupMemberships(ctx context.Context, db *mongo.Database) error {
	return ensure(ctx, db, "group_memberships", []mongo.IndexModel{
		{
			// The (group, user) uniqueness invariant lives here, not in code.
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetName("group_user_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "joined_at", Value: 1}},
			Options: options.Index().SetName("group_joined"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("user"),
		},
	})
}

func ensureMessages(ctx context.Context, db *mongo.Database) error {
	return ensure(ctx, db, "messages", []mongo.IndexModel{
		{
			// seq is assigned from the per-group counter; unique backs the
			// monotonic ordering invariant against counter misuse.
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetName("group_seq_unique").SetUnique(true),
		},
	})
}
