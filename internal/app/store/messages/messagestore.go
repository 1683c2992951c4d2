// internal/app/store/messages/messagestore.go
package messagestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/studychat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyMessage    = errors.New("message needs content or attachments")
	ErrBadEmoji        = errors.New("invalid reaction emoji")
)

type Store struct {
	c        *mongo.Collection
	counters *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:        db.Collection("messages"),
		counters: db.Collection("counters"),
	}
}

// nextSeq reserves the next per-group sequence number. The counter document
// is the single serialization point for a group's log: $inc on one document
// is atomic, so two concurrent appends can never draw the same number.
func (s *Store) nextSeq(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "msgseq:" + groupID.Hex()},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

// Append durably writes a message to the group's log. Content and
// attachments are fixed from this point on; only the reaction map may
// change later. Membership gating is the caller's job.
func (s *Store) Append(ctx context.Context, groupID, senderID primitive.ObjectID, senderName, content string, attachments []models.Attachment) (models.Message, error) {
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return models.Message{}, ErrEmptyMessage
	}

	seq, err := s.nextSeq(ctx, groupID)
	if err != nil {
		return models.Message{}, err
	}

	if attachments == nil {
		attachments = []models.Attachment{}
	}
	m := models.Message{
		ID:          primitive.NewObjectID(),
		GroupID:     groupID,
		SenderID:    senderID,
		SenderName:  senderName,
		Content:     content,
		Attachments: attachments,
		Reactions:   map[string][]string{},
		Seq:         seq,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// List returns the group's messages with seq > sinceSeq, ascending by seq.
// Pass sinceSeq 0 for the full history.
func (s *Store) List(ctx context.Context, groupID primitive.ObjectID, sinceSeq int64) ([]models.Message, error) {
	filter := bson.M{"group_id": groupID}
	if sinceSeq > 0 {
		filter["seq"] = bson.M{"$gt": sinceSeq}
	}
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	messages := make([]models.Message, 0)
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetByID returns the message or ErrMessageNotFound.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Message, error) {
	var m models.Message
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// ToggleReaction flips the (emoji, user) entry on the message's reaction map
// and returns the updated message. The toggle is idempotent: present→absent,
// absent→present. Each step is a single filtered update, so concurrent
// toggles by the same user on the same emoji cannot double-add; different
// users or different emoji never touch the same array entry.
func (s *Store) ToggleReaction(ctx context.Context, messageID primitive.ObjectID, userID primitive.ObjectID, emoji string) (models.Message, error) {
	if emoji == "" || strings.ContainsAny(emoji, ".$") {
		return models.Message{}, ErrBadEmoji
	}
	uid := userID.Hex()
	field := "reactions." + emoji

	// Try to remove first: filter only matches when the user's reaction is set.
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": messageID, field: uid},
		bson.M{"$pull": bson.M{field: uid}},
	)
	if err != nil {
		return models.Message{}, err
	}

	if res.MatchedCount > 0 {
		// Removed; drop the key entirely if the array is now empty so the
		// map round-trips back to {} after a double toggle.
		_, err = s.c.UpdateOne(ctx,
			bson.M{"_id": messageID, field: bson.M{"$size": 0}},
			bson.M{"$unset": bson.M{field: ""}},
		)
		if err != nil {
			return models.Message{}, err
		}
		return s.GetByID(ctx, messageID)
	}

	// Nothing to remove: add. $addToSet keeps this idempotent under races.
	res, err = s.c.UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{"$addToSet": bson.M{field: uid}},
	)
	if err != nil {
		return models.Message{}, err
	}
	if res.MatchedCount == 0 {
		return models.Message{}, ErrMessageNotFound
	}
	return s.GetByID(ctx, messageID)
}

// CountByGroup returns the number of messages in a group's log.
func (s *Store) CountByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"group_id": groupID})
}
