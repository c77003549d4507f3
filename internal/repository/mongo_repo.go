package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nyirinkindi/eshuri-messaging/internal/domain"
)

const (
	opTimeout    = 3 * time.Second
	queryTimeout = 5 * time.Second
)

// MongoStore is the production MessageStore backed by a messages collection.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	s := &MongoStore{coll: db.Collection("messages")}
	_, _ = s.coll.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "is_read", Value: 1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return s
}

func (s *MongoStore) Create(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	m.ID = primitive.NewObjectID().Hex()
	m.CreatedAt = time.Now().UTC()
	m.IsRead = false
	m.ReadAt = nil
	m.IsDeleted = false
	if m.DeletedBy == nil {
		m.DeletedBy = []string{}
	}
	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		return nil, storeErr("insert message", err)
	}
	return m, nil
}

func (s *MongoStore) FetchWindow(ctx context.Context, conversationID string, limit, skip int64, includeDeleted bool) ([]*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"conversation_id": conversationID}
	if !includeDeleted {
		filter["is_deleted"] = false
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(skip)
	return s.find(ctx, filter, opts)
}

func (s *MongoStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := s.coll.CountDocuments(ctx, bson.M{
		"recipient_id": userID,
		"is_read":      false,
		"is_deleted":   false,
	})
	if err != nil {
		return 0, storeErr("count unread", err)
	}
	return n, nil
}

// MarkRead is a single update-many so concurrent calls converge without
// double effects.
func (s *MongoStore) MarkRead(ctx context.Context, conversationID, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.coll.UpdateMany(ctx,
		bson.M{
			"conversation_id": conversationID,
			"recipient_id":    userID,
			"is_read":         false,
		},
		bson.M{"$set": bson.M{"is_read": true, "read_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, storeErr("mark conversation read", err)
	}
	return res.ModifiedCount, nil
}

// MarkMessageRead scopes the update to the message's recipient, so a caller
// cannot mark messages addressed to someone else.
func (s *MongoStore) MarkMessageRead(ctx context.Context, messageID, recipientID string) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID, "recipient_id": recipientID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "read_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m domain.Message
	if err := res.Decode(&m); err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storeErr("mark message read", err)
		}
		// Already read, or absent, or not addressed to recipientID.
		if err := s.coll.FindOne(ctx, bson.M{"_id": messageID, "recipient_id": recipientID}).Decode(&m); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, messageID)
			}
			return nil, storeErr("load message", err)
		}
	}
	return &m, nil
}

// SoftDelete unions userID into deleted_by, then flips is_deleted once both
// participants are present. Both steps are idempotent, so concurrent deletes
// by either user converge to a single fully-deleted transition.
func (s *MongoStore) SoftDelete(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID},
		bson.M{"$addToSet": bson.M{"deleted_by": userID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m domain.Message
	if err := res.Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, messageID)
		}
		return nil, storeErr("soft delete", err)
	}

	if !m.IsDeleted && m.DeletedFor(m.SenderID) && m.DeletedFor(m.RecipientID) {
		_, err := s.coll.UpdateOne(ctx,
			bson.M{"_id": messageID, "deleted_by": bson.M{"$all": []string{m.SenderID, m.RecipientID}}},
			bson.M{"$set": bson.M{"is_deleted": true}},
		)
		if err != nil {
			return nil, storeErr("finalize delete", err)
		}
		m.IsDeleted = true
	}
	return &m, nil
}

func (s *MongoStore) Search(ctx context.Context, userID, term string, limit, skip int64) ([]*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"$or": []bson.M{
			{"sender_id": userID},
			{"recipient_id": userID},
		},
		"body":       bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"},
		"is_deleted": false,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(skip)
	return s.find(ctx, filter, opts)
}

func (s *MongoStore) ListConversations(ctx context.Context, userID string) ([]*ConversationSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	unreadCond := bson.M{"$cond": bson.A{
		bson.M{"$and": bson.A{
			bson.M{"$eq": bson.A{"$recipient_id", userID}},
			bson.M{"$eq": bson.A{"$is_read", false}},
		}},
		1,
		0,
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or": []bson.M{
				{"sender_id": userID},
				{"recipient_id": userID},
			},
			"is_deleted": false,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$conversation_id",
			"last_message": bson.M{"$first": "$$ROOT"},
			"unread_count": bson.M{"$sum": unreadCond},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message.created_at", Value: -1}}}},
	}

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeErr("aggregate conversations", err)
	}
	defer cur.Close(ctx)

	out := []*ConversationSummary{}
	for cur.Next(ctx) {
		var cs ConversationSummary
		if err := cur.Decode(&cs); err != nil {
			return nil, storeErr("decode conversation", err)
		}
		out = append(out, &cs)
	}
	if err := cur.Err(); err != nil {
		return nil, storeErr("iterate conversations", err)
	}
	return out, nil
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Message, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("find messages", err)
	}
	defer cur.Close(ctx)

	out := []*domain.Message{}
	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return nil, storeErr("decode message", err)
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, storeErr("iterate messages", err)
	}
	return out, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStore, op, err)
}
