package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/turnpike-ai/turnpike/src/chat"
)

const mongoCloseTimeout = 5 * time.Second

// MongoStore keeps one document per session holding the ordered message
// array. A batch append is a single $push with $each, which Mongo applies
// atomically, preserving the pairing invariant without multi-document
// transactions.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		return nil, errors.New("mongo collection name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

var _ Store = (*MongoStore)(nil)

func (ms *MongoStore) GetOrCreate(ctx context.Context, sessionID string) error {
	if ms == nil || ms.collection == nil {
		return nil
	}
	_, err := ms.collection.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$setOnInsert": bson.M{"messages": bson.A{}}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (ms *MongoStore) Append(ctx context.Context, sessionID string, messages ...chat.Message) error {
	if ms == nil || ms.collection == nil || len(messages) == 0 {
		return nil
	}
	payloads := make(bson.A, 0, len(messages))
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		payloads = append(payloads, string(data))
	}
	_, err := ms.collection.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$push": bson.M{"messages": bson.M{"$each": payloads}}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (ms *MongoStore) History(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if ms == nil || ms.collection == nil {
		return nil, nil
	}
	var doc struct {
		Messages []string `bson:"messages"`
	}
	err := ms.collection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	messages := make([]chat.Message, 0, len(doc.Messages))
	for _, payload := range doc.Messages {
		var msg chat.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (ms *MongoStore) Sessions(ctx context.Context) ([]string, error) {
	if ms == nil || ms.collection == nil {
		return nil, nil
	}
	raw, err := ms.collection.Distinct(ctx, "_id", bson.M{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (ms *MongoStore) Close(ctx context.Context) error {
	if ms == nil || ms.client == nil {
		return nil
	}
	closeCtx, cancel := context.WithTimeout(ctx, mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(closeCtx)
}
