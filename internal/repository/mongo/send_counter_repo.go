package mongo

import (
	"alcyxob/coach-scheduling/internal/repository"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sendCounterCollectionName = "notification_counters"

type sendCounterDoc struct {
	ID       string    `bson:"_id"`
	Count    int64     `bson:"count"`
	ExpireAt time.Time `bson:"expireAt"`
}

type mongoSendCounter struct {
	collection *mongo.Collection
}

// NewMongoSendCounter returns a fixed-window counter stored in MongoDB. Old
// windows are reaped by a TTL index on expireAt.
func NewMongoSendCounter(db *mongo.Database) repository.SendCounter {
	return &mongoSendCounter{collection: db.Collection(sendCounterCollectionName)}
}

// Increment upserts the counter document for the current window.
func (r *mongoSendCounter) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("send counter window must be positive, got %s", window)
	}
	bucket := now.UnixNano() / int64(window)
	windowEnd := time.Unix(0, (bucket+1)*int64(window)).UTC()

	filter := bson.M{"_id": fmt.Sprintf("%s:%d", key, bucket)}
	update := bson.M{
		"$inc":         bson.M{"count": 1},
		"$setOnInsert": bson.M{"expireAt": windowEnd.Add(window)},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc sendCounterDoc
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Count, nil
}

// EnsureSendCounterIndexes creates the TTL index that expires old windows.
func EnsureSendCounterIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expireAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}
