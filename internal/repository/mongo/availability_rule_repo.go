package mongo

import (
	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const availabilityRuleCollectionName = "availability_rules"

type mongoAvailabilityRuleRepository struct {
	collection *mongo.Collection
}

// NewMongoAvailabilityRuleRepository creates a new availability rule repository.
func NewMongoAvailabilityRuleRepository(db *mongo.Database) repository.AvailabilityRuleRepository {
	return &mongoAvailabilityRuleRepository{
		collection: db.Collection(availabilityRuleCollectionName),
	}
}

// Create inserts a rule. The unique (calendarId, dayOfWeek) index turns a
// second rule for the same day into ErrDuplicate.
func (r *mongoAvailabilityRuleRepository) Create(ctx context.Context, rule *domain.AvailabilityRule) (primitive.ObjectID, error) {
	if rule.CalendarID.IsZero() {
		return primitive.NilObjectID, errors.New("rule calendar ID is required")
	}
	if rule.ID.IsZero() {
		rule.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, rule); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	return rule.ID, nil
}

// GetByCalendarID returns every rule of a calendar ordered by day of week.
func (r *mongoAvailabilityRuleRepository) GetByCalendarID(ctx context.Context, calendarID primitive.ObjectID) ([]domain.AvailabilityRule, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "dayOfWeek", Value: 1}, {Key: "startTime", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"calendarId": calendarID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rules := []domain.AvailabilityRule{}
	if err = cursor.All(ctx, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Delete removes a rule, scoped to its calendar.
func (r *mongoAvailabilityRuleRepository) Delete(ctx context.Context, ruleID, calendarID primitive.ObjectID) error {
	filter := bson.M{"_id": ruleID, "calendarId": calendarID}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureAvailabilityRuleIndexes creates the one-rule-per-day index.
func EnsureAvailabilityRuleIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "calendarId", Value: 1},
			{Key: "dayOfWeek", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("calendar_day_unique"),
	})
	return err
}
