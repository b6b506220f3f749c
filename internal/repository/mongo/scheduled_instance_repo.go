// internal/repository/mongo/scheduled_instance_repo.go
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

const scheduledInstanceCollectionName = "scheduled_instances"

// mongoScheduledInstanceRepository implements repository.ScheduledInstanceRepository
type mongoScheduledInstanceRepository struct {
	collection *mongo.Collection
}

// NewMongoScheduledInstanceRepository creates a new ScheduledInstance repository.
func NewMongoScheduledInstanceRepository(db *mongo.Database) repository.ScheduledInstanceRepository {
	return &mongoScheduledInstanceRepository{
		collection: db.Collection(scheduledInstanceCollectionName),
	}
}

// CreateMany inserts a whole materialization in one InsertMany call.
func (r *mongoScheduledInstanceRepository) CreateMany(ctx context.Context, instances []domain.ScheduledInstance) error {
	if len(instances) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(instances))
	for i := range instances {
		if instances[i].AthleteID == primitive.NilObjectID || instances[i].Date == "" {
			return errors.New("scheduled instance requires athleteId and date")
		}
		if instances[i].ID.IsZero() {
			instances[i].ID = primitive.NewObjectID()
		}
		instances[i].CreatedAt = now
		instances[i].UpdatedAt = now
		docs = append(docs, instances[i])
	}

	// Ordered insert so a failure leaves a clear prefix behind
	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return err
}

// ExistingDates returns the subset of dates already holding an instance of the plan.
func (r *mongoScheduledInstanceRepository) ExistingDates(ctx context.Context, athleteID, planID primitive.ObjectID, dates []string) ([]string, error) {
	if len(dates) == 0 {
		return []string{}, nil
	}
	filter := bson.M{
		"athleteId":      athleteID,
		"planTemplateId": planID,
		"date":           bson.M{"$in": dates},
	}
	values, err := r.collection.Distinct(ctx, "date", filter)
	if err != nil {
		return nil, err
	}
	found := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			found = append(found, s)
		}
	}
	return found, nil
}

// GetByAthleteID lists an athlete's schedule between two dates, both inclusive.
// Empty bounds are open.
func (r *mongoScheduledInstanceRepository) GetByAthleteID(ctx context.Context, athleteID primitive.ObjectID, fromDate, toDate string) ([]domain.ScheduledInstance, error) {
	filter := bson.M{"athleteId": athleteID}
	dateRange := bson.M{}
	if fromDate != "" {
		dateRange["$gte"] = fromDate
	}
	if toDate != "" {
		dateRange["$lte"] = toDate
	}
	if len(dateRange) > 0 {
		filter["date"] = dateRange
	}
	// Sort by date, then session title for a stable day view
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "title", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	instances := []domain.ScheduledInstance{}
	if err = cursor.All(ctx, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

// SetCompleted toggles completion on an instance owned by the athlete and
// returns the updated document.
func (r *mongoScheduledInstanceRepository) SetCompleted(ctx context.Context, id, athleteID primitive.ObjectID, completed bool) (*domain.ScheduledInstance, error) {
	filter := bson.M{"_id": id, "athleteId": athleteID}
	update := bson.M{"$set": bson.M{"completed": completed, "updatedAt": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.ScheduledInstance
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

// Delete removes an instance owned by the athlete.
func (r *mongoScheduledInstanceRepository) Delete(ctx context.Context, id, athleteID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "athleteId": athleteID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureScheduledInstanceIndexes creates necessary indexes for the scheduled_instances collection.
func EnsureScheduledInstanceIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "athleteId", Value: 1}, {Key: "date", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "athleteId", Value: 1}, {Key: "planTemplateId", Value: 1}, {Key: "date", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
