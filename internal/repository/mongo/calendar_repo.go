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

const calendarCollectionName = "calendars"

type mongoCalendarRepository struct {
	collection *mongo.Collection
}

// NewMongoCalendarRepository creates a new calendar repository.
func NewMongoCalendarRepository(db *mongo.Database) repository.CalendarRepository {
	return &mongoCalendarRepository{
		collection: db.Collection(calendarCollectionName),
	}
}

// Create inserts a new calendar.
func (r *mongoCalendarRepository) Create(ctx context.Context, cal *domain.Calendar) (primitive.ObjectID, error) {
	if cal.CoachID.IsZero() {
		return primitive.NilObjectID, errors.New("calendar coach ID is required")
	}
	if cal.ID.IsZero() {
		cal.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	cal.CreatedAt = now
	cal.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, cal); err != nil {
		return primitive.NilObjectID, err
	}
	return cal.ID, nil
}

// GetByID finds a calendar by its ID.
func (r *mongoCalendarRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Calendar, error) {
	var cal domain.Calendar
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&cal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &cal, nil
}

// GetByIDs fetches several calendars at once. Used by the reminder sweep.
func (r *mongoCalendarRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Calendar, error) {
	if len(ids) == 0 {
		return []domain.Calendar{}, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var cals []domain.Calendar
	if err = cursor.All(ctx, &cals); err != nil {
		return nil, err
	}
	return cals, nil
}

// GetByCoachID lists a coach's calendars, oldest first.
func (r *mongoCalendarRepository) GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.Calendar, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"coachId": coachID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	cals := []domain.Calendar{}
	if err = cursor.All(ctx, &cals); err != nil {
		return nil, err
	}
	return cals, nil
}

// EnsureCalendarIndexes creates necessary indexes for the calendars collection.
func EnsureCalendarIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "coachId", Value: 1}},
	})
	return err
}
