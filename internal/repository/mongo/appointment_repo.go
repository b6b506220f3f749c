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

const appointmentCollectionName = "appointments"

// slotIndexName is the partial unique index guarding one active booking per slot.
const slotIndexName = "calendar_slot_active_unique"

// mongoAppointmentRepository implements repository.AppointmentRepository
type mongoAppointmentRepository struct {
	collection *mongo.Collection
}

// NewMongoAppointmentRepository creates a new Appointment repository backed by MongoDB.
func NewMongoAppointmentRepository(db *mongo.Database) repository.AppointmentRepository {
	return &mongoAppointmentRepository{
		collection: db.Collection(appointmentCollectionName),
	}
}

// Create inserts a new appointment. A concurrent booking of the same slot
// trips the partial unique index and comes back as ErrDuplicate.
func (r *mongoAppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) (primitive.ObjectID, error) {
	if appt.CalendarID == primitive.NilObjectID || appt.Date == "" || appt.Time == "" {
		return primitive.NilObjectID, errors.New("appointment requires calendarId, date, and time")
	}

	appt.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	if appt.Status == "" { // Default status if not provided
		appt.Status = domain.StatusConfirmed
	}
	appt.Active = appt.Holds()

	result, err := r.collection.InsertOne(ctx, appt)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted appointment ID")
	}
	return insertedID, nil
}

// GetByID retrieves an appointment by its ID.
func (r *mongoAppointmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Appointment, error) {
	var appt domain.Appointment
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&appt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &appt, nil
}

// GetActiveByCalendar lists the appointments still holding a slot in the date range.
func (r *mongoAppointmentRepository) GetActiveByCalendar(ctx context.Context, calendarID primitive.ObjectID, fromDate, toDate string) ([]domain.Appointment, error) {
	filter := bson.M{
		"calendarId": calendarID,
		"status":     bson.M{"$ne": domain.StatusCanceled},
		"date":       bson.M{"$gte": fromDate, "$lte": toDate},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	appts := []domain.Appointment{}
	if err = cursor.All(ctx, &appts); err != nil {
		return nil, err
	}
	return appts, nil
}

// GetReminderCandidates is the coarse pre-filter for the reminder sweep. The
// exact start-time window is applied by the caller.
func (r *mongoAppointmentRepository) GetReminderCandidates(ctx context.Context, dates []string) ([]domain.Appointment, error) {
	if len(dates) == 0 {
		return []domain.Appointment{}, nil
	}
	filter := bson.M{
		"status":         bson.M{"$in": []domain.AppointmentStatus{domain.StatusPending, domain.StatusConfirmed}},
		"reminderSentAt": nil, // matches both null and missing
		"date":           bson.M{"$in": dates},
		"bookerEmail":    bson.M{"$nin": []interface{}{"", nil}},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	appts := []domain.Appointment{}
	if err = cursor.All(ctx, &appts); err != nil {
		return nil, err
	}
	return appts, nil
}

// MarkReminderSent stamps reminderSentAt if no other sweep has done so yet.
func (r *mongoAppointmentRepository) MarkReminderSent(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	filter := bson.M{"_id": id, "reminderSentAt": nil}
	update := bson.M{"$set": bson.M{"reminderSentAt": at.UTC(), "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// Cancel marks an appointment CANCELED and releases its slot. Only the owning
// coach may cancel.
func (r *mongoAppointmentRepository) Cancel(ctx context.Context, id, coachID primitive.ObjectID) (*domain.Appointment, error) {
	filter := bson.M{"_id": id, "coachId": coachID}
	update := bson.M{"$set": bson.M{
		"status":    domain.StatusCanceled,
		"active":    false,
		"updatedAt": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Appointment
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

// EnsureAppointmentIndexes creates necessary indexes for the appointments collection.
func EnsureAppointmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "calendarId", Value: 1},
				{Key: "date", Value: 1},
				{Key: "time", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName(slotIndexName).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{
			// Reminder sweep pre-filter
			Keys: bson.D{{Key: "date", Value: 1}, {Key: "status", Value: 1}, {Key: "reminderSentAt", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "coachId", Value: 1}, {Key: "date", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
