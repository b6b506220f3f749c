// internal/repository/mongo/training_plan_repo.go
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
)

const planTemplateCollectionName = "plan_templates"

// mongoPlanTemplateRepository implements repository.PlanTemplateRepository
type mongoPlanTemplateRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanTemplateRepository creates a new PlanTemplate repository.
func NewMongoPlanTemplateRepository(db *mongo.Database) repository.PlanTemplateRepository {
	return &mongoPlanTemplateRepository{
		collection: db.Collection(planTemplateCollectionName),
	}
}

// Create inserts a new plan template.
func (r *mongoPlanTemplateRepository) Create(ctx context.Context, plan *domain.PlanTemplate) (primitive.ObjectID, error) {
	if plan.CoachID == primitive.NilObjectID || plan.Name == "" {
		return primitive.NilObjectID, errors.New("plan requires coachId and name")
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted plan ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single plan template by its ID.
func (r *mongoPlanTemplateRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanTemplate, error) {
	var plan domain.PlanTemplate
	filter := bson.M{"_id": id}
	err := r.collection.FindOne(ctx, filter).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// EnsurePlanTemplateIndexes creates necessary indexes for the plan_templates collection.
func EnsurePlanTemplateIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "coachId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}
