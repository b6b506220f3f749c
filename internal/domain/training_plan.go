// internal/domain/training_plan.go
package domain

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanTemplate is a coach-authored, multi-week plan. Once an athlete's schedule
// has been materialized from it the template is treated as immutable.
type PlanTemplate struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID     primitive.ObjectID `bson:"coachId" json:"coachId"` // Who authored the plan
	Name        string             `bson:"name" json:"name"`       // e.g., "Phase 1: Hypertrophy"
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Weeks       []PlanWeek         `bson:"weeks" json:"weeks"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PlanWeek groups the sessions of one week. Weeks are applied in ascending Order.
type PlanWeek struct {
	Order    int           `bson:"order" json:"order"`
	Sessions []PlanSession `bson:"sessions" json:"sessions"`
}

// PlanSession is one workout inside a week.
type PlanSession struct {
	DayOfWeek      int             `bson:"dayOfWeek" json:"dayOfWeek"` // 1 (Mon) - 7 (Sun)
	Title          string          `bson:"title" json:"title"`
	WorkoutPayload json.RawMessage `bson:"workoutPayload,omitempty" json:"workoutPayload,omitempty"` // Opaque to scheduling
}
