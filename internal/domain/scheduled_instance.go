package domain

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScheduledInstance is a dated workout produced by materializing a PlanTemplate
// for one athlete. Only the athlete may toggle Completed or delete it.
type ScheduledInstance struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AthleteID      primitive.ObjectID `bson:"athleteId" json:"athleteId"`
	PlanTemplateID primitive.ObjectID `bson:"planTemplateId" json:"planTemplateId"`
	WeekNumber     int                `bson:"weekNumber" json:"weekNumber"` // 1-based position in the materialization
	DayOfWeek      int                `bson:"dayOfWeek" json:"dayOfWeek"`   // 1 (Mon) - 7 (Sun), copied from the session
	Date           string             `bson:"date" json:"date"`             // YYYY-MM-DD
	Title          string             `bson:"title" json:"title"`
	WorkoutPayload json.RawMessage    `bson:"workoutPayload,omitempty" json:"workoutPayload,omitempty"`
	Completed      bool               `bson:"completed" json:"completed"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}
