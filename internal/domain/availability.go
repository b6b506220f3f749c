package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Calendar is one bookable schedule owned by a coach (e.g. "1:1 sessions").
type Calendar struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID   primitive.ObjectID `bson:"coachId" json:"coachId"`
	Name      string             `bson:"name" json:"name"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// AvailabilityRule is a recurring weekly capacity window. A calendar holds at
// most one rule per day of week.
type AvailabilityRule struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID             primitive.ObjectID `bson:"coachId" json:"coachId"`
	CalendarID          primitive.ObjectID `bson:"calendarId" json:"calendarId"`
	DayOfWeek           int                `bson:"dayOfWeek" json:"dayOfWeek"` // 1 (Mon) - 7 (Sun)
	StartTime           string             `bson:"startTime" json:"startTime"` // HH:MM
	EndTime             string             `bson:"endTime" json:"endTime"`     // HH:MM, exclusive
	SlotDurationMinutes int                `bson:"slotDurationMinutes" json:"slotDurationMinutes"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}
