package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AppointmentStatus type for appointment lifecycle
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED" // Bookings are confirmed on creation
	StatusCanceled  AppointmentStatus = "CANCELED"
)

// Appointment is a booked slot on a coach's calendar.
type Appointment struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID         primitive.ObjectID `bson:"coachId" json:"coachId"`
	CalendarID      primitive.ObjectID `bson:"calendarId" json:"calendarId"`
	Date            string             `bson:"date" json:"date"` // YYYY-MM-DD
	Time            string             `bson:"time" json:"time"` // HH:MM
	DurationMinutes int                `bson:"durationMinutes" json:"durationMinutes"`
	BookerName      string             `bson:"bookerName" json:"bookerName"`
	BookerEmail     string             `bson:"bookerEmail" json:"bookerEmail"`
	Notes           string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Status          AppointmentStatus  `bson:"status" json:"status"`
	ReminderSentAt  *time.Time         `bson:"reminderSentAt" json:"reminderSentAt"` // Written once by the reminder sweep

	// Active is true for every non-canceled appointment. The unique index on
	// (calendarId, date, time) is partial on active: true.
	Active bool `bson:"active" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Holds reports whether the appointment still occupies its slot.
func (a *Appointment) Holds() bool {
	return a.Status != StatusCanceled
}
