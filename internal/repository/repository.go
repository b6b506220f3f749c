package repository

import (
	"alcyxob/coach-scheduling/internal/domain" // Import our defined domain models
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository is the read side of identity records.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) // Seeding and tests only
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error)
}

// CalendarRepository stores coach calendars.
type CalendarRepository interface {
	Create(ctx context.Context, cal *domain.Calendar) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Calendar, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Calendar, error)
	GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.Calendar, error)
}

// AvailabilityRuleRepository stores recurring weekly availability.
// Create returns ErrDuplicate when the calendar already has a rule for that day.
type AvailabilityRuleRepository interface {
	Create(ctx context.Context, rule *domain.AvailabilityRule) (primitive.ObjectID, error)
	GetByCalendarID(ctx context.Context, calendarID primitive.ObjectID) ([]domain.AvailabilityRule, error)
	Delete(ctx context.Context, ruleID, calendarID primitive.ObjectID) error
}

// PlanTemplateRepository stores coach-authored plan templates.
type PlanTemplateRepository interface {
	Create(ctx context.Context, plan *domain.PlanTemplate) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanTemplate, error)
}

// ScheduledInstanceRepository stores materialized workouts.
type ScheduledInstanceRepository interface {
	CreateMany(ctx context.Context, instances []domain.ScheduledInstance) error
	// ExistingDates returns which of dates already carry an instance of planID for the athlete.
	ExistingDates(ctx context.Context, athleteID, planID primitive.ObjectID, dates []string) ([]string, error)
	GetByAthleteID(ctx context.Context, athleteID primitive.ObjectID, fromDate, toDate string) ([]domain.ScheduledInstance, error)
	SetCompleted(ctx context.Context, id, athleteID primitive.ObjectID, completed bool) (*domain.ScheduledInstance, error)
	Delete(ctx context.Context, id, athleteID primitive.ObjectID) error
}

// AppointmentRepository stores bookings. Implementations must reject a second
// active appointment for the same (calendarId, date, time) with ErrDuplicate.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Appointment, error)
	// GetActiveByCalendar lists non-canceled appointments with fromDate <= date <= toDate.
	GetActiveByCalendar(ctx context.Context, calendarID primitive.ObjectID, fromDate, toDate string) ([]domain.Appointment, error)
	// GetReminderCandidates lists PENDING/CONFIRMED appointments on the given dates
	// that have an email and no reminderSentAt.
	GetReminderCandidates(ctx context.Context, dates []string) ([]domain.Appointment, error)
	// MarkReminderSent sets reminderSentAt only if it is still unset. It reports
	// false when another writer got there first.
	MarkReminderSent(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	Cancel(ctx context.Context, id, coachID primitive.ObjectID) (*domain.Appointment, error)
}

// SendCounter is a shared fixed-window counter used for notification rate limiting.
type SendCounter interface {
	// Increment bumps the counter for key in the window containing now and
	// returns the new count.
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error)
}
