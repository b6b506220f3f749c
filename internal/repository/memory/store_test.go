package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newAppointment(calendarID primitive.ObjectID, date, clock string) *domain.Appointment {
	return &domain.Appointment{
		CalendarID:  calendarID,
		CoachID:     primitive.NewObjectID(),
		Date:        date,
		Time:        clock,
		BookerEmail: "ana@example.com",
		Status:      domain.StatusConfirmed,
	}
}

func TestAppointmentSlotUniqueness(t *testing.T) {
	store := NewStore()
	repo := store.Appointments()
	ctx := context.Background()
	calID := primitive.NewObjectID()

	first := newAppointment(calID, "2024-01-01", "09:00")
	_, err := repo.Create(ctx, first)
	require.NoError(t, err)
	assert.True(t, first.Active)

	_, err = repo.Create(ctx, newAppointment(calID, "2024-01-01", "09:00"))
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	// Same slot on another calendar is independent
	_, err = repo.Create(ctx, newAppointment(primitive.NewObjectID(), "2024-01-01", "09:00"))
	require.NoError(t, err)

	// Canceling frees the slot
	_, err = repo.Cancel(ctx, first.ID, first.CoachID)
	require.NoError(t, err)
	_, err = repo.Create(ctx, newAppointment(calID, "2024-01-01", "09:00"))
	assert.NoError(t, err)

	active, err := repo.GetActiveByCalendar(ctx, calID, "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestConcurrentCreatesKeepOneWinner(t *testing.T) {
	repo := NewStore().Appointments()
	calID := primitive.NewObjectID()

	var wins, dups atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(context.Background(), newAppointment(calID, "2024-01-01", "09:00"))
			if err == nil {
				wins.Add(1)
			} else if assert.ErrorIs(t, err, repository.ErrDuplicate) {
				dups.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, 31, dups.Load())
}

func TestCancelIsScopedToCoach(t *testing.T) {
	repo := NewStore().Appointments()
	ctx := context.Background()
	appt := newAppointment(primitive.NewObjectID(), "2024-01-01", "09:00")
	_, err := repo.Create(ctx, appt)
	require.NoError(t, err)

	_, err = repo.Cancel(ctx, appt.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	canceled, err := repo.Cancel(ctx, appt.ID, appt.CoachID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, canceled.Status)
}

func TestMarkReminderSentOnce(t *testing.T) {
	repo := NewStore().Appointments()
	ctx := context.Background()
	appt := newAppointment(primitive.NewObjectID(), "2024-03-05", "14:00")
	_, err := repo.Create(ctx, appt)
	require.NoError(t, err)

	at := time.Date(2024, 3, 5, 13, 45, 0, 0, time.UTC)
	ok, err := repo.MarkReminderSent(ctx, appt.ID, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkReminderSent(ctx, appt.ID, at.Add(5*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.GetByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.True(t, stored.ReminderSentAt.Equal(at), "first mark wins")

	candidates, err := repo.GetReminderCandidates(ctx, []string{"2024-03-05"})
	require.NoError(t, err)
	assert.Empty(t, candidates)

	_, err = repo.MarkReminderSent(ctx, primitive.NewObjectID(), at)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReturnedAppointmentsAreCopies(t *testing.T) {
	repo := NewStore().Appointments()
	ctx := context.Background()
	appt := newAppointment(primitive.NewObjectID(), "2024-03-05", "14:00")
	_, err := repo.Create(ctx, appt)
	require.NoError(t, err)
	_, err = repo.MarkReminderSent(ctx, appt.ID, time.Date(2024, 3, 5, 13, 45, 0, 0, time.UTC))
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, appt.ID)
	require.NoError(t, err)
	*got.ReminderSentAt = time.Time{}

	again, err := repo.GetByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.False(t, again.ReminderSentAt.IsZero())
}

func TestRulePerWeekday(t *testing.T) {
	repo := NewStore().Rules()
	ctx := context.Background()
	calID := primitive.NewObjectID()

	rule := &domain.AvailabilityRule{CalendarID: calID, DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", SlotDurationMinutes: 30}
	_, err := repo.Create(ctx, rule)
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.AvailabilityRule{CalendarID: calID, DayOfWeek: 1, StartTime: "13:00", EndTime: "14:00", SlotDurationMinutes: 30})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	assert.ErrorIs(t, repo.Delete(ctx, rule.ID, primitive.NewObjectID()), repository.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, rule.ID, calID))
	_, err = repo.Create(ctx, &domain.AvailabilityRule{CalendarID: calID, DayOfWeek: 1, StartTime: "13:00", EndTime: "14:00", SlotDurationMinutes: 30})
	assert.NoError(t, err)
}

func TestInstancesFilterAndOwnership(t *testing.T) {
	repo := NewStore().Instances()
	ctx := context.Background()
	athlete, plan := primitive.NewObjectID(), primitive.NewObjectID()

	require.NoError(t, repo.CreateMany(ctx, []domain.ScheduledInstance{
		{AthleteID: athlete, PlanTemplateID: plan, Date: "2024-01-08", Title: "Legs"},
		{AthleteID: athlete, PlanTemplateID: plan, Date: "2024-01-01", Title: "Push"},
		{AthleteID: primitive.NewObjectID(), PlanTemplateID: plan, Date: "2024-01-01", Title: "Other"},
	}))

	all, err := repo.GetByAthleteID(ctx, athlete, "", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2024-01-01", all[0].Date)

	week1, err := repo.GetByAthleteID(ctx, athlete, "2024-01-01", "2024-01-07")
	require.NoError(t, err)
	assert.Len(t, week1, 1)

	dates, err := repo.ExistingDates(ctx, athlete, plan, []string{"2024-01-08", "2024-01-01", "2024-01-15"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01", "2024-01-08"}, dates)

	_, err = repo.SetCompleted(ctx, all[0].ID, primitive.NewObjectID(), true)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSendCounterWindows(t *testing.T) {
	c := NewStore().SendCounter()
	ctx := context.Background()
	window := time.Hour
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	for want := int64(1); want <= 3; want++ {
		n, err := c.Increment(ctx, "recipient:ana@example.com", window, start.Add(time.Duration(want)*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	n, err := c.Increment(ctx, "recipient:bob@example.com", window, start)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Increment(ctx, "recipient:ana@example.com", window, start.Add(window))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "next window starts fresh")

	_, err = c.Increment(ctx, "k", 0, start)
	assert.Error(t, err)
}
