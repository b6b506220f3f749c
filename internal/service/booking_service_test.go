package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"alcyxob/coach-scheduling/internal/calendar"
	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/metrics"
	"alcyxob/coach-scheduling/internal/notify"
	"alcyxob/coach-scheduling/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (f *fixture) booking(n notify.Notifier, appts repository.AppointmentRepository, opts ...Option) BookingService {
	if appts == nil {
		appts = f.store.Appointments()
	}
	opts = append([]Option{WithClock(f.clock())}, opts...)
	return NewBookingService(f.store.Calendars(), f.store.Rules(), appts, f.store.Users(), n,
		BookingConfig{RebookHorizonDays: 7, NotifyTimeout: time.Second}, opts...)
}

func (f *fixture) request(date, clock string) BookingRequest {
	return BookingRequest{
		CoachID:     f.coach.ID,
		CalendarID:  f.cal.ID,
		Date:        date,
		Time:        clock,
		BookerName:  "Ana Athlete",
		BookerEmail: "ana@example.com",
	}
}

func waitNotifications(t *testing.T, svc BookingService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Wait(ctx))
}

func TestBookConfirmsAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, int(calendar.Monday), "09:00", "11:00", 30)
	n := &stubNotifier{}
	svc := f.booking(n, nil)

	req := f.request("2024-01-01", "09:30")
	req.Notes = "  first session  "
	appt, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, appt.Status)
	assert.Equal(t, 30, appt.DurationMinutes)
	assert.Equal(t, "first session", appt.Notes)
	assert.Nil(t, appt.ReminderSentAt)

	waitNotifications(t, svc)
	msgs := n.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.KindBookingConfirmation, msgs[0].Kind)
	assert.Equal(t, "ana@example.com", msgs[0].Recipient)
	assert.Equal(t, "Coach Carla", msgs[0].Data["coachName"])
	assert.Equal(t, "1:1 sessions", msgs[0].Data["calendarName"])

	slots, err := f.availability().ResolveSlots(context.Background(), f.coach.ID, f.cal.ID, "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	assert.NotContains(t, slotKeys(slots), "2024-01-01 09:30")
}

func TestBookRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, int(calendar.Monday), "09:00", "11:00", 30)
	f.setNow(monday.Add(90 * time.Minute)) // 09:30
	svc := f.booking(&stubNotifier{}, nil)

	tests := []struct {
		name   string
		mutate func(*BookingRequest)
	}{
		{"missing name", func(r *BookingRequest) { r.BookerName = "   " }},
		{"missing email", func(r *BookingRequest) { r.BookerEmail = "" }},
		{"bad email", func(r *BookingRequest) { r.BookerEmail = "ana-at-example" }},
		{"bad date", func(r *BookingRequest) { r.Date = "2024-13-01" }},
		{"bad time", func(r *BookingRequest) { r.Time = "9h30" }},
		{"off grid", func(r *BookingRequest) { r.Time = "09:45" }},
		{"day without rule", func(r *BookingRequest) { r.Date = "2024-01-02" }},
		{"past slot", func(r *BookingRequest) { r.Time = "09:00" }},
		{"trailing window", func(r *BookingRequest) { r.Time = "11:00" }},
		{"missing calendar id", func(r *BookingRequest) { r.CalendarID = primitive.NilObjectID }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request("2024-01-01", "10:00")
			tt.mutate(&req)
			_, err := svc.Book(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	appts, err := f.store.Appointments().GetActiveByCalendar(context.Background(), f.cal.ID, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Empty(t, appts, "validation failures must not write")
}

func TestBookUnknownCalendar(t *testing.T) {
	f := newFixture(t)
	svc := f.booking(&stubNotifier{}, nil)

	req := f.request("2024-01-01", "09:00")
	req.CalendarID = primitive.NewObjectID()
	_, err := svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotFound)

	req = f.request("2024-01-01", "09:00")
	req.CoachID = primitive.NewObjectID()
	_, err = svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookTakenSlotReoffersAvailability(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, int(calendar.Monday), "09:00", "10:30", 30)
	f.addAppointment(t, "2024-01-01", "09:30", domain.StatusConfirmed)
	svc := f.booking(&stubNotifier{}, nil)

	_, err := svc.Book(context.Background(), f.request("2024-01-01", "09:30"))
	require.ErrorIs(t, err, ErrSlotTaken)

	var taken *SlotTakenError
	require.True(t, errors.As(err, &taken))
	assert.Equal(t, "2024-01-01", taken.Date)
	assert.Equal(t, "09:30", taken.Time)
	// Rebook horizon is seven days, so next Monday is not included
	assert.Equal(t, []string{"2024-01-01 09:00", "2024-01-01 10:00"}, slotKeys(taken.Available))
}

// raceAppointments holds the first two availability reads until both have
// arrived, so both bookings pass the pre-check before either inserts.
type raceAppointments struct {
	repository.AppointmentRepository
	mu       sync.Mutex
	arrivals int
	release  chan struct{}
}

func (r *raceAppointments) GetActiveByCalendar(ctx context.Context, calendarID primitive.ObjectID, fromDate, toDate string) ([]domain.Appointment, error) {
	r.mu.Lock()
	r.arrivals++
	n := r.arrivals
	if n == 2 {
		close(r.release)
	}
	r.mu.Unlock()
	if n <= 2 {
		<-r.release
	}
	return r.AppointmentRepository.GetActiveByCalendar(ctx, calendarID, fromDate, toDate)
}

func TestConcurrentBookingOneWinner(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, int(calendar.Monday), "09:00", "11:00", 30)
	repo := &raceAppointments{AppointmentRepository: f.store.Appointments(), release: make(chan struct{})}
	svc := f.booking(&stubNotifier{}, repo)

	var wg sync.WaitGroup
	results := make([]error, 2)
	appts := make([]*domain.Appointment, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := f.request("2024-01-01", "10:00")
			req.BookerEmail = []string{"ana@example.com", "ben@example.com"}[i]
			appts[i], results[i] = svc.Book(context.Background(), req)
		}(i)
	}
	wg.Wait()

	var ok, taken int
	for i, err := range results {
		switch {
		case err == nil:
			ok++
			assert.Equal(t, domain.StatusConfirmed, appts[i].Status)
		case errors.Is(err, ErrSlotTaken):
			taken++
			var ste *SlotTakenError
			require.True(t, errors.As(err, &ste))
			assert.NotContains(t, slotKeys(ste.Available), "2024-01-01 10:00")
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, taken)

	stored, err := f.store.Appointments().GetActiveByCalendar(context.Background(), f.cal.ID, "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	waitNotifications(t, svc)
}

func TestManyConcurrentBookersOneWinner(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, int(calendar.Monday), "09:00", "11:00", 30)
	svc := f.booking(&stubNotifier{}, nil)

	const bookers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, taken int
	for i := 0; i < bookers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(context.Background(), f.request("2024-01-01", "10:30"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, ErrSlotTaken) {
				taken++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, bookers-1, taken)
	waitNotifications(t, svc)
}

func TestBookSurvivesNotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, int(calendar.Monday), "09:00", "11:00", 30)
	n := &stubNotifier{err: errBrokerDown}
	svc := f.booking(n, nil)

	appt, err := svc.Book(context.Background(), f.request("2024-01-01", "09:00"))
	require.NoError(t, err)
	waitNotifications(t, svc)

	stored, err := f.store.Appointments().GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Empty(t, n.messages())
}

func TestCancelFreesSlot(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, int(calendar.Monday), "09:00", "10:00", 30)
	svc := f.booking(&stubNotifier{}, nil)
	ctx := context.Background()

	appt, err := svc.Book(ctx, f.request("2024-01-01", "09:00"))
	require.NoError(t, err)

	_, err = svc.CancelAppointment(ctx, primitive.NewObjectID(), appt.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	canceled, err := svc.CancelAppointment(ctx, f.coach.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, canceled.Status)

	again, err := svc.Book(ctx, f.request("2024-01-01", "09:00"))
	require.NoError(t, err)
	assert.NotEqual(t, appt.ID, again.ID)
	waitNotifications(t, svc)
}

func TestGetAndListAppointments(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, int(calendar.Monday), "09:00", "10:00", 30)
	svc := f.booking(&stubNotifier{}, nil)
	ctx := context.Background()

	appt, err := svc.Book(ctx, f.request("2024-01-08", "09:30"))
	require.NoError(t, err)

	got, err := svc.GetAppointment(ctx, f.coach.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)
	_, err = svc.GetAppointment(ctx, primitive.NewObjectID(), appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.GetAppointment(ctx, f.coach.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := svc.ListAppointments(ctx, f.coach.ID, f.cal.ID, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = svc.ListAppointments(ctx, primitive.NewObjectID(), f.cal.ID, "2024-01-01", "2024-01-31")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.ListAppointments(ctx, f.coach.ID, f.cal.ID, "2024-01-31", "2024-01-01")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	waitNotifications(t, svc)
}

func TestBookingMetrics(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, int(calendar.Monday), "09:00", "10:00", 30)
	reg := prometheus.NewRegistry()
	svc := f.booking(&stubNotifier{}, nil, WithMetrics(metrics.New(reg)))
	ctx := context.Background()

	_, err := svc.Book(ctx, f.request("2024-01-01", "09:00"))
	require.NoError(t, err)
	_, err = svc.Book(ctx, f.request("2024-01-01", "09:00"))
	require.ErrorIs(t, err, ErrSlotTaken)
	_, err = svc.Book(ctx, f.request("2024-01-01", "09:10"))
	require.ErrorIs(t, err, ErrInvalidArgument)
	waitNotifications(t, svc)

	expected := `
# HELP coach_scheduling_booking_attempts_total Booking attempts by outcome.
# TYPE coach_scheduling_booking_attempts_total counter
coach_scheduling_booking_attempts_total{outcome="confirmed"} 1
coach_scheduling_booking_attempts_total{outcome="rejected"} 1
coach_scheduling_booking_attempts_total{outcome="slot_taken"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "coach_scheduling_booking_attempts_total"))
}
