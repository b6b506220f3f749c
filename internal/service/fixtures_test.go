package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/notify"
	"alcyxob/coach-scheduling/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

// monday is 2024-01-01, a Monday.
var monday = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	coach domain.User
	cal   domain.Calendar

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.NewStore(), now: monday}

	f.coach = domain.User{Name: "Coach Carla", Email: "carla@example.com", Role: domain.RoleCoach}
	_, err := f.store.Users().Create(ctx, &f.coach)
	require.NoError(t, err)

	f.cal = domain.Calendar{CoachID: f.coach.ID, Name: "1:1 sessions"}
	_, err = f.store.Calendars().Create(ctx, &f.cal)
	require.NoError(t, err)
	return f
}

func (f *fixture) clock() func() time.Time {
	return func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	}
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *fixture) addRule(t *testing.T, day int, start, end string, minutes int) domain.AvailabilityRule {
	t.Helper()
	rule := domain.AvailabilityRule{
		CoachID:             f.coach.ID,
		CalendarID:          f.cal.ID,
		DayOfWeek:           day,
		StartTime:           start,
		EndTime:             end,
		SlotDurationMinutes: minutes,
	}
	_, err := f.store.Rules().Create(context.Background(), &rule)
	require.NoError(t, err)
	return rule
}

func (f *fixture) addAppointment(t *testing.T, date, clock string, status domain.AppointmentStatus) domain.Appointment {
	t.Helper()
	appt := domain.Appointment{
		CoachID:         f.coach.ID,
		CalendarID:      f.cal.ID,
		Date:            date,
		Time:            clock,
		DurationMinutes: 30,
		BookerName:      "Ana",
		BookerEmail:     "ana@example.com",
		Status:          status,
	}
	_, err := f.store.Appointments().Create(context.Background(), &appt)
	require.NoError(t, err)
	return appt
}

func (f *fixture) availability() AvailabilityService {
	return NewAvailabilityService(f.store.Calendars(), f.store.Rules(), f.store.Appointments(), WithClock(f.clock()))
}

type sentMessage struct {
	Recipient string
	Kind      notify.Kind
	Data      notify.Data
}

// stubNotifier records sends and optionally fails them.
type stubNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *stubNotifier) Send(_ context.Context, recipient string, kind notify.Kind, data notify.Data) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return "", n.err
	}
	n.sent = append(n.sent, sentMessage{Recipient: recipient, Kind: kind, Data: data})
	return "msg-" + recipient, nil
}

func (n *stubNotifier) setErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *stubNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentMessage, len(n.sent))
	copy(out, n.sent)
	return out
}

var errBrokerDown = errors.New("broker down")
