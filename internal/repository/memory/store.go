// Package memory is an in-process record store implementing the repository
// interfaces. It enforces the same uniqueness and conditional-update rules as
// the MongoDB store and backs tests and single-node development runs.
package memory

import (
	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/repository"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds every collection behind one lock.
type Store struct {
	mu           sync.Mutex
	users        map[primitive.ObjectID]domain.User
	calendars    map[primitive.ObjectID]domain.Calendar
	rules        map[primitive.ObjectID]domain.AvailabilityRule
	plans        map[primitive.ObjectID]domain.PlanTemplate
	instances    map[primitive.ObjectID]domain.ScheduledInstance
	appointments map[primitive.ObjectID]domain.Appointment
	counters     map[string]int64
	now          func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:        make(map[primitive.ObjectID]domain.User),
		calendars:    make(map[primitive.ObjectID]domain.Calendar),
		rules:        make(map[primitive.ObjectID]domain.AvailabilityRule),
		plans:        make(map[primitive.ObjectID]domain.PlanTemplate),
		instances:    make(map[primitive.ObjectID]domain.ScheduledInstance),
		appointments: make(map[primitive.ObjectID]domain.Appointment),
		counters:     make(map[string]int64),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Users() repository.UserRepository { return userRepo{s} }
func (s *Store) Calendars() repository.CalendarRepository { return calendarRepo{s} }
func (s *Store) Rules() repository.AvailabilityRuleRepository { return ruleRepo{s} }
func (s *Store) Plans() repository.PlanTemplateRepository { return planRepo{s} }
func (s *Store) Instances() repository.ScheduledInstanceRepository { return instanceRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository { return appointmentRepo{s} }
func (s *Store) SendCounter() repository.SendCounter { return counter{s} }

// --- users ---

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return user.ID, nil
}

func (r userRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := make([]domain.User, 0, len(ids))
	for _, id := range dedupe(ids) {
		if u, ok := r.s.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// --- calendars ---

type calendarRepo struct{ s *Store }

func (r calendarRepo) Create(_ context.Context, cal *domain.Calendar) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cal.ID.IsZero() {
		cal.ID = primitive.NewObjectID()
	}
	now := r.s.now()
	cal.CreatedAt, cal.UpdatedAt = now, now
	r.s.calendars[cal.ID] = *cal
	return cal.ID, nil
}

func (r calendarRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Calendar, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.calendars[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r calendarRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.Calendar, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cals := make([]domain.Calendar, 0, len(ids))
	for _, id := range dedupe(ids) {
		if c, ok := r.s.calendars[id]; ok {
			cals = append(cals, c)
		}
	}
	return cals, nil
}

func (r calendarRepo) GetByCoachID(_ context.Context, coachID primitive.ObjectID) ([]domain.Calendar, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var cals []domain.Calendar
	for _, c := range r.s.calendars {
		if c.CoachID == coachID {
			cals = append(cals, c)
		}
	}
	sort.Slice(cals, func(i, j int) bool { return cals[i].CreatedAt.Before(cals[j].CreatedAt) })
	return cals, nil
}

// --- availability rules ---

type ruleRepo struct{ s *Store }

func (r ruleRepo) Create(_ context.Context, rule *domain.AvailabilityRule) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.rules {
		if existing.CalendarID == rule.CalendarID && existing.DayOfWeek == rule.DayOfWeek {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	if rule.ID.IsZero() {
		rule.ID = primitive.NewObjectID()
	}
	now := r.s.now()
	rule.CreatedAt, rule.UpdatedAt = now, now
	r.s.rules[rule.ID] = *rule
	return rule.ID, nil
}

// InsertRuleUnchecked stores a rule without the one-rule-per-day check. It exists to
// reproduce legacy data that predates the unique index.
func (s *Store) InsertRuleUnchecked(rule domain.AvailabilityRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID.IsZero() {
		rule.ID = primitive.NewObjectID()
	}
	s.rules[rule.ID] = rule
}

func (r ruleRepo) GetByCalendarID(_ context.Context, calendarID primitive.ObjectID) ([]domain.AvailabilityRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rules []domain.AvailabilityRule
	for _, rule := range r.s.rules {
		if rule.CalendarID == calendarID {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].DayOfWeek != rules[j].DayOfWeek {
			return rules[i].DayOfWeek < rules[j].DayOfWeek
		}
		return rules[i].ID.Hex() < rules[j].ID.Hex()
	})
	return rules, nil
}

func (r ruleRepo) Delete(_ context.Context, ruleID, calendarID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule, ok := r.s.rules[ruleID]
	if !ok || rule.CalendarID != calendarID {
		return repository.ErrNotFound
	}
	delete(r.s.rules, ruleID)
	return nil
}

// --- plan templates ---

type planRepo struct{ s *Store }

func (r planRepo) Create(_ context.Context, plan *domain.PlanTemplate) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if plan.ID.IsZero() {
		plan.ID = primitive.NewObjectID()
	}
	now := r.s.now()
	plan.CreatedAt, plan.UpdatedAt = now, now
	r.s.plans[plan.ID] = *plan
	return plan.ID, nil
}

func (r planRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.PlanTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

// --- scheduled instances ---

type instanceRepo struct{ s *Store }

func (r instanceRepo) CreateMany(_ context.Context, instances []domain.ScheduledInstance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	for i := range instances {
		if instances[i].ID.IsZero() {
			instances[i].ID = primitive.NewObjectID()
		}
		instances[i].CreatedAt, instances[i].UpdatedAt = now, now
		r.s.instances[instances[i].ID] = instances[i]
	}
	return nil
}

func (r instanceRepo) ExistingDates(_ context.Context, athleteID, planID primitive.ObjectID, dates []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[string]bool, len(dates))
	for _, d := range dates {
		wanted[d] = true
	}
	found := make(map[string]bool)
	for _, inst := range r.s.instances {
		if inst.AthleteID == athleteID && inst.PlanTemplateID == planID && wanted[inst.Date] {
			found[inst.Date] = true
		}
	}
	existing := make([]string, 0, len(found))
	for d := range found {
		existing = append(existing, d)
	}
	sort.Strings(existing)
	return existing, nil
}

func (r instanceRepo) GetByAthleteID(_ context.Context, athleteID primitive.ObjectID, fromDate, toDate string) ([]domain.ScheduledInstance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ScheduledInstance
	for _, inst := range r.s.instances {
		if inst.AthleteID != athleteID {
			continue
		}
		if (fromDate != "" && inst.Date < fromDate) || (toDate != "" && inst.Date > toDate) {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, nil
}

func (r instanceRepo) SetCompleted(_ context.Context, id, athleteID primitive.ObjectID, completed bool) (*domain.ScheduledInstance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inst, ok := r.s.instances[id]
	if !ok || inst.AthleteID != athleteID {
		return nil, repository.ErrNotFound
	}
	inst.Completed = completed
	inst.UpdatedAt = r.s.now()
	r.s.instances[id] = inst
	return &inst, nil
}

func (r instanceRepo) Delete(_ context.Context, id, athleteID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inst, ok := r.s.instances[id]
	if !ok || inst.AthleteID != athleteID {
		return repository.ErrNotFound
	}
	delete(r.s.instances, id)
	return nil
}

// --- appointments ---

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Create(_ context.Context, appt *domain.Appointment) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	appt.Active = appt.Holds()
	if appt.Active {
		for _, existing := range r.s.appointments {
			if existing.Active && existing.CalendarID == appt.CalendarID &&
				existing.Date == appt.Date && existing.Time == appt.Time {
				return primitive.NilObjectID, repository.ErrDuplicate
			}
		}
	}
	appt.ID = primitive.NewObjectID()
	now := r.s.now()
	appt.CreatedAt, appt.UpdatedAt = now, now
	r.s.appointments[appt.ID] = copyAppointment(*appt)
	return appt.ID, nil
}

func (r appointmentRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a = copyAppointment(a)
	return &a, nil
}

func (r appointmentRepo) GetActiveByCalendar(_ context.Context, calendarID primitive.ObjectID, fromDate, toDate string) ([]domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Appointment
	for _, a := range r.s.appointments {
		if a.CalendarID == calendarID && a.Active && a.Date >= fromDate && a.Date <= toDate {
			out = append(out, copyAppointment(a))
		}
	}
	sortAppointments(out)
	return out, nil
}

func (r appointmentRepo) GetReminderCandidates(_ context.Context, dates []string) ([]domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[string]bool, len(dates))
	for _, d := range dates {
		wanted[d] = true
	}
	var out []domain.Appointment
	for _, a := range r.s.appointments {
		if !wanted[a.Date] || a.ReminderSentAt != nil || a.BookerEmail == "" {
			continue
		}
		if a.Status != domain.StatusPending && a.Status != domain.StatusConfirmed {
			continue
		}
		out = append(out, copyAppointment(a))
	}
	sortAppointments(out)
	return out, nil
}

func (r appointmentRepo) MarkReminderSent(_ context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if a.ReminderSentAt != nil {
		return false, nil
	}
	sentAt := at
	a.ReminderSentAt = &sentAt
	a.UpdatedAt = r.s.now()
	r.s.appointments[id] = a
	return true, nil
}

func (r appointmentRepo) Cancel(_ context.Context, id, coachID primitive.ObjectID) (*domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok || a.CoachID != coachID {
		return nil, repository.ErrNotFound
	}
	a.Status = domain.StatusCanceled
	a.Active = false
	a.UpdatedAt = r.s.now()
	r.s.appointments[id] = a
	a = copyAppointment(a)
	return &a, nil
}

// --- send counter ---

type counter struct{ s *Store }

func (c counter) Increment(_ context.Context, key string, window time.Duration, now time.Time) (int64, error) {
	if window <= 0 {
		return 0, errors.New("memory counter: window must be positive")
	}
	bucket := fmt.Sprintf("%s|%d", key, now.UnixNano()/int64(window))
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.counters[bucket]++
	return c.s.counters[bucket], nil
}

func copyAppointment(a domain.Appointment) domain.Appointment {
	if a.ReminderSentAt != nil {
		t := *a.ReminderSentAt
		a.ReminderSentAt = &t
	}
	return a
}

func sortAppointments(appts []domain.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		if appts[i].Time != appts[j].Time {
			return appts[i].Time < appts[j].Time
		}
		return appts[i].ID.Hex() < appts[j].ID.Hex()
	})
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
