package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/coach-scheduling/internal/calendar"
	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RuleInput is a coach's request to open a weekly window.
type RuleInput struct {
	DayOfWeek           int    `json:"dayOfWeek" binding:"required"`
	StartTime           string `json:"startTime" binding:"required"`
	EndTime             string `json:"endTime" binding:"required"`
	SlotDurationMinutes int    `json:"slotDurationMinutes" binding:"required"`
}

// --- Service Interface ---
type AvailabilityService interface {
	// ResolveSlots lists the open slots of a calendar for every date in
	// [horizonStart, horizonEnd]. Callers bound the horizon.
	ResolveSlots(ctx context.Context, coachID, calendarID primitive.ObjectID, horizonStart, horizonEnd string) ([]calendar.Slot, error)

	// Calendar and rule management
	CreateCalendar(ctx context.Context, coachID primitive.ObjectID, name string) (*domain.Calendar, error)
	ListCalendars(ctx context.Context, coachID primitive.ObjectID) ([]domain.Calendar, error)
	AddRule(ctx context.Context, coachID, calendarID primitive.ObjectID, input RuleInput) (*domain.AvailabilityRule, error)
	ListRules(ctx context.Context, coachID, calendarID primitive.ObjectID) ([]domain.AvailabilityRule, error)
	DeleteRule(ctx context.Context, coachID, calendarID, ruleID primitive.ObjectID) error
}

// --- Service Implementation ---

type availabilityService struct {
	calendarRepo repository.CalendarRepository
	ruleRepo     repository.AvailabilityRuleRepository
	resolver     *slotResolver
	opts         options
}

// NewAvailabilityService creates a new instance of availabilityService.
func NewAvailabilityService(
	calendarRepo repository.CalendarRepository,
	ruleRepo repository.AvailabilityRuleRepository,
	appointmentRepo repository.AppointmentRepository,
	opts ...Option,
) AvailabilityService {
	o := buildOptions("availability", opts)
	return &availabilityService{
		calendarRepo: calendarRepo,
		ruleRepo:     ruleRepo,
		resolver:     newSlotResolver(calendarRepo, ruleRepo, appointmentRepo, o.now),
		opts:         o,
	}
}

// ResolveSlots returns open slots ascending by (date, time).
func (s *availabilityService) ResolveSlots(ctx context.Context, coachID, calendarID primitive.ObjectID, horizonStart, horizonEnd string) ([]calendar.Slot, error) {
	// 1. Validate Input
	start, err := calendar.ParseDate(horizonStart)
	if err != nil {
		return nil, err
	}
	end, err := calendar.ParseDate(horizonEnd)
	if err != nil {
		return nil, err
	}

	// 2. Calendar must exist and belong to the coach named in the request
	cal, err := s.resolver.calendarOf(ctx, coachID, calendarID)
	if err != nil {
		return nil, err
	}

	// 3. Expand rules, subtract bookings, drop the past
	res, err := s.resolver.resolve(ctx, cal, start, end)
	if err != nil {
		return nil, err
	}
	s.opts.metrics.ObserveResolved(len(res.slots))
	return res.slots, nil
}

// CreateCalendar opens a new bookable calendar for the coach.
func (s *availabilityService) CreateCalendar(ctx context.Context, coachID primitive.ObjectID, name string) (*domain.Calendar, error) {
	name = strings.TrimSpace(name)
	if coachID.IsZero() || name == "" {
		return nil, fmt.Errorf("%w: coach ID and calendar name are required", ErrInvalidArgument)
	}
	cal := &domain.Calendar{CoachID: coachID, Name: name}
	if _, err := s.calendarRepo.Create(ctx, cal); err != nil {
		return nil, storeErr(err, "calendar")
	}
	s.opts.logger.Info().Str("calendar_id", cal.ID.Hex()).Str("coach_id", coachID.Hex()).Msg("calendar created")
	return cal, nil
}

func (s *availabilityService) ListCalendars(ctx context.Context, coachID primitive.ObjectID) ([]domain.Calendar, error) {
	cals, err := s.calendarRepo.GetByCoachID(ctx, coachID)
	if err != nil {
		return nil, storeErr(err, "calendar")
	}
	if cals == nil {
		cals = []domain.Calendar{}
	}
	return cals, nil
}

// AddRule validates and stores a weekly window. A second rule for the same
// day of week is refused with ErrRuleConflict.
func (s *availabilityService) AddRule(ctx context.Context, coachID, calendarID primitive.ObjectID, input RuleInput) (*domain.AvailabilityRule, error) {
	// 1. Validate Input
	day, err := calendar.ParseDayOfWeek(input.DayOfWeek)
	if err != nil {
		return nil, err
	}
	start, err := calendar.ParseClock(input.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := calendar.ParseClock(input.EndTime)
	if err != nil {
		return nil, err
	}
	grid, err := calendar.EnumerateSlots(start, end, input.SlotDurationMinutes)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: window %s-%s is shorter than one %d minute slot",
			ErrInvalidArgument, start, end, input.SlotDurationMinutes)
	}

	// 2. Verify ownership
	cal, err := s.ownedCalendar(ctx, coachID, calendarID)
	if err != nil {
		return nil, err
	}

	// 3. Create
	rule := &domain.AvailabilityRule{
		CoachID:             cal.CoachID,
		CalendarID:          cal.ID,
		DayOfWeek:           int(day),
		StartTime:           start.String(),
		EndTime:             end.String(),
		SlotDurationMinutes: input.SlotDurationMinutes,
	}
	if _, err := s.ruleRepo.Create(ctx, rule); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: calendar already has a %s rule", ErrRuleConflict, day)
		}
		return nil, storeErr(err, "availability rule")
	}
	return rule, nil
}

func (s *availabilityService) ListRules(ctx context.Context, coachID, calendarID primitive.ObjectID) ([]domain.AvailabilityRule, error) {
	if _, err := s.ownedCalendar(ctx, coachID, calendarID); err != nil {
		return nil, err
	}
	rules, err := s.ruleRepo.GetByCalendarID(ctx, calendarID)
	if err != nil {
		return nil, storeErr(err, "availability rule")
	}
	if rules == nil {
		rules = []domain.AvailabilityRule{}
	}
	return rules, nil
}

func (s *availabilityService) DeleteRule(ctx context.Context, coachID, calendarID, ruleID primitive.ObjectID) error {
	if _, err := s.ownedCalendar(ctx, coachID, calendarID); err != nil {
		return err
	}
	return storeErr(s.ruleRepo.Delete(ctx, ruleID, calendarID), "availability rule")
}

// ownedCalendar is the coach-side lookup: a calendar of another coach is
// forbidden, not missing.
func (s *availabilityService) ownedCalendar(ctx context.Context, coachID, calendarID primitive.ObjectID) (*domain.Calendar, error) {
	cal, err := s.calendarRepo.GetByID(ctx, calendarID)
	if err != nil {
		return nil, storeErr(err, "calendar")
	}
	if cal.CoachID != coachID {
		return nil, ErrForbidden
	}
	return cal, nil
}

// === Slot resolution shared with booking ===

// dayPlan is one weekday's rule and the slot grid it expands to.
type dayPlan struct {
	rule domain.AvailabilityRule
	grid []calendar.Clock
}

type resolution struct {
	days  map[calendar.DayOfWeek]dayPlan
	taken map[string]bool // keyed by calendar.SlotKey
	now   time.Time       // naive
	slots []calendar.Slot
}

type slotResolver struct {
	calendarRepo    repository.CalendarRepository
	ruleRepo        repository.AvailabilityRuleRepository
	appointmentRepo repository.AppointmentRepository
	now             func() time.Time
}

func newSlotResolver(
	calendarRepo repository.CalendarRepository,
	ruleRepo repository.AvailabilityRuleRepository,
	appointmentRepo repository.AppointmentRepository,
	now func() time.Time,
) *slotResolver {
	return &slotResolver{
		calendarRepo:    calendarRepo,
		ruleRepo:        ruleRepo,
		appointmentRepo: appointmentRepo,
		now:             now,
	}
}

// calendarOf is the public lookup: an unknown calendar and a calendar of a
// different coach are both NotFound.
func (r *slotResolver) calendarOf(ctx context.Context, coachID, calendarID primitive.ObjectID) (*domain.Calendar, error) {
	cal, err := r.calendarRepo.GetByID(ctx, calendarID)
	if err != nil {
		return nil, storeErr(err, "calendar")
	}
	if cal.CoachID != coachID {
		return nil, fmt.Errorf("%w: calendar", ErrNotFound)
	}
	return cal, nil
}

func (r *slotResolver) resolve(ctx context.Context, cal *domain.Calendar, start, end calendar.Date) (*resolution, error) {
	dates, err := calendar.DatesBetween(start, end)
	if err != nil {
		return nil, err
	}

	rules, err := r.ruleRepo.GetByCalendarID(ctx, cal.ID)
	if err != nil {
		return nil, storeErr(err, "availability rule")
	}
	days, err := planDays(rules, dates)
	if err != nil {
		return nil, err
	}

	appts, err := r.appointmentRepo.GetActiveByCalendar(ctx, cal.ID, start.String(), end.String())
	if err != nil {
		return nil, storeErr(err, "appointment")
	}
	taken := make(map[string]bool, len(appts))
	for _, a := range appts {
		if a.Holds() {
			taken[calendar.SlotKey(a.Date, a.Time)] = true
		}
	}

	res := &resolution{
		days:  days,
		taken: taken,
		now:   calendar.Naive(r.now()),
		slots: []calendar.Slot{},
	}
	// Dates ascend and each grid ascends, so the output is already ordered.
	for _, date := range dates {
		plan, ok := days[calendar.DayOfWeekOf(date)]
		if !ok {
			continue
		}
		for _, clock := range plan.grid {
			slot := calendar.Slot{Date: date, Time: clock}
			if res.taken[slot.Key()] || slot.Start().Before(res.now) {
				continue
			}
			res.slots = append(res.slots, slot)
		}
	}
	return res, nil
}

// planDays indexes rules by weekday for the weekdays that occur in dates. Two
// rules on one of those weekdays is a configuration error and is reported
// rather than merged.
func planDays(rules []domain.AvailabilityRule, dates []calendar.Date) (map[calendar.DayOfWeek]dayPlan, error) {
	needed := make(map[calendar.DayOfWeek]bool, 7)
	for _, d := range dates {
		needed[calendar.DayOfWeekOf(d)] = true
	}

	days := make(map[calendar.DayOfWeek]dayPlan, len(needed))
	for _, rule := range rules {
		day, err := calendar.ParseDayOfWeek(rule.DayOfWeek)
		if err != nil {
			return nil, fmt.Errorf("availability rule %s: %w", rule.ID.Hex(), err)
		}
		if !needed[day] {
			continue
		}
		if prev, dup := days[day]; dup {
			return nil, fmt.Errorf("%w: rules %s and %s both cover %s",
				ErrRuleConflict, prev.rule.ID.Hex(), rule.ID.Hex(), day)
		}
		start, err := calendar.ParseClock(rule.StartTime)
		if err != nil {
			return nil, fmt.Errorf("availability rule %s: %w", rule.ID.Hex(), err)
		}
		end, err := calendar.ParseClock(rule.EndTime)
		if err != nil {
			return nil, fmt.Errorf("availability rule %s: %w", rule.ID.Hex(), err)
		}
		grid, err := calendar.EnumerateSlots(start, end, rule.SlotDurationMinutes)
		if err != nil {
			return nil, fmt.Errorf("availability rule %s: %w", rule.ID.Hex(), err)
		}
		days[day] = dayPlan{rule: rule, grid: grid}
	}
	return days, nil
}
