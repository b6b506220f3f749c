package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"alcyxob/coach-scheduling/internal/calendar"
	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanTemplateInput is a coach's plan as submitted.
type PlanTemplateInput struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Weeks       []domain.PlanWeek `json:"weeks" binding:"required,min=1"`
}

// PlanConfig carries materialization policy.
type PlanConfig struct {
	// RejectOverlapping refuses to materialize onto dates that already hold an
	// instance of the same template for the athlete.
	RejectOverlapping bool
}

// --- Service Interface ---
type PlanService interface {
	CreatePlanTemplate(ctx context.Context, coachID primitive.ObjectID, input PlanTemplateInput) (*domain.PlanTemplate, error)
	MaterializePlan(ctx context.Context, athleteID, planTemplateID primitive.ObjectID, startDate string, weekCount int) ([]domain.ScheduledInstance, error)

	// Athlete-side schedule management
	ListInstances(ctx context.Context, athleteID primitive.ObjectID, fromDate, toDate string) ([]domain.ScheduledInstance, error)
	SetInstanceCompleted(ctx context.Context, athleteID, instanceID primitive.ObjectID, completed bool) (*domain.ScheduledInstance, error)
	DeleteInstance(ctx context.Context, athleteID, instanceID primitive.ObjectID) error
}

// --- Service Implementation ---

type planService struct {
	planRepo     repository.PlanTemplateRepository
	instanceRepo repository.ScheduledInstanceRepository
	cfg          PlanConfig
	opts         options
}

// NewPlanService creates a new instance of planService.
func NewPlanService(
	planRepo repository.PlanTemplateRepository,
	instanceRepo repository.ScheduledInstanceRepository,
	cfg PlanConfig,
	opts ...Option,
) PlanService {
	return &planService{
		planRepo:     planRepo,
		instanceRepo: instanceRepo,
		cfg:          cfg,
		opts:         buildOptions("plans", opts),
	}
}

// CreatePlanTemplate validates and stores a template. Weeks are kept in the
// submitted order; Order is filled in where the client left it zero.
func (s *planService) CreatePlanTemplate(ctx context.Context, coachID primitive.ObjectID, input PlanTemplateInput) (*domain.PlanTemplate, error) {
	name := strings.TrimSpace(input.Name)
	if coachID.IsZero() || name == "" {
		return nil, fmt.Errorf("%w: coach ID and plan name are required", ErrInvalidArgument)
	}
	if len(input.Weeks) == 0 {
		return nil, fmt.Errorf("%w: plan needs at least one week", ErrInvalidArgument)
	}

	weeks := make([]domain.PlanWeek, len(input.Weeks))
	seenOrder := make(map[int]bool, len(input.Weeks))
	for i, week := range input.Weeks {
		if week.Order == 0 {
			week.Order = i + 1
		}
		if seenOrder[week.Order] {
			return nil, fmt.Errorf("%w: week order %d used twice", ErrInvalidArgument, week.Order)
		}
		seenOrder[week.Order] = true

		for j, session := range week.Sessions {
			if _, err := calendar.ParseDayOfWeek(session.DayOfWeek); err != nil {
				return nil, fmt.Errorf("week %d session %d: %w", week.Order, j+1, err)
			}
			if strings.TrimSpace(session.Title) == "" {
				return nil, fmt.Errorf("%w: week %d session %d needs a title", ErrInvalidArgument, week.Order, j+1)
			}
			if len(session.WorkoutPayload) > 0 && !json.Valid(session.WorkoutPayload) {
				return nil, fmt.Errorf("%w: week %d session %d payload is not JSON", ErrInvalidArgument, week.Order, j+1)
			}
		}
		weeks[i] = week
	}

	plan := &domain.PlanTemplate{
		CoachID:     coachID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Weeks:       weeks,
	}
	id, err := s.planRepo.Create(ctx, plan)
	if err != nil {
		return nil, storeErr(err, "plan template")
	}
	plan.ID = id
	return plan, nil
}

// MaterializePlan expands the first weekCount weeks of a template into dated
// instances for the athlete, starting at startDate.
//
// Sessions carry a 1-indexed, Monday-start DayOfWeek. The date of a session in
// week index w is startDate + 7w + offset, where offset is the 0-indexed
// DayOffset obtained from DayOfWeek.Offset(). No other day arithmetic is done.
// startDate is therefore the Monday-equivalent of the first week: a Wednesday
// start shifts every session by two days.
func (s *planService) MaterializePlan(ctx context.Context, athleteID, planTemplateID primitive.ObjectID, startDate string, weekCount int) ([]domain.ScheduledInstance, error) {
	// 1. Validate Input
	if athleteID.IsZero() {
		return nil, fmt.Errorf("%w: athlete ID is required", ErrInvalidArgument)
	}
	if weekCount < 1 {
		return nil, fmt.Errorf("%w: week count must be at least 1, got %d", ErrInvalidArgument, weekCount)
	}
	start, err := calendar.ParseDate(startDate)
	if err != nil {
		return nil, err
	}

	// 2. Load the template
	plan, err := s.planRepo.GetByID(ctx, planTemplateID)
	if err != nil {
		return nil, storeErr(err, "plan template")
	}
	if weekCount > len(plan.Weeks) {
		return nil, fmt.Errorf("%w: plan has %d weeks, %d requested", ErrInvalidArgument, len(plan.Weeks), weekCount)
	}

	// 3. Expand
	instances, err := expandPlan(plan, athleteID, start, weekCount)
	if err != nil {
		return nil, err
	}

	// 4. Optional overlap guard
	if s.cfg.RejectOverlapping && len(instances) > 0 {
		dates := make([]string, 0, len(instances))
		for _, inst := range instances {
			dates = append(dates, inst.Date)
		}
		existing, err := s.instanceRepo.ExistingDates(ctx, athleteID, plan.ID, dates)
		if err != nil {
			return nil, storeErr(err, "scheduled instance")
		}
		if len(existing) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyScheduled, strings.Join(existing, ", "))
		}
	}

	// 5. Bulk insert
	if err := s.instanceRepo.CreateMany(ctx, instances); err != nil {
		return nil, storeErr(err, "scheduled instance")
	}
	s.opts.metrics.AddMaterialized(len(instances))
	s.opts.logger.Info().
		Str("athlete_id", athleteID.Hex()).
		Str("plan_id", plan.ID.Hex()).
		Str("start_date", start.String()).
		Int("weeks", weekCount).
		Int("instances", len(instances)).
		Msg("plan materialized")
	return instances, nil
}

// expandPlan builds the instances without touching storage. Output is sorted
// by date; same-day sessions keep template order.
func expandPlan(plan *domain.PlanTemplate, athleteID primitive.ObjectID, start calendar.Date, weekCount int) ([]domain.ScheduledInstance, error) {
	weeks := make([]domain.PlanWeek, len(plan.Weeks))
	copy(weeks, plan.Weeks)
	sort.SliceStable(weeks, func(i, j int) bool { return weeks[i].Order < weeks[j].Order })

	instances := []domain.ScheduledInstance{}
	for w := 0; w < weekCount; w++ {
		weekStart := start.AddDays(7 * w)
		for _, session := range weeks[w].Sessions {
			day, err := calendar.ParseDayOfWeek(session.DayOfWeek)
			if err != nil {
				return nil, fmt.Errorf("plan %s week %d: %w", plan.ID.Hex(), weeks[w].Order, err)
			}
			offset, err := day.Offset()
			if err != nil {
				return nil, err
			}
			instances = append(instances, domain.ScheduledInstance{
				AthleteID:      athleteID,
				PlanTemplateID: plan.ID,
				WeekNumber:     w + 1,
				DayOfWeek:      int(day),
				Date:           weekStart.AddDays(offset.Days()).String(),
				Title:          session.Title,
				WorkoutPayload: session.WorkoutPayload,
			})
		}
	}
	sort.SliceStable(instances, func(i, j int) bool { return instances[i].Date < instances[j].Date })
	return instances, nil
}

// ListInstances returns the athlete's schedule. Empty bounds are open.
func (s *planService) ListInstances(ctx context.Context, athleteID primitive.ObjectID, fromDate, toDate string) ([]domain.ScheduledInstance, error) {
	for _, d := range []string{fromDate, toDate} {
		if d == "" {
			continue
		}
		if _, err := calendar.ParseDate(d); err != nil {
			return nil, err
		}
	}
	instances, err := s.instanceRepo.GetByAthleteID(ctx, athleteID, fromDate, toDate)
	if err != nil {
		return nil, storeErr(err, "scheduled instance")
	}
	if instances == nil {
		instances = []domain.ScheduledInstance{}
	}
	return instances, nil
}

func (s *planService) SetInstanceCompleted(ctx context.Context, athleteID, instanceID primitive.ObjectID, completed bool) (*domain.ScheduledInstance, error) {
	inst, err := s.instanceRepo.SetCompleted(ctx, instanceID, athleteID, completed)
	if err != nil {
		return nil, storeErr(err, "scheduled instance")
	}
	return inst, nil
}

func (s *planService) DeleteInstance(ctx context.Context, athleteID, instanceID primitive.ObjectID) error {
	return storeErr(s.instanceRepo.Delete(ctx, instanceID, athleteID), "scheduled instance")
}
