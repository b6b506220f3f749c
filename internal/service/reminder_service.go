package service

import (
	"context"
	"fmt"
	"time"

	"alcyxob/coach-scheduling/internal/calendar"
	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/notify"
	"alcyxob/coach-scheduling/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// ReminderConfig positions the reminder window relative to the sweep time.
type ReminderConfig struct {
	Lead          time.Duration // window opens at now+Lead
	Window        time.Duration // and stays open this long, inclusive
	NotifyTimeout time.Duration
}

// SweepResult is the aggregate of one reminder sweep.
type SweepResult struct {
	RunID   string `json:"runId"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

// --- Service Interface ---
type ReminderService interface {
	// RunReminderSweep sends one reminder to every appointment starting within
	// the window. Delivery is at-least-once: two overlapping sweeps may both
	// send, but only one of them records reminderSentAt.
	RunReminderSweep(ctx context.Context, now time.Time) (SweepResult, error)
}

// --- Service Implementation ---

type reminderService struct {
	appointmentRepo repository.AppointmentRepository
	userRepo        repository.UserRepository
	calendarRepo    repository.CalendarRepository
	notifier        notify.Notifier
	cfg             ReminderConfig
	opts            options
}

// NewReminderService creates a new instance of reminderService.
func NewReminderService(
	appointmentRepo repository.AppointmentRepository,
	userRepo repository.UserRepository,
	calendarRepo repository.CalendarRepository,
	notifier notify.Notifier,
	cfg ReminderConfig,
	opts ...Option,
) ReminderService {
	if cfg.Lead <= 0 {
		cfg.Lead = 10 * time.Minute
	}
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Minute
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	return &reminderService{
		appointmentRepo: appointmentRepo,
		userRepo:        userRepo,
		calendarRepo:    calendarRepo,
		notifier:        notifier,
		cfg:             cfg,
		opts:            buildOptions("reminders", opts),
	}
}

func (s *reminderService) RunReminderSweep(ctx context.Context, now time.Time) (SweepResult, error) {
	started := s.opts.now()
	result := SweepResult{RunID: uuid.NewString()}
	logger := s.opts.logger.With().Str("run_id", result.RunID).Logger()

	// 1. Window in naive wall-clock time, matching stored date/time values
	naiveNow := calendar.Naive(now)
	windowStart := naiveNow.Add(s.cfg.Lead)
	windowEnd := windowStart.Add(s.cfg.Window)

	// 2. Coarse pre-filter: today and tomorrow
	today := calendar.DateOf(naiveNow)
	dates := []string{today.String(), today.AddDays(1).String()}
	candidates, err := s.appointmentRepo.GetReminderCandidates(ctx, dates)
	if err != nil {
		return result, fmt.Errorf("%w: reminder candidates: %w", ErrStoreUnavailable, err)
	}

	// 3. Exact window check
	due := make([]domain.Appointment, 0, len(candidates))
	for _, appt := range candidates {
		start, err := appointmentStart(appt)
		if err != nil {
			logger.Warn().Err(err).Str("appointment_id", appt.ID.Hex()).Msg("skipping appointment with malformed date/time")
			result.Skipped++
			continue
		}
		if start.Before(windowStart) || start.After(windowEnd) {
			result.Skipped++
			continue
		}
		due = append(due, appt)
	}

	// 4. Display names, one batch per collection
	coachNames, calendarNames := s.lookupNames(ctx, due)

	// 5. Send, then mark. A failed send leaves the appointment for the next sweep.
	for _, appt := range due {
		data := notify.Data{
			"appointmentId": appt.ID.Hex(),
			"bookerName":    appt.BookerName,
			"coachName":     coachNames[appt.CoachID],
			"calendarName":  calendarNames[appt.CalendarID],
			"date":          appt.Date,
			"time":          appt.Time,
		}

		sendCtx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		msgID, err := s.notifier.Send(sendCtx, appt.BookerEmail, notify.KindAppointmentReminder, data)
		cancel()
		if err != nil {
			logger.Warn().
				Err(fmt.Errorf("%w: %w", ErrNotifierFailed, err)).
				Str("appointment_id", appt.ID.Hex()).
				Msg("reminder send failed")
			result.Failed++
			continue
		}

		marked, err := s.appointmentRepo.MarkReminderSent(ctx, appt.ID, now.UTC())
		switch {
		case err != nil:
			// The reminder went out; a later sweep may send it again.
			logger.Error().Err(err).Str("appointment_id", appt.ID.Hex()).Str("message_id", msgID).Msg("reminder sent but not recorded")
			result.Sent++
		case !marked:
			logger.Info().Str("appointment_id", appt.ID.Hex()).Msg("reminder already recorded by a concurrent sweep")
			result.Skipped++
		default:
			result.Sent++
		}
	}

	s.opts.metrics.ObserveSweep(result.Sent, result.Failed, result.Skipped, s.opts.now().Sub(started))
	logger.Info().
		Time("window_start", windowStart).
		Time("window_end", windowEnd).
		Int("candidates", len(candidates)).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("reminder sweep finished")
	return result, nil
}

// lookupNames fetches coach and calendar names concurrently. A failed lookup
// leaves names empty rather than blocking reminders.
func (s *reminderService) lookupNames(ctx context.Context, appts []domain.Appointment) (map[primitive.ObjectID]string, map[primitive.ObjectID]string) {
	coachNames := make(map[primitive.ObjectID]string)
	calendarNames := make(map[primitive.ObjectID]string)
	if len(appts) == 0 {
		return coachNames, calendarNames
	}

	coachIDs := make([]primitive.ObjectID, 0, len(appts))
	calendarIDs := make([]primitive.ObjectID, 0, len(appts))
	for _, a := range appts {
		coachIDs = append(coachIDs, a.CoachID)
		calendarIDs = append(calendarIDs, a.CalendarID)
	}

	var g errgroup.Group
	g.Go(func() error {
		users, err := s.userRepo.GetByIDs(ctx, coachIDs)
		if err != nil {
			return fmt.Errorf("coach names: %w", err)
		}
		for _, u := range users {
			coachNames[u.ID] = u.Name
		}
		return nil
	})
	g.Go(func() error {
		cals, err := s.calendarRepo.GetByIDs(ctx, calendarIDs)
		if err != nil {
			return fmt.Errorf("calendar names: %w", err)
		}
		for _, c := range cals {
			calendarNames[c.ID] = c.Name
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.opts.logger.Warn().Err(err).Msg("display name lookup failed, sending reminders without names")
	}
	return coachNames, calendarNames
}

func appointmentStart(appt domain.Appointment) (time.Time, error) {
	date, err := calendar.ParseDate(appt.Date)
	if err != nil {
		return time.Time{}, err
	}
	clock, err := calendar.ParseClock(appt.Time)
	if err != nil {
		return time.Time{}, err
	}
	return date.At(clock), nil
}
