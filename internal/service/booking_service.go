package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"alcyxob/coach-scheduling/internal/calendar"
	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/metrics"
	"alcyxob/coach-scheduling/internal/notify"
	"alcyxob/coach-scheduling/internal/repository"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingRequest is a public request for one slot.
type BookingRequest struct {
	CoachID     primitive.ObjectID `validate:"required"`
	CalendarID  primitive.ObjectID `validate:"required"`
	Date        string             `validate:"required"`
	Time        string             `validate:"required"`
	BookerName  string             `validate:"required,max=200"`
	BookerEmail string             `validate:"required,email"`
	Notes       string             `validate:"max=2000"`
}

// BookingConfig carries the tunables of the booking flow.
type BookingConfig struct {
	// RebookHorizonDays is how many days of availability a SlotTakenError re-offers.
	RebookHorizonDays int
	// NotifyTimeout bounds the confirmation send.
	NotifyTimeout time.Duration
}

// --- Service Interface ---
type BookingService interface {
	Book(ctx context.Context, req BookingRequest) (*domain.Appointment, error)
	CancelAppointment(ctx context.Context, coachID, appointmentID primitive.ObjectID) (*domain.Appointment, error)
	GetAppointment(ctx context.Context, coachID, appointmentID primitive.ObjectID) (*domain.Appointment, error)
	ListAppointments(ctx context.Context, coachID, calendarID primitive.ObjectID, fromDate, toDate string) ([]domain.Appointment, error)
	// Wait blocks until in-flight confirmation sends finish or ctx ends.
	Wait(ctx context.Context) error
}

// --- Service Implementation ---

type bookingService struct {
	appointmentRepo repository.AppointmentRepository
	userRepo        repository.UserRepository
	resolver        *slotResolver
	notifier        notify.Notifier
	validate        *validator.Validate
	cfg             BookingConfig
	opts            options
	pending         sync.WaitGroup
}

// NewBookingService creates a new instance of bookingService.
func NewBookingService(
	calendarRepo repository.CalendarRepository,
	ruleRepo repository.AvailabilityRuleRepository,
	appointmentRepo repository.AppointmentRepository,
	userRepo repository.UserRepository,
	notifier notify.Notifier,
	cfg BookingConfig,
	opts ...Option,
) BookingService {
	o := buildOptions("booking", opts)
	if cfg.RebookHorizonDays <= 0 {
		cfg.RebookHorizonDays = 7
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	return &bookingService{
		appointmentRepo: appointmentRepo,
		userRepo:        userRepo,
		resolver:        newSlotResolver(calendarRepo, ruleRepo, appointmentRepo, o.now),
		notifier:        notifier,
		validate:        validator.New(),
		cfg:             cfg,
		opts:            o,
	}
}

// Book re-resolves the requested slot and inserts a CONFIRMED appointment.
// The storage uniqueness constraint decides races; the re-resolution only
// turns obvious conflicts away early.
func (s *bookingService) Book(ctx context.Context, req BookingRequest) (*domain.Appointment, error) {
	appt, err := s.book(ctx, req)
	switch {
	case err == nil:
		s.opts.metrics.IncBooking(metrics.BookingConfirmed)
	case errors.Is(err, ErrSlotTaken):
		s.opts.metrics.IncBooking(metrics.BookingSlotTaken)
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrNotFound):
		s.opts.metrics.IncBooking(metrics.BookingRejected)
	default:
		s.opts.metrics.IncBooking(metrics.BookingError)
	}
	return appt, err
}

func (s *bookingService) book(ctx context.Context, req BookingRequest) (*domain.Appointment, error) {
	// 1. Validate Input, before any read or write
	req.BookerName = strings.TrimSpace(req.BookerName)
	req.BookerEmail = strings.TrimSpace(req.BookerEmail)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, describeValidation(err))
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	clock, err := calendar.ParseClock(req.Time)
	if err != nil {
		return nil, err
	}

	// 2. Calendar must belong to the coach
	cal, err := s.resolver.calendarOf(ctx, req.CoachID, req.CalendarID)
	if err != nil {
		return nil, err
	}

	// 3. Re-resolve the requested date. The client's slot list is not trusted.
	res, err := s.resolver.resolve(ctx, cal, date, date)
	if err != nil {
		return nil, err
	}
	slot := calendar.Slot{Date: date, Time: clock}
	plan, ok := res.days[calendar.DayOfWeekOf(date)]
	if !ok {
		return nil, fmt.Errorf("%w: calendar has no availability on %s", ErrInvalidArgument, calendar.DayOfWeekOf(date))
	}
	if !onGrid(plan.grid, clock) {
		return nil, fmt.Errorf("%w: %s is not a slot start on this calendar", ErrInvalidArgument, slot)
	}
	if res.taken[slot.Key()] {
		return nil, s.slotTaken(ctx, cal, slot)
	}
	if slot.Start().Before(res.now) {
		return nil, fmt.Errorf("%w: slot %s is in the past", ErrInvalidArgument, slot)
	}

	// 4. Insert. The partial unique index is the authority on conflicts.
	appt := &domain.Appointment{
		CoachID:         cal.CoachID,
		CalendarID:      cal.ID,
		Date:            date.String(),
		Time:            clock.String(),
		DurationMinutes: plan.rule.SlotDurationMinutes,
		BookerName:      req.BookerName,
		BookerEmail:     req.BookerEmail,
		Notes:           req.Notes,
		Status:          domain.StatusConfirmed,
	}
	if _, err := s.appointmentRepo.Create(ctx, appt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.opts.logger.Info().Str("calendar_id", cal.ID.Hex()).Str("slot", slot.String()).Msg("booking lost slot race")
			return nil, s.slotTaken(ctx, cal, slot)
		}
		return nil, storeErr(err, "appointment")
	}

	s.opts.logger.Info().
		Str("appointment_id", appt.ID.Hex()).
		Str("calendar_id", cal.ID.Hex()).
		Str("slot", slot.String()).
		Msg("appointment booked")

	// 5. Confirmation is best-effort and never blocks or undoes the booking
	s.pending.Add(1)
	go s.sendConfirmation(*appt, cal.Name)

	return appt, nil
}

// slotTaken builds the error a caller uses to re-offer nearby availability.
// A failure to re-resolve still reports the conflict, just without slots.
func (s *bookingService) slotTaken(ctx context.Context, cal *domain.Calendar, slot calendar.Slot) error {
	taken := &SlotTakenError{Date: slot.Date.String(), Time: slot.Time.String(), Available: []calendar.Slot{}}
	from := slot.Date
	if today := calendar.DateOf(calendar.Naive(s.opts.now())); from.Before(today) {
		from = today
	}
	res, err := s.resolver.resolve(ctx, cal, from, from.AddDays(s.cfg.RebookHorizonDays-1))
	if err != nil {
		s.opts.logger.Warn().Err(err).Str("calendar_id", cal.ID.Hex()).Msg("could not re-resolve availability after conflict")
		return taken
	}
	taken.Available = res.slots
	return taken
}

func (s *bookingService) sendConfirmation(appt domain.Appointment, calendarName string) {
	defer s.pending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NotifyTimeout)
	defer cancel()

	coachName := ""
	if coach, err := s.userRepo.GetByID(ctx, appt.CoachID); err == nil {
		coachName = coach.Name
	}

	data := notify.Data{
		"appointmentId": appt.ID.Hex(),
		"bookerName":    appt.BookerName,
		"coachName":     coachName,
		"calendarName":  calendarName,
		"date":          appt.Date,
		"time":          appt.Time,
		"duration":      fmt.Sprintf("%d", appt.DurationMinutes),
	}
	msgID, err := s.notifier.Send(ctx, appt.BookerEmail, notify.KindBookingConfirmation, data)
	if err != nil {
		s.opts.logger.Error().
			Err(fmt.Errorf("%w: %w", ErrNotifierFailed, err)).
			Str("appointment_id", appt.ID.Hex()).
			Msg("booking confirmation not sent")
		return
	}
	s.opts.logger.Debug().Str("appointment_id", appt.ID.Hex()).Str("message_id", msgID).Msg("booking confirmation sent")
}

func (s *bookingService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAppointment frees the slot. Only the owning coach may cancel.
func (s *bookingService) CancelAppointment(ctx context.Context, coachID, appointmentID primitive.ObjectID) (*domain.Appointment, error) {
	appt, err := s.appointmentRepo.Cancel(ctx, appointmentID, coachID)
	if err != nil {
		return nil, storeErr(err, "appointment")
	}
	s.opts.logger.Info().Str("appointment_id", appointmentID.Hex()).Msg("appointment canceled")
	return appt, nil
}

func (s *bookingService) GetAppointment(ctx context.Context, coachID, appointmentID primitive.ObjectID) (*domain.Appointment, error) {
	appt, err := s.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, storeErr(err, "appointment")
	}
	if appt.CoachID != coachID {
		return nil, ErrForbidden
	}
	return appt, nil
}

// ListAppointments lists the bookings still holding slots in [fromDate, toDate].
func (s *bookingService) ListAppointments(ctx context.Context, coachID, calendarID primitive.ObjectID, fromDate, toDate string) ([]domain.Appointment, error) {
	from, err := calendar.ParseDate(fromDate)
	if err != nil {
		return nil, err
	}
	to, err := calendar.ParseDate(toDate)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end %s is before start %s", ErrInvalidArgument, to, from)
	}

	cal, err := s.resolver.calendarRepo.GetByID(ctx, calendarID)
	if err != nil {
		return nil, storeErr(err, "calendar")
	}
	if cal.CoachID != coachID {
		return nil, ErrForbidden
	}

	appts, err := s.appointmentRepo.GetActiveByCalendar(ctx, calendarID, from.String(), to.String())
	if err != nil {
		return nil, storeErr(err, "appointment")
	}
	if appts == nil {
		appts = []domain.Appointment{}
	}
	return appts, nil
}

func onGrid(grid []calendar.Clock, c calendar.Clock) bool {
	for _, g := range grid {
		if g == c {
			return true
		}
	}
	return false
}

// describeValidation turns validator errors into "field: rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
