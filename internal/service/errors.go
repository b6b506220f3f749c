package service

import (
	"errors"
	"fmt"

	"alcyxob/coach-scheduling/internal/calendar"
	"alcyxob/coach-scheduling/internal/repository"
)

// --- Error Definitions ---
// Handlers switch on these with errors.Is; detail is attached with %w.
var (
	ErrInvalidArgument  = calendar.ErrInvalidArgument // malformed input, never retried
	ErrNotFound         = errors.New("not found")
	ErrSlotTaken        = errors.New("slot already taken")
	ErrNotifierFailed   = errors.New("notifier failed")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrRuleConflict     = errors.New("conflicting availability rules")
	ErrAlreadyScheduled = errors.New("plan already scheduled for these dates")
	ErrForbidden        = errors.New("access denied")
)

// SlotTakenError is returned when a booking loses the race for its slot. It
// carries the calendar's current availability so the caller can re-offer.
type SlotTakenError struct {
	Date      string
	Time      string
	Available []calendar.Slot
}

func (e *SlotTakenError) Error() string {
	return fmt.Sprintf("slot %s %s already taken", e.Date, e.Time)
}

// Is lets errors.Is(err, ErrSlotTaken) match.
func (e *SlotTakenError) Is(target error) bool { return target == ErrSlotTaken }

// storeErr maps a repository failure onto the service taxonomy. what names the
// missing entity for ErrNotFound.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
