package calendar

import (
	"fmt"
	"time"
)

// DayOfWeek is the 1-indexed, Monday-start day number stored on plan sessions
// and availability rules: Monday = 1 ... Sunday = 7.
//
// Date arithmetic never uses a DayOfWeek directly. Convert it to a DayOffset
// first; that conversion is the single place the two conventions meet.
type DayOfWeek int

const (
	Monday DayOfWeek = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// ParseDayOfWeek validates a raw day number coming from storage or a request.
func ParseDayOfWeek(n int) (DayOfWeek, error) {
	d := DayOfWeek(n)
	if !d.Valid() {
		return 0, fmt.Errorf("%w: day of week %d must be 1 (Monday) to 7 (Sunday)", ErrInvalidArgument, n)
	}
	return d, nil
}

func (d DayOfWeek) Valid() bool { return d >= Monday && d <= Sunday }

// Offset converts to the number of days after Monday.
func (d DayOfWeek) Offset() (DayOffset, error) {
	if !d.Valid() {
		return 0, fmt.Errorf("%w: day of week %d must be 1 (Monday) to 7 (Sunday)", ErrInvalidArgument, int(d))
	}
	return DayOffset(d - Monday), nil
}

func (d DayOfWeek) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DayOfWeek(%d)", int(d))
	}
	return d.Weekday().String()
}

// Weekday maps to the standard library's Sunday-first numbering.
func (d DayOfWeek) Weekday() time.Weekday {
	return time.Weekday(int(d) % 7)
}

// DayOfWeekOf returns the Monday-start day number of date.
func DayOfWeekOf(date Date) DayOfWeek {
	wd := date.midnight().Weekday()
	if wd == time.Sunday {
		return Sunday
	}
	return DayOfWeek(wd)
}

// DayOffset is a 0-indexed position within a Monday-start week: 0 = Monday,
// 6 = Sunday.
type DayOffset int

// DayOfWeek converts back to the stored 1-indexed form.
func (o DayOffset) DayOfWeek() (DayOfWeek, error) {
	if o < 0 || o > 6 {
		return 0, fmt.Errorf("%w: day offset %d must be 0..6", ErrInvalidArgument, int(o))
	}
	return Monday + DayOfWeek(o), nil
}

// Days returns the offset as a day count for Date.AddDays.
func (o DayOffset) Days() int { return int(o) }
