// Package calendar holds the naive date/time arithmetic used by the scheduling
// services. Nothing here knows about time zones: a Date is a wall-calendar day
// and a Clock is a wall-clock time of day.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidArgument is returned for malformed dates, times, durations and days of week.
var ErrInvalidArgument = errors.New("invalid argument")

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	// EndOfDay is the only clock value above 23:59; it lets an availability
	// window run until midnight.
	EndOfDay Clock = 24 * 60
)

// Date is a calendar day without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date, normalizing overflowing values the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the wall-calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidArgument, s)
	}
	return DateOf(t), nil
}

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string { return d.midnight().Format(DateLayout) }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// AddDays returns d moved by n days (n may be negative).
func (d Date) AddDays(n int) Date { return DateOf(d.midnight().AddDate(0, 0, n)) }

// AddDays is the free-function form of Date.AddDays.
func AddDays(d Date, n int) Date { return d.AddDays(n) }

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int { return d.midnight().Compare(o.midnight()) }

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// DaysUntil returns the number of days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.midnight().Sub(d.midnight()).Hours() / 24)
}

// At combines the date with a clock value into a naive instant (UTC-tagged).
func (d Date) At(c Clock) time.Time {
	return d.midnight().Add(time.Duration(c) * time.Minute)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DatesBetween lists every date in [start, end], inclusive, ascending.
func DatesBetween(start, end Date) ([]Date, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: range end %s is before start %s", ErrInvalidArgument, end, start)
	}
	dates := make([]Date, 0, start.DaysUntil(end)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates, nil
}

// Naive drops the location of t, keeping its wall-clock reading. Stored
// appointments carry no zone, so "now" has to be compared on the same footing.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Clock is a time of day in minutes since midnight, 0..EndOfDay.
type Clock int

// NewClock validates hour and minute.
func NewClock(hour, minute int) (Clock, error) {
	if hour == 24 && minute == 0 {
		return EndOfDay, nil
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: time %02d:%02d out of range", ErrInvalidArgument, hour, minute)
	}
	return Clock(hour*60 + minute), nil
}

// ParseClock parses HH:MM. "24:00" is accepted as EndOfDay.
func ParseClock(s string) (Clock, error) {
	if s == "24:00" {
		return EndOfDay, nil
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidArgument, s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// Add moves the clock forward by minutes. It does not wrap past midnight.
func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// EnumerateSlots returns the start of every full durationMinutes window inside
// [start, end). A trailing window that would run past end is dropped.
func EnumerateSlots(start, end Clock, durationMinutes int) ([]Clock, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot duration must be positive, got %d", ErrInvalidArgument, durationMinutes)
	}
	if start < 0 || end > EndOfDay {
		return nil, fmt.Errorf("%w: window %s-%s outside the day", ErrInvalidArgument, start, end)
	}
	if end <= start {
		return nil, fmt.Errorf("%w: window end %s must be after start %s", ErrInvalidArgument, end, start)
	}
	slots := make([]Clock, 0, int(end-start)/durationMinutes)
	// Compare the remaining room, not s+duration, so huge durations cannot overflow.
	for s := start; int(end-s) >= durationMinutes; s = s.Add(durationMinutes) {
		slots = append(slots, s)
	}
	return slots, nil
}

// Slot is one bookable (date, time) pair.
type Slot struct {
	Date Date  `json:"date"`
	Time Clock `json:"time"`
}

// Start returns the naive instant the slot begins.
func (s Slot) Start() time.Time { return s.Date.At(s.Time) }

// Key is the canonical "YYYY-MM-DD HH:MM" form, the same pair the appointment
// uniqueness constraint is defined on.
func (s Slot) Key() string { return SlotKey(s.Date.String(), s.Time.String()) }

// SlotKey builds a Slot.Key from stored date and time strings.
func SlotKey(date, clock string) string { return date + " " + clock }

func (s Slot) String() string { return s.Key() }

// SortSlots orders slots ascending by (date, time).
func SortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if c := slots[i].Date.Compare(slots[j].Date); c != 0 {
			return c < 0
		}
		return slots[i].Time < slots[j].Time
	})
}
