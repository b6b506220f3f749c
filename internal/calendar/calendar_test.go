package calendar

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustClock(t *testing.T, s string) Clock {
	t.Helper()
	c, err := ParseClock(s)
	require.NoError(t, err)
	return c
}

func TestEnumerateSlotsEvenDivision(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		duration int
	}{
		{name: "hour of 15 minute slots", start: "09:00", end: "10:00", duration: 15},
		{name: "full morning of 30 minute slots", start: "08:00", end: "12:00", duration: 30},
		{name: "single slot", start: "14:00", end: "14:45", duration: 45},
		{name: "until midnight", start: "22:00", end: "24:00", duration: 60},
		{name: "one minute slots", start: "00:00", end: "00:10", duration: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := mustClock(t, tt.start), mustClock(t, tt.end)
			slots, err := EnumerateSlots(start, end, tt.duration)
			require.NoError(t, err)

			require.Len(t, slots, int(end-start)/tt.duration)
			assert.Equal(t, start, slots[0])
			for i := 1; i < len(slots); i++ {
				assert.Equal(t, slots[i-1].Add(tt.duration), slots[i])
			}
			assert.LessOrEqual(t, slots[len(slots)-1].Add(tt.duration), end)
		})
	}
}

func TestEnumerateSlotsDropsPartialWindow(t *testing.T) {
	slots, err := EnumerateSlots(mustClock(t, "09:00"), mustClock(t, "10:10"), 30)
	require.NoError(t, err)
	assert.Equal(t, []Clock{mustClock(t, "09:00"), mustClock(t, "09:30")}, slots)
}

func TestEnumerateSlotsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		duration int
	}{
		{name: "zero duration", start: "09:00", end: "10:00", duration: 0},
		{name: "negative duration", start: "09:00", end: "10:00", duration: -15},
		{name: "end equals start", start: "09:00", end: "09:00", duration: 15},
		{name: "end before start", start: "10:00", end: "09:00", duration: 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EnumerateSlots(mustClock(t, tt.start), mustClock(t, tt.end), tt.duration)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestEnumerateSlotsWindowShorterThanDuration(t *testing.T) {
	slots, err := EnumerateSlots(mustClock(t, "09:00"), mustClock(t, "09:20"), 30)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestEnumerateSlotsHugeDurationIsEmpty(t *testing.T) {
	for _, d := range []int{math.MaxInt, math.MaxInt - 1, math.MaxInt / 2, int(EndOfDay) + 1} {
		slots, err := EnumerateSlots(mustClock(t, "09:00"), mustClock(t, "10:00"), d)
		require.NoError(t, err)
		assert.Empty(t, slots, "duration %d", d)
	}

	slots, err := EnumerateSlots(0, EndOfDay, int(EndOfDay))
	require.NoError(t, err)
	assert.Equal(t, []Clock{0}, slots)
}

func TestDayOfWeekOfIsMondayStart(t *testing.T) {
	// 2024-01-01 was a Monday.
	monday := NewDate(2024, time.January, 1)
	for i, want := range []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday} {
		assert.Equal(t, want, DayOfWeekOf(monday.AddDays(i)), "offset %d", i)
	}
	assert.Equal(t, Monday, DayOfWeekOf(monday.AddDays(7)))
}

func TestDayOffsetRoundTrip(t *testing.T) {
	for n := 1; n <= 7; n++ {
		d, err := ParseDayOfWeek(n)
		require.NoError(t, err)
		off, err := d.Offset()
		require.NoError(t, err)
		assert.Equal(t, n-1, off.Days())
		back, err := off.DayOfWeek()
		require.NoError(t, err)
		assert.Equal(t, d, back)
	}

	_, err := ParseDayOfWeek(0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = ParseDayOfWeek(8)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = DayOffset(7).DayOfWeek()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDayOfWeekWeekday(t *testing.T) {
	assert.Equal(t, time.Monday, Monday.Weekday())
	assert.Equal(t, time.Sunday, Sunday.Weekday())
	assert.Equal(t, "Sunday", Sunday.String())
}

func TestAddDaysCrossesMonthAndYear(t *testing.T) {
	assert.Equal(t, NewDate(2024, time.March, 1), AddDays(NewDate(2024, time.February, 28), 2))
	assert.Equal(t, NewDate(2025, time.January, 3), NewDate(2024, time.December, 30).AddDays(4))
	assert.Equal(t, NewDate(2023, time.December, 31), NewDate(2024, time.January, 1).AddDays(-1))
}

func TestDatesBetween(t *testing.T) {
	start := NewDate(2024, time.January, 30)
	dates, err := DatesBetween(start, NewDate(2024, time.February, 2))
	require.NoError(t, err)
	require.Len(t, dates, 4)
	assert.Equal(t, "2024-02-02", dates[3].String())

	single, err := DatesBetween(start, start)
	require.NoError(t, err)
	assert.Equal(t, []Date{start}, single)

	_, err = DatesBetween(start, start.AddDays(-1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseDateAndClock(t *testing.T) {
	d, err := ParseDate("2024-01-08")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.January, 8), d)

	for _, bad := range []string{"", "2024-13-01", "08/01/2024", "2024-1-8"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidArgument, bad)
	}

	c := mustClock(t, "07:05")
	assert.Equal(t, 7, c.Hour())
	assert.Equal(t, 5, c.Minute())
	assert.Equal(t, "24:00", EndOfDay.String())

	for _, bad := range []string{"7am", "25:00", "12:60", ""} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidArgument, bad)
	}
}

func TestSlotJSONAndOrdering(t *testing.T) {
	d := NewDate(2024, time.January, 2)
	slots := []Slot{
		{Date: d, Time: mustClock(t, "10:00")},
		{Date: d.AddDays(-1), Time: mustClock(t, "15:00")},
		{Date: d, Time: mustClock(t, "09:00")},
	}
	SortSlots(slots)
	assert.Equal(t, "2024-01-01 15:00", slots[0].Key())
	assert.Equal(t, "2024-01-02 09:00", slots[1].Key())

	raw, err := json.Marshal(slots[2])
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-02","time":"10:00"}`, string(raw))

	var decoded Slot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, slots[2], decoded)
	assert.Equal(t, time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC), decoded.Start())
}

func TestNaiveKeepsWallClock(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	in := time.Date(2024, time.May, 4, 13, 45, 0, 0, loc)
	out := Naive(in)
	assert.Equal(t, time.UTC, out.Location())
	assert.Equal(t, 13, out.Hour())
	assert.Equal(t, Slot{Date: NewDate(2024, time.May, 4), Time: mustClock(t, "13:45")}.Start(), out)
}
