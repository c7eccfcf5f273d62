package hours

import (
	"fmt"
	"time"
)

var location = time.UTC

// SetTimezone sets the zone used for calendar boundaries (today, this month...).
func SetTimezone(timezone string) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}
	location = loc
	return nil
}

func Location() *time.Location {
	return location
}

// Window is the half open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// StartOfDay is local midnight of the day t falls on in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

func Day(t time.Time, loc *time.Location) Window {
	start := StartOfDay(t, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

func Today(now time.Time, loc *time.Location) Window {
	return Day(now, loc)
}

func Yesterday(now time.Time, loc *time.Location) Window {
	today := StartOfDay(now, loc)
	return Window{Start: today.AddDate(0, 0, -1), End: today}
}

func Tomorrow(now time.Time, loc *time.Location) Window {
	tomorrow := StartOfDay(now, loc).AddDate(0, 0, 1)
	return Window{Start: tomorrow, End: tomorrow.AddDate(0, 0, 1)}
}

func Month(now time.Time, loc *time.Location) Window {
	l := now.In(loc)
	start := time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

func Year(now time.Time, loc *time.Location) Window {
	l := now.In(loc)
	start := time.Date(l.Year(), time.January, 1, 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(1, 0, 0)}
}

// ContractYear is the active contract year cycle. It starts at the most recent
// anniversary of the contract start date <= now. The anniversary day is clamped
// to the last day of the month, so a Feb 29 start is celebrated on Feb 28 in
// non-leap years. The start date is the calendar date of contractStart in loc.
func ContractYear(contractStart, now time.Time, loc *time.Location) Window {
	_, m, d := contractStart.In(loc).Date()
	current := now.In(loc)

	start := anniversary(current.Year(), m, d, loc)
	if current.Before(start) {
		start = anniversary(current.Year()-1, m, d, loc)
	}

	return Window{Start: start, End: anniversary(start.Year()+1, m, d, loc)}
}

// ContractStartIn is the contract start date as local midnight in loc.
func ContractStartIn(contractStart time.Time, loc *time.Location) time.Time {
	y, m, d := contractStart.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func anniversary(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, min(day, DaysIn(year, month)), 0, 0, 0, 0, loc)
}

func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
