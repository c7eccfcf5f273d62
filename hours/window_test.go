package hours

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}
	return loc
}

func TestWindowContains(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	w := Window{Start: start, End: start.Add(24 * time.Hour)}

	tests := []struct {
		name     string
		t        time.Time
		expected bool
	}{
		{"start is included", start, true},
		{"inside", start.Add(5 * time.Hour), true},
		{"end is excluded", start.Add(24 * time.Hour), false},
		{"before start", start.Add(-time.Nanosecond), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.t); got != tt.expected {
				t.Errorf("Contains(%v) expected %v, got %v", tt.t, tt.expected, got)
			}
		})
	}
}

func TestDayWindows(t *testing.T) {
	berlin := mustLoad(t, "Europe/Berlin")
	// 23:30 UTC on Jan 1 is already Jan 2 in Berlin
	now := time.Date(2025, time.January, 1, 23, 30, 0, 0, time.UTC)

	today := Today(now, berlin)
	if expected := time.Date(2025, time.January, 2, 0, 0, 0, 0, berlin); !today.Start.Equal(expected) {
		t.Errorf("Today start expected %v, got %v", expected, today.Start)
	}
	if expected := time.Date(2025, time.January, 3, 0, 0, 0, 0, berlin); !today.End.Equal(expected) {
		t.Errorf("Today end expected %v, got %v", expected, today.End)
	}

	yesterday := Yesterday(now, berlin)
	if !yesterday.End.Equal(today.Start) {
		t.Errorf("Yesterday should end where today starts, got %v", yesterday)
	}

	tomorrow := Tomorrow(now, berlin)
	if !tomorrow.Start.Equal(today.End) {
		t.Errorf("Tomorrow should start where today ends, got %v", tomorrow)
	}
}

func TestDayAcrossDST(t *testing.T) {
	berlin := mustLoad(t, "Europe/Berlin")
	now := time.Date(2025, time.March, 30, 12, 0, 0, 0, berlin)
	day := Day(now, berlin)
	if got := day.End.Sub(day.Start); got != 23*time.Hour {
		t.Errorf("expected a 23h day at spring DST change, got %v", got)
	}
}

func TestMonthAndYear(t *testing.T) {
	now := time.Date(2024, time.December, 15, 10, 0, 0, 0, time.UTC)

	m := Month(now, time.UTC)
	if !m.Start.Equal(time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected month start %v", m.Start)
	}
	if !m.End.Equal(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected month end %v", m.End)
	}

	y := Year(now, time.UTC)
	if !y.Start.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected year start %v", y.Start)
	}
	if !y.End.Equal(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected year end %v", y.End)
	}
}

func TestContractYear(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name          string
		contractStart time.Time
		now           time.Time
		expectedStart time.Time
		expectedEnd   time.Time
	}{
		{
			name:          "anniversary already passed this year",
			contractStart: date(2020, time.March, 15),
			now:           date(2025, time.June, 1),
			expectedStart: date(2025, time.March, 15),
			expectedEnd:   date(2026, time.March, 15),
		},
		{
			name:          "anniversary not yet reached this year",
			contractStart: date(2020, time.March, 15),
			now:           date(2025, time.February, 1),
			expectedStart: date(2024, time.March, 15),
			expectedEnd:   date(2025, time.March, 15),
		},
		{
			name:          "on the anniversary itself",
			contractStart: date(2020, time.March, 15),
			now:           date(2025, time.March, 15),
			expectedStart: date(2025, time.March, 15),
			expectedEnd:   date(2026, time.March, 15),
		},
		{
			name:          "feb 29 clamps to feb 28 in non-leap year",
			contractStart: date(2020, time.February, 29),
			now:           date(2025, time.June, 1),
			expectedStart: date(2025, time.February, 28),
			expectedEnd:   date(2026, time.February, 28),
		},
		{
			name:          "feb 29 kept in leap year",
			contractStart: date(2020, time.February, 29),
			now:           date(2024, time.March, 1),
			expectedStart: date(2024, time.February, 29),
			expectedEnd:   date(2025, time.February, 28),
		},
		{
			name:          "feb 29 contract before anniversary in non-leap year",
			contractStart: date(2020, time.February, 29),
			now:           date(2025, time.February, 27),
			expectedStart: date(2024, time.February, 29),
			expectedEnd:   date(2025, time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ContractYear(tt.contractStart, tt.now, time.UTC)
			if !w.Start.Equal(tt.expectedStart) {
				t.Errorf("start expected %v, got %v", tt.expectedStart, w.Start)
			}
			if !w.End.Equal(tt.expectedEnd) {
				t.Errorf("end expected %v, got %v", tt.expectedEnd, w.End)
			}
		})
	}
}

func TestDaysIn(t *testing.T) {
	if got := DaysIn(2024, time.February); got != 29 {
		t.Errorf("expected 29 days in Feb 2024, got %d", got)
	}
	if got := DaysIn(2025, time.February); got != 28 {
		t.Errorf("expected 28 days in Feb 2025, got %d", got)
	}
	if got := DaysIn(2025, time.December); got != 31 {
		t.Errorf("expected 31 days in Dec 2025, got %d", got)
	}
}

func TestContractYearZonedStart(t *testing.T) {
	berlin := mustLoad(t, "Europe/Berlin")
	// 2023-03-01 00:00 Berlin, recorded with its offset
	start := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.FixedZone("", 3600))
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, berlin)

	w := ContractYear(start, now, berlin)
	if expected := time.Date(2024, time.March, 1, 0, 0, 0, 0, berlin); !w.Start.Equal(expected) {
		t.Errorf("start expected %v, got %v", expected, w.Start)
	}
	if expected := time.Date(2025, time.March, 1, 0, 0, 0, 0, berlin); !w.End.Equal(expected) {
		t.Errorf("end expected %v, got %v", expected, w.End)
	}

	if got := ContractStartIn(start.UTC(), berlin); !got.Equal(time.Date(2023, time.March, 1, 0, 0, 0, 0, berlin)) {
		t.Errorf("contract start expected 2023-03-01 in Berlin, got %v", got)
	}

	naive := time.Date(2023, time.March, 1, 0, 0, 0, 0, berlin)
	if got := ContractStartIn(naive, berlin); got.Day() != 1 || got.Month() != time.March {
		t.Errorf("wall date of a date-only start must be kept, got %v", got)
	}
}
