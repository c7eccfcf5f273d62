package calc

import (
	"slices"
	"time"

	"github.com/icodeforyou/ostrom-go/hours"
	"github.com/icodeforyou/ostrom-go/types"
	"github.com/icodeforyou/ostrom-go/types/maybe"
)

// chronological returns a copy of records sorted by time. Equal timestamps
// keep their input order.
func chronological[T types.Timed](records []T) []T {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b T) int {
		return a.When().Compare(b.When())
	})
	return sorted
}

// FindCurrent returns the latest record that is not in the future. When all
// records lie in the future the one closest to now is returned.
func FindCurrent[T types.Timed](records []T, now time.Time) maybe.Maybe[T] {
	if len(records) == 0 {
		return maybe.None[T]()
	}

	sorted := chronological(records)

	current := maybe.None[T]()
	for _, r := range sorted {
		if r.When().After(now) {
			break
		}
		current = maybe.Some(r)
	}
	if current.IsValid() {
		return current
	}

	return closest(sorted, now)
}

func closest[T types.Timed](records []T, target time.Time) maybe.Maybe[T] {
	result := maybe.None[T]()
	var minDiff time.Duration
	for _, r := range records {
		diff := r.When().Sub(target).Abs()
		if !result.IsValid() || diff < minDiff {
			minDiff = diff
			result = maybe.Some(r)
		}
	}
	return result
}

// MinimumInRange finds the cheapest price in [start, end). On equal prices
// the earliest one wins.
func MinimumInRange(prices []types.SpotPrice, start, end time.Time) maybe.Maybe[types.SpotPrice] {
	return minimum(prices, hours.Window{Start: start, End: end}.Contains)
}

func MinimumIn(prices []types.SpotPrice, w hours.Window) maybe.Maybe[types.SpotPrice] {
	return MinimumInRange(prices, w.Start, w.End)
}

func MinimumToday(prices []types.SpotPrice, now time.Time, loc *time.Location) maybe.Maybe[types.SpotPrice] {
	return MinimumIn(prices, hours.Today(now, loc))
}

// MinimumTodayFromNow includes the hour that is currently running, so a
// minimum active right now is reported as upcoming.
func MinimumTodayFromNow(prices []types.SpotPrice, now time.Time, loc *time.Location) maybe.Maybe[types.SpotPrice] {
	if len(prices) == 0 {
		return maybe.None[types.SpotPrice]()
	}

	start := now
	if current, ok := FindCurrent(prices, now).Get(); ok {
		start = current.StartsAt
	}
	return MinimumInRange(prices, start, hours.Today(now, loc).End)
}

func MinimumTomorrow(prices []types.SpotPrice, now time.Time, loc *time.Location) maybe.Maybe[types.SpotPrice] {
	return MinimumIn(prices, hours.Tomorrow(now, loc))
}

func MinimumAllAvailable(prices []types.SpotPrice) maybe.Maybe[types.SpotPrice] {
	return minimum(prices, func(time.Time) bool { return true })
}

// MinimumNextHours looks at [now, now + n hours).
func MinimumNextHours(prices []types.SpotPrice, now time.Time, n int) maybe.Maybe[types.SpotPrice] {
	return MinimumInRange(prices, now, now.Add(time.Duration(n)*time.Hour))
}

// MinimumIsCurrent reports whether the upcoming minimum is the current price.
func MinimumIsCurrent(current, fromNow maybe.Maybe[types.SpotPrice]) bool {
	c, ok := current.Get()
	if !ok {
		return false
	}
	m, ok := fromNow.Get()
	return ok && c.Equal(m)
}

func minimum(prices []types.SpotPrice, include func(time.Time) bool) maybe.Maybe[types.SpotPrice] {
	result := maybe.None[types.SpotPrice]()
	var minPrice float64
	for _, p := range chronological(prices) {
		if !include(p.StartsAt) {
			continue
		}
		price := GrossPrice(p)
		if !result.IsValid() || price < minPrice {
			minPrice = price
			result = maybe.Some(p)
		}
	}
	return result
}
