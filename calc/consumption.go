package calc

import (
	"time"

	"github.com/icodeforyou/ostrom-go/hours"
	"github.com/icodeforyou/ostrom-go/slice"
	"github.com/icodeforyou/ostrom-go/types"
	"github.com/icodeforyou/ostrom-go/types/maybe"
)

// TotalConsumption sums kWh in [start, end). An empty list has no total, a
// list without records in range totals zero.
func TotalConsumption(records []types.Consumption, start, end time.Time) maybe.Maybe[float64] {
	if len(records) == 0 {
		return maybe.None[float64]()
	}

	w := hours.Window{Start: start, End: end}
	inRange := slice.Filter(records, func(r types.Consumption) bool { return w.Contains(r.StartsAt) })
	return maybe.Some(slice.SumBy(inRange, func(r types.Consumption) float64 { return r.KWh }))
}

// TotalCost prices every consumption hour in [start, end) with the spot price
// of exactly the same hour. Hours without a price are skipped, when no hour
// matched there is no cost.
func TotalCost(consumptions []types.Consumption, prices []types.SpotPrice, start, end time.Time) maybe.Maybe[float64] {
	if len(consumptions) == 0 || len(prices) == 0 {
		return maybe.None[float64]()
	}

	byTime := make(map[int64]types.SpotPrice, len(prices))
	for _, p := range prices {
		byTime[p.StartsAt.UnixNano()] = p
	}

	w := hours.Window{Start: start, End: end}
	total := 0.0
	matched := false
	for _, c := range consumptions {
		if !w.Contains(c.StartsAt) {
			continue
		}
		p, ok := byTime[c.StartsAt.UnixNano()]
		if !ok {
			continue
		}
		matched = true
		total += HourCost(c.KWh, p)
	}

	if !matched {
		return maybe.None[float64]()
	}
	return maybe.Some(total)
}
