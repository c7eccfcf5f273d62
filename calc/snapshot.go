package calc

import (
	"errors"
	"time"

	"github.com/icodeforyou/ostrom-go/hours"
	"github.com/icodeforyou/ostrom-go/types"
	"github.com/icodeforyou/ostrom-go/types/maybe"
)

// ErrNoCurrentPrice means the price list had no entry to use as the current price.
var ErrNoCurrentPrice = errors.New("no current spot price available")

// Input is everything a snapshot is computed from.
type Input struct {
	Now      time.Time
	Location *time.Location

	SpotPrices   []types.SpotPrice
	Consumptions []types.Consumption
	// History is the longer consumption record used for the month, year and
	// contract year totals. Consumptions is used when it is empty.
	History []types.Consumption

	ContractStart  maybe.Maybe[time.Time]
	MonthlyDeposit maybe.Maybe[float64]
	ProductCode    string
}

// InputFor prepares an Input for readings and an optional contract.
func InputFor(now time.Time, loc *time.Location, r types.Readings, contract maybe.Maybe[types.Contract]) Input {
	in := Input{
		Now:          now,
		Location:     loc,
		SpotPrices:   r.SpotPrices,
		Consumptions: r.Consumptions,
	}
	if c, ok := contract.Get(); ok {
		in.ContractStart = maybe.Some(c.StartDate)
		in.MonthlyDeposit = maybe.Some(c.MonthlyDeposit)
		in.ProductCode = c.ProductCode
	}
	return in
}

// FromData assembles the snapshot. Only the current price is required, every
// other figure is left empty when it cannot be computed.
func FromData(in Input) (types.Snapshot, error) {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	current := FindCurrent(in.SpotPrices, in.Now)
	now, ok := current.Get()
	if !ok {
		return types.Snapshot{}, ErrNoCurrentPrice
	}

	fromNow := MinimumTodayFromNow(in.SpotPrices, in.Now, loc)

	yesterday := hours.Yesterday(in.Now, loc)
	month := hours.Month(in.Now, loc)
	year := hours.Year(in.Now, loc)

	source := in.History
	if len(source) == 0 {
		source = in.Consumptions
	}

	s := types.Snapshot{
		Ok:        true,
		Timestamp: maybe.Some(now.StartsAt),

		PriceNow:        current,
		MinToday:        MinimumToday(in.SpotPrices, in.Now, loc),
		MinTodayFromNow: fromNow,
		MinTomorrow:     MinimumTomorrow(in.SpotPrices, in.Now, loc),
		MinAllAvailable: MinimumAllAvailable(in.SpotPrices),
		MinimumIsNow:    MinimumIsCurrent(current, fromNow),

		ConsumptionYesterday: TotalConsumption(in.Consumptions, yesterday.Start, yesterday.End),
		CostYesterday:        TotalCost(in.Consumptions, in.SpotPrices, yesterday.Start, yesterday.End),
		ConsumptionThisMonth: TotalConsumption(source, month.Start, month.End),
		ConsumptionThisYear:  TotalConsumption(source, year.Start, year.End),

		MonthlyDeposit: in.MonthlyDeposit,
		ProductCode:    in.ProductCode,

		SpotPrices:   in.SpotPrices,
		Consumptions: in.Consumptions,
	}

	if start, ok := in.ContractStart.Get(); ok {
		cy := hours.ContractYear(start, in.Now, loc)
		s.ConsumptionThisContractYear = TotalConsumption(source, cy.Start, cy.End)
		s.ContractStart = maybe.Some(hours.ContractStartIn(start, loc))
	}

	return s, nil
}
