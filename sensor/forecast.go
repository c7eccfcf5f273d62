package sensor

import (
	"time"

	"github.com/icodeforyou/ostrom-go/slice"
	"github.com/icodeforyou/ostrom-go/types"
	"github.com/icodeforyou/ostrom-go/types/maybe"
)

type Point struct {
	Datetime string   `json:"datetime"`
	Value    *float64 `json:"value"`
}

type PricePoint struct {
	Date       string   `json:"date"`
	TotalPrice *float64 `json:"total_price"`
}

// ForecastAttributes is the chart friendly price series of a snapshot.
type ForecastAttributes struct {
	State                     *float64    `json:"state"`
	Forecast                  []Point     `json:"forecast"`
	MinimumPriceToday         *PricePoint `json:"minimum_price_today"`
	MinimumPriceUpcomingToday *PricePoint `json:"minimum_price_upcoming_today"`
	MinimumPriceTomorrow      *PricePoint `json:"minimum_price_tomorrow"`
	MinimumPriceAllAvailable  *PricePoint `json:"minimum_price_all_available"`
	LowestPrice               *float64    `json:"lowest_price"`
	LowestPriceTime           *string     `json:"lowest_price_time"`
	Count                     int         `json:"forecast_count"`
	First                     *string     `json:"forecast_first"`
	Last                      *string     `json:"forecast_last"`
	FutureCount               int         `json:"forecast_future_count"`
}

// Forecast lists every spot price of the snapshot. FutureCount counts the
// hours starting at or after now.
func Forecast(s types.Snapshot, now time.Time) ForecastAttributes {
	f := ForecastAttributes{
		State:    totalPrice(s.PriceNow),
		Forecast: make([]Point, 0, len(s.SpotPrices)),
	}
	if len(s.SpotPrices) == 0 {
		return f
	}

	f.Forecast = slice.Map(s.SpotPrices, func(p types.SpotPrice) Point {
		return Point{Datetime: FormatTime(p.StartsAt), Value: totalPrice(maybe.Some(p))}
	})
	f.FutureCount = len(slice.Filter(s.SpotPrices, func(p types.SpotPrice) bool { return !p.StartsAt.Before(now) }))

	f.MinimumPriceToday = PriceAt(s.MinToday)
	f.MinimumPriceUpcomingToday = PriceAt(s.MinTodayFromNow)
	f.MinimumPriceTomorrow = PriceAt(s.MinTomorrow)
	f.MinimumPriceAllAvailable = PriceAt(s.MinAllAvailable)
	f.LowestPrice = totalPrice(s.MinTodayFromNow)
	f.LowestPriceTime = priceTime(s.MinTodayFromNow)

	f.Count = len(f.Forecast)
	f.First = &f.Forecast[0].Datetime
	f.Last = &f.Forecast[len(f.Forecast)-1].Datetime
	return f
}

// PriceAt is the rounded total price of p and its start time, nil when absent.
func PriceAt(p maybe.Maybe[types.SpotPrice]) *PricePoint {
	return maybe.Map(p, func(p types.SpotPrice) PricePoint {
		return PricePoint{Date: FormatTime(p.StartsAt), TotalPrice: totalPrice(maybe.Some(p))}
	}).Ptr()
}
