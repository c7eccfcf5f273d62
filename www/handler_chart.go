package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/ostrom-go/calc"
	"github.com/icodeforyou/ostrom-go/hours"
	"github.com/icodeforyou/ostrom-go/www/chartjs"
)

// NewChartHandler returns two chart.js configs: today's and tomorrow's total
// price per hour, and yesterday's consumption with its hourly cost.
func NewChartHandler(logger *slog.Logger, coord Coordinator, now func() time.Time, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := coord.Snapshot()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		t := now()
		today := hours.Today(t, loc)
		tomorrow := hours.Tomorrow(t, loc)
		yesterday := hours.Yesterday(t, loc)

		// Chart 1: Price today and tomorrow
		chart1 := chartjs.NewChart("").
			WithLabel(0, "Today").
			WithLabel(1, "Tomorrow").
			OnSameAxis()
		for _, p := range snap.SpotPrices {
			if i, ok := hourIndex(today, p.StartsAt); ok {
				chart1.Data.Datasets[0].Data[i] = chartjs.FixedFloat64(p.Total(), 4)
			}
			if i, ok := hourIndex(tomorrow, p.StartsAt); ok {
				chart1.Data.Datasets[1].Data[i] = chartjs.FixedFloat64(p.Total(), 4)
			}
		}
		chart1.Options.Scales["YAxis1"] = chart1.Options.Scales["YAxis1"].
			WithTitle("Price (EUR/kWh)")

		// Chart 2: Consumption and cost yesterday
		chart2 := chartjs.NewChart("").
			WithLabel(0, "Consumption").
			WithLabel(1, "Cost")
		for _, c := range snap.Consumptions {
			i, ok := hourIndex(yesterday, c.StartsAt)
			if !ok {
				continue
			}
			chart2.Data.Datasets[0].Data[i] = chartjs.FixedFloat64(c.KWh, 3)
			if cost, ok := calc.TotalCost(snap.Consumptions, snap.SpotPrices, c.StartsAt, c.StartsAt.Add(time.Hour)).Get(); ok {
				chart2.Data.Datasets[1].Data[i] = chartjs.FixedFloat64(cost, 2)
			}
		}
		chart2.Options.Scales["YAxis1"] = chart2.Options.Scales["YAxis1"].
			WithTitle("Consumption (kWh)")
		chart2.Options.Scales["YAxis2"] = chart2.Options.Scales["YAxis2"].
			WithTitle("Cost (EUR)")

		writeJSON(w, logger, http.StatusOK, []chartjs.Chart{chart1, chart2})
	}
}

// hourIndex is the position of t within the day window w. Days with a
// daylight saving shift have more or less than 24 hours, hours past the
// chart are dropped.
func hourIndex(w hours.Window, t time.Time) (int, bool) {
	if !w.Contains(t) {
		return 0, false
	}
	i := int(t.Sub(w.Start) / time.Hour)
	return i, i < chartjs.NoOfHours
}
