package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/ostrom-go/hours"
	"github.com/icodeforyou/ostrom-go/sensor"
	"github.com/icodeforyou/ostrom-go/slice"
	"github.com/icodeforyou/ostrom-go/types"
)

const maxPriceDays = 400

// NewPricesHandler lists the stored total prices of the last ?days=N days,
// default 7, oldest first.
func NewPricesHandler(logger *slog.Logger, db Store, now func() time.Time, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := intOrDefault(r.URL, "days", 7)
		if days < 1 || days > maxPriceDays {
			http.Error(w, "days must be between 1 and 400", http.StatusBadRequest)
			return
		}

		from := hours.Today(now(), loc).Start.AddDate(0, 0, -days)
		prices, err := db.SpotPricesFrom(r.Context(), from)
		if err != nil {
			logger.Error("handling prices request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, http.StatusOK, slice.Map(prices, func(p types.SpotPrice) sensor.Point {
			total := p.Total()
			return sensor.Point{Datetime: sensor.FormatTime(p.StartsAt), Value: &total}
		}))
	}
}
