package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/ostrom-go/calc"
	"github.com/icodeforyou/ostrom-go/sensor"
	"github.com/icodeforyou/ostrom-go/types"
)

const maxMinimumHours = 48

func NewSnapshotHandler(logger *slog.Logger, coord Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := coord.Snapshot()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, logger, http.StatusOK, sensor.FromSnapshot(snap))
	}
}

func NewForecastHandler(logger *slog.Logger, coord Coordinator, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := coord.Snapshot()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, logger, http.StatusOK, sensor.Forecast(snap, now()))
	}
}

type minimumResponse struct {
	Hours   int                `json:"hours"`
	Minimum *sensor.PricePoint `json:"minimum"`
}

// NewMinimumHandler finds the cheapest hour within the next ?hours=N hours,
// default 3.
func NewMinimumHandler(logger *slog.Logger, coord Coordinator, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := intOrDefault(r.URL, "hours", 3)
		if n < 1 || n > maxMinimumHours {
			http.Error(w, "hours must be between 1 and 48", http.StatusBadRequest)
			return
		}

		snap, ok := coord.Snapshot()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		writeJSON(w, logger, http.StatusOK, minimumResponse{
			Hours:   n,
			Minimum: sensor.PriceAt(calc.MinimumNextHours(snap.SpotPrices, now(), n)),
		})
	}
}

// NewRefreshHandler runs a refresh now, or joins the one in flight. With
// ?reinit=1 the user and contracts are loaded again first.
func NewRefreshHandler(logger *slog.Logger, coord Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reinit := r.URL.Query().Get("reinit") == "1"
		logger.Info("manual refresh requested",
			slog.String("remoteAddr", r.RemoteAddr),
			slog.Bool("reinit", reinit))

		var snap types.Snapshot
		if reinit {
			snap = coord.Reinitialize(r.Context())
		} else {
			snap = coord.Refresh(r.Context())
		}
		writeJSON(w, logger, http.StatusOK, sensor.FromSnapshot(snap))
	}
}
