package www

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/icodeforyou/ostrom-go/config"
	"github.com/icodeforyou/ostrom-go/coordinator"
	"github.com/icodeforyou/ostrom-go/database"
	"github.com/icodeforyou/ostrom-go/sensor"
	"github.com/icodeforyou/ostrom-go/types"
	"github.com/icodeforyou/ostrom-go/types/maybe"
	"github.com/icodeforyou/ostrom-go/www/chartjs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hour10 = time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)

type stubCoordinator struct {
	snapshot  types.Snapshot
	has       bool
	refreshes int
	reinits   int
}

func (c *stubCoordinator) Snapshot() (types.Snapshot, bool) { return c.snapshot, c.has }

func (c *stubCoordinator) Refresh(ctx context.Context) types.Snapshot {
	c.refreshes++
	return c.snapshot
}

func (c *stubCoordinator) Reinitialize(ctx context.Context) types.Snapshot {
	c.reinits++
	return c.snapshot
}

func (c *stubCoordinator) State() coordinator.State { return coordinator.ReadyWithError }

func (c *stubCoordinator) RetryPending() bool { return true }

type stubStore struct {
	minLvl slog.Level
	from   time.Time
	prices []types.SpotPrice
	err    error
}

func (l *stubStore) SpotPricesFrom(ctx context.Context, from time.Time) ([]types.SpotPrice, error) {
	l.from = from
	return l.prices, l.err
}

func (l *stubStore) GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error) {
	l.minLvl = minLvl
	if l.err != nil {
		return nil, l.err
	}
	return []database.LogEntryRow{{Timestamp: hour10, Level: int(slog.LevelWarn), Message: "retry scheduled"}}, nil
}

func snapshot() types.Snapshot {
	var prices []types.SpotPrice
	var consumptions []types.Consumption
	start := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 48; h++ {
		t := start.Add(time.Duration(h) * time.Hour)
		gross := 0.2
		if h == 36 {
			gross = 0.05
		}
		prices = append(prices, types.SpotPrice{StartsAt: t, GrossPerKWh: gross, GrossTaxPerKWh: 0.1})
		if h < 24 {
			consumptions = append(consumptions, types.Consumption{StartsAt: t, KWh: 0.5})
		}
	}
	return types.Snapshot{
		Ok:           true,
		Timestamp:    maybe.Some(hour10),
		PriceNow:     maybe.Some(prices[34]),
		SpotPrices:   prices,
		Consumptions: consumptions,
	}
}

func newTestServer(coord Coordinator, db Store) *Server {
	s := NewServer(coord, db, config.AppConfigApi{}, "1.2.3")
	s.now = func() time.Time { return hour10.Add(15 * time.Minute) }
	s.loc = time.UTC
	return s
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestSnapshotHandler(t *testing.T) {
	s := newTestServer(&stubCoordinator{}, &stubStore{})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/api/snapshot").Code)

	s = newTestServer(&stubCoordinator{snapshot: snapshot(), has: true}, &stubStore{})
	rec := do(t, s, http.MethodGet, "/api/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, 0.3, body["electricity_price"])
	assert.Equal(t, "2024-03-10T10:00:00Z", body["timestamp"])
	assert.Nil(t, body["minimum_price_tomorrow"])
}

func TestForecastHandler(t *testing.T) {
	s := newTestServer(&stubCoordinator{snapshot: snapshot(), has: true}, &stubStore{})
	rec := do(t, s, http.MethodGet, "/api/forecast")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count       int `json:"forecast_count"`
		FutureCount int `json:"forecast_future_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 48, body.Count)
	assert.Equal(t, 13, body.FutureCount)
}

func TestMinimumHandler(t *testing.T) {
	s := newTestServer(&stubCoordinator{snapshot: snapshot(), has: true}, &stubStore{})

	tests := []struct {
		target   string
		code     int
		expected string
	}{
		{"/api/minimum", http.StatusOK, "2024-03-10T11:00:00Z"},
		{"/api/minimum?hours=6", http.StatusOK, "2024-03-10T12:00:00Z"},
		{"/api/minimum?hours=0", http.StatusBadRequest, ""},
		{"/api/minimum?hours=49", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.target)
			require.Equal(t, tt.code, rec.Code)
			if tt.expected == "" {
				return
			}
			var body minimumResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.NotNil(t, body.Minimum)
			assert.Equal(t, tt.expected, body.Minimum.Date)
		})
	}
}

func TestRefreshHandler(t *testing.T) {
	coord := &stubCoordinator{snapshot: types.Snapshot{}.WithError("ostrom authentication failed"), has: true}
	s := newTestServer(coord, &stubStore{})

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodGet, "/api/refresh").Code)

	rec := do(t, s, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, coord.refreshes)
	assert.Contains(t, rec.Body.String(), `"status":"Error"`)
	assert.Contains(t, rec.Body.String(), "ostrom authentication failed")

	rec = do(t, s, http.MethodPost, "/api/refresh?reinit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, coord.reinits)
	assert.Equal(t, 1, coord.refreshes)
}

func TestLogHandler(t *testing.T) {
	db := &stubStore{}
	s := newTestServer(&stubCoordinator{}, db)

	rec := do(t, s, http.MethodGet, "/api/log?level=warn&page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, slog.LevelWarn, db.minLvl)

	var body logPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Page)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "WARN", body.Entries[0].Level)

	db.err = errors.New("database is locked")
	assert.Equal(t, http.StatusInternalServerError, do(t, s, http.MethodGet, "/api/log").Code)
}

func TestChartHandler(t *testing.T) {
	s := newTestServer(&stubCoordinator{snapshot: snapshot(), has: true}, &stubStore{})
	rec := do(t, s, http.MethodGet, "/api/chart")
	require.Equal(t, http.StatusOK, rec.Code)

	var charts []chartjs.Chart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &charts))
	require.Len(t, charts, 2)

	today := charts[0].Data.Datasets[0].Data
	require.NotNil(t, today[12])
	assert.Equal(t, 0.15, *today[12])
	assert.Nil(t, charts[0].Data.Datasets[1].Data[0], "no prices for tomorrow")

	cost := charts[1].Data.Datasets[1].Data
	require.NotNil(t, cost[0])
	assert.Equal(t, 0.15, *cost[0])
}

func TestSysInfoHandler(t *testing.T) {
	s := newTestServer(&stubCoordinator{}, &stubStore{})
	rec := do(t, s, http.MethodGet, "/api/sys_info")
	require.Equal(t, http.StatusOK, rec.Code)

	var info SysInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "ready_with_error", info.State)
	assert.True(t, info.RetryPending)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&stubCoordinator{}, &stubStore{})
	rec := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}

func TestPricesHandler(t *testing.T) {
	db := &stubStore{prices: []types.SpotPrice{{StartsAt: hour10, GrossPerKWh: 0.2, GrossTaxPerKWh: 0.1}}}
	s := newTestServer(&stubCoordinator{}, db)

	rec := do(t, s, http.MethodGet, "/api/prices?days=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), db.from)

	var points []sensor.Point
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 1)
	assert.Equal(t, "2024-03-10T10:00:00Z", points[0].Datetime)
	require.NotNil(t, points[0].Value)
	assert.InDelta(t, 0.3, *points[0].Value, 1e-9)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/prices?days=0").Code)

	db.err = errors.New("disk full")
	assert.Equal(t, http.StatusInternalServerError, do(t, s, http.MethodGet, "/api/prices").Code)
}
