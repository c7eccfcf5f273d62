package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostrom_refresh_total",
			Help: "Total number of refresh cycles per result",
		},
		[]string{"result"},
	)

	RefreshDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ostrom_refresh_duration_seconds",
			Help:    "Duration of a refresh cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotOk = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ostrom_snapshot_ok",
			Help: "1 when the latest snapshot is healthy, 0 otherwise",
		},
	)

	PriceEuroPerKWh = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ostrom_price_eur_per_kwh",
			Help: "Gross price including taxes and levies per kind",
		},
		[]string{"kind"},
	)

	RecordsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostrom_records_rejected_total",
			Help: "Total number of API records dropped while parsing",
		},
		[]string{"endpoint"},
	)
)

func ObserveRefresh(startedAt time.Time, err error) {
	RefreshDurationSeconds.Observe(time.Since(startedAt).Seconds())
	if err != nil {
		RefreshTotal.WithLabelValues("error").Inc()
		SnapshotOk.Set(0)
		return
	}
	RefreshTotal.WithLabelValues("ok").Inc()
	SnapshotOk.Set(1)
}

// SetPrice updates one price gauge. A nil value removes it.
func SetPrice(kind string, value *float64) {
	if value == nil {
		PriceEuroPerKWh.DeleteLabelValues(kind)
		return
	}
	PriceEuroPerKWh.WithLabelValues(kind).Set(*value)
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ostrom_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ostrom_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ostrom_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
