package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/icodeforyou/ostrom-go/config"
	"github.com/icodeforyou/ostrom-go/metrics"
	"github.com/icodeforyou/ostrom-go/types"
)

type Refresher interface {
	Refresh(ctx context.Context) types.Snapshot
}

// NewRefreshTask is the scheduled tick. Failures are handled and retried by
// the refresher itself, the task only reports the outcome.
func NewRefreshTask(logger *slog.Logger, refresher Refresher, cnfg config.AppConfigRefresh) func() {
	return func() {
		logger.Debug("running refresh task...")
		startedAt := time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), cnfg.GetTimeout())
		defer cancel()

		s := refresher.Refresh(ctx)
		if !s.Ok {
			logger.Warn("refresh task done with error", slog.String("error", s.Error))
			metrics.UpdateJobMetrics("refresh", startedAt, errors.New(s.Error))
			return
		}

		metrics.UpdateJobMetrics("refresh", startedAt, nil)
		logger.Info("refresh task done", slog.Duration("duration", time.Since(startedAt)))
	}
}
