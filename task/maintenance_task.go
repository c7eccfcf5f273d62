package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/icodeforyou/ostrom-go/config"
	"github.com/icodeforyou/ostrom-go/metrics"
)

type MaintenanceStore interface {
	Backup(ctx context.Context) (string, error)
	PurgeBackups(ctx context.Context, now time.Time, retentionDays int) error
	PurgeLog(ctx context.Context, maxLogEntries int) error
	PurgeSpotPrices(ctx context.Context, retentionDays int) error
	PurgeConsumption(ctx context.Context, retentionDays int) error
	PurgeSnapshots(ctx context.Context, keep int) error
}

func NewMaintenanceTask(logger *slog.Logger, db MaintenanceStore, cnfg *config.AppConfig) func() {
	return func() {
		logger.Debug("running maintenance task...")
		startedAt := time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		var errs []error

		if _, err := db.Backup(ctx); err != nil {
			logger.Error("database backup error", slog.Any("error", err))
			errs = append(errs, err)
		}

		if err := db.PurgeBackups(ctx, startedAt, cnfg.Database.GetBackupRetentionDays()); err != nil {
			logger.Error("backup maintenance error", slog.Any("error", err))
			errs = append(errs, err)
		}

		if err := db.PurgeLog(ctx, cnfg.Logging.GetDbMaxEntries()); err != nil {
			logger.Error("log maintenance error", slog.Any("error", err))
			errs = append(errs, err)
		}

		if err := db.PurgeSpotPrices(ctx, cnfg.Database.GetDataRetentionDays()); err != nil {
			logger.Error("spot_price maintenance error", slog.Any("error", err))
			errs = append(errs, err)
		}

		if err := db.PurgeConsumption(ctx, cnfg.Database.GetDataRetentionDays()); err != nil {
			logger.Error("consumption maintenance error", slog.Any("error", err))
			errs = append(errs, err)
		}

		if err := db.PurgeSnapshots(ctx, cnfg.Database.GetSnapshotsToKeep()); err != nil {
			logger.Error("snapshot maintenance error", slog.Any("error", err))
			errs = append(errs, err)
		}

		metrics.UpdateJobMetrics("maintenance", startedAt, errors.Join(errs...))
		logger.Info("maintenance task done")
	}
}
