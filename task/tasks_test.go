package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/icodeforyou/ostrom-go/config"
	"github.com/icodeforyou/ostrom-go/types"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubRefresher struct {
	calls    int
	snapshot types.Snapshot
	deadline bool
}

func (r *stubRefresher) Refresh(ctx context.Context) types.Snapshot {
	r.calls++
	_, r.deadline = ctx.Deadline()
	return r.snapshot
}

type stubStore struct {
	calls     []string
	retention int
	keep      int
	failLog   bool
}

func (s *stubStore) Backup(ctx context.Context) (string, error) {
	s.calls = append(s.calls, "backup")
	return "backup.zip", nil
}

func (s *stubStore) PurgeBackups(ctx context.Context, now time.Time, retentionDays int) error {
	s.calls = append(s.calls, "backups")
	return nil
}

func (s *stubStore) PurgeLog(ctx context.Context, maxLogEntries int) error {
	s.calls = append(s.calls, "log")
	if s.failLog {
		return errors.New("database is locked")
	}
	return nil
}

func (s *stubStore) PurgeSpotPrices(ctx context.Context, retentionDays int) error {
	s.calls = append(s.calls, "spot_price")
	s.retention = retentionDays
	return nil
}

func (s *stubStore) PurgeConsumption(ctx context.Context, retentionDays int) error {
	s.calls = append(s.calls, "consumption")
	return nil
}

func (s *stubStore) PurgeSnapshots(ctx context.Context, keep int) error {
	s.calls = append(s.calls, "snapshot")
	s.keep = keep
	return nil
}

func TestRefreshTask(t *testing.T) {
	tests := []struct {
		name     string
		snapshot types.Snapshot
	}{
		{"ok", types.Snapshot{Ok: true}},
		{"error", types.Snapshot{}.WithError("ostrom connection failed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRefresher{snapshot: tt.snapshot}
			NewRefreshTask(discard, r, config.AppConfigRefresh{})()
			if r.calls != 1 {
				t.Errorf("expected 1 refresh, got %d", r.calls)
			}
			if !r.deadline {
				t.Error("expected refresh context with deadline")
			}
		})
	}
}

func TestMaintenanceTask(t *testing.T) {
	retention := 30
	cnfg := &config.AppConfig{Database: config.AppConfigDatabase{DataRetentionDays: &retention}}
	store := &stubStore{failLog: true}

	NewMaintenanceTask(discard, store, cnfg)()

	expected := []string{"backup", "backups", "log", "spot_price", "consumption", "snapshot"}
	if len(store.calls) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, store.calls)
	}
	for i := range expected {
		if store.calls[i] != expected[i] {
			t.Errorf("expected %s at %d, got %s", expected[i], i, store.calls[i])
		}
	}
	if store.retention != 30 {
		t.Errorf("expected retention 30, got %d", store.retention)
	}
	if store.keep != 48 {
		t.Errorf("expected 48 snapshots kept, got %d", store.keep)
	}
}

func TestRunRejectsInvalidSchedule(t *testing.T) {
	runAt := "every hour"
	cnfg := &config.AppConfig{Refresh: config.AppConfigRefresh{RunAt: &runAt}}
	tasks := NewTasks(&stubRefresher{}, &stubStore{}, cnfg)

	defer func() {
		if recover() == nil {
			t.Error("expected a panic for an invalid cron spec")
		}
	}()
	tasks.Run()
}
