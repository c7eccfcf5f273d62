package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/icodeforyou/ostrom-go/types"
)

// SaveReadings stores the prices and consumption of one fetch in a single
// transaction.
func (d *Database) SaveReadings(ctx context.Context, r types.Readings) error {
	d.logger.Debug("saving readings",
		"prices", len(r.SpotPrices),
		"consumptions", len(r.Consumptions))

	return d.inTx(ctx, func(tx *sql.Tx) error {
		if err := saveSpotPrices(ctx, tx, r.SpotPrices); err != nil {
			return err
		}
		return saveConsumptions(ctx, tx, r.Consumptions)
	})
}

func (d *Database) SaveSnapshot(ctx context.Context, s types.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshalling snapshot to JSON: %w", err)
	}

	_, err = d.write.ExecContext(ctx, `
		INSERT INTO snapshot (created, ok, data)
		VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339),
		s.Ok,
		string(data))
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	return nil
}

// LatestSnapshot returns the most recently stored snapshot, ok is false when
// none has been stored yet.
func (d *Database) LatestSnapshot(ctx context.Context) (types.Snapshot, bool, error) {
	row := d.read.QueryRowContext(ctx, `
		SELECT data
		FROM snapshot
		ORDER BY id DESC
		LIMIT 1`)

	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Snapshot{}, false, nil
	}
	if err != nil {
		return types.Snapshot{}, false, fmt.Errorf("fetching latest snapshot: %w", err)
	}

	var s types.Snapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return types.Snapshot{}, false, fmt.Errorf("unmarshalling snapshot from JSON: %w", err)
	}

	return s, true, nil
}

// PurgeSnapshots keeps the newest keep snapshots.
func (d *Database) PurgeSnapshots(ctx context.Context, keep int) error {
	d.logger.Debug("purging snapshots")
	_, err := d.write.ExecContext(ctx, `
		DELETE FROM snapshot WHERE id <= (SELECT id FROM snapshot ORDER BY id DESC LIMIT 1 OFFSET ?)`, keep)
	if err != nil {
		return fmt.Errorf("purging snapshots: %w", err)
	}
	return nil
}

func (d *Database) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
