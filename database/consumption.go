package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/icodeforyou/ostrom-go/hours"
	"github.com/icodeforyou/ostrom-go/types"
)

func (d *Database) SaveConsumptions(ctx context.Context, consumptions []types.Consumption) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		return saveConsumptions(ctx, tx, consumptions)
	})
}

func saveConsumptions(ctx context.Context, tx *sql.Tx, consumptions []types.Consumption) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO consumption (date, hour, kwh) VALUES (?, ?, ?)
		ON CONFLICT(date, hour) DO UPDATE SET kwh = excluded.kwh`)
	if err != nil {
		return fmt.Errorf("preparing consumption upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range consumptions {
		dh := hours.FromTime(c.StartsAt)
		if _, err := stmt.ExecContext(ctx, dh.Date, dh.Hour, c.KWh); err != nil {
			return fmt.Errorf("saving consumption for %s: %w", dh, err)
		}
	}
	return nil
}

// ConsumptionSince returns the stored hourly consumption starting at or
// after since, oldest first.
func (d *Database) ConsumptionSince(ctx context.Context, since time.Time) ([]types.Consumption, error) {
	dh := hours.FromTime(since)
	rows, err := d.read.QueryContext(ctx, `
		SELECT date, hour, kwh
		FROM consumption
		WHERE (date = ? AND hour >= ?) OR date > ?
		ORDER BY date, hour ASC`,
		dh.Date, dh.Hour, dh.Date)
	if err != nil {
		return nil, fmt.Errorf("fetching consumption since %s: %w", dh, err)
	}
	defer rows.Close()

	var consumptions []types.Consumption
	for rows.Next() {
		var when hours.DateHour
		var c types.Consumption
		if err := rows.Scan(&when.Date, &when.Hour, &c.KWh); err != nil {
			return nil, fmt.Errorf("scanning consumption row: %w", err)
		}
		c.StartsAt = when.Time()
		consumptions = append(consumptions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading consumption rows: %w", err)
	}

	return consumptions, nil
}

func (d *Database) PurgeConsumption(ctx context.Context, retentionDays int) error {
	return d.purgeTable(ctx, "consumption", time.Now(), retentionDays)
}
