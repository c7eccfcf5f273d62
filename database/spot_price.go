package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/icodeforyou/ostrom-go/hours"
	"github.com/icodeforyou/ostrom-go/types"
)

func (d *Database) SaveSpotPrices(ctx context.Context, prices []types.SpotPrice) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		return saveSpotPrices(ctx, tx, prices)
	})
}

func saveSpotPrices(ctx context.Context, tx *sql.Tx, prices []types.SpotPrice) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO spot_price (date, hour, net_mwh, net_kwh, gross_kwh, net_tax_kwh, gross_tax_kwh,
			net_base_fee, gross_base_fee, net_grid_fee, gross_grid_fee)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, hour) DO UPDATE SET
			net_mwh = excluded.net_mwh,
			net_kwh = excluded.net_kwh,
			gross_kwh = excluded.gross_kwh,
			net_tax_kwh = excluded.net_tax_kwh,
			gross_tax_kwh = excluded.gross_tax_kwh,
			net_base_fee = excluded.net_base_fee,
			gross_base_fee = excluded.gross_base_fee,
			net_grid_fee = excluded.net_grid_fee,
			gross_grid_fee = excluded.gross_grid_fee`)
	if err != nil {
		return fmt.Errorf("preparing spot price upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		dh := hours.FromTime(p.StartsAt)
		_, err := stmt.ExecContext(ctx, dh.Date, dh.Hour,
			p.NetPerMWh, p.NetPerKWh, p.GrossPerKWh, p.NetTaxPerKWh, p.GrossTaxPerKWh,
			p.NetBaseFeePerMonth, p.GrossBaseFeePerMonth, p.NetGridFeePerMonth, p.GrossGridFeePerMonth)
		if err != nil {
			return fmt.Errorf("saving spot price for %s: %w", dh, err)
		}
	}
	return nil
}

// SpotPricesFrom returns stored prices starting at or after from, oldest first.
func (d *Database) SpotPricesFrom(ctx context.Context, from time.Time) ([]types.SpotPrice, error) {
	dh := hours.FromTime(from)
	rows, err := d.read.QueryContext(ctx, `
		SELECT date, hour, net_mwh, net_kwh, gross_kwh, net_tax_kwh, gross_tax_kwh,
			net_base_fee, gross_base_fee, net_grid_fee, gross_grid_fee
		FROM spot_price
		WHERE (date = ? AND hour >= ?) OR date > ?
		ORDER BY date, hour ASC`,
		dh.Date, dh.Hour, dh.Date)
	if err != nil {
		return nil, fmt.Errorf("fetching spot prices from %s: %w", dh, err)
	}
	defer rows.Close()

	var prices []types.SpotPrice
	for rows.Next() {
		var when hours.DateHour
		var p types.SpotPrice
		err := rows.Scan(&when.Date, &when.Hour,
			&p.NetPerMWh, &p.NetPerKWh, &p.GrossPerKWh, &p.NetTaxPerKWh, &p.GrossTaxPerKWh,
			&p.NetBaseFeePerMonth, &p.GrossBaseFeePerMonth, &p.NetGridFeePerMonth, &p.GrossGridFeePerMonth)
		if err != nil {
			return nil, fmt.Errorf("scanning spot price row: %w", err)
		}
		p.StartsAt = when.Time()
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading spot price rows: %w", err)
	}

	return prices, nil
}

func (d *Database) PurgeSpotPrices(ctx context.Context, retentionDays int) error {
	return d.purgeTable(ctx, "spot_price", time.Now(), retentionDays)
}
