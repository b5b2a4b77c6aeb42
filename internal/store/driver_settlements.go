package store

import "context"

// InsertDriverSettlement records one payout batch.
func (q *Queries) InsertDriverSettlement(ctx context.Context, s DriverSettlement) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO driver_settlements (id, driver_id, amount_paid, earning_ids, note)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.DriverID, s.AmountPaid, s.EarningIDs, s.Note,
	)
	return err
}

// ListDriverSettlements returns a page of a driver's payout batches, newest
// first.
func (q *Queries) ListDriverSettlements(ctx context.Context, driverID string, limit, offset int32) ([]DriverSettlement, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, driver_id, settled_at, amount_paid, earning_ids, note
		FROM driver_settlements
		WHERE driver_id = $1
		ORDER BY settled_at DESC LIMIT $2 OFFSET $3`, driverID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DriverSettlement
	for rows.Next() {
		var s DriverSettlement
		if err := rows.Scan(&s.ID, &s.DriverID, &s.SettledAt, &s.AmountPaid, &s.EarningIDs, &s.Note); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SumDriverSettlements totals everything ever paid out to a driver.
func (q *Queries) SumDriverSettlements(ctx context.Context, driverID string) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(sum(amount_paid), 0) FROM driver_settlements
		WHERE driver_id = $1`, driverID).Scan(&total)
	return total, err
}
