package store

import (
	"context"
	"time"
)

const earningColumns = `id, driver_id, order_id, earned_on, amount, bonus,
	delivery_number, is_settled, created_at`

func scanEarning(row interface{ Scan(dest ...any) error }) (DriverEarning, error) {
	var e DriverEarning
	err := row.Scan(&e.ID, &e.DriverID, &e.OrderID, &e.EarnedOn, &e.Amount, &e.Bonus,
		&e.DeliveryNumber, &e.IsSettled, &e.CreatedAt)
	return e, err
}

// GetEarningByDriverOrder fetches the earning for a (driver, order) pair.
func (q *Queries) GetEarningByDriverOrder(ctx context.Context, driverID, orderID string) (DriverEarning, error) {
	return scanEarning(q.db.QueryRow(ctx, `
		SELECT `+earningColumns+` FROM driver_earnings
		WHERE driver_id = $1 AND order_id = $2`, driverID, orderID))
}

// NextDeliveryNumber atomically advances and returns the driver's forward-only
// delivery counter. Run inside the same transaction as the earning insert so a
// failed insert rolls the increment back.
func (q *Queries) NextDeliveryNumber(ctx context.Context, driverID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		INSERT INTO driver_counters (driver_id, deliveries) VALUES ($1, 1)
		ON CONFLICT (driver_id) DO UPDATE SET deliveries = driver_counters.deliveries + 1
		RETURNING deliveries`, driverID).Scan(&n)
	return n, err
}

// InsertDriverEarning writes one earning row. The unique (driver_id, order_id)
// constraint is the duplicate guard; callers translate the violation.
func (q *Queries) InsertDriverEarning(ctx context.Context, e DriverEarning) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO driver_earnings (id, driver_id, order_id, amount, bonus, delivery_number)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.DriverID, e.OrderID, e.Amount, e.Bonus, e.DeliveryNumber,
	)
	return err
}

// LockEarningsForSettlement fetches the named earnings restricted to the
// driver, locking the rows for the duration of the transaction.
func (q *Queries) LockEarningsForSettlement(ctx context.Context, driverID string, ids []string) ([]DriverEarning, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+earningColumns+` FROM driver_earnings
		WHERE driver_id = $1 AND id = ANY($2)
		ORDER BY delivery_number
		FOR UPDATE`, driverID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DriverEarning
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkEarningsSettled flips the named earnings to settled.
func (q *Queries) MarkEarningsSettled(ctx context.Context, ids []string) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE driver_earnings SET is_settled = TRUE
		WHERE id = ANY($1) AND NOT is_settled`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SumEarnings totals a driver's earnings between from (inclusive) and until
// (exclusive). Pass zero times for an unbounded range and nil for settled to
// include both settled and pending rows.
func (q *Queries) SumEarnings(ctx context.Context, driverID string, from, until time.Time, settled *bool) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(sum(amount), 0) FROM driver_earnings
		WHERE driver_id = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		  AND ($4::boolean IS NULL OR is_settled = $4)`,
		driverID, nullableTime(from), nullableTime(until), settled).Scan(&total)
	return total, err
}

// DailyEarningsRow is one day of a driver's earnings breakdown.
type DailyEarningsRow struct {
	Day        time.Time
	Deliveries int64
	Amount     int64
}

// DailyEarnings returns a per-day breakdown for the given range.
func (q *Queries) DailyEarnings(ctx context.Context, driverID string, from, until time.Time) ([]DailyEarningsRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT date_trunc('day', created_at) AS day, count(*), COALESCE(sum(amount), 0)
		FROM driver_earnings
		WHERE driver_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY day ORDER BY day`, driverID, from, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailyEarningsRow
	for rows.Next() {
		var r DailyEarningsRow
		if err := rows.Scan(&r.Day, &r.Deliveries, &r.Amount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentEarningRow is an earning joined with its order context.
type RecentEarningRow struct {
	Earning   DriverEarning
	OrderCode string
	HotelID   string
}

// RecentEarnings returns the driver's most recent earnings with order context.
func (q *Queries) RecentEarnings(ctx context.Context, driverID string, limit int32) ([]RecentEarningRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT e.id, e.driver_id, e.order_id, e.earned_on, e.amount, e.bonus,
			e.delivery_number, e.is_settled, e.created_at, o.code, o.hotel_id
		FROM driver_earnings e
		JOIN orders o ON o.id = e.order_id
		WHERE e.driver_id = $1
		ORDER BY e.created_at DESC
		LIMIT $2`, driverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecentEarningRow
	for rows.Next() {
		var r RecentEarningRow
		e := &r.Earning
		if err := rows.Scan(&e.ID, &e.DriverID, &e.OrderID, &e.EarnedOn, &e.Amount, &e.Bonus,
			&e.DeliveryNumber, &e.IsSettled, &e.CreatedAt, &r.OrderCode, &r.HotelID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
