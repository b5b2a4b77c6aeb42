package store

import (
	"context"
)

const orderColumns = `id, code, customer_id, hotel_id, address_id, driver_id, promo_code_id,
	status, subtotal, gst_amount, delivery_charge, driver_compensation, platform_fee,
	discount, total_payable, round_off, payment_ref, driver_paid, hotel_settled,
	placed_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.Code, &o.CustomerID, &o.HotelID, &o.AddressID, &o.DriverID, &o.PromoCodeID,
		&o.Status, &o.Subtotal, &o.GSTAmount, &o.DeliveryCharge, &o.DriverCompensation, &o.PlatformFee,
		&o.Discount, &o.TotalPayable, &o.RoundOff, &o.PaymentRef, &o.DriverPaid, &o.HotelSettled,
		&o.PlacedAt, &o.UpdatedAt,
	)
	return o, err
}

// InsertOrder persists a freshly placed order with its frozen price breakdown.
func (q *Queries) InsertOrder(ctx context.Context, o Order) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO orders (id, code, customer_id, hotel_id, address_id, promo_code_id,
			status, subtotal, gst_amount, delivery_charge, driver_compensation, platform_fee,
			discount, total_payable, round_off, payment_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		o.ID, o.Code, o.CustomerID, o.HotelID, o.AddressID, o.PromoCodeID,
		o.Status, o.Subtotal, o.GSTAmount, o.DeliveryCharge, o.DriverCompensation, o.PlatformFee,
		o.Discount, o.TotalPayable, o.RoundOff, o.PaymentRef,
	)
	return err
}

// InsertOrderItem copies one cart line onto the order.
func (q *Queries) InsertOrderItem(ctx context.Context, it OrderItem) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO order_items (order_id, dish_id, name, qty, user_price, partner_price)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		it.OrderID, it.DishID, it.Name, it.Qty, it.UserPrice, it.PartnerPrice,
	)
	return err
}

// GetOrder fetches one order by id.
func (q *Queries) GetOrder(ctx context.Context, id string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// ListOrderItems returns the order's frozen cart lines.
func (q *Queries) ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, dish_id, name, qty, user_price, partner_price
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.DishID, &it.Name, &it.Qty, &it.UserPrice, &it.PartnerPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// AppendTimeline adds one immutable lifecycle entry.
func (q *Queries) AppendTimeline(ctx context.Context, orderID, title string, status int) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO order_timeline (order_id, title, status) VALUES ($1, $2, $3)`,
		orderID, title, status,
	)
	return err
}

// ListTimeline returns the order's lifecycle entries in insertion order.
func (q *Queries) ListTimeline(ctx context.Context, orderID string) ([]TimelineEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, title, status, created_at
		FROM order_timeline WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Title, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateOrderStatusIf transitions the order only when it is still in the
// expected source status. Returns false when another actor won the race.
func (q *Queries) UpdateOrderStatusIf(ctx context.Context, id string, from, to int) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AssignDriverIfUnassigned sets the delivery actor only when none is
// assigned yet, or when the same driver is assigned again.
func (q *Queries) AssignDriverIfUnassigned(ctx context.Context, id, driverID string) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE orders SET driver_id = $2, updated_at = now()
		WHERE id = $1 AND (driver_id IS NULL OR driver_id = $2)`, id, driverID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimHotelSettlement flips the settlement-created flag exactly once per
// order. The compare-and-swap is the idempotency guard for partner
// settlement creation.
func (q *Queries) ClaimHotelSettlement(ctx context.Context, orderID string) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE orders SET hotel_settled = TRUE, updated_at = now()
		WHERE id = $1 AND NOT hotel_settled`, orderID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetDriverPaid marks the order's driver compensation as recorded.
func (q *Queries) SetDriverPaid(ctx context.Context, orderID string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE orders SET driver_paid = TRUE, updated_at = now() WHERE id = $1`, orderID)
	return err
}

// CountOrdersByCustomer returns how many orders a customer has placed.
func (q *Queries) CountOrdersByCustomer(ctx context.Context, customerID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE customer_id = $1`, customerID).Scan(&n)
	return n, err
}
