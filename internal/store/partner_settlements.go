package store

import "context"

const partnerSettlementColumns = `id, hotel_id, order_id, dish_id, qty, partner_price,
	partner_earning, admin_earning, is_settled, settled_at, created_at`

func scanPartnerSettlement(row interface{ Scan(dest ...any) error }) (PartnerSettlement, error) {
	var s PartnerSettlement
	err := row.Scan(&s.ID, &s.HotelID, &s.OrderID, &s.DishID, &s.Qty, &s.PartnerPrice,
		&s.PartnerEarning, &s.AdminEarning, &s.IsSettled, &s.SettledAt, &s.CreatedAt)
	return s, err
}

// InsertPartnerSettlement writes one ledger row crediting a hotel partner.
func (q *Queries) InsertPartnerSettlement(ctx context.Context, s PartnerSettlement) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO partner_settlements (id, hotel_id, order_id, dish_id, qty,
			partner_price, partner_earning, admin_earning)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.HotelID, s.OrderID, s.DishID, s.Qty, s.PartnerPrice, s.PartnerEarning, s.AdminEarning,
	)
	return err
}

// ListPartnerSettlementsByOrder returns the ledger rows for one order.
func (q *Queries) ListPartnerSettlementsByOrder(ctx context.Context, orderID string) ([]PartnerSettlement, error) {
	return q.listPartnerSettlements(ctx, `
		SELECT `+partnerSettlementColumns+` FROM partner_settlements
		WHERE order_id = $1 ORDER BY created_at, id`, orderID)
}

// ListPartnerSettlementsByHotel returns a page of a hotel's ledger rows,
// optionally restricted to unsettled ones.
func (q *Queries) ListPartnerSettlementsByHotel(ctx context.Context, hotelID string, onlyUnsettled bool, limit, offset int32) ([]PartnerSettlement, error) {
	if onlyUnsettled {
		return q.listPartnerSettlements(ctx, `
			SELECT `+partnerSettlementColumns+` FROM partner_settlements
			WHERE hotel_id = $1 AND NOT is_settled
			ORDER BY created_at, id LIMIT $2 OFFSET $3`, hotelID, limit, offset)
	}
	return q.listPartnerSettlements(ctx, `
		SELECT `+partnerSettlementColumns+` FROM partner_settlements
		WHERE hotel_id = $1
		ORDER BY created_at, id LIMIT $2 OFFSET $3`, hotelID, limit, offset)
}

func (q *Queries) listPartnerSettlements(ctx context.Context, sql string, args ...any) ([]PartnerSettlement, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PartnerSettlement
	for rows.Next() {
		s, err := scanPartnerSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkPartnerSettlementsSettled flips unsettled rows to settled and stamps
// them. Already-settled ids are skipped; the affected count is returned.
func (q *Queries) MarkPartnerSettlementsSettled(ctx context.Context, ids []string) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE partner_settlements
		SET is_settled = TRUE, settled_at = now()
		WHERE id = ANY($1) AND NOT is_settled`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SumUnsettledPartnerEarnings totals what the platform currently owes a hotel.
func (q *Queries) SumUnsettledPartnerEarnings(ctx context.Context, hotelID string) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(sum(partner_earning), 0) FROM partner_settlements
		WHERE hotel_id = $1 AND NOT is_settled`, hotelID).Scan(&total)
	return total, err
}
