package store

import "context"

const promoColumns = `id, code, kind, discount, min_order, expires_at, is_active, created_at, updated_at`

func scanPromo(row interface{ Scan(dest ...any) error }) (PromoCode, error) {
	var p PromoCode
	err := row.Scan(&p.ID, &p.Code, &p.Kind, &p.Discount, &p.MinOrder, &p.ExpiresAt, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetActivePromoByCode fetches an active promo code by its code string.
func (q *Queries) GetActivePromoByCode(ctx context.Context, code string) (PromoCode, error) {
	return scanPromo(q.db.QueryRow(ctx, `
		SELECT `+promoColumns+` FROM promo_codes WHERE code = $1 AND is_active`, code))
}

// InsertPromo creates a new promo code.
func (q *Queries) InsertPromo(ctx context.Context, p PromoCode) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO promo_codes (id, code, kind, discount, min_order, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Code, p.Kind, p.Discount, p.MinOrder, p.ExpiresAt, p.IsActive,
	)
	return err
}

// UpdatePromo rewrites the mutable attributes of a code.
func (q *Queries) UpdatePromo(ctx context.Context, p PromoCode) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE promo_codes
		SET kind = $2, discount = $3, min_order = $4, expires_at = $5, is_active = $6, updated_at = now()
		WHERE code = $1`,
		p.Code, p.Kind, p.Discount, p.MinOrder, p.ExpiresAt, p.IsActive,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeletePromo removes a code entirely.
func (q *Queries) DeletePromo(ctx context.Context, code string) (bool, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM promo_codes WHERE code = $1`, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListPromos returns a page of promo codes, newest first.
func (q *Queries) ListPromos(ctx context.Context, limit, offset int32) ([]PromoCode, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+promoColumns+` FROM promo_codes
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var promos []PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}
