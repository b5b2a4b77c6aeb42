package store

import "context"

// GetDish fetches one menu entry by id.
func (q *Queries) GetDish(ctx context.Context, id string) (Dish, error) {
	var d Dish
	err := q.db.QueryRow(ctx, `
		SELECT id, hotel_id, name, user_price, partner_price, created_at
		FROM dishes WHERE id = $1`, id).
		Scan(&d.ID, &d.HotelID, &d.Name, &d.UserPrice, &d.PartnerPrice, &d.CreatedAt)
	return d, err
}

// UpsertDish creates or replaces a menu entry.
func (q *Queries) UpsertDish(ctx context.Context, d Dish) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO dishes (id, hotel_id, name, user_price, partner_price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET hotel_id = EXCLUDED.hotel_id, name = EXCLUDED.name,
			user_price = EXCLUDED.user_price, partner_price = EXCLUDED.partner_price`,
		d.ID, d.HotelID, d.Name, d.UserPrice, d.PartnerPrice,
	)
	return err
}
