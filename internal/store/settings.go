package store

import (
	"context"
	"encoding/json"

	"github.com/noah-isme/backend-khana/internal/geo"
)

// GetDriverSettings reads the compensation singleton.
func (q *Queries) GetDriverSettings(ctx context.Context) (DriverSettings, error) {
	var s DriverSettings
	err := q.db.QueryRow(ctx, `
		SELECT per_delivery_amount, bonus_16th, bonus_21st, updated_at
		FROM driver_settings WHERE id = 1`).
		Scan(&s.PerDeliveryAmount, &s.Bonus16th, &s.Bonus21st, &s.UpdatedAt)
	return s, err
}

// UpsertDriverSettings writes the compensation singleton. The fixed primary
// key keeps the table at exactly one row.
func (q *Queries) UpsertDriverSettings(ctx context.Context, s DriverSettings) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO driver_settings (id, per_delivery_amount, bonus_16th, bonus_21st)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET per_delivery_amount = EXCLUDED.per_delivery_amount,
			bonus_16th = EXCLUDED.bonus_16th,
			bonus_21st = EXCLUDED.bonus_21st,
			updated_at = now()`,
		s.PerDeliveryAmount, s.Bonus16th, s.Bonus21st,
	)
	return err
}

// GetDeliveryBands reads the delivery charge band table singleton.
func (q *Queries) GetDeliveryBands(ctx context.Context) ([]geo.Band, error) {
	var raw []byte
	if err := q.db.QueryRow(ctx, `SELECT bands FROM delivery_bands WHERE id = 1`).Scan(&raw); err != nil {
		return nil, err
	}
	var bands []geo.Band
	if err := json.Unmarshal(raw, &bands); err != nil {
		return nil, err
	}
	return bands, nil
}

// UpsertDeliveryBands replaces the band table singleton.
func (q *Queries) UpsertDeliveryBands(ctx context.Context, bands []geo.Band) error {
	raw, err := json.Marshal(bands)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO delivery_bands (id, bands) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET bands = EXCLUDED.bands, updated_at = now()`, raw)
	return err
}
