package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-khana/internal/geo"
	"github.com/noah-isme/backend-khana/internal/promo"
	"github.com/noah-isme/backend-khana/internal/store"
)

type stubQuerier struct {
	bands       []geo.Band
	bandsErr    error
	promos      map[string]store.PromoCode
	priorOrders int64
}

func (s *stubQuerier) GetDeliveryBands(ctx context.Context) ([]geo.Band, error) {
	return s.bands, s.bandsErr
}

func (s *stubQuerier) GetActivePromoByCode(ctx context.Context, code string) (store.PromoCode, error) {
	p, ok := s.promos[code]
	if !ok {
		return store.PromoCode{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *stubQuerier) CountOrdersByCustomer(ctx context.Context, customerID string) (int64, error) {
	return s.priorOrders, nil
}

func testParams() Params {
	return Params{
		GSTBps:                500,
		GSTEnabled:            true,
		PlatformFeeBps:        200,
		FreeDeliveryThreshold: 50000,
		DriverBaseAllowance:   1000,
	}
}

// fourKmApart returns two points roughly 4 km apart, inside band 3-6 km.
func fourKmApart() (geo.Point, geo.Point) {
	return geo.Point{Lat: 12.9716, Lon: 77.5946}, geo.Point{Lat: 13.0076, Lon: 77.5946}
}

func newTestEngine(q Querier) *Engine {
	return NewEngine(q, testParams(), zerolog.Nop())
}

func TestComputeBasicBreakdown(t *testing.T) {
	q := &stubQuerier{bands: []geo.Band{
		{MinKm: 0, MaxKm: 3, Price: 2000},
		{MinKm: 3, MaxKm: 6, Price: 3000},
	}}
	user, shop := fourKmApart()

	quote, err := newTestEngine(q).Compute(context.Background(), Input{
		Items:      []Item{{DishID: "d1", Qty: 2, UnitPrice: 10000}, {DishID: "d2", Qty: 1, UnitPrice: 10000}},
		CustomerID: "c1",
		UserCoords: user,
		ShopCoords: shop,
	})
	require.NoError(t, err)

	require.Equal(t, int64(30000), quote.Subtotal)
	require.Equal(t, int64(1500), quote.GSTAmount)
	require.Equal(t, int64(3000), quote.DeliveryCharge)
	require.Equal(t, int64(600), quote.PlatformFee)
	require.Equal(t, int64(35100), quote.Total)
	require.Equal(t, int64(35100), quote.RoundedTotal)
	require.Zero(t, quote.RoundOff)
	require.Equal(t, int64(4000), quote.DriverCompensation)
	require.False(t, quote.FreeDelivery)
	require.InDelta(t, 4.0, quote.DistanceKm, 0.1)
}

func TestComputeFreeDeliveryThresholdAndRounding(t *testing.T) {
	q := &stubQuerier{bands: []geo.Band{{MinKm: 3, MaxKm: 6, Price: 3000}}}
	user, shop := fourKmApart()

	quote, err := newTestEngine(q).Compute(context.Background(), Input{
		Items:      []Item{{DishID: "d1", Qty: 1, UnitPrice: 52000}},
		CustomerID: "c1",
		UserCoords: user,
		ShopCoords: shop,
	})
	require.NoError(t, err)

	require.True(t, quote.FreeDelivery)
	require.Zero(t, quote.DeliveryCharge)
	require.Equal(t, int64(2600), quote.GSTAmount)
	require.Equal(t, int64(1040), quote.PlatformFee)
	require.Equal(t, int64(55640), quote.Total)
	require.Equal(t, int64(55700), quote.RoundedTotal)
	require.Equal(t, int64(60), quote.RoundOff)
	// the override never touches what the driver is owed
	require.Equal(t, int64(4000), quote.DriverCompensation)
}

func TestComputeEmptyCart(t *testing.T) {
	_, err := newTestEngine(&stubQuerier{}).Compute(context.Background(), Input{CustomerID: "c1"})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestComputeNoBandsConfigured(t *testing.T) {
	user, shop := fourKmApart()
	_, err := newTestEngine(&stubQuerier{}).Compute(context.Background(), Input{
		Items:      []Item{{DishID: "d1", Qty: 1, UnitPrice: 10000}},
		CustomerID: "c1",
		UserCoords: user,
		ShopCoords: shop,
	})
	require.ErrorIs(t, err, ErrDistanceUnavailable)
}

func TestComputeBandTableRowMissing(t *testing.T) {
	// A fresh database has no band singleton; the store surfaces that as
	// pgx.ErrNoRows and quoting must report the distance as unavailable
	// rather than an internal failure.
	user, shop := fourKmApart()
	_, err := newTestEngine(&stubQuerier{bandsErr: pgx.ErrNoRows}).Compute(context.Background(), Input{
		Items:      []Item{{DishID: "d1", Qty: 1, UnitPrice: 10000}},
		CustomerID: "c1",
		UserCoords: user,
		ShopCoords: shop,
	})
	require.ErrorIs(t, err, ErrDistanceUnavailable)
}

func TestComputeFreeDeliveryPromo(t *testing.T) {
	q := &stubQuerier{
		bands: []geo.Band{{MinKm: 3, MaxKm: 6, Price: 3000}},
		promos: map[string]store.PromoCode{
			"FREEDEL": {ID: "p1", Code: "FREEDEL", Kind: promo.KindFreeDelivery, ExpiresAt: time.Now().Add(time.Hour), IsActive: true},
		},
	}
	user, shop := fourKmApart()

	base, err := newTestEngine(q).Compute(context.Background(), Input{
		Items:      []Item{{DishID: "d1", Qty: 1, UnitPrice: 30000}},
		CustomerID: "c1",
		UserCoords: user,
		ShopCoords: shop,
	})
	require.NoError(t, err)

	withPromo, err := newTestEngine(q).Compute(context.Background(), Input{
		Items:      []Item{{DishID: "d1", Qty: 1, UnitPrice: 30000}},
		CustomerID: "c1",
		PromoCode:  "FREEDEL",
		UserCoords: user,
		ShopCoords: shop,
	})
	require.NoError(t, err)

	// total drops by exactly the pre-discount delivery charge
	require.Equal(t, base.Total-int64(3000), withPromo.Total)
	require.Equal(t, int64(3000), withPromo.Discount)
	require.Zero(t, withPromo.DeliveryCharge)
	require.Equal(t, "p1", withPromo.PromoID)
	require.Equal(t, base.DriverCompensation, withPromo.DriverCompensation)
}

func TestComputeFlatPromoFloorsAtZero(t *testing.T) {
	q := &stubQuerier{
		bands: []geo.Band{{MinKm: 0, MaxKm: 6, Price: 3000}},
		promos: map[string]store.PromoCode{
			"BIGOFF": {ID: "p2", Code: "BIGOFF", Kind: promo.KindFlatOff, Discount: 9000000, ExpiresAt: time.Now().Add(time.Hour), IsActive: true},
		},
	}
	user, shop := fourKmApart()

	quote, err := newTestEngine(q).Compute(context.Background(), Input{
		Items:      []Item{{DishID: "d1", Qty: 1, UnitPrice: 10000}},
		CustomerID: "c1",
		PromoCode:  "BIGOFF",
		UserCoords: user,
		ShopCoords: shop,
	})
	require.NoError(t, err)
	require.Zero(t, quote.Total)
	require.Zero(t, quote.RoundedTotal)
	require.Zero(t, quote.RoundOff)
}

func TestComputeUnknownPromo(t *testing.T) {
	q := &stubQuerier{bands: []geo.Band{{MinKm: 0, MaxKm: 6, Price: 3000}}}
	user, shop := fourKmApart()

	_, err := newTestEngine(q).Compute(context.Background(), Input{
		Items:      []Item{{DishID: "d1", Qty: 1, UnitPrice: 10000}},
		CustomerID: "c1",
		PromoCode:  "NOPE",
		UserCoords: user,
		ShopCoords: shop,
	})
	require.ErrorIs(t, err, promo.ErrPromoNotFound)
}

func TestComputeNewUserPromoRejectedForReturningCustomer(t *testing.T) {
	q := &stubQuerier{
		bands:       []geo.Band{{MinKm: 0, MaxKm: 6, Price: 3000}},
		priorOrders: 3,
		promos: map[string]store.PromoCode{
			"WELCOME": {ID: "p3", Code: "WELCOME", Kind: promo.KindNewUser, Discount: 5000, ExpiresAt: time.Now().Add(time.Hour), IsActive: true},
		},
	}
	user, shop := fourKmApart()

	_, err := newTestEngine(q).Compute(context.Background(), Input{
		Items:      []Item{{DishID: "d1", Qty: 1, UnitPrice: 10000}},
		CustomerID: "c1",
		PromoCode:  "WELCOME",
		UserCoords: user,
		ShopCoords: shop,
	})
	require.ErrorIs(t, err, promo.ErrNotFirstOrder)
}

func TestCeilToRupee(t *testing.T) {
	cases := []struct {
		in, rounded, roundOff int64
	}{
		{55640, 55700, 60},
		{35100, 35100, 0},
		{1, 100, 99},
		{0, 0, 0},
	}
	for _, c := range cases {
		rounded, roundOff := CeilToRupee(c.in)
		require.Equal(t, c.rounded, rounded, "in=%d", c.in)
		require.Equal(t, c.roundOff, roundOff, "in=%d", c.in)
	}
}
