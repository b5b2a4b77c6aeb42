package menu

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/store"
)

type stubQueries struct {
	dishes  map[string]store.Dish
	getCnt  int
	upserts []store.Dish
}

func (s *stubQueries) GetDish(ctx context.Context, id string) (store.Dish, error) {
	s.getCnt++
	d, ok := s.dishes[id]
	if !ok {
		return store.Dish{}, pgx.ErrNoRows
	}
	return d, nil
}

func (s *stubQueries) UpsertDish(ctx context.Context, d store.Dish) error {
	s.upserts = append(s.upserts, d)
	if s.dishes == nil {
		s.dishes = map[string]store.Dish{}
	}
	s.dishes[d.ID] = d
	return nil
}

func newTestService(t *testing.T, q *stubQueries) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc, err := NewService(q, NewCache(client, time.Minute))
	require.NoError(t, err)
	return svc
}

func TestGetDishReadThrough(t *testing.T) {
	q := &stubQueries{dishes: map[string]store.Dish{
		"d1": {ID: "d1", HotelID: "h1", Name: "Biryani", UserPrice: 25000, PartnerPrice: 20000},
	}}
	svc := newTestService(t, q)

	dish, err := svc.GetDish(context.Background(), "d1")
	require.NoError(t, err)
	require.Equal(t, int64(25000), dish.UserPrice)
	require.Equal(t, 1, q.getCnt)

	// second read comes from cache
	_, err = svc.GetDish(context.Background(), "d1")
	require.NoError(t, err)
	require.Equal(t, 1, q.getCnt)
}

func TestGetDishNotFound(t *testing.T) {
	svc := newTestService(t, &stubQueries{})
	_, err := svc.GetDish(context.Background(), "nope")
	var app *common.AppError
	require.ErrorAs(t, err, &app)
	require.Equal(t, common.CodeNotFound, app.Code)
}

func TestResolveCartLines(t *testing.T) {
	q := &stubQueries{dishes: map[string]store.Dish{
		"d1": {ID: "d1", HotelID: "h1", Name: "Biryani", UserPrice: 25000, PartnerPrice: 20000},
		"d2": {ID: "d2", HotelID: "h1", Name: "Raita", UserPrice: 5000, PartnerPrice: 4000},
	}}
	svc := newTestService(t, q)

	items, hotelID, err := svc.Resolve(context.Background(), []Line{
		{DishID: "d1", Qty: 2},
		{DishID: "d2", Qty: 1},
	})
	require.NoError(t, err)
	require.Equal(t, "h1", hotelID)
	require.Len(t, items, 2)
	require.Equal(t, int64(25000), items[0].UnitPrice)
	require.Equal(t, int64(20000), items[0].PartnerPrice)
}

func TestResolveRejectsMixedHotels(t *testing.T) {
	q := &stubQueries{dishes: map[string]store.Dish{
		"d1": {ID: "d1", HotelID: "h1", UserPrice: 25000, PartnerPrice: 20000},
		"d2": {ID: "d2", HotelID: "h2", UserPrice: 5000, PartnerPrice: 4000},
	}}
	svc := newTestService(t, q)

	_, _, err := svc.Resolve(context.Background(), []Line{
		{DishID: "d1", Qty: 1},
		{DishID: "d2", Qty: 1},
	})
	var app *common.AppError
	require.ErrorAs(t, err, &app)
	require.Equal(t, common.CodeValidation, app.Code)
}

func TestUpsertDishInvalidatesCache(t *testing.T) {
	q := &stubQueries{dishes: map[string]store.Dish{
		"d1": {ID: "d1", HotelID: "h1", Name: "Biryani", UserPrice: 25000, PartnerPrice: 20000},
	}}
	svc := newTestService(t, q)

	// warm the cache
	_, err := svc.GetDish(context.Background(), "d1")
	require.NoError(t, err)

	updated := store.Dish{ID: "d1", HotelID: "h1", Name: "Biryani", UserPrice: 30000, PartnerPrice: 24000}
	require.NoError(t, svc.UpsertDish(context.Background(), updated))

	dish, err := svc.GetDish(context.Background(), "d1")
	require.NoError(t, err)
	require.Equal(t, int64(30000), dish.UserPrice)
}

func TestUpsertDishRejectsInvertedPrices(t *testing.T) {
	svc := newTestService(t, &stubQueries{})
	err := svc.UpsertDish(context.Background(), store.Dish{ID: "d1", HotelID: "h1", UserPrice: 1000, PartnerPrice: 2000})
	var app *common.AppError
	require.ErrorAs(t, err, &app)
	require.Equal(t, common.CodeValidation, app.Code)
}
