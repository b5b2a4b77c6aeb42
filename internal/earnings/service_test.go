package earnings

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-khana/internal/store"
)

func TestBonusForMilestones(t *testing.T) {
	settings := store.DriverSettings{PerDeliveryAmount: 3000, Bonus16th: 10000, Bonus21st: 15000}

	require.Zero(t, BonusFor(1, settings))
	require.Zero(t, BonusFor(15, settings))
	require.Equal(t, int64(10000), BonusFor(16, settings))
	require.Zero(t, BonusFor(17, settings))
	require.Equal(t, int64(15000), BonusFor(21, settings))
	require.Zero(t, BonusFor(22, settings))
}

func TestSummaryCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewSummaryCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	_, ok := cache.Get(context.Background(), "d1")
	require.False(t, ok)

	want := Summary{TotalAllTime: 96000, CurrentMonth: 12000, Today: 3000, Pending: 6000, Settled: 90000}
	cache.Set(context.Background(), "d1", want)

	got, ok := cache.Get(context.Background(), "d1")
	require.True(t, ok)
	require.Equal(t, want, got)

	cache.Invalidate(context.Background(), "d1")
	_, ok = cache.Get(context.Background(), "d1")
	require.False(t, ok)
}

func TestSummaryCacheNilClient(t *testing.T) {
	var cache *SummaryCache
	_, ok := cache.Get(context.Background(), "d1")
	require.False(t, ok)
	cache.Set(context.Background(), "d1", Summary{})
	cache.Invalidate(context.Background(), "d1")
}

// memStore backs the service with in-memory maps. The embedded Querier is
// nil, so any query the service was not expected to run panics the test.
type memStore struct {
	store.Querier

	settings store.DriverSettings
	orders   map[string]store.Order
	rows     map[string]store.DriverEarning
	counters map[string]int64
}

func newMemStore(settings store.DriverSettings) *memStore {
	return &memStore{
		settings: settings,
		orders:   map[string]store.Order{},
		rows:     map[string]store.DriverEarning{},
		counters: map[string]int64{},
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(q store.Querier) error) error {
	return fn(m)
}

func (m *memStore) GetDriverSettings(ctx context.Context) (store.DriverSettings, error) {
	return m.settings, nil
}

func (m *memStore) GetOrder(ctx context.Context, id string) (store.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return store.Order{}, pgx.ErrNoRows
	}
	return order, nil
}

func (m *memStore) GetEarningByDriverOrder(ctx context.Context, driverID, orderID string) (store.DriverEarning, error) {
	row, ok := m.rows[driverID+"|"+orderID]
	if !ok {
		return store.DriverEarning{}, pgx.ErrNoRows
	}
	return row, nil
}

func (m *memStore) NextDeliveryNumber(ctx context.Context, driverID string) (int64, error) {
	m.counters[driverID]++
	return m.counters[driverID], nil
}

func (m *memStore) InsertDriverEarning(ctx context.Context, e store.DriverEarning) error {
	key := e.DriverID + "|" + e.OrderID
	if _, ok := m.rows[key]; ok {
		return &pgconn.PgError{Code: "23505", ConstraintName: "driver_earnings_driver_order_key"}
	}
	m.rows[key] = e
	return nil
}

func (m *memStore) SetDriverPaid(ctx context.Context, orderID string) error {
	order := m.orders[orderID]
	order.DriverPaid = true
	m.orders[orderID] = order
	return nil
}

func deliveredOrder(id, driverID string) store.Order {
	return store.Order{ID: id, Code: "KHA-" + id, DriverID: &driverID, Status: store.StatusDelivered}
}

func testSettings() store.DriverSettings {
	return store.DriverSettings{PerDeliveryAmount: 3000, Bonus16th: 10000, Bonus21st: 15000}
}

func TestCreateRetryReturnsSameEarning(t *testing.T) {
	m := newMemStore(testSettings())
	m.orders["o1"] = deliveredOrder("o1", "d1")
	svc := &Service{Store: m, Log: zerolog.Nop()}

	first, err := svc.Create(context.Background(), "d1", "o1")
	require.NoError(t, err)
	require.Equal(t, int64(1), first.DeliveryNumber)

	second, err := svc.Create(context.Background(), "d1", "o1")
	require.NoError(t, err)
	require.Equal(t, first, second)

	// the retry must not advance the delivery counter or add a row
	require.Equal(t, int64(1), m.counters["d1"])
	require.Len(t, m.rows, 1)
}

func TestCreateRejectsUnassignedDriver(t *testing.T) {
	m := newMemStore(testSettings())
	m.orders["o1"] = deliveredOrder("o1", "d1")
	m.orders["o2"] = store.Order{ID: "o2", Status: store.StatusDelivered}
	svc := &Service{Store: m, Log: zerolog.Nop()}

	_, err := svc.Create(context.Background(), "d1", "o1")
	require.NoError(t, err)

	// a different driver cannot be credited for the same delivered order
	_, err = svc.Create(context.Background(), "d2", "o1")
	require.ErrorIs(t, err, ErrDriverMismatch)

	// nor can anyone claim an order that was never assigned
	_, err = svc.Create(context.Background(), "d2", "o2")
	require.ErrorIs(t, err, ErrDriverMismatch)

	require.Len(t, m.rows, 1)
	require.Zero(t, m.counters["d2"])
}

// lagStore makes the opening duplicate lookup miss once, simulating the
// paid flag landing before the earning row becomes visible to the lookup.
type lagStore struct {
	*memStore
	lookups int
}

func (l *lagStore) GetEarningByDriverOrder(ctx context.Context, driverID, orderID string) (store.DriverEarning, error) {
	l.lookups++
	if l.lookups == 1 {
		return store.DriverEarning{}, pgx.ErrNoRows
	}
	return l.memStore.GetEarningByDriverOrder(ctx, driverID, orderID)
}

func TestCreatePaidOrderDoesNotDoubleCredit(t *testing.T) {
	m := newMemStore(testSettings())
	order := deliveredOrder("o1", "d1")
	order.DriverPaid = true
	m.orders["o1"] = order
	existing := store.DriverEarning{ID: "e1", DriverID: "d1", OrderID: "o1", Amount: 3000, DeliveryNumber: 7}
	m.rows["d1|o1"] = existing
	m.counters["d1"] = 7

	svc := &Service{Store: &lagStore{memStore: m}, Log: zerolog.Nop()}
	got, err := svc.Create(context.Background(), "d1", "o1")
	require.NoError(t, err)
	require.Equal(t, existing, got)
	require.Equal(t, int64(7), m.counters["d1"])
}

func TestCreateDeliveryNumbersAdvanceWithMilestones(t *testing.T) {
	m := newMemStore(testSettings())
	svc := &Service{Store: m, Log: zerolog.Nop()}

	var last int64
	for i := 1; i <= 21; i++ {
		orderID := fmt.Sprintf("o%02d", i)
		m.orders[orderID] = deliveredOrder(orderID, "d1")

		earning, err := svc.Create(context.Background(), "d1", orderID)
		require.NoError(t, err)
		require.Greater(t, earning.DeliveryNumber, last)
		last = earning.DeliveryNumber

		switch i {
		case 16:
			require.Equal(t, int64(10000), earning.Bonus)
			require.Equal(t, int64(13000), earning.Amount)
		case 21:
			require.Equal(t, int64(15000), earning.Bonus)
			require.Equal(t, int64(18000), earning.Amount)
		default:
			require.Zero(t, earning.Bonus)
			require.Equal(t, int64(3000), earning.Amount)
		}
	}
	require.Equal(t, int64(21), m.counters["d1"])
}
