package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/lock"
	"github.com/noah-isme/backend-khana/internal/store"
)

func TestValidateBatchSumsUnsettled(t *testing.T) {
	rows := []store.DriverEarning{
		{ID: "e1", Amount: 3000},
		{ID: "e2", Amount: 13000, Bonus: 10000},
		{ID: "e3", Amount: 3000},
	}
	amount, ids, err := ValidateBatch(rows)
	require.NoError(t, err)
	require.Equal(t, int64(19000), amount)
	require.Equal(t, []string{"e1", "e2", "e3"}, ids)
}

func TestValidateBatchEmpty(t *testing.T) {
	_, _, err := ValidateBatch(nil)
	require.ErrorIs(t, err, ErrNoEarningsFound)
}

func TestValidateBatchRejectsSettledRows(t *testing.T) {
	rows := []store.DriverEarning{
		{ID: "e1", Amount: 3000},
		{ID: "e2", Amount: 3000, IsSettled: true},
		{ID: "e3", Amount: 3000, IsSettled: true},
	}
	_, _, err := ValidateBatch(rows)
	require.ErrorIs(t, err, ErrAlreadySettled)

	// the response names the offending ids so the admin can retry without them
	var app *common.AppError
	require.ErrorAs(t, err, &app)
	details, ok := app.Details.(map[string]any)
	require.True(t, ok)
	require.Equal(t, []string{"e2", "e3"}, details["settledIds"])
}

// payoutStore records every write the batch attempts. The embedded Querier
// is nil, so any unexpected query panics the test.
type payoutStore struct {
	store.Querier

	earnings map[string]store.DriverEarning
	inserted []store.DriverSettlement
	marked   [][]string
}

func (p *payoutStore) WithTx(ctx context.Context, fn func(q store.Querier) error) error {
	return fn(p)
}

func (p *payoutStore) LockEarningsForSettlement(ctx context.Context, driverID string, ids []string) ([]store.DriverEarning, error) {
	var rows []store.DriverEarning
	for _, id := range ids {
		if row, ok := p.earnings[id]; ok && row.DriverID == driverID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (p *payoutStore) InsertDriverSettlement(ctx context.Context, s store.DriverSettlement) error {
	p.inserted = append(p.inserted, s)
	return nil
}

func (p *payoutStore) MarkEarningsSettled(ctx context.Context, ids []string) (int64, error) {
	p.marked = append(p.marked, ids)
	for _, id := range ids {
		row := p.earnings[id]
		row.IsSettled = true
		p.earnings[id] = row
	}
	return int64(len(ids)), nil
}

func testLock(t *testing.T) lock.Mutex {
	t.Helper()
	mr := miniredis.RunT(t)
	return lock.Mutex{R: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
}

func TestSettleDriverPaysOutBatch(t *testing.T) {
	p := &payoutStore{earnings: map[string]store.DriverEarning{
		"e1": {ID: "e1", DriverID: "d1", Amount: 3000},
		"e2": {ID: "e2", DriverID: "d1", Amount: 13000, Bonus: 10000},
	}}
	svc := &Service{Store: p, Lock: testLock(t), LockTTL: time.Second, Log: zerolog.Nop()}

	batch, err := svc.SettleDriver(context.Background(), "d1", []string{"e1", "e2"}, nil)
	require.NoError(t, err)
	require.Equal(t, "d1", batch.DriverID)
	require.Equal(t, int64(16000), batch.AmountPaid)
	require.Equal(t, []string{"e1", "e2"}, batch.EarningIDs)
	require.Len(t, p.inserted, 1)
	require.Equal(t, [][]string{{"e1", "e2"}}, p.marked)
}

func TestSettleDriverSettledRowAbortsWholeBatch(t *testing.T) {
	p := &payoutStore{earnings: map[string]store.DriverEarning{
		"e1": {ID: "e1", DriverID: "d1", Amount: 3000},
		"e2": {ID: "e2", DriverID: "d1", Amount: 3000, IsSettled: true},
	}}
	svc := &Service{Store: p, Lock: testLock(t), LockTTL: time.Second, Log: zerolog.Nop()}

	_, err := svc.SettleDriver(context.Background(), "d1", []string{"e1", "e2"}, nil)
	require.ErrorIs(t, err, ErrAlreadySettled)

	// nothing may persist when any row of the batch is rejected
	require.Empty(t, p.inserted)
	require.Empty(t, p.marked)
	require.False(t, p.earnings["e1"].IsSettled)
}

func TestSettleDriverUnknownEarnings(t *testing.T) {
	p := &payoutStore{earnings: map[string]store.DriverEarning{}}
	svc := &Service{Store: p, Lock: testLock(t), LockTTL: time.Second, Log: zerolog.Nop()}

	_, err := svc.SettleDriver(context.Background(), "d1", []string{"missing"}, nil)
	require.ErrorIs(t, err, ErrNoEarningsFound)
	require.Empty(t, p.inserted)
}
