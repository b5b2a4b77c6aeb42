// Package settlement pays out batches of driver earnings, all-or-nothing.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/earnings"
	"github.com/noah-isme/backend-khana/internal/events"
	"github.com/noah-isme/backend-khana/internal/lock"
	"github.com/noah-isme/backend-khana/internal/obs"
	"github.com/noah-isme/backend-khana/internal/store"
)

var (
	// ErrNoEarningsFound is returned when none of the named earnings belong
	// to the driver.
	ErrNoEarningsFound = errors.New("no earnings found for driver")
	// ErrAlreadySettled is returned when any named earning was settled
	// before; the batch is rejected whole and nothing is mutated.
	ErrAlreadySettled = errors.New("one or more earnings already settled")
)

// Store is the slice of persistence the settlement service needs.
type Store interface {
	ListDriverSettlements(ctx context.Context, driverID string, limit, offset int32) ([]store.DriverSettlement, error)
	SumDriverSettlements(ctx context.Context, driverID string) (int64, error)
	WithTx(ctx context.Context, fn func(q store.Querier) error) error
}

// Service runs payout batches.
type Service struct {
	Store   Store
	Lock    lock.Mutex
	LockTTL time.Duration
	Bus     *events.Bus
	Cache   *earnings.SummaryCache
	Log     zerolog.Logger
}

// ValidateBatch checks the fetched rows against the strict payout
// precondition and returns the batch total and the covered earning ids.
func ValidateBatch(rows []store.DriverEarning) (amount int64, ids []string, err error) {
	if len(rows) == 0 {
		return 0, nil, ErrNoEarningsFound
	}
	var offending []string
	for _, row := range rows {
		if row.IsSettled {
			offending = append(offending, row.ID)
			continue
		}
		amount += row.Amount
		ids = append(ids, row.ID)
	}
	if len(offending) > 0 {
		return 0, nil, common.Conflict("one or more earnings already settled", ErrAlreadySettled).
			WithDetails(map[string]any{"settledIds": offending})
	}
	return amount, ids, nil
}

// SettleDriver pays out the named earnings in one batch. A per-driver lock
// plus row locks inside the transaction make concurrent batches over
// overlapping earnings mutually exclusive; the batch insert and the settled
// flags commit together or not at all.
func (s *Service) SettleDriver(ctx context.Context, driverID string, earningIDs []string, note *string) (store.DriverSettlement, error) {
	if len(earningIDs) == 0 {
		return store.DriverSettlement{}, common.Validation("earning ids are required", nil)
	}

	var batch store.DriverSettlement
	err := s.Lock.WithLock(ctx, "settle:driver:"+driverID, s.LockTTL, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(q store.Querier) error {
			rows, err := q.LockEarningsForSettlement(ctx, driverID, earningIDs)
			if err != nil {
				return fmt.Errorf("lock earnings: %w", err)
			}
			amount, ids, err := ValidateBatch(rows)
			if err != nil {
				if errors.Is(err, ErrNoEarningsFound) {
					return common.NotFound("no earnings found for driver", err)
				}
				return err
			}
			batch = store.DriverSettlement{
				ID:         uuid.NewString(),
				DriverID:   driverID,
				AmountPaid: amount,
				EarningIDs: ids,
				Note:       note,
			}
			if err := q.InsertDriverSettlement(ctx, batch); err != nil {
				return fmt.Errorf("insert settlement batch: %w", err)
			}
			affected, err := q.MarkEarningsSettled(ctx, ids)
			if err != nil {
				return fmt.Errorf("mark earnings settled: %w", err)
			}
			if affected != int64(len(ids)) {
				return common.Conflict("earnings changed concurrently", ErrAlreadySettled)
			}
			return nil
		})
	})
	if err != nil {
		s.countBatch(err)
		return store.DriverSettlement{}, err
	}

	s.countBatch(nil)
	s.Cache.Invalidate(ctx, driverID)
	if s.Bus != nil {
		if _, err := s.Bus.Emit(ctx, events.TopicDriverSettled, batch.ID, map[string]any{
			"driverId":   driverID,
			"amountPaid": batch.AmountPaid,
			"earningIds": batch.EarningIDs,
		}); err != nil {
			s.Log.Warn().Err(err).Str("batch_id", batch.ID).Msg("driver settled event dispatch")
		}
	}
	return batch, nil
}

// History returns one page of the driver's payout batches together with the
// all-time total paid.
func (s *Service) History(ctx context.Context, driverID string, limit, offset int32) ([]store.DriverSettlement, int64, error) {
	batches, err := s.Store.ListDriverSettlements(ctx, driverID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list settlements: %w", err)
	}
	total, err := s.Store.SumDriverSettlements(ctx, driverID)
	if err != nil {
		return nil, 0, fmt.Errorf("sum settlements: %w", err)
	}
	return batches, total, nil
}

func (s *Service) countBatch(err error) {
	if obs.PayoutBatchesTotal == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadySettled):
		result = "already_settled"
	case errors.Is(err, ErrNoEarningsFound):
		result = "not_found"
	default:
		result = "error"
	}
	obs.PayoutBatchesTotal.WithLabelValues(result).Inc()
}
