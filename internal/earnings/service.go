// Package earnings maintains the per-delivery earnings ledger for drivers,
// including milestone bonuses and the forward-only delivery counter.
package earnings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-khana/internal/events"
	"github.com/noah-isme/backend-khana/internal/obs"
	"github.com/noah-isme/backend-khana/internal/store"
)

// Milestone delivery numbers that carry a bonus.
const (
	milestone16th = 16
	milestone21st = 21
)

var (
	// ErrSettingsNotConfigured is returned when the DriverSettings singleton
	// has never been written.
	ErrSettingsNotConfigured = errors.New("driver settings not configured")
	// ErrOrderNotFound is returned when the order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotDelivered is returned when the order has not reached the
	// delivered state yet.
	ErrOrderNotDelivered = errors.New("order is not delivered")
	// ErrDriverMismatch is returned when the order was delivered by a
	// different driver than the one being credited.
	ErrDriverMismatch = errors.New("order is assigned to a different driver")
)

type partnerCreator interface {
	CreateForOrder(ctx context.Context, orderID string) ([]store.PartnerSettlement, error)
}

// Store is the slice of persistence the earnings service needs.
type Store interface {
	GetEarningByDriverOrder(ctx context.Context, driverID, orderID string) (store.DriverEarning, error)
	GetDriverSettings(ctx context.Context) (store.DriverSettings, error)
	GetOrder(ctx context.Context, id string) (store.Order, error)
	SumEarnings(ctx context.Context, driverID string, from, until time.Time, settled *bool) (int64, error)
	DailyEarnings(ctx context.Context, driverID string, from, until time.Time) ([]store.DailyEarningsRow, error)
	RecentEarnings(ctx context.Context, driverID string, limit int32) ([]store.RecentEarningRow, error)
	WithTx(ctx context.Context, fn func(q store.Querier) error) error
}

// Service creates earnings and serves the read-side aggregates.
type Service struct {
	Store   Store
	Partner partnerCreator
	Bus     *events.Bus
	Cache   *SummaryCache
	Log     zerolog.Logger
}

// BonusFor returns the milestone bonus owed for the given delivery number.
func BonusFor(deliveryNumber int64, settings store.DriverSettings) int64 {
	switch deliveryNumber {
	case milestone16th:
		return settings.Bonus16th
	case milestone21st:
		return settings.Bonus21st
	}
	return 0
}

// Create credits the driver for one delivered order. Safe to retry: an
// existing (driver, order) earning is returned unchanged, and the delivery
// counter only advances when the insert commits.
func (s *Service) Create(ctx context.Context, driverID, orderID string) (store.DriverEarning, error) {
	if s == nil || s.Store == nil {
		return store.DriverEarning{}, errors.New("earnings: store not configured")
	}

	existing, err := s.Store.GetEarningByDriverOrder(ctx, driverID, orderID)
	if err == nil {
		s.countCreate("duplicate")
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return store.DriverEarning{}, fmt.Errorf("lookup earning: %w", err)
	}

	settings, err := s.Store.GetDriverSettings(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.DriverEarning{}, ErrSettingsNotConfigured
		}
		return store.DriverEarning{}, fmt.Errorf("load driver settings: %w", err)
	}

	order, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.DriverEarning{}, ErrOrderNotFound
		}
		return store.DriverEarning{}, fmt.Errorf("load order: %w", err)
	}
	if order.Status != store.StatusDelivered {
		return store.DriverEarning{}, ErrOrderNotDelivered
	}
	if order.DriverID == nil || *order.DriverID != driverID {
		return store.DriverEarning{}, ErrDriverMismatch
	}
	if order.DriverPaid {
		// The paid flag commits in the same transaction as the earning row,
		// so the row exists even if the first lookup raced ahead of it.
		s.countCreate("duplicate")
		return s.Store.GetEarningByDriverOrder(ctx, driverID, orderID)
	}

	// Safety net: the delivered transition should have created the partner
	// rows already, but this path may be hit first on retries.
	if s.Partner != nil {
		if _, err := s.Partner.CreateForOrder(ctx, orderID); err != nil {
			s.Log.Warn().Err(err).Str("order_id", orderID).Msg("partner settlement safety net")
		}
	}

	var earning store.DriverEarning
	err = s.Store.WithTx(ctx, func(q store.Querier) error {
		n, err := q.NextDeliveryNumber(ctx, driverID)
		if err != nil {
			return fmt.Errorf("advance delivery counter: %w", err)
		}
		bonus := BonusFor(n, settings)
		earning = store.DriverEarning{
			ID:             uuid.NewString(),
			DriverID:       driverID,
			OrderID:        orderID,
			Amount:         settings.PerDeliveryAmount + bonus,
			Bonus:          bonus,
			DeliveryNumber: n,
		}
		if err := q.InsertDriverEarning(ctx, earning); err != nil {
			return err
		}
		return q.SetDriverPaid(ctx, orderID)
	})
	if err != nil {
		// A concurrent retry won the insert; its row is the earning. The
		// counter increment above rolled back with the transaction.
		if store.IsUniqueViolation(err, "driver_earnings_driver_order_key") {
			s.countCreate("duplicate")
			return s.Store.GetEarningByDriverOrder(ctx, driverID, orderID)
		}
		s.countCreate("error")
		return store.DriverEarning{}, err
	}

	s.Cache.Invalidate(ctx, driverID)
	s.countCreate("created")
	if s.Bus != nil {
		if _, err := s.Bus.Emit(ctx, events.TopicEarningCreated, earning.ID, map[string]any{
			"driverId":       driverID,
			"orderId":        orderID,
			"amount":         earning.Amount,
			"bonus":          earning.Bonus,
			"deliveryNumber": earning.DeliveryNumber,
		}); err != nil {
			s.Log.Warn().Err(err).Str("earning_id", earning.ID).Msg("earning event dispatch")
		}
	}
	return earning, nil
}

func (s *Service) countCreate(result string) {
	if obs.EarningsCreatedTotal != nil {
		obs.EarningsCreatedTotal.WithLabelValues(result).Inc()
	}
}
