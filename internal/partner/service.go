// Package partner maintains the settlement ledger that credits hotel
// partners for delivered orders.
package partner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/events"
	"github.com/noah-isme/backend-khana/internal/obs"
	"github.com/noah-isme/backend-khana/internal/store"
)

// Service creates and settles partner ledger rows.
type Service struct {
	Store *store.Store
	Bus   *events.Bus
	Log   zerolog.Logger
}

// CreateForOrder inserts one settlement row per order line. The order's
// settlement flag is flipped with a compare-and-swap first, so concurrent
// delivery confirmations create the rows exactly once; losers get the
// existing rows back.
func (s *Service) CreateForOrder(ctx context.Context, orderID string) ([]store.PartnerSettlement, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("partner: store not configured")
	}

	var rows []store.PartnerSettlement
	claimed := false
	err := s.Store.WithTx(ctx, func(q store.Querier) error {
		ok, err := q.ClaimHotelSettlement(ctx, orderID)
		if err != nil {
			return fmt.Errorf("claim settlement: %w", err)
		}
		if !ok {
			return nil
		}
		claimed = true

		order, err := q.GetOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NotFound("order not found", err)
			}
			return fmt.Errorf("load order: %w", err)
		}
		items, err := q.ListOrderItems(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order items: %w", err)
		}
		rows = SettlementRows(order, items)
		for _, row := range rows {
			if err := q.InsertPartnerSettlement(ctx, row); err != nil {
				return fmt.Errorf("insert settlement row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !claimed {
		return s.Store.ListPartnerSettlementsByOrder(ctx, orderID)
	}

	if obs.PartnerSettlementRowsTotal != nil {
		obs.PartnerSettlementRowsTotal.Add(float64(len(rows)))
	}
	return rows, nil
}

// SettlementRows derives the ledger rows for one order: the partner earns
// their price per unit, the platform keeps the margin.
func SettlementRows(order store.Order, items []store.OrderItem) []store.PartnerSettlement {
	rows := make([]store.PartnerSettlement, 0, len(items))
	for _, it := range items {
		qty := int64(it.Qty)
		rows = append(rows, store.PartnerSettlement{
			ID:             uuid.NewString(),
			HotelID:        order.HotelID,
			OrderID:        order.ID,
			DishID:         it.DishID,
			Qty:            it.Qty,
			PartnerPrice:   it.PartnerPrice,
			PartnerEarning: it.PartnerPrice * qty,
			AdminEarning:   (it.UserPrice - it.PartnerPrice) * qty,
		})
	}
	return rows
}

// MarkSettled flips the named rows to settled. Rows already settled are
// skipped silently; the affected count is returned.
func (s *Service) MarkSettled(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, common.Validation("settlement ids are required", nil)
	}
	affected, err := s.Store.MarkPartnerSettlementsSettled(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("mark partner settlements settled: %w", err)
	}
	if affected > 0 && s.Bus != nil {
		if _, err := s.Bus.Emit(ctx, events.TopicPartnerSettled, uuid.NewString(), map[string]any{
			"settlementIds": ids,
			"settledCount":  affected,
		}); err != nil {
			s.Log.Warn().Err(err).Msg("partner settled event dispatch")
		}
	}
	return affected, nil
}

// ListForHotel returns one page of a hotel's rows, optionally restricted to
// unsettled ones, together with the outstanding total.
func (s *Service) ListForHotel(ctx context.Context, hotelID string, onlyUnsettled bool, limit, offset int32) ([]store.PartnerSettlement, int64, error) {
	rows, err := s.Store.ListPartnerSettlementsByHotel(ctx, hotelID, onlyUnsettled, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list hotel settlements: %w", err)
	}
	pending, err := s.Store.SumUnsettledPartnerEarnings(ctx, hotelID)
	if err != nil {
		return nil, 0, fmt.Errorf("sum unsettled earnings: %w", err)
	}
	return rows, pending, nil
}
