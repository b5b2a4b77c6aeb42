package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-khana/internal/common"
	"github.com/noah-isme/backend-khana/internal/events"
	"github.com/noah-isme/backend-khana/internal/geo"
	"github.com/noah-isme/backend-khana/internal/menu"
	"github.com/noah-isme/backend-khana/internal/obs"
	"github.com/noah-isme/backend-khana/internal/pricing"
	"github.com/noah-isme/backend-khana/internal/store"
)

var (
	// ErrStatusConflict is returned when the optimistic status update lost a
	// race with a concurrent transition.
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrAlreadyAssigned is returned when the order already has a different
	// driver.
	ErrAlreadyAssigned = errors.New("order already assigned to another driver")
)

type partnerCreator interface {
	CreateForOrder(ctx context.Context, orderID string) ([]store.PartnerSettlement, error)
}

type earningsCreator interface {
	Create(ctx context.Context, driverID, orderID string) (store.DriverEarning, error)
}

// Service drives order placement and the lifecycle state machine.
type Service struct {
	Store    *store.Store
	Menu     *menu.Service
	Engine   *pricing.Engine
	Bus      *events.Bus
	Partner  partnerCreator
	Earnings earningsCreator
	Log      zerolog.Logger
}

// PlaceInput is everything needed to price and persist a new order.
type PlaceInput struct {
	CustomerID string
	AddressID  string
	Lines      []menu.Line
	PromoCode  string
	UserCoords geo.Point
	ShopCoords geo.Point
	PaymentRef *string
}

// Detail is an order with its frozen lines and timeline.
type Detail struct {
	Order    store.Order           `json:"order"`
	Items    []store.OrderItem     `json:"items"`
	Timeline []store.TimelineEntry `json:"timeline"`
}

// Quote prices the cart without persisting anything. This is the dry run of
// the placement pipeline.
func (s *Service) Quote(ctx context.Context, in PlaceInput) (pricing.Quote, error) {
	items, _, err := s.Menu.Resolve(ctx, in.Lines)
	if err != nil {
		return pricing.Quote{}, err
	}
	return s.Engine.Compute(ctx, pricing.Input{
		Items:      items,
		CustomerID: in.CustomerID,
		PromoCode:  in.PromoCode,
		UserCoords: in.UserCoords,
		ShopCoords: in.ShopCoords,
	})
}

// Place prices the cart and persists the order with its frozen breakdown,
// line items and the first timeline row in one transaction.
func (s *Service) Place(ctx context.Context, in PlaceInput) (Detail, error) {
	items, hotelID, err := s.Menu.Resolve(ctx, in.Lines)
	if err != nil {
		s.countPlaced("error")
		return Detail{}, err
	}
	if strings.TrimSpace(in.AddressID) == "" {
		s.countPlaced("error")
		return Detail{}, common.Validation("address id is required", nil)
	}

	quote, err := s.Engine.Compute(ctx, pricing.Input{
		Items:      items,
		CustomerID: in.CustomerID,
		PromoCode:  in.PromoCode,
		UserCoords: in.UserCoords,
		ShopCoords: in.ShopCoords,
	})
	if err != nil {
		s.countPlaced("error")
		return Detail{}, err
	}

	ord := store.Order{
		ID:                 uuid.NewString(),
		Code:               genOrderCode(hotelID),
		CustomerID:         in.CustomerID,
		HotelID:            hotelID,
		AddressID:          in.AddressID,
		Status:             store.StatusPlaced,
		Subtotal:           quote.Subtotal,
		GSTAmount:          quote.GSTAmount,
		DeliveryCharge:     quote.DeliveryCharge,
		DriverCompensation: quote.DriverCompensation,
		PlatformFee:        quote.PlatformFee,
		Discount:           quote.Discount,
		TotalPayable:       quote.RoundedTotal,
		RoundOff:           quote.RoundOff,
		PaymentRef:         in.PaymentRef,
	}
	if quote.PromoID != "" {
		promoID := quote.PromoID
		ord.PromoCodeID = &promoID
	}

	var lines []store.OrderItem
	err = s.Store.WithTx(ctx, func(q store.Querier) error {
		if err := q.InsertOrder(ctx, ord); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for _, it := range items {
			line := store.OrderItem{
				OrderID:      ord.ID,
				DishID:       it.DishID,
				Name:         it.Name,
				Qty:          int32(it.Qty),
				UserPrice:    it.UnitPrice,
				PartnerPrice: it.PartnerPrice,
			}
			if err := q.InsertOrderItem(ctx, line); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			lines = append(lines, line)
		}
		return q.AppendTimeline(ctx, ord.ID, StatusPlaced.timelineTitle(), store.StatusPlaced)
	})
	if err != nil {
		s.countPlaced("error")
		return Detail{}, err
	}

	s.countPlaced("ok")
	s.emit(ctx, events.TopicOrderPlaced, ord.ID, map[string]any{
		"orderId":    ord.ID,
		"code":       ord.Code,
		"customerId": ord.CustomerID,
		"hotelId":    ord.HotelID,
		"total":      ord.TotalPayable,
	})

	timeline, err := s.Store.ListTimeline(ctx, ord.ID)
	if err != nil {
		s.Log.Warn().Err(err).Str("order_id", ord.ID).Msg("load timeline after placement")
	}
	return Detail{Order: ord, Items: lines, Timeline: timeline}, nil
}

// Get loads an order with its lines and timeline.
func (s *Service) Get(ctx context.Context, orderID string) (Detail, error) {
	ord, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, common.NotFound("order not found", err)
		}
		return Detail{}, fmt.Errorf("load order: %w", err)
	}
	items, err := s.Store.ListOrderItems(ctx, orderID)
	if err != nil {
		return Detail{}, fmt.Errorf("load order items: %w", err)
	}
	timeline, err := s.Store.ListTimeline(ctx, orderID)
	if err != nil {
		return Detail{}, fmt.Errorf("load timeline: %w", err)
	}
	return Detail{Order: ord, Items: items, Timeline: timeline}, nil
}

// Transition moves the order to a new state. The update is optimistic: the
// row only changes when its status still equals the state the caller saw.
// Entering DELIVERED triggers the settlement side effects; those are
// idempotent and their failures never undo the transition.
func (s *Service) Transition(ctx context.Context, orderID string, to Status, actor common.Actor) (store.Order, error) {
	if !to.Known() {
		return store.Order{}, common.Validation("unknown order status", nil)
	}
	ord, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Order{}, common.NotFound("order not found", err)
		}
		return store.Order{}, fmt.Errorf("load order: %w", err)
	}
	from := Status(ord.Status)
	if !Allowed(from, to) {
		s.countTransition(to, "invalid")
		return store.Order{}, common.Conflict(
			fmt.Sprintf("cannot transition from %s to %s", from, to), ErrInvalidTransition)
	}

	err = s.Store.WithTx(ctx, func(q store.Querier) error {
		ok, err := q.UpdateOrderStatusIf(ctx, orderID, int(from), int(to))
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if !ok {
			return common.Conflict("order status changed concurrently", ErrStatusConflict)
		}
		return q.AppendTimeline(ctx, orderID, to.timelineTitle(), int(to))
	})
	if err != nil {
		s.countTransition(to, "conflict")
		return store.Order{}, err
	}
	ord.Status = int(to)
	s.countTransition(to, "ok")

	if to == StatusDelivered {
		s.settleDelivered(ctx, ord)
	}

	s.emit(ctx, topicFor(to), ord.ID, map[string]any{
		"orderId":   ord.ID,
		"code":      ord.Code,
		"from":      from.String(),
		"to":        to.String(),
		"actorId":   actor.ID,
		"actorRole": actor.Role,
	})
	return ord, nil
}

// settleDelivered creates the partner ledger rows and the driver earning.
// Both are idempotent; a failure here is logged and recoverable through the
// earning creation endpoint, never by un-delivering the order.
func (s *Service) settleDelivered(ctx context.Context, ord store.Order) {
	if s.Partner != nil {
		if _, err := s.Partner.CreateForOrder(ctx, ord.ID); err != nil {
			s.Log.Error().Err(err).Str("order_id", ord.ID).Msg("partner settlement on delivery")
		}
	}
	if s.Earnings != nil && ord.DriverID != nil {
		if _, err := s.Earnings.Create(ctx, *ord.DriverID, ord.ID); err != nil {
			s.Log.Error().Err(err).Str("order_id", ord.ID).Str("driver_id", *ord.DriverID).Msg("driver earning on delivery")
		}
	}
}

// AssignDriver records the driver on the order. Assigning the same driver
// twice is an idempotent success; a different driver is rejected.
func (s *Service) AssignDriver(ctx context.Context, orderID, driverID string, actor common.Actor) (store.Order, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return store.Order{}, common.Validation("driver id is required", nil)
	}
	ord, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Order{}, common.NotFound("order not found", err)
		}
		return store.Order{}, fmt.Errorf("load order: %w", err)
	}
	if Status(ord.Status).Terminal() {
		return store.Order{}, common.Conflict("order is already closed", ErrInvalidTransition)
	}

	ok, err := s.Store.AssignDriverIfUnassigned(ctx, orderID, driverID)
	if err != nil {
		return store.Order{}, fmt.Errorf("assign driver: %w", err)
	}
	if !ok {
		return store.Order{}, common.Conflict("order already assigned to another driver", ErrAlreadyAssigned)
	}
	ord.DriverID = &driverID

	// Move PREPARING orders to ASSIGNED as part of the assignment; a retry
	// that finds the order already ASSIGNED is fine.
	if Status(ord.Status) == StatusPreparing {
		updated, err := s.Transition(ctx, orderID, StatusAssigned, actor)
		if err == nil {
			updated.DriverID = &driverID
			return updated, nil
		}
		if !errors.Is(err, ErrStatusConflict) {
			s.Log.Warn().Err(err).Str("order_id", orderID).Msg("status transition after driver assignment")
		}
	} else {
		s.emit(ctx, events.TopicOrderAssigned, ord.ID, map[string]any{
			"orderId":  ord.ID,
			"driverId": driverID,
		})
	}
	return ord, nil
}

func (s *Service) emit(ctx context.Context, topic, aggregateID string, payload map[string]any) {
	if s.Bus == nil || topic == "" {
		return
	}
	if _, err := s.Bus.Emit(ctx, topic, aggregateID, payload); err != nil {
		s.Log.Warn().Err(err).Str("topic", topic).Msg("event dispatch")
	}
}

func (s *Service) countPlaced(result string) {
	if obs.OrdersPlacedTotal != nil {
		obs.OrdersPlacedTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countTransition(to Status, result string) {
	if obs.OrderTransitionsTotal != nil {
		obs.OrderTransitionsTotal.WithLabelValues(to.String(), result).Inc()
	}
}

func topicFor(to Status) string {
	switch to {
	case StatusPreparing:
		return events.TopicOrderPreparing
	case StatusAssigned:
		return events.TopicOrderAssigned
	case StatusAccepted:
		return events.TopicOrderAccepted
	case StatusRejected:
		return events.TopicOrderRejected
	case StatusPickupConfirmed:
		return events.TopicOrderPickedUp
	case StatusDelivered:
		return events.TopicOrderDelivered
	case StatusCancelled:
		return events.TopicOrderCancelled
	}
	return ""
}

// genOrderCode builds the human-readable order code from a random prefix and
// a fragment of the hotel id.
func genOrderCode(hotelID string) string {
	frag := strings.ToUpper(strings.ReplaceAll(hotelID, "-", ""))
	if len(frag) > 4 {
		frag = frag[:4]
	}
	prefix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return "KH-" + prefix + "-" + frag
}
