// Package pricing composes cart lines, taxes, delivery bands and promo codes
// into the payable total for an order.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-khana/internal/config"
	"github.com/noah-isme/backend-khana/internal/geo"
	"github.com/noah-isme/backend-khana/internal/promo"
	"github.com/noah-isme/backend-khana/internal/store"
)

// Money represents a monetary value stored in paise.
type Money = int64

var (
	// ErrEmptyCart is returned when a quote is requested with no line items.
	ErrEmptyCart = errors.New("cart has no items")
	// ErrDistanceUnavailable is returned when no delivery band table is
	// configured, so the delivery charge cannot be computed.
	ErrDistanceUnavailable = errors.New("delivery distance unavailable")
)

// Item is one resolved cart line.
type Item struct {
	DishID       string
	Name         string
	Qty          int64
	UnitPrice    Money
	PartnerPrice Money
}

// Input carries everything a quote needs. Prices on items must already be
// resolved against the menu.
type Input struct {
	Items      []Item
	CustomerID string
	PromoCode  string
	UserCoords geo.Point
	ShopCoords geo.Point
}

// Quote is the full price breakdown. Every intermediate is retained so the
// frozen copy on the order can back invoicing and dispute resolution.
type Quote struct {
	Subtotal           Money   `json:"subtotal"`
	GSTAmount          Money   `json:"gstAmount"`
	DeliveryCharge     Money   `json:"deliveryCharges"`
	PlatformFee        Money   `json:"platformFee"`
	Discount           Money   `json:"discount"`
	Total              Money   `json:"totalAmountToPay"`
	RoundedTotal       Money   `json:"roundedAmount"`
	RoundOff           Money   `json:"roundOffValue"`
	DriverCompensation Money   `json:"deliveryBoyCompensation"`
	DistanceKm         float64 `json:"distanceKm"`
	FreeDelivery       bool    `json:"freeDelivery"`
	PromoID            string  `json:"promoCodeId,omitempty"`
	PromoLabel         string  `json:"promoLabel,omitempty"`
}

// Params are the pricing knobs, injected rather than read from a global.
// Percentages are basis points.
type Params struct {
	GSTBps                int64
	GSTEnabled            bool
	PlatformFeeBps        int64
	FreeDeliveryThreshold Money
	DriverBaseAllowance   Money
}

// ParamsFromConfig copies the pricing knobs out of the app config.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		GSTBps:                int64(cfg.GSTBps),
		GSTEnabled:            cfg.GSTEnabled,
		PlatformFeeBps:        int64(cfg.PlatformFeeBps),
		FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
		DriverBaseAllowance:   cfg.DriverBaseAllowance,
	}
}

// Querier is the slice of the store the engine reads from.
type Querier interface {
	GetDeliveryBands(ctx context.Context) ([]geo.Band, error)
	GetActivePromoByCode(ctx context.Context, code string) (store.PromoCode, error)
	CountOrdersByCustomer(ctx context.Context, customerID string) (int64, error)
}

// Engine computes quotes. Safe for concurrent use.
type Engine struct {
	q      Querier
	params Params
	log    zerolog.Logger
	now    func() time.Time
}

// NewEngine wires a quote engine over the given store slice.
func NewEngine(q Querier, params Params, log zerolog.Logger) *Engine {
	return &Engine{q: q, params: params, log: log, now: time.Now}
}

// Compute runs the quote pipeline. The step order matters: the free-delivery
// threshold looks at the subtotal, the promo looks at the post-threshold
// delivery charge, and rounding happens last.
func (e *Engine) Compute(ctx context.Context, in Input) (Quote, error) {
	if len(in.Items) == 0 {
		return Quote{}, ErrEmptyCart
	}

	var quote Quote
	for _, it := range in.Items {
		quote.Subtotal += it.UnitPrice * it.Qty
	}

	if e.params.GSTEnabled {
		quote.GSTAmount = bpsOf(quote.Subtotal, e.params.GSTBps)
	}

	quote.DistanceKm = geo.DistanceKm(in.UserCoords, in.ShopCoords)
	bands, err := e.q.GetDeliveryBands(ctx)
	if err != nil {
		// An unconfigured band table and an empty one mean the same thing:
		// the delivery charge cannot be computed.
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrDistanceUnavailable
		}
		return Quote{}, err
	}
	dq, err := geo.Quote(quote.DistanceKm, bands)
	if err != nil {
		if errors.Is(err, geo.ErrNoBands) {
			return Quote{}, ErrDistanceUnavailable
		}
		return Quote{}, err
	}
	if dq.TopBandFallback {
		e.log.Warn().Float64("distance_km", quote.DistanceKm).Msg("distance beyond top delivery band, charging top band")
	}
	quote.DeliveryCharge = dq.Charge
	if quote.Subtotal >= e.params.FreeDeliveryThreshold {
		quote.DeliveryCharge = 0
		quote.FreeDelivery = true
	}

	quote.PlatformFee = bpsOf(quote.Subtotal, e.params.PlatformFeeBps)
	quote.Total = quote.Subtotal + quote.GSTAmount + quote.DeliveryCharge + quote.PlatformFee

	if in.PromoCode != "" {
		res, err := e.applyPromo(ctx, in, quote.Subtotal, quote.DeliveryCharge)
		if err != nil {
			return Quote{}, err
		}
		quote.Discount = res.Discount
		quote.PromoID = res.PromoID
		quote.PromoLabel = res.Label
		quote.Total -= res.Discount
		if quote.Total < 0 {
			quote.Total = 0
		}
		if res.FreeDelivery {
			quote.DeliveryCharge = 0
		}
	}

	quote.RoundedTotal, quote.RoundOff = CeilToRupee(quote.Total)

	// The driver is paid for the trip regardless of what the customer was
	// charged for delivery.
	quote.DriverCompensation = dq.Compensation + e.params.DriverBaseAllowance

	return quote, nil
}

func (e *Engine) applyPromo(ctx context.Context, in Input, subtotal, deliveryCharge Money) (promo.Result, error) {
	rec, err := e.q.GetActivePromoByCode(ctx, in.PromoCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promo.Result{}, promo.ErrPromoNotFound
		}
		return promo.Result{}, err
	}

	var priorOrders int64
	if rec.Kind == promo.KindNewUser {
		priorOrders, err = e.q.CountOrdersByCustomer(ctx, in.CustomerID)
		if err != nil {
			return promo.Result{}, err
		}
	}

	rule := promo.Rule{
		ID:        rec.ID,
		Code:      rec.Code,
		Kind:      rec.Kind,
		Discount:  rec.Discount,
		MinOrder:  rec.MinOrder,
		ExpiresAt: rec.ExpiresAt,
		Active:    rec.IsActive,
	}
	return promo.Evaluate(rule, e.now(), subtotal, deliveryCharge, priorOrders)
}

// CeilToRupee rounds up to the next whole rupee and reports the paise added.
func CeilToRupee(total Money) (rounded, roundOff Money) {
	if total <= 0 {
		return 0, 0
	}
	rounded = ((total + 99) / 100) * 100
	return rounded, rounded - total
}

func bpsOf(amount, bps int64) Money {
	return amount * bps / 10000
}
