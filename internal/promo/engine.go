package promo

import (
	"errors"
	"time"
)

// Promo kinds as stored on the promo record.
const (
	KindFreeDelivery = 1
	KindFlatOff      = 2
	KindNewUser      = 3
)

var (
	// ErrPromoNotFound is returned when no active code matches.
	ErrPromoNotFound = errors.New("promo code not found")
	// ErrPromoExpired is returned when the code's expiry date has passed.
	ErrPromoExpired = errors.New("promo code expired")
	// ErrMinOrderNotMet indicates the subtotal did not reach the code's minimum.
	ErrMinOrderNotMet = errors.New("promo minimum order amount not met")
	// ErrNotFirstOrder is returned when a new-user code is used by a customer with prior orders.
	ErrNotFirstOrder = errors.New("promo code valid only on first order")
	// ErrInvalidPromoKind is returned for unrecognised code types.
	ErrInvalidPromoKind = errors.New("invalid promo code type")
)

// Rule captures the runtime constraints of a promo code.
type Rule struct {
	ID        string
	Code      string
	Kind      int
	Discount  int64
	MinOrder  int64
	ExpiresAt time.Time
	Active    bool
}

// Result is the outcome of a successful evaluation.
type Result struct {
	PromoID string
	// Discount in paise subtracted from the payable total.
	Discount int64
	// FreeDelivery signals that the delivery charge component should be
	// zeroed in the breakdown (the discount already equals it).
	FreeDelivery bool
	Label        string
}

// Evaluate validates the rule against the order context and computes the
// discount. Pure; never mutates the rule.
func Evaluate(r Rule, now time.Time, subtotal, deliveryCharge, priorOrders int64) (Result, error) {
	if !r.Active {
		return Result{}, ErrPromoNotFound
	}
	if now.After(r.ExpiresAt) {
		return Result{}, ErrPromoExpired
	}
	if subtotal < r.MinOrder {
		return Result{}, ErrMinOrderNotMet
	}
	switch r.Kind {
	case KindFreeDelivery:
		return Result{PromoID: r.ID, Discount: deliveryCharge, FreeDelivery: true, Label: r.Code + " - free delivery"}, nil
	case KindFlatOff:
		return Result{PromoID: r.ID, Discount: r.Discount, Label: r.Code}, nil
	case KindNewUser:
		if priorOrders > 0 {
			return Result{}, ErrNotFirstOrder
		}
		return Result{PromoID: r.ID, Discount: r.Discount, Label: r.Code + " - new user"}, nil
	default:
		return Result{}, ErrInvalidPromoKind
	}
}
