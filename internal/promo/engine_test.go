package promo

import (
	"testing"
	"time"
)

func activeRule(kind int) Rule {
	return Rule{
		ID:        "p1",
		Code:      "FIRST50",
		Kind:      kind,
		Discount:  5000,
		MinOrder:  20000,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		Active:    true,
	}
}

func TestEvaluateFreeDelivery(t *testing.T) {
	res, err := Evaluate(activeRule(KindFreeDelivery), time.Now(), 30000, 3000, 2)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Discount != 3000 {
		t.Fatalf("expected discount equal to delivery charge, got %d", res.Discount)
	}
	if !res.FreeDelivery {
		t.Fatal("expected FreeDelivery flag")
	}
}

func TestEvaluateFlatOff(t *testing.T) {
	res, err := Evaluate(activeRule(KindFlatOff), time.Now(), 30000, 3000, 5)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Discount != 5000 {
		t.Fatalf("expected flat 5000 off, got %d", res.Discount)
	}
}

func TestEvaluateNewUserWithPriorOrders(t *testing.T) {
	if _, err := Evaluate(activeRule(KindNewUser), time.Now(), 30000, 3000, 1); err != ErrNotFirstOrder {
		t.Fatalf("expected ErrNotFirstOrder, got %v", err)
	}
}

func TestEvaluateNewUserFirstOrder(t *testing.T) {
	res, err := Evaluate(activeRule(KindNewUser), time.Now(), 30000, 3000, 0)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Discount != 5000 {
		t.Fatalf("expected 5000, got %d", res.Discount)
	}
}

func TestEvaluateExpired(t *testing.T) {
	r := activeRule(KindFlatOff)
	r.ExpiresAt = time.Now().Add(-time.Hour)
	if _, err := Evaluate(r, time.Now(), 30000, 3000, 0); err != ErrPromoExpired {
		t.Fatalf("expected ErrPromoExpired, got %v", err)
	}
}

func TestEvaluateMinOrderNotMet(t *testing.T) {
	if _, err := Evaluate(activeRule(KindFlatOff), time.Now(), 10000, 3000, 0); err != ErrMinOrderNotMet {
		t.Fatalf("expected ErrMinOrderNotMet, got %v", err)
	}
}

func TestEvaluateInactive(t *testing.T) {
	r := activeRule(KindFlatOff)
	r.Active = false
	if _, err := Evaluate(r, time.Now(), 30000, 3000, 0); err != ErrPromoNotFound {
		t.Fatalf("expected ErrPromoNotFound, got %v", err)
	}
}

func TestEvaluateUnknownKind(t *testing.T) {
	r := activeRule(9)
	if _, err := Evaluate(r, time.Now(), 30000, 3000, 0); err != ErrInvalidPromoKind {
		t.Fatalf("expected ErrInvalidPromoKind, got %v", err)
	}
}
