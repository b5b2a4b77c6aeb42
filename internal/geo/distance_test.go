package geo

import (
	"math"
	"testing"
)

func TestDistanceKmKnownPair(t *testing.T) {
	// Connaught Place to Gurgaon Cyber City, roughly 23 km.
	cp := Point{Lat: 28.6315, Lon: 77.2167}
	cyber := Point{Lat: 28.4950, Lon: 77.0895}
	got := DistanceKm(cp, cyber)
	if math.Abs(got-19.7) > 1.5 {
		t.Fatalf("unexpected distance %.2f km", got)
	}
}

func TestDistanceKmZero(t *testing.T) {
	p := Point{Lat: 12.9716, Lon: 77.5946}
	if d := DistanceKm(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

var testBands = []Band{
	{MinKm: 0, MaxKm: 3, Price: 2000},
	{MinKm: 3, MaxKm: 6, Price: 3000},
	{MinKm: 6, MaxKm: 10, Price: 5000},
}

func TestQuoteSelectsContainingBand(t *testing.T) {
	q, err := Quote(4, testBands)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Charge != 3000 || q.Compensation != 3000 {
		t.Fatalf("expected 3000/3000, got %d/%d", q.Charge, q.Compensation)
	}
	if q.TopBandFallback {
		t.Fatal("in-band distance should not be flagged as fallback")
	}
}

func TestQuoteBeyondAllBandsUsesTopBand(t *testing.T) {
	q, err := Quote(42, testBands)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Charge != 5000 {
		t.Fatalf("expected top band price 5000, got %d", q.Charge)
	}
	if !q.TopBandFallback {
		t.Fatal("expected fallback flag for out-of-band distance")
	}
}

func TestQuoteEmptyTable(t *testing.T) {
	if _, err := Quote(1, nil); err != ErrNoBands {
		t.Fatalf("expected ErrNoBands, got %v", err)
	}
}
