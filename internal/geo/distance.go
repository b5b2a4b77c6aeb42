// Package geo computes delivery distances and maps them onto configured
// charge bands.
package geo

import (
	"errors"
	"math"
)

const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceKm returns the great-circle distance between two points in
// kilometers using the haversine formula.
func DistanceKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Band maps a distance range to a fixed delivery price in paise.
type Band struct {
	MinKm float64 `json:"min_km"`
	MaxKm float64 `json:"max_km"`
	Price int64   `json:"price"`
}

// ErrNoBands indicates the delivery charge table has not been configured.
var ErrNoBands = errors.New("geo: no delivery charge bands configured")

// DeliveryQuote is the banded price for one delivery. Charge is what the
// customer pays; Compensation is what the delivery actor is owed for the
// trip. Both come from the same band price; later pricing stages may zero
// the charge without touching the compensation.
type DeliveryQuote struct {
	Charge       int64
	Compensation int64
	// TopBandFallback is set when the distance exceeded every configured
	// band and the highest band's price was applied. This is deliberate
	// fail-open behaviour, not an error.
	TopBandFallback bool
}

// Quote selects the band containing distanceKm. Distances beyond the last
// band fall back to the highest band's price (unbounded-zone policy).
func Quote(distanceKm float64, bands []Band) (DeliveryQuote, error) {
	if len(bands) == 0 {
		return DeliveryQuote{}, ErrNoBands
	}
	top := bands[0]
	for _, b := range bands {
		if distanceKm >= b.MinKm && distanceKm <= b.MaxKm {
			return DeliveryQuote{Charge: b.Price, Compensation: b.Price}, nil
		}
		if b.MaxKm > top.MaxKm {
			top = b
		}
	}
	return DeliveryQuote{Charge: top.Price, Compensation: top.Price, TopBandFallback: true}, nil
}
