package models

import "strings"

// Venue identifies an external trading counterparty.
type Venue string

const (
	VenuePrediction Venue = "prediction-market"
	VenueSpot       Venue = "spot-exchange"
)

// ParseVenue accepts the canonical names and the legacy kalshi/kraken aliases.
func ParseVenue(raw string) (Venue, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(VenuePrediction), "kalshi":
		return VenuePrediction, true
	case string(VenueSpot), "kraken":
		return VenueSpot, true
	default:
		return "", false
	}
}

// Side is venue specific: yes/no on binary markets, buy/sell on spot.
type Side string

const (
	SideYes  Side = "yes"
	SideNo   Side = "no"
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ValidFor reports whether the side belongs to the venue vocabulary.
func (s Side) ValidFor(v Venue) bool {
	switch v {
	case VenuePrediction:
		return s == SideYes || s == SideNo
	case VenueSpot:
		return s == SideBuy || s == SideSell
	}
	return false
}

// Instrument is a venue snapshot, fetched fresh per request.
type Instrument struct {
	Symbol string
	Title  string
	Price  float64
	Change float64 // 24h change, percent
	Volume float64
}

// OrderResult is the opaque venue answer to a placed order.
type OrderResult struct {
	OrderID string         `json:"order_id,omitempty"`
	Raw     map[string]any `json:"raw,omitempty"`
}
