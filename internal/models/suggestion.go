package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Suggestion struct {
	ID         string    `json:"id"`
	Venue      Venue     `json:"venue"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Amount     float64   `json:"amount"`
	Price      float64   `json:"price"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewSuggestionID returns a random trade id.
func NewSuggestionID() string {
	return "trade_" + uuid.NewString()
}

// TradeStatus is the reported state of a submitted suggestion.
type TradeStatus string

const (
	StatusPending   TradeStatus = "pending"
	StatusExecuted  TradeStatus = "executed"
	StatusFailed    TradeStatus = "failed"
	StatusCancelled TradeStatus = "cancelled"
)

// ExecutedTrade is an entry of the executed log.
type ExecutedTrade struct {
	Suggestion Suggestion  `json:"suggestion"`
	Status     TradeStatus `json:"status"`
	OrderID    string      `json:"order_id,omitempty"`
	Error      string      `json:"error,omitempty"`
	ExecutedAt time.Time   `json:"executed_at"`
}

// TradeEvent is published on every lifecycle transition.
type TradeEvent struct {
	TradeID    string      `json:"trade_id"`
	Status     TradeStatus `json:"status"`
	Suggestion Suggestion  `json:"suggestion"`
	OrderID    string      `json:"order_id,omitempty"`
	Error      string      `json:"error,omitempty"`
	At         time.Time   `json:"at"`
}

// Validate checks the invariants every submitted suggestion must hold.
func (s Suggestion) Validate() error {
	switch {
	case s.Symbol == "":
		return fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	case !s.Side.ValidFor(s.Venue):
		return fmt.Errorf("%w: side %q is not valid for %s", ErrInvalidInput, s.Side, s.Venue)
	case !(s.Amount > 0):
		return fmt.Errorf("%w: amount must be > 0", ErrInvalidInput)
	case s.Confidence < 0 || s.Confidence > 1:
		return fmt.Errorf("%w: confidence must be in [0,1]", ErrInvalidInput)
	}
	return nil
}
