package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trade_gateway/internal/models"
	venues "trade_gateway/internal/modules/venues/service"
	"trade_gateway/pkg/logger"
	"trade_gateway/pkg/tracing"
)

var errTradingDisabled = fmt.Errorf("%w: trading is disabled", models.ErrExecutionFailure)

type VenueSource interface {
	Get(name models.Venue) (venues.Venue, error)
}

// EventSink receives every lifecycle transition. Publish must not block.
type EventSink interface {
	Publish(ctx context.Context, ev models.TradeEvent)
}

// Manager owns the pending set and the executed log.
type Manager struct {
	venues   VenueSource
	settings *Settings
	sinks    []EventSink
	timeout  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	pending  map[string]models.Suggestion
	executed []models.ExecutedTrade
}

func NewManager(v VenueSource, settings *Settings, timeout time.Duration, sinks ...EventSink) *Manager {
	return &Manager{
		venues:   v,
		settings: settings,
		sinks:    sinks,
		timeout:  timeout,
		now:      time.Now,
		pending:  make(map[string]models.Suggestion),
	}
}

// Submit executes right away or parks the suggestion until confirmed,
// depending on confirm_trades.
func (m *Manager) Submit(ctx context.Context, s models.Suggestion) (models.ExecutedTrade, error) {
	if err := s.Validate(); err != nil {
		return models.ExecutedTrade{}, err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}

	if !m.settings.Settings().ConfirmTrades {
		return m.Execute(ctx, s), nil
	}

	m.mu.Lock()
	m.pending[s.ID] = s
	m.mu.Unlock()

	logger.Info("Trade %s pending confirmation: %s %s %v on %s", s.ID, s.Side, s.Symbol, s.Amount, s.Venue)
	m.publish(ctx, models.TradeEvent{TradeID: s.ID, Status: models.StatusPending, Suggestion: s})
	return models.ExecutedTrade{Suggestion: s, Status: models.StatusPending}, nil
}

// Confirm removes the trade from pending and executes it. The removal sticks
// whatever the execution outcome.
func (m *Manager) Confirm(ctx context.Context, id string) (models.ExecutedTrade, error) {
	s, ok := m.take(id)
	if !ok {
		return models.ExecutedTrade{}, fmt.Errorf("%s: %w", id, models.ErrNotFound)
	}
	return m.Execute(ctx, s), nil
}

func (m *Manager) Cancel(ctx context.Context, id string) error {
	s, ok := m.take(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, models.ErrNotFound)
	}
	logger.Info("Trade %s cancelled", id)
	m.publish(ctx, models.TradeEvent{TradeID: id, Status: models.StatusCancelled, Suggestion: s})
	return nil
}

// take атомарно вынимает trade из pending, второй вызов получит false.
func (m *Manager) take(id string) (models.Suggestion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	return s, ok
}

// Execute places the order on the suggestion's venue. Errors never escape:
// they end up as a failed entry in the executed log.
func (m *Manager) Execute(ctx context.Context, s models.Suggestion) models.ExecutedTrade {
	span, ctx := tracing.StartSpan(ctx, "trading.Execute")
	defer span.Finish()
	span.SetTag("trade_id", s.ID)
	span.SetTag("venue", string(s.Venue))

	res, err := m.place(ctx, s)

	trade := models.ExecutedTrade{
		Suggestion: s,
		Status:     models.StatusExecuted,
		OrderID:    res.OrderID,
		ExecutedAt: m.now(),
	}
	if err != nil {
		tracing.Fail(span, err)
		logger.Error("Error executing trade %s: %v", s.ID, err)
		trade.Status = models.StatusFailed
		trade.Error = err.Error()
	} else {
		logger.Info("%s order executed: trade=%s order=%s", s.Venue, s.ID, res.OrderID)
	}

	m.mu.Lock()
	m.executed = append(m.executed, trade)
	m.mu.Unlock()

	m.publish(ctx, models.TradeEvent{
		TradeID:    s.ID,
		Status:     trade.Status,
		Suggestion: s,
		OrderID:    trade.OrderID,
		Error:      trade.Error,
	})
	return trade
}

func (m *Manager) place(ctx context.Context, s models.Suggestion) (models.OrderResult, error) {
	if !m.settings.Settings().Enabled {
		return models.OrderResult{}, errTradingDisabled
	}
	v, err := m.venues.Get(s.Venue)
	if err != nil {
		return models.OrderResult{}, fmt.Errorf("%w: %w", models.ErrExecutionFailure, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	res, err := v.PlaceOrder(ctx, s)
	if err != nil {
		return models.OrderResult{}, fmt.Errorf("%w: %w", models.ErrExecutionFailure, err)
	}
	return res, nil
}

func (m *Manager) publish(ctx context.Context, ev models.TradeEvent) {
	ev.At = m.now()
	for _, sink := range m.sinks {
		sink.Publish(ctx, ev)
	}
}

func (m *Manager) Pending(id string) (models.Suggestion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.pending[id]
	return s, ok
}

// PendingList returns pending trades, oldest first.
func (m *Manager) PendingList() []models.Suggestion {
	m.mu.Lock()
	out := make([]models.Suggestion, 0, len(m.pending))
	for _, s := range m.pending {
		out = append(out, s)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Executed returns a copy of the executed log in execution order.
func (m *Manager) Executed() []models.ExecutedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ExecutedTrade, len(m.executed))
	copy(out, m.executed)
	return out
}
