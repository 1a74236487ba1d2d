package service

import (
	"context"
	"fmt"
	"strings"

	"trade_gateway/internal/models"
	"trade_gateway/pkg/logger"
)

// Resolver is the part of the lifecycle a notifier may drive from its UI.
type Resolver interface {
	Confirm(ctx context.Context, id string) (models.ExecutedTrade, error)
	Cancel(ctx context.Context, id string) error
}

// Notifier is a trade event sink with its own background loop.
type Notifier interface {
	Publish(ctx context.Context, ev models.TradeEvent)
	Bind(r Resolver)
	Start() error
	Stop()
}

// Log пишет события в лог, когда Telegram не настроен.
type Log struct{}

func NewLog() *Log { return &Log{} }

func (l *Log) Publish(_ context.Context, ev models.TradeEvent) {
	logger.Info("%s", strings.ReplaceAll(formatEvent(ev), "\n", " | "))
}

func (l *Log) Bind(Resolver) {}
func (l *Log) Start() error  { return nil }
func (l *Log) Stop()         {}

func formatEvent(ev models.TradeEvent) string {
	s := ev.Suggestion
	var b strings.Builder
	switch ev.Status {
	case models.StatusPending:
		b.WriteString("🕒 Trade pending confirmation")
	case models.StatusExecuted:
		b.WriteString("✅ Trade executed")
	case models.StatusFailed:
		b.WriteString("❗️ Trade failed")
	case models.StatusCancelled:
		b.WriteString("❌ Trade cancelled")
	default:
		b.WriteString("Trade " + string(ev.Status))
	}
	fmt.Fprintf(&b, "\n%s: %s %s, amount %v @ %v (confidence %.2f)",
		s.Venue, s.Side, s.Symbol, s.Amount, s.Price, s.Confidence)
	fmt.Fprintf(&b, "\nid: %s", ev.TradeID)
	if ev.OrderID != "" {
		fmt.Fprintf(&b, "\norder: %s", ev.OrderID)
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", ev.Error)
	}
	return b.String()
}
