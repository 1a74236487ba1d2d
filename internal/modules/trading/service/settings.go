package service

import (
	"fmt"
	"sync"

	"trade_gateway/internal/models"
	"trade_gateway/pkg/logger"
)

// Settings is the runtime trading configuration, last writer wins.
type Settings struct {
	mu  sync.RWMutex
	cur models.TradingSettings
}

func NewSettings(initial models.TradingSettings) *Settings {
	return &Settings{cur: initial}
}

func (s *Settings) Settings() models.TradingSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update applies a partial patch and returns the resulting configuration.
func (s *Settings) Update(p models.TradingSettingsPatch) (models.TradingSettings, error) {
	if p.TradeSize != nil && !(*p.TradeSize > 0) {
		return models.TradingSettings{}, fmt.Errorf("%w: trade_size must be > 0", models.ErrInvalidInput)
	}

	s.mu.Lock()
	if p.TradeSize != nil {
		s.cur.TradeSize = *p.TradeSize
	}
	if p.ConfirmTrades != nil {
		s.cur.ConfirmTrades = *p.ConfirmTrades
	}
	if p.Enabled != nil {
		s.cur.Enabled = *p.Enabled
	}
	cur := s.cur
	s.mu.Unlock()

	logger.Info("Config updated: trade_size=%v confirm_trades=%v enabled=%v",
		cur.TradeSize, cur.ConfirmTrades, cur.Enabled)
	return cur, nil
}
