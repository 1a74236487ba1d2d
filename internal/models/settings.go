package models

// TradingSettings is the process-wide runtime configuration.
type TradingSettings struct {
	TradeSize     float64 `json:"trade_size"`
	ConfirmTrades bool    `json:"confirm_trades"`
	Enabled       bool    `json:"enabled"`
}

// TradingSettingsPatch is a partial update; nil fields are left as is.
type TradingSettingsPatch struct {
	TradeSize     *float64 `json:"trade_size,omitempty"`
	ConfirmTrades *bool    `json:"confirm_trades,omitempty"`
	Enabled       *bool    `json:"enabled,omitempty"`
}
