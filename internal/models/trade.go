package models

// Стороны сделки
const (
	SideLong  = "LONG"
	SideShort = "SHORT"

	// Стороны ручного ордера (wire-формат команды manual_trade)
	OrderBuy  = "BUY"
	OrderSell = "SELL"
)

// Результаты закрытой сделки
const (
	ResultWin  = "WIN"
	ResultLoss = "LOSS"
)

// Trade - одна сделка. Закрытая сделка иммутабельна; открытая позиция
// (ActiveTrade снапшота) - единственная сущность, чей производный PnL
// пересчитывается на клиенте от текущей цены
type Trade struct {
	ID            int     `json:"id,omitempty"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	EntryTime     string  `json:"entry_time,omitempty"`
	ExitTime      string  `json:"exit_time,omitempty"`
	EntryPrice    float64 `json:"entry_price,omitempty"`
	SLPrice       float64 `json:"sl_price,omitempty"`
	TPPrice       float64 `json:"tp_price,omitempty"`
	InvestedValue float64 `json:"invested_value,omitempty"`
	// Сервер отдаёт invested в истории и invested_value в открытой позиции
	Invested  float64 `json:"invested,omitempty"`
	ProfitUsd float64 `json:"profit_usd,omitempty"`
	ProfitPct float64 `json:"profit_pct,omitempty"`
	Result    string  `json:"result,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	Trigger   string  `json:"trigger,omitempty"`
}

// IsWin - исход закрытой сделки определяется знаком profit_usd
func (t *Trade) IsWin() bool {
	return t.ProfitUsd > 0
}
