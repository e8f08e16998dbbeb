package models

// EventType - тип событий, порождаемых сравнением двух соседних снапшотов
type EventType string

const (
	// EventTradeOpened - позиция появилась (не было -> есть)
	EventTradeOpened EventType = "trade_opened"

	// EventTradeClosedWin - позиция исчезла, история выросла, profit_usd > 0
	EventTradeClosedWin EventType = "trade_closed_win"

	// EventTradeClosedLoss - позиция исчезла, история выросла, profit_usd <= 0
	EventTradeClosedLoss EventType = "trade_closed_loss"
)

// Event - edge-triggered событие. Порождается ровно один раз на переход
// состояния: сравнение идёт всегда со снапшотом предыдущего тика
type Event struct {
	Type  EventType `json:"type"`
	Trade *Trade    `json:"trade,omitempty"`
}
