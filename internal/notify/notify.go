// Package notify доставляет edge-события сделок во внешние каналы.
// События приходят от reconciler ровно один раз на переход, поэтому
// нотификаторы не занимаются дедупликацией
package notify

import (
	"log"

	"sniperctl/internal/models"
)

// Notifier - один канал доставки событий
type Notifier interface {
	Notify(event models.Event)
}

// Multi рассылает событие во все каналы по очереди
type Multi []Notifier

func (m Multi) Notify(event models.Event) {
	for _, n := range m {
		n.Notify(event)
	}
}

// LogNotifier пишет события в журнал демона. Всегда включён:
// это минимальный след того, что торговля реально происходит
type LogNotifier struct{}

func (LogNotifier) Notify(event models.Event) {
	switch event.Type {
	case models.EventTradeOpened:
		if event.Trade != nil {
			log.Printf("trade opened: %s at %.4f", event.Trade.Symbol, event.Trade.EntryPrice)
		} else {
			log.Printf("trade opened")
		}
	case models.EventTradeClosedWin:
		log.Printf("trade closed: profit %+.2f USDT", tradeProfit(event))
	case models.EventTradeClosedLoss:
		log.Printf("trade closed: loss %+.2f USDT", tradeProfit(event))
	}
}

func tradeProfit(event models.Event) float64 {
	if event.Trade == nil {
		return 0
	}
	return event.Trade.ProfitUsd
}
