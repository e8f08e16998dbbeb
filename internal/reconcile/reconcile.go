// Package reconcile сравнивает последовательные снапшоты и выделяет
// edge-переходы состояния позиции. События порождаются только на
// переходе (не на стационарном наличии позиции), поэтому повторная
// подача той же пары снапшотов событий не даёт
package reconcile

import "sniperctl/internal/models"

// Diff возвращает события перехода между prev и cur.
//
// Правила:
//   - позиции не было, позиция появилась      -> TradeOpened
//   - позиция была, позиции нет И история
//     строго выросла                          -> TradeClosedWin | TradeClosedLoss
//     по знаку profit_usd последней записи истории (новые записи
//     сервер дописывает в конец)
//
// Исчезновение позиции без роста истории события не даёт: такой тик
// считается рассинхроном сервера, закрытие подтвердит следующий снапшот
func Diff(prev, cur *models.MarketSnapshot) []models.Event {
	if prev == nil || cur == nil {
		return nil
	}

	var events []models.Event

	if prev.ActiveTrade == nil && cur.ActiveTrade != nil {
		opened := *cur.ActiveTrade
		events = append(events, models.Event{
			Type:  models.EventTradeOpened,
			Trade: &opened,
		})
	}

	if prev.ActiveTrade != nil && cur.ActiveTrade == nil && len(cur.History) > len(prev.History) {
		closed := cur.History[len(cur.History)-1]
		evType := models.EventTradeClosedLoss
		if closed.IsWin() {
			evType = models.EventTradeClosedWin
		}
		events = append(events, models.Event{
			Type:  evType,
			Trade: &closed,
		})
	}

	return events
}

// Reconciler хранит последний увиденный снапшот и служит подписчиком
// Store для случаев, когда продюсер не передаёт пару (prev, cur) сам
type Reconciler struct {
	prev *models.MarketSnapshot
	sink func(models.Event)
}

// New создаёт reconciler с приёмником событий
func New(sink func(models.Event)) *Reconciler {
	return &Reconciler{sink: sink}
}

// Observe принимает очередной снапшот, эмитит события и запоминает
// снапшот как предыдущий для следующего вызова
func (r *Reconciler) Observe(cur *models.MarketSnapshot) {
	if cur == nil {
		return
	}
	for _, ev := range Diff(r.prev, cur) {
		if r.sink != nil {
			r.sink(ev)
		}
	}
	r.prev = cur
}
