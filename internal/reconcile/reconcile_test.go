package reconcile

import (
	"sync"
	"testing"

	"sniperctl/internal/models"
	"sniperctl/internal/state"
)

func snapWith(active *models.Trade, history []models.Trade) *models.MarketSnapshot {
	return &models.MarketSnapshot{
		ActiveTrade: active,
		History:     history,
	}
}

func TestDiff_TradeOpenedExactlyOnce(t *testing.T) {
	trade := &models.Trade{ID: 1, Symbol: "BTC/USDT"}
	prev := snapWith(nil, []models.Trade{})
	cur := snapWith(trade, []models.Trade{})

	events := Diff(prev, cur)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Type != models.EventTradeOpened {
		t.Errorf("Expected %s, got %s", models.EventTradeOpened, events[0].Type)
	}
	if events[0].Trade == nil || events[0].Trade.Symbol != "BTC/USDT" {
		t.Error("Expected the opened trade attached to the event")
	}

	// Та же пара подана второй раз: cur стал prev, события нет
	if again := Diff(cur, cur); len(again) != 0 {
		t.Errorf("Steady-state presence must not re-fire, got %d events", len(again))
	}
}

func TestDiff_TradeClosedLoss(t *testing.T) {
	active := &models.Trade{ID: 7, Symbol: "ETH/USDT"}
	prev := snapWith(active, []models.Trade{{ID: 1, ProfitUsd: 3}})
	cur := snapWith(nil, []models.Trade{
		{ID: 1, ProfitUsd: 3},
		{ID: 7, ProfitUsd: -5},
	})

	events := Diff(prev, cur)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Type != models.EventTradeClosedLoss {
		t.Errorf("Expected %s, got %s", models.EventTradeClosedLoss, events[0].Type)
	}
	if events[0].Trade.ProfitUsd != -5 {
		t.Errorf("Expected closing trade with profit -5, got %f", events[0].Trade.ProfitUsd)
	}
}

func TestDiff_TradeClosedWin(t *testing.T) {
	active := &models.Trade{ID: 9}
	prev := snapWith(active, nil)
	cur := snapWith(nil, []models.Trade{{ID: 9, ProfitUsd: 12.5}})

	events := Diff(prev, cur)
	if len(events) != 1 || events[0].Type != models.EventTradeClosedWin {
		t.Fatalf("Expected single TradeClosedWin, got %v", events)
	}
}

func TestDiff_NoCloseWithoutHistoryGrowth(t *testing.T) {
	active := &models.Trade{ID: 3}
	history := []models.Trade{{ID: 1, ProfitUsd: 2}}
	prev := snapWith(active, history)
	cur := snapWith(nil, history)

	if events := Diff(prev, cur); len(events) != 0 {
		t.Errorf("Position gone without history growth must emit nothing, got %v", events)
	}
}

func TestDiff_NilPrevEmitsNothing(t *testing.T) {
	cur := snapWith(&models.Trade{ID: 1}, nil)
	if events := Diff(nil, cur); len(events) != 0 {
		t.Errorf("First snapshot must not produce events, got %v", events)
	}
}

func TestReconciler_ObserveSequence(t *testing.T) {
	var got []models.Event
	rec := New(func(ev models.Event) { got = append(got, ev) })

	trade := &models.Trade{ID: 4, Symbol: "SOL/USDT"}

	rec.Observe(snapWith(nil, []models.Trade{}))
	rec.Observe(snapWith(trade, []models.Trade{}))
	rec.Observe(snapWith(trade, []models.Trade{}))
	rec.Observe(snapWith(nil, []models.Trade{{ID: 4, ProfitUsd: 1.2}}))

	if len(got) != 2 {
		t.Fatalf("Expected 2 events (open + close), got %d", len(got))
	}
	if got[0].Type != models.EventTradeOpened {
		t.Errorf("Expected first event %s, got %s", models.EventTradeOpened, got[0].Type)
	}
	if got[1].Type != models.EventTradeClosedWin {
		t.Errorf("Expected second event %s, got %s", models.EventTradeClosedWin, got[1].Type)
	}
}

func TestReconciler_ConcurrentStoreUpdatesEmitOpenOnce(t *testing.T) {
	store := state.NewStore(state.NewImmunitySet(), nil)

	// Reconciler подписан так же, как в демоне: его prev живёт без
	// собственного мьютекса и полагается на сериализацию публикаций
	opened := 0
	r := New(func(event models.Event) {
		if event.Type == models.EventTradeOpened {
			opened++
		}
	})
	store.Subscribe(func(prev, cur *models.MarketSnapshot) {
		r.Observe(cur)
	})

	trade := &models.Trade{ID: 7, Symbol: "BTC/USDT"}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			store.Apply(&models.MarketSnapshot{
				Symbol:      "BTC/USDT",
				ActiveTrade: trade,
				History:     []models.Trade{},
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			store.ApplyLocal(func(s *models.MarketSnapshot) {
				s.RiskPct = 10 + i%5
			})
		}
	}()
	wg.Wait()

	if opened != 1 {
		t.Errorf("Expected exactly one open event, got %d", opened)
	}
}
