// Package command реализует одноразовые управляющие команды бота.
//
// Каждая команда: клиентская предпроверка (без сети при нарушении),
// открытие окна иммунитета над полями, которые команда должна изменить,
// оптимистичная локальная правка через merge-точку и сам wire-вызов.
// Окно гасит "отскок" значения на ближайших 1-2 тиках опроса, пока
// backend распространяет изменение
package command

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"sniperctl/internal/config"
	"sniperctl/internal/metrics"
	"sniperctl/internal/models"
	"sniperctl/internal/state"
	"sniperctl/pkg/utils"
)

// ErrConfirmationDeclined возвращается, когда деструктивное действие
// не подтверждено. Сетевой вызов при этом не выполняется
var ErrConfirmationDeclined = errors.New("confirmation declined")

// API - подмножество клиента, нужное диспетчеру
type API interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	ManualTrade(ctx context.Context, side string) error
	SetSymbol(ctx context.Context, symbol string) error
	SwitchMode(ctx context.Context, testnet bool) (float64, string, error)
	SetRiskConfig(ctx context.Context, pct int) error
	Reset(ctx context.Context) (float64, string, error)
	Liquidate(ctx context.Context) error
	Panic(ctx context.Context) error
}

// Confirmer подтверждает деструктивные действия (liquidate, panic).
// Отказ означает: команда не отправляется вовсе
type Confirmer interface {
	Confirm(action string) bool
}

// AutoConfirm подтверждает всё. Используется HTTP слоем: там
// подтверждение уже дал вызывающий клиент явным флагом
type AutoConfirm struct{}

func (AutoConfirm) Confirm(string) bool { return true }

// Refresher будит Market Poller для внепланового тика после успешной
// команды
type Refresher interface {
	ForceRefresh()
}

// Result - итог команды для вызывающего
type Result struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

// Dispatcher выполняет команды последовательно с точки зрения состояния:
// все правки идут через state.Store
type Dispatcher struct {
	api       API
	store     *state.Store
	windows   config.ImmunityConfig
	confirmer Confirmer
	refresher Refresher
}

// NewDispatcher собирает диспетчер. confirmer и refresher опциональны
func NewDispatcher(api API, store *state.Store, windows config.ImmunityConfig, confirmer Confirmer, refresher Refresher) *Dispatcher {
	if confirmer == nil {
		confirmer = AutoConfirm{}
	}
	return &Dispatcher{
		api:       api,
		store:     store,
		windows:   windows,
		confirmer: confirmer,
		refresher: refresher,
	}
}

// Start запускает автоторговлю. Требует заполненного профиля:
// имя трейдера и Telegram должны быть настроены на сервере
func (d *Dispatcher) Start(ctx context.Context) (*Result, error) {
	snap := d.store.Snapshot()
	if !snap.Auth.HasName || !snap.Auth.HasTelegram {
		return nil, &models.ValidationError{
			Field:   "profile",
			Message: "trader name and telegram must be configured before starting",
		}
	}

	return d.run(ctx, "start", func(ctx context.Context) error {
		d.holdRunning(true)
		return d.api.Start(ctx)
	})
}

// Stop останавливает автоторговлю
func (d *Dispatcher) Stop(ctx context.Context) (*Result, error) {
	return d.run(ctx, "stop", func(ctx context.Context) error {
		d.holdRunning(false)
		return d.api.Stop(ctx)
	})
}

// ManualOrder отправляет ручной ордер. side: BUY или SELL
func (d *Dispatcher) ManualOrder(ctx context.Context, side string) (*Result, error) {
	side = strings.ToUpper(strings.TrimSpace(side))
	if side != models.OrderBuy && side != models.OrderSell {
		return nil, &models.ValidationError{Field: "side", Message: "side must be BUY or SELL"}
	}

	return d.run(ctx, "manual_order", func(ctx context.Context) error {
		d.store.Immunity().Hold(state.GroupPosition, d.windows.ManualOrder)
		return d.api.ManualTrade(ctx, side)
	})
}

// ChangeSymbol переключает торгуемую пару. Символ заблокирован, пока
// открыта позиция: предпроверка отсекает команду без сетевого вызова
func (d *Dispatcher) ChangeSymbol(ctx context.Context, symbol string) (*Result, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := utils.ValidateSymbol(symbol); err != nil {
		return nil, &models.ValidationError{Field: "symbol", Message: err.Error()}
	}

	snap := d.store.Snapshot()
	if snap.HasPosition() {
		return nil, &models.ValidationError{
			Field:   "symbol",
			Message: "symbol is locked while a trade is active",
		}
	}
	if snap.Symbol == symbol {
		return &Result{ID: uuid.NewString(), Message: "symbol unchanged"}, nil
	}

	return d.run(ctx, "change_symbol", func(ctx context.Context) error {
		d.store.Immunity().Hold(state.GroupSymbol, d.windows.Symbol)
		d.store.ApplyLocal(func(s *models.MarketSnapshot) {
			s.Symbol = symbol
			// Графики прошлой пары немедленно гасятся: свечи чужого
			// символа не должны дорисовываться под новым именем
			s.Primary = models.TimeframeView{}
			s.Macro = models.TimeframeView{}
		})
		return d.api.SetSymbol(ctx, symbol)
	})
}

// SwitchEnvironment переключает симулятор/реальную торговлю. Баланс
// нового окружения берётся из ответа сервера, клиент его не считает
func (d *Dispatcher) SwitchEnvironment(ctx context.Context, testnet bool) (*Result, error) {
	return d.run(ctx, "switch_environment", func(ctx context.Context) error {
		d.store.Immunity().Hold(state.GroupBalances, d.windows.Environment)
		newBalance, _, err := d.api.SwitchMode(ctx, testnet)
		if err != nil {
			return err
		}
		d.store.ApplyLocal(func(s *models.MarketSnapshot) {
			s.IsTestnet = testnet
			if testnet {
				s.Balances.Paper = newBalance
			} else {
				s.Balances.Real = newBalance
			}
		})
		return nil
	})
}

// SetRisk обновляет процент риска на сделку
func (d *Dispatcher) SetRisk(ctx context.Context, pct int) (*Result, error) {
	if err := utils.ValidateRiskPct(pct); err != nil {
		return nil, &models.ValidationError{Field: "risk_pct", Message: err.Error()}
	}

	return d.run(ctx, "set_risk", func(ctx context.Context) error {
		d.store.Immunity().Hold(state.GroupRisk, d.windows.Risk)
		d.store.ApplyLocal(func(s *models.MarketSnapshot) {
			s.RiskPct = pct
		})
		return d.api.SetRiskConfig(ctx, pct)
	})
}

// ResetAccount сбрасывает paper-банк к начальному значению
func (d *Dispatcher) ResetAccount(ctx context.Context) (*Result, error) {
	return d.run(ctx, "reset_account", func(ctx context.Context) error {
		d.store.Immunity().Hold(state.GroupBalances, d.windows.Environment)
		balance, _, err := d.api.Reset(ctx)
		if err != nil {
			return err
		}
		d.store.ApplyLocal(func(s *models.MarketSnapshot) {
			s.Balances.Paper = balance
			s.Balances.AccumulatedPnl = 0
		})
		return nil
	})
}

// Liquidate закрывает текущую позицию по рынку. Деструктивно,
// требует подтверждения
func (d *Dispatcher) Liquidate(ctx context.Context) (*Result, error) {
	if !d.confirmer.Confirm("liquidate") {
		return nil, ErrConfirmationDeclined
	}

	return d.run(ctx, "liquidate", func(ctx context.Context) error {
		d.store.Immunity().Hold(state.GroupPosition, d.windows.ManualOrder)
		return d.api.Liquidate(ctx)
	})
}

// PanicSellAll экстренно продаёт всё и останавливает бота локально:
// даже если сервер не успел подтвердить остановку, торговля с нашей
// стороны считается выключенной
func (d *Dispatcher) PanicSellAll(ctx context.Context) (*Result, error) {
	if !d.confirmer.Confirm("panic_sell_all") {
		return nil, ErrConfirmationDeclined
	}

	return d.run(ctx, "panic_sell_all", func(ctx context.Context) error {
		d.store.Immunity().Hold(state.GroupPosition, d.windows.ManualOrder)
		if err := d.api.Panic(ctx); err != nil {
			return err
		}
		d.holdRunning(false)
		return nil
	})
}

// holdRunning открывает окно над флагом запуска и оптимистично
// выставляет его локально
func (d *Dispatcher) holdRunning(running bool) {
	d.store.Immunity().Hold(state.GroupRunning, d.windows.Toggle)
	d.store.ApplyLocal(func(s *models.MarketSnapshot) {
		s.Running = running
	})
}

// run выполняет команду с корреляционным id, метриками и внеплановым
// тиком опроса после успеха
func (d *Dispatcher) run(ctx context.Context, name string, fn func(ctx context.Context) error) (*Result, error) {
	id := uuid.NewString()
	start := time.Now()

	err := fn(ctx)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		outcome := "error"
		var rejected *models.CommandRejectedError
		if errors.As(err, &rejected) {
			outcome = "rejected"
		}
		metrics.RecordCommand(name, outcome, elapsed)
		log.Printf("command %s [%s] failed: %v", name, id, err)
		return nil, err
	}

	metrics.RecordCommand(name, "ok", elapsed)
	log.Printf("command %s [%s] ok in %.0fms", name, id, elapsed*1000)

	if d.refresher != nil {
		d.refresher.ForceRefresh()
	}
	return &Result{ID: id}, nil
}
