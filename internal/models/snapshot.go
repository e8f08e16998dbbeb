package models

import "time"

// ConnectionStatus - состояние связи с backend сервисом бота
type ConnectionStatus string

const (
	// ConnectionConnecting - соединение ещё не установлено (стартовое состояние,
	// а также состояние после гидратации из локального кэша)
	ConnectionConnecting ConnectionStatus = "connecting"

	// ConnectionConnected - последний опрос /market завершился успешно
	ConnectionConnected ConnectionStatus = "connected"

	// ConnectionOffline - последний опрос завершился сетевой ошибкой или не-2xx ответом.
	// Остальные данные снапшота при этом НЕ сбрасываются
	ConnectionOffline ConnectionStatus = "offline"
)

// AuthCompletion - флаги заполненности профиля пользователя на сервере
type AuthCompletion struct {
	HasName     bool `json:"has_name"`
	HasReal     bool `json:"has_real"`
	HasTelegram bool `json:"has_telegram"`
}

// Candle - одна свеча для графиков. Поля соответствуют wire-формату
// сервера (timestamp как строка, индикаторы могут отсутствовать)
type Candle struct {
	Timestamp string   `json:"timestamp"`
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     float64  `json:"close"`
	BBUpper   *float64 `json:"bb_upper,omitempty"`
	BBLower   *float64 `json:"bb_lower,omitempty"`
	EMA200    *float64 `json:"ema200,omitempty"`
}

// TimeframeView - агрегированное состояние одного таймфрейма (5m или 1h):
// последняя цена, индикаторы и свечи для отрисовки
type TimeframeView struct {
	Price     float64  `json:"price"`
	OpenPrice float64  `json:"open_price"`
	RSI       float64  `json:"rsi"`
	EMA200    float64  `json:"ema200"`
	EMASlope  float64  `json:"ema_slope"`
	ATR       float64  `json:"atr"`
	FiboLevel float64  `json:"fibo_level"`
	FiboHigh  float64  `json:"fibo_high"`
	FiboLow   float64  `json:"fibo_low"`
	BBUpper   float64  `json:"bb_upper"`
	BBLower   float64  `json:"bb_lower"`
	Timestamp string   `json:"timestamp"`
	Candles   []Candle `json:"candles"`
}

// Counters - глобальная статистика сделок
type Counters struct {
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	TotalTrades int     `json:"total_trades"`
}

// Balances - балансы аккаунта. Displayed выбирается сервером логикой
// paper/real, клиент его не пересчитывает
type Balances struct {
	Paper          float64 `json:"paper_balance"`
	Real           float64 `json:"real_balance"`
	AccumulatedPnl float64 `json:"accumulated_pnl"`
}

// MarketSnapshot - полное наблюдаемое состояние бота, получаемое одним
// опросом /market. Снапшот иммутабелен после публикации: каждое поле
// полностью замещает предыдущее значение (без частичного merge),
// за исключением полей под активным окном иммунитета команды.
type MarketSnapshot struct {
	Running     bool           `json:"is_running"`
	Symbol      string         `json:"symbol"`
	IsTestnet   bool           `json:"is_testnet"`
	TraderName  string         `json:"trader_name"`
	Auth        AuthCompletion `json:"auth_status"`
	Balances    Balances       `json:"balances"`
	RiskPct     int            `json:"risk_pct"`
	ActiveTrade *Trade         `json:"active_trade"`
	History     []Trade        `json:"trade_history"`

	StatusDisplay string `json:"status_display"`
	IsScanning    bool   `json:"is_scanning"`
	ScanningLook  string `json:"scanning_look"`

	Primary TimeframeView `json:"data_5m"`
	Macro   TimeframeView `json:"data_1h"`

	Counters Counters `json:"counters"`

	// Локальные поля (не приходят с сервера)
	Connection ConnectionStatus `json:"connection_status"`
	ReceivedAt time.Time        `json:"received_at"`
}

// HasPosition возвращает true если есть открытая позиция
func (s *MarketSnapshot) HasPosition() bool {
	return s != nil && s.ActiveTrade != nil
}

// DisplayedBalance возвращает баланс активного окружения
func (s *MarketSnapshot) DisplayedBalance() float64 {
	if s.IsTestnet {
		return s.Balances.Paper
	}
	return s.Balances.Real
}

// UnrealizedPnlPct считает текущий PnL открытой позиции в процентах от
// цены входа по последней цене основного таймфрейма. Значение производное
// и никогда не хранится: пересчитывается на каждом тике
func (s *MarketSnapshot) UnrealizedPnlPct() float64 {
	if !s.HasPosition() || s.ActiveTrade.EntryPrice == 0 {
		return 0
	}
	price := s.Primary.Price
	if price == 0 {
		price = s.ActiveTrade.EntryPrice
	}
	return (price/s.ActiveTrade.EntryPrice - 1) * 100
}

// Clone возвращает глубокую копию снапшота. Используется merge-точкой,
// чтобы подписчики никогда не видели мутируемое состояние
func (s *MarketSnapshot) Clone() *MarketSnapshot {
	if s == nil {
		return nil
	}
	cp := *s
	if s.ActiveTrade != nil {
		t := *s.ActiveTrade
		cp.ActiveTrade = &t
	}
	if s.History != nil {
		cp.History = make([]Trade, len(s.History))
		copy(cp.History, s.History)
	}
	cp.Primary.Candles = cloneCandles(s.Primary.Candles)
	cp.Macro.Candles = cloneCandles(s.Macro.Candles)
	return &cp
}

func cloneCandles(in []Candle) []Candle {
	if in == nil {
		return nil
	}
	out := make([]Candle, len(in))
	copy(out, in)
	return out
}
