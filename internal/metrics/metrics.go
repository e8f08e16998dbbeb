package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики демона
// ============================================================
//
// Экспонируются локальным HTTP сервером на /metrics.
// Основные вопросы, на которые отвечают метрики:
// - жив ли опрос /market и как часто он падает
// - сколько занимают команды и как часто их отвергает сервер
// - прогресс активной backtest-задачи
// - сколько UI-клиентов висит на websocket-потоке

// ============ Метрики опроса ============

// PollTicks - тики поллеров с исходом
var PollTicks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sniperctl",
		Subsystem: "poll",
		Name:      "ticks_total",
		Help:      "Total number of poll ticks",
	},
	[]string{"poller", "outcome"}, // poller: market, job; outcome: ok, error
)

// PollDuration - длительность одного тика опроса
var PollDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "sniperctl",
		Subsystem: "poll",
		Name:      "tick_duration_seconds",
		Help:      "Duration of a single poll tick",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	},
	[]string{"poller"},
)

// ConnectionUp - состояние связи с backend (1=connected, 0=offline/connecting)
var ConnectionUp = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "sniperctl",
		Subsystem: "api",
		Name:      "connection_up",
		Help:      "Backend connection status (1=connected, 0=not connected)",
	},
)

// ============ Метрики команд ============

// CommandDuration - латентность команд с исходом
var CommandDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "sniperctl",
		Subsystem: "command",
		Name:      "duration_seconds",
		Help:      "Command round-trip duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"command", "outcome"}, // outcome: ok, rejected, error
)

// ============ Метрики backtest ============

// JobProgress - прогресс активной backtest-задачи (0-100)
var JobProgress = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "sniperctl",
		Subsystem: "backtest",
		Name:      "job_progress_percent",
		Help:      "Displayed progress of the active backtest job",
	},
)

// JobsTotal - завершённые backtest-задачи по исходам
var JobsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sniperctl",
		Subsystem: "backtest",
		Name:      "jobs_total",
		Help:      "Total number of finished backtest jobs",
	},
	[]string{"outcome"}, // completed, failed
)

// ============ События и клиенты ============

// TradeEvents - edge-события сделок
var TradeEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sniperctl",
		Subsystem: "events",
		Name:      "trades_total",
		Help:      "Trade transition events detected by the reconciler",
	},
	[]string{"type"}, // trade_opened, trade_closed_win, trade_closed_loss
)

// WSClients - подключённые websocket-клиенты
var WSClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "sniperctl",
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Currently connected websocket clients",
	},
)

// ============ Вспомогательные функции ============

// RecordPollTick записывает исход тика поллера
func RecordPollTick(poller string, ok bool, seconds float64) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	PollTicks.WithLabelValues(poller, outcome).Inc()
	PollDuration.WithLabelValues(poller).Observe(seconds)
}

// SetConnected обновляет gauge состояния связи
func SetConnected(connected bool) {
	if connected {
		ConnectionUp.Set(1)
	} else {
		ConnectionUp.Set(0)
	}
}

// RecordCommand записывает исполнение команды
func RecordCommand(command, outcome string, seconds float64) {
	CommandDuration.WithLabelValues(command, outcome).Observe(seconds)
}

// RecordTradeEvent записывает edge-событие
func RecordTradeEvent(evType string) {
	TradeEvents.WithLabelValues(evType).Inc()
}
