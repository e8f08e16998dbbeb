package handlers

import (
	"context"
	"net/http"

	"sniperctl/internal/models"
)

// StateProvider - источник текущего состояния. Реализуется state.Store
type StateProvider interface {
	Snapshot() *models.MarketSnapshot
}

// StatsProvider проксирует глобальную статистику бота
type StatsProvider interface {
	GlobalStats(ctx context.Context) (*models.Counters, error)
}

// StateHandler отдаёт наблюдаемое состояние бота.
//
// Endpoints:
// - GET /api/v1/state - последний снапшот с производным PnL
// - GET /api/v1/stats - глобальные счётчики сделок (проксируется к боту)
type StateHandler struct {
	state StateProvider
	stats StatsProvider
}

// NewStateHandler создает новый StateHandler
func NewStateHandler(state StateProvider, stats StatsProvider) *StateHandler {
	return &StateHandler{state: state, stats: stats}
}

// stateResponse - снапшот плюс поля, пересчитываемые на каждом чтении
type stateResponse struct {
	*models.MarketSnapshot
	DisplayedBalance float64 `json:"displayed_balance"`
	UnrealizedPnlPct float64 `json:"unrealized_pnl_pct"`
}

// GetState возвращает последний известный снапшот.
//
// GET /api/v1/state
//
// Снапшот отдаётся даже при connection_status=offline: клиент видит
// последние известные данные, а не пустой экран
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	snapshot := h.state.Snapshot()
	writeJSON(w, http.StatusOK, stateResponse{
		MarketSnapshot:   snapshot,
		DisplayedBalance: snapshot.DisplayedBalance(),
		UnrealizedPnlPct: snapshot.UnrealizedPnlPct(),
	})
}

// GetStats проксирует глобальные счётчики сделок.
//
// GET /api/v1/stats
func (h *StateHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	counters, err := h.stats.GlobalStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}
