package handlers

import (
	"context"
	"net/http"

	"sniperctl/internal/models"
	"sniperctl/pkg/utils"
)

// JobService - операции над backtest-задачей. Реализуется poller.JobPoller
type JobService interface {
	Submit(ctx context.Context, cfg models.BacktestConfig) (string, error)
	Job() models.BacktestJob
	Clear()
}

// BacktestHandler управляет backtest-задачей.
//
// Endpoints:
// - POST   /api/v1/backtest - отправить задачу
// - GET    /api/v1/backtest - текущее состояние задачи
// - DELETE /api/v1/backtest - закрыть представление задачи
type BacktestHandler struct {
	jobs JobService
}

// NewBacktestHandler создает новый BacktestHandler
func NewBacktestHandler(jobs JobService) *BacktestHandler {
	return &BacktestHandler{jobs: jobs}
}

// Submit отправляет новую задачу на симуляцию.
//
// POST /api/v1/backtest
// Body: {"symbol":"BTC/USDT","mode":"single","timeframe":"5m","days":30,"balance":1000,"risk":10}
//
// Response 200: {"message":"","data":{"job_id":"..."}}
func (h *BacktestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var cfg models.BacktestConfig
	if !decodeBody(w, r, &cfg) {
		return
	}

	if err := utils.ValidateSymbol(cfg.Symbol); err != nil && cfg.Mode != "portfolio" {
		writeError(w, &models.ValidationError{Field: "symbol", Message: err.Error()})
		return
	}
	if err := utils.ValidateBacktestDays(cfg.Days); err != nil {
		writeError(w, &models.ValidationError{Field: "days", Message: err.Error()})
		return
	}

	jobID, err := h.jobs.Submit(r.Context(), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Data: map[string]string{"job_id": jobID}})
}

// Status возвращает текущее состояние задачи.
//
// GET /api/v1/backtest
func (h *BacktestHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.Job())
}

// Dismiss закрывает представление задачи и глушит её опрос.
//
// DELETE /api/v1/backtest
func (h *BacktestHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.jobs.Clear()
	writeJSON(w, http.StatusOK, SuccessResponse{Message: "backtest dismissed"})
}
