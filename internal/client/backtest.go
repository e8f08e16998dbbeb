package client

import (
	"context"
	"fmt"
	"net/http"

	"sniperctl/internal/models"
)

// backtestRunResponse - wire-формат ответа /backtest/run
type backtestRunResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

// RunBacktest отправляет задачу на симуляцию и возвращает её id.
// Отсутствие job_id в успешном ответе - отказ: задача не создана
func (c *Client) RunBacktest(ctx context.Context, cfg models.BacktestConfig) (string, error) {
	status, raw, err := c.do(ctx, http.MethodPost, "/backtest/run", cfg)
	if err != nil {
		return "", err
	}

	var br backtestRunResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &br); err != nil {
			return "", &models.CommandRejectedError{Command: "backtest_run", Message: "malformed server response"}
		}
	}
	if status != http.StatusOK || !br.Success || br.JobID == "" {
		msg := br.Message
		if msg == "" {
			msg = "failed to submit backtest job"
		}
		return "", &models.CommandRejectedError{Command: "backtest_run", Message: msg}
	}
	return br.JobID, nil
}

// BacktestStatus опрашивает статус задачи.
// Не-2xx без sess-ошибки - транзиентный сбой: job poller проглотит его
// и повторит на следующем тике
func (c *Client) BacktestStatus(ctx context.Context, jobID string) (*models.BacktestStatus, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/backtest/status/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &models.TransientError{Err: fmt.Errorf("backtest status endpoint returned %d", status)}
	}

	var st models.BacktestStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, &models.TransientError{Err: fmt.Errorf("malformed status payload: %w", err)}
	}
	return &st, nil
}
