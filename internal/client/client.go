// Package client реализует типизированный HTTP клиент к backend сервису
// торгового бота. Все защищённые вызовы идут через session guard;
// незащищённые (логин/регистрация) - напрямую.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"sniperctl/internal/models"
	"sniperctl/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client - клиент API бота
type Client struct {
	baseURL string
	guard   *session.Session

	// plain используется только для незащищённых endpoint'ов
	plain *http.Client
}

// New создаёт клиент. plainClient может быть nil
func New(baseURL string, guard *session.Session, plainClient *http.Client) *Client {
	if plainClient == nil {
		plainClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		guard:   guard,
		plain:   plainClient,
	}
}

// Session возвращает guard клиента
func (c *Client) Session() *session.Session {
	return c.guard
}

// do выполняет защищённый запрос и возвращает статус и тело.
// Ошибки сессии и сети прилетают из guard'а уже типизированными
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}

	resp, err := c.guard.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &models.TransientError{Err: err}
	}
	return resp.StatusCode, raw, nil
}

// commandResponse - общий wire-формат ответа на команды
type commandResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	IsRunning  *bool    `json:"is_running,omitempty"`
	NewBalance *float64 `json:"new_balance,omitempty"`
	NewToken   string   `json:"new_token,omitempty"`
}

// command выполняет POST-команду и нормализует отказ сервера в
// CommandRejectedError. Не-2xx статус без тела тоже считается отказом:
// сервер ответил, значит сбой не сетевой
func (c *Client) command(ctx context.Context, name, path string, body interface{}) (*commandResponse, error) {
	status, raw, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return c.normalizeCommand(name, status, raw)
}

func (c *Client) normalizeCommand(name string, status int, raw []byte) (*commandResponse, error) {
	var cr commandResponse
	decodeErr := error(nil)
	if len(raw) > 0 {
		decodeErr = json.Unmarshal(raw, &cr)
	}

	if status < 200 || status >= 300 {
		msg := cr.Message
		if msg == "" {
			msg = fmt.Sprintf("server returned %d", status)
		}
		return nil, &models.CommandRejectedError{Command: name, Message: msg}
	}
	if decodeErr != nil {
		return nil, &models.CommandRejectedError{Command: name, Message: "malformed server response"}
	}

	// Endpoint'ы start/stop отвечают {is_running} без поля success -
	// наличие is_running при 2xx считается подтверждением
	if !cr.Success && cr.IsRunning == nil {
		return nil, &models.CommandRejectedError{Command: name, Message: cr.Message}
	}
	return &cr, nil
}

// marketResponse - wire-формат ответа /market (поля плоские)
type marketResponse struct {
	Symbol         string                `json:"symbol"`
	IsRunning      bool                  `json:"is_running"`
	IsTestnet      bool                  `json:"is_testnet"`
	TraderName     string                `json:"trader_name"`
	PaperBalance   float64               `json:"paper_balance"`
	RealBalance    float64               `json:"real_balance"`
	AccumulatedPnl float64               `json:"accumulated_pnl"`
	RiskPct        int                   `json:"risk_pct"`
	ActiveTrade    *models.Trade         `json:"active_trade"`
	TradeHistory   []models.Trade        `json:"trade_history"`
	Wins           int                   `json:"wins"`
	Losses         int                   `json:"losses"`
	WinRate        float64               `json:"win_rate"`
	TotalTrades    int                   `json:"total_trades"`
	IsScanning     bool                  `json:"is_scanning"`
	ScanningLook   string                `json:"scanning_look"`
	AuthStatus     models.AuthCompletion `json:"auth_status"`
	Data5m         models.TimeframeView  `json:"data_5m"`
	Data1h         models.TimeframeView  `json:"data_1h"`
	StatusDisplay  string                `json:"status_display"`
}

// Market запрашивает полный снапшот состояния бота.
// Любой не-2xx статус (кроме 401/422, перехваченных guard'ом) -
// транзиентный сбой: поллер пометит offline и продолжит
func (c *Client) Market(ctx context.Context) (*models.MarketSnapshot, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/market", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &models.TransientError{Err: fmt.Errorf("market endpoint returned %d", status)}
	}

	var wire marketResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &models.TransientError{Err: fmt.Errorf("malformed market payload: %w", err)}
	}

	snap := &models.MarketSnapshot{
		Running:    wire.IsRunning,
		Symbol:     wire.Symbol,
		IsTestnet:  wire.IsTestnet,
		TraderName: wire.TraderName,
		Auth:       wire.AuthStatus,
		Balances: models.Balances{
			Paper:          wire.PaperBalance,
			Real:           wire.RealBalance,
			AccumulatedPnl: wire.AccumulatedPnl,
		},
		RiskPct:       wire.RiskPct,
		ActiveTrade:   wire.ActiveTrade,
		History:       wire.TradeHistory,
		StatusDisplay: wire.StatusDisplay,
		IsScanning:    wire.IsScanning,
		ScanningLook:  wire.ScanningLook,
		Primary:       wire.Data5m,
		Macro:         wire.Data1h,
		Counters: models.Counters{
			Wins:        wire.Wins,
			Losses:      wire.Losses,
			WinRate:     wire.WinRate,
			TotalTrades: wire.TotalTrades,
		},
		Connection: models.ConnectionConnected,
		ReceivedAt: time.Now(),
	}
	if snap.History == nil {
		snap.History = []models.Trade{}
	}
	return snap, nil
}

// GlobalStats запрашивает глобальные счётчики сделок
func (c *Client) GlobalStats(ctx context.Context) (*models.Counters, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/stats/get", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &models.TransientError{Err: fmt.Errorf("stats endpoint returned %d", status)}
	}

	var counters models.Counters
	if err := json.Unmarshal(raw, &counters); err != nil {
		return nil, &models.TransientError{Err: err}
	}
	return &counters, nil
}
