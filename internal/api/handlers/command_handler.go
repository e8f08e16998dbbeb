package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"sniperctl/internal/command"
)

// CommandService - подмножество диспетчера команд, нужное HTTP слою
type CommandService interface {
	Start(ctx context.Context) (*command.Result, error)
	Stop(ctx context.Context) (*command.Result, error)
	ManualOrder(ctx context.Context, side string) (*command.Result, error)
	ChangeSymbol(ctx context.Context, symbol string) (*command.Result, error)
	SwitchEnvironment(ctx context.Context, testnet bool) (*command.Result, error)
	SetRisk(ctx context.Context, pct int) (*command.Result, error)
	ResetAccount(ctx context.Context) (*command.Result, error)
	Liquidate(ctx context.Context) (*command.Result, error)
	PanicSellAll(ctx context.Context) (*command.Result, error)
}

// CommandHandler принимает управляющие команды от UI-клиентов.
//
// Endpoints:
// - POST /api/v1/commands/start
// - POST /api/v1/commands/stop
// - POST /api/v1/commands/manual-order   {"side": "BUY"}
// - POST /api/v1/commands/symbol         {"symbol": "ETH/USDT"}
// - POST /api/v1/commands/environment    {"testnet": true}
// - POST /api/v1/commands/risk           {"risk_pct": 15}
// - POST /api/v1/commands/reset
// - POST /api/v1/commands/liquidate      {"confirm": true}
// - POST /api/v1/commands/panic          {"confirm": true}
//
// Деструктивные команды требуют явного confirm в теле: подтверждение
// даёт вызывающий клиент, без него запрос отклоняется без сетевого
// вызова к боту
type CommandHandler struct {
	commands CommandService
}

// NewCommandHandler создает новый CommandHandler
func NewCommandHandler(commands CommandService) *CommandHandler {
	return &CommandHandler{commands: commands}
}

func (h *CommandHandler) Start(w http.ResponseWriter, r *http.Request) {
	res, err := h.commands.Start(r.Context())
	h.respond(w, res, err)
}

func (h *CommandHandler) Stop(w http.ResponseWriter, r *http.Request) {
	res, err := h.commands.Stop(r.Context())
	h.respond(w, res, err)
}

func (h *CommandHandler) ManualOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Side string `json:"side"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.commands.ManualOrder(r.Context(), req.Side)
	h.respond(w, res, err)
}

func (h *CommandHandler) ChangeSymbol(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.commands.ChangeSymbol(r.Context(), req.Symbol)
	h.respond(w, res, err)
}

func (h *CommandHandler) SwitchEnvironment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Testnet bool `json:"testnet"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.commands.SwitchEnvironment(r.Context(), req.Testnet)
	h.respond(w, res, err)
}

func (h *CommandHandler) SetRisk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RiskPct int `json:"risk_pct"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.commands.SetRisk(r.Context(), req.RiskPct)
	h.respond(w, res, err)
}

func (h *CommandHandler) ResetAccount(w http.ResponseWriter, r *http.Request) {
	res, err := h.commands.ResetAccount(r.Context())
	h.respond(w, res, err)
}

func (h *CommandHandler) Liquidate(w http.ResponseWriter, r *http.Request) {
	if !h.confirmed(w, r) {
		return
	}
	res, err := h.commands.Liquidate(r.Context())
	h.respond(w, res, err)
}

func (h *CommandHandler) PanicSellAll(w http.ResponseWriter, r *http.Request) {
	if !h.confirmed(w, r) {
		return
	}
	res, err := h.commands.PanicSellAll(r.Context())
	h.respond(w, res, err)
}

// confirmed проверяет явное подтверждение деструктивного действия.
// Отказ не доходит до диспетчера и тем более до сети
func (h *CommandHandler) confirmed(w http.ResponseWriter, r *http.Request) bool {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if !decodeBody(w, r, &req) {
		return false
	}
	if !req.Confirm {
		writeError(w, command.ErrConfirmationDeclined)
		return false
	}
	return true
}

func (h *CommandHandler) respond(w http.ResponseWriter, result *command.Result, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Message: result.Message, Data: result})
}

// decodeBody парсит JSON тело. Пустое тело допустимо: все поля
// получают нулевые значения
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "malformed request body", Code: "body"})
		return false
	}
	return true
}
