package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"sniperctl/internal/command"
	"sniperctl/internal/models"
)

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse стандартный формат успешного ответа
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// writeJSON сериализует ответ с заданным статусом
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError транслирует ошибку ядра в HTTP статус:
//   - ValidationError / отклонённое подтверждение -> 400
//   - нет сессии или сессия истекла             -> 401
//   - сервер бота отверг команду                -> 409
//   - сетевой сбой до бота                      -> 502
func writeError(w http.ResponseWriter, err error) {
	var vErr *models.ValidationError
	var rejected *models.CommandRejectedError

	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: vErr.Message, Code: "validation"})
	case errors.Is(err, command.ErrConfirmationDeclined):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "confirmation required", Code: "confirmation"})
	case errors.Is(err, models.ErrUnauthenticated), models.IsSessionExpired(err):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "session expired", Code: "session"})
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: rejected.Message, Code: "rejected"})
	case models.IsTransient(err):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "bot backend unreachable", Details: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
