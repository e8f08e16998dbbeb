package models

import (
	"errors"
	"fmt"
)

// Таксономия ошибок клиента.
//
// (a) ErrUnauthenticated   - нет токена, запрос не уходит в сеть
// (b) SessionExpiredError  - сервер ответил 401/422, сессия инвалидирована
// (c) TransientError       - сетевой сбой, тихий retry на следующем тике
// (d) CommandRejectedError - сервер вернул success:false на команду
// (e) JobFailedError       - терминальная ошибка backtest-задачи
// (f) ValidationError      - клиентская предпроверка, сеть не трогается

// ErrUnauthenticated возвращается до какого-либо сетевого вызова,
// если в сессии нет токена
var ErrUnauthenticated = errors.New("unauthenticated: no session token")

// SessionExpiredError - сервер отверг токен (401 или 422).
// Обрабатывается централизованно в session guard, per-call обработка
// не требуется
type SessionExpiredError struct {
	StatusCode int
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired: server returned %d", e.StatusCode)
}

// TransientError - сбой на сетевом уровне (ответа не было) либо не-2xx
// статус, не относящийся к сессии. Не фатален для poll-циклов
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Temporary и Retryable - контракты, которые понимает pkg/retry
func (e *TransientError) Temporary() bool { return true }
func (e *TransientError) Retryable() bool { return true }

// CommandRejectedError - сервер принял запрос, но отверг команду
// ({success:false, message}). Показывается пользователю один раз,
// без retry
type CommandRejectedError struct {
	Command string
	Message string
}

func (e *CommandRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("command %s rejected", e.Command)
	}
	return fmt.Sprintf("command %s rejected: %s", e.Command, e.Message)
}

func (e *CommandRejectedError) Retryable() bool { return false }

// JobFailedError - backtest-задача завершилась с ошибкой сервера
type JobFailedError struct {
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("backtest job %s failed: %s", e.JobID, e.Reason)
}

// ValidationError - нарушение клиентской предпроверки.
// Никогда не приводит к сетевому вызову
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Retryable() bool { return false }

// IsTransient сообщает, можно ли молча повторить операцию на следующем тике
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsSessionExpired проверяет серверную инвалидацию сессии
func IsSessionExpired(err error) bool {
	var se *SessionExpiredError
	return errors.As(err, &se)
}
