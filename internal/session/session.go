// Package session владеет жизненным циклом bearer-токена и оборачивает
// каждый исходящий запрос к backend сервису бота.
package session

import (
	"context"
	"log"
	"net/http"
	"sync"

	"sniperctl/internal/models"
	"sniperctl/pkg/ratelimit"
)

// Cache - durable хранилище сессии. Guard пишет токен при логине и
// чистит токен вместе с кэшированным снапшотом при инвалидации.
// Реализуется repository.CacheRepository
type Cache interface {
	SaveToken(token string) error
	ClearSession() error
}

// noopCache используется когда durable кэш не подключен (тесты)
type noopCache struct{}

func (noopCache) SaveToken(string) error { return nil }
func (noopCache) ClearSession() error    { return nil }

// Session - процессное состояние сессии. Единственная точка, через
// которую уходят все защищённые запросы: прямые вызовы к защищённым
// endpoint'ам в обход guard'а запрещены.
//
// Инвариант: инвалидация (401/422 от сервера либо явный logout)
// глобальна, срабатывает ровно один раз на сбой и идемпотентна
type Session struct {
	mu    sync.Mutex
	token string

	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	cache      Cache

	// Хуки вызываются при инвалидации сессии (после очистки состояния)
	onInvalidate []func()
}

// New создаёт guard. limiter и cache могут быть nil
func New(httpClient *http.Client, limiter *ratelimit.RateLimiter, cache Cache) *Session {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cache == nil {
		cache = noopCache{}
	}
	return &Session{
		httpClient: httpClient,
		limiter:    limiter,
		cache:      cache,
	}
}

// OnInvalidate регистрирует хук инвалидации. Вызывать до старта поллеров
func (s *Session) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInvalidate = append(s.onInvalidate, fn)
}

// SetToken устанавливает токен (после логина или гидратации из кэша)
// и персистит его
func (s *Session) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if token == "" {
		return nil
	}
	return s.cache.SaveToken(token)
}

// Token возвращает текущий токен ("" если сессии нет)
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Authenticated сообщает, есть ли активная сессия
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Invalidate сбрасывает сессию: токен, durable кэш, хуки.
// Повторный вызов на уже сброшенной сессии - no-op (хуки не дублируются)
func (s *Session) Invalidate() {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return
	}
	s.token = ""
	hooks := make([]func(), len(s.onInvalidate))
	copy(hooks, s.onInvalidate)
	s.mu.Unlock()

	if err := s.cache.ClearSession(); err != nil {
		log.Printf("session: failed to clear durable cache: %v", err)
	}

	for _, fn := range hooks {
		fn()
	}
}

// Do выполняет защищённый запрос.
//
// Порядок:
//  1. Нет токена -> models.ErrUnauthenticated БЕЗ сетевого вызова
//  2. Ожидание токена rate limiter'а
//  3. Заголовки: Authorization Bearer + Content-Type JSON по умолчанию
//     (заголовки вызывающего кода имеют приоритет)
//  4. 401/422 -> синхронная глобальная инвалидация, SessionExpiredError
//  5. Сетевой сбой -> TransientError, сессия НЕ трогается
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	token := s.Token()
	if token == "" {
		// Зеркалим поведение истёкшей сессии: поллеры и диспетчер
		// узнают о разлогине немедленно
		s.Invalidate()
		return nil, models.ErrUnauthenticated
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(req.Context()); err != nil {
			return nil, &models.TransientError{Err: err}
		}
	}

	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &models.TransientError{Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusUnprocessableEntity {
		resp.Body.Close()
		s.Invalidate()
		return nil, &models.SessionExpiredError{StatusCode: resp.StatusCode}
	}

	return resp, nil
}

// DoWithContext - Do с подменой контекста запроса
func (s *Session) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return s.Do(req.WithContext(ctx))
}
