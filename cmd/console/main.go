package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sniperctl/internal/api"
	"sniperctl/internal/client"
	"sniperctl/internal/command"
	"sniperctl/internal/config"
	"sniperctl/internal/metrics"
	"sniperctl/internal/models"
	"sniperctl/internal/notify"
	"sniperctl/internal/poller"
	"sniperctl/internal/reconcile"
	"sniperctl/internal/repository"
	"sniperctl/internal/session"
	"sniperctl/internal/state"
	"sniperctl/internal/websocket"
	"sniperctl/pkg/ratelimit"
	"sniperctl/pkg/retry"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	// .env подхватывается при наличии, его отсутствие не ошибка
	_ = godotenv.Load()

	// Загрузка конфигурации
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Локальный durable кэш (токен сессии + последний снапшот)
	db, err := repository.OpenDB(cfg.Cache.Driver, cfg.Cache.DSN)
	if err != nil {
		log.Fatalf("Failed to open cache database: %v", err)
	}
	defer db.Close()

	log.Printf("Cache database ready (%s)", cfg.Cache.Driver)

	cacheRepo := repository.NewCacheRepository(db, cfg.Cache.Secret)

	// HTTP клиент к боту: пул соединений + token bucket + session guard
	httpClient := session.NewHTTPClient(session.DefaultHTTPClientConfig(cfg.API.RequestTimeout))
	limiter := ratelimit.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateLimitBurst)
	guard := session.New(httpClient, limiter, cacheRepo)
	apiClient := client.New(cfg.API.BaseURL, guard, httpClient)

	if err := bootstrapSession(guard, cacheRepo, apiClient, cfg); err != nil {
		log.Fatalf("Failed to establish session: %v", err)
	}

	// При инвалидации сессии (сервер ответил 401/422) демон пробует
	// перелогиниться в фоне; до этого поллеры живут на кэшированных данных
	guard.OnInvalidate(func() {
		log.Println("Session invalidated by server, attempting re-login")
		if err := cacheRepo.ClearSnapshot(); err != nil {
			log.Printf("Failed to clear cached snapshot: %v", err)
		}
		go relogin(apiClient, cfg)
	})

	// Дефолтный риск проталкивается на сервер один раз при старте
	if err := apiClient.SetRiskConfig(context.Background(), cfg.API.DefaultRiskPct); err != nil {
		log.Printf("Failed to push default risk config: %v", err)
	}

	// Состояние: merge-точка с окнами иммунитета, гидратация из кэша
	store := state.NewStore(state.NewImmunitySet(), cacheRepo)
	if cached, err := cacheRepo.LoadSnapshot(); err == nil {
		store.Hydrate(cached)
		log.Printf("Hydrated snapshot from cache (received %s)", cached.ReceivedAt.Format(time.RFC3339))
	} else if !errors.Is(err, repository.ErrSnapshotNotFound) {
		log.Printf("Failed to load cached snapshot: %v", err)
	}

	// WebSocket hub для UI-клиентов
	hub := websocket.NewHub()
	go hub.Run()

	// Уведомления о событиях сделок
	notifiers := notify.Multi{notify.LogNotifier{}}
	if cfg.Telegram.Enabled {
		notifiers = append(notifiers, notify.NewTelegramNotifier(cfg.Telegram))
		log.Println("Telegram notifications enabled")
	}

	// Реконсилиация: сравнение соседних снапшотов порождает события
	// открытия/закрытия сделок ровно один раз на переход
	reconciler := reconcile.New(func(event models.Event) {
		metrics.RecordTradeEvent(string(event.Type))
		notifiers.Notify(event)
		hub.BroadcastEvent(event)
	})

	store.Subscribe(func(prev, cur *models.MarketSnapshot) {
		reconciler.Observe(cur)
		hub.BroadcastSnapshot(cur)
	})

	// Поллеры
	marketPoller := poller.NewMarketPoller(apiClient, store, cfg.Poll.MarketInterval)
	jobPoller := poller.NewJobPoller(apiClient, cfg.Poll.JobInterval)
	jobPoller.Subscribe(hub.BroadcastJob)

	pollCtx, stopPolling := context.WithCancel(context.Background())
	go marketPoller.Run(pollCtx)

	// Диспетчер команд: предпроверки, оптимистичные обновления, иммунитет
	dispatcher := command.NewDispatcher(apiClient, store, cfg.Immunity, command.AutoConfirm{}, marketPoller)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		State:    store,
		Stats:    apiClient,
		Commands: dispatcher,
		Jobs:     jobPoller,
		Hub:      hub,
	}

	router := api.SetupRoutes(deps)

	// WriteTimeout не ставится: /ws/stream держит соединение открытым
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	stopPolling()
	jobPoller.Close()
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Daemon exited")
}

// bootstrapSession восстанавливает сессию из кэша либо логинится с нуля.
// Сетевые сбои на старте ретраятся с экспоненциальным backoff
func bootstrapSession(guard *session.Session, cache *repository.CacheRepository, apiClient *client.Client, cfg *config.Config) error {
	token, err := cache.LoadToken()
	if err == nil && token != "" {
		if err := guard.SetToken(token); err != nil {
			return err
		}
		log.Println("Session restored from cache")
		return nil
	}
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		log.Printf("Failed to load cached session: %v", err)
	}

	if cfg.API.Username == "" || cfg.API.Password == "" {
		return fmt.Errorf("no cached session and no credentials: set SNIPER_USERNAME and SNIPER_PASSWORD")
	}

	username, err := retry.DoWithResult(context.Background(), func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.API.RequestTimeout)
		defer cancel()
		return apiClient.Login(ctx, cfg.API.Username, cfg.API.Password)
	}, retry.NetworkConfig())
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	log.Printf("Logged in as %s", username)
	return nil
}

// relogin пытается восстановить сессию после серверной инвалидации.
// Отказ не фатален: демон продолжает отдавать кэшированное состояние
func relogin(apiClient *client.Client, cfg *config.Config) {
	if cfg.API.Username == "" || cfg.API.Password == "" {
		log.Println("Re-login skipped: no credentials configured")
		return
	}

	_, err := retry.DoWithResult(context.Background(), func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.API.RequestTimeout)
		defer cancel()
		return apiClient.Login(ctx, cfg.API.Username, cfg.API.Password)
	}, retry.NetworkConfig())
	if err != nil {
		log.Printf("Re-login failed: %v", err)
		return
	}
	log.Println("Session re-established")
}
