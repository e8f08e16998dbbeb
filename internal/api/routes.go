package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sniperctl/internal/api/handlers"
	"sniperctl/internal/api/middleware"
	"sniperctl/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	State    handlers.StateProvider
	Stats    handlers.StatsProvider
	Commands handlers.CommandService
	Jobs     handlers.JobService
	Hub      *websocket.Hub
}

// SetupRoutes настраивает HTTP маршруты демона.
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── GET  /state                  - последний снапшот состояния
//	├── GET  /stats                  - глобальные счётчики сделок
//	├── /commands/
//	│   ├── POST /start              - запустить бота
//	│   ├── POST /stop               - остановить бота
//	│   ├── POST /manual-order       - ручной ордер
//	│   ├── POST /symbol             - сменить пару
//	│   ├── POST /environment        - симулятор/реальная торговля
//	│   ├── POST /risk               - процент риска
//	│   ├── POST /reset              - сброс paper-банка
//	│   ├── POST /liquidate          - закрыть позицию (confirm)
//	│   └── POST /panic              - продать всё (confirm)
//	└── /backtest
//	    ├── POST   - отправить задачу
//	    ├── GET    - состояние задачи
//	    └── DELETE - закрыть представление
//
// /ws/stream - websocket поток снапшотов и событий
// /metrics   - Prometheus метрики
// /health    - liveness проба
//
// Middleware: Recovery -> Logging -> CORS для всех маршрутов
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	api := router.PathPrefix("/api/v1").Subrouter()

	if deps != nil && deps.State != nil {
		stateHandler := handlers.NewStateHandler(deps.State, deps.Stats)
		api.HandleFunc("/state", stateHandler.GetState).Methods("GET")
		if deps.Stats != nil {
			api.HandleFunc("/stats", stateHandler.GetStats).Methods("GET")
		}
	}

	if deps != nil && deps.Commands != nil {
		commandHandler := handlers.NewCommandHandler(deps.Commands)
		commands := api.PathPrefix("/commands").Subrouter()
		commands.HandleFunc("/start", commandHandler.Start).Methods("POST")
		commands.HandleFunc("/stop", commandHandler.Stop).Methods("POST")
		commands.HandleFunc("/manual-order", commandHandler.ManualOrder).Methods("POST")
		commands.HandleFunc("/symbol", commandHandler.ChangeSymbol).Methods("POST")
		commands.HandleFunc("/environment", commandHandler.SwitchEnvironment).Methods("POST")
		commands.HandleFunc("/risk", commandHandler.SetRisk).Methods("POST")
		commands.HandleFunc("/reset", commandHandler.ResetAccount).Methods("POST")
		commands.HandleFunc("/liquidate", commandHandler.Liquidate).Methods("POST")
		commands.HandleFunc("/panic", commandHandler.PanicSellAll).Methods("POST")
	}

	if deps != nil && deps.Jobs != nil {
		backtestHandler := handlers.NewBacktestHandler(deps.Jobs)
		api.HandleFunc("/backtest", backtestHandler.Submit).Methods("POST")
		api.HandleFunc("/backtest", backtestHandler.Status).Methods("GET")
		api.HandleFunc("/backtest", backtestHandler.Dismiss).Methods("DELETE")
	}

	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
