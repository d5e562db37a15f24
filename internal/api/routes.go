// Package api собирает HTTP поверхность сервиса: REST маршруты,
// middleware и WebSocket endpoint.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joonhyoung1/crypto-trading-bot/internal/api/handlers"
	"github.com/joonhyoung1/crypto-trading-bot/internal/api/middleware"
	"github.com/joonhyoung1/crypto-trading-bot/internal/bot"
	"github.com/joonhyoung1/crypto-trading-bot/internal/config"
	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
	"github.com/joonhyoung1/crypto-trading-bot/internal/websocket"
)

// Dependencies - зависимости HTTP слоя, внедряются при сборке приложения
type Dependencies struct {
	Config   *config.Config
	Router   *exchange.Router
	Monitor  *bot.Monitor
	Executor *bot.Executor
	Hub      *websocket.Hub
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
//	GET  /api/status          - готовность бирж
//	GET  /api/current_time    - серверное время (KST)
//	GET  /api/orderbook       - стаканы и гэпы по всем (биржа, символ)
//	GET  /api/balance         - балансы фьючерсных аккаунтов
//	POST /api/trading/start   - запуск мониторинга (требует токен)
//	POST /api/trading/stop    - остановка мониторинга (требует токен)
//	POST /api/trading/close   - закрытие позиций (требует токен)
//	GET  /api/trading/status  - состояние мониторинга
//	GET  /health              - liveness probe
//	GET  /metrics             - Prometheus метрики
//	GET  /ws/stream           - WebSocket поток гэпов
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	statusHandler := handlers.NewStatusHandler(deps.Router)
	marketHandler := handlers.NewMarketHandler(deps.Router, deps.Config.Trading)
	tradingHandler := handlers.NewTradingHandler(deps.Router, deps.Monitor,
		deps.Executor, deps.Config.Trading.Symbols)
	if deps.Hub != nil {
		tradingHandler.SetStatusBroadcast(deps.Hub.BroadcastMonitorStatus)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", statusHandler.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/current_time", statusHandler.GetCurrentTime).Methods(http.MethodGet)
	api.HandleFunc("/orderbook", marketHandler.GetOrderBook).Methods(http.MethodGet)
	api.HandleFunc("/balance", marketHandler.GetBalance).Methods(http.MethodGet)

	// Управление торговлей защищено сессионным токеном
	trading := api.PathPrefix("/trading").Subrouter()
	auth := middleware.SessionAuth(deps.Config.Security.SessionSecretHash)
	trading.Handle("/start", auth(http.HandlerFunc(tradingHandler.Start))).Methods(http.MethodPost)
	trading.Handle("/stop", auth(http.HandlerFunc(tradingHandler.Stop))).Methods(http.MethodPost)
	trading.Handle("/close", auth(http.HandlerFunc(tradingHandler.Close))).Methods(http.MethodPost)
	trading.HandleFunc("/status", tradingHandler.Status).Methods(http.MethodGet)

	router.HandleFunc("/health", statusHandler.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWS(deps.Hub, w, r)
	})

	return router
}
