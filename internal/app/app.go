// Package app собирает все компоненты сервиса в одно приложение:
// адаптеры бирж, мониторинг, нотификатор, журнал и HTTP сервер.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/joonhyoung1/crypto-trading-bot/internal/api"
	"github.com/joonhyoung1/crypto-trading-bot/internal/audit"
	"github.com/joonhyoung1/crypto-trading-bot/internal/bot"
	"github.com/joonhyoung1/crypto-trading-bot/internal/config"
	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
	"github.com/joonhyoung1/crypto-trading-bot/internal/notify"
	"github.com/joonhyoung1/crypto-trading-bot/internal/websocket"
	"github.com/joonhyoung1/crypto-trading-bot/pkg/retry"
	"github.com/joonhyoung1/crypto-trading-bot/pkg/utils"
)

// Application владеет всеми компонентами сервиса. Глобального
// состояния нет: всё что нужно компонентам передаётся явно.
type Application struct {
	cfg      *config.Config
	router   *exchange.Router
	notifier *notify.Telegram
	audit    *audit.Sink
	executor *bot.Executor
	monitor  *bot.Monitor
	hub      *websocket.Hub
	server   *http.Server
}

// New собирает приложение из конфигурации.
//
// Регистрируются только биржи с заданными ключами. Недоступный журнал
// не мешает запуску: сервис работает без него с записью в лог.
func New(cfg *config.Config) *Application {
	router := exchange.NewRouter()
	for _, venue := range exchange.Venues {
		vc := cfg.Venues.Get(venue)
		if !vc.Configured() {
			log.Printf("[app] %s credentials not set, venue skipped", venue)
			continue
		}

		switch venue {
		case exchange.VenueMexc:
			router.Register(exchange.NewMexc())
		case exchange.VenueGate:
			router.Register(exchange.NewGate())
		case exchange.VenueBitget:
			router.Register(exchange.NewBitget())
		}
		log.Printf("[app] %s registered (key %s)", venue, utils.MaskSecret(vc.APIKey))
	}

	notifier := notify.NewTelegram(cfg.Notifier)

	var auditSink *audit.Sink
	if cfg.Audit.Enabled() {
		sink, err := audit.New(cfg.Audit.DSN)
		if err != nil {
			log.Printf("[app] audit sink unavailable, continuing without it: %v", err)
		} else {
			auditSink = sink
		}
	}

	executor := bot.NewExecutor(router, notifier, cfg.Trading)

	// Типизированный nil *Sink не должен попасть в интерфейс
	var sink bot.AuditSink
	if auditSink != nil {
		sink = auditSink
	}
	monitor := bot.NewMonitor(router, executor, notifier, sink, cfg.Trading)

	hub := websocket.NewHub()
	monitor.SetBroadcast(hub.BroadcastGap)

	httpRouter := api.SetupRoutes(&api.Dependencies{
		Config:   cfg,
		Router:   router,
		Monitor:  monitor,
		Executor: executor,
		Hub:      hub,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{
		cfg:      cfg,
		router:   router,
		notifier: notifier,
		audit:    auditSink,
		executor: executor,
		monitor:  monitor,
		hub:      hub,
		server:   server,
	}
}

// Start запускает hub, фоновую инициализацию бирж и HTTP сервер.
// Возвращается сразу: готовность бирж отслеживается через /api/status.
func (a *Application) Start(ctx context.Context) {
	go a.hub.Run()

	for _, venue := range a.router.Venues() {
		go a.initVenue(ctx, venue)
	}

	go func() {
		log.Printf("[app] http server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[app] http server failed: %v", err)
		}
	}()
}

// initVenue подключает одну биржу с повторными попытками.
// Инициализация бирж независима: сбой одной не трогает остальные.
func (a *Application) initVenue(ctx context.Context, venue exchange.Venue) {
	ex, err := a.router.Get(venue)
	if err != nil {
		return
	}

	vc := a.cfg.Venues.Get(venue)
	rcfg := retry.NetworkConfig()
	rcfg.RetryIf = retry.RetryIfNotContext
	rcfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Printf("[app] %s connect attempt %d failed, retry in %v: %v", venue, attempt, delay, err)
	}

	err = retry.Do(ctx, func() error {
		return ex.Connect(ctx, vc.APIKey, vc.APISecret, vc.Passphrase)
	}, rcfg)

	if err != nil {
		a.router.MarkFailed(venue, err)
		bot.VenueUp.WithLabelValues(string(venue)).Set(0)
		log.Printf("[app] %s initialization failed: %v", venue, err)
		return
	}

	a.router.MarkInitialized(venue)
	bot.VenueUp.WithLabelValues(string(venue)).Set(1)
	log.Printf("[app] %s initialized", venue)
}

// Monitor возвращает цикл мониторинга (для управления при остановке)
func (a *Application) Monitor() *bot.Monitor {
	return a.monitor
}

// Shutdown останавливает компоненты в обратном порядке запуска
func (a *Application) Shutdown(ctx context.Context) {
	if a.monitor.IsRunning() {
		if err := a.monitor.Stop(); err != nil {
			log.Printf("[app] monitor stop failed: %v", err)
		}
	}

	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("[app] http server shutdown failed: %v", err)
	}

	a.router.Close()

	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			log.Printf("[app] audit close failed: %v", err)
		}
	}

	exchange.CloseGlobalClient()
	log.Println("[app] shutdown complete")
}
