package bot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/joonhyoung1/crypto-trading-bot/internal/config"
	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
	"github.com/joonhyoung1/crypto-trading-bot/pkg/utils"
)

// monitor.go - монитор гэпов
//
// Единственный долгоживущий цикл: на каждом тике для каждого символа
// белого списка и каждой пары бирж запрашиваются оба стакана,
// считается гэп и оцениваются два независимых класса сигналов:
// торговый (исполнителю) и уведомительный (нотификатору, через dedup).
//
// Состояния: stopped -> running -> stopped. Кросс-тиковое состояние
// ограничено картой lastAlertAt.

// ErrAlreadyRunning возвращается при повторном запуске монитора
var ErrAlreadyRunning = fmt.Errorf("monitor is already running")

// ErrNotRunning возвращается при остановке незапущенного монитора
var ErrNotRunning = fmt.Errorf("monitor is not running")

// AuditSink - журнал гэп-сэмплов. Запись fire-and-forget:
// отказ журнала никогда не влияет на мониторинг.
type AuditSink interface {
	LogGap(sample GapSample, volumeA, volumeB, notional float64)
}

// Monitor - монитор гэпов по парам бирж
type Monitor struct {
	router   *exchange.Router
	executor *Executor
	notifier Notifier
	audit    AuditSink
	cfg      config.TradingConfig
	pairs    []VenuePair

	// broadcast рассылает сэмплы подписчикам WebSocket (опционально)
	broadcast func(GapSample)

	mu          sync.Mutex
	running     bool
	stop        chan struct{}
	done        chan struct{}
	startedAt   time.Time
	lastAlertAt map[string]time.Time
}

// NewMonitor создаёт монитор. audit и broadcast могут быть nil.
func NewMonitor(router *exchange.Router, executor *Executor, notifier Notifier,
	audit AuditSink, cfg config.TradingConfig) *Monitor {
	return &Monitor{
		router:      router,
		executor:    executor,
		notifier:    notifier,
		audit:       audit,
		cfg:         cfg,
		pairs:       DefaultPairs,
		lastAlertAt: make(map[string]time.Time),
	}
}

// SetBroadcast устанавливает рассылку сэмплов (вызывается до Start)
func (m *Monitor) SetBroadcast(fn func(GapSample)) {
	m.broadcast = fn
}

// SetPairs переопределяет отслеживаемые пары (вызывается до Start)
func (m *Monitor) SetPairs(pairs []VenuePair) {
	m.pairs = pairs
}

// IsRunning сообщает состояние монитора
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// StartedAt возвращает время последнего запуска (нулевое если остановлен)
func (m *Monitor) StartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return time.Time{}
	}
	return m.startedAt
}

// Start переводит монитор в running и запускает цикл.
//
// Перед запуском отправляется стартовое сообщение-самопроверка:
// если доставка не удалась, монитор немедленно возвращается в stopped
// и цикл не стартует.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	// Самопроверка канала уведомлений
	startupMsg := fmt.Sprintf("🤖 Gap monitor started\nSymbols: %v\nInterval: %v\n%s",
		m.cfg.Symbols, m.cfg.MonitorInterval, utils.FormatKST(utils.NowKST()))
	if m.notifier != nil && !m.notifier.Send(startupMsg) {
		return fmt.Errorf("notifier self-test failed, monitor not started")
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	m.stop = stop
	m.done = done
	m.running = true
	m.startedAt = time.Now()
	MonitorRunning.Set(1)

	go m.loop(stop, done)

	log.Printf("[monitor] started: symbols=%v pairs=%v interval=%v",
		m.cfg.Symbols, m.pairs, m.cfg.MonitorInterval)
	return nil
}

// Stop переводит монитор в stopped и дожидается завершения цикла.
//
// Запрос вступает в силу на границе тика: начатые запросы к биржам
// не прерываются, цикл дорабатывает текущую оценку до конца.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	stop := m.stop
	done := m.done
	m.running = false
	m.stop = nil
	MonitorRunning.Set(0)
	m.mu.Unlock()

	close(stop)
	<-done

	if m.notifier != nil {
		shutdownMsg := fmt.Sprintf("🛑 Gap monitor stopped\n%s", utils.FormatKST(utils.NowKST()))
		if !m.notifier.Send(shutdownMsg) {
			log.Printf("[monitor] shutdown notification not delivered")
		}
	}

	log.Printf("[monitor] stopped")
	return nil
}

// loop - основной цикл. Без очереди: если тик длится дольше интервала,
// следующий начинается сразу по завершении.
//
// Остановка проверяется только между оценками: запросы выполняются
// на фоновом контексте и всегда дорабатывают до конца.
func (m *Monitor) loop(stop, done chan struct{}) {
	defer close(done)

	ctx := context.Background()
	for {
		start := time.Now()
		m.tick(ctx, stop)
		MonitorTicks.Inc()

		select {
		case <-stop:
			return
		default:
		}

		wait := m.cfg.MonitorInterval - time.Since(start)
		if wait <= 0 {
			continue
		}

		select {
		case <-time.After(wait):
		case <-stop:
			return
		}
	}
}

// tick оценивает все (символ, пара) комбинации одного тика
func (m *Monitor) tick(ctx context.Context, stop <-chan struct{}) {
	for _, symbol := range m.cfg.Symbols {
		for _, pair := range m.pairs {
			select {
			case <-stop:
				return
			default:
			}
			m.evaluate(ctx, symbol, pair)
		}
	}
}

// quoteResult - результат запроса котировок одной биржи
type quoteResult struct {
	quote *exchange.Quote
	err   error
}

// evaluate обрабатывает одну комбинацию (символ, пара).
// Ошибки запросов прерывают только эту комбинацию на этом тике.
func (m *Monitor) evaluate(ctx context.Context, symbol string, pair VenuePair) {
	// Котировки обеих бирж запрашиваются параллельно; внутри биржи
	// стакан и тикер идут последовательно (общая метка времени)
	chA := make(chan quoteResult, 1)
	chB := make(chan quoteResult, 1)

	go func() {
		q, err := m.router.GetQuote(ctx, pair.A, symbol, 5)
		chA <- quoteResult{quote: q, err: err}
	}()
	go func() {
		q, err := m.router.GetQuote(ctx, pair.B, symbol, 5)
		chB <- quoteResult{quote: q, err: err}
	}()

	resA := <-chA
	resB := <-chB

	if resA.err != nil {
		FetchErrors.WithLabelValues(string(pair.A)).Inc()
		log.Printf("[monitor] %s %s: fetch failed: %v", pair.A, symbol, resA.err)
		return
	}
	if resB.err != nil {
		FetchErrors.WithLabelValues(string(pair.B)).Inc()
		log.Printf("[monitor] %s %s: fetch failed: %v", pair.B, symbol, resB.err)
		return
	}
	if !resA.quote.Ticker.OK() || !resB.quote.Ticker.OK() {
		log.Printf("[monitor] %s %s: unusable ticker, skipping tick", pair, symbol)
		return
	}

	sample := NewGapSample(symbol, pair, resA.quote.Ticker.Last, resB.quote.Ticker.Last)
	RecordGap(sample, pair.String())

	volA := VenueNotional(resA.quote.Book)
	volB := VenueNotional(resB.quote.Book)
	notional := utils.MinOf(volA, volB)

	// Рассылка и журнал - best effort, вне торгового пути
	if m.broadcast != nil {
		m.broadcast(sample)
	}
	if m.audit != nil {
		m.audit.LogGap(sample, volA, volB, notional)
	}

	// Торговый путь: пересечение порога порождает не более одного
	// сигнала за тик
	if m.executor != nil {
		if sample.GapPct >= m.cfg.EntryLongPct {
			RecordSignal(symbol, "trade")
			m.trade(ctx, TradeSignal{Sample: sample, Direction: DirectionLongGap, Notional: notional})
		} else if sample.GapPct <= m.cfg.EntryShortPct {
			RecordSignal(symbol, "trade")
			m.trade(ctx, TradeSignal{Sample: sample, Direction: DirectionShortGap, Notional: notional})
		}
	}

	// Уведомительный путь оценивается всегда, независимо от торгового
	m.notify(sample, notional)
}

// trade передаёт сигнал исполнителю и логирует явный исход
func (m *Monitor) trade(ctx context.Context, sig TradeSignal) {
	result := m.executor.ExecuteEntry(ctx, sig)
	if result.Success {
		log.Printf("[monitor] trade ok: %s gap=%+.4f%% notional=%.2f",
			sig.Sample.Symbol, sig.Sample.GapPct, result.Notional)
	} else {
		log.Printf("[monitor] trade failed: %s: %s", sig.Sample.Symbol, result.Message)
	}
}

// notify отправляет гэп-алерт если порог пересечён и dedup окно истекло.
// Любой сбой здесь проглатывается с записью в лог: уведомительный путь
// не должен ронять цикл.
func (m *Monitor) notify(sample GapSample, notional float64) {
	if m.notifier == nil {
		return
	}

	crossed := sample.GapPct >= m.cfg.EntryLongPct || sample.GapPct <= m.cfg.EntryShortPct
	if !crossed {
		return
	}

	key := sample.DedupKey()

	m.mu.Lock()
	last, seen := m.lastAlertAt[key]
	suppressed := seen && time.Since(last) < m.cfg.DedupWindow
	if !suppressed {
		m.lastAlertAt[key] = time.Now()
	}
	m.mu.Unlock()

	if suppressed {
		AlertsSuppressed.WithLabelValues(sample.Symbol).Inc()
		return
	}

	RecordSignal(sample.Symbol, "notify")

	krw := sample.AbsDiff * m.cfg.UsdtToKrw
	text := fmt.Sprintf(
		"📊 Gap alert %s-%s\nSymbol: %s\nPrices: %.6f / %.6f\nGap: %+.4f%%\nDiff: %.6f USDT (≈%.0f KRW)\nTradable: %.2f USDT\n%s",
		sample.VenueA, sample.VenueB,
		sample.Symbol,
		sample.PriceA, sample.PriceB,
		sample.GapPct,
		sample.AbsDiff, krw,
		notional,
		utils.FormatKST(sample.TsKst),
	)

	if !m.notifier.Send(text) {
		log.Printf("[monitor] gap alert not delivered for %s", key)
	}
}
