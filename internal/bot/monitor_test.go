package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
)

// fakeAudit записывает журналируемые сэмплы и объёмы
type fakeAudit struct {
	mu      sync.Mutex
	samples []GapSample
	volumes [][2]float64
}

func (f *fakeAudit) LogGap(sample GapSample, volumeA, volumeB, notional float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, sample)
	f.volumes = append(f.volumes, [2]float64{volumeA, volumeB})
}

func newTestMonitor(mexcLast, bitgetLast float64) (*Monitor, *stubExchange, *stubExchange, *fakeNotifier) {
	mexc := newStubExchange(exchange.VenueMexc, mexcLast)
	bitget := newStubExchange(exchange.VenueBitget, bitgetLast)

	router := exchange.NewRouter()
	router.Register(mexc)
	router.Register(bitget)

	notifier := &fakeNotifier{}
	executor := NewExecutor(router, notifier, testTradingConfig())

	m := NewMonitor(router, executor, notifier, nil, testTradingConfig())
	m.SetPairs([]VenuePair{{A: exchange.VenueMexc, B: exchange.VenueBitget}})

	return m, mexc, bitget, notifier
}

func TestEvaluateBelowThreshold(t *testing.T) {
	// Гэп +0.02% - ниже обоих порогов: ни торговли, ни алерта
	m, mexc, bitget, notifier := newTestMonitor(100.02, 100.0)

	m.evaluate(context.Background(), "XRP/USDT",
		VenuePair{A: exchange.VenueMexc, B: exchange.VenueBitget})

	if len(mexc.placedOrders())+len(bitget.placedOrders()) != 0 {
		t.Error("no orders expected below threshold")
	}
	if len(notifier.sent()) != 0 {
		t.Errorf("no alerts expected below threshold, got %v", notifier.sent())
	}
}

func TestEvaluateLongGapTradesAndNotifies(t *testing.T) {
	// Гэп ~ +0.06% >= entry_long 0.05%
	m, mexc, bitget, notifier := newTestMonitor(100.06, 100.0)

	m.evaluate(context.Background(), "XRP/USDT",
		VenuePair{A: exchange.VenueMexc, B: exchange.VenueBitget})

	if len(mexc.placedOrders()) != 1 || len(bitget.placedOrders()) != 1 {
		t.Fatal("expected one order per leg")
	}
	if mexc.placedOrders()[0].Side != exchange.SideSell {
		t.Error("long gap must sell on the rich venue")
	}

	// Два сообщения: исполнение (от executor) + гэп-алерт (notify path)
	msgs := notifier.sent()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d: %v", len(msgs), msgs)
	}

	var hasAlert bool
	for _, msg := range msgs {
		if strings.Contains(msg, "Gap alert") {
			hasAlert = true
		}
	}
	if !hasAlert {
		t.Errorf("expected a gap alert among %v", msgs)
	}
}

func TestEvaluateShortGapDirection(t *testing.T) {
	// Гэп ~ -0.07% <= entry_short -0.06%
	m, mexc, bitget, _ := newTestMonitor(99.93, 100.0)

	m.evaluate(context.Background(), "XRP/USDT",
		VenuePair{A: exchange.VenueMexc, B: exchange.VenueBitget})

	if orders := mexc.placedOrders(); len(orders) != 1 || orders[0].Side != exchange.SideBuy {
		t.Errorf("short gap must buy on the cheap venue, got %+v", orders)
	}
	if orders := bitget.placedOrders(); len(orders) != 1 || orders[0].Side != exchange.SideSell {
		t.Errorf("short gap must sell on the reference venue, got %+v", orders)
	}
}

func TestNotifyDedupWindow(t *testing.T) {
	m, _, _, notifier := newTestMonitor(100.06, 100.0)
	pair := VenuePair{A: exchange.VenueMexc, B: exchange.VenueBitget}

	sample := NewGapSample("XRP/USDT", pair, 100.06, 100.0)

	m.notify(sample, 1000)
	m.notify(sample, 1000) // тот же ключ внутри окна - подавляется

	if got := len(notifier.sent()); got != 1 {
		t.Errorf("expected 1 alert, got %d", got)
	}

	// Истекшее окно снова пропускает алерт
	m.mu.Lock()
	m.lastAlertAt[sample.DedupKey()] = time.Now().Add(-301 * time.Second)
	m.mu.Unlock()

	m.notify(sample, 1000)
	if got := len(notifier.sent()); got != 2 {
		t.Errorf("expected 2 alerts after window expiry, got %d", got)
	}
}

func TestNotifyDifferentKeysNotSuppressed(t *testing.T) {
	m, _, _, notifier := newTestMonitor(100.06, 100.0)
	pair := VenuePair{A: exchange.VenueMexc, B: exchange.VenueBitget}

	// Разные округлённые гэпы дают разные ключи
	m.notify(NewGapSample("XRP/USDT", pair, 100.06, 100.0), 1000)
	m.notify(NewGapSample("XRP/USDT", pair, 100.09, 100.0), 1000)

	if got := len(notifier.sent()); got != 2 {
		t.Errorf("expected 2 alerts for distinct keys, got %d", got)
	}
}

func TestMonitorStartStopLifecycle(t *testing.T) {
	m, _, _, notifier := newTestMonitor(100.0, 100.0)

	if m.IsRunning() {
		t.Fatal("monitor must start stopped")
	}
	if err := m.Stop(); err != ErrNotRunning {
		t.Errorf("Stop on stopped monitor = %v, expected ErrNotRunning", err)
	}

	// Первый цикл start/stop
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !m.IsRunning() {
		t.Error("expected running after Start")
	}
	if err := m.Start(); err != ErrAlreadyRunning {
		t.Errorf("second Start = %v, expected ErrAlreadyRunning", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if m.IsRunning() {
		t.Error("expected stopped after Stop")
	}

	// Второй цикл: повторный запуск допустим
	if err := m.Start(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}

	// Стартовые и стоповые сообщения отправлены в каждом цикле
	var started, stopped int
	for _, msg := range notifier.sent() {
		if strings.Contains(msg, "started") {
			started++
		}
		if strings.Contains(msg, "stopped") {
			stopped++
		}
	}
	if started != 2 || stopped != 2 {
		t.Errorf("start/stop messages = %d/%d, expected 2/2", started, stopped)
	}
}

// slowExchange задерживает запрос стакана и фиксирует состояние
// контекста на момент ответа
type slowExchange struct {
	*stubExchange
	mu        sync.Mutex
	calls     int
	cancelled bool
}

func (s *slowExchange) GetOrderBook(ctx context.Context, symbol string, depth int) (*exchange.OrderBook, error) {
	time.Sleep(50 * time.Millisecond)
	s.mu.Lock()
	s.calls++
	if ctx.Err() != nil {
		s.cancelled = true
	}
	s.mu.Unlock()
	return s.stubExchange.GetOrderBook(ctx, symbol, depth)
}

func TestStopAwaitsInflightRequests(t *testing.T) {
	mexc := &slowExchange{stubExchange: newStubExchange(exchange.VenueMexc, 100.0)}
	bitget := &slowExchange{stubExchange: newStubExchange(exchange.VenueBitget, 100.0)}

	router := exchange.NewRouter()
	router.Register(mexc)
	router.Register(bitget)

	m := NewMonitor(router, nil, &fakeNotifier{}, nil, testTradingConfig())
	m.SetPairs([]VenuePair{{A: exchange.VenueMexc, B: exchange.VenueBitget}})

	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Останавливаемся посреди медленных запросов первого тика
	time.Sleep(20 * time.Millisecond)
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if m.IsRunning() {
		t.Fatal("expected stopped after Stop")
	}

	mexc.mu.Lock()
	defer mexc.mu.Unlock()
	if mexc.calls == 0 {
		t.Fatal("expected an order book request before stop")
	}
	if mexc.cancelled {
		t.Error("stop must not cancel requests already in flight")
	}
}

func TestMonitorSelfTestFailure(t *testing.T) {
	m, _, _, notifier := newTestMonitor(100.0, 100.0)
	notifier.fail = true

	if err := m.Start(); err == nil {
		t.Fatal("expected start failure on notifier self-test")
	}
	if m.IsRunning() {
		t.Error("monitor must stay stopped after failed self-test")
	}
}

func TestMonitorAuditReceivesSamples(t *testing.T) {
	mexc := newStubExchange(exchange.VenueMexc, 100.06)
	bitget := newStubExchange(exchange.VenueBitget, 100.0)

	router := exchange.NewRouter()
	router.Register(mexc)
	router.Register(bitget)

	audit := &fakeAudit{}
	m := NewMonitor(router, nil, nil, audit, testTradingConfig())
	m.SetPairs([]VenuePair{{A: exchange.VenueMexc, B: exchange.VenueBitget}})

	m.evaluate(context.Background(), "XRP/USDT",
		VenuePair{A: exchange.VenueMexc, B: exchange.VenueBitget})

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.samples) != 1 {
		t.Fatalf("expected 1 audited sample, got %d", len(audit.samples))
	}
	if audit.samples[0].Symbol != "XRP/USDT" {
		t.Errorf("unexpected sample: %+v", audit.samples[0])
	}

	// Журнал получает объёмы верхних уровней обеих бирж
	if v := audit.volumes[0]; v[0] <= 0 || v[1] <= 0 {
		t.Errorf("expected positive per-venue volumes, got %v", v)
	}
}

func TestMonitorBroadcastHook(t *testing.T) {
	m, _, _, _ := newTestMonitor(100.0, 100.0)

	var mu sync.Mutex
	var received []GapSample
	m.SetBroadcast(func(s GapSample) {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
	})

	m.evaluate(context.Background(), "XRP/USDT",
		VenuePair{A: exchange.VenueMexc, B: exchange.VenueBitget})

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 broadcast sample, got %d", len(received))
	}
}
