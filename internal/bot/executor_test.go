package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joonhyoung1/crypto-trading-bot/internal/config"
	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
)

// placedOrder - запись о размещённом ордере заглушки
type placedOrder struct {
	Symbol   string
	Side     string
	Notional float64
}

// stubExchange - управляемая заглушка биржи для тестов ядра
type stubExchange struct {
	mu sync.Mutex

	venue    exchange.Venue
	ticker   *exchange.Ticker
	book     *exchange.OrderBook
	position *exchange.Position

	placeErr  error
	cancelErr error

	placed    []placedOrder
	cancelled []string
	nextID    int
}

func newStubExchange(venue exchange.Venue, last float64) *stubExchange {
	return &stubExchange{
		venue:  venue,
		ticker: &exchange.Ticker{Symbol: "XRP/USDT", Last: last},
		book: &exchange.OrderBook{
			Asks: []exchange.PriceLevel{{Price: last, Volume: 10000}},
			Bids: []exchange.PriceLevel{{Price: last, Volume: 10000}},
		},
	}
}

func (s *stubExchange) Connect(ctx context.Context, apiKey, secret, passphrase string) error {
	return nil
}
func (s *stubExchange) GetName() exchange.Venue { return s.venue }
func (s *stubExchange) GetTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker, nil
}
func (s *stubExchange) GetOrderBook(ctx context.Context, symbol string, depth int) (*exchange.OrderBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book, nil
}
func (s *stubExchange) GetBalance(ctx context.Context) (*exchange.Balance, error) {
	return &exchange.Balance{Total: 10000, Free: 10000}, nil
}
func (s *stubExchange) GetPosition(ctx context.Context, symbol string) (*exchange.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, nil
}
func (s *stubExchange) SetMarginMode(ctx context.Context, symbol, mode string) error { return nil }
func (s *stubExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
func (s *stubExchange) PlaceMarketOrder(ctx context.Context, symbol, side string, notional float64) (*exchange.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.placeErr != nil {
		return nil, s.placeErr
	}

	s.nextID++
	s.placed = append(s.placed, placedOrder{Symbol: symbol, Side: side, Notional: notional})
	return &exchange.Order{
		ID:       string(s.venue) + "-" + strings.Repeat("1", s.nextID),
		Symbol:   symbol,
		Side:     side,
		Notional: notional,
	}, nil
}
func (s *stubExchange) CancelOrder(ctx context.Context, orderID, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, orderID)
	return s.cancelErr
}
func (s *stubExchange) Close() error { return nil }

func (s *stubExchange) placedOrders() []placedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]placedOrder, len(s.placed))
	copy(out, s.placed)
	return out
}

func (s *stubExchange) cancelledOrders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.cancelled))
	copy(out, s.cancelled)
	return out
}

// fakeNotifier записывает отправленные сообщения
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (f *fakeNotifier) Send(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false
	}
	f.messages = append(f.messages, text)
	return true
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	copy(out, f.messages)
	return out
}

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		Symbols:         []string{"XRP/USDT"},
		EntryLongPct:    0.05,
		EntryShortPct:   -0.06,
		MonitorInterval: 10 * time.Millisecond,
		DedupWindow:     300 * time.Second,
		SafetyFactor:    0.95,
		UsdtToKrw:       1300,
	}
}

func testSignal(direction Direction, gapPctPrices [2]float64, notional float64) TradeSignal {
	pair := VenuePair{A: exchange.VenueMexc, B: exchange.VenueBitget}
	return TradeSignal{
		Sample:    NewGapSample("XRP/USDT", pair, gapPctPrices[0], gapPctPrices[1]),
		Direction: direction,
		Notional:  notional,
	}
}

func TestExecuteEntryLongGap(t *testing.T) {
	mexc := newStubExchange(exchange.VenueMexc, 0.5200)
	bitget := newStubExchange(exchange.VenueBitget, 0.5197)

	router := exchange.NewRouter()
	router.Register(mexc)
	router.Register(bitget)

	notifier := &fakeNotifier{}
	ex := NewExecutor(router, notifier, testTradingConfig())

	// Сырой нотионал 1000 -> после safety factor 950
	result := ex.ExecuteEntry(context.Background(),
		testSignal(DirectionLongGap, [2]float64{0.5200, 0.5197}, 1000))

	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Message)
	}
	if result.Notional != 950 {
		t.Errorf("notional = %v, expected 950", result.Notional)
	}

	// long_gap: sell на A (mexc), buy на B (bitget)
	mexcOrders := mexc.placedOrders()
	bitgetOrders := bitget.placedOrders()
	if len(mexcOrders) != 1 || mexcOrders[0].Side != exchange.SideSell {
		t.Errorf("mexc leg = %+v, expected one sell", mexcOrders)
	}
	if len(bitgetOrders) != 1 || bitgetOrders[0].Side != exchange.SideBuy {
		t.Errorf("bitget leg = %+v, expected one buy", bitgetOrders)
	}
	if mexcOrders[0].Notional != 950 || bitgetOrders[0].Notional != 950 {
		t.Error("leg notionals must carry the sized amount")
	}

	// Уведомление об исполнении отправлено
	msgs := notifier.sent()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "cross mode, 1x leverage") {
		t.Errorf("expected entry notification, got %v", msgs)
	}
}

func TestExecuteEntryShortGap(t *testing.T) {
	gate := newStubExchange(exchange.VenueGate, 0.5190)
	bitget := newStubExchange(exchange.VenueBitget, 0.5197)

	router := exchange.NewRouter()
	router.Register(gate)
	router.Register(bitget)

	ex := NewExecutor(router, &fakeNotifier{}, testTradingConfig())

	pair := VenuePair{A: exchange.VenueGate, B: exchange.VenueBitget}
	sig := TradeSignal{
		Sample:    NewGapSample("XRP/USDT", pair, 0.5190, 0.5197),
		Direction: DirectionShortGap,
		Notional:  1000,
	}

	result := ex.ExecuteEntry(context.Background(), sig)
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Message)
	}

	// short_gap: buy на A (gate), sell на B (bitget)
	if orders := gate.placedOrders(); len(orders) != 1 || orders[0].Side != exchange.SideBuy {
		t.Errorf("gate leg = %+v, expected one buy", orders)
	}
	if orders := bitget.placedOrders(); len(orders) != 1 || orders[0].Side != exchange.SideSell {
		t.Errorf("bitget leg = %+v, expected one sell", orders)
	}
}

func TestExecuteEntryPartialFailure(t *testing.T) {
	mexc := newStubExchange(exchange.VenueMexc, 0.5200)
	bitget := newStubExchange(exchange.VenueBitget, 0.5197)
	bitget.placeErr = errors.New("insufficient margin")

	router := exchange.NewRouter()
	router.Register(mexc)
	router.Register(bitget)

	notifier := &fakeNotifier{}
	ex := NewExecutor(router, notifier, testTradingConfig())

	result := ex.ExecuteEntry(context.Background(),
		testSignal(DirectionLongGap, [2]float64{0.5200, 0.5197}, 1000))

	if result.Success {
		t.Fatal("expected failure on partial fill")
	}
	if !result.Compensated {
		t.Error("expected compensation attempt")
	}

	// Отмена выдана ровно на успешную ногу (mexc)
	if cancelled := mexc.cancelledOrders(); len(cancelled) != 1 {
		t.Errorf("mexc cancellations = %v, expected exactly one", cancelled)
	}
	if cancelled := bitget.cancelledOrders(); len(cancelled) != 0 {
		t.Errorf("bitget cancellations = %v, expected none", cancelled)
	}

	// Встречный рыночный ордер НЕ отправляется
	if orders := mexc.placedOrders(); len(orders) != 1 {
		t.Errorf("mexc orders = %v, compensation must not place new orders", orders)
	}

	// Частичное исполнение отправляет уведомление о провале
	msgs := notifier.sent()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "⚠️") {
		t.Errorf("expected one warning notification, got %v", msgs)
	}
	if !strings.Contains(msgs[0], "compensation attempted") {
		t.Errorf("notification must report the compensation attempt, got %q", msgs[0])
	}
}

func TestExecuteEntryCancelFailureKeepsOutcome(t *testing.T) {
	mexc := newStubExchange(exchange.VenueMexc, 0.5200)
	bitget := newStubExchange(exchange.VenueBitget, 0.5197)
	bitget.placeErr = errors.New("rejected")
	mexc.cancelErr = errors.New("order already filled")

	router := exchange.NewRouter()
	router.Register(mexc)
	router.Register(bitget)

	ex := NewExecutor(router, &fakeNotifier{}, testTradingConfig())

	result := ex.ExecuteEntry(context.Background(),
		testSignal(DirectionLongGap, [2]float64{0.5200, 0.5197}, 1000))

	// Провал отмены не меняет исход: "failed, compensation attempted"
	if result.Success || !result.Compensated {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestExecuteEntryBothLegsFailed(t *testing.T) {
	mexc := newStubExchange(exchange.VenueMexc, 0.5200)
	bitget := newStubExchange(exchange.VenueBitget, 0.5197)
	mexc.placeErr = errors.New("down")
	bitget.placeErr = errors.New("down")

	router := exchange.NewRouter()
	router.Register(mexc)
	router.Register(bitget)

	notifier := &fakeNotifier{}
	ex := NewExecutor(router, notifier, testTradingConfig())

	result := ex.ExecuteEntry(context.Background(),
		testSignal(DirectionLongGap, [2]float64{0.5200, 0.5197}, 1000))

	if result.Success || result.Compensated {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(mexc.cancelledOrders())+len(bitget.cancelledOrders()) != 0 {
		t.Error("no compensation expected when both legs failed")
	}

	// Провал обеих ног также уведомляется, но без компенсации
	msgs := notifier.sent()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "⚠️") {
		t.Errorf("expected one warning notification, got %v", msgs)
	}
	if !strings.Contains(msgs[0], "no compensation") {
		t.Errorf("notification must report missing compensation, got %q", msgs[0])
	}
}

func TestClosePositionsBothLegs(t *testing.T) {
	mexc := newStubExchange(exchange.VenueMexc, 0.5200)
	bitget := newStubExchange(exchange.VenueBitget, 0.5197)
	mexc.position = &exchange.Position{
		Symbol: "XRP/USDT", Side: exchange.SideShort, Contracts: 1000, UnrealizedPnl: 1.5,
	}
	bitget.position = &exchange.Position{
		Symbol: "XRP/USDT", Side: exchange.SideLong, Contracts: 1000, UnrealizedPnl: -0.8,
	}

	router := exchange.NewRouter()
	router.Register(mexc)
	router.Register(bitget)

	notifier := &fakeNotifier{}
	ex := NewExecutor(router, notifier, testTradingConfig())

	result := ex.ClosePositions(context.Background(), "XRP/USDT",
		VenuePair{A: exchange.VenueMexc, B: exchange.VenueBitget})

	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Message)
	}

	// Закрывающая сторона противоположна позиции
	if orders := mexc.placedOrders(); len(orders) != 1 || orders[0].Side != exchange.SideBuy {
		t.Errorf("mexc close = %+v, expected one buy", orders)
	}
	if orders := bitget.placedOrders(); len(orders) != 1 || orders[0].Side != exchange.SideSell {
		t.Errorf("bitget close = %+v, expected one sell", orders)
	}

	// Сводка PnL отправлена
	msgs := notifier.sent()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "Positions closed") {
		t.Errorf("expected close notification, got %v", msgs)
	}
}

func TestClosePositionsSingleLeg(t *testing.T) {
	// Вторая нога закрыта вручную: закрываем оставшуюся
	mexc := newStubExchange(exchange.VenueMexc, 0.5200)
	bitget := newStubExchange(exchange.VenueBitget, 0.5197)
	mexc.position = &exchange.Position{
		Symbol: "XRP/USDT", Side: exchange.SideLong, Contracts: 500,
	}

	router := exchange.NewRouter()
	router.Register(mexc)
	router.Register(bitget)

	ex := NewExecutor(router, &fakeNotifier{}, testTradingConfig())

	result := ex.ClosePositions(context.Background(), "XRP/USDT",
		VenuePair{A: exchange.VenueMexc, B: exchange.VenueBitget})

	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Message)
	}
	if orders := mexc.placedOrders(); len(orders) != 1 || orders[0].Side != exchange.SideSell {
		t.Errorf("mexc close = %+v, expected one sell", orders)
	}
	if orders := bitget.placedOrders(); len(orders) != 0 {
		t.Errorf("bitget orders = %+v, expected none", orders)
	}
}

func TestClosePositionsNoneOpen(t *testing.T) {
	router := exchange.NewRouter()
	router.Register(newStubExchange(exchange.VenueMexc, 0.52))
	router.Register(newStubExchange(exchange.VenueBitget, 0.52))

	ex := NewExecutor(router, &fakeNotifier{}, testTradingConfig())

	result := ex.ClosePositions(context.Background(), "XRP/USDT",
		VenuePair{A: exchange.VenueMexc, B: exchange.VenueBitget})

	if result.Success {
		t.Error("close without open positions must fail")
	}
}

func TestExecuteEntryZeroNotional(t *testing.T) {
	router := exchange.NewRouter()
	router.Register(newStubExchange(exchange.VenueMexc, 0.52))
	router.Register(newStubExchange(exchange.VenueBitget, 0.52))

	ex := NewExecutor(router, &fakeNotifier{}, testTradingConfig())

	result := ex.ExecuteEntry(context.Background(),
		testSignal(DirectionLongGap, [2]float64{0.52, 0.52}, 0))

	if result.Success {
		t.Error("zero notional must not trade")
	}
}
