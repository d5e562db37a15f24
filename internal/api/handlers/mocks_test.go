package handlers

import (
	"context"
	"time"

	"github.com/joonhyoung1/crypto-trading-bot/internal/config"
	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
)

// mockExchange - биржа с фиксированными котировками для тестов handlers.
// Ненулевой err превращает все запросы данных в отказ.
type mockExchange struct {
	venue exchange.Venue
	last  float64
	err   error
}

func (m *mockExchange) Connect(ctx context.Context, apiKey, secret, passphrase string) error {
	return nil
}

func (m *mockExchange) GetName() exchange.Venue { return m.venue }

func (m *mockExchange) GetTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &exchange.Ticker{Symbol: symbol, Last: m.last, Timestamp: time.Now()}, nil
}

func (m *mockExchange) GetOrderBook(ctx context.Context, symbol string, depth int) (*exchange.OrderBook, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &exchange.OrderBook{
		Symbol: symbol,
		Asks: []exchange.PriceLevel{
			{Price: m.last + 0.0001, Volume: 1000},
			{Price: m.last + 0.0002, Volume: 2000},
			{Price: m.last + 0.0003, Volume: 3000},
		},
		Bids: []exchange.PriceLevel{
			{Price: m.last - 0.0001, Volume: 1000},
			{Price: m.last - 0.0002, Volume: 2000},
			{Price: m.last - 0.0003, Volume: 3000},
		},
		Timestamp: time.Now(),
	}, nil
}

func (m *mockExchange) GetBalance(ctx context.Context) (*exchange.Balance, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &exchange.Balance{Total: 1000, Free: 800, Used: 200}, nil
}

func (m *mockExchange) GetPosition(ctx context.Context, symbol string) (*exchange.Position, error) {
	return nil, nil
}

func (m *mockExchange) SetMarginMode(ctx context.Context, symbol, mode string) error { return nil }

func (m *mockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}

func (m *mockExchange) PlaceMarketOrder(ctx context.Context, symbol, side string, notional float64) (*exchange.Order, error) {
	return &exchange.Order{ID: "mock-1", Symbol: symbol, Side: side, Notional: notional}, nil
}

func (m *mockExchange) CancelOrder(ctx context.Context, orderID, symbol string) error { return nil }

func (m *mockExchange) Close() error { return nil }

// mockNotifier всегда сообщает успешную доставку
type mockNotifier struct{}

func (mockNotifier) Send(text string) bool { return true }

// newTestRouter собирает Router с тремя биржами на одной цене.
// initialized управляет готовностью (503-гейт в handlers).
func newTestRouter(initialized bool) *exchange.Router {
	router := exchange.NewRouter()
	for _, venue := range exchange.Venues {
		router.Register(&mockExchange{venue: venue, last: 0.52})
		if initialized {
			router.MarkInitialized(venue)
		}
	}
	return router
}

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		Symbols:         []string{"XRP/USDT", "DOGE/USDT"},
		EntryLongPct:    0.05,
		EntryShortPct:   -0.06,
		MonitorInterval: 50 * time.Millisecond,
		DedupWindow:     300 * time.Second,
		SafetyFactor:    0.95,
		UsdtToKrw:       1300,
	}
}
