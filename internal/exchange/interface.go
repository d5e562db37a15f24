package exchange

import (
	"context"
	"time"
)

// Venue - идентификатор биржи. Закрытое множество: mexc, gate, bitget.
type Venue string

const (
	VenueMexc   Venue = "mexc"
	VenueGate   Venue = "gate"
	VenueBitget Venue = "bitget"
)

// Venues - все поддерживаемые биржи в каноническом порядке
var Venues = []Venue{VenueMexc, VenueGate, VenueBitget}

// DisplayName возвращает человекочитаемое имя биржи для UI и уведомлений
func (v Venue) DisplayName() string {
	switch v {
	case VenueMexc:
		return "MEXC Futures"
	case VenueGate:
		return "Gate.io Futures"
	case VenueBitget:
		return "Bitget Futures"
	default:
		return string(v)
	}
}

// Exchange определяет унифицированный интерфейс для работы с любой биржей
//
// Все адаптеры работают с каноническим символом вида BASE/USDT;
// преобразование в нативный формат биржи происходит внутри адаптера
// и никогда не протекает наружу.
type Exchange interface {
	// Connect сохраняет ключи и проверяет доступность REST API
	// (self-test: запрос тикера XRP/USDT)
	Connect(ctx context.Context, apiKey, secret, passphrase string) error

	// GetName возвращает идентификатор биржи
	GetName() Venue

	// GetTicker получает текущую цену актива.
	// Тикер с Last == 0 считается непригодным: потребители обязаны
	// пропустить цикл.
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)

	// GetOrderBook получает стакан ордеров с заданной глубиной
	GetOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)

	// GetBalance получает баланс фьючерсного аккаунта в USDT
	GetBalance(ctx context.Context) (*Balance, error)

	// GetPosition получает открытую позицию по символу
	GetPosition(ctx context.Context, symbol string) (*Position, error)

	// SetMarginMode переключает режим маржи ("cross").
	// Идемпотентна: ошибка "уже установлено" не является фатальной.
	SetMarginMode(ctx context.Context, symbol, mode string) error

	// SetLeverage устанавливает плечо. Идемпотентна, как и SetMarginMode.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// PlaceMarketOrder размещает рыночный ордер на notional USDT
	PlaceMarketOrder(ctx context.Context, symbol, side string, notional float64) (*Order, error)

	// CancelOrder отменяет ордер (best-effort: рыночный ордер мог уже
	// исполниться, тогда биржа вернёт ошибку)
	CancelOrder(ctx context.Context, orderID, symbol string) error

	// Close закрывает соединения с биржей
	Close() error
}

// Ticker содержит информацию о текущей цене
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Last      float64   `json:"last"`
	Timestamp time.Time `json:"timestamp"`
}

// OK сообщает пригоден ли тикер для расчётов.
// Неудачный запрос даёт сентинел {Last: 0} - такой тик пропускается.
func (t *Ticker) OK() bool {
	return t != nil && t.Last > 0
}

// OrderBook представляет стакан ордеров
//
// Инварианты после успешного запроса: минимум один уровень с каждой
// стороны, bids строго убывают, asks строго возрастают, все значения
// положительные. Для мониторинга достаточно трёх верхних уровней.
type OrderBook struct {
	Symbol    string       `json:"symbol"`
	Asks      []PriceLevel `json:"asks"`
	Bids      []PriceLevel `json:"bids"`
	Timestamp time.Time    `json:"timestamp"`
}

// PriceLevel представляет уровень цены в стакане
type PriceLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// BestAsk возвращает верхний уровень asks (nil если стакан пуст)
func (ob *OrderBook) BestAsk() *PriceLevel {
	if ob == nil || len(ob.Asks) == 0 {
		return nil
	}
	return &ob.Asks[0]
}

// BestBid возвращает верхний уровень bids (nil если стакан пуст)
func (ob *OrderBook) BestBid() *PriceLevel {
	if ob == nil || len(ob.Bids) == 0 {
		return nil
	}
	return &ob.Bids[0]
}

// Quote - связка стакан + тикер, запрошенная парой с общей меткой времени
type Quote struct {
	Venue     Venue      `json:"venue"`
	Symbol    string     `json:"symbol"`
	Book      *OrderBook `json:"book"`
	Ticker    *Ticker    `json:"ticker"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Balance - баланс фьючерсного аккаунта в USDT
type Balance struct {
	Total float64 `json:"total"`
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
}

// Position представляет открытую позицию
type Position struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"` // "long" или "short"
	Contracts     float64 `json:"contracts"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
}

// Order - результат размещения ордера
//
// Инвариант: у неуспешного размещения Order отсутствует целиком
// (возвращается ошибка), поэтому ID без успеха не существует.
type Order struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"` // "buy" или "sell"
	Notional  float64   `json:"notional"`
	LatencyMs int64     `json:"latency_ms"`
	Raw       string    `json:"raw,omitempty"` // тело ответа биржи для диагностики
	CreatedAt time.Time `json:"created_at"`
}

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Venue    Venue
	Code     string
	Message  string
	Auth     bool // true для ошибок аутентификации (учитывается в readiness)
	Original error
}

func (e *ExchangeError) Error() string {
	return string(e.Venue) + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}

// Side constants for orders
const (
	SideBuy  = "buy"  // покупка (открытие long)
	SideSell = "sell" // продажа (открытие short)
)

// Side constants for positions
const (
	SideLong  = "long"
	SideShort = "short"
)

// MarginModeCross - единственный поддерживаемый режим маржи
const MarginModeCross = "cross"

// DefaultLeverage - плечо по умолчанию для всех ордеров
const DefaultLeverage = 1
