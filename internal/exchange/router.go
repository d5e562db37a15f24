package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// router.go - маршрутизатор биржевых операций
//
// Router владеет зарегистрированными адаптерами и общим состоянием
// инициализации каждой биржи. Операции с символом диспетчеризуются
// на нужный адаптер по идентификатору биржи.

// ErrUnknownVenue возвращается при обращении к незарегистрированной бирже
var ErrUnknownVenue = fmt.Errorf("unknown venue")

// VenueStatus - состояние инициализации одной биржи
type VenueStatus struct {
	Venue       Venue     `json:"venue"`
	Initialized bool      `json:"initialized"`
	LastError   string    `json:"last_error,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitempty"`
}

// Router диспетчеризует операции на адаптеры бирж
type Router struct {
	mu       sync.RWMutex
	adapters map[Venue]Exchange
	statuses map[Venue]*VenueStatus
}

// NewRouter создает пустой Router
func NewRouter() *Router {
	return &Router{
		adapters: make(map[Venue]Exchange),
		statuses: make(map[Venue]*VenueStatus),
	}
}

// Register добавляет адаптер. Биржа без учётных данных не регистрируется
// вовсе - её отсутствие в Router и есть признак "не сконфигурирована".
func (r *Router) Register(ex Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()

	venue := ex.GetName()
	r.adapters[venue] = ex
	r.statuses[venue] = &VenueStatus{Venue: venue}
}

// Get возвращает адаптер биржи
func (r *Router) Get(venue Venue) (Exchange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ex, ok := r.adapters[venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, venue)
	}
	return ex, nil
}

// Venues возвращает список зарегистрированных бирж в стабильном порядке
func (r *Router) Venues() []Venue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Venue, 0, len(r.adapters))
	for _, v := range Venues {
		if _, ok := r.adapters[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// MarkInitialized фиксирует успешную инициализацию биржи
func (r *Router) MarkInitialized(venue Venue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.statuses[venue]; ok {
		st.Initialized = true
		st.LastError = ""
		st.ConnectedAt = time.Now()
	}
}

// MarkFailed фиксирует ошибку инициализации биржи
func (r *Router) MarkFailed(venue Venue, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.statuses[venue]; ok {
		st.Initialized = false
		if err != nil {
			st.LastError = err.Error()
		}
	}
}

// Status возвращает копию состояния биржи
func (r *Router) Status(venue Venue) (VenueStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.statuses[venue]
	if !ok {
		return VenueStatus{}, false
	}
	return *st, true
}

// Statuses возвращает состояния всех бирж в стабильном порядке
func (r *Router) Statuses() []VenueStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]VenueStatus, 0, len(r.statuses))
	for _, v := range Venues {
		if st, ok := r.statuses[v]; ok {
			out = append(out, *st)
		}
	}
	return out
}

// AllInitialized сообщает готовы ли все зарегистрированные биржи
func (r *Router) AllInitialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.statuses) == 0 {
		return false
	}
	for _, st := range r.statuses {
		if !st.Initialized {
			return false
		}
	}
	return true
}

// GetTicker запрашивает тикер у нужной биржи
func (r *Router) GetTicker(ctx context.Context, venue Venue, symbol string) (*Ticker, error) {
	ex, err := r.Get(venue)
	if err != nil {
		return nil, err
	}
	return ex.GetTicker(ctx, symbol)
}

// GetOrderBook запрашивает стакан у нужной биржи
func (r *Router) GetOrderBook(ctx context.Context, venue Venue, symbol string, depth int) (*OrderBook, error) {
	ex, err := r.Get(venue)
	if err != nil {
		return nil, err
	}
	return ex.GetOrderBook(ctx, symbol, depth)
}

// GetQuote запрашивает стакан и тикер как единый снимок
func (r *Router) GetQuote(ctx context.Context, venue Venue, symbol string, depth int) (*Quote, error) {
	ex, err := r.Get(venue)
	if err != nil {
		return nil, err
	}

	book, err := ex.GetOrderBook(ctx, symbol, depth)
	if err != nil {
		return nil, err
	}
	ticker, err := ex.GetTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return &Quote{
		Venue:     venue,
		Symbol:    symbol,
		Book:      book,
		Ticker:    ticker,
		FetchedAt: time.Now(),
	}, nil
}

// Close закрывает все адаптеры
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ex := range r.adapters {
		_ = ex.Close()
	}
}
