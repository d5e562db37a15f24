package handlers

import (
	"log"
	"net/http"

	"github.com/joonhyoung1/crypto-trading-bot/internal/config"
	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
	"github.com/joonhyoung1/crypto-trading-bot/pkg/utils"
)

// orderBookDepth - сколько уровней стакана отдаётся наружу
const orderBookDepth = 3

// MarketHandler отдаёт рыночные данные: стаканы, цены, балансы
type MarketHandler struct {
	router *exchange.Router
	cfg    config.TradingConfig
}

func NewMarketHandler(router *exchange.Router, cfg config.TradingConfig) *MarketHandler {
	return &MarketHandler{router: router, cfg: cfg}
}

// OrderBookEntry - запись GET /api/orderbook для одной (биржа, символ)
type OrderBookEntry struct {
	Exchange     string                `json:"exchange"`
	Symbol       string                `json:"symbol"`
	Asks         []exchange.PriceLevel `json:"asks"`
	Bids         []exchange.PriceLevel `json:"bids"`
	LastPrice    float64               `json:"last_price"`
	LastPriceKrw float64               `json:"last_price_krw"`
	PriceGap     float64               `json:"price_gap"`
	PriceGapUsdt float64               `json:"price_gap_usdt"`
	Timestamp    string                `json:"timestamp"`
}

// GetOrderBook обрабатывает GET /api/orderbook
//
// Отдаёт по записи на каждую пару (биржа, символ). price_gap считается
// относительно опорной биржи bitget; её собственные записи несут 0.
// Биржа, не ответившая на запрос, выпадает из ответа; когда не ответил
// никто, это уже ошибка запроса.
func (h *MarketHandler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	if !h.router.AllInitialized() {
		respondNotInitialized(w, h.router)
		return
	}

	ctx := r.Context()

	// Опорные цены bitget по каждому символу - против них считается гэп
	refPrices := make(map[string]float64, len(h.cfg.Symbols))
	for _, symbol := range h.cfg.Symbols {
		ticker, err := h.router.GetTicker(ctx, exchange.VenueBitget, symbol)
		if err != nil {
			log.Printf("[api] reference ticker %s failed: %v", symbol, err)
			continue
		}
		if ticker.OK() {
			refPrices[symbol] = ticker.Last
		}
	}

	entries := make([]OrderBookEntry, 0, len(h.router.Venues())*len(h.cfg.Symbols))
	for _, venue := range h.router.Venues() {
		for _, symbol := range h.cfg.Symbols {
			quote, err := h.router.GetQuote(ctx, venue, symbol, orderBookDepth)
			if err != nil {
				log.Printf("[api] quote %s %s failed: %v", venue, symbol, err)
				continue
			}
			if !quote.Ticker.OK() {
				continue
			}

			last := quote.Ticker.Last
			entry := OrderBookEntry{
				Exchange:     string(venue),
				Symbol:       symbol,
				Asks:         quote.Book.Asks,
				Bids:         quote.Book.Bids,
				LastPrice:    last,
				LastPriceKrw: last * h.cfg.UsdtToKrw,
				Timestamp:    utils.FormatKST(quote.FetchedAt),
			}

			// Записи самой опорной биржи несут нулевой гэп
			if ref, ok := refPrices[symbol]; ok && venue != exchange.VenueBitget {
				entry.PriceGap = utils.CalculateGap(last, ref)
				entry.PriceGapUsdt = utils.Abs(last - ref)
			}

			entries = append(entries, entry)
		}
	}

	if len(entries) == 0 {
		respondWithError(w, http.StatusInternalServerError, "failed to fetch order books")
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// VenueBalance - баланс одной биржи в GET /api/balance.
// dailyPnL и monthlyPnL пока не считаются и отдаются нулями.
type VenueBalance struct {
	USDT       float64 `json:"USDT"`
	Free       float64 `json:"free"`
	Used       float64 `json:"used"`
	DailyPnl   float64 `json:"dailyPnL"`
	MonthlyPnl float64 `json:"monthlyPnL"`
}

// GetBalance обрабатывает GET /api/balance
func (h *MarketHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	if !h.router.AllInitialized() {
		respondNotInitialized(w, h.router)
		return
	}

	ctx := r.Context()
	balances := make(map[string]VenueBalance, len(h.router.Venues()))

	for _, venue := range h.router.Venues() {
		ex, err := h.router.Get(venue)
		if err != nil {
			continue
		}

		balance, err := ex.GetBalance(ctx)
		if err != nil {
			log.Printf("[api] balance %s failed: %v", venue, err)
			continue
		}

		balances[string(venue)] = VenueBalance{
			USDT: balance.Total,
			Free: balance.Free,
			Used: balance.Used,
		}
	}

	if len(balances) == 0 {
		respondWithError(w, http.StatusInternalServerError, "failed to fetch balances")
		return
	}

	respondWithJSON(w, http.StatusOK, balances)
}
