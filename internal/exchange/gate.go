package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joonhyoung1/crypto-trading-bot/pkg/ratelimit"
	"github.com/joonhyoung1/crypto-trading-bot/pkg/utils"
)

const (
	gateBaseURL    = "https://api.gateio.ws"
	gateAPIPrefix  = "/api/v4"
	gateSettlePath = "/futures/usdt"
)

// Gate реализует интерфейс Exchange для Gate.io Futures (USDT settle)
type Gate struct {
	apiKey    string
	secretKey string

	httpClient *http.Client
	limiter    *ratelimit.RateLimiter

	credMu sync.RWMutex

	connected bool
}

// NewGate создает новый экземпляр Gate
func NewGate() *Gate {
	return &Gate{
		httpClient: GetGlobalHTTPClient().GetClient(),
		limiter:    ratelimit.NewRateLimiter(50, 100),
	}
}

// gateContract конвертирует канонический символ в контрактную форму Gate.
// "XRP/USDT" -> "XRP_USDT"
func gateContract(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "_")
}

// gateCanonical конвертирует контрактную форму Gate в каноническую.
// "XRP_USDT" -> "XRP/USDT"
func gateCanonical(contract string) string {
	return strings.ReplaceAll(contract, "_", "/")
}

// sign создает подпись запроса к Gate API v4.
// Сообщение: METHOD\nPATH\nQUERY\nSHA512HEX(BODY)\nTIMESTAMP,
// timestamp в секундах, подпись HMAC-SHA512 hex.
func (g *Gate) sign(method, path, query, body, timestamp string) string {
	g.credMu.RLock()
	secret := g.secretKey
	g.credMu.RUnlock()

	message := method + "\n" + path + "\n" + query + "\n" + sha512Hex(body) + "\n" + timestamp
	return hmacSHA512Hex(secret, message)
}

// doRequest выполняет HTTP запрос к Gate API.
// Gate не использует envelope: ошибки приходят HTTP статусом >= 400
// с телом {"label": ..., "message": ...}.
func (g *Gate) doRequest(ctx context.Context, method, endpoint string, query url.Values, jsonBody string, signed bool) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	path := gateAPIPrefix + endpoint
	rawQuery := ""
	if len(query) > 0 {
		rawQuery = query.Encode()
	}

	reqURL := gateBaseURL + path
	if rawQuery != "" {
		reqURL += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if signed {
		g.credMu.RLock()
		apiKey := g.apiKey
		g.credMu.RUnlock()

		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		signature := g.sign(method, path, rawQuery, jsonBody, timestamp)

		req.Header.Set("KEY", apiKey)
		req.Header.Set("Timestamp", timestamp)
		req.Header.Set("SIGN", signature)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Venue: VenueGate, Message: err.Error(), Original: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Label   string `json:"label"`
			Message string `json:"message"`
		}
		_ = jsonFast.Unmarshal(body, &errResp)

		return nil, &ExchangeError{
			Venue:   VenueGate,
			Code:    errResp.Label,
			Message: errResp.Message,
			Auth:    resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden,
		}
	}

	return body, nil
}

// Connect сохраняет учётные данные и проверяет подключение запросом баланса
func (g *Gate) Connect(ctx context.Context, apiKey, secret, passphrase string) error {
	g.credMu.Lock()
	g.apiKey = apiKey
	g.secretKey = secret
	g.credMu.Unlock()

	if _, err := g.GetBalance(ctx); err != nil {
		return fmt.Errorf("failed to connect to Gate (key %s): %w", utils.MaskSecret(apiKey), err)
	}

	g.connected = true
	return nil
}

func (g *Gate) GetName() Venue {
	return VenueGate
}

func (g *Gate) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	query := url.Values{}
	query.Set("contract", gateContract(symbol))

	body, err := g.doRequest(ctx, http.MethodGet, gateSettlePath+"/tickers", query, "", false)
	if err != nil {
		return nil, err
	}

	var resp []struct {
		Contract string `json:"contract"`
		Last     string `json:"last"`
	}

	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	if len(resp) == 0 {
		return nil, &ExchangeError{Venue: VenueGate, Message: "ticker not found for " + symbol}
	}

	last, _ := strconv.ParseFloat(resp[0].Last, 64)

	return &Ticker{
		Symbol:    gateCanonical(resp[0].Contract),
		Last:      last,
		Timestamp: time.Now(),
	}, nil
}

func (g *Gate) GetOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	query := url.Values{}
	query.Set("contract", gateContract(symbol))
	query.Set("limit", strconv.Itoa(depth))

	body, err := g.doRequest(ctx, http.MethodGet, gateSettlePath+"/order_book", query, "", false)
	if err != nil {
		return nil, err
	}

	// Уровни Gate: {"p": "цена", "s": размер в контрактах}
	var resp struct {
		Asks []struct {
			Price string  `json:"p"`
			Size  float64 `json:"s"`
		} `json:"asks"`
		Bids []struct {
			Price string  `json:"p"`
			Size  float64 `json:"s"`
		} `json:"bids"`
		Update float64 `json:"update"`
	}

	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	orderBook := &OrderBook{
		Symbol:    symbol,
		Asks:      make([]PriceLevel, 0, len(resp.Asks)),
		Bids:      make([]PriceLevel, 0, len(resp.Bids)),
		Timestamp: time.Unix(int64(resp.Update), 0),
	}

	for _, ask := range resp.Asks {
		price, _ := strconv.ParseFloat(ask.Price, 64)
		orderBook.Asks = append(orderBook.Asks, PriceLevel{Price: price, Volume: ask.Size})
	}
	for _, bid := range resp.Bids {
		price, _ := strconv.ParseFloat(bid.Price, 64)
		orderBook.Bids = append(orderBook.Bids, PriceLevel{Price: price, Volume: bid.Size})
	}

	sort.Slice(orderBook.Asks, func(i, j int) bool {
		return orderBook.Asks[i].Price < orderBook.Asks[j].Price
	})
	sort.Slice(orderBook.Bids, func(i, j int) bool {
		return orderBook.Bids[i].Price > orderBook.Bids[j].Price
	})

	return orderBook, nil
}

func (g *Gate) GetBalance(ctx context.Context) (*Balance, error) {
	body, err := g.doRequest(ctx, http.MethodGet, gateSettlePath+"/accounts", nil, "", true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Total          string `json:"total"`
		Available      string `json:"available"`
		PositionMargin string `json:"position_margin"`
		OrderMargin    string `json:"order_margin"`
	}

	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	total, _ := strconv.ParseFloat(resp.Total, 64)
	available, _ := strconv.ParseFloat(resp.Available, 64)
	positionMargin, _ := strconv.ParseFloat(resp.PositionMargin, 64)
	orderMargin, _ := strconv.ParseFloat(resp.OrderMargin, 64)

	return &Balance{
		Total: total,
		Free:  available,
		Used:  positionMargin + orderMargin,
	}, nil
}

func (g *Gate) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	body, err := g.doRequest(ctx, http.MethodGet, gateSettlePath+"/positions/"+gateContract(symbol), nil, "", true)
	if err != nil {
		// Gate возвращает POSITION_NOT_FOUND если позиции нет
		var exErr *ExchangeError
		if errors.As(err, &exErr) && exErr.Code == "POSITION_NOT_FOUND" {
			return nil, nil
		}
		return nil, err
	}

	var resp struct {
		Contract      string `json:"contract"`
		Size          int64  `json:"size"`
		UnrealisedPnl string `json:"unrealised_pnl"`
	}

	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	if resp.Size == 0 {
		return nil, nil
	}

	// Знак size кодирует направление: положительный = long
	side := SideLong
	contracts := float64(resp.Size)
	if resp.Size < 0 {
		side = SideShort
		contracts = -contracts
	}

	unrealized, _ := strconv.ParseFloat(resp.UnrealisedPnl, 64)

	return &Position{
		Symbol:        gateCanonical(resp.Contract),
		Side:          side,
		Contracts:     contracts,
		UnrealizedPnl: unrealized,
	}, nil
}

// SetMarginMode: на Gate futures cross margin выражается плечом 0
// на уровне позиции
func (g *Gate) SetMarginMode(ctx context.Context, symbol, mode string) error {
	if mode != MarginModeCross {
		return &ExchangeError{
			Venue:   VenueGate,
			Message: fmt.Sprintf("margin mode %q is not supported, only cross", mode),
		}
	}

	query := url.Values{}
	query.Set("leverage", "0")

	_, err := g.doRequest(ctx, http.MethodPost,
		gateSettlePath+"/positions/"+gateContract(symbol)+"/leverage", query, "", true)
	return err
}

func (g *Gate) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 {
		return &ExchangeError{
			Venue:   VenueGate,
			Message: fmt.Sprintf("invalid leverage %d", leverage),
		}
	}

	// При cross margin (leverage=0) плечо задаётся через cross_leverage_limit
	query := url.Values{}
	query.Set("leverage", "0")
	query.Set("cross_leverage_limit", strconv.Itoa(leverage))

	_, err := g.doRequest(ctx, http.MethodPost,
		gateSettlePath+"/positions/"+gateContract(symbol)+"/leverage", query, "", true)
	return err
}

func (g *Gate) PlaceMarketOrder(ctx context.Context, symbol, side string, notional float64) (*Order, error) {
	ticker, err := g.GetTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !ticker.OK() {
		return nil, &ExchangeError{Venue: VenueGate, Message: "no valid last price for " + symbol}
	}

	// Размер в контрактах со знаком: положительный = long, отрицательный = short
	size := int64(notional / ticker.Last)
	if size < 1 {
		size = 1
	}
	if side == SideSell || side == SideShort {
		size = -size
	}

	// price "0" + tif "ioc" = рыночное исполнение
	orderReq := map[string]interface{}{
		"contract": gateContract(symbol),
		"size":     size,
		"price":    "0",
		"tif":      "ioc",
		"text":     fmt.Sprintf("t-arb%d", time.Now().UnixMilli()),
	}
	payload, _ := jsonFast.Marshal(orderReq)

	start := time.Now()
	body, err := g.doRequest(ctx, http.MethodPost, gateSettlePath+"/orders", nil, string(payload), true)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID jsonNumber `json:"id"`
	}
	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return &Order{
		ID:        resp.ID.String(),
		Symbol:    symbol,
		Side:      side,
		Notional:  notional,
		LatencyMs: latency,
		Raw:       string(body),
		CreatedAt: time.Now(),
	}, nil
}

func (g *Gate) CancelOrder(ctx context.Context, orderID, symbol string) error {
	_, err := g.doRequest(ctx, http.MethodDelete, gateSettlePath+"/orders/"+orderID, nil, "", true)
	return err
}

func (g *Gate) Close() error {
	g.connected = false
	return nil
}
