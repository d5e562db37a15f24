package exchange

import (
	"context"
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
	bitgetBaseURL     = "https://api.bitget.com"
	bitgetProductType = "usdt-futures"
	bitgetMarginCoin  = "USDT"
	bitgetOKCode      = "00000"
)

// Bitget реализует интерфейс Exchange для Bitget Futures (v2 mix API)
type Bitget struct {
	apiKey     string
	secretKey  string
	passphrase string

	httpClient *http.Client
	limiter    *ratelimit.RateLimiter

	credMu sync.RWMutex

	connected bool
}

// NewBitget создает новый экземпляр Bitget
func NewBitget() *Bitget {
	return &Bitget{
		httpClient: GetGlobalHTTPClient().GetClient(),
		limiter:    ratelimit.NewRateLimiter(50, 100),
	}
}

// bitgetSymbol конвертирует канонический символ в форму запроса Bitget.
// "XRP/USDT" -> "XRPUSDT"
func bitgetSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// bitgetNative возвращает нативную идентичность фьючерса Bitget.
// "XRP/USDT" -> "XRP/USDT:USDT"
func bitgetNative(symbol string) string {
	return symbol + ":USDT"
}

// bitgetCanonical конвертирует форму запроса Bitget в каноническую.
// "XRPUSDT" -> "XRP/USDT"
func bitgetCanonical(requestSymbol string) string {
	base := strings.TrimSuffix(requestSymbol, "USDT")
	if base == requestSymbol || base == "" {
		return requestSymbol
	}
	return base + "/USDT"
}

// sign создает подпись запроса к Bitget API.
// Сообщение: timestamp + METHOD + requestPath(+"?"+query) + body,
// timestamp в миллисекундах, подпись base64(HMAC-SHA256).
func (bg *Bitget) sign(timestamp, method, requestPath, rawQuery, body string) string {
	bg.credMu.RLock()
	secret := bg.secretKey
	bg.credMu.RUnlock()

	message := timestamp + method + requestPath
	if rawQuery != "" {
		message += "?" + rawQuery
	}
	message += body

	return hmacSHA256Base64(secret, message)
}

// doRequest выполняет HTTP запрос к Bitget API
func (bg *Bitget) doRequest(ctx context.Context, method, endpoint string, query url.Values, jsonBody string, signed bool) ([]byte, error) {
	if err := bg.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	rawQuery := ""
	if len(query) > 0 {
		rawQuery = query.Encode()
	}

	reqURL := bitgetBaseURL + endpoint
	if rawQuery != "" {
		reqURL += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if signed {
		bg.credMu.RLock()
		apiKey := bg.apiKey
		passphrase := bg.passphrase
		bg.credMu.RUnlock()

		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		signature := bg.sign(timestamp, method, endpoint, rawQuery, jsonBody)

		req.Header.Set("ACCESS-KEY", apiKey)
		req.Header.Set("ACCESS-SIGN", signature)
		req.Header.Set("ACCESS-TIMESTAMP", timestamp)
		req.Header.Set("ACCESS-PASSPHRASE", passphrase)
	}

	resp, err := bg.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Venue: VenueBitget, Message: err.Error(), Original: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var baseResp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := jsonFast.Unmarshal(body, &baseResp); err != nil {
		return nil, &ExchangeError{Venue: VenueBitget, Message: "malformed response", Original: err}
	}

	if baseResp.Code != bitgetOKCode {
		return nil, &ExchangeError{
			Venue:   VenueBitget,
			Code:    baseResp.Code,
			Message: baseResp.Msg,
			Auth:    resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden,
		}
	}

	return body, nil
}

// Connect сохраняет учётные данные (включая passphrase) и проверяет
// подключение запросом баланса
func (bg *Bitget) Connect(ctx context.Context, apiKey, secret, passphrase string) error {
	bg.credMu.Lock()
	bg.apiKey = apiKey
	bg.secretKey = secret
	bg.passphrase = passphrase
	bg.credMu.Unlock()

	if _, err := bg.GetBalance(ctx); err != nil {
		return fmt.Errorf("failed to connect to Bitget (key %s): %w", utils.MaskSecret(apiKey), err)
	}

	bg.connected = true
	return nil
}

func (bg *Bitget) GetName() Venue {
	return VenueBitget
}

func (bg *Bitget) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	query := url.Values{}
	query.Set("symbol", bitgetSymbol(symbol))
	query.Set("productType", bitgetProductType)

	body, err := bg.doRequest(ctx, http.MethodGet, "/api/v2/mix/market/ticker", query, "", false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Symbol string `json:"symbol"`
			LastPr string `json:"lastPr"`
			Ts     string `json:"ts"`
		} `json:"data"`
	}

	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, &ExchangeError{Venue: VenueBitget, Message: "ticker not found for " + symbol}
	}

	last, _ := strconv.ParseFloat(resp.Data[0].LastPr, 64)
	ts, _ := strconv.ParseInt(resp.Data[0].Ts, 10, 64)

	return &Ticker{
		Symbol:    bitgetCanonical(resp.Data[0].Symbol),
		Last:      last,
		Timestamp: time.UnixMilli(ts),
	}, nil
}

func (bg *Bitget) GetOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	query := url.Values{}
	query.Set("symbol", bitgetSymbol(symbol))
	query.Set("productType", bitgetProductType)
	query.Set("limit", strconv.Itoa(depth))

	body, err := bg.doRequest(ctx, http.MethodGet, "/api/v2/mix/market/merge-depth", query, "", false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			Asks [][]string `json:"asks"`
			Bids [][]string `json:"bids"`
			Ts   string     `json:"ts"`
		} `json:"data"`
	}

	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	ts, _ := strconv.ParseInt(resp.Data.Ts, 10, 64)

	orderBook := &OrderBook{
		Symbol:    symbol,
		Asks:      make([]PriceLevel, 0, len(resp.Data.Asks)),
		Bids:      make([]PriceLevel, 0, len(resp.Data.Bids)),
		Timestamp: time.UnixMilli(ts),
	}

	for _, ask := range resp.Data.Asks {
		if len(ask) < 2 {
			continue
		}
		price, _ := strconv.ParseFloat(ask[0], 64)
		volume, _ := strconv.ParseFloat(ask[1], 64)
		orderBook.Asks = append(orderBook.Asks, PriceLevel{Price: price, Volume: volume})
	}
	for _, bid := range resp.Data.Bids {
		if len(bid) < 2 {
			continue
		}
		price, _ := strconv.ParseFloat(bid[0], 64)
		volume, _ := strconv.ParseFloat(bid[1], 64)
		orderBook.Bids = append(orderBook.Bids, PriceLevel{Price: price, Volume: volume})
	}

	sort.Slice(orderBook.Asks, func(i, j int) bool {
		return orderBook.Asks[i].Price < orderBook.Asks[j].Price
	})
	sort.Slice(orderBook.Bids, func(i, j int) bool {
		return orderBook.Bids[i].Price > orderBook.Bids[j].Price
	})

	return orderBook, nil
}

func (bg *Bitget) GetBalance(ctx context.Context) (*Balance, error) {
	query := url.Values{}
	query.Set("productType", bitgetProductType)

	body, err := bg.doRequest(ctx, http.MethodGet, "/api/v2/mix/account/accounts", query, "", true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			MarginCoin    string `json:"marginCoin"`
			Available     string `json:"available"`
			Frozen        string `json:"frozen"`
			AccountEquity string `json:"accountEquity"`
		} `json:"data"`
	}

	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	for _, acc := range resp.Data {
		if acc.MarginCoin != bitgetMarginCoin {
			continue
		}

		total, _ := strconv.ParseFloat(acc.AccountEquity, 64)
		free, _ := strconv.ParseFloat(acc.Available, 64)
		frozen, _ := strconv.ParseFloat(acc.Frozen, 64)

		return &Balance{Total: total, Free: free, Used: frozen}, nil
	}

	return &Balance{}, nil
}

func (bg *Bitget) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	query := url.Values{}
	query.Set("symbol", bitgetSymbol(symbol))
	query.Set("marginCoin", bitgetMarginCoin)
	query.Set("productType", bitgetProductType)

	body, err := bg.doRequest(ctx, http.MethodGet, "/api/v2/mix/position/single-position", query, "", true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Symbol       string `json:"symbol"`
			HoldSide     string `json:"holdSide"` // "long" / "short"
			Total        string `json:"total"`
			UnrealizedPL string `json:"unrealizedPL"`
		} `json:"data"`
	}

	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	for _, p := range resp.Data {
		contracts, _ := strconv.ParseFloat(p.Total, 64)
		if contracts == 0 {
			continue
		}

		side := SideLong
		if p.HoldSide == "short" {
			side = SideShort
		}

		unrealized, _ := strconv.ParseFloat(p.UnrealizedPL, 64)

		return &Position{
			Symbol:        bitgetCanonical(p.Symbol),
			Side:          side,
			Contracts:     contracts,
			UnrealizedPnl: unrealized,
		}, nil
	}

	return nil, nil
}

func (bg *Bitget) SetMarginMode(ctx context.Context, symbol, mode string) error {
	if mode != MarginModeCross {
		return &ExchangeError{
			Venue:   VenueBitget,
			Message: fmt.Sprintf("margin mode %q is not supported, only cross", mode),
		}
	}

	reqBody := map[string]string{
		"symbol":      bitgetSymbol(symbol),
		"productType": bitgetProductType,
		"marginCoin":  bitgetMarginCoin,
		"marginMode":  "crossed",
	}
	payload, _ := jsonFast.Marshal(reqBody)

	_, err := bg.doRequest(ctx, http.MethodPost, "/api/v2/mix/account/set-margin-mode", nil, string(payload), true)
	return err
}

func (bg *Bitget) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 {
		return &ExchangeError{
			Venue:   VenueBitget,
			Message: fmt.Sprintf("invalid leverage %d", leverage),
		}
	}

	reqBody := map[string]string{
		"symbol":      bitgetSymbol(symbol),
		"productType": bitgetProductType,
		"marginCoin":  bitgetMarginCoin,
		"leverage":    strconv.Itoa(leverage),
	}
	payload, _ := jsonFast.Marshal(reqBody)

	_, err := bg.doRequest(ctx, http.MethodPost, "/api/v2/mix/account/set-leverage", nil, string(payload), true)
	return err
}

func (bg *Bitget) PlaceMarketOrder(ctx context.Context, symbol, side string, notional float64) (*Order, error) {
	ticker, err := bg.GetTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !ticker.OK() {
		return nil, &ExchangeError{Venue: VenueBitget, Message: "no valid last price for " + symbol}
	}

	size := notional / ticker.Last

	bitgetSide := "buy"
	if side == SideSell || side == SideShort {
		bitgetSide = "sell"
	}

	reqBody := map[string]string{
		"symbol":      bitgetSymbol(symbol),
		"productType": bitgetProductType,
		"marginMode":  "crossed",
		"marginCoin":  bitgetMarginCoin,
		"size":        strconv.FormatFloat(size, 'f', -1, 64),
		"side":        bitgetSide,
		"orderType":   "market",
	}
	payload, _ := jsonFast.Marshal(reqBody)

	start := time.Now()
	body, err := bg.doRequest(ctx, http.MethodPost, "/api/v2/mix/order/place-order", nil, string(payload), true)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			OrderID string `json:"orderId"`
		} `json:"data"`
	}
	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return &Order{
		ID:        resp.Data.OrderID,
		Symbol:    symbol,
		Side:      side,
		Notional:  notional,
		LatencyMs: latency,
		Raw:       string(body),
		CreatedAt: time.Now(),
	}, nil
}

func (bg *Bitget) CancelOrder(ctx context.Context, orderID, symbol string) error {
	reqBody := map[string]string{
		"symbol":      bitgetSymbol(symbol),
		"productType": bitgetProductType,
		"orderId":     orderID,
	}
	payload, _ := jsonFast.Marshal(reqBody)

	_, err := bg.doRequest(ctx, http.MethodPost, "/api/v2/mix/order/cancel-order", nil, string(payload), true)
	return err
}

func (bg *Bitget) Close() error {
	bg.connected = false
	return nil
}
