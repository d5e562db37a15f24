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
	mexcBaseURL = "https://contract.mexc.com"

	// Параметры ордера MEXC contract API
	mexcSideOpenLong    = 1
	mexcSideOpenShort   = 3
	mexcSideCloseLong   = 4 // закрытие long = продажа
	mexcSideCloseShort  = 2 // закрытие short = покупка
	mexcOrderTypeMarket = 5
	mexcOpenTypeCross   = 2
)

// Mexc реализует интерфейс Exchange для MEXC Futures
type Mexc struct {
	apiKey    string
	secretKey string

	httpClient *http.Client
	limiter    *ratelimit.RateLimiter

	// credMu защищает ключи: Connect может вызываться из
	// фонового bootstrap'а параллельно с запросами
	credMu sync.RWMutex

	connected bool
}

// NewMexc создает новый экземпляр Mexc
// Использует глобальный HTTP клиент с connection pooling
func NewMexc() *Mexc {
	return &Mexc{
		httpClient: GetGlobalHTTPClient().GetClient(),
		limiter:    ratelimit.NewRateLimiter(50, 100), // 50 req/sec = 20ms между запросами
	}
}

// mexcContract конвертирует канонический символ в контрактную форму MEXC.
// "XRP/USDT" -> "XRP_USDT"
func mexcContract(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "_")
}

// mexcCanonical конвертирует контрактную форму MEXC в каноническую.
// "XRP_USDT" -> "XRP/USDT"
func mexcCanonical(contract string) string {
	return strings.ReplaceAll(contract, "_", "/")
}

// sign создает подпись для запроса к MEXC contract API.
// Сообщение: timestamp + канонизированная query строка
// (пары k=v, отсортированные по ключу, соединённые "&").
func (m *Mexc) sign(timestamp string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	m.credMu.RLock()
	secret := m.secretKey
	m.credMu.RUnlock()

	return hmacSHA256Hex(secret, timestamp+strings.Join(pairs, "&"))
}

// signPayload подписывает запрос с JSON телом: подпись покрывает
// timestamp и тело как есть
func (m *Mexc) signPayload(timestamp, body string) string {
	m.credMu.RLock()
	secret := m.secretKey
	m.credMu.RUnlock()

	return hmacSHA256Hex(secret, timestamp+body)
}

// doRequest выполняет HTTP запрос к MEXC API
func (m *Mexc) doRequest(ctx context.Context, method, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody string
	var reqURL string

	if method == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		encoded := query.Encode()
		if encoded != "" {
			reqURL = mexcBaseURL + endpoint + "?" + encoded
		} else {
			reqURL = mexcBaseURL + endpoint
		}
	} else {
		reqURL = mexcBaseURL + endpoint
		if len(params) > 0 {
			jsonBytes, _ := jsonFast.Marshal(params)
			reqBody = string(jsonBytes)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if signed {
		m.credMu.RLock()
		apiKey := m.apiKey
		m.credMu.RUnlock()

		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		signature := m.sign(timestamp, params)

		req.Header.Set("ApiKey", apiKey)
		req.Header.Set("Signature", signature)
		req.Header.Set("Request-Time", timestamp)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Venue: VenueMexc, Message: err.Error(), Original: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Проверяем envelope ответа
	var baseResp struct {
		Success bool   `json:"success"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := jsonFast.Unmarshal(body, &baseResp); err != nil {
		return nil, &ExchangeError{Venue: VenueMexc, Message: "malformed response", Original: err}
	}

	if !baseResp.Success {
		return nil, &ExchangeError{
			Venue:   VenueMexc,
			Code:    strconv.Itoa(baseResp.Code),
			Message: baseResp.Message,
			Auth:    resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden,
		}
	}

	return body, nil
}

// Connect сохраняет учётные данные и проверяет подключение запросом баланса
func (m *Mexc) Connect(ctx context.Context, apiKey, secret, passphrase string) error {
	m.credMu.Lock()
	m.apiKey = apiKey
	m.secretKey = secret
	m.credMu.Unlock()

	if _, err := m.GetBalance(ctx); err != nil {
		return fmt.Errorf("failed to connect to MEXC (key %s): %w", utils.MaskSecret(apiKey), err)
	}

	m.connected = true
	return nil
}

func (m *Mexc) GetName() Venue {
	return VenueMexc
}

func (m *Mexc) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	params := map[string]string{
		"symbol": mexcContract(symbol),
	}

	body, err := m.doRequest(ctx, http.MethodGet, "/api/v1/contract/ticker", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			Symbol    string  `json:"symbol"`
			LastPrice float64 `json:"lastPrice"`
			Timestamp int64   `json:"timestamp"`
		} `json:"data"`
	}

	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return &Ticker{
		Symbol:    mexcCanonical(resp.Data.Symbol),
		Last:      resp.Data.LastPrice,
		Timestamp: time.UnixMilli(resp.Data.Timestamp),
	}, nil
}

func (m *Mexc) GetOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	params := map[string]string{
		"limit": strconv.Itoa(depth),
	}

	body, err := m.doRequest(ctx, http.MethodGet, "/api/v1/contract/depth/"+mexcContract(symbol), params, false)
	if err != nil {
		return nil, err
	}

	// MEXC отдаёт уровни числами: [price, volume, orderCount]
	var resp struct {
		Data struct {
			Asks      [][]float64 `json:"asks"`
			Bids      [][]float64 `json:"bids"`
			Timestamp int64       `json:"timestamp"`
		} `json:"data"`
	}

	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	orderBook := &OrderBook{
		Symbol:    symbol,
		Asks:      make([]PriceLevel, 0, len(resp.Data.Asks)),
		Bids:      make([]PriceLevel, 0, len(resp.Data.Bids)),
		Timestamp: time.UnixMilli(resp.Data.Timestamp),
	}

	for _, ask := range resp.Data.Asks {
		if len(ask) < 2 {
			continue
		}
		orderBook.Asks = append(orderBook.Asks, PriceLevel{Price: ask[0], Volume: ask[1]})
	}
	for _, bid := range resp.Data.Bids {
		if len(bid) < 2 {
			continue
		}
		orderBook.Bids = append(orderBook.Bids, PriceLevel{Price: bid[0], Volume: bid[1]})
	}

	// Сортируем: asks по возрастанию, bids по убыванию
	sort.Slice(orderBook.Asks, func(i, j int) bool {
		return orderBook.Asks[i].Price < orderBook.Asks[j].Price
	})
	sort.Slice(orderBook.Bids, func(i, j int) bool {
		return orderBook.Bids[i].Price > orderBook.Bids[j].Price
	})

	return orderBook, nil
}

func (m *Mexc) GetBalance(ctx context.Context) (*Balance, error) {
	body, err := m.doRequest(ctx, http.MethodGet, "/api/v1/private/account/asset/USDT", map[string]string{}, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			Currency         string  `json:"currency"`
			AvailableBalance float64 `json:"availableBalance"`
			FrozenBalance    float64 `json:"frozenBalance"`
			Equity           float64 `json:"equity"`
		} `json:"data"`
	}

	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return &Balance{
		Total: resp.Data.Equity,
		Free:  resp.Data.AvailableBalance,
		Used:  resp.Data.FrozenBalance,
	}, nil
}

func (m *Mexc) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	params := map[string]string{
		"symbol": mexcContract(symbol),
	}

	body, err := m.doRequest(ctx, http.MethodGet, "/api/v1/private/position/open_positions", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Symbol        string  `json:"symbol"`
			PositionType  int     `json:"positionType"` // 1 = long, 2 = short
			HoldVol       float64 `json:"holdVol"`
			Realised      float64 `json:"realised"`
			Im            float64 `json:"im"`
			Profit        float64 `json:"profitRatio"`
			UnrealisedPnl float64 `json:"unrealisedPnl"`
		} `json:"data"`
	}

	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	for _, p := range resp.Data {
		if p.HoldVol == 0 {
			continue
		}

		side := SideLong
		if p.PositionType == 2 {
			side = SideShort
		}

		return &Position{
			Symbol:        mexcCanonical(p.Symbol),
			Side:          side,
			Contracts:     p.HoldVol,
			UnrealizedPnl: p.UnrealisedPnl,
		}, nil
	}

	// Нет открытой позиции - это не ошибка
	return nil, nil
}

// SetMarginMode на MEXC не имеет отдельного эндпоинта:
// режим маржи задаётся параметром openType при размещении ордера.
// Адаптер всегда отправляет openType=2 (cross), поэтому здесь
// принимается только cross.
func (m *Mexc) SetMarginMode(ctx context.Context, symbol, mode string) error {
	if mode != MarginModeCross {
		return &ExchangeError{
			Venue:   VenueMexc,
			Message: fmt.Sprintf("margin mode %q is not supported, only cross", mode),
		}
	}
	return nil
}

func (m *Mexc) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	// Плечо также передаётся в каждом ордере; отдельный вызов
	// не требуется для текущей конфигурации 1x.
	if leverage < 1 {
		return &ExchangeError{
			Venue:   VenueMexc,
			Message: fmt.Sprintf("invalid leverage %d", leverage),
		}
	}
	return nil
}

func (m *Mexc) PlaceMarketOrder(ctx context.Context, symbol, side string, notional float64) (*Order, error) {
	// Объём в контрактах вычисляется от последней цены
	ticker, err := m.GetTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !ticker.OK() {
		return nil, &ExchangeError{Venue: VenueMexc, Message: "no valid last price for " + symbol}
	}

	vol := notional / ticker.Last

	mexcSide := mexcSideOpenLong
	if side == SideSell || side == SideShort {
		mexcSide = mexcSideOpenShort
	}

	params := map[string]string{
		"symbol":   mexcContract(symbol),
		"vol":      strconv.FormatFloat(vol, 'f', -1, 64),
		"side":     strconv.Itoa(mexcSide),
		"type":     strconv.Itoa(mexcOrderTypeMarket),
		"openType": strconv.Itoa(mexcOpenTypeCross),
		"leverage": strconv.Itoa(DefaultLeverage),
	}

	start := time.Now()
	body, err := m.doRequest(ctx, http.MethodPost, "/api/v1/private/order/submit", params, true)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}

	// data содержит id ордера (число или строка в зависимости от версии)
	var resp struct {
		Data jsonNumber `json:"data"`
	}
	if err := jsonFast.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return &Order{
		ID:        resp.Data.String(),
		Symbol:    symbol,
		Side:      side,
		Notional:  notional,
		LatencyMs: latency,
		Raw:       string(body),
		CreatedAt: time.Now(),
	}, nil
}

func (m *Mexc) CancelOrder(ctx context.Context, orderID, symbol string) error {
	// MEXC принимает список идентификаторов
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, _ := jsonFast.Marshal([]string{orderID})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		mexcBaseURL+"/api/v1/private/order/cancel", strings.NewReader(string(payload)))
	if err != nil {
		return err
	}

	m.credMu.RLock()
	apiKey := m.apiKey
	m.credMu.RUnlock()

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ApiKey", apiKey)
	req.Header.Set("Signature", m.signPayload(timestamp, string(payload)))
	req.Header.Set("Request-Time", timestamp)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return &ExchangeError{Venue: VenueMexc, Message: err.Error(), Original: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var baseResp struct {
		Success bool   `json:"success"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := jsonFast.Unmarshal(body, &baseResp); err != nil {
		return err
	}
	if !baseResp.Success {
		return &ExchangeError{
			Venue:   VenueMexc,
			Code:    strconv.Itoa(baseResp.Code),
			Message: baseResp.Message,
		}
	}

	return nil
}

func (m *Mexc) Close() error {
	m.connected = false
	return nil
}
