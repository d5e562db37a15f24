package handlers

import (
	"io"
	"net/http"

	"github.com/joonhyoung1/crypto-trading-bot/internal/bot"
	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
)

// TradingHandler управляет циклом мониторинга гэпов и закрытием позиций
type TradingHandler struct {
	router   *exchange.Router
	monitor  *bot.Monitor
	executor *bot.Executor
	symbols  []string

	// onStatus вызывается при успешной смене состояния мониторинга
	// (broadcast в WebSocket). Может быть nil.
	onStatus func(status string)
}

func NewTradingHandler(router *exchange.Router, monitor *bot.Monitor,
	executor *bot.Executor, symbols []string) *TradingHandler {
	return &TradingHandler{
		router:   router,
		monitor:  monitor,
		executor: executor,
		symbols:  symbols,
	}
}

// SetStatusBroadcast подключает рассылку смены состояния мониторинга
func (h *TradingHandler) SetStatusBroadcast(fn func(status string)) {
	h.onStatus = fn
}

// TradingResponse - ответ POST /api/trading/start и /api/trading/stop
type TradingResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Start обрабатывает POST /api/trading/start
//
// Запуск до готовности всех бирж отклоняется: мониторинг без
// котировок с каждой биржи не имеет смысла.
func (h *TradingHandler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.router.AllInitialized() {
		respondNotInitialized(w, h.router)
		return
	}

	if err := h.monitor.Start(); err != nil {
		if err == bot.ErrAlreadyRunning {
			respondWithJSON(w, http.StatusConflict, TradingResponse{
				Status:  "error",
				Message: "monitor is already running",
			})
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.onStatus != nil {
		h.onStatus("running")
	}

	respondWithJSON(w, http.StatusOK, TradingResponse{
		Status:  "started",
		Message: "gap monitor started",
	})
}

// Stop обрабатывает POST /api/trading/stop
func (h *TradingHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Stop(); err != nil {
		if err == bot.ErrNotRunning {
			respondWithJSON(w, http.StatusConflict, TradingResponse{
				Status:  "error",
				Message: "monitor is not running",
			})
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.onStatus != nil {
		h.onStatus("stopped")
	}

	respondWithJSON(w, http.StatusOK, TradingResponse{
		Status:  "stopped",
		Message: "gap monitor stopped",
	})
}

// CloseRequest - тело POST /api/trading/close.
// Пустой symbol закрывает позиции по всем символам белого списка.
type CloseRequest struct {
	Symbol string `json:"symbol,omitempty"`
}

// CloseResult - исход закрытия одной (символ, пара)
type CloseResult struct {
	Symbol  string `json:"symbol"`
	Pair    string `json:"pair"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Close обрабатывает POST /api/trading/close.
//
// Проходит по всем отслеживаемым парам и закрывает открытые позиции.
// Отсутствие позиции по комбинации - обычный исход, а не ошибка.
func (h *TradingHandler) Close(w http.ResponseWriter, r *http.Request) {
	if !h.router.AllInitialized() {
		respondNotInitialized(w, h.router)
		return
	}

	var req CloseRequest
	if r.Body != nil {
		// Тело опционально, мусор отклоняется
		if err := jsonAPI.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	symbols := h.symbols
	if req.Symbol != "" {
		symbols = []string{req.Symbol}
	}

	var results []CloseResult
	for _, symbol := range symbols {
		for _, pair := range bot.DefaultPairs {
			res := h.executor.ClosePositions(r.Context(), symbol, pair)
			results = append(results, CloseResult{
				Symbol:  symbol,
				Pair:    pair.String(),
				Success: res.Success,
				Message: res.Message,
			})
		}
	}

	respondWithJSON(w, http.StatusOK, results)
}

// TradingStatusResponse - ответ GET /api/trading/status
type TradingStatusResponse struct {
	Status string `json:"status"` // "running" | "stopped" | "not_initialized"
}

// Status обрабатывает GET /api/trading/status
func (h *TradingHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := "stopped"
	switch {
	case !h.router.AllInitialized():
		status = "not_initialized"
	case h.monitor.IsRunning():
		status = "running"
	}

	respondWithJSON(w, http.StatusOK, TradingStatusResponse{Status: status})
}
