package handlers

import (
	"net/http"

	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
	"github.com/joonhyoung1/crypto-trading-bot/pkg/utils"
)

// StatusHandler отдаёт состояние инициализации бирж и серверное время
type StatusHandler struct {
	router *exchange.Router
}

func NewStatusHandler(router *exchange.Router) *StatusHandler {
	return &StatusHandler{router: router}
}

// StatusResponse - ответ GET /api/status
type StatusResponse struct {
	Initialized bool                   `json:"initialized"`
	Status      string                 `json:"status"`
	Details     []exchange.VenueStatus `json:"details"`
}

// GetStatus обрабатывает GET /api/status
//
// Возвращает готовность каждой зарегистрированной биржи. Сам запрос
// успешен всегда: частично инициализированное состояние - это данные,
// а не ошибка.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	initialized := h.router.AllInitialized()

	status := "initializing"
	if initialized {
		status = "ok"
	}

	respondWithJSON(w, http.StatusOK, StatusResponse{
		Initialized: initialized,
		Status:      status,
		Details:     h.router.Statuses(),
	})
}

// CurrentTimeResponse - ответ GET /api/current_time
type CurrentTimeResponse struct {
	TimestampMs   int64  `json:"timestamp_ms"`
	Timezone      string `json:"timezone"`
	FormattedTime string `json:"formatted_time"`
}

// GetCurrentTime обрабатывает GET /api/current_time.
// Всё отображение времени в системе идёт в KST.
func (h *StatusHandler) GetCurrentTime(w http.ResponseWriter, r *http.Request) {
	now := utils.NowKST()

	respondWithJSON(w, http.StatusOK, CurrentTimeResponse{
		TimestampMs:   utils.UnixMillis(now),
		Timezone:      "Asia/Seoul",
		FormattedTime: utils.FormatKST(now),
	})
}

// Health обрабатывает GET /health - liveness probe без зависимостей
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
