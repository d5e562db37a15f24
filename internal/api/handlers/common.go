package handlers

import (
	"log"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// respondWithJSON сериализует payload и пишет ответ с заданным статусом
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := jsonAPI.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[api] response encode failed: %v", err)
	}
}

// respondWithError пишет стандартный ответ об ошибке
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{
		Status:  "error",
		Message: message,
	})
}

// notReadyResponse - тело 503 с деталями инициализации по биржам
type notReadyResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Details []exchange.VenueStatus `json:"details"`
}

// respondNotInitialized - единый ответ 503 пока биржи не готовы
func respondNotInitialized(w http.ResponseWriter, router *exchange.Router) {
	respondWithJSON(w, http.StatusServiceUnavailable, notReadyResponse{
		Status:  "initializing",
		Message: "exchanges are not initialized yet",
		Details: router.Statuses(),
	})
}
