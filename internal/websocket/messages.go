package websocket

import (
	"time"

	"github.com/joonhyoung1/crypto-trading-bot/internal/bot"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

const (
	// MessageTypeGapUpdate - свежий замер гэпа по паре бирж.
	// Отправляется на каждом тике мониторинга для каждой
	// (символ, пара) с пригодными котировками.
	MessageTypeGapUpdate MessageType = "gapUpdate"

	// MessageTypeMonitorStatus - смена состояния мониторинга
	// (running / stopped)
	MessageTypeMonitorStatus MessageType = "monitorStatus"
)

// BaseMessage - общая шапка всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// GapUpdateMessage - сообщение с замером гэпа
type GapUpdateMessage struct {
	BaseMessage
	Data bot.GapSample `json:"data"`
}

// MonitorStatusMessage - сообщение о смене состояния мониторинга
type MonitorStatusMessage struct {
	BaseMessage
	Status string `json:"status"`
}

// NewGapUpdateMessage создает сообщение с замером гэпа
func NewGapUpdateMessage(sample bot.GapSample) *GapUpdateMessage {
	return &GapUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeGapUpdate,
			Timestamp: time.Now(),
		},
		Data: sample,
	}
}

// NewMonitorStatusMessage создает сообщение о состоянии мониторинга
func NewMonitorStatusMessage(status string) *MonitorStatusMessage {
	return &MonitorStatusMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeMonitorStatus,
			Timestamp: time.Now(),
		},
		Status: status,
	}
}
