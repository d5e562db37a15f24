// Package websocket транслирует замеры гэпов подключённым клиентам
// в реальном времени. Поток данных односторонний: сервер -> клиент.
package websocket

import (
	"bytes"
	"log"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/joonhyoung1/crypto-trading-bot/internal/bot"
)

var jsonWS = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonBufferPool переиспользует буферы сериализации: Broadcast
// вызывается на каждом тике мониторинга
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями.
//
// Центральная точка broadcast: мониторинг отдаёт сэмплы сюда через
// BroadcastGap, hub рассылает их всем подключённым клиентам. Клиент,
// не успевающий читать, отключается - медленный потребитель не имеет
// права тормозить рассылку.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub создает новый Hub. Цикл запускается отдельно: go hub.Run()
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run - главный цикл Hub: регистрация, отключение и broadcast.
// Рассылка идёт по копии списка клиентов без удержания лока,
// чтобы не блокировать register/unregister.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[ws] client connected, total: %d", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("[ws] client disconnected, total: %d", h.ClientCount())

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
				log.Printf("[ws] removed %d slow clients, total: %d", len(toRemove), h.ClientCount())
			}
		}
	}
}

// Broadcast сериализует сообщение и отправляет всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := jsonWS.NewEncoder(buf).Encode(message); err != nil {
		log.Printf("[ws] broadcast encode failed: %v", err)
		jsonBufferPool.Put(buf)
		return
	}

	// Encoder добавляет завершающий перевод строки
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Буфер вернётся в пул, данные копируются
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.broadcast <- msgCopy
}

// BroadcastGap отправляет замер гэпа всем клиентам.
// Сигнатура совпадает с хуком Monitor.SetBroadcast.
func (h *Hub) BroadcastGap(sample bot.GapSample) {
	h.Broadcast(NewGapUpdateMessage(sample))
}

// BroadcastMonitorStatus отправляет смену состояния мониторинга
func (h *Hub) BroadcastMonitorStatus(status string) {
	h.Broadcast(NewMonitorStatusMessage(status))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
