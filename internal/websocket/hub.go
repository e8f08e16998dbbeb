package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"sniperctl/internal/metrics"
	"sniperctl/internal/models"
)

// Типизированные broadcast-сообщения. Локальные UI-клиенты получают
// их по websocket вместо собственного опроса демона

// SnapshotMessage - полный снапшот после каждой публикации merge-точки
type SnapshotMessage struct {
	Type string                 `json:"type"`
	Data *models.MarketSnapshot `json:"data"`
}

// EventMessage - edge-событие сделки
type EventMessage struct {
	Type string       `json:"type"`
	Data models.Event `json:"data"`
}

// JobMessage - изменение состояния backtest-задачи
type JobMessage struct {
	Type string             `json:"type"`
	Data models.BacktestJob `json:"data"`
}

// Hub ведёт все активные websocket-подключения и рассылает им
// сообщения. Один hub на процесс, запускается горутиной при старте:
//
//	hub := NewHub()
//	go hub.Run()
//	hub.BroadcastSnapshot(snapshot)
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	dropped atomic.Uint64

	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run обрабатывает регистрацию клиентов и рассылку.
// Запускать в отдельной горутине
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(total))
			log.Printf("ws: client connected, total %d", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WSClients.Set(float64(total))
			log.Printf("ws: client disconnected, total %d", total)

		case message := <-h.broadcast:
			// Список копируется под коротким RLock, отправка идёт без
			// блокировки, чтобы не тормозить register/unregister
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
					// Клиент не вычитывает буфер: отключаем
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
				total := len(h.clients)
				h.mu.Unlock()
				metrics.WSClients.Set(float64(total))
				log.Printf("ws: dropped %d slow clients, total %d", len(toRemove), total)
			}
		}
	}
}

// Stop завершает цикл Run. Идемпотентно вызывать нельзя
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast сериализует и отправляет сообщение всем клиентам.
// Неблокирующий: при переполненном канале сообщение отбрасывается,
// тики опроса не должны ждать рассылку
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("ws: failed to marshal broadcast message: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
	}
}

// DroppedMessages возвращает число сообщений, отброшенных из-за
// переполнения канала рассылки
func (h *Hub) DroppedMessages() uint64 {
	return h.dropped.Load()
}

// BroadcastSnapshot рассылает свежий снапшот состояния
func (h *Hub) BroadcastSnapshot(snapshot *models.MarketSnapshot) {
	h.Broadcast(&SnapshotMessage{Type: "snapshotUpdate", Data: snapshot})
}

// BroadcastEvent рассылает edge-событие сделки
func (h *Hub) BroadcastEvent(event models.Event) {
	h.Broadcast(&EventMessage{Type: "tradeEvent", Data: event})
}

// BroadcastJob рассылает состояние backtest-задачи
func (h *Hub) BroadcastJob(job models.BacktestJob) {
	h.Broadcast(&JobMessage{Type: "jobUpdate", Data: job})
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
