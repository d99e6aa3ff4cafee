package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MRamiBalles/tokenprofile/internal/events"
	"github.com/MRamiBalles/tokenprofile/internal/platform/logger"
	"github.com/MRamiBalles/tokenprofile/internal/platform/metrics"
)

// Message types exchanged over the websocket.
const (
	MsgTypeEvent   = "event"
	MsgTypeDisplay = "display"
	MsgTypeError   = "error"
)

// Message is the envelope of every frame sent to a client.
type Message struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"` // Echoes the request id
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HubConfig sizes the hub's channels and limits clients.
type HubConfig struct {
	BroadcastBuffer      int
	ClientSendBuffer     int
	MaxMessagesPerSecond int
}

type reply struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	replies    chan reply
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex

	service *Service
	cfg     HubConfig
	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewHub initializes a new WebSocket Hub.
func NewHub(service *Service, cfg HubConfig, log *logger.Logger, m *metrics.Collector) *Hub {
	if cfg.ClientSendBuffer <= 0 {
		cfg.ClientSendBuffer = 64
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, cfg.BroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		replies:    make(chan reply),
		done:       make(chan struct{}),
		service:    service,
		cfg:        cfg,
		logger:     log,
		metrics:    m,
	}
}

// Run starts the Hub's main loop. It returns when ctx is cancelled, after
// closing every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("New WebSocket client connected", logger.String("user_id", client.userID))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("WebSocket client disconnected", logger.String("user_id", client.userID))
			}
			h.mu.Unlock()
		case r := <-h.replies:
			h.mu.Lock()
			if _, ok := h.clients[r.client]; ok {
				h.deliver(r.client, r.data)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				h.deliver(client, message)
			}
			h.mu.Unlock()
		}
	}
}

// deliver queues data for client, dropping clients that cannot keep up.
// Callers hold h.mu.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
		h.metrics.RecordWSMessage(false)
	default:
		h.logger.Warn("Dropping slow WebSocket client", logger.String("user_id", client.userID))
		h.metrics.RecordWSError()
		h.drop(client)
	}
}

// drop removes client. Callers hold h.mu.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.metrics.RecordWSConnection(-1)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastEvent serializes a change event and queues it for every client.
// It never blocks; events are dropped when the broadcast buffer is full.
func (h *Hub) BroadcastEvent(event events.Event) {
	payload, err := json.Marshal(Message{
		Type:      MsgTypeEvent,
		Timestamp: event.Timestamp.Unix(),
		Payload:   event,
	})
	if err != nil {
		h.logger.Error("Failed to serialize event for WebSocket broadcast", logger.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	default:
		h.logger.Warn("Broadcast buffer full, dropping event", logger.String("event_id", event.ID))
		h.metrics.RecordWSError()
	}
}

// Follow subscribes the hub to an event log so every appended change is
// pushed to connected clients.
func (h *Hub) Follow(eventLog *events.EventLog) {
	eventLog.Subscribe(h.BroadcastEvent)
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) reply(c *Client, msg Message) {
	msg.Timestamp = time.Now().Unix()
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to serialize WebSocket reply", logger.Error(err))
		return
	}
	select {
	case h.replies <- reply{client: c, data: data}:
	case <-h.done:
	}
}
