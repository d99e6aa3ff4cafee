package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/MRamiBalles/tokenprofile/internal/infra/storage"
	"github.com/MRamiBalles/tokenprofile/internal/platform/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 4096
	// Time allowed to resolve one request.
	requestTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Request is an incoming command from a client.
type Request struct {
	Type     string `json:"type"`                // "display"
	ID       string `json:"id,omitempty"`        // Echoed in the reply
	EntityID string `json:"entity_id"`           // Subject to display
	ViewerID string `json:"viewer_id,omitempty"` // Observing entity, optional
}

// Client is an active WebSocket connection bound to a user.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	userID  string
	limiter *rate.Limiter
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	limit := rate.Inf
	burst := 1
	if n := hub.cfg.MaxMessagesPerSecond; n > 0 {
		limit = rate.Limit(n)
		burst = n
	}
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, hub.cfg.ClientSendBuffer),
		userID:  userID,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// ServeWS upgrades the request and attaches the connection to the hub. The
// user is named by the "user" query parameter or the X-User-ID header.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = r.Header.Get(UserHeader)
	}
	if _, err := h.service.User(r.Context(), userID); err != nil {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket connection", logger.Error(err))
		h.metrics.RecordWSError()
		return
	}

	client := newClient(h, conn, userID)
	if !h.join(client) {
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}

// ReadPump pumps requests from the websocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket read failed", logger.Error(err))
				c.hub.metrics.RecordWSError()
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		if !c.limiter.Allow() {
			c.hub.logger.Warn("Rate limit exceeded for client", logger.String("user_id", c.userID))
			c.hub.reply(c, Message{Type: MsgTypeError, Error: "rate limit exceeded"})
			continue
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.hub.reply(c, Message{Type: MsgTypeError, Error: "invalid request"})
			continue
		}
		c.handleRequest(req)
	}
}

func (c *Client) handleRequest(req Request) {
	switch req.Type {
	case MsgTypeDisplay:
		c.handleDisplay(req)
	default:
		c.hub.reply(c, Message{Type: MsgTypeError, ID: req.ID, Error: "unknown request type " + req.Type})
	}
}

func (c *Client) handleDisplay(req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	u, err := c.hub.service.User(ctx, c.userID)
	if err != nil {
		c.hub.reply(c, Message{Type: MsgTypeError, ID: req.ID, Error: "unknown user"})
		return
	}
	res, ok, err := c.hub.service.Display(ctx, u, req.EntityID, req.ViewerID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.hub.reply(c, Message{Type: MsgTypeError, ID: req.ID, Error: "entity not found"})
	case err != nil:
		c.hub.logger.Error("Display request failed", logger.String("entity_id", req.EntityID), logger.Error(err))
		c.hub.reply(c, Message{Type: MsgTypeError, ID: req.ID, Error: "display failed"})
	case !ok:
		c.hub.reply(c, Message{Type: MsgTypeDisplay, ID: req.ID})
	default:
		c.hub.reply(c, Message{Type: MsgTypeDisplay, ID: req.ID, Payload: res})
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
