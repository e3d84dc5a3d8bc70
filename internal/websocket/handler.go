package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	gw "github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type Conn = gw.Conn

const writeWait = 10 * time.Second

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type CountReader interface {
	Current(ctx context.Context) (decimal.Decimal, error)
}

type Handler struct {
	hub    *Hub
	counts CountReader
	logger *slog.Logger
}

func NewHandler(hub *Hub, counts CountReader, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, counts: counts, logger: logger}
}

// ServeWS upgrades the request, sends the current total and then streams
// every later update until the client goes away.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	total, err := h.counts.Current(r.Context())
	if err != nil {
		h.logger.Error("read member count", "err", err)
		http.Error(w, "member count unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", "err", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 16),
	}
	if b, err := json.Marshal(CountUpdate{Total: total, Increment: decimal.Zero}); err == nil {
		client.send <- b
	}
	if !h.hub.join(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(gw.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(gw.CloseMessage, gw.FormatCloseMessage(gw.CloseNormalClosure, ""))
}
