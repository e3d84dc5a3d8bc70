package websocket

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

type CountUpdate struct {
	Total     decimal.Decimal `json:"total"`
	Increment decimal.Decimal `json:"increment"`
}

const broadcastBuffer = 64

type Client struct {
	hub  *Hub
	conn *Conn
	send chan []byte
}

// Hub fans member count updates out to every connected visitor.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan CountUpdate
	done       chan struct{}
	clients    map[*Client]bool
	last       decimal.Decimal
	sent       bool
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan CountUpdate, broadcastBuffer),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case upd := <-h.broadcast:
			// Increments can be reported out of order; the total only grows.
			if h.sent && upd.Total.LessThan(h.last) {
				continue
			}
			h.last, h.sent = upd.Total, true
			msg, err := json.Marshal(upd)
			if err != nil {
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
			}
			h.clients = nil
			return
		}
	}
}

// Broadcast queues an update in call order. It blocks only while the queue
// is full and returns once the hub has stopped.
func (h *Hub) Broadcast(u CountUpdate) {
	select {
	case h.broadcast <- u:
	case <-h.done:
	}
}

func (h *Hub) BroadcastCount(increment, total decimal.Decimal) {
	h.Broadcast(CountUpdate{Total: total, Increment: increment})
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
