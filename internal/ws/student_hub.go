package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"

	"github.com/zaqqye/simlab_backend/internal/services"
)

type StudentMessage struct {
	Type        string                      `json:"type"`
	Interaction *services.InteractionUpdate `json:"interaction,omitempty"`
	Message     string                      `json:"message,omitempty"`
}

type studentNotification struct {
	principalID string
	payload     []byte
}

// StudentHub keeps one live connection per student. A second connection
// replaces the first.
type StudentHub struct {
	register   chan *studentClient
	unregister chan *studentClient
	notify     chan studentNotification
	done       chan struct{}
	clients    map[string]*studentClient
}

func NewStudentHub() *StudentHub {
	return &StudentHub{
		register:   make(chan *studentClient),
		unregister: make(chan *studentClient),
		notify:     make(chan studentNotification, 256),
		done:       make(chan struct{}),
		clients:    make(map[string]*studentClient),
	}
}

func (h *StudentHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, client := range h.clients {
				client.conn.Close()
			}
			return
		case client := <-h.register:
			if existing, ok := h.clients[client.principalID]; ok {
				existing.conn.Close()
			}
			h.clients[client.principalID] = client
		case client := <-h.unregister:
			if stored, ok := h.clients[client.principalID]; ok && stored == client {
				delete(h.clients, client.principalID)
			}
		case msg := <-h.notify:
			if client, ok := h.clients[msg.principalID]; ok {
				select {
				case client.send <- msg.payload:
				default:
					client.conn.Close()
					delete(h.clients, msg.principalID)
				}
			}
		}
	}
}

func (h *StudentHub) Notify(principalID string, message StudentMessage) {
	if h == nil {
		return
	}
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case h.notify <- studentNotification{principalID: principalID, payload: data}:
	default:
		log.Printf("ws: student queue full, dropped %s for %s", message.Type, principalID)
	}
}

type studentClient struct {
	peer
	hub         *StudentHub
	principalID string
}

func newStudentClient(hub *StudentHub, conn *websocket.Conn, principalID string) *studentClient {
	return &studentClient{
		peer:        newPeer(conn, 64),
		hub:         hub,
		principalID: principalID,
	}
}

func (h *StudentHub) join(client *studentClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *StudentHub) leave(client *studentClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
