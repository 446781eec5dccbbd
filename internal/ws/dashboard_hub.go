package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"

	"github.com/zaqqye/simlab_backend/internal/services"
)

// DashboardEvent is pushed to instructor dashboards watching a group.
type DashboardEvent struct {
	Type        string                     `json:"type"`
	Interaction services.InteractionUpdate `json:"interaction"`
}

const eventInteractionUpdated = "interaction.updated"

type dashboardMessage struct {
	groupID string
	payload []byte
}

// DashboardHub fans interaction updates out to instructor dashboards, scoped by group.
type DashboardHub struct {
	register   chan *dashboardClient
	unregister chan *dashboardClient
	broadcast  chan dashboardMessage
	done       chan struct{}
	clients    map[*dashboardClient]struct{}
}

func NewDashboardHub() *DashboardHub {
	return &DashboardHub{
		register:   make(chan *dashboardClient),
		unregister: make(chan *dashboardClient),
		broadcast:  make(chan dashboardMessage, 256),
		done:       make(chan struct{}),
		clients:    make(map[*dashboardClient]struct{}),
	}
}

func (h *DashboardHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.watches(msg.groupID) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					h.drop(client)
				}
			}
		}
	}
}

func (h *DashboardHub) drop(client *dashboardClient) {
	delete(h.clients, client)
	close(client.send)
	client.conn.Close()
}

// Broadcast queues the update for every dashboard watching its group. A full
// queue drops the update; dashboards resync from the REST completion view.
func (h *DashboardHub) Broadcast(u services.InteractionUpdate) {
	if h == nil {
		return
	}
	data, err := json.Marshal(DashboardEvent{Type: eventInteractionUpdated, Interaction: u})
	if err != nil {
		log.Printf("ws: failed to marshal payload: %v", err)
		return
	}
	select {
	case h.broadcast <- dashboardMessage{groupID: u.GroupID, payload: data}:
	default:
		log.Printf("ws: dashboard queue full, dropped update for interaction %s", u.InteractionID)
	}
}

type dashboardClient struct {
	peer
	hub           *DashboardHub
	allowedGroups map[string]struct{}
	allowAll      bool
}

func (c *dashboardClient) watches(groupID string) bool {
	if c.allowAll {
		return true
	}
	_, ok := c.allowedGroups[groupID]
	return ok
}

func newDashboardClient(hub *DashboardHub, conn *websocket.Conn, allowed map[string]struct{}, allowAll bool) *dashboardClient {
	return &dashboardClient{
		peer:          newPeer(conn, sendBufferSize),
		hub:           hub,
		allowedGroups: allowed,
		allowAll:      allowAll,
	}
}

func (h *DashboardHub) join(client *dashboardClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *DashboardHub) leave(client *dashboardClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
