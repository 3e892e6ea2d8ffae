// Package hub fans domain events out to every connected station over
// websockets and answers full-state sync requests. Incremental events are an
// optimization; the full resync on connect (or on demand) is what guarantees
// every station eventually converges.
package hub

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scanquest/orchestrator/internal/devices"
	"github.com/scanquest/orchestrator/internal/display"
	"github.com/scanquest/orchestrator/internal/errors"
	"github.com/scanquest/orchestrator/internal/events"
	"github.com/scanquest/orchestrator/internal/logger"
	"github.com/scanquest/orchestrator/internal/models"
	"github.com/scanquest/orchestrator/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // stations live on the venue LAN
	},
}

// recentTransactionWindow bounds the transaction history in a full sync
const recentTransactionWindow = 10

// SyncPayload is the full-state snapshot sent on connect and on sync:request
type SyncPayload struct {
	Session            *models.Session      `json:"session"`
	Scores             []models.TeamScore   `json:"scores"`
	RecentTransactions []models.Transaction `json:"recent_transactions"`
	Display            models.DisplayState  `json:"display"`
	Devices            []models.Device      `json:"devices"`
}

// Hub maintains the set of connected stations and broadcasts envelopes to
// them. Fan-out is decoupled from the mutation path: a slow or broken station
// is dropped, never waited on.
type Hub struct {
	log      logger.Logger
	registry *devices.Registry
	sessions *session.Manager
	display  *display.Orchestrator

	register   chan *Client
	unregister chan *Client
	broadcast  chan events.Event

	mutex   sync.RWMutex
	clients map[*Client]bool
}

// Client is a middleman between one websocket connection and the hub
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan models.WSMessage
	deviceID   string
	deviceType string
}

// New creates a hub and subscribes it to the domain event bus
func New(log logger.Logger, bus *events.Bus, registry *devices.Registry, sessions *session.Manager, disp *display.Orchestrator) *Hub {
	h := &Hub{
		log:        log,
		registry:   registry,
		sessions:   sessions,
		display:    disp,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan events.Event, 256),
		clients:    make(map[*Client]bool),
	}
	bus.Subscribe(h.handleEvent)
	return h
}

// Start begins the hub's main loop in a goroutine
func (h *Hub) Start() {
	go h.run()
}

// handleEvent forwards a domain event into the fan-out loop without ever
// blocking the publisher
func (h *Hub) handleEvent(ev events.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("Broadcast buffer full, dropping event", "event", ev.Type)
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Station connected to hub", "device_id", client.deviceID, "total_clients", total)

			// Full resync is the correctness backstop for every new connection
			client.trySend(h.fullSyncMessage())

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Station disconnected from hub", "device_id", client.deviceID, "total_clients", total)

		case ev := <-h.broadcast:
			msg := models.WSMessage{Event: string(ev.Type), Data: ev.Data, Timestamp: ev.Timestamp}
			h.mutex.RLock()
			for client := range h.clients {
				if ev.DeviceID != "" && ev.DeviceID != client.deviceID {
					continue
				}
				if !client.trySend(msg) {
					// Send buffer full: the station is stalled. Drop it and
					// let the registry reflect the loss; it can reconnect and
					// resync.
					h.registry.MarkDisconnected(client.deviceID)
					go func(c *Client) { h.unregister <- c }(client)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// trySend queues a message without blocking. False means the buffer is full.
func (c *Client) trySend(msg models.WSMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Snapshot assembles the full-state view sent as sync:full and served from
// the polling state endpoint
func (h *Hub) Snapshot() SyncPayload {
	s := h.sessions.Current()

	payload := SyncPayload{
		Session:            s,
		Scores:             []models.TeamScore{},
		RecentTransactions: []models.Transaction{},
		Display:            h.display.State(),
		Devices:            h.registry.List(),
	}
	if s != nil {
		for _, teamID := range s.Teams {
			if score := s.Scores[teamID]; score != nil {
				payload.Scores = append(payload.Scores, *score)
			}
		}
		txs := s.Transactions
		if len(txs) > recentTransactionWindow {
			txs = txs[len(txs)-recentTransactionWindow:]
		}
		payload.RecentTransactions = append([]models.Transaction{}, txs...)
	}
	return payload
}

func (h *Hub) fullSyncMessage() models.WSMessage {
	return models.WSMessage{Event: string(events.SyncFull), Data: h.Snapshot(), Timestamp: time.Now()}
}

// inboundMessage is the only message shape stations send over the socket
type inboundMessage struct {
	Type string `json:"type"`
}

// ServeWs upgrades the connection, registers the device, and starts the
// read/write pumps. Identity collisions are reported only to the offending
// connection and the socket is closed.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	requestedID := r.URL.Query().Get("device_id")
	deviceType := r.URL.Query().Get("device_type")

	device, err := h.registry.Connect(requestedID, deviceType)
	if err != nil {
		h.log.Warn("Device connect refused", "requested_id", requestedID, "error", err)
		h.rejectConnection(conn, err)
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan models.WSMessage, 256),
		deviceID:   device.DeviceID,
		deviceType: device.DeviceType,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// rejectConnection sends one error envelope and closes the socket
func (h *Hub) rejectConnection(conn *websocket.Conn, err error) {
	code := "CONNECT_FAILED"
	var appErr *errors.Error
	if stderrors.As(err, &appErr) && appErr.Kind == errors.ErrCollision {
		code = "DEVICE_ID_COLLISION"
	}
	msg := models.WSMessage{
		Event:     "error",
		Data:      map[string]string{"code": code, "message": err.Error()},
		Timestamp: time.Now(),
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	payload, _ := json.Marshal(msg)
	conn.WriteMessage(websocket.TextMessage, payload)
	conn.Close()
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.hub.registry.Disconnect(c.deviceID)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket read error", "device_id", c.deviceID, "error", err)
			}
			break
		}

		var msg inboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.log.Debug("Ignoring malformed station message", "device_id", c.deviceID)
			continue
		}
		if msg.Type == "sync:request" {
			c.trySend(c.hub.fullSyncMessage())
		}
	}
}

// writePump pumps messages from the hub to the websocket connection. Every
// write carries a deadline so one dead station cannot hold the pump.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(message)
			if err != nil {
				c.hub.log.Error("Failed to encode envelope", "event", message.Event, "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
