package main

import (
	"sync"
	"time"

	"openroad/proto"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub owns the set of connected clients and the room registry they share.
// Register/unregister flow through channels so membership changes and the
// resulting broadcasts happen on one goroutine.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	registry *Registry

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	db   *DB
	auth *Auth
}

// NewHub creates a hub. db may be nil, which disables accounts and stats.
func NewHub(db *DB) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		registry:   NewRegistry(),
		ipConns:    make(map[string]int),
		db:         db,
	}
	if db != nil {
		h.auth = NewAuth(db)
	}
	return h
}

// CanAccept applies the per-IP and total connection caps.
func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

// TrackConnect counts an accepted connection against its IP.
func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

// TrackDisconnect releases the connection's slot.
func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.dropPlayer(client)
		}
	}
}

// dropPlayer removes a disconnected client's player and tells the room.
// Unknown connections (never joined) are ignored without a broadcast.
func (h *Hub) dropPlayer(client *Client) {
	player, roomID, ok := h.registry.RemovePlayer(client.id)
	if !ok {
		return
	}

	left := proto.Envelope{T: proto.MsgLeft, Data: proto.LeftMsg{ID: player.ID}}
	for _, p := range h.registry.PlayersInRoom(roomID) {
		p.client.SendJSON(left)
	}

	if h.db != nil && player.DriverID != 0 {
		playtime := time.Since(player.JoinedAt).Seconds()
		if err := h.db.RecordSession(player.DriverID, playtime, player.Distance); err != nil {
			Log.Warnw("record session failed", "driver", player.DriverID, "err", err)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
