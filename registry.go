package main

import (
	"sync"
	"time"

	"openroad/proto"
	"openroad/sim"
)

const (
	maxPlayersPerRoom = 10
	roomIDLen         = 5 // bytes of entropy, 10 hex chars
)

// Room is a bounded group of connections that see each other's state.
type Room struct {
	ID           string
	Players      map[string]*Player
	LastActivity time.Time
}

// Registry owns every active room and its membership. All mutation goes
// through the registry mutex; handlers run on per-connection goroutines and
// the idle-room sweeper on its own timer, so the critical sections must
// serialize. They are all short map operations.
//
// Lookups scan rooms linearly. Rooms cap at 10 players and the room count
// stays small, so a connection->room index is not worth the bookkeeping; the
// observable contract would not change if one were added.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	order []string // room IDs in creation order, drives first-fit placement
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// CreateRoom registers a new empty room and returns it.
func (g *Registry) CreateRoom() *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createRoomLocked()
}

func (g *Registry) createRoomLocked() *Room {
	room := &Room{
		ID:           GenerateID(roomIDLen),
		Players:      make(map[string]*Player),
		LastActivity: time.Now(),
	}
	g.rooms[room.ID] = room
	g.order = append(g.order, room.ID)
	Log.Infow("room created", "room", room.ID)
	return room
}

// FindAvailableRoom returns the oldest room with spare capacity, creating a
// new one when every room is full. First-fit only, no balancing.
func (g *Registry) FindAvailableRoom() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.findAvailableRoomLocked().ID
}

func (g *Registry) findAvailableRoomLocked() *Room {
	for _, id := range g.order {
		if room := g.rooms[id]; room != nil && len(room.Players) < maxPlayersPerRoom {
			return room
		}
	}
	return g.createRoomLocked()
}

// AddPlayer places a new connection in the first available room. Bad join
// data is defaulted, never rejected.
func (g *Registry) AddPlayer(connID string, join proto.JoinMsg, c *Client) (*Player, *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room := g.findAvailableRoomLocked()
	player := NewPlayer(connID, join, c)
	player.RoomID = room.ID
	room.Players[connID] = player
	room.LastActivity = time.Now()

	Log.Infow("player joined", "player", player.Name, "room", room.ID,
		"occupancy", len(room.Players), "cap", maxPlayersPerRoom)
	return player, room
}

// RemovePlayer takes the connection out of whichever room holds it and
// deletes the room if that left it empty. ok is false for unknown
// connections.
func (g *Registry) RemovePlayer(connID string) (player *Player, roomID string, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range g.order {
		room := g.rooms[id]
		if room == nil {
			continue
		}
		p, found := room.Players[connID]
		if !found {
			continue
		}
		delete(room.Players, connID)
		Log.Infow("player left", "player", p.Name, "room", id)
		if len(room.Players) == 0 {
			g.deleteRoomLocked(id)
		}
		return p, id, true
	}
	return nil, "", false
}

// UpdatePlayer merges a partial update into the connection's player: input
// and position merge field by field, rotation and velocity overwrite when
// present. Stamps the player and the room. ok is false for unknown
// connections.
func (g *Registry) UpdatePlayer(connID string, upd proto.UpdateMsg) (*Player, *Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range g.order {
		room := g.rooms[id]
		if room == nil {
			continue
		}
		p, found := room.Players[connID]
		if !found {
			continue
		}

		if upd.Input != nil {
			mergeInput(&p.Input, upd.Input)
		}
		if upd.Position != nil {
			prev := p.Position
			mergePosition(&p.Position, upd.Position)
			p.Distance += planarDistance(prev, p.Position)
		}
		if upd.Rotation != nil {
			p.Rotation = *upd.Rotation
		}
		if upd.Velocity != nil {
			p.Velocity = *upd.Velocity
		}

		p.LastUpdate = time.Now()
		room.LastActivity = p.LastUpdate
		return p, room, true
	}
	return nil, nil, false
}

// RoomPlayers returns everyone sharing the connection's room, self included.
func (g *Registry) RoomPlayers(connID string) []*Player {
	g.mu.Lock()
	defer g.mu.Unlock()

	if room := g.roomOfLocked(connID); room != nil {
		return snapshotLocked(room, "")
	}
	return nil
}

// OtherPlayers returns the connection's room peers, excluding itself.
func (g *Registry) OtherPlayers(connID string) []*Player {
	g.mu.Lock()
	defer g.mu.Unlock()

	if room := g.roomOfLocked(connID); room != nil {
		return snapshotLocked(room, connID)
	}
	return nil
}

// PlayersInRoom returns the members of a specific room, used for the
// left-notification after the leaver is already removed.
func (g *Registry) PlayersInRoom(roomID string) []*Player {
	g.mu.Lock()
	defer g.mu.Unlock()

	if room := g.rooms[roomID]; room != nil {
		return snapshotLocked(room, "")
	}
	return nil
}

// Roster builds the join-success roster of a connection's peers under one
// lock so the field reads are consistent.
func (g *Registry) Roster(connID string) []proto.RosterEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	room := g.roomOfLocked(connID)
	if room == nil {
		return nil
	}
	roster := make([]proto.RosterEntry, 0, len(room.Players))
	for id, p := range room.Players {
		if id == connID {
			continue
		}
		roster = append(roster, p.RosterEntry())
	}
	return roster
}

// CleanupInactiveRooms removes rooms idle beyond maxInactive and returns how
// many were dropped. Runs on a process-wide timer, independent of any
// connection.
func (g *Registry) CleanupInactiveRooms(maxInactive time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, id := range append([]string(nil), g.order...) {
		room := g.rooms[id]
		if room == nil {
			continue
		}
		if now.Sub(room.LastActivity) > maxInactive {
			g.deleteRoomLocked(id)
			removed++
			Log.Infow("idle room removed", "room", id)
		}
	}
	return removed
}

// Counts reports active rooms and total players for the health endpoint.
func (g *Registry) Counts() (rooms, players int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, room := range g.rooms {
		players += len(room.Players)
	}
	return len(g.rooms), players
}

func (g *Registry) roomOfLocked(connID string) *Room {
	for _, id := range g.order {
		if room := g.rooms[id]; room != nil {
			if _, ok := room.Players[connID]; ok {
				return room
			}
		}
	}
	return nil
}

func (g *Registry) deleteRoomLocked(id string) {
	delete(g.rooms, id)
	for i, rid := range g.order {
		if rid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

func snapshotLocked(room *Room, exclude string) []*Player {
	out := make([]*Player, 0, len(room.Players))
	for id, p := range room.Players {
		if id == exclude {
			continue
		}
		out = append(out, p)
	}
	return out
}

func mergeInput(dst *sim.InputState, patch *proto.InputMsg) {
	if patch.Forward != nil {
		dst.Forward = *patch.Forward
	}
	if patch.Backward != nil {
		dst.Backward = *patch.Backward
	}
	if patch.Left != nil {
		dst.Left = *patch.Left
	}
	if patch.Right != nil {
		dst.Right = *patch.Right
	}
}

func mergePosition(dst *sim.Vec3, patch *proto.PositionPatch) {
	if patch.X != nil {
		dst.X = *patch.X
	}
	if patch.Y != nil {
		dst.Y = *patch.Y
	}
	if patch.Z != nil {
		dst.Z = *patch.Z
	}
}

func planarDistance(a, b sim.Vec3) float64 {
	return sim.Vec3{X: b.X - a.X, Z: b.Z - a.Z}.PlanarSpeed()
}
