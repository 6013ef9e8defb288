package main

import (
	"fmt"
	"time"

	"openroad/proto"
	"openroad/sim"
)

const (
	minNameLen = 2
	maxNameLen = 20
)

// Player is the server-side record of one connected car. The server trusts
// the client's reported pose; it validates nothing beyond the name.
type Player struct {
	ID       string
	Name     string
	RoomID   string
	Position sim.Vec3
	Rotation float64
	Velocity sim.Vec3
	Input    sim.InputState

	LastUpdate time.Time
	JoinedAt   time.Time

	// Distance accumulates planar movement from accepted updates, persisted
	// for authenticated drivers on disconnect.
	Distance float64

	// DriverID links to an account row; 0 means guest.
	DriverID int64

	client *Client
}

// NewPlayer builds a player from join data, defaulting anything missing or
// invalid. A bad join never fails.
func NewPlayer(connID string, join proto.JoinMsg, c *Client) *Player {
	now := time.Now()
	return &Player{
		ID:         connID,
		Name:       normalizeName(join.Name, connID),
		Position:   join.Position,
		Rotation:   join.Rotation,
		LastUpdate: now,
		JoinedAt:   now,
		client:     c,
	}
}

// normalizeName enforces the 2-20 character display name, falling back to a
// generated one.
func normalizeName(name, connID string) string {
	if len(name) >= minNameLen && len(name) <= maxNameLen {
		return name
	}
	tag := connID
	if len(tag) > 4 {
		tag = tag[:4]
	}
	return fmt.Sprintf("Driver_%s", tag)
}

// RosterEntry converts to the wire form sent to joiners.
func (p *Player) RosterEntry() proto.RosterEntry {
	return proto.RosterEntry{
		ID:       p.ID,
		Name:     p.Name,
		Position: p.Position,
		Rotation: p.Rotation,
	}
}
