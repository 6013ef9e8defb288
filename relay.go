package main

import (
	"encoding/json"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"openroad/proto"
	"openroad/sim"
)

// handleMessage routes one inbound envelope. No message may take the
// connection down: panics are logged and swallowed here, and only a failed
// join is reported back to the sender.
func (c *Client) handleMessage(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			Log.Errorw("handler panic", "addr", c.remoteAddr, "panic", r)
		}
	}()

	var env proto.InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		Log.Debugw("unmarshal error", "addr", c.remoteAddr, "err", err)
		return
	}

	switch env.T {
	case proto.MsgJoin:
		c.handleJoin(env.D)
	case proto.MsgInput:
		c.handleInput(env.D)
	case proto.MsgUpdate:
		c.handleUpdate(env.D)
	case proto.MsgRegister:
		c.handleRegister(env.D)
	case proto.MsgLogin:
		c.handleLogin(env.D)
	case proto.MsgAuth:
		c.handleAuth(env.D)
	}
}

// handleJoin places the connection in a room, replies with the roster and
// announces the newcomer to its peers.
func (c *Client) handleJoin(data json.RawMessage) {
	if c.joined {
		c.SendJSON(proto.Envelope{T: proto.MsgError, Data: proto.ErrorMsg{Msg: "already joined"}})
		return
	}

	// Malformed join data degrades to defaults rather than failing.
	var join proto.JoinMsg
	if err := json.Unmarshal(data, &join); err != nil {
		Log.Debugw("bad join payload, using defaults", "addr", c.remoteAddr, "err", err)
		join = proto.JoinMsg{}
	}

	if join.Token != "" && c.hub.auth != nil {
		if id, username, err := c.hub.auth.ValidateToken(join.Token); err == nil {
			c.driverID = id
			c.username = username
			if len(join.Name) < minNameLen || len(join.Name) > maxNameLen {
				join.Name = username
			}
		}
	}

	player, _ := c.hub.registry.AddPlayer(c.id, join, c)
	if player == nil {
		c.SendJSON(proto.Envelope{T: proto.MsgError, Data: proto.ErrorMsg{Msg: "failed to join game"}})
		return
	}
	c.joined = true
	c.binary = join.Binary
	player.DriverID = c.driverID

	if c.hub.db != nil && c.driverID != 0 {
		if err := c.hub.db.RecordJoin(c.driverID); err != nil {
			Log.Warnw("record join failed", "driver", c.driverID, "err", err)
		}
	}

	c.SendJSON(proto.Envelope{T: proto.MsgJoinSuccess, Data: proto.JoinSuccessMsg{
		ID:      player.ID,
		RoomID:  player.RoomID,
		Players: c.hub.registry.Roster(c.id),
	}})

	c.broadcastJSON(proto.Envelope{T: proto.MsgJoined, Data: player.RosterEntry()})
}

// handleInput merges a control change and echoes the merged state to the
// room for peer-side prediction.
func (c *Client) handleInput(data json.RawMessage) {
	if !c.joined {
		return
	}
	var input proto.InputMsg
	if err := json.Unmarshal(data, &input); err != nil {
		return
	}

	player, _, ok := c.hub.registry.UpdatePlayer(c.id, proto.UpdateMsg{Input: &input})
	if !ok {
		return
	}
	c.broadcastJSON(proto.Envelope{T: proto.MsgInputUpdate, Data: proto.InputUpdateMsg{
		ID:    player.ID,
		Input: player.Input,
	}})
}

// handleUpdate merges a full-state report and relays it to the room. The
// broadcast carries a server stamp; the sender's own stamp rides along so
// receivers can estimate one-way delay.
func (c *Client) handleUpdate(data json.RawMessage) {
	if !c.joined {
		return
	}
	var upd proto.UpdateMsg
	if err := json.Unmarshal(data, &upd); err != nil {
		return
	}

	player, _, ok := c.hub.registry.UpdatePlayer(c.id, upd)
	if !ok {
		return
	}

	var vel *sim.Vec3
	if upd.Velocity != nil {
		v := player.Velocity
		vel = &v
	}
	c.broadcastUpdated(proto.UpdatedMsg{
		ID:              player.ID,
		Position:        player.Position,
		Rotation:        player.Rotation,
		Velocity:        vel,
		Timestamp:       time.Now().UnixMilli(),
		ClientTimestamp: upd.Timestamp,
	})
}

// broadcastJSON sends an envelope to every other player in the sender's
// room.
func (c *Client) broadcastJSON(env proto.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		Log.Errorw("marshal error", "err", err)
		return
	}
	for _, p := range c.hub.registry.OtherPlayers(c.id) {
		p.client.SendRaw(data)
	}
}

// broadcastUpdated fans a state update out to room peers, honoring each
// peer's encoding choice: JSON envelope by default, bare msgpack for clients
// that negotiated binary on join.
func (c *Client) broadcastUpdated(msg proto.UpdatedMsg) {
	peers := c.hub.registry.OtherPlayers(c.id)
	if len(peers) == 0 {
		return
	}

	var jsonData, packData []byte
	for _, p := range peers {
		peer := p.client
		if peer == nil {
			continue
		}
		if peer.binary {
			if packData == nil {
				var err error
				if packData, err = msgpack.Marshal(msg); err != nil {
					Log.Errorw("msgpack marshal error", "err", err)
					continue
				}
			}
			peer.SendBinary(packData)
			continue
		}
		if jsonData == nil {
			var err error
			if jsonData, err = json.Marshal(proto.Envelope{T: proto.MsgUpdated, Data: msg}); err != nil {
				Log.Errorw("marshal error", "err", err)
				return
			}
		}
		peer.SendRaw(jsonData)
	}
}

// handleRegister creates an account over the socket.
func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg proto.RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.SendJSON(proto.Envelope{T: proto.MsgError, Data: proto.ErrorMsg{Msg: err.Error()}})
		return
	}
	c.driverID = id
	c.username = msg.Username
	c.SendJSON(proto.Envelope{T: proto.MsgAuthOK, Data: proto.AuthOKMsg{
		Token: token, Username: msg.Username, DriverID: id,
	}})
}

// handleLogin signs into an existing account.
func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg proto.LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.SendJSON(proto.Envelope{T: proto.MsgError, Data: proto.ErrorMsg{Msg: err.Error()}})
		return
	}
	c.driverID = id
	c.username = msg.Username
	c.SendJSON(proto.Envelope{T: proto.MsgAuthOK, Data: proto.AuthOKMsg{
		Token: token, Username: msg.Username, DriverID: id,
	}})
}

// handleAuth resumes a session from a stored token.
func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg proto.AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.SendJSON(proto.Envelope{T: proto.MsgError, Data: proto.ErrorMsg{Msg: "invalid token"}})
		return
	}
	c.driverID = id
	c.username = username
	c.SendJSON(proto.Envelope{T: proto.MsgAuthOK, Data: proto.AuthOKMsg{
		Token: msg.Token, Username: username, DriverID: id,
	}})
}
