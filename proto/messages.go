// Package proto defines the wire protocol between the relay server and its
// clients. Every message travels in an Envelope; incoming payloads stay raw
// until the event type is known to avoid a double unmarshal.
package proto

import (
	"encoding/json"

	"openroad/sim"
)

// Client -> Server events
const (
	MsgJoin     = "player-join"
	MsgInput    = "player-input"
	MsgUpdate   = "player-update"
	MsgRegister = "register"
	MsgLogin    = "login"
	MsgAuth     = "auth"
)

// Server -> Client events
const (
	MsgJoinSuccess = "join-success"
	MsgJoined      = "player-joined"
	MsgInputUpdate = "player-input-update"
	MsgUpdated     = "player-updated"
	MsgLeft        = "player-left"
	MsgError       = "error"
	MsgAuthOK      = "auth-ok"
)

// Envelope wraps all outgoing messages with an event type.
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is the incoming counterpart; json.RawMessage defers payload
// decoding to the per-event handler.
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinMsg asks to be placed in a room. Missing or invalid fields are
// defaulted server-side, never rejected. Binary opts in to msgpack-encoded
// state broadcasts.
type JoinMsg struct {
	Name     string   `json:"name"`
	Position sim.Vec3 `json:"position"`
	Rotation float64  `json:"rotation"`
	Binary   bool     `json:"bin,omitempty"`
	Token    string   `json:"token,omitempty"`
}

// RosterEntry describes one existing player to a joiner.
type RosterEntry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Position sim.Vec3 `json:"position"`
	Rotation float64  `json:"rotation"`
}

// JoinSuccessMsg is the reply to the joining connection.
type JoinSuccessMsg struct {
	ID      string        `json:"id"`
	RoomID  string        `json:"roomId"`
	Players []RosterEntry `json:"players"`
}

// InputMsg carries the four-button control state. Absent fields keep their
// previous value; the registry merges field by field.
type InputMsg struct {
	Forward  *bool `json:"forward,omitempty"`
	Backward *bool `json:"backward,omitempty"`
	Left     *bool `json:"left,omitempty"`
	Right    *bool `json:"right,omitempty"`
}

// InputUpdateMsg echoes a player's merged input to its room peers, used for
// prediction between full state updates. Not a source of server authority.
type InputUpdateMsg struct {
	ID    string         `json:"id"`
	Input sim.InputState `json:"input"`
}

// PositionPatch updates position components individually; an absent
// component is left unchanged.
type PositionPatch struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	Z *float64 `json:"z,omitempty"`
}

// UpdateMsg is a client's full-state report. Timestamp is the client clock
// in unix milliseconds.
type UpdateMsg struct {
	Position  *PositionPatch `json:"position,omitempty"`
	Rotation  *float64       `json:"rotation,omitempty"`
	Velocity  *sim.Vec3      `json:"velocity,omitempty"`
	Input     *InputMsg      `json:"input,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
}

// UpdatedMsg is the relayed state broadcast. Timestamp is stamped by the
// server at broadcast time so peers interpolate on one clock;
// ClientTimestamp carries the sender's stamp so receivers can estimate
// upstream delay.
type UpdatedMsg struct {
	ID              string    `json:"id" msgpack:"id"`
	Position        sim.Vec3  `json:"position" msgpack:"position"`
	Rotation        float64   `json:"rotation" msgpack:"rotation"`
	Velocity        *sim.Vec3 `json:"velocity,omitempty" msgpack:"velocity,omitempty"`
	Timestamp       int64     `json:"timestamp" msgpack:"timestamp"`
	ClientTimestamp int64     `json:"ct,omitempty" msgpack:"ct,omitempty"`
}

// LeftMsg tells a room a player is gone.
type LeftMsg struct {
	ID string `json:"id"`
}

// ErrorMsg reports a failure to the originating connection only.
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// RegisterMsg creates a driver account.
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg signs into an existing account.
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg resumes a session from a stored token.
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms register/login/auth.
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	DriverID int64  `json:"driverId"`
}
