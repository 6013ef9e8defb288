package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"openroad/proto"
	"openroad/sim"
)

// ---------- helpers ----------

// startTestServer spins up an httptest.Server with a Hub and returns its
// WebSocket URL and a cleanup func.
func startTestServer(t *testing.T) (*httptest.Server, string, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)

	hub := NewHub(nil)
	go hub.Run()

	mux := SetupRoutes(hub, tmpDir, "http://test.invalid")
	srv := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return srv, wsURL, srv.Close
}

func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

// readEnvelope reads one JSON message from the WebSocket. Binary frames are
// msgpack-encoded UpdatedMsg and come back wrapped in an envelope.
func readEnvelope(t *testing.T, conn *websocket.Conn) proto.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	if msgType == websocket.BinaryMessage {
		var upd proto.UpdatedMsg
		if err := msgpack.Unmarshal(raw, &upd); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return proto.Envelope{T: proto.MsgUpdated, Data: upd}
	}
	var env proto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	raw, _ := json.Marshal(proto.Envelope{T: msgType, Data: data})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataAs re-marshals the envelope payload into out.
func dataAs(t *testing.T, env proto.Envelope, out interface{}) {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
}

func join(t *testing.T, conn *websocket.Conn, name string) proto.JoinSuccessMsg {
	t.Helper()
	sendMsg(t, conn, proto.MsgJoin, proto.JoinMsg{Name: name})
	env := readEnvelope(t, conn)
	if env.T != proto.MsgJoinSuccess {
		t.Fatalf("expected %s, got %s", proto.MsgJoinSuccess, env.T)
	}
	var msg proto.JoinSuccessMsg
	dataAs(t, env, &msg)
	return msg
}

// ---------- tests ----------

func TestJoinAssignsRoomAndRoster(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	a := dialWS(t, wsURL)
	defer a.Close()
	joinedA := join(t, a, "Driver Alice")
	if joinedA.ID == "" || joinedA.RoomID == "" {
		t.Fatalf("join-success missing ids: %+v", joinedA)
	}
	if len(joinedA.Players) != 0 {
		t.Fatalf("first joiner roster = %d entries, want 0", len(joinedA.Players))
	}

	b := dialWS(t, wsURL)
	defer b.Close()
	joinedB := join(t, b, "Driver Bob")
	if joinedB.RoomID != joinedA.RoomID {
		t.Errorf("second joiner room %s, want first-fit into %s", joinedB.RoomID, joinedA.RoomID)
	}
	if len(joinedB.Players) != 1 || joinedB.Players[0].ID != joinedA.ID {
		t.Fatalf("second joiner roster = %+v, want only %s", joinedB.Players, joinedA.ID)
	}

	// A hears about B.
	env := readEnvelope(t, a)
	if env.T != proto.MsgJoined {
		t.Fatalf("expected %s on peer, got %s", proto.MsgJoined, env.T)
	}
	var peer proto.RosterEntry
	dataAs(t, env, &peer)
	if peer.ID != joinedB.ID || peer.Name != "Driver Bob" {
		t.Errorf("player-joined = %+v", peer)
	}
}

func TestUpdateRelayedWithServerStamp(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	a := dialWS(t, wsURL)
	defer a.Close()
	joinedA := join(t, a, "Driver Alice")

	b := dialWS(t, wsURL)
	defer b.Close()
	join(t, b, "Driver Bob")
	readEnvelope(t, a) // player-joined for B

	sendTime := time.Now().UnixMilli()
	x, z := 5.0, 3.0
	rot := 1.0
	sendMsg(t, a, proto.MsgUpdate, proto.UpdateMsg{
		Position:  &proto.PositionPatch{X: &x, Z: &z},
		Rotation:  &rot,
		Velocity:  &sim.Vec3{X: 2},
		Timestamp: sendTime,
	})

	env := readEnvelope(t, b)
	if env.T != proto.MsgUpdated {
		t.Fatalf("expected %s, got %s", proto.MsgUpdated, env.T)
	}
	var upd proto.UpdatedMsg
	dataAs(t, env, &upd)
	if upd.ID != joinedA.ID {
		t.Errorf("updated id = %s, want %s", upd.ID, joinedA.ID)
	}
	if upd.Position.X != 5 || upd.Position.Z != 3 || upd.Rotation != 1.0 {
		t.Errorf("relayed pose = %+v rot=%f, want 5/3 rot 1.0", upd.Position, upd.Rotation)
	}
	if upd.Timestamp < sendTime {
		t.Errorf("server stamp %d predates send time %d", upd.Timestamp, sendTime)
	}
	if upd.ClientTimestamp != sendTime {
		t.Errorf("client stamp not echoed: %d, want %d", upd.ClientTimestamp, sendTime)
	}
	if upd.Velocity == nil || upd.Velocity.X != 2 {
		t.Errorf("velocity not relayed: %+v", upd.Velocity)
	}
}

func TestInputEchoMergesPartially(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	a := dialWS(t, wsURL)
	defer a.Close()
	join(t, a, "Driver Alice")

	b := dialWS(t, wsURL)
	defer b.Close()
	join(t, b, "Driver Bob")
	readEnvelope(t, a) // player-joined for B

	tr := true
	sendMsg(t, a, proto.MsgInput, proto.InputMsg{Forward: &tr})
	env := readEnvelope(t, b)
	if env.T != proto.MsgInputUpdate {
		t.Fatalf("expected %s, got %s", proto.MsgInputUpdate, env.T)
	}
	var echo proto.InputUpdateMsg
	dataAs(t, env, &echo)
	if !echo.Input.Forward || echo.Input.Backward || echo.Input.Left || echo.Input.Right {
		t.Errorf("echoed input = %+v, want only forward", echo.Input)
	}

	// Second patch keeps the earlier field.
	sendMsg(t, a, proto.MsgInput, proto.InputMsg{Left: &tr})
	dataAs(t, readEnvelope(t, b), &echo)
	if !echo.Input.Forward || !echo.Input.Left {
		t.Errorf("merged echo = %+v, want forward+left", echo.Input)
	}
}

func TestDisconnectBroadcastsPlayerLeft(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	a := dialWS(t, wsURL)
	joinedA := join(t, a, "Driver Alice")

	b := dialWS(t, wsURL)
	defer b.Close()
	join(t, b, "Driver Bob")
	readEnvelope(t, a) // player-joined for B

	a.Close()

	env := readEnvelope(t, b)
	if env.T != proto.MsgLeft {
		t.Fatalf("expected %s, got %s", proto.MsgLeft, env.T)
	}
	var left proto.LeftMsg
	dataAs(t, env, &left)
	if left.ID != joinedA.ID {
		t.Errorf("player-left id = %s, want %s", left.ID, joinedA.ID)
	}
}

func TestBinaryNegotiatedClientGetsMsgpack(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	a := dialWS(t, wsURL)
	defer a.Close()
	join(t, a, "Driver Alice")

	c := dialWS(t, wsURL)
	defer c.Close()
	sendMsg(t, c, proto.MsgJoin, proto.JoinMsg{Name: "Driver Carol", Binary: true})
	if env := readEnvelope(t, c); env.T != proto.MsgJoinSuccess {
		t.Fatalf("expected join-success, got %s", env.T)
	}
	readEnvelope(t, a) // player-joined for C

	x := 7.0
	rot := 0.25
	sendMsg(t, a, proto.MsgUpdate, proto.UpdateMsg{
		Position: &proto.PositionPatch{X: &x},
		Rotation: &rot,
	})

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("frame type = %d, want binary", msgType)
	}
	var upd proto.UpdatedMsg
	if err := msgpack.Unmarshal(raw, &upd); err != nil {
		t.Fatalf("msgpack unmarshal: %v", err)
	}
	if upd.Position.X != 7 || upd.Rotation != 0.25 {
		t.Errorf("binary update = %+v rot=%f", upd.Position, upd.Rotation)
	}
}

func TestUpdateBeforeJoinIsIgnored(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	a := dialWS(t, wsURL)
	defer a.Close()
	rot := 1.0
	sendMsg(t, a, proto.MsgUpdate, proto.UpdateMsg{Rotation: &rot})

	// The connection stays usable: a join still works afterwards.
	joined := join(t, a, "Driver Alice")
	if joined.ID == "" {
		t.Fatal("join after stray update failed")
	}
}

func TestMalformedJoinDefaultsName(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	a := dialWS(t, wsURL)
	defer a.Close()
	joined := join(t, a, "x") // below the 2-char minimum

	b := dialWS(t, wsURL)
	defer b.Close()
	joinedB := join(t, b, "Driver Bob")
	if len(joinedB.Players) != 1 {
		t.Fatalf("roster = %+v", joinedB.Players)
	}
	name := joinedB.Players[0].Name
	if !strings.HasPrefix(name, "Driver_") {
		t.Errorf("invalid name %q not defaulted, roster shows %q", "x", name)
	}
	if joinedB.Players[0].ID != joined.ID {
		t.Errorf("roster id = %s, want %s", joinedB.Players[0].ID, joined.ID)
	}
}

func TestHealthReportsCounts(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	a := dialWS(t, wsURL)
	defer a.Close()
	join(t, a, "Driver Alice")

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		Rooms   int    `json:"rooms"`
		Players int    `json:"players"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Rooms != 1 || body.Players != 1 {
		t.Errorf("health = %+v, want ok/1/1", body)
	}
}
