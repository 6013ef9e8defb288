// roadbot is a headless driving client. It joins the relay, runs the local
// motion model on synthetic input, throttles outbound updates, and smooths
// its peers through the interpolation buffer — the same loop a rendering
// client runs, minus the rendering.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"openroad/proto"
	"openroad/sim"
)

const (
	tickInterval         = 50 * time.Millisecond
	inputFlipInterval    = 2 * time.Second
	maxReconnectAttempts = 5
	reconnectBaseDelay   = time.Second
	reconnectMaxDelay    = 5 * time.Second
)

var log *zap.SugaredLogger

func main() {
	server := flag.String("server", "ws://localhost:8080/ws", "relay WebSocket URL")
	name := flag.String("name", "roadbot", "display name (2-20 characters)")
	duration := flag.Duration("duration", 0, "how long to drive (0 = forever)")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	log = logger.Sugar()

	// The name gate is client-side: an out-of-range name never connects.
	if !validName(*name) {
		fmt.Fprintln(os.Stderr, "name must be between 2 and 20 characters")
		os.Exit(1)
	}

	deadline := time.Time{}
	if *duration > 0 {
		deadline = time.Now().Add(*duration)
	}

	attempts := 0
	for {
		err := drive(*server, *name, deadline)
		if err == nil {
			return // deadline reached
		}

		attempts++
		if attempts > maxReconnectAttempts {
			log.Errorw("giving up after repeated connection failures", "attempts", attempts-1)
			os.Exit(1)
		}
		delay := reconnectBaseDelay * time.Duration(attempts)
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
		log.Warnw("connection lost, reconnecting", "attempt", attempts, "delay", delay, "err", err)
		time.Sleep(delay)
	}
}

// drive runs one connection's lifetime: join, tick until the deadline or a
// transport error. All remote state is rebuilt from scratch on the next
// connection.
func drive(server, name string, deadline time.Time) error {
	conn, _, err := websocket.DefaultDialer.Dial(server, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	car := sim.NewCar()
	join := proto.Envelope{T: proto.MsgJoin, Data: proto.JoinMsg{
		Name:     name,
		Position: car.Position,
		Rotation: car.Rotation,
	}}
	if err := writeJSON(conn, join); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	inbound := make(chan proto.InEnvelope, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var env proto.InEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				continue
			}
			inbound <- env
		}
	}()

	var (
		selfID   string
		remotes  = make(map[string]*sim.RemoteCar)
		throttle sim.UpdateThrottle
		input    sim.InputState
		lastFlip time.Time
		lastTick = time.Now()
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-readErr:
			return err

		case env := <-inbound:
			handleEvent(env, &selfID, remotes)

		case now := <-ticker.C:
			if !deadline.IsZero() && now.After(deadline) {
				return nil
			}

			// Wander: flip a random control every couple of seconds.
			if now.Sub(lastFlip) > inputFlipInterval {
				input = randomInput()
				lastFlip = now
			}

			dt := now.Sub(lastTick).Seconds()
			lastTick = now
			car.Step(input, dt)

			nowMs := now.UnixMilli()
			for _, r := range remotes {
				r.Advance(nowMs)
			}

			if throttle.ShouldSend(nowMs, car.Position, car.Rotation, false) {
				vel := car.Velocity
				upd := proto.Envelope{T: proto.MsgUpdate, Data: proto.UpdateMsg{
					Position:  fullPosition(car.Position),
					Rotation:  &car.Rotation,
					Velocity:  &vel,
					Timestamp: nowMs,
				}}
				if err := writeJSON(conn, upd); err != nil {
					return fmt.Errorf("update: %w", err)
				}
				throttle.MarkSent(nowMs, car.Position, car.Rotation)
			}
		}
	}
}

// handleEvent maintains the remote roster from relay broadcasts.
func handleEvent(env proto.InEnvelope, selfID *string, remotes map[string]*sim.RemoteCar) {
	switch env.T {
	case proto.MsgJoinSuccess:
		var msg proto.JoinSuccessMsg
		if err := json.Unmarshal(env.D, &msg); err != nil {
			return
		}
		*selfID = msg.ID
		log.Infow("joined", "id", msg.ID, "room", msg.RoomID, "peers", len(msg.Players))
		for _, p := range msg.Players {
			remotes[p.ID] = sim.NewRemoteCar(p.ID, p.Name, p.Position, p.Rotation)
		}

	case proto.MsgJoined:
		var msg proto.RosterEntry
		if err := json.Unmarshal(env.D, &msg); err != nil {
			return
		}
		if msg.ID == *selfID {
			return
		}
		if _, known := remotes[msg.ID]; !known {
			remotes[msg.ID] = sim.NewRemoteCar(msg.ID, msg.Name, msg.Position, msg.Rotation)
			log.Infow("peer joined", "id", msg.ID, "name", msg.Name)
		}

	case proto.MsgInputUpdate:
		var msg proto.InputUpdateMsg
		if err := json.Unmarshal(env.D, &msg); err != nil {
			return
		}
		if r, ok := remotes[msg.ID]; ok {
			r.Input = msg.Input
		}

	case proto.MsgUpdated:
		var msg proto.UpdatedMsg
		if err := json.Unmarshal(env.D, &msg); err != nil {
			return
		}
		if r, ok := remotes[msg.ID]; ok {
			r.Observe(sim.TimedState{
				Position:  msg.Position,
				Rotation:  msg.Rotation,
				Velocity:  msg.Velocity,
				Timestamp: msg.Timestamp,
			}, time.Now().UnixMilli())
		}

	case proto.MsgLeft:
		var msg proto.LeftMsg
		if err := json.Unmarshal(env.D, &msg); err != nil {
			return
		}
		delete(remotes, msg.ID)
		log.Infow("peer left", "id", msg.ID)

	case proto.MsgError:
		var msg proto.ErrorMsg
		if err := json.Unmarshal(env.D, &msg); err != nil {
			return
		}
		log.Warnw("server error", "msg", msg.Msg)
	}
}

func validName(name string) bool {
	return len(name) >= 2 && len(name) <= 20
}

func randomInput() sim.InputState {
	return sim.InputState{
		Forward:  rand.Intn(4) != 0, // mostly drive forward
		Backward: rand.Intn(8) == 0,
		Left:     rand.Intn(3) == 0,
		Right:    rand.Intn(3) == 0,
	}
}

func fullPosition(p sim.Vec3) *proto.PositionPatch {
	return &proto.PositionPatch{X: &p.X, Y: &p.Y, Z: &p.Z}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
