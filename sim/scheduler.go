package sim

import "math"

// UpdateThrottle decides whether a full-state update is worth sending this
// frame. It caps the outbound rate at SendRate and suppresses sends that
// would repeat the last transmitted pose within MoveEpsilon. Forced sends
// bypass both gates (join, teleport, reconnect).
type UpdateThrottle struct {
	lastSendMs   int64
	lastSentPos  Vec3
	lastSentRot  float64
	sentAnything bool
}

// ShouldSend reports whether to transmit the given pose now. It does not
// record the send; call MarkSent once the message is actually written, so a
// failed write does not suppress the retry.
func (u *UpdateThrottle) ShouldSend(nowMs int64, pos Vec3, rot float64, forced bool) bool {
	if forced {
		return true
	}
	if nowMs-u.lastSendMs <= 1000/SendRate {
		return false
	}
	if !u.sentAnything {
		return true
	}
	return math.Abs(pos.X-u.lastSentPos.X) > MoveEpsilon ||
		math.Abs(pos.Z-u.lastSentPos.Z) > MoveEpsilon ||
		math.Abs(rot-u.lastSentRot) > MoveEpsilon
}

// MarkSent records the transmitted pose and time.
func (u *UpdateThrottle) MarkSent(nowMs int64, pos Vec3, rot float64) {
	u.lastSendMs = nowMs
	u.lastSentPos = pos
	u.lastSentRot = rot
	u.sentAnything = true
}
