package sim

// RemoteCar mirrors one other player's car for rendering. Its pose is
// produced each frame from the timed-state buffer: interpolated between the
// two samples straddling renderTime when possible, dead-reckoned from the
// last known velocity otherwise, held in place as a last resort.
type RemoteCar struct {
	ID   string
	Name string

	Buffer *StateBuffer

	Position Vec3
	Rotation float64

	// Input is the last input echo received for this car, kept for
	// prediction between full state updates.
	Input InputState

	// lastVelocity and angularVelocity feed extrapolation when the buffer
	// runs dry.
	lastVelocity    *Vec3
	angularVelocity float64
	hasAngular      bool

	initialized bool
}

// NewRemoteCar creates a view for a newly seen player at its reported pose.
func NewRemoteCar(id, name string, pos Vec3, rot float64) *RemoteCar {
	return &RemoteCar{
		ID:          id,
		Name:        name,
		Buffer:      NewStateBuffer(InterpolationBufferSize),
		Position:    pos,
		Rotation:    rot,
		initialized: true,
	}
}

// Observe records a relayed state sample. nowMs is the local receipt time,
// used as the timestamp fallback and for the angular-velocity estimate.
func (r *RemoteCar) Observe(s TimedState, nowMs int64) {
	if s.Timestamp == 0 {
		s.Timestamp = nowMs
	}
	if prev, ok := r.Buffer.Newest(); ok && s.Timestamp > prev.Timestamp {
		dt := float64(s.Timestamp-prev.Timestamp) / 1000
		r.angularVelocity = ShortAngleDist(prev.Rotation, s.Rotation) / dt
		r.hasAngular = true
	}
	if s.Velocity != nil {
		v := *s.Velocity
		r.lastVelocity = &v
	}
	r.Buffer.Push(s)
}

// Advance produces this frame's pose. nowMs is the local clock in unix
// milliseconds. With an empty buffer the previous pose is held.
func (r *RemoteCar) Advance(nowMs int64) (Vec3, float64) {
	if r.Buffer.Len() == 0 {
		return r.Position, r.Rotation
	}

	renderTime := nowMs - InterpDelayMs

	// Prune first, then pick the target from what survived. The prune keeps
	// the newest entry unconditionally, so a target always exists.
	r.Buffer.Prune(nowMs - StaleAfterMs)

	idx, _ := r.Buffer.TargetIndex(renderTime)
	target := r.Buffer.At(idx)

	switch {
	case idx < r.Buffer.Len()-1:
		next := r.Buffer.At(idx + 1)
		span := next.Timestamp - target.Timestamp
		alpha := 1.0
		if span > 0 {
			alpha = float64(renderTime-target.Timestamp) / float64(span)
		}
		if alpha < 0 {
			alpha = 0
		} else if alpha > 1 {
			alpha = 1
		}
		r.Position = target.Position.Lerp(next.Position, alpha)
		r.Rotation = target.Rotation + ShortAngleDist(target.Rotation, next.Rotation)*alpha

	case r.lastVelocity != nil:
		// No newer sample: dead-reckon from the last known velocity and
		// blend toward the projected point instead of snapping.
		elapsed := float64(nowMs-target.Timestamp) / 1000
		projected := Vec3{
			X: target.Position.X + r.lastVelocity.X*elapsed,
			Y: target.Position.Y,
			Z: target.Position.Z + r.lastVelocity.Z*elapsed,
		}
		r.Position = r.Position.Lerp(projected, ExtrapolationBlend)
		if r.hasAngular {
			r.Rotation = target.Rotation + r.angularVelocity*elapsed
		} else {
			r.Rotation = target.Rotation
		}

	default:
		r.Position = target.Position
		r.Rotation = target.Rotation
	}

	return r.Position, r.Rotation
}

// Reset clears the sample history, keeping the current pose. Used when the
// connection drops and the roster is rebuilt.
func (r *RemoteCar) Reset() {
	r.Buffer.Reset()
	r.lastVelocity = nil
	r.hasAngular = false
}
