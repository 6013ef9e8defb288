// Package sim implements the client-side driving simulation: local car
// physics, the timed-state buffer used to smooth remote cars, and the
// outbound update throttle. The server and the bot client share these
// tunables; both sides must agree on them.
package sim

const (
	Acceleration  = 15.0 // units/s² applied while the throttle is held
	RotationSpeed = 2.5  // radians/s steering rate
	MaxSpeed      = 30.0 // planar speed cap, units/s
	Drag          = 0.95 // velocity multiplier per second (applied as Drag^dt)

	SendRate                = 20 // outbound updates per second, upper bound
	InterpolationBufferSize = 10 // timed states kept per remote car
	LerpFactor              = 0.2

	// InterpDelayMs is how far behind the newest known state the renderer
	// targets. Trades a fixed visible latency for smoothness over jittery
	// delivery intervals.
	InterpDelayMs = 100

	// StaleAfterMs is the age past which buffered states are pruned.
	StaleAfterMs = 1000

	// ExtrapolationBlend is the per-frame lerp toward the dead-reckoned
	// point, smoothing the onset of extrapolation instead of snapping.
	ExtrapolationBlend = 0.1

	// MaxFrameDelta caps dt so a stalled tab cannot blow up the integration.
	MaxFrameDelta = 0.1

	// GroundHeight pins the car vertically; there is no vertical physics.
	GroundHeight = 0.5

	// BackwardAccelFactor scales reverse acceleration relative to forward.
	BackwardAccelFactor = 0.6

	// SteerThreshold is the minimum planar speed before steering input
	// changes heading.
	SteerThreshold = 0.1

	// MoveEpsilon is the minimum position/rotation delta worth sending.
	MoveEpsilon = 0.01
)
