package sim

import "math"

// Car is the locally simulated vehicle. Position and rotation are the
// authoritative local pose; the server relays whatever the client reports.
type Car struct {
	Position Vec3
	Rotation float64 // radians around Y
	Velocity Vec3

	// Presentation state derived from the simulation. SteerAngle converges
	// toward π/2±0.5 while turning; WheelSpin accumulates with speed.
	SteerAngle float64
	WheelSpin  float64
}

// NewCar returns a car resting at the origin on the ground plane.
func NewCar() *Car {
	return &Car{
		Position:   Vec3{Y: GroundHeight},
		SteerAngle: math.Pi / 2,
	}
}

// Step integrates one frame. dt is in seconds and is clamped to
// MaxFrameDelta. Returns true if any input moved the car this frame.
func (c *Car) Step(input InputState, dt float64) bool {
	if dt > MaxFrameDelta {
		dt = MaxFrameDelta
	}
	if dt < 0 {
		dt = 0
	}

	moved := false

	if input.Forward {
		c.Velocity.Z -= math.Cos(c.Rotation) * Acceleration * dt
		c.Velocity.X -= math.Sin(c.Rotation) * Acceleration * dt
		moved = true
	}
	if input.Backward {
		c.Velocity.Z += math.Cos(c.Rotation) * Acceleration * BackwardAccelFactor * dt
		c.Velocity.X += math.Sin(c.Rotation) * Acceleration * BackwardAccelFactor * dt
		moved = true
	}

	// Steering only bites while the car is actually moving. sign(vz) flips
	// the steering direction in reverse, so backing up steers like a car.
	if c.Velocity.PlanarSpeed() > SteerThreshold {
		if input.Left {
			c.Rotation += RotationSpeed * dt * sign(c.Velocity.Z)
			moved = true
		}
		if input.Right {
			c.Rotation -= RotationSpeed * dt * sign(c.Velocity.Z)
			moved = true
		}
	}

	// Exponential drag, frame-rate independent.
	drag := math.Pow(Drag, dt)
	c.Velocity.X *= drag
	c.Velocity.Z *= drag

	if speed := c.Velocity.PlanarSpeed(); speed > MaxSpeed {
		scale := MaxSpeed / speed
		c.Velocity.X *= scale
		c.Velocity.Z *= scale
	}

	c.Position.X += c.Velocity.X * dt
	c.Position.Z += c.Velocity.Z * dt
	c.Position.Y = GroundHeight

	c.updateWheels(input, dt, moved)
	return moved
}

// updateWheels advances the presentation-only wheel state.
func (c *Car) updateWheels(input InputState, dt float64, moving bool) {
	speed := c.Velocity.PlanarSpeed()
	if moving {
		c.WheelSpin += speed * 2 * dt * sign(c.Velocity.Z)
	}

	target := math.Pi / 2
	if input.Left {
		target = math.Pi/2 - 0.5
	} else if input.Right {
		target = math.Pi/2 + 0.5
	}
	c.SteerAngle += (target - c.SteerAngle) * LerpFactor
}
