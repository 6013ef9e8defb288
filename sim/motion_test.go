package sim

import (
	"math"
	"testing"
)

func TestStepForwardAcceleratesAlongHeading(t *testing.T) {
	c := NewCar()
	c.Step(InputState{Forward: true}, 0.1)

	if c.Velocity.Z >= 0 {
		t.Errorf("forward at rotation 0 should push -Z, got vz=%f", c.Velocity.Z)
	}
	if math.Abs(c.Velocity.X) > 1e-9 {
		t.Errorf("forward at rotation 0 should not push X, got vx=%f", c.Velocity.X)
	}
	if c.Position.Z >= 0 {
		t.Errorf("position should have moved -Z, got %f", c.Position.Z)
	}
}

func TestBackwardUsesReducedAcceleration(t *testing.T) {
	fwd := NewCar()
	fwd.Step(InputState{Forward: true}, 0.1)
	back := NewCar()
	back.Step(InputState{Backward: true}, 0.1)

	ratio := back.Velocity.Z / -fwd.Velocity.Z
	if math.Abs(ratio-BackwardAccelFactor) > 1e-9 {
		t.Errorf("reverse acceleration ratio = %f, want %f", ratio, BackwardAccelFactor)
	}
}

func TestSteeringRequiresSpeed(t *testing.T) {
	c := NewCar()
	c.Step(InputState{Left: true}, 0.1)
	if c.Rotation != 0 {
		t.Errorf("steering at rest changed rotation to %f", c.Rotation)
	}

	// Moving forward (vz < 0): left steer decreases rotation via sign(vz).
	c.Velocity = Vec3{Z: -5}
	c.Step(InputState{Left: true}, 0.1)
	if c.Rotation >= 0 {
		t.Errorf("left steer moving forward should decrease rotation, got %f", c.Rotation)
	}

	// In reverse (vz > 0) the same input steers the other way.
	r := NewCar()
	r.Velocity = Vec3{Z: 5}
	r.Step(InputState{Left: true}, 0.1)
	if r.Rotation <= 0 {
		t.Errorf("left steer in reverse should increase rotation, got %f", r.Rotation)
	}
}

func TestSpeedClampPreservesDirection(t *testing.T) {
	c := NewCar()
	c.Velocity = Vec3{X: 40, Z: 30} // magnitude 50, over the cap

	c.Step(InputState{}, 0.001)

	speed := c.Velocity.PlanarSpeed()
	if math.Abs(speed-MaxSpeed) > 1e-9 {
		t.Errorf("clamped speed = %f, want %f", speed, MaxSpeed)
	}
	// Direction must survive the rescale: cosine similarity with (40,30).
	dot := c.Velocity.X*40 + c.Velocity.Z*30
	cos := dot / (speed * 50)
	if math.Abs(cos-1) > 1e-9 {
		t.Errorf("clamp changed direction, cosine similarity = %f", cos)
	}
}

func TestDragIsFrameRateIndependent(t *testing.T) {
	a := NewCar()
	a.Velocity = Vec3{X: 10, Z: -10}
	b := NewCar()
	b.Velocity = Vec3{X: 10, Z: -10}

	a.Step(InputState{}, 0.1)
	b.Step(InputState{}, 0.05)
	b.Step(InputState{}, 0.05)

	if math.Abs(a.Velocity.X-b.Velocity.X) > 1e-9 || math.Abs(a.Velocity.Z-b.Velocity.Z) > 1e-9 {
		t.Errorf("drag depends on frame rate: one step %v, two steps %v", a.Velocity, b.Velocity)
	}
}

func TestStepClampsLargeDelta(t *testing.T) {
	a := NewCar()
	a.Step(InputState{Forward: true}, 10) // stalled tab
	b := NewCar()
	b.Step(InputState{Forward: true}, MaxFrameDelta)

	if a.Velocity != b.Velocity || a.Position != b.Position {
		t.Errorf("dt=10 should behave as dt=%v: got %v vs %v", MaxFrameDelta, a.Position, b.Position)
	}
}

func TestSteerAngleConvergesTowardTarget(t *testing.T) {
	c := NewCar()
	c.Velocity = Vec3{Z: -5}
	for i := 0; i < 100; i++ {
		c.Step(InputState{Forward: true, Left: true}, 0.016)
	}
	want := math.Pi/2 - 0.5
	if math.Abs(c.SteerAngle-want) > 0.01 {
		t.Errorf("steer angle = %f, want near %f", c.SteerAngle, want)
	}

	// Released input converges back to straight.
	for i := 0; i < 100; i++ {
		c.Step(InputState{}, 0.016)
	}
	if math.Abs(c.SteerAngle-math.Pi/2) > 0.01 {
		t.Errorf("steer angle after release = %f, want near %f", c.SteerAngle, math.Pi/2)
	}
}

func TestShortAngleDistWrapsTheShortWay(t *testing.T) {
	d := ShortAngleDist(0.1, 2*math.Pi-0.1)
	if math.Abs(d-(-0.2)) > 1e-9 {
		t.Errorf("ShortAngleDist(0.1, 2π-0.1) = %f, want -0.2", d)
	}

	d = ShortAngleDist(2*math.Pi-0.1, 0.1)
	if math.Abs(d-0.2) > 1e-9 {
		t.Errorf("ShortAngleDist(2π-0.1, 0.1) = %f, want 0.2", d)
	}
}
