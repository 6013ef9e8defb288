package sim

import "math"

// Vec3 is a right-handed world-space vector. The driving plane is XZ;
// Y is up and stays pinned to GroundHeight for cars.
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// PlanarSpeed returns the XZ magnitude, ignoring Y.
func (v Vec3) PlanarSpeed() float64 {
	return math.Sqrt(v.X*v.X + v.Z*v.Z)
}

// Lerp returns the component-wise interpolation from v toward o at t.
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return Vec3{
		X: v.X + (o.X-v.X)*t,
		Y: v.Y + (o.Y-v.Y)*t,
		Z: v.Z + (o.Z-v.Z)*t,
	}
}

// InputState is the four-button control state of one car.
type InputState struct {
	Forward  bool `json:"forward" msgpack:"forward"`
	Backward bool `json:"backward" msgpack:"backward"`
	Left     bool `json:"left" msgpack:"left"`
	Right    bool `json:"right" msgpack:"right"`
}

// NormalizeAngle wraps a to [-π, π].
func NormalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// ShortAngleDist returns the signed shortest angular distance from a to b,
// so a + ShortAngleDist(a, b) reaches b the short way around.
func ShortAngleDist(a, b float64) float64 {
	const max = 2 * math.Pi
	da := math.Mod(b-a, max)
	return math.Mod(2*da, max) - da
}

// LerpAngle interpolates between two angles taking the short path.
func LerpAngle(from, to, t float64) float64 {
	return from + ShortAngleDist(from, to)*t
}

// sign matches JS Math.sign: -1, 0 or 1.
func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
