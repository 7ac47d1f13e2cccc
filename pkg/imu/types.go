// Package imu turns raw accelerometer samples into an angular velocity
// estimate for a spinning robot.
package imu

import "errors"

// Axes.
const (
	X = iota
	Y
	Z
)

// StandardGravity in m/s^2.
const StandardGravity = 9.80665

// Vector is a 3-axis acceleration sample in m/s^2.
type Vector [3]float64

// Calibration is the per-axis bias measured at rest.
type Calibration Vector

// Estimate is the angular state derived from one sample.
type Estimate struct {
	// AngularVel is the rotation speed in rpm, 0 below the noise floor.
	AngularVel float64
	// AngularDir is reserved, always 0.
	AngularDir float64
}

// Accelerometer reads acceleration.
type Accelerometer interface {
	Acceleration() (Vector, error)
}

// AccelerometerFunc is the func form of Accelerometer.
type AccelerometerFunc func() (Vector, error)

// Acceleration implements Accelerometer.
func (f AccelerometerFunc) Acceleration() (Vector, error) {
	return f()
}

// ErrNoSamples indicates calibration is requested with no samples.
var ErrNoSamples = errors.New("calibration requires at least one sample")

// Sub returns v - b.
func (v Vector) Sub(b Vector) Vector {
	return Vector{v[X] - b[X], v[Y] - b[Y], v[Z] - b[Z]}
}
