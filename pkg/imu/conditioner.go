package imu

import "math"

// Conditioner defaults.
const (
	DefaultAlpha          = 0.03
	DefaultMountingOffset = 0.05 // meters
	DefaultNoiseFloor     = 100  // rpm
)

// IIR is a per-axis exponential low-pass filter.
type IIR struct {
	Alpha float64
	State Vector
}

// Apply feeds a sample and returns the filtered value.
func (f *IIR) Apply(v Vector) Vector {
	for i := range f.State {
		f.State[i] = f.Alpha*v[i] + (1-f.Alpha)*f.State[i]
	}
	return f.State
}

// Conditioner filters samples, removes the calibration bias and derives
// angular velocity from centripetal acceleration on the X axis.
//
// MountingOffset is the assumed distance from the rotation axis to the
// sensor; it is not calibrated per unit so the estimate scales with its error.
type Conditioner struct {
	Calibration    Calibration
	MountingOffset float64
	NoiseFloor     float64

	// Raw is the filtered sample before bias removal.
	Raw Vector
	// Data is the filtered sample with bias removed.
	Data Vector

	filter IIR
}

// NewConditioner creates a Conditioner with defaults.
func NewConditioner(cal Calibration) *Conditioner {
	return &Conditioner{
		Calibration:    cal,
		MountingOffset: DefaultMountingOffset,
		NoiseFloor:     DefaultNoiseFloor,
		filter:         IIR{Alpha: DefaultAlpha},
	}
}

// SetAlpha changes the filter coefficient.
func (c *Conditioner) SetAlpha(alpha float64) {
	c.filter.Alpha = alpha
}

// Alpha returns the filter coefficient.
func (c *Conditioner) Alpha() float64 {
	return c.filter.Alpha
}

// Update processes one raw sample.
func (c *Conditioner) Update(raw Vector) Estimate {
	c.Raw = c.filter.Apply(raw)
	c.Data = c.Raw.Sub(Vector(c.Calibration))
	return Estimate{
		AngularVel: Gate(AngularVelocity(c.Data[X], c.MountingOffset), c.NoiseFloor),
	}
}

// AngularVelocity returns rpm from centripetal acceleration a = w^2 * r.
func AngularVelocity(accel, radius float64) float64 {
	return math.Sqrt(math.Abs(accel)/radius) * 60 / (2 * math.Pi)
}

// Gate returns rpm if it's strictly above floor, otherwise 0.
func Gate(rpm, floor float64) float64 {
	if rpm > floor {
		return rpm
	}
	return 0
}
