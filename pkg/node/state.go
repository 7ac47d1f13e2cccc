// Package node assembles the robot node: sensing, radio link and status
// indicator scheduled in a single cooperative loop.
package node

import (
	"math"

	"github.com/robotalks/spinbot/pkg/imu"
	"github.com/robotalks/spinbot/pkg/link"
)

// MotorAngleOffsets are the mounting angles of the four motors.
var MotorAngleOffsets = [4]float64{
	-0.25 * math.Pi,
	0.25 * math.Pi,
	-0.75 * math.Pi,
	0.75 * math.Pi,
}

// State is the mutable state of the node. Within the loop every field has
// a single writer per tick.
type State struct {
	Conditioner  *imu.Conditioner
	Estimate     imu.Estimate
	BatteryVolts float64
	Commands     link.Commands

	// Motor actuation is not driven yet.
	MotorAngleOffsets [4]float64
	MotorPowers       [4]float64
}

// NewState creates the State. The conditioner is uncalibrated.
func NewState(conf *Config) *State {
	c := imu.NewConditioner(imu.Calibration{})
	c.SetAlpha(conf.Alpha)
	c.MountingOffset = conf.MountingOffset
	c.NoiseFloor = conf.NoiseFloor
	return &State{Conditioner: c, MotorAngleOffsets: MotorAngleOffsets}
}

// Telemetry builds the outbound record.
func (s *State) Telemetry(id int) link.Telemetry {
	return link.Telemetry{
		ID:           id,
		BatteryVolts: s.BatteryVolts,
		AngularVel:   s.Estimate.AngularVel,
		AngularDir:   s.Estimate.AngularDir,
	}
}
