package sim

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
)

// Battery simulates a 2S LiPo pack draining linearly.
type Battery struct {
	Full  float64
	Empty float64
	// Drain is the voltage lost per hour.
	Drain float64
	Clock clock.Clock

	start time.Time
}

// NewBattery creates a fully charged Battery.
func NewBattery(clk clock.Clock) *Battery {
	if clk == nil {
		clk = clock.New()
	}
	return &Battery{Full: 8.4, Empty: 6.6, Drain: 0.9, Clock: clk, start: clk.Now()}
}

// Volts returns the current voltage.
func (b *Battery) Volts() float64 {
	hours := b.Clock.Since(b.start).Hours()
	return math.Max(b.Empty, b.Full-b.Drain*hours)
}
