package sim

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/robotalks/spinbot/pkg/imu"
	"github.com/robotalks/spinbot/pkg/link"
)

// Spinner defaults.
const (
	DefaultRadius = 0.05
	DefaultMaxRPM = 1200
	DefaultRamp   = 600
	DefaultNoise  = 0.05
)

// Spinner simulates an accelerometer mounted on the spinning robot.
// The sensor X axis points away from the rotation axis, rotated by Mount
// in the rotation plane, and Z is vertical.
type Spinner struct {
	// Radius is the distance from the rotation axis in meters.
	Radius float64
	Mount  Angle
	// MaxRPM is reached with speed enabled, half of it otherwise.
	MaxRPM float64
	// Ramp is the rate of speed change in rpm/s.
	Ramp float64
	// Noise is the standard deviation of sample noise in m/s^2.
	Noise float64
	// Commands provides the latest command, the robot spins down if nil.
	Commands func() link.CommandState
	Clock    clock.Clock

	lock sync.Mutex
	rpm  float64
	last time.Time
	rnd  *rand.Rand
}

// NewSpinner creates a Spinner with default settings.
func NewSpinner(seed int64) *Spinner {
	return &Spinner{
		Radius: DefaultRadius,
		MaxRPM: DefaultMaxRPM,
		Ramp:   DefaultRamp,
		Noise:  DefaultNoise,
		Clock:  clock.New(),
		rnd:    rand.New(rand.NewSource(seed)),
	}
}

// RPM returns the current speed.
func (s *Spinner) RPM() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.rpm
}

// SetRPM forces the current speed.
func (s *Spinner) SetRPM(rpm float64) {
	s.lock.Lock()
	s.rpm = rpm
	s.lock.Unlock()
}

// Acceleration implements imu.Accelerometer.
func (s *Spinner) Acceleration() (imu.Vector, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.advance()
	w := s.rpm * 2 * math.Pi / 60
	x, y := s.Mount.Project(w * w * s.Radius)
	return imu.Vector{
		x + s.noise(),
		y + s.noise(),
		imu.StandardGravity + s.noise(),
	}, nil
}

func (s *Spinner) target() float64 {
	if s.Commands == nil {
		return 0
	}
	cmd := s.Commands()
	switch {
	case !cmd.Enable:
		return 0
	case cmd.VelSP:
		return s.MaxRPM
	default:
		return s.MaxRPM / 2
	}
}

func (s *Spinner) advance() {
	if s.Clock == nil {
		s.Clock = clock.New()
	}
	now := s.Clock.Now()
	if s.last.IsZero() {
		s.last = now
		return
	}
	dt := now.Sub(s.last).Seconds()
	s.last = now
	step := s.Ramp * dt
	if target := s.target(); s.rpm < target {
		s.rpm = math.Min(target, s.rpm+step)
	} else {
		s.rpm = math.Max(target, s.rpm-step)
	}
}

func (s *Spinner) noise() float64 {
	if s.Noise == 0 {
		return 0
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(1))
	}
	return s.rnd.NormFloat64() * s.Noise
}
