package node

import (
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/robotalks/spinbot/pkg/framework"
	"github.com/robotalks/spinbot/pkg/imu"
	"github.com/robotalks/spinbot/pkg/imu/h3lis331"
	"github.com/robotalks/spinbot/pkg/indicator"
	"github.com/robotalks/spinbot/pkg/link"
	"github.com/robotalks/spinbot/pkg/sim"
)

// Hardware is the set of devices used by the node.
type Hardware struct {
	Accel imu.Accelerometer
	// Battery reads the pack voltage, nil if not wired.
	Battery func() float64
	// Spinner is set when the robot is simulated.
	Spinner *sim.Spinner

	closers []io.Closer
}

// OpenLED opens the status LED, which is needed first to report failures.
func OpenLED(conf *Config) (indicator.Output, error) {
	if conf.Simulate {
		return indicator.LogOutput{}, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	pin, err := indicator.OpenPin(conf.LEDPin)
	if err != nil {
		return nil, err
	}
	return pin, nil
}

// OpenHardware opens the accelerometer. Simulated hardware follows the
// commands provided by cmds.
func OpenHardware(conf *Config, cmds func() link.CommandState) (*Hardware, error) {
	hw := &Hardware{}
	if conf.Simulate {
		hw.Spinner = sim.NewSpinner(time.Now().UnixNano())
		hw.Spinner.Radius = conf.MountingOffset
		hw.Spinner.Commands = cmds
		hw.Accel = hw.Spinner
		hw.Battery = sim.NewBattery(nil).Volts
		return hw, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	rate, err := h3lis331.RateFromHz(conf.IMURate)
	if err != nil {
		return nil, err
	}
	rng, err := h3lis331.RangeFromG(conf.IMURange)
	if err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(conf.IMUBus)
	if err != nil {
		return nil, fmt.Errorf("open I2C %q: %w", conf.IMUBus, err)
	}
	dev, err := h3lis331.New(bus, &h3lis331.Opts{Addr: conf.IMUAddr, Rate: rate, Range: rng})
	if err != nil {
		bus.Close()
		return nil, err
	}
	glog.Infof("I2C device H3LIS331 present: %s", dev)
	hw.Accel = dev
	hw.closers = append(hw.closers, bus)
	return hw, nil
}

// Close releases the buses.
func (h *Hardware) Close() error {
	var errs framework.AggregatedError
	for _, c := range h.closers {
		if err := c.Close(); err != nil {
			errs.Add(err)
		}
	}
	return errs.Aggregate()
}
