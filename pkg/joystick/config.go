package joystick

import (
	"flag"
	"time"
)

// Config defines the configurations for the controller.
type Config struct {
	// DeviceIndex selects the joystick, -1 for auto detection.
	DeviceIndex int
	Verbose     bool
	// Deadzone is the fraction of full scale treated as centered.
	Deadzone float64
	// Retry is the interval between attempts to open the device.
	Retry time.Duration
	Map   Mapping
}

// Mapping assigns the controls.
type Mapping struct {
	AxisX        int
	AxisY        int
	ButtonEnable int
	ButtonSpeed  int
	ButtonStop   int
}

var defaultConfig = Config{
	DeviceIndex: -1,
	Deadzone:    0.05,
	Retry:       time.Second,
	Map: Mapping{
		AxisX:        0,
		AxisY:        1,
		ButtonEnable: 0,
		ButtonSpeed:  1,
		ButtonStop:   2,
	},
}

// SetupFlags sets command line flags.
func SetupFlags() {
	c := &defaultConfig
	flag.IntVar(&c.DeviceIndex, "joystick-device", c.DeviceIndex, "Joystick device index, -1 for auto detection.")
	flag.BoolVar(&c.Verbose, "joystick-verbose", c.Verbose, "Print Joystick events.")
	flag.Float64Var(&c.Deadzone, "joystick-deadzone", c.Deadzone, "Fraction of axis range treated as centered.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewController creates a controller using the config.
func (c *Config) NewController(target Target) *Controller {
	ctl := NewController(target)
	ctl.DeviceIndex = c.DeviceIndex
	ctl.Verbose = c.Verbose
	ctl.Deadzone = c.Deadzone
	ctl.Retry = c.Retry
	ctl.Map = c.Map
	return ctl
}
