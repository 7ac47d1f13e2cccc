package node

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/spinbot/pkg/framework"
	"github.com/robotalks/spinbot/pkg/imu"
	"github.com/robotalks/spinbot/pkg/imu/h3lis331"
	"github.com/robotalks/spinbot/pkg/indicator"
	"github.com/robotalks/spinbot/pkg/link"
)

// Config provides the options of the robot node.
type Config struct {
	NodeID        int `yaml:"node_id"`
	TransmitterID int `yaml:"transmitter_id"`

	// RadioURL selects the radio transport, e.g.
	// rfm69://SPI0.0?reset=GPIO25&freq=915&power=5
	// mqtt://localhost:1883/spinbot/air/?channel=915
	RadioURL string `yaml:"radio_url"`

	IMUBus   string `yaml:"imu_bus"`
	IMUAddr  uint16 `yaml:"imu_addr"`
	IMURate  int    `yaml:"imu_rate"`
	IMURange int    `yaml:"imu_range"`

	CalibrationSamples int           `yaml:"calibration_samples"`
	SettleDelay        time.Duration `yaml:"settle_delay"`
	Alpha              float64       `yaml:"alpha"`
	MountingOffset     float64       `yaml:"mounting_offset"`
	NoiseFloor         float64       `yaml:"noise_floor"`

	RadioPeriod time.Duration `yaml:"radio_period"`
	BlinkPeriod time.Duration `yaml:"blink_period"`
	BlinkPulse  time.Duration `yaml:"blink_pulse"`
	// ReceiveEnabled schedules the command receive task with transmit.
	ReceiveEnabled bool   `yaml:"receive_enabled"`
	LEDPin         string `yaml:"led_pin"`
	// Simulate replaces the accelerometer and the LED with simulated ones.
	Simulate bool `yaml:"simulate"`
}

var defaultConfig = Config{
	NodeID:             link.RobotNodeID,
	TransmitterID:      link.TransmitterNodeID,
	RadioURL:           "rfm69://SPI0.0?reset=GPIO25&freq=915&power=5",
	IMUAddr:            h3lis331.DefaultAddr,
	IMURate:            1000,
	IMURange:           400,
	CalibrationSamples: imu.DefaultCalibrationSamples,
	SettleDelay:        3 * time.Second,
	Alpha:              imu.DefaultAlpha,
	MountingOffset:     imu.DefaultMountingOffset,
	NoiseFloor:         imu.DefaultNoiseFloor,
	RadioPeriod:        100 * time.Millisecond,
	BlinkPeriod:        time.Second,
	BlinkPulse:         indicator.DefaultPulse,
	LEDPin:             "GPIO13",
}

var configFile string

func init() {
	if val := os.Getenv("SPINBOT_RADIO_URL"); val != "" {
		defaultConfig.RadioURL = val
	}
	if val := os.Getenv("SPINBOT_CONFIG"); val != "" {
		configFile = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	c := &defaultConfig
	flag.StringVar(&configFile, "config", configFile, "YAML config file, loaded before flags apply")
	flag.IntVar(&c.NodeID, "node-id", c.NodeID, "Node ID of the robot")
	flag.IntVar(&c.TransmitterID, "transmitter-id", c.TransmitterID, "Node ID of the transmitter")
	flag.StringVar(&c.RadioURL, "radio", c.RadioURL, "Radio URL")
	flag.StringVar(&c.IMUBus, "imu-bus", c.IMUBus, "I2C bus of the accelerometer")
	flag.IntVar(&c.IMURate, "imu-rate", c.IMURate, "Accelerometer data rate in Hz")
	flag.IntVar(&c.IMURange, "imu-range", c.IMURange, "Accelerometer range in g")
	flag.IntVar(&c.CalibrationSamples, "cal-samples", c.CalibrationSamples, "Number of calibration samples")
	flag.DurationVar(&c.SettleDelay, "settle", c.SettleDelay, "Delay after calibration")
	flag.Float64Var(&c.Alpha, "alpha", c.Alpha, "IIR filter coefficient")
	flag.Float64Var(&c.MountingOffset, "mount-offset", c.MountingOffset, "Accelerometer distance from the rotation axis in meters")
	flag.Float64Var(&c.NoiseFloor, "noise-floor", c.NoiseFloor, "Angular velocity below this (rpm) reads 0")
	flag.DurationVar(&c.RadioPeriod, "radio-period", c.RadioPeriod, "Radio task period")
	flag.DurationVar(&c.BlinkPeriod, "blink-period", c.BlinkPeriod, "Heartbeat blink period")
	flag.BoolVar(&c.ReceiveEnabled, "receive", c.ReceiveEnabled, "Receive commands from the transmitter")
	flag.StringVar(&c.LEDPin, "led", c.LEDPin, "GPIO pin of the status LED")
	flag.BoolVar(&c.Simulate, "sim", c.Simulate, "Simulate the accelerometer and LED")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load creates the Config from defaults, the config file and the command
// line. It must be called after flag.Parse.
func Load() (*Config, error) {
	conf := NewConfig()
	if configFile == "" {
		return conf, conf.Validate()
	}
	if err := conf.LoadFile(configFile); err != nil {
		return nil, err
	}
	// flags set explicitly override the file.
	explicit := NewConfig()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			return
		}
		conf.applyFlag(f.Name, explicit)
	})
	return conf, conf.Validate()
}

// MustLoad loads the Config and fails on error.
func MustLoad() *Config {
	conf, err := Load()
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

// LoadFile overlays the YAML file onto the config.
func (c *Config) LoadFile(fn string) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config %s: %w", fn, err)
	}
	return nil
}

func (c *Config) applyFlag(name string, from *Config) {
	switch name {
	case "node-id":
		c.NodeID = from.NodeID
	case "transmitter-id":
		c.TransmitterID = from.TransmitterID
	case "radio":
		c.RadioURL = from.RadioURL
	case "imu-bus":
		c.IMUBus = from.IMUBus
	case "imu-rate":
		c.IMURate = from.IMURate
	case "imu-range":
		c.IMURange = from.IMURange
	case "cal-samples":
		c.CalibrationSamples = from.CalibrationSamples
	case "settle":
		c.SettleDelay = from.SettleDelay
	case "alpha":
		c.Alpha = from.Alpha
	case "mount-offset":
		c.MountingOffset = from.MountingOffset
	case "noise-floor":
		c.NoiseFloor = from.NoiseFloor
	case "radio-period":
		c.RadioPeriod = from.RadioPeriod
	case "blink-period":
		c.BlinkPeriod = from.BlinkPeriod
	case "receive":
		c.ReceiveEnabled = from.ReceiveEnabled
	case "led":
		c.LEDPin = from.LEDPin
	case "sim":
		c.Simulate = from.Simulate
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	var errs framework.AggregatedError
	if c.CalibrationSamples <= 0 {
		errs.Add(fmt.Errorf("calibration samples must be positive"))
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		errs.Add(fmt.Errorf("alpha %v out of (0, 1]", c.Alpha))
	}
	if c.MountingOffset <= 0 {
		errs.Add(fmt.Errorf("mounting offset must be positive"))
	}
	if c.RadioPeriod <= 0 || c.BlinkPeriod <= 0 {
		errs.Add(fmt.Errorf("task periods must be positive"))
	}
	if c.RadioURL == "" {
		errs.Add(fmt.Errorf("radio URL is required"))
	}
	return errs.Aggregate()
}
