// Package sh provides the interactive shell of the transmitter.
package sh

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/spinbot/pkg/framework"
	"github.com/robotalks/spinbot/pkg/joystick"
	"github.com/robotalks/spinbot/pkg/link"
	"github.com/robotalks/spinbot/pkg/node"
)

// Config provides the options of the transmitter.
type Config struct {
	// RadioURL selects the radio transport, see node.OpenRadio.
	RadioURL string
	ID       int
	RobotID  int
	Period   time.Duration
	// Joystick drives the station from a game controller.
	Joystick bool
}

var defaultConfig = Config{
	RadioURL: "mqtt://localhost:1883/spinbot/air/",
	ID:       link.TransmitterNodeID,
	RobotID:  link.RobotNodeID,
	Period:   DefaultPeriod,
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Config  *Config
	Station *Station

	cancel func()
	done   chan error
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&DriveCmd,
		&EnableCmd,
		&SpeedCmd,
		&StopCmd,
		&StatusCmd,
	}
)

func init() {
	if val := os.Getenv("SPINBOT_RADIO_URL"); val != "" {
		defaultConfig.RadioURL = val
	}
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// SetupFlags sets command line flags.
func SetupFlags() {
	c := &defaultConfig
	flag.StringVar(&c.RadioURL, "radio", c.RadioURL, "Radio URL")
	flag.IntVar(&c.ID, "id", c.ID, "Node ID of the transmitter")
	flag.IntVar(&c.RobotID, "robot-id", c.RobotID, "Node ID of the robot")
	flag.DurationVar(&c.Period, "period", c.Period, "Command transmit period")
	flag.BoolVar(&c.Joystick, "joystick", c.Joystick, "Drive with a joystick")
	joystick.SetupFlags()
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(fmt.Sprintf("[%d] > ", conf.RobotID))
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Open opens the radio and starts the station in background.
func (s *Shell) Open() error {
	r, err := node.OpenRadio(s.Config.RadioURL)
	if err != nil {
		return err
	}
	s.Station = NewStation(r, s.Config.ID, s.Config.RobotID)
	s.Station.Period = s.Config.Period

	ctx, cancel := context.WithCancel(context.Background())
	runner := framework.NewRunnerWith(ctx)
	if bg, ok := r.(framework.Runnable); ok {
		runner.Go(framework.NamedRun("radio", bg))
	}
	runner.Go(framework.NamedRun("station", s.Station))
	if s.Config.Joystick {
		runner.Go(framework.NamedRun("joystick", joystick.Default().NewController(s.Station)))
	}
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() {
		s.done <- runner.Wait()
		if closer, ok := r.(io.Closer); ok {
			closer.Close()
		}
	}()
	return nil
}

// Close stops the station and closes the radio.
func (s *Shell) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.cancel = nil
	return <-s.done
}

// Run runs the shell. With args, it executes them as a single command and
// sends the resulting command once before returning.
func (s *Shell) Run(args ...string) (err error) {
	if err := s.Open(); err != nil {
		return fmt.Errorf("open radio %q failed: %w", s.Config.RadioURL, err)
	}
	defer func() {
		if cerr := s.Close(); err == nil && cerr != nil && !errors.Is(cerr, context.Canceled) {
			err = cerr
		}
	}()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			return err
		}
		return s.Station.Flush()
	}
	if !s.Interactive {
		return fmt.Errorf("command expected")
	}
	s.Shell.Run()
	return nil
}

// ParseOnOff parses a switch argument.
func ParseOnOff(arg string) (bool, error) {
	switch arg {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch %q, expect on or off", arg)
}

func switchCmd(name, help string, apply func(*Station, bool)) ishell.Cmd {
	return ishell.Cmd{
		Name: name,
		Help: help,
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("on or off required"))
				return
			}
			on, err := ParseOnOff(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			apply(ShellFrom(c).Station, on)
		},
	}
}

// FormatStatus prints the command and the latest telemetry for display.
func FormatStatus(cmd link.Command, t *StationTelemetry, now time.Time) string {
	out := fmt.Sprintf("tx=%v ty=%v enable=%v speed=%v", cmd.TransX, cmd.TransY, bool(cmd.Enable), bool(cmd.VelSP))
	if t == nil {
		return out + "\nno telemetry"
	}
	return out + fmt.Sprintf("\nbattery=%.2fV speed=%.1frpm (%v ago)",
		t.BatteryVolts, t.AngularVel, now.Sub(t.At).Round(time.Millisecond))
}

var (
	// DriveCmd sets the translation.
	DriveCmd = ishell.Cmd{
		Name:    "drive",
		Aliases: []string{"d"},
		Help:    "TX TY",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("TX and TY required"))
				return
			}
			x, err := strconv.ParseFloat(c.Args[0], 64)
			if err != nil {
				c.Err(fmt.Errorf("Invalid TX: %v", err))
				return
			}
			y, err := strconv.ParseFloat(c.Args[1], 64)
			if err != nil {
				c.Err(fmt.Errorf("Invalid TY: %v", err))
				return
			}
			ShellFrom(c).Station.Drive(x, y)
		},
	}

	// EnableCmd enables the robot.
	EnableCmd = switchCmd("enable", "on|off", (*Station).Enable)

	// SpeedCmd selects full speed.
	SpeedCmd = switchCmd("speed", "on|off", (*Station).Speed)

	// StopCmd resets all controls.
	StopCmd = ishell.Cmd{
		Name:    "stop",
		Aliases: []string{"s"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Station.Stop()
		},
	}

	// StatusCmd shows the command and the latest telemetry.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			cmd, t := s.Station.Command(), s.Station.Telemetry()
			if s.OutputJSON {
				out, err := json.Marshal(map[string]interface{}{"command": cmd, "telemetry": t})
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			c.Println(FormatStatus(cmd, t, s.Station.Scheduler.Clock.Now()))
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	if err := New(NewConfig()).Run(flag.Args()...); err != nil {
		log.Fatalln(err)
	}
}
