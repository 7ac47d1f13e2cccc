package node

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/spinbot/pkg/framework"
	"github.com/robotalks/spinbot/pkg/imu"
	"github.com/robotalks/spinbot/pkg/indicator"
	"github.com/robotalks/spinbot/pkg/link"
	"github.com/robotalks/spinbot/pkg/radio"
)

// Task names in scheduling order.
const (
	TaskSense = "sense"
	TaskRadio = "radio"
	TaskBlink = "blink"
)

// Node is the robot node.
type Node struct {
	Config    *Config
	State     *State
	Accel     imu.Accelerometer
	Radio     radio.Radio
	LED       *indicator.Indicator
	Battery   func() float64
	Scheduler *framework.Scheduler

	Transmitter *link.Transmitter
	Receiver    *link.Receiver
}

// New creates a Node.
func New(conf *Config, state *State, accel imu.Accelerometer, r radio.Radio, led *indicator.Indicator) *Node {
	n := &Node{
		Config:    conf,
		State:     state,
		Accel:     accel,
		Radio:     r,
		LED:       led,
		Scheduler: framework.NewScheduler(),
	}
	n.Transmitter = &link.Transmitter{
		Radio:  r,
		Encode: link.TelemetryEncoder(func() link.Telemetry { return n.State.Telemetry(conf.NodeID) }),
	}
	n.Receiver = &link.Receiver{
		Radio:   r,
		Handler: link.CommandHandler(link.Decoder{SourceID: conf.TransmitterID}, &state.Commands),
	}
	return n
}

// Calibrate measures the accelerometer bias at rest, then waits for the
// robot to settle.
func (n *Node) Calibrate(ctx context.Context) error {
	glog.Infof("IMU calibration start with %d samples", n.Config.CalibrationSamples)
	cal, err := imu.Calibrate(n.Accel, n.Config.CalibrationSamples)
	if err != nil {
		return err
	}
	n.State.Conditioner.Calibration = cal
	glog.Infof("IMU calibration complete: %v", cal)
	if n.Config.SettleDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-n.Scheduler.Clock.After(n.Config.SettleDelay):
		return nil
	}
}

// AddToScheduler implements framework.SchedulerAdder.
func (n *Node) AddToScheduler(s *framework.Scheduler) {
	s.Always(TaskSense, framework.TaskFunc(n.Sense))
	s.Every(TaskRadio, n.Config.RadioPeriod, framework.TaskFunc(n.Link))
	s.Every(TaskBlink, n.Config.BlinkPeriod, n.LED)
}

// Sense reads one sample and updates the estimate.
func (n *Node) Sense(framework.TickContext) error {
	raw, err := n.Accel.Acceleration()
	if err != nil {
		return fmt.Errorf("read accelerometer: %w", err)
	}
	n.State.Estimate = n.State.Conditioner.Update(raw)
	if n.Battery != nil {
		n.State.BatteryVolts = n.Battery()
	}
	return nil
}

// Link receives a command if enabled and sends telemetry.
func (n *Node) Link(tc framework.TickContext) error {
	if n.Config.ReceiveEnabled {
		if err := n.Receiver.RunTask(tc); err != nil {
			return err
		}
	}
	if err := n.Transmitter.RunTask(tc); err != nil {
		return err
	}
	glog.V(1).Infof("speed: %v rpm", n.State.Estimate.AngularVel)
	return nil
}

// Run implements framework.Runnable: calibrates and runs the main loop.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Calibrate(ctx); err != nil {
		return err
	}
	n.Scheduler.Add(n)
	return n.Scheduler.Run(ctx)
}

// Start opens the devices from config and runs the node until ctx is done
// or the loop fails. If the radio can't be opened, the failure pattern is
// shown on the LED until ctx is done.
func Start(ctx context.Context, conf *Config) error {
	out, err := OpenLED(conf)
	if err != nil {
		return fmt.Errorf("open LED: %w", err)
	}
	led := indicator.New(out)
	led.Pulse = conf.BlinkPulse

	r, err := OpenRadio(conf.RadioURL)
	if err != nil {
		glog.Errorf("radio failure: %v", err)
		led.Alarm(ctx)
		return fmt.Errorf("open radio: %w", err)
	}
	if closer, ok := r.(io.Closer); ok {
		defer closer.Close()
	}

	state := NewState(conf)
	hw, err := OpenHardware(conf, state.Commands.Load)
	if err != nil {
		return err
	}
	defer func() {
		if err := hw.Close(); err != nil {
			glog.Warningf("close hardware: %v", err)
		}
	}()

	n := New(conf, state, hw.Accel, r, led)
	n.Battery = hw.Battery

	runner := framework.NewRunnerWith(ctx)
	if bg, ok := r.(framework.Runnable); ok {
		runner.Go(framework.NamedRun("radio", bg))
	}
	return runner.Go(framework.NamedRun("node", n)).Wait()
}
