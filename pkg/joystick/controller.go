// Package joystick drives the transmitter from a game controller.
package joystick

import (
	"context"
	"math"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/spinbot/pkg/joystick/device"
)

// Target receives the controls.
type Target interface {
	Drive(x, y float64)
	Enable(on bool)
	Speed(on bool)
	Stop()
}

// Controller translates joystick events into controls. The enable and
// speed buttons toggle, the stop button resets everything.
type Controller struct {
	Target      Target
	DeviceIndex int
	Verbose     bool
	Deadzone    float64
	Retry       time.Duration
	Map         Mapping

	// Open is used to find the device.
	Open func(index int) (device.Device, error)

	x, y          float64
	enable, speed bool
}

// NewController creates a Controller.
func NewController(target Target) *Controller {
	return &Controller{
		Target:      target,
		DeviceIndex: defaultConfig.DeviceIndex,
		Verbose:     defaultConfig.Verbose,
		Deadzone:    defaultConfig.Deadzone,
		Retry:       defaultConfig.Retry,
		Map:         defaultConfig.Map,
		Open:        openDevice,
	}
}

func openDevice(index int) (device.Device, error) {
	if index >= 0 {
		return device.Open(index)
	}
	return device.DetectAndOpen(0)
}

// Run implements Runnable. It keeps reopening the device until the
// context is canceled.
func (c *Controller) Run(ctx context.Context) error {
	for {
		js, err := c.Open(c.DeviceIndex)
		if err != nil {
			glog.V(1).Infof("open joystick: %v", err)
		} else {
			glog.Infof("joystick %d %q opened", js.Index(), js.Name())
			err = c.poll(ctx, js)
			glog.Warningf("joystick %d closed: %v", js.Index(), err)
			c.Target.Stop()
			c.x, c.y, c.enable, c.speed = 0, 0, false, false
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Retry):
		}
	}
}

func (c *Controller) poll(ctx context.Context, js device.Device) error {
	events := make(chan device.Event)
	errCh := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		for {
			ev, err := js.ReadEvent()
			if err != nil {
				errCh <- err
				close(events)
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()
	defer func() {
		close(done)
		js.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return <-errCh
			}
			c.Handle(ev)
		}
	}
}

// Handle applies a single event.
func (c *Controller) Handle(ev device.Event) {
	switch evt := ev.(type) {
	case device.AxisEvent:
		if c.Verbose {
			glog.Infof("axis %d: %d init=%v", evt.Index(), evt.Value(), evt.IsInit())
		}
		switch evt.Index() {
		case c.Map.AxisX:
			c.x = c.scale(evt.Value())
		case c.Map.AxisY:
			// up is negative on the device.
			c.y = -c.scale(evt.Value())
		default:
			return
		}
		c.Target.Drive(c.x, c.y)
	case device.ButtonEvent:
		if c.Verbose {
			glog.Infof("button %d: %v init=%v", evt.Index(), evt.Pressed(), evt.IsInit())
		}
		if !evt.Pressed() || evt.IsInit() {
			return
		}
		switch evt.Index() {
		case c.Map.ButtonEnable:
			c.enable = !c.enable
			c.Target.Enable(c.enable)
		case c.Map.ButtonSpeed:
			c.speed = !c.speed
			c.Target.Speed(c.speed)
		case c.Map.ButtonStop:
			c.x, c.y, c.enable, c.speed = 0, 0, false, false
			c.Target.Stop()
		}
	}
}

func (c *Controller) scale(val int) float64 {
	v := float64(val) / device.MaxAxisValue
	if math.Abs(v) < c.Deadzone {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
