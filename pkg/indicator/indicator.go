// Package indicator drives the status LED.
package indicator

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/robotalks/spinbot/pkg/framework"
)

// Defaults of the blink patterns.
const (
	DefaultPulse       = 25 * time.Millisecond
	DefaultAlarmToggle = 500 * time.Millisecond
	DefaultAlarmPause  = 3 * time.Second
	AlarmToggles       = 6
)

// Output is a boolean output.
type Output interface {
	Set(on bool) error
}

// OutputFunc is the func form of Output.
type OutputFunc func(on bool) error

// Set implements Output.
func (f OutputFunc) Set(on bool) error {
	return f(on)
}

// Pin is a GPIO output.
type Pin struct {
	gpio.PinOut
}

// OpenPin looks up a GPIO pin by name and drives it low.
func OpenPin(name string) (*Pin, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown gpio pin %q", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("gpio %s: %w", name, err)
	}
	return &Pin{PinOut: p}, nil
}

// Set implements Output.
func (p *Pin) Set(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	return p.Out(level)
}

// LogOutput is an Output writing the state to the log.
type LogOutput struct{}

// Set implements Output.
func (LogOutput) Set(on bool) error {
	if on {
		glog.V(1).Info("LED on")
	} else {
		glog.V(1).Info("LED off")
	}
	return nil
}

// Indicator plays blink patterns on an Output.
type Indicator struct {
	Out         Output
	Pulse       time.Duration
	AlarmToggle time.Duration
	AlarmPause  time.Duration
	Clock       clock.Clock

	on bool
}

// New creates an Indicator with default timings.
func New(out Output) *Indicator {
	return &Indicator{
		Out:         out,
		Pulse:       DefaultPulse,
		AlarmToggle: DefaultAlarmToggle,
		AlarmPause:  DefaultAlarmPause,
		Clock:       clock.New(),
	}
}

// Blink turns the output on for Pulse. It blocks the caller.
func (i *Indicator) Blink() error {
	if err := i.set(true); err != nil {
		return err
	}
	i.clock().Sleep(i.Pulse)
	return i.set(false)
}

// RunTask implements framework.Task.
func (i *Indicator) RunTask(framework.TickContext) error {
	return i.Blink()
}

// Toggle inverts the output.
func (i *Indicator) Toggle() error {
	return i.set(!i.on)
}

// Alarm repeats the failure pattern until ctx is done: AlarmToggles toggles
// AlarmToggle apart followed by AlarmPause.
func (i *Indicator) Alarm(ctx context.Context) error {
	for {
		for n := 0; n < AlarmToggles; n++ {
			if err := i.Toggle(); err != nil {
				return err
			}
			if err := i.sleep(ctx, i.AlarmToggle); err != nil {
				return err
			}
		}
		if err := i.sleep(ctx, i.AlarmPause); err != nil {
			return err
		}
	}
}

func (i *Indicator) set(on bool) error {
	if err := i.Out.Set(on); err != nil {
		return fmt.Errorf("indicator: %w", err)
	}
	i.on = on
	return nil
}

func (i *Indicator) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-i.clock().After(d):
		return nil
	}
}

func (i *Indicator) clock() clock.Clock {
	if i.Clock == nil {
		i.Clock = clock.New()
	}
	return i.Clock
}
