package node

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/spinbot/pkg/imu"
	"github.com/robotalks/spinbot/pkg/indicator"
	"github.com/robotalks/spinbot/pkg/link"
	"github.com/robotalks/spinbot/pkg/radio"
)

type fixture struct {
	mock   *clock.Mock
	node   *Node
	tx     *radio.Endpoint
	sample imu.Vector
	err    error
	blinks int
}

func newFixture(t *testing.T, receive bool) *fixture {
	f := &fixture{mock: clock.NewMock(), sample: imu.Vector{0, 0, 9.8}}
	conf := NewConfig()
	conf.SettleDelay = 0
	conf.ReceiveEnabled = receive
	nodeRadio, tx := radio.Pair(link.MaxPayloadSize)
	f.tx = tx
	accel := imu.AccelerometerFunc(func() (imu.Vector, error) { return f.sample, f.err })
	led := indicator.New(indicator.OutputFunc(func(on bool) error {
		if on {
			f.blinks++
		}
		return nil
	}))
	led.Pulse = 0
	f.node = New(conf, NewState(conf), accel, nodeRadio, led)
	f.node.Scheduler.Clock = f.mock
	require.NoError(t, f.node.Calibrate(context.Background()))
	f.node.Scheduler.Add(f.node)
	f.node.Scheduler.Start()
	return f
}

func (f *fixture) tick(t *testing.T) {
	require.NoError(t, f.node.Scheduler.Tick(context.Background()))
}

func TestNodeEndToEnd(t *testing.T) {
	f := newFixture(t, false)
	cal := f.node.State.Conditioner.Calibration
	require.InDelta(t, 0, cal[imu.X], 1e-9)
	require.InDelta(t, 9.8, cal[imu.Z], 1e-9)

	f.sample = imu.Vector{12.56, 0, 9.8}
	for i := 0; i < 1000; i++ {
		f.tick(t)
	}
	require.InDelta(t, 151.3, f.node.State.Estimate.AngularVel, 0.5)
	require.Zero(t, f.node.Scheduler.Runs(TaskRadio))

	f.mock.Add(100 * time.Millisecond)
	f.tick(t)
	pkt, err := f.tx.Receive()
	require.NoError(t, err)
	telemetry, err := link.Decoder{SourceID: link.RobotNodeID}.DecodeTelemetry(pkt)
	require.NoError(t, err)
	require.InDelta(t, 151.3, telemetry.AngularVel, 0.5)
	require.Zero(t, telemetry.AngularDir)
}

func TestNodeGatesSlowSpin(t *testing.T) {
	f := newFixture(t, false)
	f.sample = imu.Vector{5, 0, 9.8}
	for i := 0; i < 1000; i++ {
		f.tick(t)
	}
	require.Zero(t, f.node.State.Estimate.AngularVel)
}

func TestNodeTaskPeriods(t *testing.T) {
	f := newFixture(t, false)
	for i := 0; i < 10; i++ {
		f.mock.Add(100 * time.Millisecond)
		f.tick(t)
	}
	s := f.node.Scheduler
	require.Equal(t, uint64(10), s.Runs(TaskSense))
	require.Equal(t, uint64(10), s.Runs(TaskRadio))
	require.Equal(t, uint64(1), s.Runs(TaskBlink))
	require.Equal(t, 1, f.blinks)
	require.Equal(t, 10, f.node.Radio.(*radio.Endpoint).Sent())
}

func TestNodeReceive(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.tx.Send([]byte(`{"id":42,"tx":0.5,"ty":-0.5,"en":true,"sp":1}`)))
	f.mock.Add(100 * time.Millisecond)
	f.tick(t)
	expected := link.CommandState{TransX: 0.5, TransY: -0.5, Enable: true, VelSP: true}
	require.Equal(t, expected, f.node.State.Commands.Load())

	require.NoError(t, f.tx.Send([]byte(`{"id":7,"tx":1,"ty":1,"en":false,"sp":false}`)))
	f.mock.Add(100 * time.Millisecond)
	f.tick(t)
	require.Equal(t, expected, f.node.State.Commands.Load())
	require.Equal(t, uint64(1), f.node.Receiver.Rejected())
}

func TestNodeReceiveDisabled(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.tx.Send([]byte(`{"id":42,"tx":0.5,"ty":-0.5,"en":true,"sp":1}`)))
	f.mock.Add(100 * time.Millisecond)
	f.tick(t)
	require.Equal(t, link.CommandState{}, f.node.State.Commands.Load())
}

func TestNodeSensorFailure(t *testing.T) {
	f := newFixture(t, false)
	f.err = errors.New("i2c nack")
	err := f.node.Scheduler.Tick(context.Background())
	require.True(t, errors.Is(err, f.err))
}

func TestNodeCalibrationFailure(t *testing.T) {
	conf := NewConfig()
	failure := errors.New("i2c nack")
	accel := imu.AccelerometerFunc(func() (imu.Vector, error) { return imu.Vector{}, failure })
	n := New(conf, NewState(conf), accel, radio.Loopback(0), indicator.New(indicator.LogOutput{}))
	require.True(t, errors.Is(n.Run(context.Background()), failure))
}

func TestStartSimulated(t *testing.T) {
	conf := NewConfig()
	conf.Simulate = true
	conf.RadioURL = "loop://"
	conf.SettleDelay = 0
	conf.CalibrationSamples = 100
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)
	require.NoError(t, Start(ctx, conf))
}

func TestStartRadioFailure(t *testing.T) {
	conf := NewConfig()
	conf.Simulate = true
	conf.RadioURL = "bogus://radio"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Start(ctx, conf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "open radio")
}

func TestOpenRadio(t *testing.T) {
	r, err := OpenRadio("loop://")
	require.NoError(t, err)
	require.IsType(t, &radio.Endpoint{}, r)

	_, err = OpenRadio("bogus://radio")
	require.Error(t, err)
	_, err = OpenRadio("serial:///dev/no-such-tty")
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"default", func(*Config) {}, true},
		{"no samples", func(c *Config) { c.CalibrationSamples = 0 }, false},
		{"alpha zero", func(c *Config) { c.Alpha = 0 }, false},
		{"alpha one", func(c *Config) { c.Alpha = 1 }, true},
		{"alpha above one", func(c *Config) { c.Alpha = 1.5 }, false},
		{"no radio period", func(c *Config) { c.RadioPeriod = 0 }, false},
		{"no radio", func(c *Config) { c.RadioURL = "" }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := NewConfig()
			tc.modify(conf)
			if tc.valid {
				require.NoError(t, conf.Validate())
			} else {
				require.Error(t, conf.Validate())
			}
		})
	}
}

func TestConfigLoadFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "spinbot.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(`
radio_url: mqtt://localhost:1883/spinbot/air/
radio_period: 50ms
receive_enabled: true
alpha: 0.1
`), 0644))
	conf := NewConfig()
	require.NoError(t, conf.LoadFile(fn))
	require.Equal(t, "mqtt://localhost:1883/spinbot/air/", conf.RadioURL)
	require.Equal(t, 50*time.Millisecond, conf.RadioPeriod)
	require.True(t, conf.ReceiveEnabled)
	require.Equal(t, 0.1, conf.Alpha)
	require.Equal(t, link.RobotNodeID, conf.NodeID)
	require.NoError(t, conf.Validate())

	require.Error(t, conf.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestStateTelemetry(t *testing.T) {
	state := NewState(NewConfig())
	require.Equal(t, MotorAngleOffsets, state.MotorAngleOffsets)
	state.Estimate.AngularVel = 523.1
	state.BatteryVolts = 7.4
	require.Equal(t, link.Telemetry{ID: 69, BatteryVolts: 7.4, AngularVel: 523.1}, state.Telemetry(69))
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func TestHardwareClose(t *testing.T) {
	errA, errB := errors.New("bus a"), errors.New("bus b")
	closed := 0
	hw := &Hardware{closers: []io.Closer{
		closeFunc(func() error { closed++; return errA }),
		closeFunc(func() error { closed++; return nil }),
		closeFunc(func() error { closed++; return errB }),
	}}
	err := hw.Close()
	require.Equal(t, 3, closed)
	require.True(t, errors.Is(err, errA))
	require.True(t, errors.Is(err, errB))

	require.NoError(t, (&Hardware{}).Close())
}
