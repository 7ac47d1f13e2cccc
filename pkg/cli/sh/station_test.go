package sh

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/spinbot/pkg/link"
	"github.com/robotalks/spinbot/pkg/radio"
)

func TestStationCommands(t *testing.T) {
	robot, tx := radio.Pair(link.MaxPayloadSize)
	s := NewStation(tx, link.TransmitterNodeID, link.RobotNodeID)
	var cmds link.Commands
	handle := link.CommandHandler(link.Decoder{SourceID: link.TransmitterNodeID}, &cmds)

	s.Drive(0.5, -0.25)
	s.Enable(true)
	s.Speed(true)
	require.NoError(t, s.Flush())
	pkt, _ := robot.Receive()
	require.NoError(t, handle(pkt))
	require.Equal(t, link.CommandState{TransX: 0.5, TransY: -0.25, Enable: true, VelSP: true}, cmds.Load())

	s.Stop()
	require.Equal(t, link.Command{ID: link.TransmitterNodeID}, s.Command())
	require.NoError(t, s.Flush())
	pkt, _ = robot.Receive()
	require.NoError(t, handle(pkt))
	require.Equal(t, link.CommandState{}, cmds.Load())
}

func TestStationTelemetry(t *testing.T) {
	mock := clock.NewMock()
	robot, tx := radio.Pair(link.MaxPayloadSize)
	s := NewStation(tx, link.TransmitterNodeID, link.RobotNodeID)
	s.Scheduler.Clock = mock
	s.Scheduler.Add(s)
	s.Scheduler.Start()
	require.Nil(t, s.Telemetry())

	pkt, err := link.EncodeTelemetry(link.Telemetry{ID: 7, AngularVel: 1})
	require.NoError(t, err)
	require.NoError(t, robot.Send(pkt))
	require.NoError(t, s.Scheduler.Tick(context.Background()))
	require.Nil(t, s.Telemetry())

	pkt, err = link.EncodeTelemetry(link.Telemetry{ID: link.RobotNodeID, BatteryVolts: 7.4, AngularVel: 523.1})
	require.NoError(t, err)
	require.NoError(t, robot.Send(pkt))
	mock.Add(100 * time.Millisecond)
	require.NoError(t, s.Scheduler.Tick(context.Background()))
	telemetry := s.Telemetry()
	require.NotNil(t, telemetry)
	require.Equal(t, 523.1, telemetry.AngularVel)
	require.Equal(t, mock.Now(), telemetry.At)

	sent, dropped, accepted, rejected := s.Stats()
	require.Equal(t, uint64(1), sent)
	require.Zero(t, dropped)
	require.Equal(t, uint64(1), accepted)
	require.Equal(t, uint64(1), rejected)

	status := FormatStatus(s.Command(), telemetry, mock.Now().Add(time.Second))
	require.True(t, strings.Contains(status, "speed=523.1rpm (1s ago)"), status)
}

// slowRadio takes a while on every call and records overlapping calls.
type slowRadio struct {
	busy    int32
	overlap int32
	sent    int32
}

func (r *slowRadio) enter() {
	if atomic.AddInt32(&r.busy, 1) > 1 {
		atomic.StoreInt32(&r.overlap, 1)
	}
	time.Sleep(100 * time.Microsecond)
	atomic.AddInt32(&r.busy, -1)
}

func (r *slowRadio) Receive() ([]byte, error) {
	r.enter()
	return nil, nil
}

func (r *slowRadio) Send([]byte) error {
	r.enter()
	atomic.AddInt32(&r.sent, 1)
	return nil
}

func TestStationFlushWhileRunning(t *testing.T) {
	r := &slowRadio{}
	s := NewStation(r, link.TransmitterNodeID, link.RobotNodeID)
	s.Period = time.Millisecond
	s.Scheduler.Idle = time.Microsecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := 0; i < 50; i++ {
		s.Drive(float64(i), 0)
		require.NoError(t, s.Flush())
	}
	cancel()
	require.True(t, errors.Is(<-done, context.Canceled))
	require.Zero(t, atomic.LoadInt32(&r.overlap))
	require.GreaterOrEqual(t, atomic.LoadInt32(&r.sent), int32(50))
}

func TestParseOnOff(t *testing.T) {
	testCases := []struct {
		arg   string
		on    bool
		valid bool
	}{
		{"on", true, true},
		{"off", false, true},
		{"1", true, true},
		{"no", false, true},
		{"maybe", false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.arg, func(t *testing.T) {
			on, err := ParseOnOff(tc.arg)
			if !tc.valid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.on, on)
		})
	}
}
