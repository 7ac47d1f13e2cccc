package sh

import (
	"context"
	"sync"
	"time"

	"github.com/robotalks/spinbot/pkg/framework"
	"github.com/robotalks/spinbot/pkg/link"
	"github.com/robotalks/spinbot/pkg/radio"
)

// Station timings.
const (
	DefaultPeriod = 100 * time.Millisecond
	DefaultIdle   = 5 * time.Millisecond
)

// Station is the transmitter side of the link. It repeats the current
// command and keeps the latest telemetry from the robot. The radio is only
// used by one task or Flush at a time.
type Station struct {
	Radio     radio.Radio
	Scheduler *framework.Scheduler
	// Period is the interval between command transmissions.
	Period time.Duration

	tx        *link.Transmitter
	rx        *link.Receiver
	radioLock sync.Mutex

	lock      sync.RWMutex
	cmd       link.Command
	telemetry *link.Telemetry
	updatedAt time.Time
}

// StationTelemetry is the latest telemetry and when it arrived.
type StationTelemetry struct {
	*link.Telemetry
	At time.Time
}

// NewStation creates a Station.
func NewStation(r radio.Radio, id, robotID int) *Station {
	s := &Station{
		Radio:     r,
		Scheduler: framework.NewScheduler(),
		Period:    DefaultPeriod,
		cmd:       link.Command{ID: id},
	}
	s.tx = &link.Transmitter{Radio: r, Encode: link.CommandEncoder(s.Command)}
	s.rx = &link.Receiver{Radio: r, Handler: link.TelemetryHandler(link.Decoder{SourceID: robotID}, s.update)}
	return s
}

// AddToScheduler implements framework.SchedulerAdder.
func (s *Station) AddToScheduler(sched *framework.Scheduler) {
	sched.Always("receive", s.exclusive(s.rx))
	sched.Every("transmit", s.Period, s.exclusive(s.tx))
}

func (s *Station) exclusive(task framework.Task) framework.Task {
	return framework.TaskFunc(func(tc framework.TickContext) error {
		s.radioLock.Lock()
		defer s.radioLock.Unlock()
		return task.RunTask(tc)
	})
}

// Run implements framework.Runnable.
func (s *Station) Run(ctx context.Context) error {
	s.Scheduler.Add(s)
	if s.Scheduler.Idle == 0 {
		s.Scheduler.Idle = DefaultIdle
	}
	return s.Scheduler.Run(ctx)
}

// Flush sends the current command immediately. It waits for the radio if a
// task of the running station is using it.
func (s *Station) Flush() error {
	s.radioLock.Lock()
	defer s.radioLock.Unlock()
	return s.tx.RunTask(nil)
}

// Command returns the current command.
func (s *Station) Command() link.Command {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.cmd
}

// Drive sets the translation.
func (s *Station) Drive(x, y float64) {
	s.modify(func(cmd *link.Command) {
		cmd.TransX, cmd.TransY = x, y
	})
}

// Enable enables or disables the robot.
func (s *Station) Enable(on bool) {
	s.modify(func(cmd *link.Command) {
		cmd.Enable = link.Flag(on)
	})
}

// Speed selects full speed.
func (s *Station) Speed(on bool) {
	s.modify(func(cmd *link.Command) {
		cmd.VelSP = link.Flag(on)
	})
}

// Stop resets all controls.
func (s *Station) Stop() {
	s.modify(func(cmd *link.Command) {
		*cmd = link.Command{ID: cmd.ID}
	})
}

// Telemetry returns the latest telemetry, nil if none was received.
func (s *Station) Telemetry() *StationTelemetry {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.telemetry == nil {
		return nil
	}
	return &StationTelemetry{Telemetry: s.telemetry, At: s.updatedAt}
}

// Stats returns the counters of the link.
func (s *Station) Stats() (sent, dropped, accepted, rejected uint64) {
	return s.tx.Sent(), s.tx.Dropped(), s.rx.Accepted(), s.rx.Rejected()
}

func (s *Station) modify(fn func(*link.Command)) {
	s.lock.Lock()
	fn(&s.cmd)
	s.lock.Unlock()
}

func (s *Station) update(t *link.Telemetry) {
	s.lock.Lock()
	s.telemetry, s.updatedAt = t, s.Scheduler.Clock.Now()
	s.lock.Unlock()
}
