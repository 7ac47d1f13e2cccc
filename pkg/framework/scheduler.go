package framework

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
)

// Scheduler runs tasks cooperatively in ticks.
// In every tick, all tasks which are due run one after another in the
// order they were added, and the tick only completes when all of them
// completed. Ticks are never pipelined.
type Scheduler struct {
	Clock clock.Clock
	// Idle is the pause between ticks in Run, 0 runs ticks back to back.
	Idle time.Duration

	entries []*entry
	ticks   uint64
}

type entry struct {
	name   string
	period time.Duration
	task   Task
	last   time.Time
	runs   uint64
}

type tickContext struct {
	ctx  context.Context
	time time.Time
	tick uint64
}

// NewScheduler creates a Scheduler using the wall clock.
func NewScheduler() *Scheduler {
	return &Scheduler{Clock: clock.New()}
}

// Add adds SchedulerAdders.
func (s *Scheduler) Add(adders ...SchedulerAdder) *Scheduler {
	for _, adder := range adders {
		adder.AddToScheduler(s)
	}
	return s
}

// Always schedules a task in every tick.
func (s *Scheduler) Always(name string, task Task) *Scheduler {
	return s.Every(name, 0, task)
}

// Every schedules a task when at least period elapsed since it was
// last scheduled.
func (s *Scheduler) Every(name string, period time.Duration, task Task) *Scheduler {
	s.entries = append(s.entries, &entry{name: name, period: period, task: task})
	return s
}

// Start resets the timers of all tasks to now.
func (s *Scheduler) Start() {
	now := s.clock().Now()
	for _, e := range s.entries {
		e.last = now
	}
}

// Ticks returns the number of completed ticks.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks
}

// Runs returns how many times the named task has been scheduled.
func (s *Scheduler) Runs(name string) uint64 {
	for _, e := range s.entries {
		if e.name == name {
			return e.runs
		}
	}
	return 0
}

// Tick runs a single iteration.
func (s *Scheduler) Tick(ctx context.Context) error {
	clk := s.clock()
	now := clk.Now()
	due := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.period == 0 {
			due = append(due, e)
			continue
		}
		if now.Sub(e.last) >= e.period {
			e.last = clk.Now()
			due = append(due, e)
		}
	}

	s.ticks++
	tc := &tickContext{ctx: ctx, time: now, tick: s.ticks}
	var errs AggregatedError
	for _, e := range due {
		e.runs++
		if err := e.task.RunTask(tc); err != nil {
			errs.Add(fmt.Errorf("task %s: %w", e.name, err))
		}
		runtime.Gosched()
	}
	if glog.V(3) {
		glog.Infof("tick %d: %d tasks in %v", s.ticks, len(due), clk.Since(now))
	}
	return errs.Aggregate()
}

// Run implements Runnable. It ticks until the context is canceled or
// a task fails.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	glog.Infof("main loop started at %v", s.clock().Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.Tick(ctx); err != nil {
			return err
		}
		if s.Idle > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.clock().After(s.Idle):
			}
		}
	}
}

func (s *Scheduler) clock() clock.Clock {
	if s.Clock == nil {
		s.Clock = clock.New()
	}
	return s.Clock
}

func (t *tickContext) Context() context.Context {
	return t.ctx
}

func (t *tickContext) Time() time.Time {
	return t.time
}

func (t *tickContext) Tick() uint64 {
	return t.tick
}
