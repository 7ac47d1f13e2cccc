package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunnableFunc is the func form of Runnable.
type RunnableFunc func(context.Context) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// TimeSource provides the time for scheduled logic.
type TimeSource interface {
	Time() time.Time
}

// TickContext provides the context of the current scheduler tick.
type TickContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// Tick is the sequence number of current tick, starting from 1.
	Tick() uint64
}

// Task defines a unit of work scheduled by the Scheduler.
// A Task must return promptly, it's never preempted.
type Task interface {
	RunTask(TickContext) error
}

// TaskFunc is the func form of Task.
type TaskFunc func(TickContext) error

// RunTask implements Task.
func (f TaskFunc) RunTask(tc TickContext) error {
	return f(tc)
}

// SchedulerAdder provides specific logic to add tasks to a scheduler.
type SchedulerAdder interface {
	AddToScheduler(*Scheduler)
}
