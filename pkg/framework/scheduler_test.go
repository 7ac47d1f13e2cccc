package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	names []string
}

func (r *recorder) task(name string) Task {
	return TaskFunc(func(TickContext) error {
		r.names = append(r.names, name)
		return nil
	})
}

func TestSchedulerPeriod(t *testing.T) {
	testCases := []struct {
		name    string
		elapsed time.Duration
		runs    uint64
	}{
		{"before period", 99 * time.Millisecond, 0},
		{"at period", 100 * time.Millisecond, 1},
		{"after period", 150 * time.Millisecond, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := clock.NewMock()
			var rec recorder
			s := &Scheduler{Clock: mock}
			s.Every("radio", 100*time.Millisecond, rec.task("radio"))
			s.Start()
			mock.Add(tc.elapsed)
			require.NoError(t, s.Tick(context.Background()))
			require.Equal(t, tc.runs, s.Runs("radio"))
			require.Len(t, rec.names, int(tc.runs))
		})
	}
}

func TestSchedulerResetsTimer(t *testing.T) {
	mock := clock.NewMock()
	var rec recorder
	s := &Scheduler{Clock: mock}
	s.Every("blink", time.Second, rec.task("blink"))
	s.Start()

	mock.Add(time.Second)
	require.NoError(t, s.Tick(context.Background()))
	require.Equal(t, uint64(1), s.Runs("blink"))

	mock.Add(999 * time.Millisecond)
	require.NoError(t, s.Tick(context.Background()))
	require.Equal(t, uint64(1), s.Runs("blink"))

	mock.Add(time.Millisecond)
	require.NoError(t, s.Tick(context.Background()))
	require.Equal(t, uint64(2), s.Runs("blink"))
}

func TestSchedulerOrderAndBarrier(t *testing.T) {
	mock := clock.NewMock()
	var rec recorder
	s := &Scheduler{Clock: mock}
	s.Always("sense", rec.task("sense")).
		Every("radio", 100*time.Millisecond, rec.task("radio")).
		Every("blink", time.Second, rec.task("blink"))
	s.Start()

	for i := 0; i < 10; i++ {
		mock.Add(100 * time.Millisecond)
		require.NoError(t, s.Tick(context.Background()))
	}
	require.Equal(t, uint64(10), s.Ticks())
	require.Equal(t, uint64(10), s.Runs("sense"))
	require.Equal(t, uint64(10), s.Runs("radio"))
	require.Equal(t, uint64(1), s.Runs("blink"))
	require.Equal(t, []string{"sense", "radio", "blink"}, rec.names[len(rec.names)-3:])
	require.Equal(t, []string{"sense", "radio"}, rec.names[:2])
}

func TestSchedulerTaskError(t *testing.T) {
	mock := clock.NewMock()
	var rec recorder
	errSensor := errors.New("bus error")
	s := &Scheduler{Clock: mock}
	s.Always("sense", TaskFunc(func(TickContext) error { return errSensor })).
		Always("after", rec.task("after"))
	s.Start()

	err := s.Tick(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, errSensor))
	require.Equal(t, []string{"after"}, rec.names)

	require.True(t, errors.Is(s.Run(context.Background()), errSensor))
}

func TestSchedulerRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &Scheduler{Clock: clock.NewMock()}
	s.Always("count", TaskFunc(func(tc TickContext) error {
		if tc.Tick() >= 3 {
			cancel()
		}
		return nil
	}))
	require.Equal(t, context.Canceled, s.Run(ctx))
	require.Equal(t, uint64(3), s.Ticks())
}

func TestSchedulerTickContext(t *testing.T) {
	mock := clock.NewMock()
	mock.Add(time.Hour)
	s := &Scheduler{Clock: mock}
	var got time.Time
	s.Always("time", TaskFunc(func(tc TickContext) error {
		got = tc.Time()
		return nil
	}))
	require.NoError(t, s.Tick(context.Background()))
	require.Equal(t, mock.Now(), got)
}
