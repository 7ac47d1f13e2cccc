package framework

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type runFunc func(context.Context) error

func (f runFunc) Run(ctx context.Context) error { return f(ctx) }

func TestRunnerStopsAllOnFirstExit(t *testing.T) {
	errStop := errors.New("stopped")
	r := NewRunner()
	r.Go(
		NamedRun("waiter", runFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
		NamedRun("failer", runFunc(func(context.Context) error {
			return errStop
		})),
	)
	err := r.Wait()
	require.Error(t, err)
	require.True(t, errors.Is(err, errStop))
}

func TestRunWithContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	var canceled bool
	go cancel()
	err := RunWithContextCancel(ctx, func() {
		canceled = true
		close(release)
	}, func() error {
		<-release
		return nil
	})
	require.Equal(t, context.Canceled, err)
	require.True(t, canceled)
}
