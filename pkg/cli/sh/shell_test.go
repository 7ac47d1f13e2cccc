package sh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/spinbot/pkg/radio"
)

func newLoopShell() *Shell {
	conf := NewConfig()
	conf.RadioURL = "loop://"
	s := New(conf)
	s.Interactive = false
	return s
}

func TestShellRunOnce(t *testing.T) {
	s := newLoopShell()
	require.NoError(t, s.Run("drive", "0.5", "-1"))
	require.Equal(t, 0.5, s.Station.Command().TransX)
	require.Equal(t, -1.0, s.Station.Command().TransY)
	require.GreaterOrEqual(t, s.Station.Radio.(*radio.Endpoint).Sent(), 1)
	require.Nil(t, s.cancel)
	require.NoError(t, s.Close())
}

func TestShellRunErrors(t *testing.T) {
	s := newLoopShell()
	require.EqualError(t, s.Run(), "command expected")
	require.Nil(t, s.cancel)

	s = newLoopShell()
	s.Config.RadioURL = "nope://"
	err := s.Run("stop")
	require.Error(t, err)
	require.Contains(t, err.Error(), "open radio")
	require.Nil(t, s.Station)
}
