package radio

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPair(t *testing.T) {
	a, b := Pair(4)
	pkt, err := b.Receive()
	require.NoError(t, err)
	require.Nil(t, pkt)

	require.NoError(t, a.Send([]byte("abcd")))
	pkt, err = b.Receive()
	require.NoError(t, err)
	require.Equal(t, []byte("abcd"), pkt)
	require.Equal(t, 1, a.Sent())

	err = a.Send([]byte("abcde"))
	require.Error(t, err)
	require.True(t, IsFrameSizeError(err))
	require.Equal(t, 1, a.Sent())
	pkt, _ = b.Receive()
	require.Nil(t, pkt)
}

func TestInboxDropsOldest(t *testing.T) {
	b := NewInbox(2)
	b.Push([]byte{1})
	b.Push([]byte{2})
	b.Push([]byte{3})
	require.Equal(t, 2, b.Len())
	require.Equal(t, []byte{2}, b.Pop())
	require.Equal(t, []byte{3}, b.Pop())
	require.Nil(t, b.Pop())
}

func TestFrameSizeError(t *testing.T) {
	err := fmt.Errorf("send: %w", CheckFrameSize(make([]byte, 65), 64))
	require.True(t, IsFrameSizeError(err))
	require.EqualError(t, err, "send: payload of 65 bytes exceeds frame size 64")
	require.NoError(t, CheckFrameSize(make([]byte, 64), 64))
	require.False(t, IsFrameSizeError(ErrClosed))
}
