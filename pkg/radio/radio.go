// Package radio abstracts the packet radio shared by the robot node and its
// transmitter.
package radio

import (
	"errors"
	"fmt"
)

// Radio sends and receives single packets.
type Radio interface {
	// Receive returns the next packet or nil if none is available.
	// It never waits for a packet.
	Receive() ([]byte, error)
	// Send transmits a packet. A payload larger than the frame size of the
	// transport fails with *FrameSizeError.
	Send([]byte) error
}

// FrameSizeError indicates a payload exceeds the maximum frame size.
type FrameSizeError struct {
	Size int
	Max  int
}

// Error implements error.
func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds frame size %d", e.Size, e.Max)
}

// CheckFrameSize returns *FrameSizeError if the payload doesn't fit.
func CheckFrameSize(pkt []byte, max int) error {
	if len(pkt) > max {
		return &FrameSizeError{Size: len(pkt), Max: max}
	}
	return nil
}

// IsFrameSizeError tells if err is caused by an oversized payload.
func IsFrameSizeError(err error) bool {
	var sizeErr *FrameSizeError
	return errors.As(err, &sizeErr)
}

var (
	// ErrClosed indicates the radio has been closed.
	ErrClosed = errors.New("radio closed")
	// ErrTimeout indicates the transport didn't respond in time.
	ErrTimeout = errors.New("radio timeout")
)

