// Package stream carries radio frames over a byte stream, typically a serial
// radio modem.
package stream

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"

	"github.com/golang/glog"
	"github.com/jacobsa/go-serial/serial"

	"github.com/robotalks/spinbot/pkg/framework"
	"github.com/robotalks/spinbot/pkg/radio"
)

// MaxFrameSize is the largest frame the 1-byte length prefix can describe.
const MaxFrameSize = 255

// DefaultBaudRate of serial modems.
const DefaultBaudRate = 115200

// Radio implements radio.Radio. Each frame is prefixed by 1 byte
// indicating the length.
type Radio struct {
	MTU int

	rw        io.ReadWriteCloser
	inbox     *radio.Inbox
	writeLock sync.Mutex
}

// New creates a Radio on a stream.
func New(rw io.ReadWriteCloser, mtu int) *Radio {
	if mtu <= 0 || mtu > MaxFrameSize {
		mtu = MaxFrameSize
	}
	return &Radio{MTU: mtu, rw: rw, inbox: radio.NewInbox(0)}
}

// Open opens a serial modem from URL, e.g. serial:///dev/ttyUSB0?baud=115200&mtu=64
func Open(rawURL string) (*Radio, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid radio URL: %w", err)
	}
	query := u.Query()
	baud, mtu := DefaultBaudRate, 0
	if val := query.Get("baud"); val != "" {
		if baud, err = strconv.Atoi(val); err != nil {
			return nil, fmt.Errorf("invalid baud %q: %w", val, err)
		}
	}
	if val := query.Get("mtu"); val != "" {
		if mtu, err = strconv.Atoi(val); err != nil {
			return nil, fmt.Errorf("invalid mtu %q: %w", val, err)
		}
	}
	port, err := serial.Open(serial.OpenOptions{
		PortName:        u.Path,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", u.Path, err)
	}
	glog.Infof("serial radio opened on %s at %d baud", u.Path, baud)
	return New(port, mtu), nil
}

// ReadFrame reads one frame from the stream.
func (r *Radio) ReadFrame() ([]byte, error) {
	var size [1]byte
	if _, err := io.ReadFull(r.rw, size[:]); err != nil {
		return nil, err
	}
	pkt := make([]byte, size[0])
	_, err := io.ReadFull(r.rw, pkt)
	return pkt, err
}

// WriteFrame writes one frame to the stream.
func (r *Radio) WriteFrame(pkt []byte) error {
	if err := radio.CheckFrameSize(pkt, r.MTU); err != nil {
		return err
	}
	frame := make([]byte, 0, len(pkt)+1)
	frame = append(frame, byte(len(pkt)))
	frame = append(frame, pkt...)
	r.writeLock.Lock()
	defer r.writeLock.Unlock()
	_, err := r.rw.Write(frame)
	return err
}

// Receive implements radio.Radio.
func (r *Radio) Receive() ([]byte, error) {
	return r.inbox.Pop(), nil
}

// Send implements radio.Radio.
func (r *Radio) Send(pkt []byte) error {
	return r.WriteFrame(pkt)
}

// Run implements framework.Runnable. It reads frames into the inbox until
// the stream fails or ctx is canceled, and closes the stream.
func (r *Radio) Run(ctx context.Context) error {
	return framework.RunWithContextCloser(ctx, r.rw, func() error {
		for {
			pkt, err := r.ReadFrame()
			if err != nil {
				return err
			}
			if len(pkt) == 0 {
				continue
			}
			r.inbox.Push(pkt)
		}
	})
}
