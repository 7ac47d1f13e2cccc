package link

import (
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/spinbot/pkg/framework"
	"github.com/robotalks/spinbot/pkg/radio"
)

// Encoder produces the next outbound packet.
type Encoder func() ([]byte, error)

// TelemetryEncoder encodes the Telemetry returned by fn.
func TelemetryEncoder(fn func() Telemetry) Encoder {
	return func() ([]byte, error) {
		return EncodeTelemetry(fn())
	}
}

// CommandEncoder encodes the Command returned by fn.
func CommandEncoder(fn func() Command) Encoder {
	return func() ([]byte, error) {
		return EncodeCommand(fn())
	}
}

// Transmitter is the task sending one packet per run.
// Oversized packets are dropped and counted without failing the task.
type Transmitter struct {
	Radio  radio.Radio
	Encode Encoder

	sent    uint64
	dropped uint64
}

// RunTask implements framework.Task.
func (t *Transmitter) RunTask(framework.TickContext) error {
	pkt, err := t.Encode()
	if err == nil {
		err = t.Radio.Send(pkt)
	}
	if err != nil {
		if radio.IsFrameSizeError(err) {
			atomic.AddUint64(&t.dropped, 1)
			glog.Warningf("message send failure: %v", err)
			return nil
		}
		return fmt.Errorf("transmit: %w", err)
	}
	atomic.AddUint64(&t.sent, 1)
	return nil
}

// Sent returns the number of packets sent.
func (t *Transmitter) Sent() uint64 {
	return atomic.LoadUint64(&t.sent)
}

// Dropped returns the number of oversized packets dropped.
func (t *Transmitter) Dropped() uint64 {
	return atomic.LoadUint64(&t.dropped)
}

// Handler consumes an inbound packet. An error rejects the packet.
type Handler func(pkt []byte) error

// CommandHandler stores accepted commands.
func CommandHandler(dec Decoder, cmds *Commands) Handler {
	return func(pkt []byte) error {
		cmd, err := dec.DecodeCommand(pkt)
		if err != nil {
			return err
		}
		cmds.Store(cmd.State())
		return nil
	}
}

// TelemetryHandler passes accepted telemetry to fn.
func TelemetryHandler(dec Decoder, fn func(*Telemetry)) Handler {
	return func(pkt []byte) error {
		t, err := dec.DecodeTelemetry(pkt)
		if err != nil {
			return err
		}
		fn(t)
		return nil
	}
}

// Receiver is the task polling the radio once per run.
type Receiver struct {
	Radio   radio.Radio
	Handler Handler

	accepted uint64
	rejected uint64
}

// RunTask implements framework.Task.
func (r *Receiver) RunTask(framework.TickContext) error {
	pkt, err := r.Radio.Receive()
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}
	if pkt == nil {
		return nil
	}
	if err := r.Handler(pkt); err != nil {
		atomic.AddUint64(&r.rejected, 1)
		glog.V(2).Infof("packet ignored: %v", err)
		return nil
	}
	atomic.AddUint64(&r.accepted, 1)
	return nil
}

// Accepted returns the number of packets accepted.
func (r *Receiver) Accepted() uint64 {
	return atomic.LoadUint64(&r.accepted)
}

// Rejected returns the number of packets ignored.
func (r *Receiver) Rejected() uint64 {
	return atomic.LoadUint64(&r.rejected)
}
