// Package rfm69 drives a HopeRF RFM69(H)CW packet radio over SPI.
//
// Packets use the 4-byte header (destination, sender, id, flags) of the
// Adafruit RFM69 library so the node interoperates with transmitters built
// on it.
package rfm69

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/spinbot/pkg/radio"
)

// Registers.
const (
	regFifo          = 0x00
	regOpMode        = 0x01
	regDataModul     = 0x02
	regBitrateMsb    = 0x03
	regFdevMsb       = 0x05
	regFrfMsb        = 0x07
	regVersion       = 0x10
	regPaLevel       = 0x11
	regOcp           = 0x13
	regRxBw          = 0x19
	regAfcBw         = 0x1a
	regRssiValue     = 0x24
	regIrqFlags1     = 0x27
	regIrqFlags2     = 0x28
	regPreambleMsb   = 0x2c
	regSyncConfig    = 0x2e
	regSyncValue1    = 0x2f
	regPacketConfig1 = 0x37
	regPayloadLength = 0x38
	regFifoThresh    = 0x3c
	regPacketConfig2 = 0x3d
	regTestPa1       = 0x5a
	regTestPa2       = 0x5c
	regTestDagc      = 0x6f

	writeBit = 0x80

	irq1ModeReady    = 0x80
	irq2PacketSent   = 0x08
	irq2PayloadReady = 0x04

	chipVersion = 0x24
	fxosc       = 32e6
	fstep       = fxosc / (1 << 19)
	headerSize  = 4
)

// MaxPayloadSize is the maximum number of payload bytes in one packet.
const MaxPayloadSize = 60

// Broadcast address.
const Broadcast byte = 0xff

// Mode is the operating mode.
type Mode byte

// Operating modes.
const (
	ModeSleep   Mode = 0
	ModeStandby Mode = 1
	ModeFS      Mode = 2
	ModeTX      Mode = 3
	ModeRX      Mode = 4
)

var (
	// ErrNotFound indicates no RFM69 answered on the bus.
	ErrNotFound = errors.New("rfm69: device not found")
	// ErrTimeout indicates the radio didn't finish in time.
	ErrTimeout = errors.New("rfm69: timeout")
)

// Opts configures the radio.
type Opts struct {
	// FrequencyMHz is the carrier frequency.
	FrequencyMHz float64
	// TxPower in dBm, -2..20 for high power modules, -18..13 otherwise.
	TxPower   int
	HighPower bool
	// Node is this radio's address; Broadcast receives everything.
	Node        byte
	Destination byte
	SyncWord    []byte
	Preamble    int
	BitRate     int
	FreqDev     int
	// SendTimeout bounds waiting for a packet to be sent.
	SendTimeout time.Duration
}

// DefaultOpts matches the Adafruit defaults at 915MHz.
var DefaultOpts = Opts{
	FrequencyMHz: 915,
	TxPower:      13,
	HighPower:    true,
	Node:         Broadcast,
	Destination:  Broadcast,
	SyncWord:     []byte{0x2d, 0xd4},
	Preamble:     4,
	BitRate:      250000,
	FreqDev:      250000,
	SendTimeout:  2 * time.Second,
}

// Dev is an RFM69 radio. It implements radio.Radio and is safe for
// concurrent use.
type Dev struct {
	Clock clock.Clock

	lock  sync.Mutex
	c     conn.Conn
	reset gpio.PinOut
	opts  Opts
	mode  Mode
	seq   byte
	rssi  float64
}

// New resets the radio, verifies it's present and configures it.
// reset may be nil if the reset line is not wired.
func New(c conn.Conn, reset gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{Clock: clock.New(), c: c, reset: reset, opts: *opts}
	if d.opts.SendTimeout == 0 {
		d.opts.SendTimeout = DefaultOpts.SendTimeout
	}
	if len(d.opts.SyncWord) == 0 {
		d.opts.SyncWord = DefaultOpts.SyncWord
	}
	if err := d.Reset(); err != nil {
		return nil, err
	}
	ver, err := d.readReg(regVersion)
	if err != nil {
		return nil, fmt.Errorf("rfm69: read version: %w", err)
	}
	if ver != chipVersion {
		return nil, fmt.Errorf("%w: version %#x", ErrNotFound, ver)
	}
	if err := d.configure(); err != nil {
		return nil, fmt.Errorf("rfm69: configure: %w", err)
	}
	return d, nil
}

// String implements fmt.Stringer.
func (d *Dev) String() string {
	return fmt.Sprintf("RFM69{%s, %.1fMHz}", d.c, d.opts.FrequencyMHz)
}

// Reset pulses the reset line.
func (d *Dev) Reset() error {
	if d.reset == nil {
		return nil
	}
	if err := d.reset.Out(gpio.High); err != nil {
		return fmt.Errorf("rfm69: reset: %w", err)
	}
	d.Clock.Sleep(100 * time.Microsecond)
	if err := d.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("rfm69: reset: %w", err)
	}
	d.Clock.Sleep(5 * time.Millisecond)
	return nil
}

// RSSI returns the signal strength of the last received packet in dBm.
func (d *Dev) RSSI() float64 {
	return d.rssi
}

// Send implements radio.Radio. A radio listening before Send is put back
// in RX mode after the packet is sent.
func (d *Dev) Send(payload []byte) error {
	if err := radio.CheckFrameSize(payload, MaxPayloadSize); err != nil {
		return err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	listening := d.mode == ModeRX
	if err := d.setMode(ModeStandby); err != nil {
		return err
	}
	frame := make([]byte, 0, len(payload)+headerSize+2)
	frame = append(frame, regFifo|writeBit, byte(len(payload)+headerSize),
		d.opts.Destination, d.opts.Node, d.seq, 0)
	frame = append(frame, payload...)
	if err := d.c.Tx(frame, nil); err != nil {
		return fmt.Errorf("rfm69: write fifo: %w", err)
	}
	d.seq++

	boost := d.opts.HighPower && d.opts.TxPower >= 18
	if boost {
		if err := d.setBoost(true); err != nil {
			return err
		}
		defer d.setBoost(false)
	}
	if err := d.setMode(ModeTX); err != nil {
		return err
	}
	sent, err := d.waitFlag(regIrqFlags2, irq2PacketSent, d.opts.SendTimeout)
	if merr := d.setMode(ModeStandby); err == nil {
		err = merr
	}
	if listening {
		if merr := d.setMode(ModeRX); err == nil {
			err = merr
		}
	}
	if err != nil {
		return err
	}
	if !sent {
		return ErrTimeout
	}
	return nil
}

// Receive implements radio.Radio. It puts the radio in RX mode when it's
// not listening and returns a packet only if one is already waiting.
func (d *Dev) Receive() ([]byte, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.mode != ModeRX {
		return nil, d.setMode(ModeRX)
	}
	flags, err := d.readReg(regIrqFlags2)
	if err != nil {
		return nil, fmt.Errorf("rfm69: read irq flags: %w", err)
	}
	if flags&irq2PayloadReady == 0 {
		return nil, nil
	}
	if raw, err := d.readReg(regRssiValue); err == nil {
		d.rssi = -float64(raw) / 2
	}
	if err := d.setMode(ModeStandby); err != nil {
		return nil, err
	}
	defer d.setMode(ModeRX)

	size, err := d.readReg(regFifo)
	if err != nil {
		return nil, fmt.Errorf("rfm69: read fifo: %w", err)
	}
	if size < headerSize {
		glog.V(2).Infof("rfm69: runt packet of %d bytes", size)
		return nil, nil
	}
	w := make([]byte, int(size)+1)
	r := make([]byte, len(w))
	w[0] = regFifo
	if err := d.c.Tx(w, r); err != nil {
		return nil, fmt.Errorf("rfm69: read fifo: %w", err)
	}
	pkt := r[1:]
	if dest := pkt[0]; d.opts.Node != Broadcast && dest != Broadcast && dest != d.opts.Node {
		glog.V(2).Infof("rfm69: packet for node %d ignored", dest)
		return nil, nil
	}
	return pkt[headerSize:], nil
}

// Close puts the radio to sleep.
func (d *Dev) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.setMode(ModeSleep)
}

func (d *Dev) configure() error {
	o := &d.opts
	if err := d.setMode(ModeStandby); err != nil {
		return err
	}
	bitrate := uint16(fxosc / float64(o.BitRate))
	fdev := uint16(float64(o.FreqDev) / fstep)
	regs := [][]byte{
		// packet mode, FSK, no shaping.
		{regDataModul, 0x00},
		{regBitrateMsb, byte(bitrate >> 8), byte(bitrate)},
		{regFdevMsb, byte(fdev >> 8), byte(fdev)},
		{regRxBw, 0xe0},
		{regAfcBw, 0xe0},
		{regPreambleMsb, byte(o.Preamble >> 8), byte(o.Preamble)},
		{regSyncConfig, 0x80 | byte(len(o.SyncWord)-1)<<3},
		append([]byte{regSyncValue1}, o.SyncWord...),
		// variable length, CRC on.
		{regPacketConfig1, 0x90},
		{regPayloadLength, 66},
		{regFifoThresh, 0x8f},
		{regPacketConfig2, 0x02},
		{regTestDagc, 0x30},
	}
	for _, w := range regs {
		if err := d.writeRegs(w[0], w[1:]...); err != nil {
			return err
		}
	}
	if err := d.SetFrequency(o.FrequencyMHz); err != nil {
		return err
	}
	return d.SetTxPower(o.TxPower)
}

// SetFrequency sets the carrier frequency.
func (d *Dev) SetFrequency(mhz float64) error {
	frf := uint32(mhz * 1e6 / fstep)
	if err := d.writeRegs(regFrfMsb, byte(frf>>16), byte(frf>>8), byte(frf)); err != nil {
		return err
	}
	d.opts.FrequencyMHz = mhz
	return nil
}

// SetTxPower sets the output power in dBm.
func (d *Dev) SetTxPower(dbm int) error {
	level, err := paLevel(dbm, d.opts.HighPower)
	if err != nil {
		return err
	}
	ocp := byte(0x1a)
	if d.opts.HighPower {
		ocp = 0x0f
	}
	if err := d.writeRegs(regOcp, ocp); err != nil {
		return err
	}
	if err := d.writeRegs(regPaLevel, level); err != nil {
		return err
	}
	d.opts.TxPower = dbm
	return nil
}

func paLevel(dbm int, highPower bool) (byte, error) {
	if !highPower {
		if dbm < -18 || dbm > 13 {
			return 0, fmt.Errorf("rfm69: tx power %ddBm out of range", dbm)
		}
		return 0x80 | byte(dbm+18), nil
	}
	switch {
	case dbm < -2 || dbm > 20:
		return 0, fmt.Errorf("rfm69: tx power %ddBm out of range", dbm)
	case dbm <= 13:
		return 0x40 | byte(dbm+18), nil
	case dbm <= 17:
		return 0x60 | byte(dbm+14), nil
	default:
		return 0x60 | byte(dbm+11), nil
	}
}

func (d *Dev) setBoost(on bool) error {
	pa1, pa2 := byte(0x55), byte(0x70)
	if on {
		pa1, pa2 = 0x5d, 0x7c
	}
	if err := d.writeRegs(regTestPa1, pa1); err != nil {
		return err
	}
	return d.writeRegs(regTestPa2, pa2)
}

func (d *Dev) setMode(mode Mode) error {
	op, err := d.readReg(regOpMode)
	if err != nil {
		return fmt.Errorf("rfm69: read mode: %w", err)
	}
	if err := d.writeRegs(regOpMode, op&^0x1c|byte(mode)<<2); err != nil {
		return fmt.Errorf("rfm69: set mode: %w", err)
	}
	ready, err := d.waitFlag(regIrqFlags1, irq1ModeReady, 100*time.Millisecond)
	if err != nil {
		return err
	}
	if !ready {
		return fmt.Errorf("%w: mode %d not ready", ErrTimeout, mode)
	}
	d.mode = mode
	return nil
}

func (d *Dev) waitFlag(reg, mask byte, timeout time.Duration) (bool, error) {
	deadline := d.Clock.Now().Add(timeout)
	for {
		flags, err := d.readReg(reg)
		if err != nil {
			return false, err
		}
		if flags&mask != 0 {
			return true, nil
		}
		if d.Clock.Now().After(deadline) {
			return false, nil
		}
		d.Clock.Sleep(time.Millisecond)
	}
}

func (d *Dev) readReg(reg byte) (byte, error) {
	r := make([]byte, 2)
	if err := d.c.Tx([]byte{reg &^ writeBit, 0}, r); err != nil {
		return 0, err
	}
	return r[1], nil
}

func (d *Dev) writeRegs(reg byte, vals ...byte) error {
	return d.c.Tx(append([]byte{reg | writeBit}, vals...), nil)
}
