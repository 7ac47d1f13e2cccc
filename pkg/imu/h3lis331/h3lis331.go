// Package h3lis331 drives the ST H3LIS331DL high-g accelerometer over I2C.
package h3lis331

import (
	"encoding/binary"
	"fmt"

	"periph.io/x/conn/v3/i2c"

	"github.com/robotalks/spinbot/pkg/imu"
)

// Registers.
const (
	regWhoAmI = 0x0f
	regCtrl1  = 0x20
	regCtrl4  = 0x23
	regOutXL  = 0x28

	autoIncrement = 0x80
	chipID        = 0x32
)

// DefaultAddr is the I2C address with SA0 pulled high.
const DefaultAddr uint16 = 0x18

// Rate is the output data rate.
type Rate byte

// Output data rates in normal power mode.
const (
	Rate50Hz Rate = iota
	Rate100Hz
	Rate400Hz
	Rate1000Hz
)

// Range is the full scale.
type Range byte

// Full scale ranges.
const (
	Range100G Range = 0
	Range200G Range = 1
	Range400G Range = 3
)

// Opts configures the device.
type Opts struct {
	Addr  uint16
	Rate  Rate
	Range Range
}

// DefaultOpts samples at 1kHz with +/-400g.
var DefaultOpts = Opts{
	Addr:  DefaultAddr,
	Rate:  Rate1000Hz,
	Range: Range400G,
}

// Dev is a H3LIS331DL.
type Dev struct {
	d     i2c.Dev
	scale float64
}

// New checks the chip id and configures the device.
func New(bus i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddr
	}
	scale, err := rangeScale(opts.Range)
	if err != nil {
		return nil, err
	}
	d := &Dev{d: i2c.Dev{Bus: bus, Addr: addr}, scale: scale}

	id, err := d.readReg(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("h3lis331: read id: %w", err)
	}
	if id != chipID {
		return nil, fmt.Errorf("h3lis331: unexpected chip id %#x", id)
	}
	// normal power mode, XYZ enabled.
	if err := d.writeReg(regCtrl1, 0x27|byte(opts.Rate&0x3)<<3); err != nil {
		return nil, fmt.Errorf("h3lis331: set rate: %w", err)
	}
	// block data update keeps the sample bytes consistent.
	if err := d.writeReg(regCtrl4, 0x80|byte(opts.Range)<<4); err != nil {
		return nil, fmt.Errorf("h3lis331: set range: %w", err)
	}
	return d, nil
}

// String implements fmt.Stringer.
func (d *Dev) String() string {
	return fmt.Sprintf("H3LIS331DL{%s}", &d.d)
}

// Acceleration implements imu.Accelerometer.
func (d *Dev) Acceleration() (imu.Vector, error) {
	var buf [6]byte
	if err := d.d.Tx([]byte{regOutXL | autoIncrement}, buf[:]); err != nil {
		return imu.Vector{}, fmt.Errorf("h3lis331: read sample: %w", err)
	}
	var v imu.Vector
	for i := range v {
		raw := int16(binary.LittleEndian.Uint16(buf[i*2:])) >> 4
		v[i] = float64(raw) * d.scale
	}
	return v, nil
}

func (d *Dev) readReg(reg byte) (byte, error) {
	var b [1]byte
	err := d.d.Tx([]byte{reg}, b[:])
	return b[0], err
}

func (d *Dev) writeReg(reg, val byte) error {
	return d.d.Tx([]byte{reg, val}, nil)
}

// rangeScale returns m/s^2 per digit of a 12-bit sample.
func rangeScale(r Range) (float64, error) {
	switch r {
	case Range100G:
		return 0.049 * imu.StandardGravity, nil
	case Range200G:
		return 0.098 * imu.StandardGravity, nil
	case Range400G:
		return 0.1953 * imu.StandardGravity, nil
	}
	return 0, fmt.Errorf("h3lis331: invalid range %d", r)
}

// RangeFromG maps a full scale in g to Range.
func RangeFromG(g int) (Range, error) {
	switch g {
	case 100:
		return Range100G, nil
	case 200:
		return Range200G, nil
	case 400:
		return Range400G, nil
	}
	return 0, fmt.Errorf("h3lis331: unsupported range %dg", g)
}

// RateFromHz maps an output data rate in Hz to Rate.
func RateFromHz(hz int) (Rate, error) {
	switch hz {
	case 50:
		return Rate50Hz, nil
	case 100:
		return Rate100Hz, nil
	case 400:
		return Rate400Hz, nil
	case 1000:
		return Rate1000Hz, nil
	}
	return 0, fmt.Errorf("h3lis331: unsupported rate %dHz", hz)
}
