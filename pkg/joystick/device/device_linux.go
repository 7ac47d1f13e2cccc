// +build linux

package device

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"syscall"
	"unsafe"
)

// EventSize is the size of a js_event record.
const EventSize = 8

// Path returns the device node of the joystick with index.
func Path(index int) string {
	return fmt.Sprintf("/dev/input/js%d", index)
}

type jsDevice struct {
	file    *os.File
	index   int
	name    string
	axes    uint8
	buttons uint8
	buf     [EventSize]byte
}

// Open opens the joystick with index.
func Open(index int) (Device, error) {
	f, err := os.OpenFile(Path(index), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	js := &jsDevice{file: f, index: index}
	if err := js.query(); err != nil {
		f.Close()
		return nil, fmt.Errorf("joystick %d: %w", index, err)
	}
	return js, nil
}

// DetectAndOpen opens the first available device from startIndex.
// It returns ErrNotFound if no device is present.
func DetectAndOpen(startIndex int) (Device, error) {
	for index := startIndex; index < 256; index++ {
		js, err := Open(index)
		if os.IsNotExist(err) {
			continue
		}
		return js, err
	}
	return nil, ErrNotFound
}

func (js *jsDevice) query() error {
	var name [256]byte
	requests := []struct {
		req uint
		ptr unsafe.Pointer
	}{
		{iocGAXES, unsafe.Pointer(&js.axes)},
		{iocGBUTTONS, unsafe.Pointer(&js.buttons)},
		{iocGNAME, unsafe.Pointer(&name)},
	}
	for _, r := range requests {
		if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, js.file.Fd(), uintptr(r.req), uintptr(r.ptr)); errno != 0 {
			return errno
		}
	}
	if pos := bytes.IndexByte(name[:], 0); pos >= 0 {
		js.name = string(name[:pos])
	} else {
		js.name = string(name[:])
	}
	return nil
}

func (js *jsDevice) Close() error     { return js.file.Close() }
func (js *jsDevice) Index() int       { return js.index }
func (js *jsDevice) Name() string     { return js.name }
func (js *jsDevice) AxisCount() int   { return int(js.axes) }
func (js *jsDevice) ButtonCount() int { return int(js.buttons) }

// ReadEvent blocks until the next event.
func (js *jsDevice) ReadEvent() (Event, error) {
	if _, err := io.ReadFull(js.file, js.buf[:]); err != nil {
		return nil, err
	}
	return ParseEvent(js.buf[:])
}

// ParseEvent decodes a js_event record: u32 time in ms, s16 value,
// u8 type, u8 number.
func ParseEvent(buf []byte) (Event, error) {
	if len(buf) < EventSize {
		return nil, io.ErrUnexpectedEOF
	}
	raw := rawEvent{
		value:  int16(binary.LittleEndian.Uint16(buf[4:6])),
		kind:   buf[6],
		number: buf[7],
	}
	switch raw.kind &^ evINIT {
	case evBTN:
		return buttonEvent{raw}, nil
	case evAXIS:
		return axisEvent{raw}, nil
	}
	return raw, nil
}

type rawEvent struct {
	value  int16
	kind   uint8
	number uint8
}

func (e rawEvent) IsInit() bool { return e.kind&evINIT != 0 }
func (e rawEvent) Index() int   { return int(e.number) }

type axisEvent struct{ rawEvent }

func (e axisEvent) Value() int { return int(e.value) }

type buttonEvent struct{ rawEvent }

func (e buttonEvent) Pressed() bool { return e.value != 0 }

const (
	iocGAXES    uint = 0x80016a11
	iocGBUTTONS uint = 0x80016a12
	iocGNAME    uint = 0x80ff6a13

	evINIT uint8 = 0x80
	evBTN  uint8 = 0x01
	evAXIS uint8 = 0x02
)
