// Package link encodes and decodes the records exchanged between the robot
// node and its transmitter, and provides the scheduler tasks moving them
// over the radio.
package link

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
)

// Node ids used on the air.
const (
	RobotNodeID       = 69
	TransmitterNodeID = 42
)

// MaxPayloadSize is the maximum size of an encoded record.
const MaxPayloadSize = 64

// Telemetry is sent by the robot node.
type Telemetry struct {
	ID           int     `json:"id"`
	BatteryVolts float64 `json:"bv"`
	AngularVel   float64 `json:"av"`
	AngularDir   float64 `json:"ad"`
}

// Command is sent by the transmitter.
type Command struct {
	ID     int     `json:"id"`
	TransX float64 `json:"tx"`
	TransY float64 `json:"ty"`
	Enable Flag    `json:"en"`
	VelSP  Flag    `json:"sp"`
}

// State extracts the CommandState carried by the record.
func (c *Command) State() CommandState {
	return CommandState{
		TransX: c.TransX,
		TransY: c.TransY,
		Enable: bool(c.Enable),
		VelSP:  bool(c.VelSP),
	}
}

// Flag is a loosely typed boolean: besides true/false, non-zero numbers,
// non-empty strings, arrays and objects are true, null is false.
type Flag bool

var errEmptyFlag = errors.New("empty flag value")

// MarshalJSON implements json.Marshaler.
func (f Flag) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatBool(bool(f))), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errEmptyFlag
	}
	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = Flag(b)
	case 'n':
		*f = false
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = s != ""
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*f = len(items) > 0
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
		*f = len(fields) > 0
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = v != 0
	}
	return nil
}

// CommandState is the latest accepted command.
type CommandState struct {
	TransX float64
	TransY float64
	Enable bool
	VelSP  bool
}

// Commands holds the CommandState shared between the receive task and its
// readers. Updates replace all fields at once.
type Commands struct {
	state CommandState
	lock  sync.RWMutex
}

// Store replaces the state.
func (c *Commands) Store(state CommandState) {
	c.lock.Lock()
	c.state = state
	c.lock.Unlock()
}

// Load returns a snapshot of the state.
func (c *Commands) Load() CommandState {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.state
}
