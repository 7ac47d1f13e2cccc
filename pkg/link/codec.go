package link

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/robotalks/spinbot/pkg/radio"
)

var (
	// ErrMalformed indicates the payload is not a valid record.
	ErrMalformed = errors.New("malformed record")
	// ErrMissingID indicates the record carries no id.
	ErrMissingID = errors.New("record without id")
)

// UnexpectedSourceError indicates the record is sent by another node.
type UnexpectedSourceError struct {
	ID       float64
	Expected int
}

// Error implements error.
func (e *UnexpectedSourceError) Error() string {
	return fmt.Sprintf("record from node %v, expect %d", e.ID, e.Expected)
}

// EncodeTelemetry encodes a Telemetry record.
func EncodeTelemetry(t Telemetry) ([]byte, error) {
	return encode(&t)
}

// EncodeCommand encodes a Command record.
func EncodeCommand(c Command) ([]byte, error) {
	return encode(&c)
}

func encode(v interface{}) ([]byte, error) {
	pkt, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := radio.CheckFrameSize(pkt, MaxPayloadSize); err != nil {
		return nil, err
	}
	return pkt, nil
}

// Decoder decodes records sent by a specific node.
type Decoder struct {
	SourceID int
}

type commandFields struct {
	ID     *float64        `json:"id"`
	TransX *float64        `json:"tx"`
	TransY *float64        `json:"ty"`
	Enable json.RawMessage `json:"en"`
	VelSP  json.RawMessage `json:"sp"`
}

type telemetryFields struct {
	ID           *float64 `json:"id"`
	BatteryVolts float64  `json:"bv"`
	AngularVel   float64  `json:"av"`
	AngularDir   float64  `json:"ad"`
}

// DecodeCommand decodes a Command. All fields are required.
func (d Decoder) DecodeCommand(pkt []byte) (*Command, error) {
	var f commandFields
	if err := d.unmarshal(pkt, &f); err != nil {
		return nil, err
	}
	if err := d.checkID(f.ID); err != nil {
		return nil, err
	}
	if f.TransX == nil || f.TransY == nil || f.Enable == nil || f.VelSP == nil {
		return nil, fmt.Errorf("%w: incomplete command", ErrMalformed)
	}
	cmd := &Command{ID: d.SourceID, TransX: *f.TransX, TransY: *f.TransY}
	if err := cmd.Enable.UnmarshalJSON(f.Enable); err != nil {
		return nil, fmt.Errorf("%w: en: %v", ErrMalformed, err)
	}
	if err := cmd.VelSP.UnmarshalJSON(f.VelSP); err != nil {
		return nil, fmt.Errorf("%w: sp: %v", ErrMalformed, err)
	}
	return cmd, nil
}

// DecodeTelemetry decodes a Telemetry. Missing values are zero.
func (d Decoder) DecodeTelemetry(pkt []byte) (*Telemetry, error) {
	var f telemetryFields
	if err := d.unmarshal(pkt, &f); err != nil {
		return nil, err
	}
	if err := d.checkID(f.ID); err != nil {
		return nil, err
	}
	return &Telemetry{
		ID:           d.SourceID,
		BatteryVolts: f.BatteryVolts,
		AngularVel:   f.AngularVel,
		AngularDir:   f.AngularDir,
	}, nil
}

func (d Decoder) unmarshal(pkt []byte, v interface{}) error {
	if err := json.Unmarshal(pkt, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (d Decoder) checkID(id *float64) error {
	if id == nil {
		return ErrMissingID
	}
	if *id != float64(d.SourceID) {
		return &UnexpectedSourceError{ID: *id, Expected: d.SourceID}
	}
	return nil
}
