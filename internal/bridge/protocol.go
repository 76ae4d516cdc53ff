// Package bridge carries parameter notifications, named signals and resource
// fetches between the UI and the host.
package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/guidoenr/gainbridge/internal/params"
)

// Message types.
const (
	TypeValueChanged       = "valueChanged"
	TypePropertiesChanged  = "propertiesChanged"
	TypeEvent              = "event"
	TypeSetNormalisedValue = "setNormalisedValue"
	TypeSetValue           = "setValue"
)

// Well-known names shared by host and UI.
const (
	MeterLevelsEvent    = "meterLevels"
	MeterLevelsResource = "meterLevels.json"
)

// Message is one websocket frame payload. Optional fields are pointers so a
// zero value is distinguishable from an absent one.
type Message struct {
	Type   string        `json:"type"`
	ID     string        `json:"id,omitempty"`
	Name   string        `json:"name,omitempty"`
	Value  *float64      `json:"value,omitempty"`
	Scaled *float64      `json:"scaled,omitempty"`
	Bool   *bool         `json:"bool,omitempty"`
	Range  *params.Range `json:"range,omitempty"`
}

// ContinuousValue builds a value notification for a ranged parameter.
func ContinuousValue(id string, normalised, scaled float64) Message {
	return Message{Type: TypeValueChanged, ID: id, Value: &normalised, Scaled: &scaled}
}

// BooleanValue builds a value notification for a toggle.
func BooleanValue(id string, v bool) Message {
	return Message{Type: TypeValueChanged, ID: id, Bool: &v}
}

// Properties builds a range notification.
func Properties(id string, r params.Range) Message {
	return Message{Type: TypePropertiesChanged, ID: id, Range: &r}
}

// Event builds a payload-less named signal.
func Event(name string) Message {
	return Message{Type: TypeEvent, Name: name}
}

// SetNormalised builds the client request for a ranged parameter.
func SetNormalised(id string, v float64) Message {
	return Message{Type: TypeSetNormalisedValue, ID: id, Value: &v}
}

// SetBool builds the client request for a toggle.
func SetBool(id string, v bool) Message {
	return Message{Type: TypeSetValue, ID: id, Bool: &v}
}

// Validate checks that the fields required by the message type are present.
func (m Message) Validate() error {
	switch m.Type {
	case TypeValueChanged:
		if m.ID == "" {
			return errors.New("valueChanged without id")
		}
		if m.Bool == nil && (m.Value == nil || m.Scaled == nil) {
			return fmt.Errorf("valueChanged %s without value", m.ID)
		}
	case TypePropertiesChanged:
		if m.ID == "" || m.Range == nil {
			return errors.New("propertiesChanged without id or range")
		}
	case TypeEvent:
		if m.Name == "" {
			return errors.New("event without name")
		}
	case TypeSetNormalisedValue:
		if m.ID == "" || m.Value == nil {
			return errors.New("setNormalisedValue without id or value")
		}
	case TypeSetValue:
		if m.ID == "" || m.Bool == nil {
			return errors.New("setValue without id or bool")
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// DecodeFrame splits a frame into messages. The host may batch several
// newline separated messages into one frame.
func DecodeFrame(frame []byte) ([]Message, error) {
	dec := json.NewDecoder(bytes.NewReader(frame))
	var out []Message
	for {
		var m Message
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
}

// ParameterInfo describes a registered parameter and its current value.
type ParameterInfo struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	Range      *params.Range `json:"range,omitempty"`
	Normalised float64       `json:"normalised"`
	Scaled     float64       `json:"scaled"`
	Bool       bool          `json:"bool"`
}
