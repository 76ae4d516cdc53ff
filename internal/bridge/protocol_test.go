package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidoenr/gainbridge/internal/params"
)

func TestDecodeFrameBatched(t *testing.T) {
	a, err := json.Marshal(ContinuousValue("GAIN", 0.5, 0.5))
	require.NoError(t, err)
	b, err := json.Marshal(Event(MeterLevelsEvent))
	require.NoError(t, err)

	frame := append(append(a, '\n'), b...)
	msgs, err := DecodeFrame(frame)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, TypeValueChanged, msgs[0].Type)
	assert.Equal(t, 0.5, *msgs[0].Scaled)
	assert.Equal(t, MeterLevelsEvent, msgs[1].Name)
}

func TestDecodeFrameKeepsMessagesBeforeGarbage(t *testing.T) {
	msgs, err := DecodeFrame([]byte(`{"type":"event","name":"meterLevels"}` + "\n{oops"))
	require.Error(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, MeterLevelsEvent, msgs[0].Name)
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		ok   bool
	}{
		{"continuous value", ContinuousValue("GAIN", 0, 0), true},
		{"boolean value", BooleanValue("BYPASS", false), true},
		{"properties", Properties("GAIN", params.Range{End: 1}), true},
		{"event", Event("meterLevels"), true},
		{"set normalised", SetNormalised("GAIN", 1), true},
		{"set bool", SetBool("BYPASS", true), true},
		{"value without payload", Message{Type: TypeValueChanged, ID: "GAIN"}, false},
		{"properties without range", Message{Type: TypePropertiesChanged, ID: "GAIN"}, false},
		{"event without name", Message{Type: TypeEvent}, false},
		{"unknown type", Message{Type: "hello"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestZeroValuesSurviveEncoding(t *testing.T) {
	data, err := json.Marshal(BooleanValue("BYPASS", false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"valueChanged","id":"BYPASS","bool":false}`, string(data))

	data, err = json.Marshal(ContinuousValue("GAIN", 0, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"valueChanged","id":"GAIN","value":0,"scaled":0}`, string(data))
}

func TestErrorsUnwrap(t *testing.T) {
	inner := assert.AnError
	te := &TransportError{Op: "fetch", Resource: "meterLevels.json", Status: 404}
	assert.Equal(t, "transport error: fetch meterLevels.json: status 404", te.Error())

	fe := &FormatError{Resource: "meterLevels.json", Channel: "input", Err: inner}
	assert.ErrorIs(t, fe, inner)
	assert.Contains(t, fe.Error(), "channel input")
}
