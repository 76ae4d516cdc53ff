package meter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Level is a decibel reading as carried on the wire. JSON has no encoding for
// infinities, so silence travels as the string "-inf" and finite readings as
// plain numbers.
type Level float64

// Silence is the reading reported for a zero peak.
var Silence = Level(math.Inf(-1))

// DB returns the reading as a float64.
func (l Level) DB() float64 { return float64(l) }

func (l Level) MarshalJSON() ([]byte, error) {
	v := float64(l)
	switch {
	case math.IsNaN(v):
		return nil, fmt.Errorf("level: NaN is not a valid reading")
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	}
	return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
}

func (l *Level) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("level: expected number, got %q", string(data))
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("level: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "-inf", "-infinity":
			*l = Level(math.Inf(-1))
		case "inf", "+inf", "infinity", "+infinity":
			*l = Level(math.Inf(1))
		default:
			return fmt.Errorf("level: unrecognized value %q", s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("level: %w", err)
	}
	*l = Level(v)
	return nil
}

// Levels is the reading payload: channel name to decibel value.
type Levels map[string]Level

// ParseLevels decodes a flat channel->dB document. Each value is decoded
// independently so one bad channel does not hide the others; the returned map
// holds every channel that decoded and bad maps channel names to their error.
func ParseLevels(data []byte) (levels Levels, bad map[string]error, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode levels: %w", err)
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("decode levels: document is null")
	}
	levels = make(Levels, len(raw))
	for name, msg := range raw {
		var l Level
		if err := json.Unmarshal(msg, &l); err != nil {
			if bad == nil {
				bad = make(map[string]error)
			}
			bad[name] = err
			continue
		}
		levels[name] = l
	}
	return levels, bad, nil
}
