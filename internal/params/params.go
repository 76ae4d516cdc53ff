package params

import (
	"fmt"
	"math"
	"strings"
)

// Kind distinguishes continuous (ranged) parameters from boolean toggles.
type Kind int

const (
	Continuous Kind = iota
	Boolean
)

// MinStep is the control granularity used when a range has no interval.
const MinStep = 0.001

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Boolean:
		return "boolean"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps layout names onto a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "continuous", "float", "slider", "":
		return Continuous, nil
	case "boolean", "bool", "toggle":
		return Boolean, nil
	default:
		return 0, &ConfigError{What: "parameter kind", Detail: fmt.Sprintf("unknown kind %q", name)}
	}
}

// Range is the real-world span of a continuous parameter.
type Range struct {
	Start    float64 `json:"start" yaml:"start"`
	End      float64 `json:"end" yaml:"end"`
	Interval float64 `json:"interval" yaml:"interval"`
}

// Validate reports a degenerate or non-finite range.
func (r Range) Validate() error {
	if math.IsNaN(r.Start) || math.IsInf(r.Start, 0) || math.IsNaN(r.End) || math.IsInf(r.End, 0) {
		return &ConfigError{What: "range", Detail: fmt.Sprintf("non-finite bounds [%g, %g]", r.Start, r.End)}
	}
	if r.End == r.Start {
		return &ConfigError{What: "range", Detail: fmt.Sprintf("degenerate range start=end=%g", r.Start)}
	}
	if r.Interval < 0 {
		return &ConfigError{What: "range", Detail: fmt.Sprintf("negative interval %g", r.Interval)}
	}
	return nil
}

// ToNormalized maps a raw control value onto [0,1] relative to the range.
// Callers must have validated the range.
func (r Range) ToNormalized(raw float64) float64 {
	return (raw - r.Start) / (r.End - r.Start)
}

// Step returns the control granularity. A zero interval would leave the
// control unable to advance, so it falls back to MinStep.
func (r Range) Step() float64 {
	if r.Interval != 0 {
		return r.Interval
	}
	return MinStep
}

// Denormalize converts a normalized value into range units, snapped to the
// interval and clamped into the range. This is the engine side of the
// conversion; the UI never calls it to derive a displayed value.
func (r Range) Denormalize(normalized float64) float64 {
	lo, hi := r.Start, r.End
	if lo > hi {
		lo, hi = hi, lo
	}
	v := r.Start + clamp(normalized, 0, 1)*(r.End-r.Start)
	if r.Interval > 0 {
		v = r.Start + math.Round((v-r.Start)/r.Interval)*r.Interval
	}
	return clamp(v, lo, hi)
}

// Descriptor identifies one backend parameter. ID must match the backend's
// registered identifier exactly.
type Descriptor struct {
	ID      string
	Kind    Kind
	Range   *Range
	Default float64
}

// Validate checks the descriptor shape: continuous parameters need a usable
// range, boolean parameters carry none.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return &ConfigError{What: "parameter", Detail: "empty id"}
	}
	switch d.Kind {
	case Continuous:
		if d.Range == nil {
			return &ConfigError{What: "parameter " + d.ID, Detail: "continuous parameter without range"}
		}
		if err := d.Range.Validate(); err != nil {
			return fmt.Errorf("parameter %s: %w", d.ID, err)
		}
	case Boolean:
		if d.Range != nil {
			return &ConfigError{What: "parameter " + d.ID, Detail: "boolean parameter with range"}
		}
	default:
		return &ConfigError{What: "parameter " + d.ID, Detail: "unknown kind " + d.Kind.String()}
	}
	return nil
}

// Defaults returns the plugin's parameter set: a 0..1 gain and two toggles.
func Defaults() []Descriptor {
	return []Descriptor{
		{ID: "GAIN", Kind: Continuous, Range: &Range{Start: 0, End: 1, Interval: 0.01}, Default: 1},
		{ID: "BYPASS", Kind: Boolean},
		{ID: "CLIPPING", Kind: Boolean},
	}
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
