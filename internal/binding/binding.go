// Package binding keeps one UI control in sync with one backend parameter.
//
// A binding is two independent one-way handlers. User input is converted and
// sent to the backend; backend notifications are written to the control. The
// control is never written in response to its own input event: the round
// trip through the backend is what updates it, which rules out feedback
// oscillation without any shared "updating" flag.
package binding

import (
	"fmt"
	"log/slog"

	"github.com/guidoenr/gainbridge/internal/params"
)

// SliderState is the backend handle of a continuous parameter.
type SliderState interface {
	ScaledValue() float64
	SetNormalisedValue(v float64)
	Properties() params.Range
	AddValueListener(fn func()) (remove func())
	AddPropertiesListener(fn func()) (remove func())
}

// ToggleState is the backend handle of a boolean parameter.
type ToggleState interface {
	Value() bool
	SetValue(v bool)
	AddValueListener(fn func()) (remove func())
}

// Slider is a ranged input control.
type Slider interface {
	Value() float64
	SetValue(v float64)
	SetRange(min, max float64)
	SetStep(step float64)
	AddInputListener(fn func()) (remove func())
}

// Checkbox is a boolean input control.
type Checkbox interface {
	Checked() bool
	SetChecked(v bool)
	AddInputListener(fn func()) (remove func())
}

// Binding owns the listeners registered for one parameter.
type Binding struct {
	id      string
	kind    params.Kind
	removes []func()
}

// ID returns the bound parameter identifier.
func (b *Binding) ID() string { return b.id }

// Kind returns the bound parameter kind.
func (b *Binding) Kind() params.Kind { return b.kind }

// Close releases every listener the binding registered.
func (b *Binding) Close() {
	for _, remove := range b.removes {
		if remove != nil {
			remove()
		}
	}
	b.removes = nil
}

// BindSlider wires a continuous parameter to a slider. The descriptor range
// shapes the control until the backend reports its own properties.
func BindSlider(desc params.Descriptor, control Slider, state SliderState, log *slog.Logger) (*Binding, error) {
	if desc.Kind != params.Continuous {
		return nil, &params.ConfigError{What: "parameter " + desc.ID, Detail: "slider needs a continuous parameter, got " + desc.Kind.String()}
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if control == nil || state == nil {
		return nil, &params.ConfigError{What: "parameter " + desc.ID, Detail: "nil control or handle"}
	}
	if log == nil {
		log = slog.Default()
	}

	rng := *desc.Range
	control.SetRange(rng.Start, rng.End)
	control.SetStep(rng.Step())

	b := &Binding{id: desc.ID, kind: desc.Kind}

	b.removes = append(b.removes, control.AddInputListener(func() {
		raw := control.Value()
		state.SetNormalisedValue(rng.ToNormalized(raw))
	}))

	b.removes = append(b.removes, state.AddValueListener(func() {
		control.SetValue(state.ScaledValue())
	}))

	b.removes = append(b.removes, state.AddPropertiesListener(func() {
		next := state.Properties()
		if err := next.Validate(); err != nil {
			log.Error("ignoring parameter properties", "parameter", desc.ID, "error", err)
			return
		}
		rng = next
		control.SetRange(rng.Start, rng.End)
		control.SetStep(rng.Step())
	}))

	log.Debug("slider bound", "parameter", desc.ID, "range", fmt.Sprintf("[%g, %g]", rng.Start, rng.End), "step", rng.Step())
	return b, nil
}

// BindToggle wires a boolean parameter to a checkbox.
func BindToggle(desc params.Descriptor, control Checkbox, state ToggleState, log *slog.Logger) (*Binding, error) {
	if desc.Kind != params.Boolean {
		return nil, &params.ConfigError{What: "parameter " + desc.ID, Detail: "checkbox needs a boolean parameter, got " + desc.Kind.String()}
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if control == nil || state == nil {
		return nil, &params.ConfigError{What: "parameter " + desc.ID, Detail: "nil control or handle"}
	}
	if log == nil {
		log = slog.Default()
	}

	b := &Binding{id: desc.ID, kind: desc.Kind}

	b.removes = append(b.removes, control.AddInputListener(func() {
		state.SetValue(control.Checked())
	}))

	b.removes = append(b.removes, state.AddValueListener(func() {
		control.SetChecked(state.Value())
	}))

	log.Debug("toggle bound", "parameter", desc.ID)
	return b, nil
}
