package binding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidoenr/gainbridge/internal/params"
)

type listeners struct {
	next int
	fns  map[int]func()
}

func (l *listeners) add(fn func()) func() {
	if l.fns == nil {
		l.fns = map[int]func(){}
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() { delete(l.fns, id) }
}

func (l *listeners) fire() {
	for _, fn := range l.fns {
		fn()
	}
}

type fakeSlider struct {
	value, min, max, step float64
	writes                int
	input                 listeners
}

func (s *fakeSlider) Value() float64                    { return s.value }
func (s *fakeSlider) SetValue(v float64)                { s.value = v; s.writes++ }
func (s *fakeSlider) SetRange(min, max float64)         { s.min, s.max = min, max }
func (s *fakeSlider) SetStep(step float64)              { s.step = step }
func (s *fakeSlider) AddInputListener(fn func()) func() { return s.input.add(fn) }

// userInput mimics a DOM input event: the displayed value changes first.
func (s *fakeSlider) userInput(v float64) {
	s.value = v
	s.input.fire()
}

type fakeCheckbox struct {
	checked bool
	writes  int
	input   listeners
}

func (c *fakeCheckbox) Checked() bool                     { return c.checked }
func (c *fakeCheckbox) SetChecked(v bool)                 { c.checked = v; c.writes++ }
func (c *fakeCheckbox) AddInputListener(fn func()) func() { return c.input.add(fn) }

func (c *fakeCheckbox) userInput(v bool) {
	c.checked = v
	c.input.fire()
}

type fakeSliderState struct {
	scaled     float64
	props      params.Range
	sent       []float64
	values     listeners
	properties listeners
}

func (s *fakeSliderState) ScaledValue() float64              { return s.scaled }
func (s *fakeSliderState) SetNormalisedValue(v float64)      { s.sent = append(s.sent, v) }
func (s *fakeSliderState) Properties() params.Range          { return s.props }
func (s *fakeSliderState) AddValueListener(fn func()) func() { return s.values.add(fn) }
func (s *fakeSliderState) AddPropertiesListener(fn func()) func() {
	return s.properties.add(fn)
}

type fakeToggleState struct {
	value  bool
	sent   []bool
	values listeners
}

func (s *fakeToggleState) Value() bool                       { return s.value }
func (s *fakeToggleState) SetValue(v bool)                   { s.sent = append(s.sent, v) }
func (s *fakeToggleState) AddValueListener(fn func()) func() { return s.values.add(fn) }

func gainDescriptor() params.Descriptor {
	return params.Descriptor{ID: "GAIN", Kind: params.Continuous, Range: &params.Range{Start: -24, End: 24, Interval: 0.5}}
}

func TestSliderInputSendsNormalized(t *testing.T) {
	control := &fakeSlider{}
	state := &fakeSliderState{}
	b, err := BindSlider(gainDescriptor(), control, state, nil)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, -24.0, control.min)
	assert.Equal(t, 24.0, control.max)
	assert.Equal(t, 0.5, control.step)

	control.userInput(12)
	require.Len(t, state.sent, 1)
	assert.InDelta(t, 0.75, state.sent[0], 1e-12)
	assert.Zero(t, control.writes, "input must not echo back into the control")
}

func TestSliderNotificationWritesScaledValue(t *testing.T) {
	control := &fakeSlider{}
	state := &fakeSliderState{}
	_, err := BindSlider(gainDescriptor(), control, state, nil)
	require.NoError(t, err)

	state.scaled = -6
	state.values.fire()
	assert.Equal(t, -6.0, control.value)
	assert.Empty(t, state.sent, "notification must not trigger the setter")

	// no deduplication: an unchanged value is written again
	state.values.fire()
	assert.Equal(t, 2, control.writes)
}

func TestSliderPropertiesChange(t *testing.T) {
	control := &fakeSlider{}
	state := &fakeSliderState{}
	_, err := BindSlider(gainDescriptor(), control, state, nil)
	require.NoError(t, err)

	state.props = params.Range{Start: 0, End: 10, Interval: 0}
	state.properties.fire()
	assert.Equal(t, 0.0, control.min)
	assert.Equal(t, 10.0, control.max)
	assert.Equal(t, params.MinStep, control.step)

	control.userInput(2.5)
	require.Len(t, state.sent, 1)
	assert.InDelta(t, 0.25, state.sent[0], 1e-12)

	// a degenerate update is reported and the previous range kept
	state.props = params.Range{Start: 5, End: 5}
	state.properties.fire()
	assert.Equal(t, 10.0, control.max)
	control.userInput(5)
	assert.InDelta(t, 0.5, state.sent[1], 1e-12)
}

func TestSliderRejectsBadDescriptors(t *testing.T) {
	_, err := BindSlider(params.Descriptor{ID: "GAIN", Kind: params.Continuous, Range: &params.Range{Start: 1, End: 1}}, &fakeSlider{}, &fakeSliderState{}, nil)
	var cfgErr *params.ConfigError
	require.True(t, errors.As(err, &cfgErr))

	_, err = BindSlider(params.Descriptor{ID: "BYPASS", Kind: params.Boolean}, &fakeSlider{}, &fakeSliderState{}, nil)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestToggleBackendNotificationChecksBox(t *testing.T) {
	control := &fakeCheckbox{}
	state := &fakeToggleState{}
	_, err := BindToggle(params.Descriptor{ID: "BYPASS", Kind: params.Boolean}, control, state, nil)
	require.NoError(t, err)

	state.value = true
	state.values.fire()

	assert.True(t, control.checked)
	assert.Empty(t, state.sent, "no outbound setter call for a backend update")
}

func TestToggleInputPassesThrough(t *testing.T) {
	control := &fakeCheckbox{}
	state := &fakeToggleState{}
	_, err := BindToggle(params.Descriptor{ID: "CLIPPING", Kind: params.Boolean}, control, state, nil)
	require.NoError(t, err)

	control.userInput(true)
	control.userInput(false)
	assert.Equal(t, []bool{true, false}, state.sent)
	assert.Zero(t, control.writes)
}

func TestCloseReleasesListeners(t *testing.T) {
	control := &fakeCheckbox{}
	state := &fakeToggleState{}
	b, err := BindToggle(params.Descriptor{ID: "BYPASS", Kind: params.Boolean}, control, state, nil)
	require.NoError(t, err)

	b.Close()
	assert.Empty(t, control.input.fns)
	assert.Empty(t, state.values.fns)

	state.value = true
	state.values.fire()
	assert.False(t, control.checked)
}
