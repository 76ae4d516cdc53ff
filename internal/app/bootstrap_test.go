package app

import (
	"context"
	"testing"

	"github.com/eiannone/keyboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidoenr/gainbridge/internal/binding"
	"github.com/guidoenr/gainbridge/internal/config"
	"github.com/guidoenr/gainbridge/internal/meter"
	"github.com/guidoenr/gainbridge/internal/params"
	"github.com/guidoenr/gainbridge/internal/view"
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

type sliderHandle struct {
	scaled     float64
	props      params.Range
	sent       []float64
	values     listeners
	properties listeners
}

func (s *sliderHandle) ScaledValue() float64                   { return s.scaled }
func (s *sliderHandle) SetNormalisedValue(v float64)           { s.sent = append(s.sent, v) }
func (s *sliderHandle) Properties() params.Range               { return s.props }
func (s *sliderHandle) AddValueListener(fn func()) func()      { return s.values.add(fn) }
func (s *sliderHandle) AddPropertiesListener(fn func()) func() { return s.properties.add(fn) }

type toggleHandle struct {
	value  bool
	sent   []bool
	values listeners
}

func (t *toggleHandle) Value() bool                       { return t.value }
func (t *toggleHandle) SetValue(v bool)                   { t.sent = append(t.sent, v) }
func (t *toggleHandle) AddValueListener(fn func()) func() { return t.values.add(fn) }

type fakeBackend struct {
	sliders map[string]*sliderHandle
	toggles map[string]*toggleHandle
	events  map[string]*listeners
	payload []byte
	fetched []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		sliders: map[string]*sliderHandle{},
		toggles: map[string]*toggleHandle{},
		events:  map[string]*listeners{},
	}
}

func (f *fakeBackend) SliderState(id string) binding.SliderState {
	if _, ok := f.sliders[id]; !ok {
		f.sliders[id] = &sliderHandle{}
	}
	return f.sliders[id]
}

func (f *fakeBackend) ToggleState(id string) binding.ToggleState {
	if _, ok := f.toggles[id]; !ok {
		f.toggles[id] = &toggleHandle{}
	}
	return f.toggles[id]
}

func (f *fakeBackend) AddEventListener(name string, fn func()) func() {
	if _, ok := f.events[name]; !ok {
		f.events[name] = &listeners{}
	}
	return f.events[name].add(fn)
}

func (f *fakeBackend) Fetch(_ context.Context, name string) ([]byte, error) {
	f.fetched = append(f.fetched, name)
	return f.payload, nil
}

func (f *fakeBackend) emit(name string) {
	if l, ok := f.events[name]; ok {
		l.fire()
	}
}

func inline(fn func()) { fn() }

func bootstrapDefault(t *testing.T, layout config.Layout) (*view.Document, *fakeBackend, *Wiring) {
	t.Helper()
	doc, errs := view.NewDocument(layout.Title, layout.Elements)
	require.Empty(t, errs)
	backend := newFakeBackend()
	w := Bootstrap(doc, layout, backend, inline, nil)
	t.Cleanup(w.Close)
	return doc, backend, w
}

func TestBootstrapDefaultLayout(t *testing.T) {
	_, backend, w := bootstrapDefault(t, config.Default())

	assert.Len(t, w.Bindings, 3)
	assert.Empty(t, w.Errors)
	require.NotNil(t, w.Pipeline)
	assert.Equal(t, 2, w.Pipeline.Channels())
	assert.Contains(t, backend.sliders, "GAIN")
	assert.Contains(t, backend.toggles, "BYPASS")
	assert.Contains(t, backend.toggles, "CLIPPING")
}

func TestBootstrapSkipsMissingElement(t *testing.T) {
	layout := config.Default()
	layout.Elements = layout.Elements[1:] // no gainSlider

	doc, backend, w := bootstrapDefault(t, layout)

	require.Len(t, w.Errors, 1)
	var cfgErr *params.ConfigError
	assert.ErrorAs(t, w.Errors[0], &cfgErr)
	assert.Len(t, w.Bindings, 2)

	// the remaining bindings still work
	backend.toggles["BYPASS"].value = true
	backend.toggles["BYPASS"].values.fire()
	bypass, err := doc.Checkbox("bypassCheckbox")
	require.NoError(t, err)
	assert.True(t, bypass.Checked())
	assert.Empty(t, backend.toggles["BYPASS"].sent, "a notification never triggers a setter")
}

func TestBootstrapSkipsUnknownParameterAndMissingText(t *testing.T) {
	layout := config.Default()
	layout.Controls = append(layout.Controls, config.ControlConfig{Element: "gainSlider", Parameter: "VOLUME"})
	layout.Meters.Channels[1].Text = "nowhere"

	_, _, w := bootstrapDefault(t, layout)

	assert.Len(t, w.Errors, 2)
	assert.Len(t, w.Bindings, 3)
	assert.Equal(t, 2, w.Pipeline.Channels(), "a channel without its text still renders the bar")
}

func TestBootstrapSkipsMetersWithInvertedRange(t *testing.T) {
	layout := config.Default()
	layout.Meters.MinDB, layout.Meters.MaxDB = 6, -60

	_, backend, w := bootstrapDefault(t, layout)

	require.Len(t, w.Errors, 1)
	var cfgErr *params.ConfigError
	assert.ErrorAs(t, w.Errors[0], &cfgErr)
	assert.Nil(t, w.Pipeline)
	assert.Len(t, w.Bindings, 3, "controls still bind")
	assert.Empty(t, backend.events, "no meter subscription")
}

func TestBootstrapSliderRoundTrip(t *testing.T) {
	doc, backend, _ := bootstrapDefault(t, config.Default())
	slider, err := doc.Slider("gainSlider")
	require.NoError(t, err)
	assert.Equal(t, 0.01, slider.Step())

	// keyboard nudge behaves like a DOM input event
	slider.SetValue(0.5)
	doc.HandleKey(view.KeyIncrease)
	gain := backend.sliders["GAIN"]
	require.Len(t, gain.sent, 1)
	assert.InDelta(t, 0.51, gain.sent[0], 1e-9)

	gain.scaled = 0.51
	gain.values.fire()
	assert.InDelta(t, 0.51, slider.Value(), 1e-9)
	assert.Len(t, gain.sent, 1)
}

func TestBootstrapMeterSignal(t *testing.T) {
	doc, backend, w := bootstrapDefault(t, config.Default())
	backend.payload = []byte(`{"input": -3.2, "output": -61.0}`)

	backend.emit("meterLevels")
	w.Pipeline.Close()

	assert.Equal(t, []string{"meterLevels.json"}, backend.fetched)

	in, _ := doc.Bar("input-meter-bar")
	assert.InDelta(t, 86.06, in.Height(), 0.01)
	assert.Equal(t, meter.Yellow.Color(), in.Color())
	inText, _ := doc.Text("input-peak-value")
	assert.Equal(t, "-3.2 dB", inText.Text())

	out, _ := doc.Bar("output-meter-bar")
	assert.Equal(t, 0.0, out.Height())
	assert.Equal(t, meter.Green.Color(), out.Color())
	outText, _ := doc.Text("output-peak-value")
	assert.Equal(t, "-61.0 dB", outText.Text())
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, view.KeyQuit, keyFor('q', 0))
	assert.Equal(t, view.KeyQuit, keyFor(0, keyboard.KeyEsc))
	assert.Equal(t, view.KeyNext, keyFor(0, keyboard.KeyTab))
	assert.Equal(t, view.KeyPrev, keyFor(0, keyboard.KeyArrowUp))
	assert.Equal(t, view.KeyIncrease, keyFor('l', 0))
	assert.Equal(t, view.KeyDecrease, keyFor(0, keyboard.KeyArrowLeft))
	assert.Equal(t, view.KeyActivate, keyFor(0, keyboard.KeySpace))
	assert.Equal(t, view.KeyNone, keyFor('x', 0))
}

func TestNewRejectsWindowWithoutSDL(t *testing.T) {
	if view.SupportsWindow() {
		t.Skip("built with sdl")
	}
	_, err := New(context.Background(), Config{HostURL: "http://127.0.0.1:1", Layout: config.Default(), Window: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-tags sdl")
}
