// Package config loads the UI layout: which parameters exist, which document
// elements show them and which meter channels are rendered.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/guidoenr/gainbridge/internal/bridge"
	"github.com/guidoenr/gainbridge/internal/meter"
	"github.com/guidoenr/gainbridge/internal/params"
)

// Element types.
const (
	ElementSlider   = "slider"
	ElementCheckbox = "checkbox"
	ElementBar      = "bar"
	ElementText     = "text"
)

type Layout struct {
	Title      string            `yaml:"title"`
	Parameters []ParameterConfig `yaml:"parameters"`
	Elements   []ElementConfig   `yaml:"elements"`
	Controls   []ControlConfig   `yaml:"controls"`
	Meters     MeterConfig       `yaml:"meters"`
}

type ParameterConfig struct {
	ID      string        `yaml:"id"`
	Kind    string        `yaml:"kind"`
	Range   *params.Range `yaml:"range,omitempty"`
	Default float64       `yaml:"default"`
}

type ElementConfig struct {
	ID    string `yaml:"id"`
	Type  string `yaml:"type"`
	Label string `yaml:"label"`
}

// ControlConfig binds a document element to a parameter.
type ControlConfig struct {
	Element   string `yaml:"element"`
	Parameter string `yaml:"parameter"`
}

type MeterConfig struct {
	Event    string          `yaml:"event"`
	Resource string          `yaml:"resource"`
	MinDB    float64         `yaml:"min_db"`
	MaxDB    float64         `yaml:"max_db"`
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig maps a reading key to its bar and text elements.
type ChannelConfig struct {
	Name string `yaml:"name"`
	Bar  string `yaml:"bar"`
	Text string `yaml:"text"`
}

// Default is the gain plugin's layout.
func Default() Layout {
	return Layout{
		Title: "Gain",
		Parameters: []ParameterConfig{
			{ID: "GAIN", Kind: "continuous", Range: &params.Range{Start: 0, End: 1, Interval: 0.01}, Default: 1},
			{ID: "BYPASS", Kind: "boolean"},
			{ID: "CLIPPING", Kind: "boolean"},
		},
		Elements: []ElementConfig{
			{ID: "gainSlider", Type: ElementSlider, Label: "Gain"},
			{ID: "bypassCheckbox", Type: ElementCheckbox, Label: "Bypass"},
			{ID: "clippingCheckbox", Type: ElementCheckbox, Label: "Soft clip"},
			{ID: "input-meter-bar", Type: ElementBar, Label: "In"},
			{ID: "input-peak-value", Type: ElementText},
			{ID: "output-meter-bar", Type: ElementBar, Label: "Out"},
			{ID: "output-peak-value", Type: ElementText},
		},
		Controls: []ControlConfig{
			{Element: "gainSlider", Parameter: "GAIN"},
			{Element: "bypassCheckbox", Parameter: "BYPASS"},
			{Element: "clippingCheckbox", Parameter: "CLIPPING"},
		},
		Meters: MeterConfig{
			Event:    bridge.MeterLevelsEvent,
			Resource: bridge.MeterLevelsResource,
			MinDB:    meter.DefaultMinDB,
			MaxDB:    meter.DefaultMaxDB,
			Channels: []ChannelConfig{
				{Name: "input", Bar: "input-meter-bar", Text: "input-peak-value"},
				{Name: "output", Bar: "output-meter-bar", Text: "output-peak-value"},
			},
		},
	}
}

// Load reads a layout file. An empty path returns Default.
func Load(path string) (Layout, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Layout{}, fmt.Errorf("open layout: %w", err)
	}
	defer f.Close()

	l, err := Read(f)
	if err != nil {
		return Layout{}, fmt.Errorf("layout %s: %w", path, err)
	}
	return l, nil
}

// Read decodes a layout. Sections left out of the document keep their
// defaults; unknown keys are rejected.
func Read(r io.Reader) (Layout, error) {
	l := Default()
	var doc Layout
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Layout{}, fmt.Errorf("decode: %w", err)
	}

	if doc.Title != "" {
		l.Title = doc.Title
	}
	if doc.Parameters != nil {
		l.Parameters = doc.Parameters
	}
	if doc.Elements != nil {
		l.Elements = doc.Elements
	}
	if doc.Controls != nil {
		l.Controls = doc.Controls
	}
	if doc.Meters.Event != "" {
		l.Meters.Event = doc.Meters.Event
	}
	if doc.Meters.Resource != "" {
		l.Meters.Resource = doc.Meters.Resource
	}
	if doc.Meters.MinDB != 0 || doc.Meters.MaxDB != 0 {
		l.Meters.MinDB, l.Meters.MaxDB = doc.Meters.MinDB, doc.Meters.MaxDB
	}
	if doc.Meters.Channels != nil {
		l.Meters.Channels = doc.Meters.Channels
	}
	return l, nil
}

// Descriptor converts and validates one parameter entry.
func (p ParameterConfig) Descriptor() (params.Descriptor, error) {
	kind, err := params.ParseKind(p.Kind)
	if err != nil {
		return params.Descriptor{}, fmt.Errorf("parameter %s: %w", p.ID, err)
	}
	d := params.Descriptor{ID: p.ID, Kind: kind, Default: p.Default}
	if p.Range != nil {
		r := *p.Range
		d.Range = &r
	}
	if err := d.Validate(); err != nil {
		return params.Descriptor{}, err
	}
	return d, nil
}

// Descriptors converts the parameter section. Every invalid entry is
// reported; valid ones are still returned.
func (l Layout) Descriptors() ([]params.Descriptor, error) {
	var (
		out  []params.Descriptor
		errs []error
	)
	for _, p := range l.Parameters {
		d, err := p.Descriptor()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, d)
	}
	return out, errors.Join(errs...)
}

// Descriptor looks up one parameter.
func (l Layout) Descriptor(id string) (params.Descriptor, error) {
	for _, p := range l.Parameters {
		if p.ID == id {
			return p.Descriptor()
		}
	}
	return params.Descriptor{}, &params.ConfigError{What: "control", Detail: fmt.Sprintf("unknown parameter %q", id)}
}

// Validate reports element types that the document cannot build and a
// degenerate meter range.
func (l Layout) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for _, e := range l.Elements {
		switch e.Type {
		case ElementSlider, ElementCheckbox, ElementBar, ElementText:
		default:
			errs = append(errs, &params.ConfigError{What: "element " + e.ID, Detail: fmt.Sprintf("unknown type %q", e.Type)})
		}
		if seen[e.ID] {
			errs = append(errs, &params.ConfigError{What: "element " + e.ID, Detail: "declared twice"})
		}
		seen[e.ID] = true
	}
	if err := l.Meters.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate rejects a meter range whose bottom is not below its top.
func (m MeterConfig) Validate() error {
	if !(m.MinDB < m.MaxDB) {
		return &params.ConfigError{What: "meters", Detail: fmt.Sprintf("min_db %g must be below max_db %g", m.MinDB, m.MaxDB)}
	}
	return nil
}
