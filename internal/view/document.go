// Package view is the UI's document: a flat tree of input controls, meter
// bars and text looked up by id, plus the renderers that draw it.
//
// Elements are not safe for concurrent use. They belong to the UI event loop.
package view

import (
	"fmt"
	"math"
	"sort"

	"github.com/guidoenr/gainbridge/internal/config"
	"github.com/guidoenr/gainbridge/internal/params"
)

// Element is anything the document can hold.
type Element interface {
	ID() string
	Label() string
}

type listeners struct {
	next int
	fns  map[int]func()
}

func (l *listeners) add(fn func()) func() {
	if l.fns == nil {
		l.fns = make(map[int]func())
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() { delete(l.fns, id) }
}

func (l *listeners) fire() {
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := l.fns[id]; ok {
			fn()
		}
	}
}

type base struct {
	id    string
	label string
}

func (b base) ID() string    { return b.id }
func (b base) Label() string { return b.label }

// Slider behaves like an HTML range input: its value is clamped into
// [min, max] and an input event fires only on user interaction.
type Slider struct {
	base
	value, min, max, step float64
	input                 listeners
}

func NewSlider(id, label string) *Slider {
	return &Slider{base: base{id: id, label: label}, max: 1, step: params.MinStep}
}

func (s *Slider) Value() float64 { return s.value }
func (s *Slider) Min() float64   { return s.min }
func (s *Slider) Max() float64   { return s.max }
func (s *Slider) Step() float64  { return s.step }

func (s *Slider) SetValue(v float64) {
	if math.IsNaN(v) {
		return
	}
	s.value = s.clamp(v)
}

func (s *Slider) SetRange(min, max float64) {
	s.min, s.max = min, max
	s.value = s.clamp(s.value)
}

func (s *Slider) SetStep(step float64) {
	if step > 0 {
		s.step = step
	}
}

func (s *Slider) AddInputListener(fn func()) func() { return s.input.add(fn) }

// Nudge moves the slider by steps and fires an input event if the value
// changed.
func (s *Slider) Nudge(steps int) {
	next := s.clamp(s.value + float64(steps)*s.step)
	if next == s.value {
		return
	}
	s.value = next
	s.input.fire()
}

// Fraction is the thumb position in [0,1].
func (s *Slider) Fraction() float64 {
	if s.max == s.min {
		return 0
	}
	return (s.value - s.min) / (s.max - s.min)
}

func (s *Slider) clamp(v float64) float64 {
	lo, hi := s.min, s.max
	if lo > hi {
		lo, hi = hi, lo
	}
	return math.Max(lo, math.Min(v, hi))
}

// Checkbox is a boolean input.
type Checkbox struct {
	base
	checked bool
	input   listeners
}

func NewCheckbox(id, label string) *Checkbox {
	return &Checkbox{base: base{id: id, label: label}}
}

func (c *Checkbox) Checked() bool                     { return c.checked }
func (c *Checkbox) SetChecked(v bool)                 { c.checked = v }
func (c *Checkbox) AddInputListener(fn func()) func() { return c.input.add(fn) }

// Toggle flips the box and fires an input event, like a click.
func (c *Checkbox) Toggle() {
	c.checked = !c.checked
	c.input.fire()
}

// Bar is a level bar; height is a percentage of its track.
type Bar struct {
	base
	height float64
	color  string
}

func NewBar(id, label string) *Bar {
	return &Bar{base: base{id: id, label: label}}
}

func (b *Bar) SetHeight(pct float64) { b.height = pct }
func (b *Bar) SetColor(hex string)   { b.color = hex }
func (b *Bar) Height() float64       { return b.height }
func (b *Bar) Color() string         { return b.color }

// Text holds a line of text content.
type Text struct {
	base
	text string
}

func NewText(id, label string) *Text {
	return &Text{base: base{id: id, label: label}}
}

func (t *Text) SetText(s string) { t.text = s }
func (t *Text) Text() string     { return t.text }

// Document holds elements in declaration order.
type Document struct {
	Title    string
	elements []Element
	byID     map[string]Element
	focus    int
}

// NewDocument builds a document from layout declarations. Elements with an
// unknown type or a duplicate id are reported and left out.
func NewDocument(title string, decls []config.ElementConfig) (*Document, []error) {
	d := &Document{Title: title, byID: make(map[string]Element)}
	var errs []error
	for _, e := range decls {
		var el Element
		switch e.Type {
		case config.ElementSlider:
			el = NewSlider(e.ID, e.Label)
		case config.ElementCheckbox:
			el = NewCheckbox(e.ID, e.Label)
		case config.ElementBar:
			el = NewBar(e.ID, e.Label)
		case config.ElementText:
			el = NewText(e.ID, e.Label)
		default:
			errs = append(errs, &params.ConfigError{What: "element " + e.ID, Detail: fmt.Sprintf("unknown type %q", e.Type)})
			continue
		}
		if err := d.Add(el); err != nil {
			errs = append(errs, err)
		}
	}
	return d, errs
}

// Add appends an element.
func (d *Document) Add(el Element) error {
	if _, dup := d.byID[el.ID()]; dup {
		return &params.ConfigError{What: "element " + el.ID(), Detail: "declared twice"}
	}
	d.byID[el.ID()] = el
	d.elements = append(d.elements, el)
	if _, ok := d.Focused(); !ok {
		d.focus = d.nextFocusable(-1, 1)
	}
	return nil
}

// GetElementByID returns the element or nil.
func (d *Document) GetElementByID(id string) Element {
	return d.byID[id]
}

// Elements returns elements in declaration order.
func (d *Document) Elements() []Element { return d.elements }

// Slider looks up a slider; a missing or differently typed element is a
// ConfigError.
func (d *Document) Slider(id string) (*Slider, error) {
	el := d.GetElementByID(id)
	if el == nil {
		return nil, params.MissingElement(id)
	}
	s, ok := el.(*Slider)
	if !ok {
		return nil, wrongType(id, "slider", el)
	}
	return s, nil
}

func (d *Document) Checkbox(id string) (*Checkbox, error) {
	el := d.GetElementByID(id)
	if el == nil {
		return nil, params.MissingElement(id)
	}
	c, ok := el.(*Checkbox)
	if !ok {
		return nil, wrongType(id, "checkbox", el)
	}
	return c, nil
}

func (d *Document) Bar(id string) (*Bar, error) {
	el := d.GetElementByID(id)
	if el == nil {
		return nil, params.MissingElement(id)
	}
	b, ok := el.(*Bar)
	if !ok {
		return nil, wrongType(id, "bar", el)
	}
	return b, nil
}

func (d *Document) Text(id string) (*Text, error) {
	el := d.GetElementByID(id)
	if el == nil {
		return nil, params.MissingElement(id)
	}
	t, ok := el.(*Text)
	if !ok {
		return nil, wrongType(id, "text", el)
	}
	return t, nil
}

func wrongType(id, want string, got Element) error {
	return &params.ConfigError{What: "element " + id, Detail: fmt.Sprintf("is %T, want %s", got, want)}
}

func focusable(el Element) bool {
	switch el.(type) {
	case *Slider, *Checkbox:
		return true
	}
	return false
}

// Focused returns the element receiving keys.
func (d *Document) Focused() (Element, bool) {
	if d.focus < 0 || d.focus >= len(d.elements) || !focusable(d.elements[d.focus]) {
		return nil, false
	}
	return d.elements[d.focus], true
}

func (d *Document) nextFocusable(from, dir int) int {
	n := len(d.elements)
	for i := 1; i <= n; i++ {
		idx := ((from+dir*i)%n + n) % n
		if focusable(d.elements[idx]) {
			return idx
		}
	}
	return -1
}
