package host

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/guidoenr/gainbridge/internal/params"
)

// Parameter is one registered parameter. The normalized value is stored as
// float bits so the audio callback can read it without locking.
type Parameter struct {
	id    string
	kind  params.Kind
	value atomic.Uint64
	rng   atomic.Pointer[params.Range]
}

func (p *Parameter) ID() string        { return p.id }
func (p *Parameter) Kind() params.Kind { return p.kind }

// Normalised returns the current value in [0,1].
func (p *Parameter) Normalised() float64 {
	return math.Float64frombits(p.value.Load())
}

// Scaled returns the value in range units. Boolean parameters report 0 or 1.
func (p *Parameter) Scaled() float64 {
	r := p.rng.Load()
	if r == nil {
		return p.Normalised()
	}
	return r.Denormalize(p.Normalised())
}

// Bool reports a toggle's state.
func (p *Parameter) Bool() bool {
	return p.Normalised() >= 0.5
}

// Range returns the current range; ok is false for boolean parameters.
func (p *Parameter) Range() (params.Range, bool) {
	r := p.rng.Load()
	if r == nil {
		return params.Range{}, false
	}
	return *r, true
}

func (p *Parameter) store(normalised float64) {
	p.value.Store(math.Float64bits(normalised))
}

// Change describes one store notification.
type Change struct {
	ID         string
	Properties bool
}

// Store owns the authoritative parameter values.
type Store struct {
	mu        sync.RWMutex
	order     []string
	params    map[string]*Parameter
	listeners []func(Change)
}

// NewStore registers descs with their defaults.
func NewStore(descs []params.Descriptor) (*Store, error) {
	s := &Store{params: make(map[string]*Parameter, len(descs))}
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.params[d.ID]; dup {
			return nil, &params.ConfigError{What: "parameter " + d.ID, Detail: "registered twice"}
		}
		p := &Parameter{id: d.ID, kind: d.Kind}
		switch d.Kind {
		case params.Continuous:
			r := *d.Range
			p.rng.Store(&r)
			p.store(snap(r, r.ToNormalized(d.Default)))
		case params.Boolean:
			if d.Default >= 0.5 {
				p.store(1)
			}
		}
		s.params[d.ID] = p
		s.order = append(s.order, d.ID)
	}
	return s, nil
}

// OnChange registers fn for every value or properties change. Listeners run
// outside the store lock on the caller's goroutine.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Get looks up a parameter.
func (s *Store) Get(id string) (*Parameter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.params[id]
	return p, ok
}

// All returns parameters in registration order.
func (s *Store) All() []*Parameter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Parameter, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.params[id])
	}
	return out
}

// SetNormalised moves a continuous parameter. The value is clamped into
// [0,1] and snapped to the range interval.
func (s *Store) SetNormalised(id string, v float64) error {
	p, err := s.lookup(id, params.Continuous)
	if err != nil {
		return err
	}
	if math.IsNaN(v) {
		return fmt.Errorf("parameter %s: NaN value", id)
	}
	r, _ := p.Range()
	p.store(snap(r, v))
	s.notify(Change{ID: id})
	return nil
}

// SetScaled moves a continuous parameter by its value in range units.
func (s *Store) SetScaled(id string, v float64) error {
	p, err := s.lookup(id, params.Continuous)
	if err != nil {
		return err
	}
	r, _ := p.Range()
	return s.SetNormalised(id, r.ToNormalized(v))
}

// SetBool sets a toggle.
func (s *Store) SetBool(id string, v bool) error {
	p, err := s.lookup(id, params.Boolean)
	if err != nil {
		return err
	}
	if v {
		p.store(1)
	} else {
		p.store(0)
	}
	s.notify(Change{ID: id})
	return nil
}

// SetRange replaces a continuous parameter's range, keeping its scaled value
// where the new range allows it.
func (s *Store) SetRange(id string, r params.Range) error {
	p, err := s.lookup(id, params.Continuous)
	if err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("parameter %s: %w", id, err)
	}
	scaled := p.Scaled()
	next := r
	p.rng.Store(&next)
	p.store(snap(next, next.ToNormalized(scaled)))
	s.notify(Change{ID: id, Properties: true})
	s.notify(Change{ID: id})
	return nil
}

func (s *Store) lookup(id string, kind params.Kind) (*Parameter, error) {
	p, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown parameter %q", id)
	}
	if p.kind != kind {
		return nil, fmt.Errorf("parameter %s is %s, not %s", id, p.kind, kind)
	}
	return p, nil
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	listeners := make([]func(Change), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(c)
	}
}

// snap maps v onto a legal normalized position of r.
func snap(r params.Range, v float64) float64 {
	return r.ToNormalized(r.Denormalize(v))
}
