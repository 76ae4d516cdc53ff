// Package host is the backend the UI talks to: it owns parameter values,
// meters the processed signal and announces new readings.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guidoenr/gainbridge/internal/bridge"
	"github.com/guidoenr/gainbridge/internal/meter"
	"github.com/guidoenr/gainbridge/internal/params"
)

// DefaultMeterInterval matches the editor timer of the plugin.
const DefaultMeterInterval = 60 * time.Millisecond

// Config configures a Host.
type Config struct {
	Parameters    []params.Descriptor
	MeterInterval time.Duration
	ReleaseMs     float64
	// MeterEvent and MeterResource name the signal and the resource the UI
	// listens for and fetches.
	MeterEvent    string
	MeterResource string
	Log           *slog.Logger
}

// Broadcaster delivers messages to every connected UI.
type Broadcaster interface {
	Broadcast(m bridge.Message)
}

// ResourceHandler produces a dynamic resource on request.
type ResourceHandler func() (data []byte, contentType string, err error)

// Host ties the parameter store, the processor and the resource provider
// together. It satisfies the web server's Backend interface.
type Host struct {
	cfg       Config
	store     *Store
	processor *Processor
	log       *slog.Logger

	mu        sync.RWMutex
	out       Broadcaster
	resources map[string]ResourceHandler
}

// New registers the configured parameters and the meter resource.
func New(cfg Config) (*Host, error) {
	if len(cfg.Parameters) == 0 {
		cfg.Parameters = params.Defaults()
	}
	if cfg.MeterInterval <= 0 {
		cfg.MeterInterval = DefaultMeterInterval
	}
	if cfg.ReleaseMs <= 0 {
		cfg.ReleaseMs = DefaultReleaseMs
	}
	if cfg.MeterEvent == "" {
		cfg.MeterEvent = bridge.MeterLevelsEvent
	}
	if cfg.MeterResource == "" {
		cfg.MeterResource = bridge.MeterLevelsResource
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	store, err := NewStore(cfg.Parameters)
	if err != nil {
		return nil, fmt.Errorf("register parameters: %w", err)
	}

	h := &Host{
		cfg:       cfg,
		store:     store,
		processor: NewProcessor(store),
		log:       cfg.Log,
		resources: make(map[string]ResourceHandler),
	}
	store.OnChange(h.publish)
	h.RegisterResource(cfg.MeterResource, h.meterLevels)
	return h, nil
}

// Store exposes the parameter store.
func (h *Host) Store() *Store { return h.store }

// Processor exposes the signal path.
func (h *Host) Processor() *Processor { return h.processor }

// Attach sets where parameter notifications and signals go.
func (h *Host) Attach(out Broadcaster) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.out = out
}

func (h *Host) broadcaster() Broadcaster {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.out
}

// Prepare sizes the meters for the audio stream, like prepareToPlay.
func (h *Host) Prepare(sampleRate float64, channels int) {
	h.processor.Prepare(sampleRate, channels, h.cfg.ReleaseMs)
	h.log.Info("host prepared", "sample_rate", sampleRate, "channels", channels, "release_ms", h.cfg.ReleaseMs)
}

// Process runs on the audio callback.
func (h *Host) Process(block [][]float32) {
	h.processor.Process(block)
}

// RegisterResource maps a resource name to a handler, replacing any
// previous one.
func (h *Host) RegisterResource(name string, fn ResourceHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resources[name] = fn
}

// Resource serves a dynamic resource.
func (h *Host) Resource(name string) ([]byte, string, bool) {
	h.mu.RLock()
	fn, ok := h.resources[name]
	h.mu.RUnlock()
	if !ok {
		return nil, "", false
	}
	data, contentType, err := fn()
	if err != nil {
		h.log.Error("resource handler failed", "resource", name, "error", err)
		return nil, "", false
	}
	return data, contentType, true
}

// MeterLevels is the payload of the meter resource.
type MeterLevels struct {
	Input  meter.Level `json:"input"`
	Output meter.Level `json:"output"`
}

// Levels reads both meters.
func (h *Host) Levels() MeterLevels {
	return MeterLevels{
		Input:  meter.Level(h.processor.Input.MonoPeakDB()),
		Output: meter.Level(h.processor.Output.MonoPeakDB()),
	}
}

func (h *Host) meterLevels() ([]byte, string, error) {
	data, err := json.Marshal(h.Levels())
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

// RunMeterTimer announces a new reading every interval until ctx is done.
// Signals are skipped while nobody is connected.
func (h *Host) RunMeterTimer(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.MeterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			out := h.broadcaster()
			if out == nil {
				continue
			}
			if c, ok := out.(interface{ ClientCount() int }); ok && c.ClientCount() == 0 {
				continue
			}
			out.Broadcast(bridge.Event(h.cfg.MeterEvent))
		}
	}
}

func (h *Host) publish(c Change) {
	out := h.broadcaster()
	if out == nil {
		return
	}
	p, ok := h.store.Get(c.ID)
	if !ok {
		return
	}
	if m, ok := notification(p, c.Properties); ok {
		out.Broadcast(m)
	}
}

func notification(p *Parameter, properties bool) (bridge.Message, bool) {
	if properties {
		r, ok := p.Range()
		if !ok {
			return bridge.Message{}, false
		}
		return bridge.Properties(p.ID(), r), true
	}
	if p.Kind() == params.Boolean {
		return bridge.BooleanValue(p.ID(), p.Bool()), true
	}
	return bridge.ContinuousValue(p.ID(), p.Normalised(), p.Scaled()), true
}

// Snapshot returns properties then value of every parameter.
func (h *Host) Snapshot() []bridge.Message {
	var out []bridge.Message
	for _, p := range h.store.All() {
		if m, ok := notification(p, true); ok {
			out = append(out, m)
		}
		m, _ := notification(p, false)
		out = append(out, m)
	}
	return out
}

// Parameters describes every registered parameter.
func (h *Host) Parameters() []bridge.ParameterInfo {
	all := h.store.All()
	out := make([]bridge.ParameterInfo, 0, len(all))
	for _, p := range all {
		info := bridge.ParameterInfo{
			ID:         p.ID(),
			Kind:       p.Kind().String(),
			Normalised: p.Normalised(),
			Scaled:     p.Scaled(),
			Bool:       p.Kind() == params.Boolean && p.Bool(),
		}
		if r, ok := p.Range(); ok {
			info.Range = &r
		}
		out = append(out, info)
	}
	return out
}

// SetNormalised applies a UI request for a continuous parameter.
func (h *Host) SetNormalised(id string, v float64) error {
	return h.store.SetNormalised(id, v)
}

// SetBool applies a UI request for a toggle.
func (h *Host) SetBool(id string, v bool) error {
	return h.store.SetBool(id, v)
}
