// Package metering turns backend level signals into meter renders.
//
// The pipeline is push driven: it never polls. Each signal triggers exactly
// one fetch of the readings resource. Fetches are not cancelled or coalesced,
// so a slow response may overwrite a newer one.
package metering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/guidoenr/gainbridge/internal/bridge"
	"github.com/guidoenr/gainbridge/internal/meter"
)

// EventSource delivers payload-less named backend signals.
type EventSource interface {
	AddEventListener(name string, fn func()) (remove func())
}

// Fetcher resolves a resource name to its bytes.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// Bar is a vertical level bar.
type Bar interface {
	SetHeight(percentage float64)
	SetColor(hex string)
}

// Text displays the numeric reading.
type Text interface {
	SetText(s string)
}

// Channel pairs a reading key with the elements that display it. Text may be
// nil.
type Channel struct {
	Name string
	Bar  Bar
	Text Text
}

// Config configures a Pipeline.
type Config struct {
	Event    string
	Resource string
	Channels []Channel
	MinDB    float64
	MaxDB    float64
	// Post schedules a render onto the goroutine that owns the elements. Nil
	// renders on the fetch goroutine, one render at a time.
	Post func(func())
	Log  *slog.Logger
}

// Pipeline drives meter displays from backend signals.
type Pipeline struct {
	cfg    Config
	fetch  Fetcher
	log    *slog.Logger
	remove func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// renderMu serializes renders when no UI loop is supplied.
	renderMu sync.Mutex
}

// New subscribes to cfg.Event on src. The subscription lives until Close.
func New(src EventSource, fetch Fetcher, cfg Config) *Pipeline {
	if cfg.Event == "" {
		cfg.Event = bridge.MeterLevelsEvent
	}
	if cfg.Resource == "" {
		cfg.Resource = bridge.MeterLevelsResource
	}
	if cfg.MinDB == 0 && cfg.MaxDB == 0 {
		cfg.MinDB, cfg.MaxDB = meter.DefaultMinDB, meter.DefaultMaxDB
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		cfg:    cfg,
		fetch:  fetch,
		log:    cfg.Log,
		ctx:    ctx,
		cancel: cancel,
	}
	if p.cfg.Post == nil {
		p.cfg.Post = p.renderInline
	}
	p.remove = src.AddEventListener(cfg.Event, p.onSignal)
	return p
}

func (p *Pipeline) renderInline(fn func()) {
	p.renderMu.Lock()
	defer p.renderMu.Unlock()
	fn()
}

// Channels reports how many channels the pipeline renders.
func (p *Pipeline) Channels() int { return len(p.cfg.Channels) }

// Close unsubscribes and waits for in-flight fetches.
func (p *Pipeline) Close() {
	p.remove()
	p.cancel()
	p.wg.Wait()
}

func (p *Pipeline) onSignal() {
	if p.ctx.Err() != nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Refresh(p.ctx); err != nil {
			p.log.Error("meter refresh failed", "resource", p.cfg.Resource, "error", err)
		}
	}()
}

// Refresh fetches and parses one reading set and posts the render. On error
// nothing is rendered.
func (p *Pipeline) Refresh(ctx context.Context) error {
	data, err := p.fetch.Fetch(ctx, p.cfg.Resource)
	if err != nil {
		var te *bridge.TransportError
		if !errors.As(err, &te) {
			err = &bridge.TransportError{Op: "fetch", Resource: p.cfg.Resource, Err: err}
		}
		return err
	}

	levels, bad, err := meter.ParseLevels(data)
	if err != nil {
		return &bridge.FormatError{Resource: p.cfg.Resource, Err: err}
	}

	p.cfg.Post(func() { p.render(levels, bad) })
	return nil
}

func (p *Pipeline) render(levels meter.Levels, bad map[string]error) {
	for _, ch := range p.cfg.Channels {
		level, ok := levels[ch.Name]
		if !ok {
			cause := bad[ch.Name]
			if cause == nil {
				cause = fmt.Errorf("missing channel")
			}
			p.log.Warn("skipping meter channel", "error",
				&bridge.FormatError{Resource: p.cfg.Resource, Channel: ch.Name, Err: cause})
			continue
		}

		state := meter.MapReadingRange(level.DB(), p.cfg.MinDB, p.cfg.MaxDB)
		if ch.Bar != nil {
			ch.Bar.SetHeight(state.Percentage)
			ch.Bar.SetColor(state.Zone.Color())
		}
		if ch.Text != nil {
			ch.Text.SetText(state.Text)
		}
		p.log.Debug("meter rendered", "channel", ch.Name, "db", level.DB(), "zone", state.Zone.String())
	}
}
