package app

import (
	"context"
	"log/slog"

	"github.com/guidoenr/gainbridge/internal/binding"
	"github.com/guidoenr/gainbridge/internal/bridge"
	"github.com/guidoenr/gainbridge/internal/config"
	"github.com/guidoenr/gainbridge/internal/logging"
	"github.com/guidoenr/gainbridge/internal/metering"
	"github.com/guidoenr/gainbridge/internal/params"
	"github.com/guidoenr/gainbridge/internal/view"
)

// Backend is what the UI needs from the host: parameter handles, named
// signals and resource fetches.
type Backend interface {
	SliderState(id string) binding.SliderState
	ToggleState(id string) binding.ToggleState
	AddEventListener(name string, fn func()) (remove func())
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// ClientBackend adapts a bridge client to Backend.
type ClientBackend struct{ *bridge.Client }

func (c ClientBackend) SliderState(id string) binding.SliderState { return c.Client.SliderState(id) }
func (c ClientBackend) ToggleState(id string) binding.ToggleState { return c.Client.ToggleState(id) }

var (
	_ binding.SliderState = (*bridge.SliderState)(nil)
	_ binding.ToggleState = (*bridge.ToggleState)(nil)
	_ Backend             = ClientBackend{}
)

// Wiring is everything Bootstrap created.
type Wiring struct {
	Bindings []*binding.Binding
	Pipeline *metering.Pipeline
	// Errors holds the configuration problems that were logged and skipped.
	Errors []error
}

// Close releases bindings and the metering subscription.
func (w *Wiring) Close() {
	for _, b := range w.Bindings {
		b.Close()
	}
	if w.Pipeline != nil {
		w.Pipeline.Close()
	}
}

// Bootstrap binds every configured control and builds the metering
// pipeline. Configuration errors are logged and the affected control or
// channel is skipped; the rest still initializes. post schedules renders on
// the UI loop.
func Bootstrap(doc *view.Document, layout config.Layout, backend Backend, post func(func()), log *slog.Logger) *Wiring {
	if log == nil {
		log = slog.Default()
	}
	w := &Wiring{}
	fail := func(err error) {
		log.Error("skipping", "error", err)
		w.Errors = append(w.Errors, err)
	}

	for _, c := range layout.Controls {
		desc, err := layout.Descriptor(c.Parameter)
		if err != nil {
			fail(err)
			continue
		}

		var b *binding.Binding
		switch desc.Kind {
		case params.Continuous:
			slider, err := doc.Slider(c.Element)
			if err != nil {
				fail(err)
				continue
			}
			b, err = binding.BindSlider(desc, slider, backend.SliderState(desc.ID), logging.Get(logging.BINDING))
			if err != nil {
				fail(err)
				continue
			}
		case params.Boolean:
			checkbox, err := doc.Checkbox(c.Element)
			if err != nil {
				fail(err)
				continue
			}
			b, err = binding.BindToggle(desc, checkbox, backend.ToggleState(desc.ID), logging.Get(logging.BINDING))
			if err != nil {
				fail(err)
				continue
			}
		}
		w.Bindings = append(w.Bindings, b)
	}

	var channels []metering.Channel
	meters := layout.Meters.Channels
	if len(meters) > 0 {
		if err := layout.Meters.Validate(); err != nil {
			fail(err)
			meters = nil
		}
	}
	for _, ch := range meters {
		bar, err := doc.Bar(ch.Bar)
		if err != nil {
			fail(err)
			continue
		}
		mc := metering.Channel{Name: ch.Name, Bar: bar}
		if ch.Text != "" {
			text, err := doc.Text(ch.Text)
			if err != nil {
				fail(err)
			} else {
				mc.Text = text
			}
		}
		channels = append(channels, mc)
	}
	if len(channels) > 0 {
		w.Pipeline = metering.New(backend, backend, metering.Config{
			Event:    layout.Meters.Event,
			Resource: layout.Meters.Resource,
			Channels: channels,
			MinDB:    layout.Meters.MinDB,
			MaxDB:    layout.Meters.MaxDB,
			Post:     post,
			Log:      logging.Get(logging.METER),
		})
	}

	log.Info("plugin UI initialized", "controls", len(w.Bindings), "meters", len(channels), "skipped", len(w.Errors))
	return w
}
