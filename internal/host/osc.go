package host

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/guidoenr/gainbridge/internal/logging"
	"github.com/guidoenr/gainbridge/internal/params"
)

type namedHandler struct {
	pattern string
	handler func(msg *osc.Message, captures []string)
}

// Dispatcher is a custom osc.Dispatcher routing automation messages onto the
// parameter store:
//
//	/param/{ID}                    float32 normalized value, or bool/int32/float32 for toggles
//	/param/{ID}/scaled             float32 value in range units
//	/range/{ID}                    float32 start, end, interval
//	/meta/logging/{category}/level int32 slog level
type Dispatcher struct {
	store    *Store
	log      *slog.Logger
	handlers []namedHandler
}

// NewDispatcher wires the parameter and logging routes.
func NewDispatcher(store *Store, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{store: store, log: log}
	d.AddMsgHandler("/param/@", d.handleParam)
	d.AddMsgHandler("/param/@/scaled", d.handleScaled)
	d.AddMsgHandler("/range/@", d.handleRange)
	d.AddMsgHandler("/meta/logging/*", func(msg *osc.Message, _ []string) {
		logging.HandleOSCSetCategoryLevel(msg)
	})
	return d
}

// AddMsgHandler registers a handler. "@" matches one address segment and is
// captured; a trailing "*" matches any suffix.
func (d *Dispatcher) AddMsgHandler(pattern string, handler func(*osc.Message, []string)) {
	d.handlers = append(d.handlers, namedHandler{pattern: pattern, handler: handler})
}

func matchAddr(pattern, addr string) (bool, []string) {
	patSegs := strings.Split(pattern, "/")
	addrSegs := strings.Split(addr, "/")

	n := len(patSegs)
	if patSegs[n-1] == "*" {
		n--
		if len(addrSegs) < n {
			return false, nil
		}
	} else if len(patSegs) != len(addrSegs) {
		return false, nil
	}

	var captures []string
	for i := 0; i < n; i++ {
		switch patSegs[i] {
		case "@":
			captures = append(captures, addrSegs[i])
		case addrSegs[i]:
		default:
			return false, nil
		}
	}
	return true, captures
}

// Dispatch implements osc.Dispatcher.
func (d *Dispatcher) Dispatch(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		d.dispatchMessage(p)
	case *osc.Bundle:
		timer := time.NewTimer(p.Timetag.ExpiresIn())
		go func() {
			<-timer.C
			for _, m := range p.Messages {
				d.dispatchMessage(m)
			}
			for _, b := range p.Bundles {
				d.Dispatch(b)
			}
		}()
	}
}

func (d *Dispatcher) dispatchMessage(msg *osc.Message) {
	matched := false
	for _, h := range d.handlers {
		if ok, captures := matchAddr(h.pattern, msg.Address); ok {
			matched = true
			h.handler(msg, captures)
		}
	}
	if !matched {
		d.log.Debug("unhandled osc address", "address", msg.Address)
	}
}

func (d *Dispatcher) handleParam(msg *osc.Message, captures []string) {
	id := captures[0]
	p, ok := d.store.Get(id)
	if !ok {
		d.log.Warn("osc message for unknown parameter", "parameter", id)
		return
	}
	if len(msg.Arguments) == 0 {
		d.log.Warn("osc message without argument", "address", msg.Address)
		return
	}

	var err error
	switch p.Kind() {
	case params.Boolean:
		var v bool
		v, err = oscBool(msg.Arguments[0])
		if err == nil {
			err = d.store.SetBool(id, v)
		}
	default:
		v, ok := msg.Arguments[0].(float32)
		if !ok {
			err = fmt.Errorf("expected float32, got %T", msg.Arguments[0])
			break
		}
		err = d.store.SetNormalised(id, float64(v))
	}
	if err != nil {
		d.log.Warn("osc parameter update rejected", "parameter", id, "error", err)
	}
}

func (d *Dispatcher) handleScaled(msg *osc.Message, captures []string) {
	id := captures[0]
	v, err := oscFloats(msg, 1)
	if err == nil {
		err = d.store.SetScaled(id, v[0])
	}
	if err != nil {
		d.log.Warn("osc scaled update rejected", "parameter", id, "error", err)
	}
}

// handleRange replaces a parameter's range; connected UIs receive a
// properties notification followed by the re-snapped value.
func (d *Dispatcher) handleRange(msg *osc.Message, captures []string) {
	id := captures[0]
	v, err := oscFloats(msg, 3)
	if err == nil {
		err = d.store.SetRange(id, params.Range{Start: v[0], End: v[1], Interval: v[2]})
	}
	if err != nil {
		d.log.Warn("osc range update rejected", "parameter", id, "error", err)
	}
}

func oscFloats(msg *osc.Message, n int) ([]float64, error) {
	if len(msg.Arguments) != n {
		return nil, fmt.Errorf("expected %d float32 arguments, got %d", n, len(msg.Arguments))
	}
	out := make([]float64, n)
	for i, arg := range msg.Arguments {
		f, ok := arg.(float32)
		if !ok {
			return nil, fmt.Errorf("argument %d: expected float32, got %T", i, arg)
		}
		out[i] = float64(f)
	}
	return out, nil
}

func oscBool(arg any) (bool, error) {
	switch v := arg.(type) {
	case bool:
		return v, nil
	case int32:
		return v != 0, nil
	case float32:
		return v >= 0.5, nil
	default:
		return false, fmt.Errorf("expected bool, int32 or float32, got %T", arg)
	}
}

// ServeOSC listens for UDP automation on addr until ctx is done.
func ServeOSC(ctx context.Context, addr string, d *Dispatcher) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("listen osc: %w", err)
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	d.log.Info("osc listening", "addr", conn.LocalAddr().String())
	server := &osc.Server{Dispatcher: d}
	if err := server.Serve(conn); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve osc: %w", err)
	}
	return nil
}
