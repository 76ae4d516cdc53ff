package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guidoenr/gainbridge/internal/params"
)

const (
	defaultFetchTimeout = 2 * time.Second
	maxResourceBytes    = 1 << 20
	sendBuffer          = 64
	writeWait           = 10 * time.Second
)

// Options configures a Client.
type Options struct {
	// Dispatch runs listener callbacks. The UI passes its event loop here so
	// every control write happens on one goroutine. Nil runs callbacks inline
	// on the read goroutine.
	Dispatch   func(func())
	HTTPClient *http.Client
	Log        *slog.Logger
}

// Client is the UI end of the bridge. Handles and listeners must be set up
// before Run so the initial parameter snapshot sent by the host is observed.
type Client struct {
	conn     *websocket.Conn
	base     *url.URL
	http     *http.Client
	dispatch func(func())
	log      *slog.Logger
	send     chan []byte

	mu      sync.Mutex
	params  map[string]*paramState
	events  map[string]*listenerSet
	closed  bool
	closeMu sync.Once
}

type paramState struct {
	id         string
	scaled     float64
	boolean    bool
	props      params.Range
	values     listenerSet
	properties listenerSet
}

// Dial connects to the host at base (for example http://127.0.0.1:8080).
// The websocket endpoint is base/ws; resources live under base/resources/.
func Dial(ctx context.Context, base string, opts Options) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, &TransportError{Op: "dial", Resource: base, Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &TransportError{Op: "dial", Resource: base, Err: fmt.Errorf("host address must be absolute")}
	}

	wsURL := *u
	switch u.Scheme {
	case "https", "wss":
		wsURL.Scheme = "wss"
		u.Scheme = "https"
	default:
		wsURL.Scheme = "ws"
		u.Scheme = "http"
	}
	wsURL.Path = path.Join("/", u.Path, "ws")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return nil, &TransportError{Op: "dial", Resource: wsURL.String(), Err: err}
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultFetchTimeout}
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(fn func()) { fn() }
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	return &Client{
		conn:     conn,
		base:     u,
		http:     opts.HTTPClient,
		dispatch: opts.Dispatch,
		log:      opts.Log,
		send:     make(chan []byte, sendBuffer),
		params:   make(map[string]*paramState),
		events:   make(map[string]*listenerSet),
	}, nil
}

// Run pumps messages until ctx is cancelled or the connection drops.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()
	go c.writePump(ctx)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransportError{Op: "read", Err: err}
		}
		msgs, err := DecodeFrame(frame)
		if err != nil {
			c.log.Error("dropping malformed frame", "error", &FormatError{Resource: "websocket", Err: err})
		}
		for _, m := range msgs {
			c.handle(m)
		}
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeMu.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

func (c *Client) handle(m Message) {
	if err := m.Validate(); err != nil {
		c.log.Warn("ignoring message", "type", m.Type, "error", err)
		return
	}

	switch m.Type {
	case TypeEvent:
		c.mu.Lock()
		set := c.events[m.Name]
		c.mu.Unlock()
		if set != nil {
			c.fire(set)
		}

	case TypeValueChanged:
		c.mu.Lock()
		p := c.param(m.ID)
		if m.Bool != nil {
			p.boolean = *m.Bool
		} else {
			p.scaled = *m.Scaled
		}
		c.mu.Unlock()
		c.fire(&p.values)

	case TypePropertiesChanged:
		c.mu.Lock()
		p := c.param(m.ID)
		p.props = *m.Range
		c.mu.Unlock()
		c.fire(&p.properties)

	default:
		c.log.Warn("unexpected message from host", "type", m.Type)
	}
}

func (c *Client) fire(set *listenerSet) {
	for _, fn := range set.snapshot() {
		c.dispatch(fn)
	}
}

// param must be called with c.mu held.
func (c *Client) param(id string) *paramState {
	p, ok := c.params[id]
	if !ok {
		p = &paramState{id: id}
		c.params[id] = p
	}
	return p
}

func (c *Client) post(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		c.log.Error("encode message", "type", m.Type, "error", err)
		return
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		c.log.Warn("dropping message on closed bridge", "type", m.Type, "id", m.ID)
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("send buffer full, dropping message", "type", m.Type, "id", m.ID)
	}
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error("send failed", "error", &TransportError{Op: "send", Err: err})
				return
			}
		}
	}
}

// AddEventListener registers fn for a named, payload-less host signal.
func (c *Client) AddEventListener(name string, fn func()) (remove func()) {
	c.mu.Lock()
	set, ok := c.events[name]
	if !ok {
		set = &listenerSet{}
		c.events[name] = set
	}
	c.mu.Unlock()
	return set.add(fn)
}

// ResourceURL returns the address a resource name resolves to.
func (c *Client) ResourceURL(name string) string {
	u := *c.base
	u.Path = path.Join("/", c.base.Path, "resources", name)
	return u.String()
}

// Fetch resolves a resource name to its bytes.
func (c *Client) Fetch(ctx context.Context, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ResourceURL(name), nil)
	if err != nil {
		return nil, &TransportError{Op: "fetch", Resource: name, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "fetch", Resource: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResourceBytes))
		return nil, &TransportError{Op: "fetch", Resource: name, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceBytes))
	if err != nil {
		return nil, &TransportError{Op: "fetch", Resource: name, Err: err}
	}
	return data, nil
}

// Parameters returns the ids the client has seen notifications for.
func (c *Client) Parameters() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.params))
	for id := range c.params {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SliderState returns the handle of a continuous parameter.
func (c *Client) SliderState(id string) *SliderState {
	c.mu.Lock()
	p := c.param(id)
	c.mu.Unlock()
	return &SliderState{c: c, p: p}
}

// ToggleState returns the handle of a boolean parameter.
func (c *Client) ToggleState(id string) *ToggleState {
	c.mu.Lock()
	p := c.param(id)
	c.mu.Unlock()
	return &ToggleState{c: c, p: p}
}

// SliderState is a live handle on a continuous parameter. Values are the last
// ones the host reported.
type SliderState struct {
	c *Client
	p *paramState
}

func (s *SliderState) ID() string { return s.p.id }

func (s *SliderState) ScaledValue() float64 {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.p.scaled
}

func (s *SliderState) Properties() params.Range {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.p.props
}

// SetNormalisedValue asks the host to move the parameter. Fire-and-forget:
// the new value arrives later as a value notification.
func (s *SliderState) SetNormalisedValue(v float64) {
	s.c.post(SetNormalised(s.p.id, v))
}

func (s *SliderState) AddValueListener(fn func()) func() { return s.p.values.add(fn) }

func (s *SliderState) AddPropertiesListener(fn func()) func() { return s.p.properties.add(fn) }

// ToggleState is a live handle on a boolean parameter.
type ToggleState struct {
	c *Client
	p *paramState
}

func (t *ToggleState) ID() string { return t.p.id }

func (t *ToggleState) Value() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.p.boolean
}

func (t *ToggleState) SetValue(v bool) {
	t.c.post(SetBool(t.p.id, v))
}

func (t *ToggleState) AddValueListener(fn func()) func() { return t.p.values.add(fn) }

type listenerSet struct {
	mu   sync.Mutex
	next int
	fns  map[int]func()
}

func (l *listenerSet) add(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func())
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

// snapshot returns listeners in registration order.
func (l *listenerSet) snapshot() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(), 0, len(ids))
	for _, id := range ids {
		out = append(out, l.fns[id])
	}
	return out
}
