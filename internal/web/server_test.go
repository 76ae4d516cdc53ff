package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidoenr/gainbridge/internal/bridge"
	"github.com/guidoenr/gainbridge/internal/host"
)

func startServer(t *testing.T) (*host.Host, *Server, *httptest.Server) {
	t.Helper()
	h, err := host.New(host.Config{})
	require.NoError(t, err)

	srv := NewServer(h, nil)
	h.Attach(srv)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Run(ctx)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return h, srv, ts
}

func dial(t *testing.T, url string) *bridge.Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c, err := bridge.Dial(ctx, url, bridge.Options{})
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c
}

func TestSnapshotOnConnect(t *testing.T) {
	_, _, ts := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, err := bridge.Dial(ctx, ts.URL, bridge.Options{})
	require.NoError(t, err)

	gain := c.SliderState("GAIN")
	var seen atomic.Int32
	gain.AddPropertiesListener(func() { seen.Add(1) })
	gain.AddValueListener(func() { seen.Add(1) })
	go c.Run(ctx)

	require.Eventually(t, func() bool { return seen.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, gain.ScaledValue())
	assert.Equal(t, 1.0, gain.Properties().End)
	assert.ElementsMatch(t, []string{"BYPASS", "CLIPPING", "GAIN"}, c.Parameters())
}

func TestClientRequestRoundTrip(t *testing.T) {
	h, srv, ts := startServer(t)
	c := dial(t, ts.URL)
	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	gain := c.SliderState("GAIN")
	var values atomic.Int32
	gain.AddValueListener(func() { values.Add(1) })

	gain.SetNormalisedValue(0.4)
	require.Eventually(t, func() bool {
		p, _ := h.Store().Get("GAIN")
		return p.Normalised() == 0.4
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return gain.ScaledValue() == 0.4 }, 2*time.Second, 5*time.Millisecond)

	bypass := c.ToggleState("BYPASS")
	bypass.SetValue(true)
	require.Eventually(t, bypass.Value, 2*time.Second, 5*time.Millisecond)
}

func TestEventsReachClients(t *testing.T) {
	_, srv, ts := startServer(t)
	c := dial(t, ts.URL)

	var got atomic.Int32
	c.AddEventListener(bridge.MeterLevelsEvent, func() { got.Add(1) })
	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	srv.Broadcast(bridge.Event(bridge.MeterLevelsEvent))
	srv.Broadcast(bridge.Event("somethingElse"))
	require.Eventually(t, func() bool { return got.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestFetchResource(t *testing.T) {
	_, _, ts := startServer(t)
	c := dial(t, ts.URL)

	data, err := c.Fetch(context.Background(), bridge.MeterLevelsResource)
	require.NoError(t, err)
	assert.JSONEq(t, `{"input":"-inf","output":"-inf"}`, string(data))

	_, err = c.Fetch(context.Background(), "missing.json")
	var te *bridge.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusNotFound, te.Status)
}

func TestStatusAndParameters(t *testing.T) {
	_, _, ts := startServer(t)

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 0, status.Clients)
	assert.Equal(t, []string{"GAIN", "BYPASS", "CLIPPING"}, status.Parameters)

	resp2, err := http.Get(ts.URL + "/api/parameters")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var info []bridge.ParameterInfo
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&info))
	require.Len(t, info, 3)
	assert.Equal(t, "GAIN", info[0].ID)
}

func TestResourceRejectsPost(t *testing.T) {
	_, _, ts := startServer(t)
	resp, err := http.Post(ts.URL+"/resources/"+bridge.MeterLevelsResource, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBroadcastDropsOnlyEvents(t *testing.T) {
	h, err := host.New(host.Config{})
	require.NoError(t, err)
	srv := NewServer(h, nil)

	client := &websocketClient{id: "local", send: make(chan []byte, 1024), server: srv}
	srv.clients[client] = true

	// nothing drains the queues until Run starts
	for i := 0; i < 300; i++ {
		srv.Broadcast(bridge.Event(bridge.MeterLevelsEvent))
	}
	for i := 0; i < 300; i++ {
		srv.Broadcast(bridge.ContinuousValue("GAIN", float64(i)/300, float64(i)/300))
	}
	assert.Equal(t, uint64(44), srv.dropped.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	var values, events int
	deadline := time.After(2 * time.Second)
	for values+events < 556 {
		select {
		case data := <-client.send:
			var m bridge.Message
			require.NoError(t, json.Unmarshal(data, &m))
			if m.Type == bridge.TypeEvent {
				events++
			} else {
				values++
			}
		case <-deadline:
			t.Fatalf("received %d values and %d events", values, events)
		}
	}
	assert.Equal(t, 300, values)
	assert.Equal(t, 256, events)
}
