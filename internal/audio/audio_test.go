package audio

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeinterleave(t *testing.T) {
	in := []float32{1, -1, 2, -2, 3, -3}
	block := Deinterleave(in, 2, nil)
	assert.Equal(t, [][]float32{{1, 2, 3}, {-1, -2, -3}}, block)

	reused := Deinterleave([]float32{4, 5}, 2, block)
	assert.Equal(t, [][]float32{{4}, {5}}, reused)
	assert.Same(t, &block[0][0], &reused[0][0], "buffers are reused")
}

func TestInterleave(t *testing.T) {
	out := make([]float32, 6)
	Interleave([][]float32{{1, 2, 3}, {-1, -2}}, out)
	assert.Equal(t, []float32{1, -1, 2, -2, 3, 0}, out)
}

func TestInterleaveRoundTrip(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	out := make([]float32, len(in))
	Interleave(Deinterleave(in, 3, nil), out)
	assert.Equal(t, in, out)
}

type countingSink struct {
	mu         sync.Mutex
	sampleRate float64
	channels   int
	blocks     int
	peak       float32
}

func (c *countingSink) Prepare(sampleRate float64, channels int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sampleRate, c.channels = sampleRate, channels
}

func (c *countingSink) Process(block [][]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks++
	for _, ch := range block {
		for _, s := range ch {
			if a := float32(math.Abs(float64(s))); a > c.peak {
				c.peak = a
			}
		}
	}
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks
}

func TestSynthNextShape(t *testing.T) {
	s := NewSynth()
	block := s.Next()
	require.Len(t, block, 2)
	assert.Len(t, block[0], 480)
	assert.Equal(t, block[0], block[1])
	for _, v := range block[0] {
		assert.LessOrEqual(t, math.Abs(float64(v)), 1.5)
	}
}

func TestSynthRunFeedsSink(t *testing.T) {
	s := NewSynth()
	s.BlockSize = 48
	sink := &countingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, sink) }()

	require.Eventually(t, func() bool { return sink.count() >= 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 48000.0, sink.sampleRate)
	assert.Equal(t, 2, sink.channels)
}

func TestMainsFrequencyForTimezone(t *testing.T) {
	assert.Equal(t, 50.0, MainsFrequencyForTimezone("UTC"))
	assert.Equal(t, 50.0, MainsFrequencyForTimezone("Etc/GMT+3"))
	assert.Equal(t, 60.0, MainsFrequencyForTimezone("America/New_York"))
	assert.Equal(t, 50.0, MainsFrequencyForTimezone("Europe/Berlin"))
	assert.Equal(t, 50.0, MainsFrequencyForTimezone("Not/AZone"))
}

func TestSynthHumOnly(t *testing.T) {
	s := &Synth{SampleRate: 1000, Channels: 1, BlockSize: 1000, Hum: 50, HumDB: -20}
	s.swell = -math.Pi / 2 // tone at its quietest
	block := s.Next()

	var peak float64
	for _, v := range block[0] {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	assert.InDelta(t, 0.1, peak, 0.02)
}

func TestSessionsShareOnePortAudioStart(t *testing.T) {
	starts, stops := 0, 0
	origStart, origStop := startPortAudio, stopPortAudio
	startPortAudio = func() error { starts++; return nil }
	stopPortAudio = func() error { stops++; return nil }
	t.Cleanup(func() { startPortAudio, stopPortAudio = origStart, origStop })

	require.NoError(t, Initialize())
	require.NoError(t, Initialize())
	Terminate()
	assert.Equal(t, 0, stops, "one session still open")
	Terminate()
	Terminate()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)

	// a later session starts the library again
	require.NoError(t, Initialize())
	Terminate()
	assert.Equal(t, 2, starts)
}

func TestFailedStartOpensNoSession(t *testing.T) {
	origStart, origStop := startPortAudio, stopPortAudio
	startPortAudio = func() error { return errors.New("no host api") }
	stopPortAudio = func() error { t.Fatal("stopped without a session"); return nil }
	t.Cleanup(func() { startPortAudio, stopPortAudio = origStart, origStop })

	require.ErrorContains(t, Initialize(), "no host api")
	Terminate()
}
