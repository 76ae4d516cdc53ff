package host

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeakMeterRelease(t *testing.T) {
	var m PeakMeter
	m.Prepare(1000, 1, 1000)

	block := [][]float32{make([]float32, 1001)}
	block[0][0] = 1
	m.Process(block)

	// 1000 samples of release is exactly the 20 dB fall time.
	assert.InDelta(t, -20.0, m.LevelDB(0), 0.05)
}

func TestPeakMeterInstantAttack(t *testing.T) {
	var m PeakMeter
	m.Prepare(48000, 2, DefaultReleaseMs)

	m.Process([][]float32{{0, 0.5}, {-0.25}})
	assert.InDelta(t, 20*math.Log10(0.5), m.LevelDB(0), 1e-3)
	assert.InDelta(t, 20*math.Log10(0.25), m.LevelDB(1), 1e-3)
	assert.InDelta(t, 20*math.Log10(0.5), m.MonoPeakDB(), 1e-3)
}

func TestPeakMeterSilence(t *testing.T) {
	var m PeakMeter
	assert.True(t, math.IsInf(m.MonoPeakDB(), -1), "unprepared meter is silent")

	m.Prepare(48000, 1, DefaultReleaseMs)
	m.Process([][]float32{{0.9}})
	m.Reset()
	assert.True(t, math.IsInf(m.LevelDB(0), -1))
	assert.True(t, math.IsInf(m.LevelDB(5), -1), "unknown channel")
}

func newTestProcessor(t *testing.T) (*Store, *Processor) {
	t.Helper()
	s := newTestStore(t)
	p := NewProcessor(s)
	p.Prepare(48000, 2, DefaultReleaseMs)
	return s, p
}

func TestProcessorAppliesGain(t *testing.T) {
	s, p := newTestProcessor(t)
	require.NoError(t, s.SetScaled(GainID, 0.5))

	block := [][]float32{{1, -1}, {0.5, 0}}
	p.Process(block)

	assert.Equal(t, [][]float32{{0.5, -0.5}, {0.25, 0}}, block)
	assert.InDelta(t, 0.0, p.Input.MonoPeakDB(), 1e-3)
	assert.InDelta(t, 20*math.Log10(0.5), p.Output.MonoPeakDB(), 1e-3)
}

func TestProcessorClipping(t *testing.T) {
	s, p := newTestProcessor(t)
	require.NoError(t, s.SetBool(ClippingID, true))

	block := [][]float32{{2}, {-1}}
	p.Process(block)

	assert.InDelta(t, math.Tanh(2), float64(block[0][0]), 1e-6)
	assert.InDelta(t, math.Tanh(-1), float64(block[1][0]), 1e-6)
}

func TestProcessorBypass(t *testing.T) {
	s, p := newTestProcessor(t)
	p.Process([][]float32{{0.8}, {0.8}})
	require.False(t, math.IsInf(p.Input.MonoPeakDB(), -1))

	require.NoError(t, s.SetBool(BypassID, true))
	require.NoError(t, s.SetScaled(GainID, 0))

	block := [][]float32{{0.7}, {0.3}}
	p.Process(block)

	assert.Equal(t, [][]float32{{0.7}, {0.3}}, block, "bypassed block is untouched")
	assert.True(t, math.IsInf(p.Input.MonoPeakDB(), -1))
	assert.True(t, math.IsInf(p.Output.MonoPeakDB(), -1))
}
