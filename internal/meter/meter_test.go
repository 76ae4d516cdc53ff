package meter

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapReadingIdempotent(t *testing.T) {
	for _, db := range []float64{-90, -60, -12.5, -6, -3.2, 0, 5.9, 6, 20, math.Inf(-1)} {
		assert.Equal(t, MapReading(db), MapReading(db), "db=%v", db)
	}
}

func TestZones(t *testing.T) {
	for _, db := range []float64{0, 0.01, 6, 20, math.Inf(1)} {
		assert.Equal(t, Red, MapReading(db).Zone, "db=%v", db)
	}
	for _, db := range []float64{-6, -5.99, -3.2, -0.0001} {
		assert.Equal(t, Yellow, MapReading(db).Zone, "db=%v", db)
	}
	for _, db := range []float64{-6.0001, -12, -61, -200, math.Inf(-1)} {
		assert.Equal(t, Green, MapReading(db).Zone, "db=%v", db)
	}
}

func TestSilence(t *testing.T) {
	s := MapReading(math.Inf(-1))
	assert.Equal(t, 0.0, s.Percentage)
	assert.Equal(t, "-inf dB", s.Text)
	assert.Equal(t, Green, s.Zone)
}

func TestSaturation(t *testing.T) {
	s := MapReading(20)
	assert.Equal(t, 100.0, s.Percentage)
	assert.Equal(t, Red, s.Zone)
	assert.Equal(t, "20.0 dB", s.Text)

	assert.Equal(t, 0.0, MapReading(-60).Percentage)
	assert.Equal(t, 100.0, MapReading(6).Percentage)
}

func TestClampedPositionUnclampedText(t *testing.T) {
	in := MapReading(-3.2)
	assert.InDelta(t, 86.0606, in.Percentage, 1e-3)
	assert.Equal(t, Yellow, in.Zone)
	assert.Equal(t, "-3.2 dB", in.Text)

	out := MapReading(-61.0)
	assert.Equal(t, 0.0, out.Percentage)
	assert.Equal(t, Green, out.Zone)
	assert.Equal(t, "-61.0 dB", out.Text)
}

func TestMapReadingRange(t *testing.T) {
	s := MapReadingRange(-20, -40, 0)
	assert.InDelta(t, 50, s.Percentage, 1e-9)
}

func TestZoneColors(t *testing.T) {
	assert.Equal(t, "#ff4500", Red.Color())
	assert.Equal(t, "#ffdd00", Yellow.Color())
	assert.Equal(t, "#00ff00", Green.Color())
}

func TestLevelJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Level{"input": -3.5, "output": Silence})
	require.NoError(t, err)
	assert.JSONEq(t, `{"input":-3.5,"output":"-inf"}`, string(data))

	levels, bad, err := ParseLevels(data)
	require.NoError(t, err)
	assert.Empty(t, bad)
	assert.Equal(t, -3.5, levels["input"].DB())
	assert.True(t, math.IsInf(levels["output"].DB(), -1))
}

func TestLevelRejectsNullAndNaN(t *testing.T) {
	_, err := json.Marshal(Level(math.NaN()))
	assert.Error(t, err)

	levels, bad, err := ParseLevels([]byte(`{"input": null, "output": -12, "side": "loud"}`))
	require.NoError(t, err)
	assert.Contains(t, bad, "input")
	assert.Contains(t, bad, "side")
	assert.Equal(t, -12.0, levels["output"].DB())
}

func TestParseLevelsMalformed(t *testing.T) {
	_, _, err := ParseLevels([]byte(`{"input": -3`))
	assert.Error(t, err)

	_, _, err = ParseLevels([]byte(`null`))
	assert.Error(t, err)

	_, _, err = ParseLevels([]byte(`[1,2]`))
	assert.Error(t, err)
}
