// Package meter converts decibel readings into bounded, color-coded meter state.
package meter

import (
	"math"
	"strconv"
)

// Display bounds of a meter bar in dBFS.
const (
	DefaultMinDB = -60.0
	DefaultMaxDB = 6.0
)

// Zone is the color band a reading falls into.
type Zone int

const (
	Green Zone = iota
	Yellow
	Red
)

func (z Zone) String() string {
	switch z {
	case Red:
		return "red"
	case Yellow:
		return "yellow"
	default:
		return "green"
	}
}

// Color returns the bar color used for the zone.
func (z Zone) Color() string {
	switch z {
	case Red:
		return "#ff4500"
	case Yellow:
		return "#ffdd00"
	default:
		return "#00ff00"
	}
}

// ZoneFor classifies a raw (unclamped) reading. Lower bounds are inclusive.
func ZoneFor(db float64) Zone {
	switch {
	case db >= 0:
		return Red
	case db >= -6:
		return Yellow
	default:
		return Green
	}
}

// VisualState is the derived, ephemeral state of one meter.
type VisualState struct {
	Percentage float64
	Zone       Zone
	Text       string
}

// MapReading maps db onto the default -60..+6 dB bar.
func MapReading(db float64) VisualState {
	return MapReadingRange(db, DefaultMinDB, DefaultMaxDB)
}

// MapReadingRange clamps db into [minDB, maxDB] for the bar position, while
// the zone and text are computed from the raw value.
func MapReadingRange(db, minDB, maxDB float64) VisualState {
	clamped := math.Max(minDB, math.Min(db, maxDB))
	pct := (clamped - minDB) / (maxDB - minDB) * 100
	return VisualState{
		Percentage: clampPercent(pct),
		Zone:       ZoneFor(db),
		Text:       FormatDB(db),
	}
}

// FormatDB renders a reading with one decimal, or "-inf dB" for silence.
func FormatDB(db float64) string {
	if math.IsInf(db, 0) || math.IsNaN(db) {
		return "-inf dB"
	}
	return strconv.FormatFloat(db, 'f', 1, 64) + " dB"
}

func clampPercent(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
