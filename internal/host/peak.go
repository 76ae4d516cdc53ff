package host

import (
	"math"
	"sync/atomic"
)

// DefaultReleaseMs is the Type I PPM release: a 20 dB fall in 1.7 s.
const DefaultReleaseMs = 1700.0

// PeakMeter follows the block peak with instant attack and a per-sample
// exponential release. Peaks are stored as float bits so the UI side can read
// them while the audio callback writes.
type PeakMeter struct {
	peaks        []atomic.Uint32
	releaseCoeff float32
}

// Prepare sizes the meter and derives the release coefficient: the time to
// fall by 20 dB (a linear ratio of 0.1) equals releaseMs.
func (m *PeakMeter) Prepare(sampleRate float64, channels int, releaseMs float64) {
	if channels < 0 {
		channels = 0
	}
	m.peaks = make([]atomic.Uint32, channels)
	m.releaseCoeff = 1
	if sampleRate > 0 && releaseMs > 0 {
		samples := sampleRate * releaseMs / 1000
		m.releaseCoeff = float32(math.Pow(0.1, 1/samples))
	}
}

// Channels reports the prepared channel count.
func (m *PeakMeter) Channels() int { return len(m.peaks) }

// Process folds a block of per-channel samples into the running peaks.
// Channels beyond the prepared count are ignored.
func (m *PeakMeter) Process(block [][]float32) {
	for ch := 0; ch < len(block) && ch < len(m.peaks); ch++ {
		running := math.Float32frombits(m.peaks[ch].Load())
		for _, s := range block[ch] {
			mag := float32(math.Abs(float64(s)))
			if mag > running {
				running = mag
			} else {
				running *= m.releaseCoeff
			}
		}
		m.peaks[ch].Store(math.Float32bits(running))
	}
}

// Reset drops every channel back to silence.
func (m *PeakMeter) Reset() {
	for ch := range m.peaks {
		m.peaks[ch].Store(0)
	}
}

// LevelDB returns one channel's peak in dBFS, -Inf for silence or an
// unknown channel.
func (m *PeakMeter) LevelDB(ch int) float64 {
	if ch < 0 || ch >= len(m.peaks) {
		return math.Inf(-1)
	}
	return gainToDB(math.Float32frombits(m.peaks[ch].Load()))
}

// MonoPeakDB returns the loudest channel in dBFS.
func (m *PeakMeter) MonoPeakDB() float64 {
	var peak float32
	for ch := range m.peaks {
		if p := math.Float32frombits(m.peaks[ch].Load()); p > peak {
			peak = p
		}
	}
	return gainToDB(peak)
}

func gainToDB(g float32) float64 {
	if g <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(float64(g))
}
