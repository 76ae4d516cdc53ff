package audio

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Synth stands in for an audio interface: it generates a slowly swelling
// sine with a little noise and delivers it to a Sink in real time.
type Synth struct {
	SampleRate float64
	Channels   int
	BlockSize  int
	// Frequency of the tone in Hz.
	Frequency float64
	// Hum adds a mains-frequency component at HumDB dBFS. Zero disables it.
	Hum   float64
	HumDB float64

	rng      *rand.Rand
	phase    float64
	humPhase float64
	swell    float64
	block    [][]float32
}

// NewSynth returns a stereo 48 kHz generator.
func NewSynth() *Synth {
	return &Synth{
		SampleRate: 48000,
		Channels:   2,
		BlockSize:  480,
		Frequency:  220,
		Hum:        MainsFrequency(),
		HumDB:      -54,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run prepares sink and feeds it one block per block duration until ctx is
// done.
func (s *Synth) Run(ctx context.Context, sink Sink) error {
	sink.Prepare(s.SampleRate, s.Channels)

	period := time.Duration(float64(s.BlockSize) / s.SampleRate * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sink.Process(s.Next())
		}
	}
}

// Next renders one block. The returned slices are reused by the next call.
func (s *Synth) Next() [][]float32 {
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(1))
	}
	if len(s.block) != s.Channels {
		s.block = make([][]float32, s.Channels)
	}
	for ch := range s.block {
		if len(s.block[ch]) != s.BlockSize {
			s.block[ch] = make([]float32, s.BlockSize)
		}
	}

	step := 2 * math.Pi * s.Frequency / s.SampleRate
	humStep := 2 * math.Pi * s.Hum / s.SampleRate
	humAmp := math.Pow(10, s.HumDB/20)
	// amplitude swings between roughly -40 and +3 dBFS every few seconds
	s.swell += float64(s.BlockSize) / s.SampleRate * 0.4
	amp := math.Pow(10, (-18.5+21.5*math.Sin(s.swell))/20)

	for i := 0; i < s.BlockSize; i++ {
		v := amp*math.Sin(s.phase) + (s.rng.Float64()*2-1)*0.002
		if s.Hum > 0 {
			v += humAmp * math.Sin(s.humPhase)
			s.humPhase = math.Mod(s.humPhase+humStep, 2*math.Pi)
		}
		s.phase = math.Mod(s.phase+step, 2*math.Pi)
		for ch := range s.block {
			s.block[ch][i] = float32(v)
		}
	}
	return s.block
}
