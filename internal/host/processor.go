package host

import "math"

// Parameter ids the processor reads.
const (
	GainID     = "GAIN"
	BypassID   = "BYPASS"
	ClippingID = "CLIPPING"
)

// Processor applies gain and optional tanh clipping to a block and meters
// both sides of it. Parameters that are not registered are treated as gain 1,
// bypass off and clipping off.
type Processor struct {
	gain     *Parameter
	bypass   *Parameter
	clipping *Parameter

	Input  PeakMeter
	Output PeakMeter
}

// NewProcessor resolves the parameters it reads from store.
func NewProcessor(store *Store) *Processor {
	p := &Processor{}
	p.gain, _ = store.Get(GainID)
	p.bypass, _ = store.Get(BypassID)
	p.clipping, _ = store.Get(ClippingID)
	return p
}

// Prepare sizes both meters.
func (p *Processor) Prepare(sampleRate float64, channels int, releaseMs float64) {
	p.Input.Prepare(sampleRate, channels, releaseMs)
	p.Output.Prepare(sampleRate, channels, releaseMs)
}

// Process works in place on per-channel samples. A bypassed block is left
// untouched and both meters fall silent.
func (p *Processor) Process(block [][]float32) {
	if p.bypass != nil && p.bypass.Bool() {
		p.Input.Reset()
		p.Output.Reset()
		return
	}
	if len(block) == 0 || len(block[0]) == 0 {
		return
	}

	p.Input.Process(block)

	gain := float32(1)
	if p.gain != nil {
		gain = float32(p.gain.Scaled())
	}
	clip := p.clipping != nil && p.clipping.Bool()

	for _, ch := range block {
		for i, s := range ch {
			s *= gain
			if clip {
				s = float32(math.Tanh(float64(s)))
			}
			ch[i] = s
		}
	}

	p.Output.Process(block)
}
