package audio

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Sink receives audio in per-channel blocks. Process runs on the audio
// callback and may modify the block in place.
type Sink interface {
	Prepare(sampleRate float64, channels int)
	Process(block [][]float32)
}

// Stream wraps a PortAudio stream that feeds captured input through a Sink
// and, when monitoring, plays the processed block back out.
type Stream struct {
	stream     *portaudio.Stream
	sampleRate float64
	channels   int
	monitor    bool
	device     *portaudio.DeviceInfo
	sink       Sink

	block [][]float32
}

// Config controls how a Stream is created.
type Config struct {
	DeviceName string
	BufferSize int
	Channels   int
	// Monitor opens the default output device and plays the processed signal.
	Monitor bool
}

const defaultBufferSize = 1024

// Open starts a PortAudio stream delivering blocks to sink.
func Open(cfg Config, sink Sink) (*Stream, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}

	device, err := findDevice(cfg.DeviceName)
	if err != nil {
		return nil, err
	}
	if cfg.Channels > device.MaxInputChannels {
		cfg.Channels = device.MaxInputChannels
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      device.DefaultSampleRate,
		FramesPerBuffer: cfg.BufferSize,
	}
	if cfg.BufferSize < 64 {
		params.FramesPerBuffer = portaudio.FramesPerBufferUnspecified
	}

	if cfg.Monitor {
		out, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("default output device: %w", err)
		}
		params.Output = portaudio.StreamDeviceParameters{
			Device:   out,
			Channels: cfg.Channels,
			Latency:  out.DefaultLowOutputLatency,
		}
	}

	s := &Stream{
		sampleRate: device.DefaultSampleRate,
		channels:   cfg.Channels,
		monitor:    cfg.Monitor,
		device:     device,
		sink:       sink,
	}
	sink.Prepare(s.sampleRate, s.channels)

	var callback any = s.capture
	if cfg.Monitor {
		callback = s.duplex
	}
	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	s.stream = stream

	if err := s.stream.Start(); err != nil {
		_ = s.stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	return s, nil
}

// Close stops and closes the underlying PortAudio stream.
func (s *Stream) Close() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
		return err
	}
	return s.stream.Close()
}

// SampleRate returns the stream sample rate.
func (s *Stream) SampleRate() float64 {
	return s.sampleRate
}

// Channels returns the number of captured channels.
func (s *Stream) Channels() int {
	return s.channels
}

// Device returns the PortAudio input device.
func (s *Stream) Device() *portaudio.DeviceInfo {
	return s.device
}

func (s *Stream) capture(in []float32) {
	s.block = Deinterleave(in, s.channels, s.block)
	s.sink.Process(s.block)
}

func (s *Stream) duplex(in, out []float32) {
	s.block = Deinterleave(in, s.channels, s.block)
	s.sink.Process(s.block)
	Interleave(s.block, out)
}

// Deinterleave splits interleaved frames into per-channel slices, reusing
// dst when it is large enough.
func Deinterleave(in []float32, channels int, dst [][]float32) [][]float32 {
	if channels <= 0 {
		return dst[:0]
	}
	frames := len(in) / channels
	if len(dst) != channels {
		dst = make([][]float32, channels)
	}
	for ch := range dst {
		if cap(dst[ch]) < frames {
			dst[ch] = make([]float32, frames)
		}
		dst[ch] = dst[ch][:frames]
	}
	for i := 0; i < frames; i++ {
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			dst[ch][i] = in[base+ch]
		}
	}
	return dst
}

// Interleave writes per-channel blocks into out. Missing samples are zeroed.
func Interleave(block [][]float32, out []float32) {
	channels := len(block)
	if channels == 0 {
		clear(out)
		return
	}
	frames := len(out) / channels
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			var v float32
			if i < len(block[ch]) {
				v = block[ch][i]
			}
			out[i*channels+ch] = v
		}
	}
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findDeviceByName(name)
	}

	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels > 0 {
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	if candidate := pickBestDevice(devices); candidate != nil {
		return candidate, nil
	}

	return nil, fmt.Errorf("no suitable audio input device found")
}

func findDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	name = strings.ToLower(name)
	for _, device := range devices {
		if device.MaxInputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(device.Name), name) {
			return device, nil
		}
	}

	return nil, fmt.Errorf("audio device %q not found", name)
}

// pickBestDevice prefers interfaces with more input channels, then the
// default host's input, then anything that looks like a line or
// instrument input.
func pickBestDevice(devices []*portaudio.DeviceInfo) *portaudio.DeviceInfo {
	type scored struct {
		dev   *portaudio.DeviceInfo
		score int
	}

	keywords := []string{"line", "instrument", "interface", "usb"}

	defaultHostIndex := -1
	if host, err := portaudio.DefaultHostApi(); err == nil && host != nil && host.DefaultInputDevice != nil {
		defaultHostIndex = host.DefaultInputDevice.Index
	}

	var results []scored
	for _, d := range devices {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}
		score := d.MaxInputChannels
		if d.Index == defaultHostIndex {
			score += 40
		}
		lower := strings.ToLower(d.Name)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score += 20
				break
			}
		}
		results = append(results, scored{dev: d, score: score})
	}

	if len(results) == 0 {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return strings.ToLower(results[i].dev.Name) < strings.ToLower(results[j].dev.Name)
		}
		return results[i].score > results[j].score
	})

	return results[0].dev
}

// errorsIsInvalidStreamState checks if the provided error stems from stopping an already stopped stream.
func errorsIsInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "PaErrorCode -9986")
}
