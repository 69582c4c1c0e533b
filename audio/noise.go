package audio

import (
	"fmt"
	"math/rand/v2"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/soundscape/constant"
)

// noisePrecision is the beep.Buffer sample width in bytes (24-bit)
const noisePrecision = 3

// NoiseBuffer is an immutable, loopable mono noise buffer
type NoiseBuffer struct {
	kind NoiseKind
	buf  *beep.Buffer
}

// SynthesizeNoise renders a fresh buffer of kind at rate
// Length is always constant.NoiseBufferSeconds times the sample rate
func SynthesizeNoise(kind NoiseKind, rate beep.SampleRate) (*NoiseBuffer, error) {
	if kind < 0 || kind >= noiseKindCount {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNoiseKind, int(kind))
	}
	if rate <= 0 {
		return nil, fmt.Errorf("synthesize %s: invalid sample rate %d", kind, rate)
	}

	data := make([]float64, int(rate)*constant.NoiseBufferSeconds)
	fillNoise(kind, data, whiteSample)

	buf := beep.NewBuffer(beep.Format{SampleRate: rate, NumChannels: 1, Precision: noisePrecision})
	buf.Append(sliceStreamer(data))

	return &NoiseBuffer{kind: kind, buf: buf}, nil
}

// Kind returns the noise color
func (b *NoiseBuffer) Kind() NoiseKind {
	return b.kind
}

// SampleRate returns the rate the buffer was synthesized at
func (b *NoiseBuffer) SampleRate() beep.SampleRate {
	return b.buf.Format().SampleRate
}

// Len returns the buffer length in frames
func (b *NoiseBuffer) Len() int {
	return b.buf.Len()
}

// Streamer returns a new seekable reader over the whole buffer
func (b *NoiseBuffer) Streamer() beep.StreamSeeker {
	return b.buf.Streamer(0, b.buf.Len())
}

// Samples decodes the buffer into a new slice
func (b *NoiseBuffer) Samples() []float64 {
	out := make([]float64, 0, b.Len())
	frames := make([][2]float64, 512)
	s := b.Streamer()
	for {
		n, ok := s.Stream(frames)
		for _, f := range frames[:n] {
			out = append(out, f[0])
		}
		if !ok {
			return out
		}
	}
}

func whiteSample() float64 {
	return rand.Float64()*2 - 1
}

// fillNoise writes noise of kind into data using white as the uniform
// [-1, 1] source
func fillNoise(kind NoiseKind, data []float64, white func() float64) {
	switch kind {
	case NoisePink:
		fillPink(data, white)
	case NoiseBrown:
		fillBrown(data, white)
	default:
		for i := range data {
			data[i] = white()
		}
	}
}

// fillPink applies Paul Kellet's refined pink filter to white noise
func fillPink(data []float64, white func() float64) {
	var b0, b1, b2, b3, b4, b5, b6 float64
	for i := range data {
		w := white()
		b0 = 0.99886*b0 + w*0.0555179
		b1 = 0.99332*b1 + w*0.0750759
		b2 = 0.96900*b2 + w*0.1538520
		b3 = 0.86650*b3 + w*0.3104856
		b4 = 0.55000*b4 + w*0.5329522
		b5 = -0.7616*b5 - w*0.0168981
		data[i] = (b0 + b1 + b2 + b3 + b4 + b5 + b6 + w*0.5362) * constant.PinkNoiseGain
		b6 = w * 0.115926
	}
}

// fillBrown integrates white noise through a leaky integrator
func fillBrown(data []float64, white func() float64) {
	last := 0.0
	for i := range data {
		last = (last + constant.BrownNoiseLeak*white()) / (1 + constant.BrownNoiseLeak)
		data[i] = last * constant.BrownNoiseGain
	}
}

// sliceStreamer streams mono data once, duplicated to both channels
func sliceStreamer(data []float64) beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if pos >= len(data) {
			return 0, false
		}
		for n < len(samples) && pos < len(data) {
			samples[n][0] = data[pos]
			samples[n][1] = data[pos]
			n++
			pos++
		}
		return n, true
	})
}
