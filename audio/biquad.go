package audio

import (
	"math"

	"github.com/lixenwraith/soundscape/constant"
)

// FilterType selects the biquad response
type FilterType int

const (
	FilterLowPass FilterType = iota
	FilterHighPass
)

func (f FilterType) String() string {
	if f == FilterHighPass {
		return "highpass"
	}
	return "lowpass"
}

// BiquadFilterNode is a second-order IIR filter (RBJ cookbook)
type BiquadFilterNode struct {
	*nodeCore
	typ       FilterType
	frequency *Param
	q         float64

	// Normalized coefficients for coeffFreq
	b0, b1, b2, a1, a2 float64
	coeffFreq          float64

	// Direct form I history
	x1, x2, y1, y2 float64
}

// NewBiquadFilter creates a filter with the given cutoff in Hz
func (c *Context) NewBiquadFilter(typ FilterType, cutoff float64) *BiquadFilterNode {
	f := &BiquadFilterNode{
		typ:       typ,
		frequency: newParam(c, cutoff),
		q:         constant.FilterQ,
	}
	f.nodeCore = newNodeCore(c, KindBiquadFilter, f)
	f.params = []*Param{f.frequency}
	f.updateCoefficients(cutoff)
	return f
}

// Type returns the filter response
func (f *BiquadFilterNode) Type() FilterType {
	return f.typ
}

// Frequency returns the cutoff parameter
func (f *BiquadFilterNode) Frequency() *Param {
	return f.frequency
}

func (f *BiquadFilterNode) updateCoefficients(cutoff float64) {
	f.coeffFreq = cutoff
	nyquist := float64(f.ctx.rate) / 2
	if cutoff <= 0 {
		cutoff = 1
	} else if cutoff >= nyquist {
		cutoff = nyquist * 0.999
	}

	w0 := 2 * math.Pi * cutoff / float64(f.ctx.rate)
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * f.q)

	var b0, b1, b2 float64
	switch f.typ {
	case FilterHighPass:
		b0 = (1 + cosw) / 2
		b1 = -(1 + cosw)
		b2 = (1 + cosw) / 2
	default:
		b0 = (1 - cosw) / 2
		b1 = 1 - cosw
		b2 = (1 - cosw) / 2
	}
	a0 := 1 + alpha
	f.b0 = b0 / a0
	f.b1 = b1 / a0
	f.b2 = b2 / a0
	f.a1 = -2 * cosw / a0
	f.a2 = (1 - alpha) / a0
}

// Coefficients are recomputed once per block from the cutoff at block start
func (f *BiquadFilterNode) process(q uint64, in, out []float64) {
	c := f.ctx
	freq := f.frequency.render(q, len(out), c.blockStart, c.period)
	if len(freq) > 0 && freq[0] != f.coeffFreq {
		f.updateCoefficients(freq[0])
	}

	for i, x := range in {
		y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
		f.x2, f.x1 = f.x1, x
		f.y2, f.y1 = f.y1, y
		out[i] = y
	}
}
