package audio

import (
	"fmt"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
)

// OscillatorNode is a sine source, used as a low-frequency modulator
// It outputs silence until Start and after Stop
type OscillatorNode struct {
	*nodeCore
	frequency float64
	tone      beep.Streamer
	frames    [][2]float64
	running   bool
}

// NewOscillator creates a sine oscillator at freq Hz
func (c *Context) NewOscillator(freq float64) (*OscillatorNode, error) {
	tone, err := generators.SineTone(c.rate, freq)
	if err != nil {
		return nil, fmt.Errorf("oscillator %.3fHz: %w", freq, err)
	}

	o := &OscillatorNode{
		frequency: freq,
		tone:      tone,
		frames:    make([][2]float64, renderQuantum),
	}
	o.nodeCore = newNodeCore(c, KindOscillator, o)
	return o, nil
}

// Frequency returns the oscillator rate in Hz
func (o *OscillatorNode) Frequency() float64 {
	return o.frequency
}

// Start begins output on the next rendered block
func (o *OscillatorNode) Start() {
	o.ctx.mu.Lock()
	o.running = true
	o.ctx.mu.Unlock()
}

// Stop silences the oscillator permanently
func (o *OscillatorNode) Stop() {
	o.ctx.mu.Lock()
	o.running = false
	o.ctx.mu.Unlock()
}

func (o *OscillatorNode) process(_ uint64, _, out []float64) {
	if !o.running {
		clear(out)
		return
	}

	frames := o.frames[:len(out)]
	n, _ := o.tone.Stream(frames)
	for i := range out {
		if i < n {
			out[i] = frames[i][0]
		} else {
			out[i] = 0
		}
	}
}
