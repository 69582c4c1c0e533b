package audio

// GainNode multiplies its input by an automatable gain
type GainNode struct {
	*nodeCore
	gain *Param
}

// NewGain creates a gain stage with the given initial value
func (c *Context) NewGain(value float64) *GainNode {
	g := &GainNode{gain: newParam(c, value)}
	g.nodeCore = newNodeCore(c, KindGain, g)
	g.params = []*Param{g.gain}
	return g
}

// Gain returns the gain parameter
func (g *GainNode) Gain() *Param {
	return g.gain
}

func (g *GainNode) process(q uint64, in, out []float64) {
	c := g.ctx
	gain := g.gain.render(q, len(out), c.blockStart, c.period)
	for i := range out {
		out[i] = in[i] * gain[i]
	}
}
