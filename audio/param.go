package audio

import "math"

// settleConstants is how many time constants a target ramp runs before it is
// folded into the intrinsic value
const settleConstants = 20

// targetRamp is an exponential approach from one value toward a target
type targetRamp struct {
	from   float64
	target float64
	start  float64 // Context time, seconds
	tau    float64
}

func (r *targetRamp) at(t float64) float64 {
	if t <= r.start {
		return r.from
	}
	return r.target + (r.from-r.target)*math.Exp(-(t-r.start)/r.tau)
}

// Param is an automatable node parameter
// Its per-sample value is the intrinsic/automated value plus the sum of any
// connected modulation inputs
type Param struct {
	ctx    *Context
	value  float64
	ramp   *targetRamp
	inputs []*nodeCore
	buf    []float64
}

func newParam(ctx *Context, value float64) *Param {
	return &Param{
		ctx:   ctx,
		value: value,
		buf:   make([]float64, renderQuantum),
	}
}

// Value returns the intrinsic value at the current context time
func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.valueAt(p.ctx.currentTimeLocked())
}

// ValueAt returns the intrinsic value at context time t
func (p *Param) ValueAt(t float64) float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.valueAt(t)
}

// Target returns the value automation is converging toward
func (p *Param) Target() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	if p.ramp != nil {
		return p.ramp.target
	}
	return p.value
}

// Ramping reports whether an automation is still in progress
func (p *Param) Ramping() bool {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.ramp != nil
}

// SetValue steps the parameter immediately, cancelling automation
func (p *Param) SetValue(v float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.value = v
	p.ramp = nil
}

// SetTargetAtTime starts an exponential approach toward target beginning at
// context time start with time constant tau (seconds)
// The approach starts from the value the previous automation reaches at start,
// so consecutive calls never produce a discontinuity
func (p *Param) SetTargetAtTime(target, start, tau float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()

	if now := p.ctx.currentTimeLocked(); start < now {
		start = now
	}
	if tau <= 0 {
		p.value = target
		p.ramp = nil
		return
	}
	p.ramp = &targetRamp{
		from:   p.valueAt(start),
		target: target,
		start:  start,
		tau:    tau,
	}
}

// valueAt requires ctx.mu
func (p *Param) valueAt(t float64) float64 {
	if p.ramp == nil {
		return p.value
	}
	return p.ramp.at(t)
}

// render fills the per-sample values for quantum q starting at context time t0
// Caller holds ctx.mu
func (p *Param) render(q uint64, frames int, t0, dt float64) []float64 {
	out := p.buf[:frames]

	if p.ramp == nil {
		for i := range out {
			out[i] = p.value
		}
	} else {
		for i := range out {
			out[i] = p.ramp.at(t0 + float64(i)*dt)
		}
		if t0-p.ramp.start > settleConstants*p.ramp.tau {
			p.value = p.ramp.target
			p.ramp = nil
		}
	}

	for _, src := range p.inputs {
		s := src.pull(q, frames)
		for i := range out {
			out[i] += s[i]
		}
	}
	return out
}
