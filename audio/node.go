package audio

// NodeKind identifies the processing stage a node performs
type NodeKind int

const (
	KindDestination NodeKind = iota
	KindGain
	KindBiquadFilter
	KindOscillator
	KindBufferSource
)

func (k NodeKind) String() string {
	switch k {
	case KindDestination:
		return "destination"
	case KindGain:
		return "gain"
	case KindBiquadFilter:
		return "biquad"
	case KindOscillator:
		return "oscillator"
	case KindBufferSource:
		return "buffer-source"
	default:
		return "unknown"
	}
}

// Node is a processing stage in a Context graph
// Inputs connected to a node are summed before processing
type Node interface {
	Kind() NodeKind
	Context() *Context

	// Connect routes this node's output into dst
	Connect(dst Node)
	// ConnectParam routes this node's output into an automatable parameter
	ConnectParam(p *Param)
	// Disconnect removes every outgoing connection
	Disconnect()

	core() *nodeCore
}

// processor renders one block; in holds the summed inputs
type processor interface {
	process(q uint64, in, out []float64)
}

// nodeCore holds connection state shared by every node type
// All fields are guarded by ctx.mu
type nodeCore struct {
	ctx  *Context
	kind NodeKind
	proc processor

	inputs       []*nodeCore
	outputs      []*nodeCore
	paramOutputs []*Param
	params       []*Param // Owned parameters, walked by NodeCount

	in    []float64
	buf   []float64
	stamp uint64 // Quantum whose output is cached in buf
}

func newNodeCore(ctx *Context, kind NodeKind, proc processor) *nodeCore {
	return &nodeCore{
		ctx:  ctx,
		kind: kind,
		proc: proc,
		in:   make([]float64, renderQuantum),
		buf:  make([]float64, renderQuantum),
	}
}

func (n *nodeCore) Kind() NodeKind    { return n.kind }
func (n *nodeCore) Context() *Context { return n.ctx }
func (n *nodeCore) core() *nodeCore   { return n }

func (n *nodeCore) Connect(dst Node) {
	if dst == nil {
		return
	}
	d := dst.core()
	if d.ctx != n.ctx {
		return
	}

	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	for _, o := range n.outputs {
		if o == d {
			return
		}
	}
	n.outputs = append(n.outputs, d)
	d.inputs = append(d.inputs, n)
}

func (n *nodeCore) ConnectParam(p *Param) {
	if p == nil || p.ctx != n.ctx {
		return
	}

	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	for _, o := range n.paramOutputs {
		if o == p {
			return
		}
	}
	n.paramOutputs = append(n.paramOutputs, p)
	p.inputs = append(p.inputs, n)
}

func (n *nodeCore) Disconnect() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	for _, o := range n.outputs {
		o.inputs = removeNode(o.inputs, n)
	}
	for _, p := range n.paramOutputs {
		p.inputs = removeNode(p.inputs, n)
	}
	n.outputs = nil
	n.paramOutputs = nil
}

// pull renders this node for quantum q, reusing the cached block on fan-out
// Caller holds ctx.mu
func (n *nodeCore) pull(q uint64, frames int) []float64 {
	out := n.buf[:frames]
	if n.stamp == q {
		return out
	}
	n.stamp = q

	in := n.in[:frames]
	clear(in)
	for _, src := range n.inputs {
		s := src.pull(q, frames)
		for i := range in {
			in[i] += s[i]
		}
	}

	n.proc.process(q, in, out)
	return out
}

func removeNode(list []*nodeCore, n *nodeCore) []*nodeCore {
	for i, x := range list {
		if x == n {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// DestinationNode is the hardware-facing sink of a Context
type DestinationNode struct {
	*nodeCore
}

func (d *DestinationNode) process(_ uint64, in, out []float64) {
	copy(out, in)
}
