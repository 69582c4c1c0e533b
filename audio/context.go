package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/soundscape/constant"
)

const renderQuantum = constant.RenderQuantum

// Context is the shared audio processing graph feeding one Output
// It is itself a beep.Streamer: the output backend pulls rendered frames from
// Stream on its own goroutine, while control goroutines mutate the graph
// Created suspended; time only advances while running
type Context struct {
	mu sync.Mutex

	rate   beep.SampleRate
	period float64 // Seconds per frame
	output Output
	dest   *DestinationNode

	state   ContextState
	started bool // Output.Start succeeded once
	frames  int64
	quantum uint64

	// Start time of the block being rendered, read by params during pull
	blockStart float64

	resuming  chan struct{}
	resumeErr error
	onState   func(ContextState)
}

// NewContext creates a suspended context rendering at rate into out
func NewContext(rate beep.SampleRate, out Output) (*Context, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrEnvironmentUnavailable, rate)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: no output", ErrEnvironmentUnavailable)
	}

	c := &Context{
		rate:   rate,
		period: 1 / float64(rate),
		output: out,
		state:  StateSuspended,
	}
	c.dest = &DestinationNode{}
	c.dest.nodeCore = newNodeCore(c, KindDestination, c.dest)
	return c, nil
}

// SampleRate returns the render rate
func (c *Context) SampleRate() beep.SampleRate {
	return c.rate
}

// Output returns the backend this context renders into
func (c *Context) Output() Output {
	return c.output
}

// Destination returns the graph sink
func (c *Context) Destination() Node {
	return c.dest
}

// State returns the current lifecycle state
func (c *Context) State() ContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentTime returns seconds of audio rendered while running
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTimeLocked()
}

func (c *Context) currentTimeLocked() float64 {
	return float64(c.frames) * c.period
}

// OnStateChange registers a callback invoked after every state transition
// The callback runs without the context lock held
func (c *Context) OnStateChange(fn func(ContextState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// Resume starts the output backend on first use and moves the context to
// running. Overlapping calls share one in-flight start
func (c *Context) Resume(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateRunning:
		c.mu.Unlock()
		return nil
	case StateClosed:
		c.mu.Unlock()
		return ErrContextClosed
	}

	if c.started {
		c.state = StateRunning
		fn := c.onState
		c.mu.Unlock()
		notifyState(fn, StateRunning)
		return nil
	}

	done := c.resuming
	if done == nil {
		done = make(chan struct{})
		c.resuming = done
		go c.startOutput(done)
	}
	c.mu.Unlock()

	select {
	case <-done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == StateRunning {
			return nil
		}
		return c.resumeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Context) startOutput(done chan struct{}) {
	err := c.output.Start(c)

	c.mu.Lock()
	c.resuming = nil
	if err != nil {
		c.resumeErr = fmt.Errorf("start %s output: %w", c.output.Name(), err)
		c.mu.Unlock()
		close(done)
		return
	}
	c.resumeErr = nil
	c.started = true
	changed := c.state == StateSuspended
	if changed {
		c.state = StateRunning
	}
	fn := c.onState
	c.mu.Unlock()

	if changed {
		notifyState(fn, StateRunning)
	}
	close(done)
}

// Suspend freezes rendering and the context clock
func (c *Context) Suspend() error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrContextClosed
	case StateSuspended:
		c.mu.Unlock()
		return nil
	}
	c.state = StateSuspended
	fn := c.onState
	c.mu.Unlock()

	notifyState(fn, StateSuspended)
	return nil
}

// Close releases the output backend; only used at process exit
func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	fn := c.onState
	c.mu.Unlock()

	notifyState(fn, StateClosed)
	return c.output.Close()
}

func notifyState(fn func(ContextState), s ContextState) {
	if fn != nil {
		fn(s)
	}
}

// Stream implements beep.Streamer, rendering the graph in fixed quanta
// Suspended contexts emit silence without advancing time
func (c *Context) Stream(samples [][2]float64) (n int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return 0, false
	case StateSuspended:
		clear(samples)
		return len(samples), true
	}

	for n < len(samples) {
		frames := min(renderQuantum, len(samples)-n)
		c.quantum++
		c.blockStart = c.currentTimeLocked()

		block := c.dest.pull(c.quantum, frames)
		for i, v := range block {
			samples[n+i][0] = v
			samples[n+i][1] = v
		}

		c.frames += int64(frames)
		n += frames
	}
	return n, true
}

// Err implements beep.Streamer
func (c *Context) Err() error {
	return nil
}

// NodeCount returns the number of nodes reachable from the destination,
// including parameter modulators. Disconnected nodes are not counted
func (c *Context) NodeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := map[*nodeCore]struct{}{c.dest.nodeCore: {}}
	queue := []*nodeCore{c.dest.nodeCore}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		next := n.inputs
		for _, p := range n.params {
			next = append(next[:len(next):len(next)], p.inputs...)
		}
		for _, in := range next {
			if _, ok := seen[in]; !ok {
				seen[in] = struct{}{}
				queue = append(queue, in)
			}
		}
	}
	return len(seen)
}
