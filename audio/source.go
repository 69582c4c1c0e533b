package audio

import "github.com/gopxl/beep"

// BufferSourceNode plays a NoiseBuffer, optionally looping forever
type BufferSourceNode struct {
	*nodeCore
	buffer   *NoiseBuffer
	loop     bool
	streamer beep.Streamer
	frames   [][2]float64
	started  bool
}

// NewBufferSource creates a playback node for buf
func (c *Context) NewBufferSource(buf *NoiseBuffer, loop bool) *BufferSourceNode {
	s := &BufferSourceNode{
		buffer: buf,
		loop:   loop,
		frames: make([][2]float64, renderQuantum),
	}
	s.nodeCore = newNodeCore(c, KindBufferSource, s)
	return s
}

// Buffer returns the source material
func (s *BufferSourceNode) Buffer() *NoiseBuffer {
	return s.buffer
}

// Loop reports whether playback wraps at the buffer end
func (s *BufferSourceNode) Loop() bool {
	return s.loop
}

// Start begins playback from the buffer start; a source starts at most once
func (s *BufferSourceNode) Start() {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()

	if s.started {
		return
	}
	s.started = true
	if s.loop {
		s.streamer = beep.Loop(-1, s.buffer.Streamer())
	} else {
		s.streamer = s.buffer.Streamer()
	}
}

// Stop halts playback permanently
func (s *BufferSourceNode) Stop() {
	s.ctx.mu.Lock()
	s.streamer = nil
	s.ctx.mu.Unlock()
}

// Playing reports whether the source is producing samples
func (s *BufferSourceNode) Playing() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.streamer != nil
}

func (s *BufferSourceNode) process(_ uint64, _, out []float64) {
	if s.streamer == nil {
		clear(out)
		return
	}

	frames := s.frames[:len(out)]
	n, ok := s.streamer.Stream(frames)
	for i := range out {
		if i < n {
			out[i] = frames[i][0]
		} else {
			out[i] = 0
		}
	}
	if !ok {
		s.streamer = nil
	}
}
