package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/soundscape/constant"
)

// OutputStdout writes raw PCM to standard output
const OutputStdout = "stdout"

// PipeOutput streams s16le stereo PCM into a CLI player, a device file or
// any writer, pulling frames on a ticker
// A write failure switches the output to silent mode instead of failing
// callers
type PipeOutput struct {
	backend *BackendConfig
	writer  io.Writer // Preset writer, bypasses backend
	rate    int

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	ossFile *os.File

	running    atomic.Bool
	stopped    atomic.Bool
	silentMode atomic.Bool
	written    atomic.Uint64 // Frames

	mu       sync.Mutex
	stopChan chan struct{}
	errChan  chan error
	wg       sync.WaitGroup
}

// NewPipeOutput creates an output for a backend detected at rate
func NewPipeOutput(backend *BackendConfig, rate beep.SampleRate) *PipeOutput {
	return &PipeOutput{
		backend:  backend,
		rate:     int(rate),
		stopChan: make(chan struct{}),
		errChan:  make(chan error, 1),
	}
}

// NewWriterOutput creates an output writing PCM at rate into w
func NewWriterOutput(w io.Writer, rate beep.SampleRate) *PipeOutput {
	return &PipeOutput{
		writer:   w,
		rate:     int(rate),
		stopChan: make(chan struct{}),
		errChan:  make(chan error, 1),
	}
}

// Name implements Output
func (p *PipeOutput) Name() string {
	switch {
	case p.backend != nil:
		return "pipe:" + p.backend.Name
	case p.writer == os.Stdout:
		return OutputStdout
	default:
		return "writer"
	}
}

// Start opens the backend and launches the mixing loop pulling from s
func (p *PipeOutput) Start(s beep.Streamer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return nil
	}
	if p.stopped.Load() {
		return ErrPipeClosed
	}

	writer, err := p.open()
	if err != nil {
		return err
	}

	p.running.Store(true)
	p.wg.Add(1)
	go p.loop(s, writer)
	return nil
}

// open requires p.mu
func (p *PipeOutput) open() (io.Writer, error) {
	if p.writer != nil {
		return p.writer, nil
	}
	if p.backend == nil {
		return nil, ErrNoAudioBackend
	}

	if p.backend.Type == BackendOSS {
		f, err := os.OpenFile(p.backend.Path, os.O_WRONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p.backend.Path, err)
		}
		p.ossFile = f
		return f, nil
	}

	cmd := exec.Command(p.backend.Path, p.backend.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stdin: %w", p.backend.Name, err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("start %s: %w", p.backend.Name, err)
	}
	p.cmd = cmd
	p.stdin = stdin

	p.wg.Add(1)
	go p.monitorProcess()
	return stdin, nil
}

// monitorProcess watches for subprocess exit
func (p *PipeOutput) monitorProcess() {
	defer p.wg.Done()

	err := p.cmd.Wait()
	if err != nil && p.running.Load() {
		p.silentMode.Store(true)
	}
}

// loop pulls one buffer per tick and writes it out
func (p *PipeOutput) loop(s beep.Streamer, w io.Writer) {
	defer p.wg.Done()

	ticker := time.NewTicker(constant.AudioBufferDuration)
	defer ticker.Stop()

	frames := int(time.Duration(p.rate) * constant.AudioBufferDuration / time.Second)
	buf := make([][2]float64, frames)
	out := make([]byte, frames*constant.AudioBytesPerFrame)

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			n, ok := s.Stream(buf)
			clear(buf[n:])
			floatToBytes(buf, out)

			if _, err := w.Write(out); err != nil {
				p.silentMode.Store(true)
				select {
				case p.errChan <- fmt.Errorf("%w: %v", ErrPipeClosed, err):
				default:
				}
				return
			}
			p.written.Add(uint64(frames))

			if !ok {
				return
			}
		}
	}
}

// Errors returns the channel receiving the first pipe error
func (p *PipeOutput) Errors() <-chan error {
	return p.errChan
}

// SilentMode reports whether output was lost after a start
func (p *PipeOutput) SilentMode() bool {
	return p.silentMode.Load()
}

// FramesWritten returns the number of stereo frames delivered
func (p *PipeOutput) FramesWritten() uint64 {
	return p.written.Load()
}

// Close stops the loop and terminates the backend
func (p *PipeOutput) Close() error {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(p.stopChan)
	p.running.Store(false)

	p.mu.Lock()
	if p.stdin != nil {
		p.stdin.Close()
	}
	if p.ossFile != nil {
		p.ossFile.Close()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// floatToBytes converts stereo float frames to interleaved int16 LE bytes
// Applies soft limiting before hard clip
func floatToBytes(in [][2]float64, out []byte) {
	for i, frame := range in {
		for ch, v := range frame {
			binary.LittleEndian.PutUint16(out[i*4+ch*2:], uint16(limit(v)))
		}
	}
}

// limit soft-knees above 0.8 and converts to int16
func limit(v float64) int16 {
	if v > 0.8 {
		v = 0.8 + 0.2*(1.0-1.0/(1.0+(v-0.8)*5.0))
	} else if v < -0.8 {
		v = -0.8 - 0.2*(1.0-1.0/(1.0+(-v-0.8)*5.0))
	}

	if v > 1.0 {
		v = 1.0
	} else if v < -1.0 {
		v = -1.0
	}
	return int16(v * 32767)
}
