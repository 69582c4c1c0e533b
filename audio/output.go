package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/soundscape/constant"
)

// Output is the hardware side of a Context
// Start is called once, on the first resume, with the context as streamer
type Output interface {
	Name() string
	Start(s beep.Streamer) error
	Close() error
}

// Output names accepted by SelectOutput
const (
	OutputAuto    = "auto"
	OutputSpeaker = "speaker"
	OutputPipe    = "pipe"
	OutputOffline = "offline"
)

// SelectOutput builds the named backend for rate
// "auto" prefers a detected pipe backend and falls back to the speaker
func SelectOutput(name string, rate beep.SampleRate) (Output, error) {
	switch name {
	case OutputSpeaker:
		return NewSpeakerOutput(rate, constant.SpeakerBufferDuration), nil
	case OutputPipe:
		backend, err := DetectBackend(int(rate))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEnvironmentUnavailable, err)
		}
		return NewPipeOutput(backend, rate), nil
	case OutputOffline:
		return &OfflineOutput{}, nil
	case OutputStdout:
		return NewWriterOutput(os.Stdout, rate), nil
	case OutputAuto, "":
		if backend, err := DetectBackend(int(rate)); err == nil {
			return NewPipeOutput(backend, rate), nil
		}
		return NewSpeakerOutput(rate, constant.SpeakerBufferDuration), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutput, name)
	}
}

// SpeakerOutput plays through beep/speaker (oto)
type SpeakerOutput struct {
	rate   beep.SampleRate
	buffer time.Duration

	mu      sync.Mutex
	started bool
}

// NewSpeakerOutput creates a speaker backend with the given buffer latency
func NewSpeakerOutput(rate beep.SampleRate, buffer time.Duration) *SpeakerOutput {
	return &SpeakerOutput{rate: rate, buffer: buffer}
}

// Name implements Output
func (o *SpeakerOutput) Name() string {
	return OutputSpeaker
}

// Start initializes the speaker and begins pulling s
func (o *SpeakerOutput) Start(s beep.Streamer) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return nil
	}
	if err := speaker.Init(o.rate, o.rate.N(o.buffer)); err != nil {
		return err
	}
	speaker.Play(s)
	o.started = true
	return nil
}

// Close stops playback and releases the device
func (o *SpeakerOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	o.started = false
	return nil
}

// OfflineOutput accepts the context without a device
// The caller pulls frames directly, e.g. for WAV rendering or tests
type OfflineOutput struct {
	mu       sync.Mutex
	streamer beep.Streamer
}

// Name implements Output
func (o *OfflineOutput) Name() string {
	return OutputOffline
}

// Start records s for Streamer
func (o *OfflineOutput) Start(s beep.Streamer) error {
	o.mu.Lock()
	o.streamer = s
	o.mu.Unlock()
	return nil
}

// Streamer returns the started streamer, nil before Start
func (o *OfflineOutput) Streamer() beep.Streamer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streamer
}

// Close implements Output
func (o *OfflineOutput) Close() error {
	return nil
}
