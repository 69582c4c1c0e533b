package audio

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/gopxl/beep"
)

// Player is the control surface the mixer drives
type Player interface {
	Play(themeID string, kind NoiseKind, volume float64)
	Stop(themeID string)
	SetVolume(themeID string, volume float64)
	SetMasterVolume(volume float64)
	StopAll()
	ResumeContext() <-chan error
	IsPlaying(themeID string) bool
}

var _ Player = (*SoundEngine)(nil)

// AudioService wraps SoundEngine as a Service
// Handles graceful degradation when no audio backend is available
type AudioService struct {
	cfg    *AudioConfig
	opts   []EngineOption
	log    *slog.Logger
	output Output

	engine   *SoundEngine
	disabled atomic.Bool
}

// NewService creates an audio service; opts are passed to the engine
func NewService(opts ...EngineOption) *AudioService {
	return &AudioService{
		opts: opts,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Name implements Service
func (s *AudioService) Name() string {
	return "audio"
}

// Dependencies implements Service
func (s *AudioService) Dependencies() []string {
	return nil
}

// Init implements Service
// Recognized args: *AudioConfig, *slog.Logger, Output (preset backend)
// Missing config falls back to LoadAudioConfig
func (s *AudioService) Init(args ...any) error {
	for _, arg := range args {
		switch v := arg.(type) {
		case *AudioConfig:
			s.cfg = v
		case *slog.Logger:
			s.log = v
		case Output:
			s.output = v
		}
	}
	if s.cfg == nil {
		s.cfg = LoadAudioConfig()
	}
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if !s.cfg.Enabled {
		s.disabled.Store(true)
	}

	opts := append([]EngineOption{
		WithLogger(s.log),
		WithMasterVolume(s.cfg.MasterVolume),
	}, s.opts...)
	s.engine = NewSoundEngine(s.newContext, opts...)
	return nil
}

// newContext is the engine's ContextFactory
// Backend selection is deferred to the first Play
func (s *AudioService) newContext() (*Context, error) {
	if s.disabled.Load() {
		return nil, fmt.Errorf("%w: audio disabled", ErrEnvironmentUnavailable)
	}

	rate := beep.SampleRate(s.cfg.SampleRate)
	out := s.output
	if out == nil {
		var err error
		out, err = SelectOutput(s.cfg.Output, rate)
		if err != nil {
			s.disabled.Store(true)
			return nil, err
		}
	}

	c, err := NewContext(rate, out)
	if err != nil {
		s.disabled.Store(true)
		return nil, err
	}
	return c, nil
}

// Start implements Service
func (s *AudioService) Start() error {
	return nil
}

// Stop implements Service
func (s *AudioService) Stop() error {
	if s.engine == nil {
		return nil
	}
	return s.engine.Close()
}

// IsDisabled returns true if audio is unavailable
func (s *AudioService) IsDisabled() bool {
	return s.disabled.Load()
}

// Engine returns the underlying SoundEngine, nil before Init
func (s *AudioService) Engine() *SoundEngine {
	return s.engine
}

// Config returns the effective configuration, nil before Init
func (s *AudioService) Config() *AudioConfig {
	return s.cfg
}

// Player returns the engine as a Player
// A disabled service still returns a Player whose calls are no-ops
func (s *AudioService) Player() Player {
	if s.engine == nil {
		return nil
	}
	return s.engine
}
