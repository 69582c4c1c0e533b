package audio

import (
	"errors"
	"fmt"
	"strings"
)

// NoiseKind is the spectral color of a synthesized noise buffer
type NoiseKind int

const (
	NoiseWhite NoiseKind = iota // Flat spectrum
	NoisePink                   // -3dB/octave
	NoiseBrown                  // -6dB/octave
	noiseKindCount
)

var noiseKindNames = [noiseKindCount]string{"WHITE", "PINK", "BROWN"}

func (k NoiseKind) String() string {
	if k < 0 || k >= noiseKindCount {
		return fmt.Sprintf("NoiseKind(%d)", int(k))
	}
	return noiseKindNames[k]
}

// ParseNoiseKind accepts names case-insensitively
func ParseNoiseKind(s string) (NoiseKind, error) {
	for i, name := range noiseKindNames {
		if strings.EqualFold(s, name) {
			return NoiseKind(i), nil
		}
	}
	return NoiseWhite, fmt.Errorf("%w: %q", ErrInvalidNoiseKind, s)
}

// MarshalText implements encoding.TextMarshaler
func (k NoiseKind) MarshalText() ([]byte, error) {
	if k < 0 || k >= noiseKindCount {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNoiseKind, int(k))
	}
	return []byte(strings.ToLower(noiseKindNames[k])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *NoiseKind) UnmarshalText(text []byte) error {
	parsed, err := ParseNoiseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ContextState mirrors the host audio context state
type ContextState int

const (
	StateSuspended ContextState = iota
	StateRunning
	StateClosed
)

func (s ContextState) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// BackendType identifies the pipe audio backend
type BackendType int

const (
	BackendPulse BackendType = iota
	BackendPipeWire
	BackendALSA
	BackendSoX
	BackendFFplay
	BackendOSS
)

// BackendConfig describes a CLI audio backend
type BackendConfig struct {
	Type BackendType
	Name string
	Path string
	Args []string
}

// Sentinel errors
var (
	ErrEnvironmentUnavailable = errors.New("audio environment unavailable")
	ErrContextClosed          = errors.New("audio context closed")
	ErrNoAudioBackend         = errors.New("no compatible audio backend found")
	ErrPipeClosed             = errors.New("audio pipe closed")
	ErrInvalidNoiseKind       = errors.New("invalid noise kind")
	ErrUnknownTheme           = errors.New("unknown theme")
	ErrUnknownOutput          = errors.New("unknown audio output")
)
