package audio

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/lixenwraith/soundscape/constant"
)

// Environment overrides read by ApplyEnv
const (
	EnvAudioEnabled = "SOUNDSCAPE_AUDIO_ENABLED"
	EnvMasterVolume = "SOUNDSCAPE_MASTER_VOLUME" // 0-100
	EnvSampleRate   = "SOUNDSCAPE_SAMPLE_RATE"
	EnvOutput       = "SOUNDSCAPE_OUTPUT"
	EnvVolumes      = "SOUNDSCAPE_VOLUMES" // JSON object, theme ID to 0.0-1.0
)

// AudioConfig holds engine and output settings
type AudioConfig struct {
	Enabled      bool               `yaml:"enabled"`
	MasterVolume float64            `yaml:"master_volume"`
	SampleRate   int                `yaml:"sample_rate"`
	Output       string             `yaml:"output"`
	Volumes      map[string]float64 `yaml:"volumes"` // Initial per-theme volumes
}

// DefaultAudioConfig returns the built-in settings
func DefaultAudioConfig() *AudioConfig {
	return &AudioConfig{
		Enabled:      true,
		MasterVolume: constant.MasterVolumeInitial,
		SampleRate:   constant.AudioSampleRate,
		Output:       OutputAuto,
		Volumes:      make(map[string]float64),
	}
}

// Validate checks ranges and the output name
func (c *AudioConfig) Validate() error {
	if c.MasterVolume < 0 || c.MasterVolume > 1 {
		return fmt.Errorf("master_volume must be within [0, 1], got %v", c.MasterVolume)
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be within [8000, 192000], got %d", c.SampleRate)
	}
	switch c.Output {
	case OutputAuto, OutputSpeaker, OutputPipe, OutputOffline, OutputStdout:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutput, c.Output)
	}
	for id, v := range c.Volumes {
		if v < 0 || v > 1 {
			return fmt.Errorf("volume for %q must be within [0, 1], got %v", id, v)
		}
	}
	return nil
}

// Volume returns the configured initial volume for themeID
func (c *AudioConfig) Volume(themeID string) float64 {
	if v, ok := c.Volumes[themeID]; ok {
		return v
	}
	return constant.DefaultStreamVolume
}

// ApplyEnv overlays environment overrides read through getenv
// Malformed values are ignored
func (c *AudioConfig) ApplyEnv(getenv func(string) string) {
	if enabled := getenv(EnvAudioEnabled); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			c.Enabled = val
		}
	}

	// 0-100 converted to 0.0-1.0
	if volume := getenv(EnvMasterVolume); volume != "" {
		if val, err := strconv.Atoi(volume); err == nil {
			c.MasterVolume = clampUnit(float64(val) / 100.0)
		}
	}

	if sampleRate := getenv(EnvSampleRate); sampleRate != "" {
		if val, err := strconv.Atoi(sampleRate); err == nil && val > 0 {
			c.SampleRate = val
		}
	}

	if output := getenv(EnvOutput); output != "" {
		c.Output = output
	}

	if vols := getenv(EnvVolumes); vols != "" {
		var volumes map[string]float64
		if err := json.Unmarshal([]byte(vols), &volumes); err == nil {
			if c.Volumes == nil {
				c.Volumes = make(map[string]float64, len(volumes))
			}
			for id, v := range volumes {
				c.Volumes[id] = clampUnit(v)
			}
		}
	}
}

// LoadAudioConfig returns defaults with process environment overrides applied
func LoadAudioConfig() *AudioConfig {
	cfg := DefaultAudioConfig()
	cfg.ApplyEnv(os.Getenv)
	return cfg
}
