package constant

import "time"

// Audio Hardware Settings
const (
	AudioSampleRate    = 44100
	AudioChannels      = 2
	AudioBitDepth      = 16
	AudioBytesPerFrame = AudioChannels * (AudioBitDepth / 8) // 4 bytes
)

// Audio Engine Timing
const (
	// AudioBufferDuration determines latency and pipe mixer tick rate
	AudioBufferDuration = 50 * time.Millisecond

	// AudioBufferSamples is frames per pipe mixer tick at 44.1kHz
	AudioBufferSamples = (AudioSampleRate * 50) / 1000 // 2205

	// SpeakerBufferDuration is the beep speaker buffer size
	SpeakerBufferDuration = 100 * time.Millisecond

	// RenderQuantum is the graph block size in frames
	RenderQuantum = 128
)

// Noise Synthesis
const (
	// NoiseBufferDuration is the length of one looped noise buffer
	NoiseBufferDuration = 2 * time.Second

	// NoiseBufferSeconds is NoiseBufferDuration in whole seconds; buffer
	// length is always this multiple of the sample rate
	NoiseBufferSeconds = 2

	// PinkNoiseGain normalizes the Kellet filter output
	PinkNoiseGain = 0.11

	// BrownNoiseLeak is the leaky integrator input weight
	BrownNoiseLeak = 0.02

	// BrownNoiseGain restores audible amplitude after integration
	BrownNoiseGain = 3.5
)

// Transitions
const (
	// RampTimeConstant is the exponential approach time constant for every
	// volume change (seconds)
	RampTimeConstant = 0.1

	// StopTeardownDelay is how long a stopping stream keeps its nodes before
	// disconnect; two time constants leaves the ramp inaudible
	StopTeardownDelay = 200 * time.Millisecond

	// MasterVolumeInitial is the master gain on context creation
	MasterVolumeInitial = 1.0

	// DefaultStreamVolume is used by the mixer for themes without a stored volume
	DefaultStreamVolume = 0.5
)

// Theme Effects
const (
	ForestLowPassCutoff = 600.0 // Hz
	FireHighPassCutoff  = 150.0 // Hz
	OceanTremoloRate    = 0.15  // Hz
	OceanTremoloDepth   = 0.5
	OceanCarrierGain    = 1.0

	// FilterQ is the biquad quality factor (Butterworth)
	FilterQ = 0.7071067811865476
)
