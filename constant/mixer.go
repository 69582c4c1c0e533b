package constant

import "time"

// Mixer
const (
	// VolumeStep is the per-keypress change for stream and master volume
	VolumeStep = 0.05

	// DefaultPrefsPath is where preferences persist unless configured
	DefaultPrefsPath = "soundscape-prefs.yaml"

	// DefaultMetricsAddr is the Prometheus listen address
	DefaultMetricsAddr = "127.0.0.1:9464"
)

// SleepTimerPresets are cycled by the timer key; zero means off
var SleepTimerPresets = []time.Duration{0, 15 * time.Minute, 30 * time.Minute, 60 * time.Minute}
