package audio

import "time"

// Observer receives engine lifecycle events, e.g. for metrics
// Calls are made synchronously; implementations must not call back into the engine
type Observer interface {
	StreamStarted(themeID string, kind NoiseKind)
	StreamStopped(themeID string)
	StreamSuperseded(themeID string)
	ActiveStreams(n int)
	NoiseSynthesized(kind NoiseKind, elapsed time.Duration)
	ContextState(state ContextState)
	ResumeFailed(err error)
}

type nopObserver struct{}

func (nopObserver) StreamStarted(string, NoiseKind)           {}
func (nopObserver) StreamStopped(string)                      {}
func (nopObserver) StreamSuperseded(string)                   {}
func (nopObserver) ActiveStreams(int)                         {}
func (nopObserver) NoiseSynthesized(NoiseKind, time.Duration) {}
func (nopObserver) ContextState(ContextState)                 {}
func (nopObserver) ResumeFailed(error)                        {}
