// Package metrics exports engine activity to Prometheus
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lixenwraith/soundscape/audio"
)

// Metrics contains all Prometheus metrics for the sound engine
type Metrics struct {
	registry *prometheus.Registry

	// Stream metrics
	Active     prometheus.Gauge
	Started    *prometheus.CounterVec
	Stopped    *prometheus.CounterVec
	Superseded *prometheus.CounterVec
	Synthesis  *prometheus.HistogramVec

	// Context metrics
	State          *prometheus.GaugeVec
	ResumeFailures prometheus.Counter
}

var _ audio.Observer = (*Metrics)(nil)

// New creates metrics on a private registry, plus Go runtime collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Active: f.NewGauge(prometheus.GaugeOpts{
			Name: "soundscape_active_streams",
			Help: "Current number of streams not stopping",
		}),
		Started: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soundscape_streams_started_total",
			Help: "Total number of streams started",
		}, []string{"theme", "noise"}),
		Stopped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soundscape_streams_stopped_total",
			Help: "Total number of streams torn down after fade-out",
		}, []string{"theme"}),
		Superseded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soundscape_streams_superseded_total",
			Help: "Total number of fading streams replaced by a new Play",
		}, []string{"theme"}),
		Synthesis: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "soundscape_noise_synthesis_seconds",
			Help:    "Time spent synthesizing noise buffers",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10), // 0.5ms to ~250ms
		}, []string{"noise"}),

		State: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soundscape_context_state",
			Help: "1 for the current audio context state, 0 otherwise",
		}, []string{"state"}),
		ResumeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "soundscape_resume_failures_total",
			Help: "Total number of failed context resumes",
		}),
	}
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StreamStarted implements audio.Observer
func (m *Metrics) StreamStarted(themeID string, kind audio.NoiseKind) {
	m.Started.WithLabelValues(themeID, kind.String()).Inc()
}

// StreamStopped implements audio.Observer
func (m *Metrics) StreamStopped(themeID string) {
	m.Stopped.WithLabelValues(themeID).Inc()
}

// StreamSuperseded implements audio.Observer
func (m *Metrics) StreamSuperseded(themeID string) {
	m.Superseded.WithLabelValues(themeID).Inc()
}

// ActiveStreams implements audio.Observer
func (m *Metrics) ActiveStreams(n int) {
	m.Active.Set(float64(n))
}

// NoiseSynthesized implements audio.Observer
func (m *Metrics) NoiseSynthesized(kind audio.NoiseKind, elapsed time.Duration) {
	m.Synthesis.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

// ContextState implements audio.Observer
func (m *Metrics) ContextState(state audio.ContextState) {
	for _, s := range []audio.ContextState{audio.StateSuspended, audio.StateRunning, audio.StateClosed} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(s.String()).Set(v)
	}
}

// ResumeFailed implements audio.Observer
func (m *Metrics) ResumeFailed(error) {
	m.ResumeFailures.Inc()
}
