package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lixenwraith/soundscape/constant"
)

// Config controls the metrics endpoint
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultConfig returns a disabled endpoint on the loopback address
func DefaultConfig() Config {
	return Config{Addr: constant.DefaultMetricsAddr}
}

// Validate checks the listen address when enabled
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("metrics addr %q: %w", c.Addr, err)
	}
	return nil
}

// Service serves Metrics over HTTP
type Service struct {
	metrics *Metrics
	cfg     Config
	log     *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewService wraps m; the endpoint stays off until Init receives an enabled Config
func NewService(m *Metrics) *Service {
	return &Service{
		metrics: m,
		cfg:     DefaultConfig(),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Name implements Service
func (s *Service) Name() string {
	return "metrics"
}

// Dependencies implements Service
func (s *Service) Dependencies() []string {
	return nil
}

// Init implements Service
// Recognized args: *Config, *slog.Logger
func (s *Service) Init(args ...any) error {
	for _, arg := range args {
		switch v := arg.(type) {
		case *Config:
			s.cfg = *v
		case *slog.Logger:
			s.log = v
		}
	}
	return s.cfg.Validate()
}

// Start implements Service
func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.listener = ln
	s.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}(s.server, s.done)

	s.log.Info("metrics endpoint listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Stop implements Service
func (s *Service) Stop() error {
	s.mu.Lock()
	srv, done := s.server, s.done
	s.server, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := srv.Shutdown(ctx)
	<-done
	return err
}

// Addr returns the bound address, empty when not serving
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Metrics returns the served metrics
func (s *Service) Metrics() *Metrics {
	return s.metrics
}
