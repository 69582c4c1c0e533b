package mixer

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/lixenwraith/soundscape/audio"
	"github.com/lixenwraith/soundscape/theme"
)

// PlayerSource yields the engine once the audio service has initialized
type PlayerSource interface {
	Player() audio.Player
}

// Service owns the Controller and its persisted preferences
// Preferences load on Init and are written back on Stop
type Service struct {
	source  PlayerSource
	catalog *theme.Catalog
	opts    []Option

	store PrefsStore
	log   *slog.Logger

	mu         sync.Mutex
	controller *Controller
	stopped    bool
}

// NewService creates the prefs service; opts are passed to the Controller
func NewService(source PlayerSource, catalog *theme.Catalog, opts ...Option) *Service {
	return &Service{
		source:  source,
		catalog: catalog,
		opts:    opts,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Name implements Service
func (s *Service) Name() string {
	return "prefs"
}

// Dependencies implements Service
func (s *Service) Dependencies() []string {
	return []string{"audio"}
}

// Init implements Service
// Recognized args: PrefsStore, *slog.Logger
func (s *Service) Init(args ...any) error {
	for _, arg := range args {
		switch v := arg.(type) {
		case PrefsStore:
			s.store = v
		case *slog.Logger:
			s.log = v
		}
	}

	player := s.source.Player()
	if player == nil {
		return errors.New("audio player not initialized")
	}

	opts := []Option{WithLogger(s.log)}
	if s.store != nil {
		opts = append(opts, WithStore(s.store))
	}
	c := NewController(player, s.catalog, append(opts, s.opts...)...)

	if err := c.Restore(); err != nil {
		// Corrupt preferences must not block startup
		s.log.Warn("preferences ignored", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.controller = c
	s.stopped = false
	s.mu.Unlock()
	return nil
}

// Start implements Service
func (s *Service) Start() error {
	return nil
}

// Stop implements Service
// Cancels the sleep timer and saves preferences once
func (s *Service) Stop() error {
	s.mu.Lock()
	c := s.controller
	if c == nil || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	c.CancelTimer()
	return c.Save()
}

// Controller returns the mixer controller, nil before Init
func (s *Service) Controller() *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller
}
