// Package mixer reconciles the desired mix with the sound engine
//
// The engine only knows which streams are live. The Controller owns the mix
// (which themes should sound and how loud), global play/pause, the sleep
// timer and persisted preferences, and drives the engine to match.
package mixer

import (
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/lixenwraith/soundscape/audio"
	"github.com/lixenwraith/soundscape/constant"
	"github.com/lixenwraith/soundscape/theme"
)

// SoundState is the desired state of one theme
type SoundState struct {
	IsPlaying bool    `yaml:"playing"`
	Volume    float64 `yaml:"volume"`
}

// Mix maps theme IDs to their desired state
type Mix map[string]SoundState

// Active returns the number of themes marked playing
func (m Mix) Active() int {
	n := 0
	for _, s := range m {
		if s.IsPlaying {
			n++
		}
	}
	return n
}

// State is a snapshot of the controller
type State struct {
	Playing        bool
	Focus          string
	Mix            Mix
	MasterVolume   float64
	TimerSet       bool
	TimerRemaining time.Duration
}

// Controller is the policy layer between the UI and the engine
type Controller struct {
	mu sync.Mutex

	player  audio.Player
	catalog *theme.Catalog
	clock   audio.Clock
	store   PrefsStore
	log     *slog.Logger

	mix     Mix
	playing bool
	focus   string
	master  float64

	timer         audio.Timer
	timerDeadline time.Time
	timerGen      uint64

	onChange func()
}

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces the sleep timer clock
func WithClock(c audio.Clock) Option {
	return func(m *Controller) { m.clock = c }
}

// WithStore persists preferences on every change
func WithStore(s PrefsStore) Option {
	return func(m *Controller) { m.store = s }
}

// WithLogger sets the controller logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Controller) { m.log = l }
}

// WithOnChange registers a callback run after every state change, outside
// the controller lock
func WithOnChange(fn func()) Option {
	return func(m *Controller) { m.onChange = fn }
}

// NewController creates a paused controller focused on the first theme
func NewController(player audio.Player, catalog *theme.Catalog, opts ...Option) *Controller {
	c := &Controller{
		player:  player,
		catalog: catalog,
		clock:   audio.SystemClock{},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		mix:     make(Mix),
		master:  constant.MasterVolumeInitial,
	}
	if ids := catalog.IDs(); len(ids) > 0 {
		c.focus = ids[0]
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore loads preferences from the store without starting playback
// A missing preferences file is not an error
func (c *Controller) Restore() error {
	if c.store == nil {
		return nil
	}
	p, err := c.store.Load()
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}

	c.mu.Lock()
	if _, ok := c.catalog.Lookup(p.Focus); ok {
		c.focus = p.Focus
	}
	c.mix = make(Mix, len(p.Mix))
	for id, s := range p.Mix {
		s.Volume = clampUnit(s.Volume)
		c.mix[id] = s
	}
	c.master = clampUnit(p.MasterVolume)
	c.mu.Unlock()

	c.log.Info("preferences restored",
		slog.String("focus", p.Focus),
		slog.Int("themes", len(p.Mix)),
		slog.Float64("master_volume", p.MasterVolume),
	)
	return nil
}

// Preferences returns the persistable part of the state
func (c *Controller) Preferences() Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefsLocked()
}

func (c *Controller) prefsLocked() Preferences {
	return Preferences{Focus: c.focus, Mix: maps.Clone(c.mix), MasterVolume: c.master}
}

// Save writes preferences to the store
func (c *Controller) Save() error {
	if c.store == nil {
		return nil
	}
	return c.store.Save(c.Preferences())
}

// Toggle flips themeID in the mix
// Turning a theme on also turns global playback on
func (c *Controller) Toggle(themeID string) {
	c.mu.Lock()
	cur, ok := c.mix[themeID]
	if !ok {
		cur = SoundState{Volume: constant.DefaultStreamVolume}
	}
	cur.IsPlaying = !cur.IsPlaying
	c.mix[themeID] = cur

	if cur.IsPlaying && !c.playing {
		c.playing = true
		c.player.ResumeContext()
	}
	c.syncLocked()
	c.mu.Unlock()

	c.changed()
}

// SetVolume sets the desired volume of themeID
// A theme not yet in the mix is added as playing
func (c *Controller) SetVolume(themeID string, volume float64) {
	c.mu.Lock()
	cur, ok := c.mix[themeID]
	if !ok {
		cur = SoundState{IsPlaying: true}
	}
	cur.Volume = clampUnit(volume)
	c.mix[themeID] = cur
	c.syncLocked()
	c.mu.Unlock()

	c.changed()
}

// AdjustVolume changes the volume of themeID by delta
func (c *Controller) AdjustVolume(themeID string, delta float64) {
	c.mu.Lock()
	cur, ok := c.mix[themeID]
	if !ok {
		cur = SoundState{Volume: constant.DefaultStreamVolume}
	}
	cur.Volume = clampUnit(cur.Volume + delta)
	c.mix[themeID] = cur
	c.syncLocked()
	c.mu.Unlock()

	c.changed()
}

// SetMasterVolume sets the shared output volume
func (c *Controller) SetMasterVolume(volume float64) {
	c.mu.Lock()
	c.master = clampUnit(volume)
	c.player.SetMasterVolume(c.master)
	c.mu.Unlock()

	c.changed()
}

// AdjustMasterVolume changes the master volume by delta
func (c *Controller) AdjustMasterVolume(delta float64) {
	c.mu.Lock()
	c.master = clampUnit(c.master + delta)
	c.player.SetMasterVolume(c.master)
	c.mu.Unlock()

	c.changed()
}

// TogglePlayback flips global playback
// Starting with nothing in the mix marked playing turns on the focused theme
func (c *Controller) TogglePlayback() {
	c.mu.Lock()
	c.playing = !c.playing
	if c.playing {
		c.player.ResumeContext()
		if c.mix.Active() == 0 && c.focus != "" {
			cur, ok := c.mix[c.focus]
			if !ok {
				cur = SoundState{Volume: constant.DefaultStreamVolume}
			}
			cur.IsPlaying = true
			c.mix[c.focus] = cur
		}
	}
	c.syncLocked()
	c.mu.Unlock()

	c.changed()
}

// Focus selects the theme that global play starts when the mix is empty
// Unknown IDs are ignored
func (c *Controller) Focus(themeID string) {
	if _, ok := c.catalog.Lookup(themeID); !ok {
		return
	}
	c.mu.Lock()
	c.focus = themeID
	c.mu.Unlock()

	c.changed()
}

// Sync drives the engine to match the current mix
func (c *Controller) Sync() {
	c.mu.Lock()
	c.syncLocked()
	c.mu.Unlock()
}

// syncLocked stops everything while paused; otherwise plays every theme
// marked playing and stops the rest. IDs missing from the catalog are skipped
func (c *Controller) syncLocked() {
	if !c.playing {
		c.player.StopAll()
		return
	}

	// Master first, so a context created by the first Play starts at it
	c.player.SetMasterVolume(c.master)
	for _, id := range slices.Sorted(maps.Keys(c.mix)) {
		s := c.mix[id]
		t, ok := c.catalog.Lookup(id)
		if !ok {
			c.log.Warn("skipping unknown theme", slog.String("theme", id))
			continue
		}
		if s.IsPlaying {
			c.player.Play(id, t.Noise, s.Volume)
		} else {
			c.player.Stop(id)
		}
	}
}

// SetTimer pauses playback after d; d <= 0 cancels
func (c *Controller) SetTimer(d time.Duration) {
	if d <= 0 {
		c.CancelTimer()
		return
	}

	c.mu.Lock()
	c.stopTimerLocked()
	c.timerGen++
	gen := c.timerGen
	c.timerDeadline = c.clock.Now().Add(d)
	c.timer = c.clock.AfterFunc(d, func() { c.timerExpired(gen) })
	c.mu.Unlock()

	c.log.Info("sleep timer set", slog.Duration("duration", d))
	c.changed()
}

// CancelTimer clears a pending sleep timer
func (c *Controller) CancelTimer() {
	c.mu.Lock()
	had := c.timer != nil
	c.stopTimerLocked()
	c.mu.Unlock()

	if had {
		c.log.Info("sleep timer cancelled")
		c.changed()
	}
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = nil
	c.timerDeadline = time.Time{}
}

func (c *Controller) timerExpired(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.timerDeadline = time.Time{}
	c.playing = false
	c.syncLocked()
	c.mu.Unlock()

	c.log.Info("sleep timer expired, playback paused")
	c.changed()
}

// Remaining returns the time left on the sleep timer and whether one is set
func (c *Controller) Remaining() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Controller) remainingLocked() (time.Duration, bool) {
	if c.timer == nil {
		return 0, false
	}
	return max(c.timerDeadline.Sub(c.clock.Now()), 0), true
}

// IsPlaying reports global playback
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Snapshot returns a copy of the controller state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining, set := c.remainingLocked()
	return State{
		Playing:        c.playing,
		Focus:          c.focus,
		Mix:            maps.Clone(c.mix),
		MasterVolume:   c.master,
		TimerSet:       set,
		TimerRemaining: remaining,
	}
}

// changed persists preferences and notifies the listener
func (c *Controller) changed() {
	if c.store != nil {
		if err := c.Save(); err != nil {
			c.log.Warn("preferences not saved", slog.String("error", err.Error()))
		}
	}
	if c.onChange != nil {
		c.onChange()
	}
}

func clampUnit(v float64) float64 {
	return min(max(v, 0), 1)
}
