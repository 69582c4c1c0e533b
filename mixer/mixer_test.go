package mixer

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lixenwraith/soundscape/audio"
	"github.com/lixenwraith/soundscape/theme"
)

// fakePlayer tracks the live streams the controller requested
type fakePlayer struct {
	mu      sync.Mutex
	live    map[string]float64
	kinds   map[string]audio.NoiseKind
	master  float64
	resumes int
	stopAll int
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{live: map[string]float64{}, kinds: map[string]audio.NoiseKind{}, master: 1}
}

func (p *fakePlayer) Play(id string, kind audio.NoiseKind, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live[id] = v
	p.kinds[id] = kind
}

func (p *fakePlayer) Stop(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, id)
}

func (p *fakePlayer) SetVolume(id string, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.live[id]; ok {
		p.live[id] = v
	}
}

func (p *fakePlayer) SetMasterVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.master = v
}

func (p *fakePlayer) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.live)
	p.stopAll++
}

func (p *fakePlayer) ResumeContext() <-chan error {
	p.mu.Lock()
	p.resumes++
	p.mu.Unlock()
	ch := make(chan error, 1)
	ch <- nil
	close(ch)
	return ch
}

func (p *fakePlayer) IsPlaying(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.live[id]
	return ok
}

func (p *fakePlayer) volume(id string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.live[id]
	return v, ok
}

func newTestController(t *testing.T, opts ...Option) (*Controller, *fakePlayer, *audio.ManualClock) {
	t.Helper()
	p := newFakePlayer()
	clock := audio.NewManualClock(time.Unix(0, 0))
	c := NewController(p, theme.Default(), append([]Option{WithClock(clock)}, opts...)...)
	return c, p, clock
}

// TestToggleStartsPlayback verifies turning a theme on enables global play
func TestToggleStartsPlayback(t *testing.T) {
	c, p, _ := newTestController(t)

	c.Toggle("forest")
	if !c.IsPlaying() {
		t.Error("Expected global playback on")
	}
	if p.resumes != 1 {
		t.Errorf("Expected 1 resume, got %d", p.resumes)
	}
	v, ok := p.volume("forest")
	if !ok || v != 0.5 {
		t.Errorf("Expected forest playing at 0.5, got %v %v", v, ok)
	}
	if p.kinds["forest"] != audio.NoisePink {
		t.Errorf("Expected PINK for forest, got %s", p.kinds["forest"])
	}

	c.Toggle("forest")
	if p.IsPlaying("forest") {
		t.Error("Expected forest stopped after second toggle")
	}
	if !c.IsPlaying() {
		t.Error("Expected global playback to stay on")
	}
	if s := c.Snapshot(); s.Mix["forest"].IsPlaying || s.Mix["forest"].Volume != 0.5 {
		t.Errorf("Expected forest kept in mix, off, at 0.5, got %+v", s.Mix["forest"])
	}
}

// TestTogglePlaybackEmptyMix verifies global play starts the focused theme
func TestTogglePlaybackEmptyMix(t *testing.T) {
	c, p, _ := newTestController(t)
	c.Focus("ocean")

	c.TogglePlayback()
	if !p.IsPlaying("ocean") {
		t.Error("Expected focused theme to start")
	}
	if p.kinds["ocean"] != audio.NoiseBrown {
		t.Errorf("Expected BROWN ocean, got %s", p.kinds["ocean"])
	}

	c.TogglePlayback()
	if c.IsPlaying() || p.IsPlaying("ocean") {
		t.Error("Expected everything stopped when paused")
	}
	if !c.Snapshot().Mix["ocean"].IsPlaying {
		t.Error("Expected mix to remember ocean while paused")
	}

	// Resuming restores the mix without adding the focus
	c.Focus("rain")
	c.TogglePlayback()
	if !p.IsPlaying("ocean") || p.IsPlaying("rain") {
		t.Errorf("Expected only ocean after resume, got %v", p.live)
	}
}

// TestFocusUnknown verifies unknown IDs are ignored
func TestFocusUnknown(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Focus("thunder")
	if got := c.Snapshot().Focus; got != "rain" {
		t.Errorf("Expected focus to stay on rain, got %s", got)
	}
}

// TestSetVolume verifies volume updates reach live streams
func TestSetVolume(t *testing.T) {
	c, p, _ := newTestController(t)
	c.Toggle("rain")

	c.SetVolume("rain", 0.8)
	if v, _ := p.volume("rain"); v != 0.8 {
		t.Errorf("Expected 0.8, got %f", v)
	}

	c.AdjustVolume("rain", 0.5)
	if v, _ := p.volume("rain"); v != 1 {
		t.Errorf("Expected clamped 1, got %f", v)
	}

	// New theme via volume joins as playing
	c.SetVolume("wind", 0.3)
	if v, ok := p.volume("wind"); !ok || v != 0.3 {
		t.Errorf("Expected wind at 0.3, got %v %v", v, ok)
	}
}

// TestSetVolumeWhilePaused verifies paused changes do not start sound
func TestSetVolumeWhilePaused(t *testing.T) {
	c, p, _ := newTestController(t)
	c.SetVolume("rain", 0.7)
	if p.IsPlaying("rain") {
		t.Error("Expected nothing playing while paused")
	}
	if s := c.Snapshot().Mix["rain"]; !s.IsPlaying || s.Volume != 0.7 {
		t.Errorf("Expected rain marked playing at 0.7, got %+v", s)
	}
}

// TestMasterVolume verifies clamping and forwarding
func TestMasterVolume(t *testing.T) {
	c, p, _ := newTestController(t)

	c.SetMasterVolume(0.4)
	if p.master != 0.4 {
		t.Errorf("Expected master 0.4, got %f", p.master)
	}
	c.AdjustMasterVolume(-1)
	if p.master != 0 || c.Snapshot().MasterVolume != 0 {
		t.Errorf("Expected master clamped to 0, got %f", p.master)
	}
}

// TestSyncSkipsUnknown verifies themes missing from the catalog are skipped
func TestSyncSkipsUnknown(t *testing.T) {
	c, p, _ := newTestController(t)
	c.Toggle("thunder")
	c.Toggle("rain")

	if p.IsPlaying("thunder") {
		t.Error("Expected unknown theme not played")
	}
	if !p.IsPlaying("rain") {
		t.Error("Expected rain played")
	}
}

// TestSleepTimer verifies expiry pauses playback
func TestSleepTimer(t *testing.T) {
	c, p, clock := newTestController(t)
	c.Toggle("rain")
	c.Toggle("fire")

	c.SetTimer(15 * time.Minute)
	clock.Advance(5 * time.Minute)

	rem, ok := c.Remaining()
	if !ok || rem != 10*time.Minute {
		t.Errorf("Expected 10m remaining, got %v %v", rem, ok)
	}

	clock.Advance(10 * time.Minute)
	if c.IsPlaying() {
		t.Error("Expected playback paused after timer")
	}
	if p.IsPlaying("rain") || p.IsPlaying("fire") {
		t.Error("Expected all streams stopped")
	}
	if _, ok := c.Remaining(); ok {
		t.Error("Expected timer cleared after expiry")
	}
	if s := c.Snapshot(); !s.Mix["rain"].IsPlaying {
		t.Error("Expected mix preserved after timer")
	}
}

// TestSleepTimerReplaceAndCancel verifies only the latest timer fires
func TestSleepTimerReplaceAndCancel(t *testing.T) {
	c, _, clock := newTestController(t)
	c.Toggle("rain")

	c.SetTimer(time.Minute)
	c.SetTimer(time.Hour)
	clock.Advance(2 * time.Minute)
	if !c.IsPlaying() {
		t.Error("Expected replaced timer not to fire")
	}

	c.CancelTimer()
	clock.Advance(2 * time.Hour)
	if !c.IsPlaying() {
		t.Error("Expected cancelled timer not to fire")
	}

	c.SetTimer(time.Minute)
	c.SetTimer(0)
	if _, ok := c.Remaining(); ok {
		t.Error("Expected zero duration to cancel")
	}
}

// TestPreferencesPersist verifies save on change and restore without play
func TestPreferencesPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	store := NewFileStore(path)

	changes := 0
	c, _, _ := newTestController(t, WithStore(store), WithOnChange(func() { changes++ }))
	c.Focus("wind")
	c.Toggle("stream")
	c.SetVolume("stream", 0.25)
	c.SetMasterVolume(0.6)

	if changes != 4 {
		t.Errorf("Expected 4 change notifications, got %d", changes)
	}

	saved, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if saved.Focus != "wind" || saved.MasterVolume != 0.6 {
		t.Errorf("Unexpected saved prefs %+v", saved)
	}
	if s := saved.Mix["stream"]; !s.IsPlaying || s.Volume != 0.25 {
		t.Errorf("Expected stream saved playing at 0.25, got %+v", s)
	}

	c2, p2, _ := newTestController(t, WithStore(store))
	if err := c2.Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	snap := c2.Snapshot()
	if snap.Focus != "wind" || snap.MasterVolume != 0.6 || !snap.Mix["stream"].IsPlaying {
		t.Errorf("Unexpected restored state %+v", snap)
	}
	if snap.Playing || p2.IsPlaying("stream") {
		t.Error("Expected restore not to auto-play")
	}

	c2.TogglePlayback()
	if v, ok := p2.volume("stream"); !ok || v != 0.25 {
		t.Errorf("Expected restored stream at 0.25, got %v %v", v, ok)
	}
	if p2.master != 0.6 {
		t.Errorf("Expected restored master applied, got %f", p2.master)
	}
}

// TestRestoreMissing verifies a missing file is not an error
func TestRestoreMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "none.yaml"))
	c, _, _ := newTestController(t, WithStore(store))
	if err := c.Restore(); err != nil {
		t.Errorf("Expected nil for missing prefs, got %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist from store, got %v", err)
	}
}

// TestRestoreCorrupt verifies parse errors surface
func TestRestoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	if err := os.WriteFile(path, []byte("mix: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, _, _ := newTestController(t, WithStore(NewFileStore(path)))
	if err := c.Restore(); err == nil {
		t.Error("Expected parse error")
	}
}

// TestControllerWithEngine drives a real engine through the controller
func TestControllerWithEngine(t *testing.T) {
	clock := audio.NewManualClock(time.Unix(0, 0))
	e := audio.NewSoundEngine(func() (*audio.Context, error) {
		return audio.NewContext(22050, &audio.OfflineOutput{})
	}, audio.WithClock(clock))
	c := NewController(e, theme.Default(), WithClock(clock))

	c.Toggle("rain")
	c.Toggle("ocean")
	if got := e.Playing(); len(got) != 2 {
		t.Fatalf("Expected 2 engine streams, got %v", got)
	}
	if info, _ := e.Snapshot("ocean"); info.Chain != audio.ChainTremolo {
		t.Errorf("Expected ocean tremolo, got %s", info.Chain)
	}

	c.TogglePlayback()
	clock.Advance(time.Second)
	if got := e.Playing(); len(got) != 0 {
		t.Errorf("Expected engine silent after pause, got %v", got)
	}
	if n := e.Context().NodeCount(); n != 2 {
		t.Errorf("Expected only destination and master left, got %d", n)
	}
}
