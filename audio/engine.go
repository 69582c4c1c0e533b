package audio

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lixenwraith/soundscape/constant"
)

// ContextFactory creates the shared context on first use
type ContextFactory func() (*Context, error)

// streamState tracks one instance through its lifecycle
// Absent is represented by no arena entry
type streamState int

const (
	streamStarting streamState = iota
	streamPlaying
	streamStopping
)

// stopper is implemented by scheduled source nodes
type stopper interface {
	Stop()
}

// instance is the live graph of one sounding theme
type instance struct {
	themeID string
	gen     uint64
	kind    NoiseKind
	recipe  ChainRecipe

	source *BufferSourceNode
	volume *GainNode
	nodes  []Node // Every node allocated for the stream, torn down together

	target float64
	state  streamState
	timer  Timer
}

// StreamInfo is a read-only view of a live stream
type StreamInfo struct {
	ThemeID    string
	Generation uint64
	Kind       NoiseKind
	Chain      ChainKind
	Volume     float64 // Target volume
	Stopping   bool
	Nodes      int
}

// SoundEngine mixes looping noise streams keyed by theme ID
// Control methods never fail: a missing audio environment is logged once and
// every later call becomes a no-op
type SoundEngine struct {
	mu sync.Mutex

	factory ContextFactory
	ctx     *Context
	master  *GainNode
	envErr  error

	instances map[string]*instance
	nextGen   uint64

	masterInit float64
	policy     ChainPolicy
	clock      Clock
	observer   Observer
	log        *slog.Logger
}

// EngineOption configures a SoundEngine
type EngineOption func(*SoundEngine)

// WithClock replaces the teardown clock
func WithClock(c Clock) EngineOption {
	return func(e *SoundEngine) { e.clock = c }
}

// WithLogger sets the engine logger
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *SoundEngine) { e.log = l }
}

// WithObserver registers a lifecycle observer
func WithObserver(o Observer) EngineOption {
	return func(e *SoundEngine) { e.observer = o }
}

// WithMasterVolume sets the master gain applied when the context is created
func WithMasterVolume(v float64) EngineOption {
	return func(e *SoundEngine) { e.masterInit = clampUnit(v) }
}

// WithChainPolicy replaces the theme effect table
func WithChainPolicy(p ChainPolicy) EngineOption {
	return func(e *SoundEngine) { e.policy = p }
}

// NewSoundEngine creates an engine; no context exists until the first Play
func NewSoundEngine(factory ContextFactory, opts ...EngineOption) *SoundEngine {
	e := &SoundEngine{
		factory:    factory,
		instances:  make(map[string]*instance),
		masterInit: constant.MasterVolumeInitial,
		policy:     DefaultChainPolicy(),
		clock:      SystemClock{},
		observer:   nopObserver{},
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ensureContextLocked creates the context and master bus once
// Returns false if the environment is unavailable; the failure is reported
// only on the first attempt
func (e *SoundEngine) ensureContextLocked() bool {
	if e.envErr != nil {
		return false
	}
	if e.ctx != nil {
		return true
	}
	if e.factory == nil {
		e.envErr = ErrEnvironmentUnavailable
		e.log.Error("audio context unavailable", slog.String("error", e.envErr.Error()))
		return false
	}

	c, err := e.factory()
	if err != nil {
		e.envErr = err
		e.log.Error("audio context unavailable", slog.String("error", err.Error()))
		return false
	}

	master := c.NewGain(e.masterInit)
	master.Connect(c.Destination())
	c.OnStateChange(e.observer.ContextState)

	e.ctx = c
	e.master = master
	e.log.Info("audio context created",
		slog.Int("sample_rate", int(c.SampleRate())),
		slog.String("output", c.Output().Name()),
	)
	e.observer.ContextState(c.State())
	return true
}

// Err returns the environment failure, nil while audio is usable
func (e *SoundEngine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.envErr
}

// Context returns the shared context, nil before the first Play
func (e *SoundEngine) Context() *Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

// Master returns the master gain node, nil before the first Play
func (e *SoundEngine) Master() *GainNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.master
}

// Play starts themeID with noise of kind at volume
// A theme that is already playing only has its volume ramped; a theme that is
// fading out is superseded by a fresh instance
func (e *SoundEngine) Play(themeID string, kind NoiseKind, volume float64) {
	volume = clampUnit(volume)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ensureContextLocked() {
		return
	}
	if e.ctx.State() == StateSuspended {
		e.requestResumeLocked()
	}

	prev, exists := e.instances[themeID]
	if exists && prev.state == streamPlaying {
		e.setVolumeLocked(prev, volume)
		return
	}

	inst, err := e.startLocked(themeID, kind, volume)
	if err != nil {
		e.log.Warn("stream start failed",
			slog.String("theme", themeID),
			slog.String("noise", kind.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if exists {
		e.observer.StreamSuperseded(themeID)
		e.log.Debug("stopping stream superseded",
			slog.String("theme", themeID),
			slog.Uint64("old_generation", prev.gen),
			slog.Uint64("generation", inst.gen),
		)
	}
	e.instances[themeID] = inst

	e.observer.StreamStarted(themeID, kind)
	e.observer.ActiveStreams(e.playingCountLocked())
	e.log.Info("stream started",
		slog.String("theme", themeID),
		slog.String("noise", kind.String()),
		slog.String("chain", inst.recipe.Kind.String()),
		slog.Float64("volume", volume),
		slog.Uint64("generation", inst.gen),
	)
}

// startLocked builds and connects a complete stream graph
// The graph becomes reachable from the destination only by the final
// connect, so rendering never observes a partial chain
func (e *SoundEngine) startLocked(themeID string, kind NoiseKind, volume float64) (*instance, error) {
	c := e.ctx

	began := time.Now()
	buf, err := SynthesizeNoise(kind, c.SampleRate())
	if err != nil {
		return nil, err
	}
	e.observer.NoiseSynthesized(kind, time.Since(began))

	e.nextGen++
	inst := &instance{
		themeID: themeID,
		gen:     e.nextGen,
		kind:    kind,
		target:  volume,
		state:   streamStarting,
	}

	inst.source = c.NewBufferSource(buf, true)
	inst.volume = c.NewGain(volume)

	inst.recipe = e.policy.Recipe(themeID)
	var terminal Node
	var chainNodes []Node
	err = inst.recipe.Validate(int(c.SampleRate()))
	if err == nil {
		terminal, chainNodes, err = buildChain(c, inst.recipe, inst.source, inst.volume)
	}
	if err != nil {
		e.log.Warn("effect chain unavailable, using pass-through",
			slog.String("theme", themeID),
			slog.String("chain", inst.recipe.Kind.String()),
			slog.String("error", err.Error()),
		)
		inst.recipe = ChainRecipe{Kind: ChainPassThrough}
		terminal, chainNodes, _ = buildChain(c, inst.recipe, inst.source, inst.volume)
	}

	inst.nodes = append([]Node{inst.source, inst.volume}, chainNodes...)
	inst.source.Start()
	terminal.Connect(e.master)
	inst.state = streamPlaying
	return inst, nil
}

// Stop fades themeID out and tears its graph down after the fade
func (e *SoundEngine) Stop(themeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.instances[themeID]
	if !ok || inst.state != streamPlaying {
		return
	}
	e.stopLocked(inst)
}

// stopLocked ramps inst to silence and schedules teardown of that exact
// instance
func (e *SoundEngine) stopLocked(inst *instance) {
	inst.state = streamStopping
	inst.volume.Gain().SetTargetAtTime(0, e.ctx.CurrentTime(), constant.RampTimeConstant)
	inst.timer = e.clock.AfterFunc(constant.StopTeardownDelay, func() {
		e.teardown(inst)
	})

	e.observer.ActiveStreams(e.playingCountLocked())
	e.log.Info("stream stopping",
		slog.String("theme", inst.themeID),
		slog.Uint64("generation", inst.gen),
	)
}

// teardown halts and disconnects inst, removing it from the arena only if it
// is still the current generation for its theme
func (e *SoundEngine) teardown(inst *instance) {
	for _, n := range inst.nodes {
		if s, ok := n.(stopper); ok {
			s.Stop()
		}
		n.Disconnect()
	}

	e.mu.Lock()
	if cur, ok := e.instances[inst.themeID]; ok && cur.gen == inst.gen {
		delete(e.instances, inst.themeID)
	}
	e.mu.Unlock()

	e.observer.StreamStopped(inst.themeID)
	e.log.Debug("stream torn down",
		slog.String("theme", inst.themeID),
		slog.Uint64("generation", inst.gen),
		slog.Int("nodes", len(inst.nodes)),
	)
}

// SetVolume ramps a playing theme toward volume
func (e *SoundEngine) SetVolume(themeID string, volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.instances[themeID]
	if !ok || inst.state != streamPlaying {
		return
	}
	e.setVolumeLocked(inst, clampUnit(volume))
}

func (e *SoundEngine) setVolumeLocked(inst *instance, volume float64) {
	inst.target = volume
	inst.volume.Gain().SetTargetAtTime(volume, e.ctx.CurrentTime(), constant.RampTimeConstant)
}

// SetMasterVolume ramps the shared output gain toward volume
// Before a context exists it sets the level the master gain starts at
func (e *SoundEngine) SetMasterVolume(volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.master == nil {
		if e.envErr == nil {
			e.masterInit = clampUnit(volume)
		}
		return
	}
	e.master.Gain().SetTargetAtTime(clampUnit(volume), e.ctx.CurrentTime(), constant.RampTimeConstant)
}

// StopAll stops every playing theme
func (e *SoundEngine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, inst := range e.instances {
		if inst.state == streamPlaying {
			e.stopLocked(inst)
		}
	}
}

// ResumeContext asks a suspended context to start rendering
// It returns immediately; the channel receives the outcome once and closes
// Calls before any context exists are no-ops
func (e *SoundEngine) ResumeContext() <-chan error {
	res := make(chan error, 1)

	e.mu.Lock()
	c := e.ctx
	e.mu.Unlock()

	if c == nil {
		res <- nil
		close(res)
		return res
	}

	go func() {
		err := c.Resume(context.Background())
		if err != nil {
			e.observer.ResumeFailed(err)
			e.log.Warn("audio context resume failed", slog.String("error", err.Error()))
		}
		res <- err
		close(res)
	}()
	return res
}

// requestResumeLocked issues a background resume for Play
func (e *SoundEngine) requestResumeLocked() {
	c := e.ctx
	go func() {
		if err := c.Resume(context.Background()); err != nil {
			e.observer.ResumeFailed(err)
			e.log.Warn("audio context resume failed", slog.String("error", err.Error()))
		}
	}()
}

// IsPlaying reports whether themeID is audible and not fading out
func (e *SoundEngine) IsPlaying(themeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.instances[themeID]
	return ok && inst.state == streamPlaying
}

// Playing returns the IDs of playing themes in sorted order
func (e *SoundEngine) Playing() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.instances))
	for id, inst := range e.instances {
		if inst.state == streamPlaying {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Snapshot describes the current instance for themeID, including one that
// is fading out
func (e *SoundEngine) Snapshot(themeID string) (StreamInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.instances[themeID]
	if !ok {
		return StreamInfo{}, false
	}
	return StreamInfo{
		ThemeID:    inst.themeID,
		Generation: inst.gen,
		Kind:       inst.kind,
		Chain:      inst.recipe.Kind,
		Volume:     inst.target,
		Stopping:   inst.state == streamStopping,
		Nodes:      len(inst.nodes),
	}, true
}

// Close stops every stream immediately and releases the context and its
// output; the engine is inert afterwards
func (e *SoundEngine) Close() error {
	e.mu.Lock()
	c := e.ctx
	insts := make([]*instance, 0, len(e.instances))
	for _, inst := range e.instances {
		if inst.timer != nil {
			inst.timer.Stop()
		}
		insts = append(insts, inst)
	}
	clear(e.instances)
	if e.envErr == nil {
		e.envErr = ErrContextClosed
	}
	e.mu.Unlock()

	for _, inst := range insts {
		for _, n := range inst.nodes {
			if s, ok := n.(stopper); ok {
				s.Stop()
			}
			n.Disconnect()
		}
	}
	e.observer.ActiveStreams(0)

	if c == nil {
		return nil
	}
	e.log.Info("audio context closed")
	return c.Close()
}

func (e *SoundEngine) playingCountLocked() int {
	n := 0
	for _, inst := range e.instances {
		if inst.state == streamPlaying {
			n++
		}
	}
	return n
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
