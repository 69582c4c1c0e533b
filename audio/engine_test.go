package audio

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gopxl/beep"
)

const testRate = beep.SampleRate(22050)

// countingOutput records Start calls, optionally failing them
type countingOutput struct {
	starts atomic.Int32
	closes atomic.Int32
	delay  time.Duration

	mu       sync.Mutex
	err      error
	streamer beep.Streamer
}

func (o *countingOutput) fail(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

func (o *countingOutput) Name() string { return "counting" }

func (o *countingOutput) Start(s beep.Streamer) error {
	o.starts.Add(1)
	time.Sleep(o.delay)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.streamer = s
	return nil
}

func (o *countingOutput) Close() error {
	o.closes.Add(1)
	return nil
}

// recordingObserver counts lifecycle events
type recordingObserver struct {
	nopObserver
	mu         sync.Mutex
	started    []string
	stopped    []string
	superseded []string
	active     int
}

func (r *recordingObserver) StreamStarted(id string, _ NoiseKind) {
	r.mu.Lock()
	r.started = append(r.started, id)
	r.mu.Unlock()
}

func (r *recordingObserver) StreamStopped(id string) {
	r.mu.Lock()
	r.stopped = append(r.stopped, id)
	r.mu.Unlock()
}

func (r *recordingObserver) StreamSuperseded(id string) {
	r.mu.Lock()
	r.superseded = append(r.superseded, id)
	r.mu.Unlock()
}

func (r *recordingObserver) ActiveStreams(n int) {
	r.mu.Lock()
	r.active = n
	r.mu.Unlock()
}

func newTestEngine(t *testing.T, opts ...EngineOption) (*SoundEngine, *ManualClock, *countingOutput) {
	t.Helper()
	out := &countingOutput{}
	clock := NewManualClock(time.Unix(0, 0))
	factory := func() (*Context, error) { return NewContext(testRate, out) }
	e := NewSoundEngine(factory, append([]EngineOption{WithClock(clock)}, opts...)...)
	return e, clock, out
}

// baseNodes is destination plus master gain
const baseNodes = 2

// TestPlayIdempotent verifies repeated Play keeps one instance
func TestPlayIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Play("rain", NoiseWhite, 0.5)
	first, ok := e.Snapshot("rain")
	if !ok {
		t.Fatal("Expected rain instance after Play")
	}
	count := e.Context().NodeCount()

	e.Play("rain", NoiseWhite, 0.5)
	second, _ := e.Snapshot("rain")

	if first.Generation != second.Generation {
		t.Errorf("Expected same generation, got %d then %d", first.Generation, second.Generation)
	}
	if got := e.Context().NodeCount(); got != count {
		t.Errorf("Expected node count %d after repeated Play, got %d", count, got)
	}
	if got := e.Playing(); len(got) != 1 || got[0] != "rain" {
		t.Errorf("Expected [rain] playing, got %v", got)
	}
}

// TestPlayDegradesToSetVolume verifies a second Play only retargets volume
func TestPlayDegradesToSetVolume(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Play("rain", NoiseWhite, 0.5)
	e.Play("rain", NoiseWhite, 0.8)

	inst := e.instances["rain"]
	if got := inst.volume.Gain().Target(); got != 0.8 {
		t.Errorf("Expected gain target 0.8, got %f", got)
	}
	info, _ := e.Snapshot("rain")
	if info.Volume != 0.8 {
		t.Errorf("Expected snapshot volume 0.8, got %f", info.Volume)
	}
}

// TestSetVolumeRamps verifies volume changes go through the gain automation
func TestSetVolumeRamps(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Play("wind", NoisePink, 0.5)
	e.SetVolume("wind", 0.2)

	gain := e.instances["wind"].volume.Gain()
	if got := gain.Target(); got != 0.2 {
		t.Errorf("Expected gain target 0.2, got %f", got)
	}
	if !gain.Ramping() {
		t.Error("Expected gain to be ramping")
	}
	if got := gain.Value(); got != 0.5 {
		t.Errorf("Expected current gain still 0.5 before rendering, got %f", got)
	}

	// Clamped into [0, 1]
	e.SetVolume("wind", 3)
	if got := gain.Target(); got != 1 {
		t.Errorf("Expected clamped target 1, got %f", got)
	}

	// Absent theme is a no-op
	e.SetVolume("missing", 0.3)
	if _, ok := e.Snapshot("missing"); ok {
		t.Error("Expected SetVolume not to create an instance")
	}
}

// TestStopTeardown verifies fade then removal after the teardown delay
func TestStopTeardown(t *testing.T) {
	obs := &recordingObserver{}
	e, clock, _ := newTestEngine(t, WithObserver(obs))

	e.Play("rain", NoiseWhite, 0.5)
	e.Stop("rain")

	if e.IsPlaying("rain") {
		t.Error("Expected rain not playing while stopping")
	}
	info, ok := e.Snapshot("rain")
	if !ok || !info.Stopping {
		t.Fatalf("Expected stopping instance, got %+v ok=%v", info, ok)
	}
	if got := e.instances["rain"].volume.Gain().Target(); got != 0 {
		t.Errorf("Expected fade target 0, got %f", got)
	}

	// Second Stop is a no-op
	e.Stop("rain")
	if clock.Pending() != 1 {
		t.Errorf("Expected 1 pending teardown, got %d", clock.Pending())
	}

	clock.Advance(199 * time.Millisecond)
	if _, ok := e.Snapshot("rain"); !ok {
		t.Fatal("Expected instance before teardown delay elapsed")
	}

	clock.Advance(time.Millisecond)
	if _, ok := e.Snapshot("rain"); ok {
		t.Error("Expected instance removed after teardown")
	}
	if got := e.Context().NodeCount(); got != baseNodes {
		t.Errorf("Expected %d nodes after teardown, got %d", baseNodes, got)
	}
	if len(obs.stopped) != 1 {
		t.Errorf("Expected 1 stopped event, got %d", len(obs.stopped))
	}
}

// TestStopPlayMuteSafety verifies a Play during fade-out survives the old
// teardown and leaks no nodes
func TestStopPlayMuteSafety(t *testing.T) {
	obs := &recordingObserver{}
	e, clock, _ := newTestEngine(t, WithObserver(obs))

	e.Play("rain", NoiseWhite, 0.5)
	single := e.Context().NodeCount()
	old, _ := e.Snapshot("rain")

	e.Stop("rain")
	e.Play("rain", NoiseWhite, 0.7)

	cur, ok := e.Snapshot("rain")
	if !ok || cur.Generation == old.Generation {
		t.Fatalf("Expected fresh instance, got %+v", cur)
	}
	if !e.IsPlaying("rain") {
		t.Error("Expected rain playing after re-Play")
	}
	if len(obs.superseded) != 1 {
		t.Errorf("Expected 1 superseded event, got %d", len(obs.superseded))
	}

	clock.Advance(time.Second)

	cur2, ok := e.Snapshot("rain")
	if !ok || cur2.Generation != cur.Generation {
		t.Fatalf("Expected new instance to survive old teardown, got %+v ok=%v", cur2, ok)
	}
	if !e.IsPlaying("rain") {
		t.Error("Expected rain still playing after old teardown")
	}
	if got := e.Context().NodeCount(); got != single {
		t.Errorf("Expected %d nodes after teardown, got %d", single, got)
	}

	// Repeated cycles do not accumulate nodes
	for i := 0; i < 5; i++ {
		e.Stop("rain")
		e.Play("rain", NoiseWhite, 0.5)
		clock.Advance(time.Second)
	}
	if got := e.Context().NodeCount(); got != single {
		t.Errorf("Expected %d nodes after cycles, got %d", single, got)
	}
}

// TestChainShapes verifies per-theme effect topology
func TestChainShapes(t *testing.T) {
	testCases := []struct {
		theme string
		kind  NoiseKind
		chain ChainKind
		nodes int
	}{
		{"rain", NoiseWhite, ChainPassThrough, 2},
		{"forest", NoisePink, ChainLowPass, 3},
		{"fire", NoiseBrown, ChainHighPass, 3},
		{"ocean", NoiseBrown, ChainTremolo, 5},
		{"unknown", NoisePink, ChainPassThrough, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.theme, func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			e.Play(tc.theme, tc.kind, 0.5)

			info, ok := e.Snapshot(tc.theme)
			if !ok {
				t.Fatal("Expected instance")
			}
			if info.Chain != tc.chain {
				t.Errorf("Expected chain %s, got %s", tc.chain, info.Chain)
			}
			if info.Nodes != tc.nodes {
				t.Errorf("Expected %d nodes, got %d", tc.nodes, info.Nodes)
			}
			if got := e.Context().NodeCount(); got != baseNodes+tc.nodes {
				t.Errorf("Expected %d reachable nodes, got %d", baseNodes+tc.nodes, got)
			}
		})
	}
}

// TestForestFilter verifies the low-pass stage sits before volume
func TestForestFilter(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Play("forest", NoisePink, 0.5)

	inst := e.instances["forest"]
	filter, ok := inst.nodes[2].(*BiquadFilterNode)
	if !ok {
		t.Fatalf("Expected biquad filter, got %T", inst.nodes[2])
	}
	if filter.Type() != FilterLowPass {
		t.Errorf("Expected low-pass, got %s", filter.Type())
	}
	if got := filter.Frequency().Value(); got != 600 {
		t.Errorf("Expected cutoff 600, got %f", got)
	}
	if len(inst.volume.inputs) != 1 || inst.volume.inputs[0] != filter.nodeCore {
		t.Error("Expected filter to feed the volume stage")
	}
}

// TestOceanModulation verifies the LFO drives the post-volume carrier
func TestOceanModulation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Play("ocean", NoiseBrown, 0.5)

	inst := e.instances["ocean"]
	lfo := inst.nodes[2].(*OscillatorNode)
	depth := inst.nodes[3].(*GainNode)
	carrier := inst.nodes[4].(*GainNode)

	if got := lfo.Frequency(); got != 0.15 {
		t.Errorf("Expected LFO 0.15 Hz, got %f", got)
	}
	if got := depth.Gain().Value(); got != 0.5 {
		t.Errorf("Expected depth 0.5, got %f", got)
	}
	if got := carrier.Gain().Value(); got != 1 {
		t.Errorf("Expected unity carrier, got %f", got)
	}
	if len(carrier.inputs) != 1 || carrier.inputs[0] != inst.volume.nodeCore {
		t.Error("Expected volume to feed the carrier")
	}
	if len(carrier.Gain().inputs) != 1 || carrier.Gain().inputs[0] != depth.nodeCore {
		t.Error("Expected depth gain to modulate the carrier gain")
	}
}

// TestStopAll verifies every stream fades and is removed
func TestStopAll(t *testing.T) {
	obs := &recordingObserver{}
	e, clock, _ := newTestEngine(t, WithObserver(obs))

	for _, id := range []string{"rain", "forest", "ocean"} {
		e.Play(id, NoisePink, 0.5)
	}
	e.StopAll()

	if got := e.Playing(); len(got) != 0 {
		t.Errorf("Expected nothing playing, got %v", got)
	}
	if obs.active != 0 {
		t.Errorf("Expected 0 active streams reported, got %d", obs.active)
	}

	clock.Advance(250 * time.Millisecond)
	if len(e.instances) != 0 {
		t.Errorf("Expected empty arena, got %d instances", len(e.instances))
	}
	if got := e.Context().NodeCount(); got != baseNodes {
		t.Errorf("Expected %d nodes, got %d", baseNodes, got)
	}
}

// TestMasterVolume verifies the master ramp and the pre-context level
func TestMasterVolume(t *testing.T) {
	e, _, _ := newTestEngine(t, WithMasterVolume(0.6))

	e.SetMasterVolume(0.7)
	if e.Master() != nil {
		t.Fatal("Expected no master before first Play")
	}

	e.Play("rain", NoiseWhite, 0.5)
	if got := e.Master().Gain().Value(); got != 0.7 {
		t.Errorf("Expected initial master 0.7, got %f", got)
	}
	if e.Master().Gain().Ramping() {
		t.Error("Expected no ramp on context creation")
	}

	e.SetMasterVolume(0.3)
	if got := e.Master().Gain().Target(); got != 0.3 {
		t.Errorf("Expected master target 0.3, got %f", got)
	}
}

// TestEnvironmentUnavailable verifies a failed factory is tried once and
// every call degrades to a no-op
func TestEnvironmentUnavailable(t *testing.T) {
	calls := 0
	factory := func() (*Context, error) {
		calls++
		return nil, ErrEnvironmentUnavailable
	}
	e := NewSoundEngine(factory)

	e.Play("rain", NoiseWhite, 0.5)
	e.Play("forest", NoisePink, 0.5)
	e.SetVolume("rain", 0.1)
	e.SetMasterVolume(0.1)
	e.Stop("rain")
	e.StopAll()

	if calls != 1 {
		t.Errorf("Expected factory called once, got %d", calls)
	}
	if !errors.Is(e.Err(), ErrEnvironmentUnavailable) {
		t.Errorf("Expected ErrEnvironmentUnavailable, got %v", e.Err())
	}
	if e.IsPlaying("rain") || len(e.Playing()) != 0 {
		t.Error("Expected nothing playing")
	}
	if err := <-e.ResumeContext(); err != nil {
		t.Errorf("Expected nil resume without context, got %v", err)
	}
}

// TestConcurrentResume verifies overlapping resumes start the output once
func TestConcurrentResume(t *testing.T) {
	e, _, out := newTestEngine(t)
	out.delay = 20 * time.Millisecond

	e.Play("rain", NoiseWhite, 0.5)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- <-e.ResumeContext()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Expected resume success, got %v", err)
		}
	}
	if got := out.starts.Load(); got != 1 {
		t.Errorf("Expected 1 output start, got %d", got)
	}
	if got := e.Context().State(); got != StateRunning {
		t.Errorf("Expected running, got %s", got)
	}
}

// TestResumeFailureRetry verifies a failed start leaves the context
// suspended and can be reissued
func TestResumeFailureRetry(t *testing.T) {
	e, _, out := newTestEngine(t)
	out.fail(errors.New("device busy"))

	e.Play("rain", NoiseWhite, 0.5)
	if err := <-e.ResumeContext(); err == nil {
		t.Fatal("Expected resume error")
	}
	if got := e.Context().State(); got != StateSuspended {
		t.Errorf("Expected suspended after failure, got %s", got)
	}
	if !e.IsPlaying("rain") {
		t.Error("Expected stream registered while suspended")
	}

	out.fail(nil)
	if err := <-e.ResumeContext(); err != nil {
		t.Fatalf("Expected retry success, got %v", err)
	}
	if got := e.Context().State(); got != StateRunning {
		t.Errorf("Expected running, got %s", got)
	}
}

// TestRenderAudible verifies a running context produces signal
func TestRenderAudible(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Play("rain", NoiseWhite, 1.0)
	if err := <-e.ResumeContext(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	buf := make([][2]float64, 1024)
	n, ok := e.Context().Stream(buf)
	if n != len(buf) || !ok {
		t.Fatalf("Expected full render, got n=%d ok=%v", n, ok)
	}

	var energy float64
	for _, f := range buf {
		if f[0] != f[1] {
			t.Fatal("Expected identical channels")
		}
		energy += f[0] * f[0]
	}
	if energy == 0 {
		t.Error("Expected non-silent output")
	}
}

// TestClose verifies Close releases the output and disables the engine
func TestClose(t *testing.T) {
	e, clock, out := newTestEngine(t)
	e.Play("rain", NoiseWhite, 0.5)
	e.Stop("rain")

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if out.closes.Load() != 1 {
		t.Errorf("Expected output closed once, got %d", out.closes.Load())
	}
	if clock.Pending() != 0 {
		t.Errorf("Expected teardown timers cancelled, got %d", clock.Pending())
	}

	e.Play("forest", NoisePink, 0.5)
	if e.IsPlaying("forest") {
		t.Error("Expected Play after Close to be a no-op")
	}
	if !errors.Is(e.Err(), ErrContextClosed) {
		t.Errorf("Expected ErrContextClosed, got %v", e.Err())
	}
}
