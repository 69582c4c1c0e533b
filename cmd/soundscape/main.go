package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gopxl/beep"

	"github.com/lixenwraith/soundscape/audio"
	"github.com/lixenwraith/soundscape/config"
	"github.com/lixenwraith/soundscape/constant"
	"github.com/lixenwraith/soundscape/metrics"
	"github.com/lixenwraith/soundscape/mixer"
	"github.com/lixenwraith/soundscape/service"
	"github.com/lixenwraith/soundscape/spectrum"
	"github.com/lixenwraith/soundscape/theme"
	"github.com/lixenwraith/soundscape/tui"
)

const defaultRenderDuration = 30 * time.Second

var (
	configFlag   = flag.String("config", "", "Path to YAML configuration")
	debugFlag    = flag.Bool("debug", false, "Write debug logs to logs/soundscape.log")
	outputFlag   = flag.String("output", "", "Audio output: auto, speaker, pipe, stdout, offline")
	renderFlag   = flag.String("render", "", "Render the -play themes to a WAV file and exit")
	durationFlag = flag.Duration("duration", 0, "Length of -render (default 30s), or of headless -play")
	playFlag     = flag.String("play", "", "Comma-separated theme IDs; without -render plays headless")
	analyzeFlag  = flag.Bool("analyze", false, "Print the octave band profile of each noise color and exit")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "soundscape: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logFile := setupLogging(*debugFlag)
	if logFile != nil {
		defer logFile.Close()
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if *outputFlag != "" {
		cfg.Audio.Output = *outputFlag
		if err := cfg.Audio.Validate(); err != nil {
			return err
		}
	}

	var logger *slog.Logger
	if logFile != nil {
		logger = debugLogger(logFile)
	} else {
		l, closer, err := cfg.Logging.NewLogger()
		if err != nil {
			return err
		}
		defer closer.Close()
		logger = l
	}

	if *analyzeFlag {
		return runAnalyze(os.Stdout, cfg.Audio.SampleRate)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	ids, err := parseThemes(*playFlag, catalog)
	if err != nil {
		return err
	}

	if *renderFlag != "" {
		d := *durationFlag
		if d == 0 {
			d = defaultRenderDuration
		}
		if len(ids) == 0 {
			ids = catalog.IDs()[:1]
		}
		return runRender(cfg, catalog, ids, *renderFlag, d, logger)
	}

	app, err := newApp(cfg, catalog, logger, len(ids) == 0)
	if err != nil {
		return err
	}
	defer app.stop(logger)

	if len(ids) > 0 {
		return runHeadless(app.prefs.Controller(), cfg, ids, *durationFlag, logger)
	}
	return runTUI(app, catalog)
}

// parseThemes splits a comma list and checks every ID against the catalog
func parseThemes(list string, catalog *theme.Catalog) ([]string, error) {
	var ids []string
	for _, id := range strings.Split(list, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := catalog.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: %s", audio.ErrUnknownTheme, id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// app is the running service graph
type app struct {
	hub   *service.Hub
	audio *audio.AudioService
	prefs *mixer.Service
}

// newApp wires audio, metrics and prefs through the hub
// persist controls whether preferences are loaded and saved
func newApp(cfg *config.Config, catalog *theme.Catalog, logger *slog.Logger, persist bool) (*app, error) {
	m := metrics.New()
	audioSvc := audio.NewService(
		audio.WithObserver(m),
		audio.WithChainPolicy(cfg.ChainPolicy(catalog)),
	)
	prefsSvc := mixer.NewService(audioSvc, catalog)

	hub := service.NewHub()
	for _, svc := range []service.Service{audioSvc, metrics.NewService(m), prefsSvc} {
		if err := hub.Register(svc); err != nil {
			return nil, err
		}
	}

	args := []any{&cfg.Audio, &cfg.Metrics, logger}
	if persist && !cfg.Prefs.Disabled {
		args = append(args, mixer.NewFileStore(cfg.Prefs.Path))
	}
	if err := hub.InitAll(args...); err != nil {
		return nil, err
	}
	if err := hub.StartAll(); err != nil {
		_ = hub.StopAll()
		return nil, err
	}

	logger.Info("services started", slog.Any("order", hub.Order()))
	return &app{hub: hub, audio: audioSvc, prefs: prefsSvc}, nil
}

func (a *app) stop(logger *slog.Logger) {
	if err := a.hub.StopAll(); err != nil {
		logger.Warn("shutdown", slog.String("error", err.Error()))
	}
}

// runTUI runs the interactive mixer until quit
func runTUI(a *app, catalog *theme.Catalog) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}

	// Restore the terminal even if the UI panics
	defer func() {
		r := recover()
		screen.Fini()
		if r != nil {
			fmt.Fprintf(os.Stderr, "\n\x1b[31mSOUNDSCAPE CRASHED: %v\x1b[0m\n", r)
			fmt.Fprintf(os.Stderr, "Stack Trace:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine := a.audio.Engine()
	ui := tui.New(screen, a.prefs.Controller(), catalog, tui.WithStatus(engine.Err))
	if err := ui.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runHeadless plays ids at their configured volumes until a signal, or for d
// when positive
func runHeadless(ctrl *mixer.Controller, cfg *config.Config, ids []string, d time.Duration, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	ctrl.SetMasterVolume(cfg.Audio.MasterVolume)
	for _, id := range ids {
		ctrl.SetVolume(id, cfg.Audio.Volume(id))
	}
	ctrl.TogglePlayback()
	logger.Info("headless playback", slog.Any("themes", ids), slog.Duration("duration", d))

	<-ctx.Done()
	ctrl.TogglePlayback()
	// Let the fade-out finish before the engine closes
	time.Sleep(2 * constant.StopTeardownDelay)
	return nil
}

// runRender mixes ids offline into a WAV file
func runRender(cfg *config.Config, catalog *theme.Catalog, ids []string, path string, d time.Duration, logger *slog.Logger) error {
	rate := beep.SampleRate(cfg.Audio.SampleRate)
	engine := audio.NewSoundEngine(func() (*audio.Context, error) {
		return audio.NewContext(rate, &audio.OfflineOutput{})
	},
		audio.WithLogger(logger),
		audio.WithMasterVolume(cfg.Audio.MasterVolume),
		audio.WithChainPolicy(cfg.ChainPolicy(catalog)),
	)
	defer engine.Close()

	for _, id := range ids {
		t, _ := catalog.Lookup(id)
		engine.Play(id, t.Noise, cfg.Audio.Volume(id))
	}
	if err := engine.Err(); err != nil {
		return err
	}
	if err := <-engine.ResumeContext(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := audio.RenderWAV(f, engine.Context(), rate, d); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("rendered %s of %s to %s\n", d, strings.Join(ids, ","), path)
	return nil
}

// runAnalyze prints the octave band density of each noise color
func runAnalyze(w io.Writer, rate int) error {
	const lowest = 125.0

	// Octaves from lowest up to Nyquist, at most 8
	bands := 0
	for hi := lowest * 2; hi <= float64(rate)/2 && bands < 8; hi *= 2 {
		bands++
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "noise\t")
	for i := 0; i < bands; i++ {
		fmt.Fprintf(tw, "%.0fHz\t", lowest*float64(int(1)<<i))
	}
	fmt.Fprint(tw, "slope dB/oct\t\n")

	for _, kind := range []audio.NoiseKind{audio.NoiseWhite, audio.NoisePink, audio.NoiseBrown} {
		buf, err := audio.SynthesizeNoise(kind, beep.SampleRate(rate))
		if err != nil {
			return err
		}
		profile, err := spectrum.OctaveBands(buf.Samples(), float64(rate), lowest, bands)
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}

		fmt.Fprintf(tw, "%s\t", kind)
		for _, b := range profile {
			fmt.Fprintf(tw, "%.1f\t", b.DensityDB())
		}
		fmt.Fprintf(tw, "%+.2f\t\n", spectrum.Slope(profile))
	}
	return tw.Flush()
}
