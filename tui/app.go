// Package tui is the interactive terminal mixer
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/soundscape/constant"
	"github.com/lixenwraith/soundscape/mixer"
	"github.com/lixenwraith/soundscape/theme"
)

const (
	refreshInterval = 250 * time.Millisecond
	volumeBarWidth  = 20
	nameWidth       = 10
	listTop         = 2
)

var (
	styleTitle    = tcell.StyleDefault.Bold(true)
	stylePlaying  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	stylePaused   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleSelected = tcell.StyleDefault.Reverse(true)
	styleBar      = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleDim      = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleError    = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

// App renders the mix and maps keys to controller operations
type App struct {
	screen  tcell.Screen
	ctrl    *mixer.Controller
	themes  []theme.Theme
	status  func() error
	presets []time.Duration

	selected int
	timerIdx int
}

// Option configures an App
type Option func(*App)

// WithStatus shows a non-nil error from fn on the status line
func WithStatus(fn func() error) Option {
	return func(a *App) { a.status = fn }
}

// New creates an app on an initialized screen
func New(screen tcell.Screen, ctrl *mixer.Controller, catalog *theme.Catalog, opts ...Option) *App {
	a := &App{
		screen:  screen,
		ctrl:    ctrl,
		themes:  catalog.Themes(),
		presets: constant.SleepTimerPresets,
	}
	for _, opt := range opts {
		opt(a)
	}

	focus := ctrl.Snapshot().Focus
	for i, t := range a.themes {
		if t.ID == focus {
			a.selected = i
		}
	}
	return a
}

// Selected returns the highlighted theme ID
func (a *App) Selected() string {
	return a.themes[a.selected].ID
}

// Run processes events until quit or ctx is done
func (a *App) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 100)
	quit := make(chan struct{})
	defer close(quit)
	go a.screen.ChannelEvents(events, quit)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	a.Draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !a.HandleEvent(ev) {
				return nil
			}
			a.Draw()

		case <-ticker.C:
			// Sleep timer countdown and external state changes
			a.Draw()
		}
	}
}

// HandleEvent applies one event; returns false to quit
func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return a.handleKey(ev)
	case *tcell.EventResize:
		a.screen.Sync()
	}
	return true
}

func (a *App) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		a.move(-1)
	case tcell.KeyDown:
		a.move(1)
	case tcell.KeyLeft:
		a.ctrl.AdjustVolume(a.Selected(), -constant.VolumeStep)
	case tcell.KeyRight:
		a.ctrl.AdjustVolume(a.Selected(), constant.VolumeStep)
	case tcell.KeyEnter:
		a.ctrl.Toggle(a.Selected())
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case ' ':
			a.ctrl.Toggle(a.Selected())
		case 'p':
			a.ctrl.TogglePlayback()
		case '+', '=':
			a.ctrl.AdjustMasterVolume(constant.VolumeStep)
		case '-', '_':
			a.ctrl.AdjustMasterVolume(-constant.VolumeStep)
		case 't':
			a.cycleTimer()
		case 'k':
			a.move(-1)
		case 'j':
			a.move(1)
		}
	}
	return true
}

func (a *App) move(delta int) {
	n := len(a.themes)
	a.selected = (a.selected + delta + n) % n
	a.ctrl.Focus(a.Selected())
}

// cycleTimer steps through the presets; an expired timer restarts the cycle
func (a *App) cycleTimer() {
	if _, set := a.ctrl.Remaining(); !set {
		a.timerIdx = 0
	}
	a.timerIdx = (a.timerIdx + 1) % len(a.presets)
	a.ctrl.SetTimer(a.presets[a.timerIdx])
}

// Draw renders the full screen
func (a *App) Draw() {
	a.screen.Clear()
	snap := a.ctrl.Snapshot()
	w, h := a.screen.Size()

	a.drawHeader(snap, w)

	for i, t := range a.themes {
		y := listTop + i
		if y >= h-2 {
			break
		}
		s, ok := snap.Mix[t.ID]
		if !ok {
			s.Volume = constant.DefaultStreamVolume
		}
		a.drawTheme(y, t, s, i == a.selected, snap.Playing)
	}

	if a.status != nil {
		if err := a.status(); err != nil {
			drawText(a.screen, 0, h-2, styleError, fmt.Sprintf("audio: %v", err))
		}
	}
	drawText(a.screen, 0, h-1, styleDim,
		"↑↓ select  space toggle  ←→ volume  p play/pause  +/- master  t timer  q quit")

	a.screen.Show()
}

func (a *App) drawHeader(snap mixer.State, w int) {
	x := drawText(a.screen, 0, 0, styleTitle, "Soundscape")

	state, style := "PAUSED", stylePaused
	if snap.Playing {
		state, style = "PLAYING", stylePlaying
	}
	x = drawText(a.screen, x+2, 0, style, state)

	x = drawText(a.screen, x+2, 0, tcell.StyleDefault,
		fmt.Sprintf("master %3d%%", percent(snap.MasterVolume)))

	timer := "timer off"
	if snap.TimerSet {
		timer = "timer " + formatRemaining(snap.TimerRemaining)
	}
	if x+2+len(timer) <= w {
		drawText(a.screen, x+2, 0, tcell.StyleDefault, timer)
	}
}

func (a *App) drawTheme(y int, t theme.Theme, s mixer.SoundState, selected, playing bool) {
	vol := s.Volume
	check, style := "[ ]", tcell.StyleDefault
	if s.IsPlaying {
		check = "[x]"
		if playing {
			style = stylePlaying
		}
	}
	if selected {
		style = styleSelected
	}

	line := fmt.Sprintf(" %s %-*s %-5s ", check, nameWidth, t.Name, t.Noise)
	x := drawText(a.screen, 0, y, style, line)

	filled := int(vol*volumeBarWidth + 0.5)
	x = drawText(a.screen, x, y, styleBar, strings.Repeat("█", filled))
	x = drawText(a.screen, x, y, styleDim, strings.Repeat("░", volumeBarWidth-filled))
	drawText(a.screen, x+1, y, tcell.StyleDefault, fmt.Sprintf("%3d%%", percent(vol)))
}

// drawText writes s at (x, y) and returns the column after it
func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) int {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

func percent(v float64) int {
	return int(v*100 + 0.5)
}

func formatRemaining(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d / time.Minute)
	sec := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%02d:%02d", m, sec)
}
