// Package spectrum measures the octave-band profile of mono signals
package spectrum

import (
	"errors"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/spectral"
	"github.com/mjibson/go-dsp/window"
)

// Welch estimator settings
const (
	NFFT     = 4096
	Noverlap = NFFT / 2
)

var (
	ErrTooShort   = errors.New("signal shorter than one analysis segment")
	ErrBandRange  = errors.New("band range exceeds nyquist")
	ErrFlatSignal = errors.New("band has no energy")
)

// Band is the power of one octave [Low, High)
type Band struct {
	Low     float64
	High    float64
	Energy  float64 // Integrated power
	Density float64 // Mean power per Hz
}

// DensityDB returns the mean density in decibels
func (b Band) DensityDB() float64 {
	return 10 * math.Log10(b.Density)
}

// EnergyDB returns the integrated power in decibels
func (b Band) EnergyDB() float64 {
	return 10 * math.Log10(b.Energy)
}

// Welch returns the one-sided power spectral density of samples in units of
// power per Hz, with the matching bin frequencies
func Welch(samples []float64, rate float64) (psd, freqs []float64, err error) {
	if len(samples) < NFFT {
		return nil, nil, fmt.Errorf("%w: %d < %d", ErrTooShort, len(samples), NFFT)
	}
	psd, freqs = spectral.Pwelch(samples, rate, &spectral.PwelchOptions{
		NFFT:     NFFT,
		Noverlap: Noverlap,
		Window:   window.Hann,
	})
	return psd, freqs, nil
}

// OctaveBands splits the spectrum of samples into count octaves starting at
// lowest Hz
func OctaveBands(samples []float64, rate, lowest float64, count int) ([]Band, error) {
	if lowest <= 0 || count <= 0 {
		return nil, fmt.Errorf("invalid band layout: lowest=%v count=%d", lowest, count)
	}
	top := lowest * math.Exp2(float64(count))
	if top > rate/2 {
		return nil, fmt.Errorf("%w: %.0f Hz > %.0f Hz", ErrBandRange, top, rate/2)
	}

	psd, freqs, err := Welch(samples, rate)
	if err != nil {
		return nil, err
	}
	df := freqs[1] - freqs[0]

	bands := make([]Band, count)
	for i := range bands {
		lo := lowest * math.Exp2(float64(i))
		hi := lo * 2
		var energy float64
		for k, f := range freqs {
			if f >= lo && f < hi {
				energy += psd[k] * df
			}
		}
		if energy <= 0 {
			return nil, fmt.Errorf("%w: %.0f-%.0f Hz", ErrFlatSignal, lo, hi)
		}
		bands[i] = Band{Low: lo, High: hi, Energy: energy, Density: energy / (hi - lo)}
	}
	return bands, nil
}

// Slope returns the least-squares density slope across bands in dB per octave
// White noise is near 0, pink near -3 and brown near -6
func Slope(bands []Band) float64 {
	return fitDB(bands, Band.DensityDB)
}

// EnergySlope returns the least-squares energy slope in dB per octave
// White noise is near +3, pink near 0 and brown near -3
func EnergySlope(bands []Band) float64 {
	return fitDB(bands, Band.EnergyDB)
}

// fitDB regresses level(band) on octave index
func fitDB(bands []Band, level func(Band) float64) float64 {
	n := float64(len(bands))
	if n < 2 {
		return 0
	}

	var sx, sy, sxx, sxy float64
	for i, b := range bands {
		x := float64(i)
		y := level(b)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	return (n*sxy - sx*sy) / (n*sxx - sx*sx)
}

// Monotonic reports whether band energy strictly decreases with frequency
func Monotonic(bands []Band) bool {
	for i := 1; i < len(bands); i++ {
		if bands[i].Energy >= bands[i-1].Energy {
			return false
		}
	}
	return true
}

// Spread returns the difference in dB between the loudest and quietest band
func Spread(bands []Band) float64 {
	if len(bands) == 0 {
		return 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range bands {
		db := b.EnergyDB()
		lo = math.Min(lo, db)
		hi = math.Max(hi, db)
	}
	return hi - lo
}
