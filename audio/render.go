package audio

import (
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// wavPrecision is 16-bit PCM
const wavPrecision = 2

// RenderWAV encodes d of s into w as 16-bit stereo WAV at rate
func RenderWAV(w io.WriteSeeker, s beep.Streamer, rate beep.SampleRate, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("render duration must be positive, got %s", d)
	}

	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: wavPrecision}
	if err := wav.Encode(w, beep.Take(rate.N(d), s), format); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}
