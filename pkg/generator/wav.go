// wav.go — 16-bit PCM audio covers.
package generator

import (
	"fmt"
	"io"
	"math"
	mrand "math/rand/v2"

	"github.com/xob0t/GoStego/pkg/wav"
)

// amplitude keeps generated audio well clear of clipping.
const amplitude = 0.4 * math.MaxInt16

func audioFrames(cfg Config) int {
	return int(cfg.Duration * float64(cfg.Rate))
}

// resolveAudio builds the cover audio described by cfg. Solid and
// gradient patterns produce a sine tone (gradient sweeps it up an
// octave); noise produces seeded white noise.
func resolveAudio(cfg Config) (*wav.PCM, error) {
	frames := audioFrames(cfg)
	p := &wav.PCM{SampleRate: cfg.Rate, Channels: cfg.Channels, Samples: make([]int16, frames*cfg.Channels)}

	switch cfg.Pattern {
	case PatternNoise:
		rng := mrand.New(mrand.NewPCG(cfg.Seed, ^cfg.Seed))
		for i := range p.Samples {
			p.Samples[i] = int16((rng.Float64()*2 - 1) * amplitude)
		}
	case PatternSolid, PatternGradient:
		phase := 0.0
		for f := 0; f < frames; f++ {
			freq := cfg.Tone
			if cfg.Pattern == PatternGradient && frames > 1 {
				freq *= 1 + float64(f)/float64(frames-1)
			}
			phase += 2 * math.Pi * freq / float64(cfg.Rate)
			v := int16(math.Sin(phase) * amplitude)
			for c := 0; c < cfg.Channels; c++ {
				p.Samples[f*cfg.Channels+c] = v
			}
		}
	default:
		return nil, fmt.Errorf("unknown pattern %q", cfg.Pattern)
	}
	return p, nil
}

// writeWAV encodes p as a PCM WAV file.
func writeWAV(w io.Writer, p *wav.PCM) error {
	if _, err := w.Write(wav.Encode(p)); err != nil {
		return fmt.Errorf("write WAV: %w", err)
	}
	return nil
}
