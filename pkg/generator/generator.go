// Package generator provides cover media generation for steganography.
//
// Every carrier it writes is lossless: images are PNG or 24-bit BMP and
// audio is 16-bit PCM WAV, so each pixel channel or sample is a usable
// embedding slot.
package generator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Pattern selects how a cover is filled.
type Pattern string

const (
	PatternSolid    Pattern = "solid"
	PatternNoise    Pattern = "noise"
	PatternGradient Pattern = "gradient"
)

// Config holds parameters for cover generation.
type Config struct {
	Width    int     // Pixel width, images only (default: 1280)
	Height   int     // Pixel height, images only (default: 720)
	Color    string  // Hex "#rrggbb" or "random", solid images only
	Pattern  Pattern // Fill pattern (default: noise)
	Seed     uint64  // Noise seed; equal seeds give identical covers
	Duration float64 // Seconds, audio only (default: 1)
	Rate     int     // Sample rate in Hz, audio only (default: 44100)
	Channels int     // Audio channels (default: 1)
	Tone     float64 // Sine frequency in Hz for solid audio (default: 440)
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.Pattern == "" {
		c.Pattern = PatternNoise
	}
	if c.Duration <= 0 {
		c.Duration = 1
	}
	if c.Rate <= 0 {
		c.Rate = 44100
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.Tone <= 0 {
		c.Tone = 440
	}
	return c
}

// Generate creates a cover file. The format is inferred from the file extension:
//   - ".png" → PNG image
//   - ".bmp" → 24-bit BMP image
//   - ".wav" → 16-bit PCM WAV
func Generate(output string, cfg Config) error {
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	defer f.Close()

	if err := GenerateToWriter(f, filepath.Ext(output), cfg); err != nil {
		return err
	}
	return f.Sync()
}

// GenerateToWriter writes a cover to w. The format is specified by ext
// (".png", ".bmp" or ".wav"). This is useful for in-memory generation.
func GenerateToWriter(w io.Writer, ext string, cfg Config) error {
	cfg = cfg.withDefaults()

	switch ext := strings.ToLower(ext); ext {
	case ".png", ".bmp":
		img, err := resolveImage(cfg)
		if err != nil {
			return err
		}
		if ext == ".png" {
			return writePNG(w, img)
		}
		return writeBMP(w, img)
	case ".wav":
		pcm, err := resolveAudio(cfg)
		if err != nil {
			return err
		}
		return writeWAV(w, pcm)
	default:
		return fmt.Errorf("unsupported format %q: use .png, .bmp or .wav", ext)
	}
}

// CapacityBits returns the number of embedding slots a cover generated
// with cfg and extension ext will provide.
func CapacityBits(ext string, cfg Config) (int, error) {
	cfg = cfg.withDefaults()
	switch strings.ToLower(ext) {
	case ".png", ".bmp":
		return cfg.Width * cfg.Height * 3, nil
	case ".wav":
		return audioFrames(cfg) * cfg.Channels, nil
	default:
		return 0, fmt.Errorf("unsupported format %q: use .png, .bmp or .wav", ext)
	}
}
