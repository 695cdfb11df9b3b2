// color.go — Unified color parsing and image covers.
package generator

import (
	"crypto/rand"
	"fmt"
	"image"
	"image/color"
	mrand "math/rand/v2"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// ParseColor parses a color string. Accepts "#rrggbb", "random", or "".
// Empty string is treated as "random".
func ParseColor(s string) (r, g, b uint8, err error) {
	if s == "" || s == "random" {
		buf := make([]byte, 3)
		if _, err := rand.Read(buf); err != nil {
			return 0, 0, 0, fmt.Errorf("random color: %w", err)
		}
		return buf[0], buf[1], buf[2], nil
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid color %q: expected 6-char hex", s)
	}

	rv, err := strconv.ParseUint(hex[0:2], 16, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid red channel in %q: %w", s, err)
	}
	gv, err := strconv.ParseUint(hex[2:4], 16, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid green channel in %q: %w", s, err)
	}
	bv, err := strconv.ParseUint(hex[4:6], 16, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid blue channel in %q: %w", s, err)
	}

	return uint8(rv), uint8(gv), uint8(bv), nil
}

// NewSolidImage creates a uniform solid-color image using draw.Draw (O(1) fill).
func NewSolidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// NewNoiseImage creates an opaque image of uniformly random channel values.
// The same seed always yields the same image.
func NewNoiseImage(w, h int, seed uint64) *image.RGBA {
	rng := mrand.New(mrand.NewPCG(seed, ^seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		v := rng.Uint32()
		img.Pix[i] = uint8(v)
		img.Pix[i+1] = uint8(v >> 8)
		img.Pix[i+2] = uint8(v >> 16)
		img.Pix[i+3] = 0xFF
	}
	return img
}

// NewGradientImage creates a horizontal gradient from c to its complement.
func NewGradientImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		t := 0
		if w > 1 {
			t = x * 255 / (w - 1)
		}
		col := color.RGBA{
			R: lerp(c.R, 255-c.R, t),
			G: lerp(c.G, 255-c.G, t),
			B: lerp(c.B, 255-c.B, t),
			A: 0xFF,
		}
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, col)
		}
	}
	return img
}

func lerp(a, b uint8, t int) uint8 {
	return uint8((int(a)*(255-t) + int(b)*t) / 255)
}

// resolveImage builds the cover image described by cfg.
func resolveImage(cfg Config) (image.Image, error) {
	switch cfg.Pattern {
	case PatternNoise:
		return NewNoiseImage(cfg.Width, cfg.Height, cfg.Seed), nil
	case PatternSolid, PatternGradient:
		r, g, b, err := ParseColor(cfg.Color)
		if err != nil {
			return nil, err
		}
		if cfg.Pattern == PatternSolid {
			return NewSolidImage(cfg.Width, cfg.Height, toRGBA(r, g, b)), nil
		}
		return NewGradientImage(cfg.Width, cfg.Height, toRGBA(r, g, b)), nil
	default:
		return nil, fmt.Errorf("unknown pattern %q", cfg.Pattern)
	}
}
