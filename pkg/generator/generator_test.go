package generator

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/xob0t/GoStego/pkg/stego"
	"github.com/xob0t/GoStego/pkg/wav"
)

func TestParseColor(t *testing.T) {
	r, g, b, err := ParseColor("#1a2b3c")
	if err != nil {
		t.Fatalf("ParseColor: %v", err)
	}
	if r != 0x1a || g != 0x2b || b != 0x3c {
		t.Fatalf("ParseColor = %02x%02x%02x", r, g, b)
	}
	if _, _, _, err := ParseColor("random"); err != nil {
		t.Fatalf("ParseColor(random): %v", err)
	}
	for _, bad := range []string{"#12345", "#gg0000", "#00gg00", "#0000gg"} {
		if _, _, _, err := ParseColor(bad); err == nil {
			t.Errorf("ParseColor(%q) succeeded", bad)
		}
	}
}

func TestGenerateImageCovers(t *testing.T) {
	for _, ext := range []string{".png", ".bmp"} {
		for _, p := range []Pattern{PatternSolid, PatternNoise, PatternGradient} {
			t.Run(ext+"/"+string(p), func(t *testing.T) {
				cfg := Config{Width: 64, Height: 32, Color: "#336699", Pattern: p, Seed: 7}
				var buf bytes.Buffer
				if err := GenerateToWriter(&buf, ext, cfg); err != nil {
					t.Fatalf("GenerateToWriter: %v", err)
				}
				conf, _, err := image.DecodeConfig(bytes.NewReader(buf.Bytes()))
				if err != nil {
					t.Fatalf("DecodeConfig: %v", err)
				}
				if conf.Width != 64 || conf.Height != 32 {
					t.Fatalf("size = %dx%d", conf.Width, conf.Height)
				}

				want, _ := CapacityBits(ext, cfg)
				out, _, err := stego.EmbedImage(buf.Bytes(), []byte("cover ok"))
				if err != nil {
					t.Fatalf("EmbedImage: %v", err)
				}
				got, err := stego.ExtractImage(out)
				if err != nil || string(got) != "cover ok" {
					t.Fatalf("ExtractImage = %q, %v", got, err)
				}
				grid, _, _ := stego.DecodeRGB(out)
				if stego.MaxCapacityBits(grid) != want {
					t.Fatalf("capacity = %d, want %d", stego.MaxCapacityBits(grid), want)
				}
			})
		}
	}
}

func TestNoiseIsDeterministic(t *testing.T) {
	a := NewNoiseImage(16, 16, 42)
	b := NewNoiseImage(16, 16, 42)
	c := NewNoiseImage(16, 16, 43)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatal("same seed produced different noise")
	}
	if bytes.Equal(a.Pix, c.Pix) {
		t.Fatal("different seeds produced identical noise")
	}
}

func TestGenerateAudioCover(t *testing.T) {
	for _, p := range []Pattern{PatternSolid, PatternNoise, PatternGradient} {
		t.Run(string(p), func(t *testing.T) {
			cfg := Config{Pattern: p, Duration: 0.25, Rate: 8000, Channels: 2}
			var buf bytes.Buffer
			if err := GenerateToWriter(&buf, ".WAV", cfg); err != nil {
				t.Fatalf("GenerateToWriter: %v", err)
			}
			pcm, err := wav.Decode(buf.Bytes())
			if err != nil {
				t.Fatalf("wav.Decode: %v", err)
			}
			if pcm.SampleRate != 8000 || pcm.Channels != 2 || pcm.Frames() != 2000 {
				t.Fatalf("layout = %d Hz, %d ch, %d frames", pcm.SampleRate, pcm.Channels, pcm.Frames())
			}
			want, _ := CapacityBits(".wav", cfg)
			if want != 4000 {
				t.Fatalf("CapacityBits = %d, want 4000", want)
			}
		})
	}
}

func TestGenerateFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "cover.png")
	if err := Generate(out, Config{Width: 10, Height: 10}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	conf, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || format != "png" || conf.Width != 10 {
		t.Fatalf("DecodeConfig = %+v, %q, %v", conf, format, err)
	}
}

func TestGenerateUnsupported(t *testing.T) {
	var buf bytes.Buffer
	if err := GenerateToWriter(&buf, ".jpg", Config{}); err == nil {
		t.Fatal("expected error for .jpg")
	}
	if _, err := CapacityBits(".avi", Config{}); err == nil {
		t.Fatal("expected error for .avi")
	}
	if err := GenerateToWriter(&buf, ".png", Config{Pattern: "plaid"}); err == nil {
		t.Fatal("expected error for unknown pattern")
	}
}
