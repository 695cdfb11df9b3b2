package stego

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"sync"
	"testing"

	"golang.org/x/image/bmp"
)

// noiseImage returns a deterministic RGB noise image.
func noiseImage(w, h int, seed uint64) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.IntN(256))
		img.Pix[i+1] = uint8(rng.IntN(256))
		img.Pix[i+2] = uint8(rng.IntN(256))
		img.Pix[i+3] = 0xFF
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func decodeGrid(t *testing.T, data []byte) *RGBGrid {
	t.Helper()
	g, _, err := DecodeRGB(data)
	if err != nil {
		t.Fatalf("DecodeRGB: %v", err)
	}
	return g
}

func TestImageScenarioA(t *testing.T) {
	carrier := encodePNG(t, noiseImage(100, 100, 1))
	payload := []byte("0123456789")

	out, mime, err := EmbedImage(carrier, payload)
	if err != nil {
		t.Fatalf("EmbedImage: %v", err)
	}
	if mime != MIMEImagePNG {
		t.Fatalf("mime = %q, want %q", mime, MIMEImagePNG)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(out)); err != nil || format != "png" {
		t.Fatalf("output format = %q, %v; want png", format, err)
	}

	got, err := ExtractImage(out)
	if err != nil {
		t.Fatalf("ExtractImage: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ExtractImage = %q, want %q", got, payload)
	}
}

func TestImageScenarioB(t *testing.T) {
	carrier := encodePNG(t, noiseImage(100, 100, 2))
	orig := append([]byte(nil), carrier...)

	_, _, err := EmbedImage(carrier, make([]byte, 3750))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want CapacityExceeded", err)
	}
	if !bytes.Equal(carrier, orig) {
		t.Fatal("carrier bytes modified by failed embed")
	}
}

func TestImageCapacityBoundary(t *testing.T) {
	grid := decodeGrid(t, encodePNG(t, noiseImage(100, 100, 3)))
	if MaxCapacityBits(grid) != 30000 {
		t.Fatalf("MaxCapacityBits = %d, want 30000", MaxCapacityBits(grid))
	}

	exact := MaxPayloadBytes(grid)
	if FramedBits(exact) != MaxCapacityBits(grid) {
		t.Fatalf("FramedBits(%d) = %d, want exact fit", exact, FramedBits(exact))
	}

	payload := bytes.Repeat([]byte{0x5A}, exact)
	fit := grid.Clone()
	if err := EmbedRGB(fit, payload); err != nil {
		t.Fatalf("EmbedRGB exact fit: %v", err)
	}
	got, err := ExtractRGB(fit)
	if err != nil {
		t.Fatalf("ExtractRGB: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("exact-fit payload did not round-trip")
	}

	// One slot short of the frame.
	short := &RGBGrid{Width: grid.Width, Height: grid.Height, Pix: grid.Clone().Pix[:len(grid.Pix)-1]}
	before := append([]uint8(nil), short.Pix...)
	err = embedSlots(short.Pix, payload)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want CapacityExceeded", err)
	}
	if !bytes.Equal(short.Pix, before) {
		t.Fatal("slots written despite capacity failure")
	}
}

func TestImageHeaderIntegrity(t *testing.T) {
	payload := []byte("header check payload")
	out, _, err := EmbedImage(encodePNG(t, noiseImage(32, 32, 4)), payload)
	if err != nil {
		t.Fatalf("EmbedImage: %v", err)
	}
	grid := decodeGrid(t, out)
	n, err := DecodeHeader(readBits(grid.Pix, HeaderBits))
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if int(n) != len(payload) {
		t.Fatalf("declared = %d, want %d", n, len(payload))
	}
}

func TestImageNonPayloadSlotsPreserved(t *testing.T) {
	carrier := encodePNG(t, noiseImage(40, 30, 5))
	payload := []byte("preserve the rest")
	out, _, err := EmbedImage(carrier, payload)
	if err != nil {
		t.Fatalf("EmbedImage: %v", err)
	}

	before := decodeGrid(t, carrier)
	after := decodeGrid(t, out)
	framed := FramedBits(len(payload))
	for i := range before.Pix {
		if i < framed {
			if before.Pix[i]&^1 != after.Pix[i]&^1 {
				t.Fatalf("slot %d: high bits changed %08b -> %08b", i, before.Pix[i], after.Pix[i])
			}
			continue
		}
		if before.Pix[i] != after.Pix[i] {
			t.Fatalf("slot %d beyond frame changed: %d -> %d", i, before.Pix[i], after.Pix[i])
		}
	}
}

func TestImageExtractIdempotent(t *testing.T) {
	out, _, err := EmbedImage(encodePNG(t, noiseImage(20, 20, 6)), []byte("twice"))
	if err != nil {
		t.Fatalf("EmbedImage: %v", err)
	}
	orig := append([]byte(nil), out...)
	first, err1 := ExtractImage(out)
	second, err2 := ExtractImage(out)
	if err1 != nil || err2 != nil {
		t.Fatalf("ExtractImage errors: %v, %v", err1, err2)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("extractions differ: %q vs %q", first, second)
	}
	if !bytes.Equal(out, orig) {
		t.Fatal("ExtractImage modified its input")
	}
}

func TestImageScenarioDNeverEmbedded(t *testing.T) {
	// A bright, never-embedded image: every LSB is 1, so the header
	// declares 0xFFFFFFFF bytes.
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	_, err := ExtractImage(encodePNG(t, img))
	if !errors.Is(err, ErrCorruptHeader) {
		t.Fatalf("err = %v, want CorruptHeader", err)
	}
}

func TestImageTooSmallForHeader(t *testing.T) {
	// 3x3 pixels = 27 slots, fewer than the 32 header bits.
	_, err := ExtractImage(encodePNG(t, noiseImage(3, 3, 7)))
	if !errors.Is(err, ErrTruncatedHeader) {
		t.Fatalf("err = %v, want TruncatedHeader", err)
	}
}

func TestImageAlphaDroppedWithoutCompositing(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 100, 50, 0
	}
	out, _, err := EmbedImage(encodePNG(t, img), []byte("a"))
	if err != nil {
		t.Fatalf("EmbedImage: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if o, ok := decoded.(interface{ Opaque() bool }); !ok || !o.Opaque() {
		t.Fatal("output PNG is not opaque RGB")
	}
	grid := toRGB(decoded)
	last := len(grid.Pix) - 3
	if grid.Pix[last] != 200 || grid.Pix[last+1] != 100 || grid.Pix[last+2] != 50 {
		t.Fatalf("last pixel = %v, want straight RGB 200,100,50", grid.Pix[last:])
	}
}

func TestImagePalettedCarrier(t *testing.T) {
	pal := color.Palette{color.RGBA{0, 0, 0, 255}, color.RGBA{10, 20, 30, 255}, color.RGBA{255, 128, 1, 255}}
	img := image.NewPaletted(image.Rect(0, 0, 30, 30), pal)
	for i := range img.Pix {
		img.Pix[i] = uint8(i % len(pal))
	}
	payload := []byte("paletted")
	out, _, err := EmbedImage(encodePNG(t, img), payload)
	if err != nil {
		t.Fatalf("EmbedImage: %v", err)
	}
	got, err := ExtractImage(out)
	if err != nil {
		t.Fatalf("ExtractImage: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ExtractImage = %q, want %q", got, payload)
	}
}

func TestImageBMPCarrier(t *testing.T) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, noiseImage(50, 20, 8)); err != nil {
		t.Fatalf("bmp.Encode: %v", err)
	}
	payload := []byte("from a bitmap")
	out, mime, err := EmbedImage(buf.Bytes(), payload)
	if err != nil {
		t.Fatalf("EmbedImage: %v", err)
	}
	if mime != MIMEImagePNG {
		t.Fatalf("mime = %q", mime)
	}
	got, err := ExtractImage(out)
	if err != nil {
		t.Fatalf("ExtractImage: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ExtractImage = %q, want %q", got, payload)
	}
}

func TestImageJPEGCarrier(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, noiseImage(64, 64, 9), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}

	_, err := ExtractImage(buf.Bytes())
	if !errors.Is(err, ErrUnsupportedCarrierFormat) {
		t.Fatalf("ExtractImage(jpeg) err = %v, want UnsupportedCarrierFormat", err)
	}

	// Embedding re-encodes losslessly, so a JPEG source still round-trips.
	payload := []byte("jpeg source")
	out, _, err := EmbedImage(buf.Bytes(), payload)
	if err != nil {
		t.Fatalf("EmbedImage: %v", err)
	}
	got, err := ExtractImage(out)
	if err != nil {
		t.Fatalf("ExtractImage: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ExtractImage = %q, want %q", got, payload)
	}
}

func TestImageUndecodable(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
		"wav":     []byte("RIFF\x24\x00\x00\x00WAVEfmt "),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := EmbedImage(data, []byte("x"))
			if !errors.Is(err, ErrUnsupportedCarrierFormat) {
				t.Fatalf("EmbedImage err = %v, want UnsupportedCarrierFormat", err)
			}
			_, err = ExtractImage(data)
			if !errors.Is(err, ErrUnsupportedCarrierFormat) {
				t.Fatalf("ExtractImage err = %v, want UnsupportedCarrierFormat", err)
			}
		})
	}
}

func TestWebPLosslessDetection(t *testing.T) {
	chunk := func(id string, body []byte) []byte {
		b := append([]byte(id), byte(len(body)), 0, 0, 0)
		b = append(b, body...)
		if len(body)%2 == 1 {
			b = append(b, 0)
		}
		return b
	}
	header := []byte("RIFF\x00\x00\x00\x00WEBP")

	lossless := append(append([]byte(nil), header...), chunk("VP8L", []byte{1, 2, 3})...)
	lossy := append(append([]byte(nil), header...), chunk("VP8 ", []byte{1, 2})...)
	extended := append(append([]byte(nil), header...), chunk("VP8X", make([]byte, 10))...)
	extended = append(extended, chunk("VP8L", []byte{1})...)

	if !webpLossless(lossless) {
		t.Error("VP8L not detected as lossless")
	}
	if webpLossless(lossy) {
		t.Error("VP8 detected as lossless")
	}
	if !webpLossless(extended) {
		t.Error("VP8X+VP8L not detected as lossless")
	}
}

func TestImageConcurrentCalls(t *testing.T) {
	carrier := encodePNG(t, noiseImage(40, 40, 10))
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte(i)}, i+1)
			out, _, err := EmbedImage(carrier, payload)
			if err != nil {
				errs <- err
				return
			}
			got, err := ExtractImage(out)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(got, payload) {
				errs <- errors.New("payload mismatch")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
