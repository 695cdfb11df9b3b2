// image.go — Image carriers: decode to an RGB grid, one bit per channel,
// always re-serialized as PNG.
package stego

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"

	// Standard decoders for image.Decode.
	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"

	// Extended decoders for image.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MIMEImagePNG is the MIME type of every image EmbedImage produces.
const MIMEImagePNG = "image/png"

// RGBGrid is a decoded H×W×3 image flattened row-major, channel-minor:
// Pix[3*(y*Width+x)+c] for channel c in R, G, B order.
type RGBGrid struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewRGBGrid allocates a zeroed grid.
func NewRGBGrid(width, height int) *RGBGrid {
	return &RGBGrid{Width: width, Height: height, Pix: make([]uint8, width*height*3)}
}

// Slots implements Carrier: one slot per color channel.
func (g *RGBGrid) Slots() int { return g.Width * g.Height * 3 }

// Clone returns a deep copy of g.
func (g *RGBGrid) Clone() *RGBGrid {
	c := *g
	c.Pix = append([]uint8(nil), g.Pix...)
	return &c
}

// EmbedImage hides payload in carrier and returns the PNG-encoded result.
// The carrier may be any decodable raster format; the output format is
// fixed to PNG so the written LSBs survive.
func EmbedImage(carrier, payload []byte) ([]byte, string, error) {
	grid, _, err := DecodeRGB(carrier)
	if err != nil {
		return nil, "", err
	}
	if err := EmbedRGB(grid, payload); err != nil {
		return nil, "", err
	}
	out, err := EncodeRGB(grid)
	if err != nil {
		return nil, "", err
	}
	return out, MIMEImagePNG, nil
}

// ExtractImage recovers the payload hidden by EmbedImage. Carriers in a
// lossy container are rejected because their low bits carry nothing.
func ExtractImage(carrier []byte) ([]byte, error) {
	grid, format, err := DecodeRGB(carrier)
	if err != nil {
		return nil, err
	}
	if isLossy(format, carrier) {
		return nil, newError(KindUnsupportedCarrierFormat,
			fmt.Sprintf("%s is a lossy format and cannot carry a payload", format))
	}
	return ExtractRGB(grid)
}

// EmbedRGB writes the framed payload into g in place. On error g is unchanged.
func EmbedRGB(g *RGBGrid, payload []byte) error {
	return embedSlots(g.Pix, payload)
}

// ExtractRGB reads a framed payload from g.
func ExtractRGB(g *RGBGrid) ([]byte, error) {
	return extractSlots(g.Pix)
}

// DecodeRGB decodes a raster image into an RGB grid and reports the
// detected format name. Alpha is dropped without compositing and
// 16-bit channels are reduced to 8 bits.
func DecodeRGB(data []byte) (*RGBGrid, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", wrapError(KindUnsupportedCarrierFormat, "decode image", err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, format, newError(KindUnsupportedCarrierFormat, "image has no pixels")
	}
	return toRGB(img), format, nil
}

func toRGB(img image.Image) *RGBGrid {
	b := img.Bounds()
	g := NewRGBGrid(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.NRGBA:
		copyRGBA(g, src.Pix, src.Stride, src.Rect, b)
		return g
	case *image.RGBA:
		if src.Opaque() {
			copyRGBA(g, src.Pix, src.Stride, src.Rect, b)
			return g
		}
	default:
		if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
			// Opaque sources carry no premultiplication, so a plain draw
			// into RGBA yields exact channel values.
			dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
			draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
			copyRGBA(g, dst.Pix, dst.Stride, dst.Rect, dst.Bounds())
			return g
		}
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			g.Pix[i], g.Pix[i+1], g.Pix[i+2] = c.R, c.G, c.B
			i += 3
		}
	}
	return g
}

// copyRGBA copies the RGB channels of a 4-byte-per-pixel buffer.
func copyRGBA(g *RGBGrid, pix []uint8, stride int, rect, b image.Rectangle) {
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := (y-rect.Min.Y)*stride + (b.Min.X-rect.Min.X)*4
		for x := 0; x < b.Dx(); x++ {
			p := pix[row+x*4 : row+x*4+3]
			g.Pix[i], g.Pix[i+1], g.Pix[i+2] = p[0], p[1], p[2]
			i += 3
		}
	}
}

// EncodeRGB serializes g as an opaque 8-bit truecolor PNG.
func EncodeRGB(g *RGBGrid) ([]byte, error) {
	if len(g.Pix) != g.Slots() {
		return nil, fmt.Errorf("grid %dx%d has %d channel values", g.Width, g.Height, len(g.Pix))
	}
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	for i, j := 0, 0; i < len(g.Pix); i, j = i+3, j+4 {
		img.Pix[j] = g.Pix[i]
		img.Pix[j+1] = g.Pix[i+1]
		img.Pix[j+2] = g.Pix[i+2]
		img.Pix[j+3] = 0xFF
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func isLossy(format string, data []byte) bool {
	switch format {
	case "jpeg":
		return true
	case "webp":
		return !webpLossless(data)
	default:
		return false
	}
}

// webpLossless walks the RIFF chunks of a WebP file looking for a VP8L
// bitstream. A "VP8 " chunk means the image data is lossy.
func webpLossless(data []byte) bool {
	const riffHeader = 12
	if len(data) < riffHeader {
		return false
	}
	for off := riffHeader; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		switch id {
		case "VP8L":
			return true
		case "VP8 ":
			return false
		}
		off += 8 + size + size&1
	}
	return false
}
