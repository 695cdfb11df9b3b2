// audio.go — Audio carriers: 16-bit PCM, one bit per sample, always
// re-serialized as WAV.
package stego

import (
	"errors"

	"github.com/xob0t/GoStego/pkg/wav"
)

// MIMEAudioWAV is the MIME type of every carrier EmbedAudio produces.
const MIMEAudioWAV = "audio/wav"

// PCMGrid is decoded 16-bit audio; Samples are interleaved frame-major
// across channels and every sample is an independent slot.
type PCMGrid struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Slots implements Carrier: one slot per sample of every channel.
func (g *PCMGrid) Slots() int { return len(g.Samples) }

// Frames returns the number of sample frames.
func (g *PCMGrid) Frames() int {
	if g.Channels <= 0 {
		return 0
	}
	return len(g.Samples) / g.Channels
}

// EmbedAudio hides payload in a 16-bit PCM WAV carrier and returns a WAV
// with the same sample rate and channel layout.
func EmbedAudio(carrier, payload []byte) ([]byte, string, error) {
	grid, err := DecodePCM(carrier)
	if err != nil {
		return nil, "", err
	}
	if err := EmbedPCM(grid, payload); err != nil {
		return nil, "", err
	}
	return EncodePCM(grid), MIMEAudioWAV, nil
}

// ExtractAudio recovers the payload hidden by EmbedAudio.
func ExtractAudio(carrier []byte) ([]byte, error) {
	grid, err := DecodePCM(carrier)
	if err != nil {
		return nil, err
	}
	return ExtractPCM(grid)
}

// EmbedPCM writes the framed payload into g in place. On error g is unchanged.
func EmbedPCM(g *PCMGrid, payload []byte) error {
	return embedSlots(g.Samples, payload)
}

// ExtractPCM reads a framed payload from g.
func ExtractPCM(g *PCMGrid) ([]byte, error) {
	return extractSlots(g.Samples)
}

// DecodePCM decodes a WAV file. Anything other than 16-bit integer PCM is
// rejected rather than rescaled, so a slot is always one whole sample.
func DecodePCM(data []byte) (*PCMGrid, error) {
	p, err := wav.Decode(data)
	if err != nil {
		msg := "decode WAV"
		if errors.Is(err, wav.ErrUnsupported) {
			msg = "only 16-bit integer PCM carriers are supported"
		}
		return nil, wrapError(KindUnsupportedCarrierFormat, msg, err)
	}
	return &PCMGrid{SampleRate: p.SampleRate, Channels: p.Channels, Samples: p.Samples}, nil
}

// EncodePCM serializes g as an uncompressed PCM WAV.
func EncodePCM(g *PCMGrid) []byte {
	return wav.Encode(&wav.PCM{SampleRate: g.SampleRate, Channels: g.Channels, Samples: g.Samples})
}
