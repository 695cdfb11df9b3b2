// Package wav reads and writes 16-bit PCM RIFF/WAVE files.
//
// Decode accepts only integer PCM at 16 bits per sample, so every sample
// maps to exactly one int16. Encode always writes the canonical 44-byte
// header followed by interleaved little-endian samples.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// BitsPerSample is the only sample depth this package handles.
	BitsPerSample = 16

	formatPCM        = 0x0001
	formatExtensible = 0xFFFE

	headerSize = 44
)

var (
	// ErrNotWAV is returned when the data does not start with a RIFF/WAVE header.
	ErrNotWAV = errors.New("wav: not a RIFF/WAVE file")
	// ErrUnsupported is returned for valid WAV files that are not 16-bit integer PCM.
	ErrUnsupported = errors.New("wav: unsupported sample format")
	// ErrMalformed is returned for truncated or inconsistent chunk structure.
	ErrMalformed = errors.New("wav: malformed file")
)

// PCM is decoded audio: Samples holds frames interleaved across channels
// (frame 0 channel 0, frame 0 channel 1, ..., frame 1 channel 0, ...).
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Frames returns the number of sample frames.
func (p *PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Decode parses a WAV file. Unknown chunks are skipped; the fmt chunk must
// precede the data chunk.
func Decode(data []byte) (*PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		p       PCM
		haveFmt bool
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			if id != "data" {
				return nil, fmt.Errorf("%w: chunk %q overruns file", ErrMalformed, id)
			}
			// Streaming writers sometimes leave the data size unset.
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if err := parseFmt(&p, data[body:body+size]); err != nil {
				return nil, err
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrMalformed)
			}
			return decodeSamples(&p, data[body:body+size])
		}

		off = body + size + size&1
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrMalformed)
	}
	return nil, fmt.Errorf("%w: missing data chunk", ErrMalformed)
}

func parseFmt(p *PCM, b []byte) error {
	if len(b) < 16 {
		return fmt.Errorf("%w: fmt chunk is %d bytes", ErrMalformed, len(b))
	}
	tag := binary.LittleEndian.Uint16(b[0:2])
	channels := int(binary.LittleEndian.Uint16(b[2:4]))
	rate := int(binary.LittleEndian.Uint32(b[4:8]))
	bits := int(binary.LittleEndian.Uint16(b[14:16]))

	if tag == formatExtensible {
		// WAVEFORMATEXTENSIBLE: the sub-format GUID starts with the real tag.
		if len(b) < 40 {
			return fmt.Errorf("%w: extensible fmt chunk is %d bytes", ErrMalformed, len(b))
		}
		tag = binary.LittleEndian.Uint16(b[24:26])
	}
	if tag != formatPCM {
		return fmt.Errorf("%w: format tag 0x%04x is not integer PCM", ErrUnsupported, tag)
	}
	if bits != BitsPerSample {
		return fmt.Errorf("%w: %d bits per sample, need %d", ErrUnsupported, bits, BitsPerSample)
	}
	if channels <= 0 {
		return fmt.Errorf("%w: %d channels", ErrMalformed, channels)
	}
	if rate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrMalformed, rate)
	}

	p.Channels = channels
	p.SampleRate = rate
	return nil
}

func decodeSamples(p *PCM, b []byte) (*PCM, error) {
	frameBytes := p.Channels * 2
	frames := len(b) / frameBytes
	p.Samples = make([]int16, frames*p.Channels)
	for i := range p.Samples {
		p.Samples[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return p, nil
}

// Encode writes p as a canonical 16-bit PCM WAV file.
func Encode(p *PCM) []byte {
	dataSize := len(p.Samples) * 2
	byteRate := p.SampleRate * p.Channels * BitsPerSample / 8
	blockAlign := p.Channels * BitsPerSample / 8

	buf := make([]byte, headerSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                   // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)            // audio format
	binary.LittleEndian.PutUint16(buf[22:24], uint16(p.Channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(p.SampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))     // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))   // block align
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range p.Samples {
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(s))
	}

	return buf
}
