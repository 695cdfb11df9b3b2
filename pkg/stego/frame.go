// frame.go — Length-prefixed bit-stream framing shared by every carrier.
package stego

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// HeaderBytes is the width of the big-endian payload length prefix.
	HeaderBytes = 4
	// HeaderBits is the number of carrier slots the length prefix occupies.
	HeaderBits = HeaderBytes * 8
	// MaxPayloadLen is the largest payload the header can describe.
	MaxPayloadLen = math.MaxUint32
)

// Bits is a framed message expanded to one element per bit, MSB first
// within each byte. Every element is 0 or 1.
type Bits []uint8

// FramedBits returns the number of slots needed to carry a payload of n bytes.
func FramedBits(n int) int {
	return 8 * (HeaderBytes + n)
}

func checkPayloadLen(n int) error {
	if uint64(n) > MaxPayloadLen {
		return newError(KindPayloadTooLarge,
			fmt.Sprintf("payload of %d bytes exceeds %d-byte header limit", n, uint64(MaxPayloadLen)))
	}
	return nil
}

// Encode prepends the length header to payload and expands the frame
// into bits.
func Encode(payload []byte) (Bits, error) {
	if err := checkPayloadLen(len(payload)); err != nil {
		return nil, err
	}

	var header [HeaderBytes]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	bits := make(Bits, 0, FramedBits(len(payload)))
	bits = appendBits(bits, header[:])
	bits = appendBits(bits, payload)
	return bits, nil
}

func appendBits(dst Bits, src []byte) Bits {
	for _, b := range src {
		for shift := 7; shift >= 0; shift-- {
			dst = append(dst, (b>>shift)&1)
		}
	}
	return dst
}

// DecodeHeader reconstructs the declared payload length from the first
// HeaderBits bits.
func DecodeHeader(bits Bits) (uint32, error) {
	if len(bits) < HeaderBits {
		return 0, newError(KindTruncatedHeader,
			fmt.Sprintf("need %d header bits, have %d", HeaderBits, len(bits)))
	}
	var header [HeaderBytes]byte
	packBits(header[:], bits[:HeaderBits])
	return binary.BigEndian.Uint32(header[:]), nil
}

// Decode consumes the header bits plus 8*declared payload bits and
// regroups the payload bits into bytes.
func Decode(bits Bits, declared uint32) ([]byte, error) {
	need := uint64(HeaderBits) + 8*uint64(declared)
	if uint64(len(bits)) < need {
		return nil, newError(KindTruncatedPayload,
			fmt.Sprintf("declared %d payload bytes need %d bits, have %d", declared, need, len(bits)))
	}
	out := make([]byte, declared)
	packBits(out, bits[HeaderBits:need])
	return out, nil
}

// packBits fills dst from MSB-first bits; len(bits) must be 8*len(dst).
func packBits(dst []byte, bits Bits) {
	for i := range dst {
		var b byte
		for _, bit := range bits[i*8 : i*8+8] {
			b = b<<1 | bit&1
		}
		dst[i] = b
	}
}
