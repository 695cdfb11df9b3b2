// lsb.go — Carrier-agnostic LSB embed and extract.
package stego

import "fmt"

// sample is any slot type whose lowest bit carries one payload bit.
type sample interface {
	~uint8 | ~int16
}

type slotGrid[T sample] []T

func (g slotGrid[T]) Slots() int { return len(g) }

// embedSlots frames payload and writes it into the low bits of slots.
// Nothing is written unless the whole frame fits.
func embedSlots[T sample](slots []T, payload []byte) error {
	bits, err := Encode(payload)
	if err != nil {
		return err
	}
	if err := Validate(slotGrid[T](slots), len(bits)); err != nil {
		return err
	}
	for i, bit := range bits {
		slots[i] = slots[i]&^1 | T(bit)
	}
	return nil
}

// extractSlots reads the header from the first HeaderBits slots, checks
// the declared length against the carrier, then reads the payload.
func extractSlots[T sample](slots []T) ([]byte, error) {
	header, err := DecodeHeader(readBits(slots, HeaderBits))
	if err != nil {
		return nil, err
	}
	need := uint64(HeaderBits) + 8*uint64(header)
	if need > uint64(len(slots)) {
		return nil, newError(KindCorruptHeader,
			fmt.Sprintf("declared length %d needs %d bits, carrier holds %d", header, need, len(slots)))
	}
	return Decode(readBits(slots, int(need)), header)
}

func readBits[T sample](slots []T, n int) Bits {
	n = min(n, len(slots))
	bits := make(Bits, n)
	for i := range bits {
		bits[i] = uint8(slots[i] & 1)
	}
	return bits
}
