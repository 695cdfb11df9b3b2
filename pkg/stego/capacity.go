// capacity.go — Carrier capacity checks, run before any slot is touched.
package stego

import "fmt"

// Carrier is a decoded sample grid with one embedding slot per sample value.
type Carrier interface {
	// Slots returns the number of independent 1-bit slots.
	Slots() int
}

// MaxCapacityBits returns the total number of LSB slots c provides:
// height*width*3 for images, frames*channels for audio.
func MaxCapacityBits(c Carrier) int {
	if c == nil {
		return 0
	}
	return c.Slots()
}

// MaxPayloadBytes returns the largest payload c can carry once framed.
func MaxPayloadBytes(c Carrier) int {
	n := MaxCapacityBits(c)/8 - HeaderBytes
	if n < 0 {
		return 0
	}
	return n
}

// Validate reports CapacityExceeded when framedBits does not fit c.
func Validate(c Carrier, framedBits int) error {
	capBits := MaxCapacityBits(c)
	if framedBits > capBits {
		return newError(KindCapacityExceeded,
			fmt.Sprintf("frame needs %d bits, carrier holds %d", framedBits, capBits))
	}
	return nil
}
