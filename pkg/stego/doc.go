// Package stego hides an opaque byte payload in the least-significant bits
// of a lossless image or 16-bit PCM audio carrier and recovers it exactly.
//
// Every carrier shares one wire layout: a 4-byte big-endian payload length
// followed by the payload, expanded MSB first, one bit per slot. An image
// slot is one color channel (R, G, B per pixel in scan order); an audio
// slot is one sample (all channels of frame 0, then frame 1, ...).
//
// The four entry points are pure functions over byte buffers:
//
//	out, mime, err := stego.EmbedImage(carrier, payload) // always image/png
//	payload, err := stego.ExtractImage(out)
//	out, mime, err = stego.EmbedAudio(carrier, payload)  // always audio/wav
//	payload, err = stego.ExtractAudio(out)
//
// Capacity is checked before any slot is written, so a failed embed never
// yields a partially written carrier. They hold no state and are safe for
// concurrent use.
package stego
