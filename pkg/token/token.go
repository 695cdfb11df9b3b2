// Package token seals a structured record into an opaque, URL-safe token
// and opens it again.
//
// A token is base64url(version ‖ nonce ‖ ciphertext), where the ciphertext
// is the JSON record sealed with XChaCha20-Poly1305 and the version byte is
// bound as additional data. Tokens are self-verifying: any modification
// makes Open fail with ErrInvalidToken.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length in bytes of a sealing key.
const KeySize = chacha20poly1305.KeySize

const version byte = 1

var (
	// ErrInvalidToken is returned when a token cannot be authenticated.
	ErrInvalidToken = errors.New("token: invalid token")
	// ErrInvalidKey is returned for keys of the wrong size or encoding.
	ErrInvalidKey = errors.New("token: invalid key")
)

var encoding = base64.RawURLEncoding

// Record is the structured message carried inside a token.
type Record struct {
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Message     string    `json:"message"`
	Sender      string    `json:"sender"`
	Recipient   string    `json:"recipient,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Sealer seals and opens tokens under one key. It is safe for concurrent use.
type Sealer struct {
	key [KeySize]byte
}

// NewSealer returns a Sealer for key, which must be KeySize bytes.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	s := &Sealer{}
	copy(s.key[:], key)
	return s, nil
}

// GenerateKey returns a fresh random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// ParseKey decodes a hex-encoded key.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	return key, nil
}

// Seal encodes rec as JSON and seals it into a token. A zero CreatedAt is
// set to the current UTC time.
func (s *Sealer) Seal(rec Record) ([]byte, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	plain, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return s.SealBytes(plain)
}

// SealBytes seals an arbitrary plaintext.
func (s *Sealer) SealBytes(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	raw := make([]byte, 0, 1+len(nonce)+len(plain)+aead.Overhead())
	raw = append(raw, version)
	raw = append(raw, nonce...)
	raw = aead.Seal(raw, nonce, plain, []byte{version})

	out := make([]byte, encoding.EncodedLen(len(raw)))
	encoding.Encode(out, raw)
	return out, nil
}

// Open authenticates tok and decodes the record inside it.
func (s *Sealer) Open(tok []byte) (Record, error) {
	plain, err := s.OpenBytes(tok)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(plain, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: record: %v", ErrInvalidToken, err)
	}
	return rec, nil
}

// OpenBytes authenticates tok and returns its plaintext.
func (s *Sealer) OpenBytes(tok []byte) ([]byte, error) {
	raw := make([]byte, encoding.DecodedLen(len(tok)))
	n, err := encoding.Decode(raw, tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	raw = raw[:n]

	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(raw) < 1+aead.NonceSize()+aead.Overhead() || raw[0] != version {
		return nil, ErrInvalidToken
	}
	nonce := raw[1 : 1+aead.NonceSize()]
	plain, err := aead.Open(nil, nonce, raw[1+aead.NonceSize():], []byte{version})
	if err != nil {
		return nil, ErrInvalidToken
	}
	return plain, nil
}
