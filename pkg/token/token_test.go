package token

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
	"time"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	s, err := NewSealer(key)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	return s
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := newTestSealer(t)
	rec := Record{
		PatientID:   "P-001",
		PatientName: "Jordan Doe",
		Message:     "follow-up in two weeks",
		Sender:      "dr.lee",
		Recipient:   "dr.kim",
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	tok, err := s.Seal(rec)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.ContainsAny(tok, "+/=") {
		t.Fatalf("token %q is not URL-safe", tok)
	}

	got, err := s.Open(tok)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
	got.CreatedAt = rec.CreatedAt
	if got != rec {
		t.Fatalf("Open = %+v, want %+v", got, rec)
	}
}

func TestSealSetsCreatedAt(t *testing.T) {
	s := newTestSealer(t)
	tok, err := s.Seal(Record{Message: "hi"})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := s.Open(tok)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not set")
	}
}

func TestSealIsRandomized(t *testing.T) {
	s := newTestSealer(t)
	a, _ := s.SealBytes([]byte("same"))
	b, _ := s.SealBytes([]byte("same"))
	if bytes.Equal(a, b) {
		t.Fatal("two seals of the same plaintext are identical")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	s := newTestSealer(t)
	tok, err := s.SealBytes([]byte("payload"))
	if err != nil {
		t.Fatalf("SealBytes: %v", err)
	}

	flipped := append([]byte(nil), tok...)
	last := len(flipped) - 2
	if flipped[last] == 'A' {
		flipped[last] = 'B'
	} else {
		flipped[last] = 'A'
	}

	cases := map[string][]byte{
		"flipped":    flipped,
		"truncated":  tok[:len(tok)-4],
		"empty":      nil,
		"not base64": []byte("!!!!"),
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := s.OpenBytes(bad); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}

	other := newTestSealer(t)
	if _, err := other.OpenBytes(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong key err = %v, want ErrInvalidToken", err)
	}
}

func TestOpenRejectsNonRecord(t *testing.T) {
	s := newTestSealer(t)
	tok, _ := s.SealBytes([]byte("not json"))
	if _, err := s.Open(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseKey(t *testing.T) {
	key, _ := GenerateKey()
	got, err := ParseKey(" " + hex.EncodeToString(key) + "\n")
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Fatal("ParseKey mismatch")
	}

	for _, bad := range []string{"", "zz", hex.EncodeToString(key[:16])} {
		if _, err := ParseKey(bad); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ParseKey(%q) err = %v, want ErrInvalidKey", bad, err)
		}
	}
	if _, err := NewSealer(key[:31]); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("NewSealer(short) err = %v, want ErrInvalidKey", err)
	}
}
