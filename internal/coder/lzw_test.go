package coder

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"single", []byte{42}},
		{"repeats", bytes.Repeat([]byte{7}, 500)},
		{"ramp", func() []byte {
			b := make([]byte, 300)
			for i := range b {
				b[i] = byte(i)
			}
			return b
		}()},
		{"random", func() []byte {
			r := rand.New(rand.NewSource(1))
			b := make([]byte, 4096)
			r.Read(b)
			return b
		}()},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			for _, maxBits := range []int{9, 12, 16} {
				encoded := Compress(c.data, maxBits)
				decoded, consumed, err := Decompress(encoded, len(c.data))
				if err != nil {
					t.Fatalf("maxBits=%d: Decompress: %v", maxBits, err)
				}
				if consumed != len(encoded) {
					t.Fatalf("maxBits=%d: consumed %d, want %d", maxBits, consumed, len(encoded))
				}
				if !bytes.Equal(decoded, c.data) {
					t.Fatalf("maxBits=%d: round trip mismatch: got %v want %v", maxBits, decoded, c.data)
				}
			}
		})
	}
}

func TestDecompressResidualDetection(t *testing.T) {
	encoded := Compress([]byte("hello hello hello"), 9)
	padded := append(append([]byte{}, encoded...), 0xFF)

	_, consumed, err := Decompress(padded, len("hello hello hello"))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("consumed %d, want %d (caller should flag %d residual bytes)",
			consumed, len(encoded), len(padded)-consumed)
	}
}

func TestCompressShrinksRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("MUSICTALK"), 200)
	encoded := Compress(data, 12)
	if len(encoded) >= len(data) {
		t.Fatalf("expected compression, got %d bytes from %d input", len(encoded), len(data))
	}
}
