package tensor

import (
	"encoding/binary"
	"fmt"

	"github.com/caudio/skipcast/internal/coder"
)

// Version is the on-disk tensor format version (spec §4.5, §6),
// grounded on original_source/skipper.h's TENSOR_VERSION.
const Version = 1

// headerSize is the fixed byte length of the header that precedes the
// coded payload: version(4) + checksum(4) + dims[4]u8(4), per spec
// §6's on-disk tensor file layout.
const headerSize = 4 + 4 + 4

// ErrInvalid is returned by Decode for any malformed or mismatched
// tensor file: wrong version, wrong dims, bad checksum, or residual
// bytes left over after decoding.
var ErrInvalid = fmt.Errorf("tensor: invalid tensor file")

// Encode serializes t into the on-disk format: a fixed header followed
// by the LZW-coded element bytes, trying every code width from 9 to 16
// bits and keeping the smallest result (spec §4.5/§6), matching
// tensor-gen.c's write_tensor_file loop over maxbits.
func Encode(t *Tensor) []byte {
	raw := t.Bytes()
	checksum := Checksum(raw)

	var best []byte
	for maxBits := 9; maxBits <= 16; maxBits++ {
		candidate := coder.Compress(raw, maxBits)
		if best == nil || len(candidate) < len(best) {
			best = candidate
		}
	}

	out := make([]byte, headerSize+len(best))
	binary.LittleEndian.PutUint32(out[0:4], uint32(Version))
	binary.LittleEndian.PutUint32(out[4:8], checksum)
	out[8] = byte(t.dims[0])
	out[9] = byte(t.dims[1])
	out[10] = byte(t.dims[2])
	out[11] = byte(t.dims[3])
	copy(out[headerSize:], best)
	return out
}

// Decode parses a tensor file produced by Encode, validating the
// version, dimensions, checksum, and that no residual bytes remain
// after the coded payload (spec §4.5/§6's "reject malformed tensor
// files" invariant), matching skipper.c's read_tensor_file checks.
func Decode(data []byte) (*Tensor, error) {
	if len(data) < headerSize {
		return nil, ErrInvalid
	}

	version := binary.LittleEndian.Uint32(data[0:4])
	if version != Version {
		return nil, fmt.Errorf("%w: version %d", ErrInvalid, version)
	}

	checksum := binary.LittleEndian.Uint32(data[4:8])
	dims := [4]int{int(data[8]), int(data[9]), int(data[10]), int(data[11])}
	if dims != Dims {
		return nil, fmt.Errorf("%w: dims %v", ErrInvalid, dims)
	}

	payload := data[headerSize:]
	raw, consumed, err := coder.Decompress(payload, Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if consumed != len(payload) {
		return nil, fmt.Errorf("%w: %d residual bytes", ErrInvalid, len(payload)-consumed)
	}

	if Checksum(raw) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalid)
	}

	t := New(dims)
	t.FromBytes(raw)
	return t, nil
}
