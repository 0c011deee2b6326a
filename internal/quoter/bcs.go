// bcs.go decodes the BCS-packed vectors returned by the order book's
// read-only view function. Each vector is a ULEB128 length prefix followed
// by that many little-endian u64 words.
package quoter

import (
	"encoding/binary"
	"fmt"
)

// decodeULEB128 reads one unsigned LEB128 value and returns it with the
// number of bytes consumed.
func decodeULEB128(b []byte) (uint64, int, error) {
	var value uint64
	var shift uint
	for i, c := range b {
		if shift >= 64 {
			return 0, 0, fmt.Errorf("uleb128 overflows u64")
		}
		value |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("uleb128 truncated after %d bytes", len(b))
}

// DecodeU64Vec decodes a ULEB128-length-prefixed vector of little-endian
// u64s, consuming the entire input.
func DecodeU64Vec(b []byte) ([]uint64, error) {
	length, n, err := decodeULEB128(b)
	if err != nil {
		return nil, err
	}
	b = b[n:]

	if uint64(len(b)) != length*8 {
		return nil, fmt.Errorf("u64 vector: want %d bytes for %d elements, have %d", length*8, length, len(b))
	}

	out := make([]uint64, length)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return out, nil
}
