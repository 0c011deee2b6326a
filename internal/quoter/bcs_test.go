package quoter

import (
	"encoding/binary"
	"testing"
)

// encodeU64Vec is the inverse of DecodeU64Vec, used to build fixtures.
func encodeU64Vec(ns []uint64) []byte {
	var out []byte
	n := uint64(len(ns))
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if n == 0 {
			break
		}
	}
	for _, v := range ns {
		var word [8]byte
		binary.LittleEndian.PutUint64(word[:], v)
		out = append(out, word[:]...)
	}
	return out
}

func TestDecodeU64VecRoundTrip(t *testing.T) {
	t.Parallel()

	cases := [][]uint64{
		{},
		{0},
		{1, 2, 3},
		{18446744073709551615, 0, 1000000000},
	}
	// 200 elements forces a two-byte ULEB128 length prefix.
	long := make([]uint64, 200)
	for i := range long {
		long[i] = uint64(i) * 7
	}
	cases = append(cases, long)

	for _, want := range cases {
		got, err := DecodeU64Vec(encodeU64Vec(want))
		if err != nil {
			t.Fatalf("DecodeU64Vec(len %d) error: %v", len(want), err)
		}
		if len(got) != len(want) {
			t.Fatalf("len = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("element %d = %d, want %d", i, got[i], want[i])
			}
		}
	}
}

func TestDecodeU64VecErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty input", input: nil},
		{name: "truncated length prefix", input: []byte{0x80}},
		{name: "payload too short", input: []byte{2, 1, 0, 0, 0, 0, 0, 0, 0}},
		{name: "trailing bytes", input: append(encodeU64Vec([]uint64{5}), 0xff)},
		{
			name:  "length overflows u64",
			input: []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x02},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeU64Vec(tt.input); err == nil {
				t.Errorf("DecodeU64Vec(%v) succeeded, want error", tt.input)
			}
		})
	}
}

func TestDecodeULEB128MultiByte(t *testing.T) {
	t.Parallel()

	// 300 = 0b100101100 → 0xAC 0x02
	v, n, err := decodeULEB128([]byte{0xAC, 0x02, 0xFF})
	if err != nil {
		t.Fatalf("decodeULEB128 error: %v", err)
	}
	if v != 300 {
		t.Errorf("value = %d, want 300", v)
	}
	if n != 2 {
		t.Errorf("consumed = %d, want 2", n)
	}
}
