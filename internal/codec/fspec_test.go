package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncodeFSPEC tests presence bitmap construction
func TestEncodeFSPEC(t *testing.T) {
	tests := []struct {
		name     string
		frns     []int
		expected []byte
	}{
		{
			name:     "Empty set",
			frns:     nil,
			expected: []byte{0x00},
		},
		{
			name:     "First three FRNs in one octet",
			frns:     []int{1, 2, 3},
			expected: []byte{0xE0},
		},
		{
			name:     "FRN 8 forces a second octet",
			frns:     []int{1, 8},
			expected: []byte{0x81, 0x80},
		},
		{
			name:     "Scattered FRNs across two octets",
			frns:     []int{1, 3, 4, 6, 8, 10},
			expected: []byte{0xB5, 0xA0},
		},
		{
			name:     "Order of FRNs does not matter",
			frns:     []int{10, 1, 8, 6, 4, 3},
			expected: []byte{0xB5, 0xA0},
		},
		{
			name:     "FRN 7 stays in the first octet",
			frns:     []int{7},
			expected: []byte{0x02},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeFSPEC(tt.frns)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// TestEncodeFSPEC_InvalidFRN tests rejection of non-positive FRNs
func TestEncodeFSPEC_InvalidFRN(t *testing.T) {
	_, err := EncodeFSPEC([]int{0})
	assert.Error(t, err)

	_, err = EncodeFSPEC([]int{3, -1})
	assert.Error(t, err)
}

// TestDecodeFSPEC tests presence bitmap parsing
func TestDecodeFSPEC(t *testing.T) {
	tests := []struct {
		name     string
		buf      []byte
		frns     []int
		consumed int
	}{
		{
			name:     "All-zero octet",
			buf:      []byte{0x00},
			frns:     nil,
			consumed: 1,
		},
		{
			name:     "Single octet",
			buf:      []byte{0xE0},
			frns:     []int{1, 2, 3},
			consumed: 1,
		},
		{
			name:     "FX chain into a second octet",
			buf:      []byte{0x81, 0x80},
			frns:     []int{1, 8},
			consumed: 2,
		},
		{
			name:     "Trailing bytes are left alone",
			buf:      []byte{0xE0, 0xFF, 0xFF},
			frns:     []int{1, 2, 3},
			consumed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frns, n, err := DecodeFSPEC(tt.buf)
			require.NoError(t, err)
			assert.Equal(t, tt.frns, frns)
			assert.Equal(t, tt.consumed, n)
		})
	}
}

// TestDecodeFSPEC_Truncated tests the shortened input cases
func TestDecodeFSPEC_Truncated(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{name: "Empty buffer", buf: nil},
		{name: "FX set with nothing after it", buf: []byte{0x81}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeFSPEC(tt.buf)
			require.Error(t, err)

			var truncated *TruncatedInputError
			assert.True(t, errors.As(err, &truncated))
		})
	}
}

// TestDecodeFSPEC_RunawayChain tests the FX chain length bound
func TestDecodeFSPEC_RunawayChain(t *testing.T) {
	buf := make([]byte, 150)
	for i := range buf {
		buf[i] = 0x01
	}

	_, _, err := DecodeFSPEC(buf)
	require.Error(t, err)

	var truncated *TruncatedInputError
	assert.False(t, errors.As(err, &truncated), "runaway chain is not a truncation")
}

// TestFSPECRoundTrip tests Decode(Encode(S)) == S
func TestFSPECRoundTrip(t *testing.T) {
	sets := [][]int{
		{1},
		{1, 2, 3},
		{1, 8},
		{1, 3, 4, 6, 8, 10},
		{7, 14, 21},
		{1, 7, 8, 14, 15, 21, 22},
	}

	for _, frns := range sets {
		encoded, err := EncodeFSPEC(frns)
		require.NoError(t, err)

		decoded, n, err := DecodeFSPEC(encoded)
		require.NoError(t, err)
		assert.Equal(t, frns, decoded)
		assert.Equal(t, len(encoded), n)
	}
}

// TestFixedFSPEC tests the fixed-length bitmap used by Compound items
func TestFixedFSPEC(t *testing.T) {
	tests := []struct {
		name     string
		frns     []int
		slots    int
		expected []byte
	}{
		{
			name:     "First and last of one octet",
			frns:     []int{1, 8},
			slots:    8,
			expected: []byte{0x81},
		},
		{
			name:     "Bit one of each octet",
			frns:     []int{1, 9},
			slots:    16,
			expected: []byte{0x80, 0x80},
		},
		{
			name:     "Nothing present",
			frns:     nil,
			slots:    8,
			expected: []byte{0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeFixedFSPEC(tt.frns, tt.slots)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)

			frns, n, err := DecodeFixedFSPEC(got, tt.slots)
			require.NoError(t, err)
			assert.Equal(t, tt.frns, frns)
			assert.Equal(t, len(tt.expected), n)
		})
	}
}

// TestFixedFSPEC_OutOfRange tests slot bound enforcement
func TestFixedFSPEC_OutOfRange(t *testing.T) {
	_, err := EncodeFixedFSPEC([]int{9}, 8)
	assert.Error(t, err)
}

// TestFixedFSPEC_Truncated tests short fixed bitmap input
func TestFixedFSPEC_Truncated(t *testing.T) {
	_, _, err := DecodeFixedFSPEC([]byte{0x80}, 16)
	require.Error(t, err)

	var truncated *TruncatedInputError
	assert.True(t, errors.As(err, &truncated))
}
