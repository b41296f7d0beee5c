package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReader_ReadBits tests MSB-first bit extraction
func TestReader_ReadBits(t *testing.T) {
	r := NewReader([]byte{0xB5, 0xA0})

	v, err := r.ReadBits(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b101), v)

	v, err = r.ReadBits(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b10101), v)
	assert.True(t, r.Aligned())

	v, err = r.ReadBits(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xA0), v)
	assert.Zero(t, r.RemainingBits())
}

// TestReader_ShortRead tests that a failed read leaves the cursor alone
func TestReader_ShortRead(t *testing.T) {
	r := NewReader([]byte{0xFF})

	_, err := r.ReadBits(4)
	require.NoError(t, err)

	_, err = r.ReadBits(8)
	require.Error(t, err)

	var truncated *TruncatedInputError
	require.True(t, errors.As(err, &truncated))
	assert.Equal(t, 4, r.RemainingBits(), "cursor must not move on failure")

	v, err := r.ReadBits(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xF), v)
}

// TestReader_ReadBytes tests aligned and unaligned byte reads
func TestReader_ReadBytes(t *testing.T) {
	buf := []byte{0x12, 0x34, 0x56}

	r := NewReader(buf)
	out, err := r.ReadBytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34}, out)
	assert.Equal(t, 2, r.Offset())
	assert.Equal(t, 1, r.Remaining())

	// Decoded bytes never alias the input.
	out[0] = 0xFF
	assert.Equal(t, byte(0x12), buf[0])

	// An unaligned cursor straddles octet boundaries.
	r = NewReader([]byte{0x0F, 0xF0})
	_, err = r.ReadBits(4)
	require.NoError(t, err)
	out, err = r.ReadBytes(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, out)
}

// TestReader_Accounting tests the offset helpers
func TestReader_Accounting(t *testing.T) {
	r := NewReader([]byte{0xAA, 0xBB})

	assert.Equal(t, 0, r.Offset())
	assert.Equal(t, 2, r.Remaining())
	assert.Equal(t, 16, r.RemainingBits())
	assert.True(t, r.Aligned())

	_, err := r.ReadBits(9)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Offset())
	assert.Equal(t, 0, r.Remaining())
	assert.Equal(t, 7, r.RemainingBits())
	assert.False(t, r.Aligned())
}

// TestWriter_WriteBits tests MSB-first bit packing
func TestWriter_WriteBits(t *testing.T) {
	w := NewWriter()
	w.WriteBits(0b101, 3)
	w.WriteBits(0b10101, 5)
	w.WriteBits(0xA0, 8)

	assert.Equal(t, []byte{0xB5, 0xA0}, w.Bytes())
	assert.Equal(t, 16, w.Bits())
	assert.Equal(t, 2, w.Len())
}

// TestWriter_PartialOctet tests zero padding of a trailing partial octet
func TestWriter_PartialOctet(t *testing.T) {
	w := NewWriter()
	w.WriteBits(0b11, 2)

	assert.Equal(t, []byte{0xC0}, w.Bytes())
	assert.Equal(t, 2, w.Bits())
	assert.Equal(t, 1, w.Len())
}

// TestWriter_WriteBytes tests aligned and unaligned byte appends
func TestWriter_WriteBytes(t *testing.T) {
	w := NewWriter()
	w.WriteBytes([]byte{0x12, 0x34})
	assert.Equal(t, []byte{0x12, 0x34}, w.Bytes())

	w = NewWriter()
	w.WriteBits(0xF, 4)
	w.WriteBytes([]byte{0x0F})
	assert.Equal(t, []byte{0xF0, 0xF0}, w.Bytes())
}

// TestReaderWriterRoundTrip tests that the two agree on bit order
func TestReaderWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteBits(0x3, 2)
	w.WriteBits(0x1234, 16)
	w.WriteBits(0x5, 6)

	r := NewReader(w.Bytes())
	for _, want := range []struct {
		bits int
		v    uint64
	}{{2, 0x3}, {16, 0x1234}, {6, 0x5}} {
		got, err := r.ReadBits(want.bits)
		require.NoError(t, err)
		assert.Equal(t, want.v, got)
	}
}
