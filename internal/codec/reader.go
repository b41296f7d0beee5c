package codec

// Reader is a bit-level cursor over an input buffer. Reads advance
// MSB-first within each octet. A short read leaves the cursor unchanged
// and returns a TruncatedInputError, so the cursor never moves past the
// end of the buffer.
type Reader struct {
	data []byte
	pos  int // bit offset from the start of data
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{data: buf}
}

// Offset returns the byte offset of the cursor, rounded down when the
// cursor sits inside a byte.
func (r *Reader) Offset() int {
	return r.pos / 8
}

// Remaining returns the number of unread whole bytes.
func (r *Reader) Remaining() int {
	return (len(r.data)*8 - r.pos) / 8
}

// RemainingBits returns the number of unread bits.
func (r *Reader) RemainingBits() int {
	return len(r.data)*8 - r.pos
}

// Aligned reports whether the cursor sits on a byte boundary.
func (r *Reader) Aligned() bool {
	return r.pos%8 == 0
}

func (r *Reader) truncated(what string, wantBits int) error {
	return &TruncatedInputError{
		Offset: r.pos / 8,
		Want:   (r.pos%8 + wantBits + 7) / 8,
		Have:   len(r.data) - r.pos/8,
		What:   what,
	}
}

// ReadBits reads n bits (0..64) into the low bits of the result.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n > r.RemainingBits() {
		return 0, r.truncated("field", n)
	}
	var v uint64
	for i := 0; i < n; i++ {
		bit := (r.data[r.pos/8] >> uint(7-r.pos%8)) & 1
		v = v<<1 | uint64(bit)
		r.pos++
	}
	return v, nil
}

// ReadByte reads one octet. The cursor must be byte-aligned.
func (r *Reader) ReadByte() (byte, error) {
	v, err := r.ReadBits(8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

// ReadBytes reads n octets into a fresh slice, so decoded values never
// alias the input buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n*8 > r.RemainingBits() {
		return nil, r.truncated("field", n*8)
	}
	out := make([]byte, n)
	if r.Aligned() {
		copy(out, r.data[r.pos/8:r.pos/8+n])
		r.pos += n * 8
		return out, nil
	}
	for i := range out {
		v, _ := r.ReadBits(8)
		out[i] = byte(v)
	}
	return out, nil
}
