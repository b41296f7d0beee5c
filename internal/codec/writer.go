package codec

// Writer builds an output buffer bit by bit, MSB-first within each
// octet. Writes always succeed; the buffer grows as needed.
type Writer struct {
	buf  []byte
	bits int
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteBits appends the low n bits of v, most significant first.
func (w *Writer) WriteBits(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.bits%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 != 0 {
			w.buf[len(w.buf)-1] |= 1 << uint(7-w.bits%8)
		}
		w.bits++
	}
}

// WriteBytes appends p.
func (w *Writer) WriteBytes(p []byte) {
	if w.bits%8 == 0 {
		w.buf = append(w.buf, p...)
		w.bits += 8 * len(p)
		return
	}
	for _, b := range p {
		w.WriteBits(uint64(b), 8)
	}
}

// Len returns the number of whole or partial bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Bits returns the number of bits written so far.
func (w *Writer) Bits() int {
	return w.bits
}

// Bytes returns the written buffer. A trailing partial octet is
// zero-padded in its low bits.
func (w *Writer) Bytes() []byte {
	return w.buf
}
