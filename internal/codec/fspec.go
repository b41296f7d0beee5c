package codec

import "fmt"

// maxFSPECOctets bounds the FX chain walk so a buffer of all-FX octets
// cannot produce an absurd FRN set.
const maxFSPECOctets = 100

// EncodeFSPEC builds the variable-length presence bitmap for a set of
// FRNs. Each octet carries seven presence bits (bits 8..2) and the FX
// extension bit (bit 1), which is set on every octet except the last.
// An empty set encodes as a single all-zero octet.
func EncodeFSPEC(frns []int) ([]byte, error) {
	maxFRN := 0
	for _, frn := range frns {
		if frn < 1 {
			return nil, fmt.Errorf("invalid FRN %d: FRNs are 1-based", frn)
		}
		if frn > maxFRN {
			maxFRN = frn
		}
	}
	if maxFRN == 0 {
		return []byte{0x00}, nil
	}

	octets := make([]byte, (maxFRN-1)/7+1)
	for _, frn := range frns {
		octets[(frn-1)/7] |= 1 << uint(7-(frn-1)%7)
	}
	for i := 0; i < len(octets)-1; i++ {
		octets[i] |= 0x01
	}
	return octets, nil
}

// DecodeFSPEC reads the presence bitmap at the start of buf. It walks
// octets while the FX bit is set and stops at the first octet with FX
// clear, returning the present FRNs in ascending order and the number of
// bytes consumed. Empty or truncated input fails with
// TruncatedInputError.
func DecodeFSPEC(buf []byte) ([]int, int, error) {
	return readFSPEC(NewReader(buf))
}

func readFSPEC(r *Reader) ([]int, int, error) {
	if r.Remaining() == 0 {
		return nil, 0, &TruncatedInputError{
			Offset: r.Offset(),
			Want:   1,
			Have:   0,
			What:   "FSPEC",
		}
	}

	var frns []int
	consumed := 0
	for octet := 0; ; octet++ {
		if octet >= maxFSPECOctets {
			return nil, consumed, fmt.Errorf("FSPEC longer than %d octets", maxFSPECOctets)
		}
		if r.Remaining() == 0 {
			return nil, consumed, &TruncatedInputError{
				Offset: r.Offset(),
				Want:   1,
				Have:   0,
				What:   "FSPEC",
			}
		}
		b, err := r.ReadByte()
		if err != nil {
			return nil, consumed, err
		}
		consumed++

		for bit := 0; bit < 7; bit++ {
			if b&(1<<uint(7-bit)) != 0 {
				frns = append(frns, octet*7+bit+1)
			}
		}
		if b&0x01 == 0 {
			break
		}
	}
	return frns, consumed, nil
}

// EncodeFixedFSPEC packs presence bits for exactly slots positions with
// no FX chaining: all eight bits of each octet are presence bits and the
// result is ceil(slots/8) octets. Used by Compound items that declare a
// fixed FSPEC length.
func EncodeFixedFSPEC(frns []int, slots int) ([]byte, error) {
	octets := make([]byte, (slots+7)/8)
	for _, frn := range frns {
		if frn < 1 || frn > slots {
			return nil, fmt.Errorf("FRN %d outside fixed FSPEC of %d slots", frn, slots)
		}
		octets[(frn-1)/8] |= 1 << uint(7-(frn-1)%8)
	}
	return octets, nil
}

// DecodeFixedFSPEC reads a fixed-length presence bitmap of exactly
// ceil(slots/8) octets with no FX bit.
func DecodeFixedFSPEC(buf []byte, slots int) ([]int, int, error) {
	return readFixedFSPEC(NewReader(buf), slots)
}

func readFixedFSPEC(r *Reader, slots int) ([]int, int, error) {
	n := (slots + 7) / 8
	octets, err := r.ReadBytes(n)
	if err != nil {
		return nil, 0, &TruncatedInputError{
			Offset: r.Offset(),
			Want:   n,
			Have:   r.Remaining(),
			What:   "fixed FSPEC",
		}
	}
	var frns []int
	for i := 1; i <= slots; i++ {
		if octets[(i-1)/8]&(1<<uint(7-(i-1)%8)) != 0 {
			frns = append(frns, i)
		}
	}
	return frns, n, nil
}
