package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"goasterix/internal/spec"
)

// DataBlock is one decoded ASTERIX data block: a category octet, the
// declared inclusive length and the records the block carried.
type DataBlock struct {
	Category uint8
	Len      int
	Records  []*Record
}

// EncodeDataBlock frames the given records into one data block:
// category octet, big-endian inclusive length, record bodies.
func (c *Codec) EncodeDataBlock(records ...[]Field) ([]byte, error) {
	var body []byte
	for i, fields := range records {
		b, err := c.EncodeRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		body = append(body, b...)
	}
	total := len(body) + 3
	if total > math.MaxUint16 {
		return nil, &RangeError{Field: "LEN", Value: float64(total), Min: 3, Max: math.MaxUint16}
	}
	out := make([]byte, 3, total)
	out[0] = c.cat.Number
	binary.BigEndian.PutUint16(out[1:3], uint16(total))
	return append(out, body...), nil
}

// DecodeDataBlock decodes one data block from the start of buf and
// reports how many octets it consumed. When a record fails to decode,
// the records decoded before it are returned alongside the error.
func (c *Codec) DecodeDataBlock(buf []byte) (*DataBlock, int, error) {
	if len(buf) < 3 {
		return nil, 0, &TruncatedInputError{Want: 3, Have: len(buf), What: "data block header"}
	}
	if buf[0] != c.cat.Number {
		return nil, 0, fmt.Errorf("data block category %d, codec compiled for %d", buf[0], c.cat.Number)
	}
	ln := int(binary.BigEndian.Uint16(buf[1:3]))
	if ln < 3 {
		return nil, 0, fmt.Errorf("data block length %d shorter than its own header", ln)
	}
	if ln > len(buf) {
		return nil, 0, &TruncatedInputError{Offset: 1, Want: ln, Have: len(buf), What: "data block"}
	}

	block := &DataBlock{Category: buf[0], Len: ln}
	offset := 3
	for offset < ln {
		rec, n, err := c.DecodeRecord(buf[offset:ln])
		if err != nil {
			return block, offset, fmt.Errorf("record %d at offset %d: %w", len(block.Records)+1, offset, err)
		}
		block.Records = append(block.Records, rec)
		offset += n
	}
	return block, offset, nil
}

// DecodeBlocks decodes consecutive data blocks from buf until it is
// exhausted, resolving each block's category through the registry.
// Blocks decoded before a failure are returned alongside the error.
func DecodeBlocks(reg *spec.Registry, logger *logrus.Logger, lenient bool, buf []byte) ([]*DataBlock, error) {
	var blocks []*DataBlock
	offset := 0
	for offset < len(buf) {
		if len(buf)-offset < 3 {
			return blocks, &TruncatedInputError{Offset: offset, Want: 3, Have: len(buf) - offset, What: "data block header"}
		}
		cat, err := reg.Category(buf[offset])
		if err != nil {
			return blocks, fmt.Errorf("block at offset %d: %w", offset, err)
		}
		block, n, err := New(cat, logger, lenient).DecodeDataBlock(buf[offset:])
		if err != nil {
			if block != nil && len(block.Records) > 0 {
				blocks = append(blocks, block)
			}
			return blocks, fmt.Errorf("block at offset %d: %w", offset, err)
		}
		blocks = append(blocks, block)
		offset += n
	}
	return blocks, nil
}
