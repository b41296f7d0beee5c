package codec

import "fmt"

// TruncatedInputError reports a buffer that ends before a declared item
// or FSPEC octet is fully consumed. Fatal for the current record only;
// records decoded earlier from the same data block are kept.
type TruncatedInputError struct {
	Offset int    // byte offset where the shortage was detected
	Want   int    // bytes needed
	Have   int    // bytes available
	What   string // what was being read, e.g. "FSPEC" or "I048/040"
}

func (e *TruncatedInputError) Error() string {
	return fmt.Sprintf("truncated input at offset %d: %s needs %d bytes, %d available",
		e.Offset, e.What, e.Want, e.Have)
}

// RangeError reports an encode value outside the representable range of
// its field width. Fatal for that field's encode call.
type RangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("value %g for %s out of range [%g, %g]",
		e.Value, e.Field, e.Min, e.Max)
}
