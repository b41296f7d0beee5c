package spec

import "fmt"

// SchemaError reports a malformed declarative definition. Detected at
// compile time; compilation aborts on the first schema error and nothing
// is silently repaired.
type SchemaError struct {
	Item   string
	Title  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("schema error in item %s (%s): %s", e.Item, e.Title, e.Reason)
	}
	return "schema error: " + e.Reason
}

// AlignmentError reports a Fixed or Group layout whose cumulative bit
// size is not a multiple of eight. It unwraps to a SchemaError so callers
// can match either type.
type AlignmentError struct {
	Item  string
	Title string
	Bits  int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("bit alignment error in item %s (%s): %d bits, expected multiple of 8", e.Item, e.Title, e.Bits)
}

// Unwrap makes errors.As(err, &schemaErr) match alignment failures.
func (e *AlignmentError) Unwrap() error {
	return &SchemaError{
		Item:   e.Item,
		Title:  e.Title,
		Reason: fmt.Sprintf("%d bits is not a multiple of 8", e.Bits),
	}
}

// UnknownCategoryError reports a lookup for a category number with no
// compiled definition in the registry.
type UnknownCategoryError struct {
	Category uint8
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %d: no compiled definition", e.Category)
}
