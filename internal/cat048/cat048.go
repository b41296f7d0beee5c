// Package cat048 carries the built-in definition of ASTERIX Category
// 048, Monoradar Target Reports, together with a typed view of the most
// common items of a report.
package cat048

import (
	_ "embed"
	"sync"

	"goasterix/internal/spec"
)

//go:embed cat048.yaml
var definition []byte

var (
	once       sync.Once
	compiled   *spec.Category
	compileErr error
)

// Category compiles the embedded CAT048 definition on first use and
// returns the shared immutable AST.
func Category() (*spec.Category, error) {
	once.Do(func() {
		compiled, compileErr = spec.ParseCategory(definition)
	})
	return compiled, compileErr
}

// Definition returns a copy of the embedded YAML definition.
func Definition() []byte {
	out := make([]byte, len(definition))
	copy(out, definition)
	return out
}
