package spec

import (
	"fmt"
	"sort"
)

// Registry is an immutable set of compiled categories keyed by category
// number. Build one at startup and share it freely; ASTs are never
// mutated after compilation.
type Registry struct {
	cats map[uint8]*Category
}

// NewRegistry builds a registry from compiled categories. Registering
// the same category number twice is an error.
func NewRegistry(cats ...*Category) (*Registry, error) {
	m := make(map[uint8]*Category, len(cats))
	for _, c := range cats {
		if _, dup := m[c.Number]; dup {
			return nil, fmt.Errorf("category %d registered twice", c.Number)
		}
		m[c.Number] = c
	}
	return &Registry{cats: m}, nil
}

// Category returns the compiled category for a number.
func (r *Registry) Category(number uint8) (*Category, error) {
	c, ok := r.cats[number]
	if !ok {
		return nil, &UnknownCategoryError{Category: number}
	}
	return c, nil
}

// Categories lists the registered categories in ascending number
// order.
func (r *Registry) Categories() []*Category {
	out := make([]*Category, 0, len(r.cats))
	for _, c := range r.cats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
