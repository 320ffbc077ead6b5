package ecs

import (
	"fmt"

	"github.com/tetrarogue/sim/internal/core/save"
)

// Registry tracks all component columns by kind and by saved name, and
// supports bulk cleanup on entity destroy.
type Registry struct {
	columns [MaxKinds]column
	byName  map[string]Kind
	order   []Kind
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Kind, 16),
		order:  make([]Kind, 0, 16),
	}
}

func (r *Registry) register(c column) {
	k := c.kind()
	if r.columns[k] != nil {
		panic(fmt.Sprintf("ecs: kind %d registered twice (%q, %q)", k, r.columns[k].name(), c.name()))
	}
	if _, dup := r.byName[c.name()]; dup {
		panic(fmt.Sprintf("ecs: component name %q registered twice", c.name()))
	}
	r.columns[k] = c
	r.byName[c.name()] = k
	r.order = append(r.order, k)
}

// RemoveAll clears the given entity from every column its mask names.
func (r *Registry) RemoveAll(id EntityID, m Mask) {
	for _, k := range m.Kinds() {
		if c := r.columns[k]; c != nil {
			c.remove(id)
		}
	}
}

// Lookup returns the kind registered under a saved name.
func (r *Registry) Lookup(name string) (Kind, bool) {
	k, ok := r.byName[name]
	return k, ok
}

// Name returns the saved name of a kind, or "" if unregistered.
func (r *Registry) Name(k Kind) string {
	if c := r.columns[k]; c != nil {
		return c.name()
	}
	return ""
}

// Register adds a column for component type T. PT is inferred as *T and
// supplies the Load half of the save contract.
func Register[T Component, PT interface {
	*T
	save.Loader
}](s *Store, spec Spec[T]) {
	if spec.Name == "" {
		var zero T
		spec.Name = fmt.Sprintf("%T", zero)
	}
	s.registry.register(newColumn(spec, func(v *T, d *save.Decoder) { PT(v).Load(d) }))
}

func columnOf[T Component](s *Store) *Column[T] {
	var zero T
	c := s.registry.columns[zero.Kind()]
	col, ok := c.(*Column[T])
	if !ok {
		panic(fmt.Sprintf("ecs: component %T (kind %d) is not registered", zero, zero.Kind()))
	}
	return col
}
