package ecs

import (
	"fmt"
	"slices"

	"github.com/tetrarogue/sim/internal/core/save"
	"gopkg.in/yaml.v3"
)

// Component is implemented by every value stored in a Store. Kind must be a
// constant per type; Save writes the value's fields.
type Component interface {
	Kind() Kind
	save.Saver
}

// Spec describes how a kind is stored.
type Spec[T any] struct {
	// Name is the stable identifier written to save files.
	Name string
	// Dense selects slice storage indexed by entity index instead of a map.
	// Use it for kinds most entities carry.
	Dense bool
	// Tracked kinds keep a "new" set of entities the kind was attached to.
	Tracked bool
	// Index, when set, maintains a reverse lookup from the returned key to
	// the entities carrying the kind. Keys must be comparable.
	Index func(*T) any
	// Equal compares two values for stacking. Nil compares saved forms.
	Equal func(a, b *T) bool
	// Clone copies a value for Store.Clone. Nil makes a shallow copy.
	Clone func(*T) T
}

// Comparable returns an Equal func for types usable with ==.
func Comparable[T comparable]() func(a, b *T) bool {
	return func(a, b *T) bool { return *a == *b }
}

// storage is the per-kind container behind a column.
type storage[T any] interface {
	get(id EntityID) (*T, bool)
	put(id EntityID, c *T)
	del(id EntityID)
	len() int
	each(fn func(EntityID, *T))
}

// sparseStorage is a generic typed map store. No reflect, no interface{}.
type sparseStorage[T any] struct {
	data map[EntityID]*T
}

func newSparseStorage[T any]() *sparseStorage[T] {
	return &sparseStorage[T]{data: make(map[EntityID]*T, 256)}
}

func (s *sparseStorage[T]) get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *sparseStorage[T]) put(id EntityID, c *T) { s.data[id] = c }
func (s *sparseStorage[T]) del(id EntityID)       { delete(s.data, id) }
func (s *sparseStorage[T]) len() int              { return len(s.data) }

func (s *sparseStorage[T]) each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

// denseStorage keeps one slot per entity index; the stored ID guards against
// stale generations.
type denseStorage[T any] struct {
	ids   []EntityID
	vals  []*T
	count int
}

func newDenseStorage[T any]() *denseStorage[T] {
	return &denseStorage[T]{
		ids:  make([]EntityID, 0, 1024),
		vals: make([]*T, 0, 1024),
	}
}

func (s *denseStorage[T]) get(id EntityID) (*T, bool) {
	idx := int(id.Index())
	if idx >= len(s.vals) || s.ids[idx] != id || s.vals[idx] == nil {
		return nil, false
	}
	return s.vals[idx], true
}

func (s *denseStorage[T]) put(id EntityID, c *T) {
	idx := int(id.Index())
	for idx >= len(s.vals) {
		s.ids = append(s.ids, 0)
		s.vals = append(s.vals, nil)
	}
	if s.vals[idx] == nil || s.ids[idx] != id {
		s.count++
	}
	s.ids[idx] = id
	s.vals[idx] = c
}

func (s *denseStorage[T]) del(id EntityID) {
	idx := int(id.Index())
	if idx >= len(s.vals) || s.ids[idx] != id || s.vals[idx] == nil {
		return
	}
	s.vals[idx] = nil
	s.ids[idx] = 0
	s.count--
}

func (s *denseStorage[T]) len() int { return s.count }

func (s *denseStorage[T]) each(fn func(EntityID, *T)) {
	for i, v := range s.vals {
		if v != nil {
			fn(s.ids[i], v)
		}
	}
}

// column is the type-erased view the Store uses for bulk operations.
type column interface {
	kind() Kind
	name() string
	has(id EntityID) bool
	count() int
	addAny(id EntityID, c Component)
	remove(id EntityID)
	saveOne(id EntityID, e *save.Encoder)
	loadOne(id EntityID, d *save.Decoder)
	cloneOne(src, dst EntityID)
	equal(a, b EntityID) bool
	ids() []EntityID
	freshIDs() []EntityID
	restoreFresh(ids []EntityID)
	tracked() bool
}

// Column holds every value of one kind plus its optional index and "new" set.
type Column[T Component] struct {
	k        Kind
	spec     Spec[T]
	data     storage[T]
	index    map[any]map[EntityID]struct{}
	fresh    map[EntityID]struct{}
	onRemove []func(EntityID, T)
	load     func(*T, *save.Decoder)
}

func newColumn[T Component](spec Spec[T], load func(*T, *save.Decoder)) *Column[T] {
	var zero T
	c := &Column[T]{k: zero.Kind(), spec: spec, load: load}
	if spec.Dense {
		c.data = newDenseStorage[T]()
	} else {
		c.data = newSparseStorage[T]()
	}
	if spec.Index != nil {
		c.index = make(map[any]map[EntityID]struct{})
	}
	if spec.Tracked {
		c.fresh = make(map[EntityID]struct{})
	}
	return c
}

func (c *Column[T]) kind() Kind   { return c.k }
func (c *Column[T]) name() string { return c.spec.Name }
func (c *Column[T]) count() int   { return c.data.len() }
func (c *Column[T]) tracked() bool {
	return c.fresh != nil
}

func (c *Column[T]) has(id EntityID) bool {
	_, ok := c.data.get(id)
	return ok
}

func (c *Column[T]) get(id EntityID) (*T, bool) {
	return c.data.get(id)
}

func (c *Column[T]) set(id EntityID, v T) *T {
	if old, ok := c.data.get(id); ok {
		c.unindex(id, old)
	}
	p := &v
	c.data.put(id, p)
	if c.index != nil {
		key := c.spec.Index(p)
		set, ok := c.index[key]
		if !ok {
			set = make(map[EntityID]struct{})
			c.index[key] = set
		}
		set[id] = struct{}{}
	}
	if c.fresh != nil {
		c.fresh[id] = struct{}{}
	}
	return p
}

func (c *Column[T]) unindex(id EntityID, v *T) {
	if c.index == nil {
		return
	}
	key := c.spec.Index(v)
	if set, ok := c.index[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(c.index, key)
		}
	}
}

func (c *Column[T]) addAny(id EntityID, comp Component) {
	v, ok := comp.(T)
	if !ok {
		panic(fmt.Sprintf("ecs: %T passed for kind %q", comp, c.spec.Name))
	}
	c.set(id, v)
}

func (c *Column[T]) remove(id EntityID) {
	old, ok := c.data.get(id)
	if !ok {
		return
	}
	c.unindex(id, old)
	c.data.del(id)
	if c.fresh != nil {
		delete(c.fresh, id)
	}
	for _, fn := range c.onRemove {
		fn(id, *old)
	}
}

func (c *Column[T]) saveOne(id EntityID, e *save.Encoder) {
	if v, ok := c.data.get(id); ok {
		(*v).Save(e)
	}
}

func (c *Column[T]) loadOne(id EntityID, d *save.Decoder) {
	var v T
	c.load(&v, d)
	c.set(id, v)
}

func (c *Column[T]) cloneOne(src, dst EntityID) {
	v, ok := c.data.get(src)
	if !ok {
		return
	}
	if c.spec.Clone != nil {
		c.set(dst, c.spec.Clone(v))
		return
	}
	c.set(dst, *v)
}

func (c *Column[T]) equal(a, b EntityID) bool {
	va, okA := c.data.get(a)
	vb, okB := c.data.get(b)
	if !okA || !okB {
		return okA == okB
	}
	if c.spec.Equal != nil {
		return c.spec.Equal(va, vb)
	}
	ea, eb := save.NewEncoder(), save.NewEncoder()
	(*va).Save(ea)
	(*vb).Save(eb)
	return nodesEqual(ea.Node(), eb.Node())
}

func (c *Column[T]) ids() []EntityID {
	out := make([]EntityID, 0, c.data.len())
	c.data.each(func(id EntityID, _ *T) { out = append(out, id) })
	slices.Sort(out)
	return out
}

func (c *Column[T]) lookup(key any) []EntityID {
	set := c.index[key]
	out := make([]EntityID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (c *Column[T]) freshIDs() []EntityID {
	out := make([]EntityID, 0, len(c.fresh))
	for id := range c.fresh {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (c *Column[T]) restoreFresh(ids []EntityID) {
	clear(c.fresh)
	for _, id := range ids {
		if c.has(id) {
			c.fresh[id] = struct{}{}
		}
	}
}

func nodesEqual(a, b *yaml.Node) bool {
	if a.Kind != b.Kind || a.Value != b.Value || len(a.Content) != len(b.Content) {
		return false
	}
	for i := range a.Content {
		if !nodesEqual(a.Content[i], b.Content[i]) {
			return false
		}
	}
	return true
}
