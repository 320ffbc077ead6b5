package world

import (
	"fmt"

	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/core/ecs"
)

// CanStack reports whether a may merge into b: both are Stackable, carry the
// same kinds apart from Pos, and hold equal values for every kind except Pos
// and Stackable.
func (w *World) CanStack(a, b ecs.EntityID) bool {
	if a == b {
		return false
	}
	if !ecs.Has[component.Stackable](w.Store, a) || !ecs.Has[component.Stackable](w.Store, b) {
		return false
	}
	return w.Store.SameComponents(a, b, component.KindPos, component.KindStackable)
}

// StackObjs adds a's count to b and destroys a. Returns b.
func (w *World) StackObjs(a, b ecs.EntityID) ecs.EntityID {
	sa, okA := ecs.Get[component.Stackable](w.Store, a)
	sb, okB := ecs.Get[component.Stackable](w.Store, b)
	if !okA || !okB {
		panic(fmt.Sprintf("world: stacking %v into %v without Stackable", a, b))
	}
	sb.Count += sa.Count
	w.Store.Destroy(a)
	return b
}

// SplitStack takes n items off a. When n covers the whole stack a itself is
// returned; otherwise a new entity cloned from a holds n and a keeps the
// rest. n must be at least 1.
func (w *World) SplitStack(a ecs.EntityID, n int) ecs.EntityID {
	if n < 1 {
		panic(fmt.Sprintf("world: split of %d from %v", n, a))
	}
	st, ok := ecs.Get[component.Stackable](w.Store, a)
	if !ok || n >= st.Count {
		return a
	}
	st.Count -= n
	part := w.Store.Clone(a)
	ecs.Add(w.Store, part, component.Stackable{Count: n})
	return part
}

// StackCount is the number of items id represents: its Stackable count, or 1.
func (w *World) StackCount(id ecs.EntityID) int {
	if st, ok := ecs.Get[component.Stackable](w.Store, id); ok {
		return st.Count
	}
	return 1
}
