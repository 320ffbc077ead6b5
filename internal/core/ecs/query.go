package ecs

// Add attaches v to id, replacing any existing value of the same kind. The
// index entry moves with the new value and tracked kinds mark id as new.
// Indexed components must be changed through Add, never through the pointer
// returned by Get, or the index goes stale.
func Add[T Component](s *Store, id EntityID, v T) *T {
	col := columnOf[T](s)
	s.setBit(id, col.k)
	return col.set(id, v)
}

// Get returns id's value of kind T. Absence is a normal result.
func Get[T Component](s *Store, id EntityID) (*T, bool) {
	return columnOf[T](s).get(id)
}

func Has[T Component](s *Store, id EntityID) bool {
	return columnOf[T](s).has(id)
}

// Remove detaches kind T from id. No-op if absent.
func Remove[T Component](s *Store, id EntityID) {
	col := columnOf[T](s)
	if !col.has(id) {
		return
	}
	s.clearBit(id, col.k)
	col.remove(id)
}

// All lists the entities carrying T in ascending ID order.
func All[T Component](s *Store) []EntityID {
	return columnOf[T](s).ids()
}

// Count is the number of entities carrying T.
func Count[T Component](s *Store) int {
	return columnOf[T](s).count()
}

// GetAllByIndex returns the entities whose T maps to key, ascending. The
// slice is a snapshot: callers may mutate the store while walking it.
func GetAllByIndex[T Component](s *Store, key any) []EntityID {
	col := columnOf[T](s)
	if col.index == nil {
		panic("ecs: " + col.spec.Name + " is not an indexed kind")
	}
	return col.lookup(key)
}

// GetAllNew returns the entities T was attached to since the last ClearNew.
// Several systems may read the set; exactly one owns clearing it.
func GetAllNew[T Component](s *Store) []EntityID {
	col := columnOf[T](s)
	if col.fresh == nil {
		panic("ecs: " + col.spec.Name + " is not a tracked kind")
	}
	return col.freshIDs()
}

func ClearNew[T Component](s *Store) {
	col := columnOf[T](s)
	clear(col.fresh)
}

// MarkNew flags id as new for T without touching its value. No-op if id
// lacks T.
func MarkNew[T Component](s *Store, id EntityID) {
	col := columnOf[T](s)
	if col.fresh != nil && col.has(id) {
		col.fresh[id] = struct{}{}
	}
}

// OnRemove subscribes fn to removals of T, including removals done by
// Destroy. fn receives the value that was removed.
func OnRemove[T Component](s *Store, fn func(EntityID, T)) {
	col := columnOf[T](s)
	col.onRemove = append(col.onRemove, fn)
}

// Each2 iterates, in ascending ID order, over entities that have both A and
// B. It walks the smaller column and probes the larger one.
func Each2[A, B Component](s *Store, fn func(EntityID, *A, *B)) {
	ca, cb := columnOf[A](s), columnOf[B](s)
	if ca.count() <= cb.count() {
		for _, id := range ca.ids() {
			a, okA := ca.get(id)
			b, okB := cb.get(id)
			if okA && okB {
				fn(id, a, b)
			}
		}
		return
	}
	for _, id := range cb.ids() {
		a, okA := ca.get(id)
		b, okB := cb.get(id)
		if okA && okB {
			fn(id, a, b)
		}
	}
}
