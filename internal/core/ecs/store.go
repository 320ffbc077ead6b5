package ecs

import (
	"fmt"
	"slices"

	"github.com/tetrarogue/sim/internal/core/save"
	"go.uber.org/zap"
)

// Store is the top-level entity container. It owns the entity pool, the
// component registry, each entity's kind mask and a deferred destruction
// queue flushed by the cleanup system each tick.
//
// A Store is confined to the simulation goroutine; it does no locking.
type Store struct {
	pool         *EntityPool
	registry     *Registry
	masks        map[EntityID]Mask
	destroyQueue []EntityID
	log          *zap.Logger
}

func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		masks:        make(map[EntityID]Mask, 1024),
		destroyQueue: make([]EntityID, 0, 64),
		log:          log,
	}
}

func (s *Store) Pool() *EntityPool   { return s.pool }
func (s *Store) Registry() *Registry { return s.registry }

// CreateObj allocates an entity and attaches cs in one step.
func (s *Store) CreateObj(cs ...Component) EntityID {
	id := s.pool.Create()
	s.masks[id] = Mask{}
	s.attach(id, cs)
	return id
}

// RegisterSpecial installs an entity under a fixed ID from the reserved range
// so the same ID names it after a reload. Registering an already live special
// overwrites the given components.
func (s *Store) RegisterSpecial(id EntityID, cs ...Component) {
	if !s.pool.Alive(id) {
		if !s.pool.Reserve(id) {
			panic(fmt.Sprintf("ecs: %v is outside the reserved range", id))
		}
		s.masks[id] = Mask{}
	}
	s.attach(id, cs)
}

func (s *Store) attach(id EntityID, cs []Component) {
	m := s.masks[id]
	for _, c := range cs {
		k := c.Kind()
		col := s.registry.columns[k]
		if col == nil {
			panic(fmt.Sprintf("ecs: component %T (kind %d) is not registered", c, k))
		}
		col.addAny(id, c)
		m.Set(k)
	}
	s.masks[id] = m
}

func (s *Store) Alive(id EntityID) bool {
	return s.pool.Alive(id)
}

// Mask returns the kinds attached to id; zero for dead entities.
func (s *Store) Mask(id EntityID) Mask {
	return s.masks[id]
}

// Len is the number of live entities.
func (s *Store) Len() int { return len(s.masks) }

// Entities lists every live entity in ascending ID order.
func (s *Store) Entities() []EntityID {
	out := make([]EntityID, 0, len(s.masks))
	for id := range s.masks {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Destroy removes every component of id, its index entries and the entity
// itself. Destroying a dead entity is a no-op.
func (s *Store) Destroy(id EntityID) {
	m, ok := s.masks[id]
	if !ok {
		return
	}
	delete(s.masks, id)
	s.registry.RemoveAll(id, m)
	s.pool.Destroy(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (s *Store) MarkForDestruction(id EntityID) {
	if slices.Contains(s.destroyQueue, id) {
		return
	}
	s.destroyQueue = append(s.destroyQueue, id)
}

// FlushDestroyQueue destroys all queued entities and clears their components.
// Called by CleanupSystem at the end of each tick.
func (s *Store) FlushDestroyQueue() int {
	n := len(s.destroyQueue)
	for _, id := range s.destroyQueue {
		s.Destroy(id)
	}
	s.destroyQueue = s.destroyQueue[:0]
	return n
}

// Clone creates a new entity carrying a copy of every component of src.
func (s *Store) Clone(src EntityID) EntityID {
	m, ok := s.masks[src]
	if !ok {
		return 0
	}
	dst := s.pool.Create()
	for _, k := range m.Kinds() {
		s.registry.columns[k].cloneOne(src, dst)
	}
	s.masks[dst] = m
	return dst
}

// SameComponents reports whether a and b carry the same kinds and equal
// values, ignoring the listed kinds entirely.
func (s *Store) SameComponents(a, b EntityID, ignore ...Kind) bool {
	ma, okA := s.masks[a]
	mb, okB := s.masks[b]
	if !okA || !okB {
		return false
	}
	ma, mb = ma.Without(ignore...), mb.Without(ignore...)
	if ma != mb {
		return false
	}
	for _, k := range ma.Kinds() {
		if !s.registry.columns[k].equal(a, b) {
			return false
		}
	}
	return true
}

func (s *Store) setBit(id EntityID, k Kind) {
	m, ok := s.masks[id]
	if !ok {
		panic(fmt.Sprintf("ecs: component added to dead entity %v", id))
	}
	m.Set(k)
	s.masks[id] = m
}

func (s *Store) clearBit(id EntityID, k Kind) {
	if m, ok := s.masks[id]; ok {
		m.Clear(k)
		s.masks[id] = m
	}
}

// Verify panics if any entity's mask disagrees with column contents.
func (s *Store) Verify() {
	for _, k := range s.registry.order {
		col := s.registry.columns[k]
		for _, id := range col.ids() {
			if !s.masks[id].Has(k) {
				panic(fmt.Sprintf("ecs: %v holds %s but its mask does not", id, col.name()))
			}
		}
	}
	for id, m := range s.masks {
		if !s.pool.Alive(id) {
			panic(fmt.Sprintf("ecs: %v has a mask but is not alive", id))
		}
		for _, k := range m.Kinds() {
			col := s.registry.columns[k]
			if col == nil || !col.has(id) {
				panic(fmt.Sprintf("ecs: %v mask has kind %d without storage", id, k))
			}
		}
	}
}

// Decode attaches the components in d to a live entity. d maps kind names
// to saved fields, the same shape Save writes under "components". Unknown
// names fail the decoder.
func (s *Store) Decode(id EntityID, d *save.Decoder) {
	if !s.Alive(id) {
		d.Fail("components", fmt.Errorf("entity %v is not alive", id))
		return
	}
	d.Entries(func(name string, vd *save.Decoder) {
		k, ok := s.registry.Lookup(name)
		if !ok {
			d.Fail(name, fmt.Errorf("unknown component"))
			return
		}
		s.registry.columns[k].loadOne(id, vd)
		s.setBit(id, k)
	})
}

// Save writes the allocator, every entity with its components keyed by kind
// name, and the pending "new" sets.
func (s *Store) Save(e *save.Encoder) {
	e.Value("pool", s.pool)
	ids := s.Entities()
	e.List("things", len(ids), func(i int, te *save.Encoder) {
		id := ids[i]
		te.Uint64("id", uint64(id))
		te.Object("components", func(ce *save.Encoder) {
			for _, k := range s.masks[id].Kinds() {
				col := s.registry.columns[k]
				ce.Object(col.name(), func(ve *save.Encoder) { col.saveOne(id, ve) })
			}
		})
	})
	e.Object("fresh", func(fe *save.Encoder) {
		for _, k := range s.registry.order {
			col := s.registry.columns[k]
			if !col.tracked() {
				continue
			}
			fresh := col.freshIDs()
			raw := make([]uint64, len(fresh))
			for i, id := range fresh {
				raw[i] = uint64(id)
			}
			fe.Uint64s(col.name(), raw)
		}
	})
}

// Load restores a store saved by Save. The store must have its kinds
// registered and hold no entities. Unknown kinds are skipped with a warning.
func (s *Store) Load(d *save.Decoder) {
	if len(s.masks) != 0 {
		d.Fail("things", fmt.Errorf("load into non-empty store"))
		return
	}
	d.Value("pool", s.pool)
	d.List("things", func(_ int, td *save.Decoder) {
		var raw uint64
		td.Uint64("id", &raw)
		id := EntityID(raw)
		if !s.pool.markLive(id) {
			td.Fail("id", fmt.Errorf("entity %v does not match pool state", id))
			return
		}
		s.masks[id] = Mask{}
		td.Object("components", func(cd *save.Decoder) {
			cd.Entries(func(name string, vd *save.Decoder) {
				k, ok := s.registry.Lookup(name)
				if !ok {
					s.log.Warn("skipping unknown component in save",
						zap.String("kind", name), zap.Stringer("entity", id))
					vd.SkipAll()
					return
				}
				s.registry.columns[k].loadOne(id, vd)
				s.setBit(id, k)
			})
		})
	})
	for _, k := range s.registry.order {
		if col := s.registry.columns[k]; col.tracked() {
			col.restoreFresh(nil)
		}
	}
	d.Object("fresh", func(fd *save.Decoder) {
		for _, k := range s.registry.order {
			col := s.registry.columns[k]
			if !col.tracked() {
				continue
			}
			var raw []uint64
			fd.Uint64s(col.name(), &raw)
			ids := make([]EntityID, len(raw))
			for i, r := range raw {
				ids[i] = EntityID(r)
			}
			col.restoreFresh(ids)
		}
	})
}
