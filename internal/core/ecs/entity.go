package ecs

import (
	"fmt"

	"github.com/tetrarogue/sim/internal/core/save"
)

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
// The zero ID is never handed out.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

func (id EntityID) String() string {
	return fmt.Sprintf("#%d.%d", id.Index(), id.Generation())
}

// ReservedIDs is the size of the index range kept for special entities.
// Index 0 is the null entity; indices 1..ReservedIDs-1 are available to
// RegisterSpecial and are never allocated by Create or recycled.
const ReservedIDs = 64

// SpecialID returns the fixed ID for reserved slot n (1 ≤ n < ReservedIDs).
func SpecialID(n uint32) EntityID {
	return NewEntityID(n, 0)
}

// EntityPool manages entity allocation with generational indices and a free list.
type EntityPool struct {
	generations []uint32
	live        []bool
	freeList    []uint32
	nextIndex   uint32
}

func NewEntityPool() *EntityPool {
	p := &EntityPool{
		generations: make([]uint32, ReservedIDs, 1024),
		live:        make([]bool, ReservedIDs, 1024),
		freeList:    make([]uint32, 0, 256),
		nextIndex:   ReservedIDs,
	}
	return p
}

func (p *EntityPool) Create() EntityID {
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		p.live[idx] = true
		return NewEntityID(idx, p.generations[idx])
	}
	idx := p.nextIndex
	p.nextIndex++
	p.grow(idx)
	p.live[idx] = true
	return NewEntityID(idx, p.generations[idx])
}

func (p *EntityPool) grow(idx uint32) {
	for int(idx) >= len(p.generations) {
		p.generations = append(p.generations, 0)
		p.live = append(p.live, false)
	}
}

// Reserve marks a special ID as live. It reports false if the ID lies outside
// the reserved range.
func (p *EntityPool) Reserve(id EntityID) bool {
	idx := id.Index()
	if idx == 0 || idx >= ReservedIDs {
		return false
	}
	p.generations[idx] = id.Generation()
	p.live[idx] = true
	return true
}

func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if int(idx) >= len(p.generations) || idx == 0 {
		return false
	}
	return p.live[idx] && p.generations[idx] == id.Generation()
}

func (p *EntityPool) Destroy(id EntityID) {
	if !p.Alive(id) {
		return // already destroyed (stale reference)
	}
	idx := id.Index()
	p.live[idx] = false
	if idx < ReservedIDs {
		return
	}
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
}

func (p *EntityPool) Save(e *save.Encoder) {
	gens := make([]uint64, len(p.generations))
	for i, g := range p.generations {
		gens[i] = uint64(g)
	}
	free := make([]uint64, len(p.freeList))
	for i, f := range p.freeList {
		free[i] = uint64(f)
	}
	e.Uint64("next", uint64(p.nextIndex))
	e.Uint64s("generations", gens)
	e.Uint64s("free", free)
}

// Load restores allocator state. Liveness is restored separately, per
// entity, with markLive.
func (p *EntityPool) Load(d *save.Decoder) {
	var next uint64
	var gens, free []uint64
	d.Uint64("next", &next)
	d.Uint64s("generations", &gens)
	d.Uint64s("free", &free)
	if next < ReservedIDs || uint64(len(gens)) < next {
		d.Fail("next", fmt.Errorf("inconsistent pool: next=%d generations=%d", next, len(gens)))
		return
	}
	p.nextIndex = uint32(next)
	p.generations = make([]uint32, len(gens))
	p.live = make([]bool, len(gens))
	for i, g := range gens {
		p.generations[i] = uint32(g)
	}
	p.freeList = p.freeList[:0]
	for _, f := range free {
		if f >= next {
			d.Fail("free", fmt.Errorf("free index %d beyond next %d", f, next))
			return
		}
		p.freeList = append(p.freeList, uint32(f))
	}
}

func (p *EntityPool) markLive(id EntityID) bool {
	idx := id.Index()
	if idx == 0 || int(idx) >= len(p.generations) || p.generations[idx] != id.Generation() {
		return false
	}
	p.live[idx] = true
	return true
}
