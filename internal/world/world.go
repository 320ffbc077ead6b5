// Package world holds the simulation state shared by actions and systems and
// the primitives that mutate it: the move routine, trigger dispatch, stacks
// and inventories.
package world

import (
	"fmt"

	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/event"
	"github.com/tetrarogue/sim/internal/geom"
	"go.uber.org/zap"
)

// WeightRule selects how an onWeight trigger computes the cell weight after
// a mover arrives.
type WeightRule uint8

const (
	// WeightSum adds the mover's weight to what was already in the cell.
	WeightSum WeightRule = iota
	// WeightLegacy keeps the old save-compatible formula: the new weight is
	// the mover's own weight whenever the cell or the mover weighed anything.
	WeightLegacy
)

func ParseWeightRule(s string) (WeightRule, error) {
	switch s {
	case "", "sum":
		return WeightSum, nil
	case "legacy":
		return WeightLegacy, nil
	}
	return 0, fmt.Errorf("unknown weight rule %q", s)
}

// Options configures a World.
type Options struct {
	// Bounds limits the playable space. Cells below Max[0] are solid ground.
	Bounds     geom.Region
	WeightRule WeightRule
}

// World bundles the store with the notification bus and the trigger effect
// table. Accessed only from the simulation goroutine.
type World struct {
	Store *ecs.Store
	Bus   *event.Bus

	log        *zap.Logger
	bounds     geom.Region
	weightRule WeightRule
	effects    map[component.Effect]EffectFunc
}

// New wraps store. Component kinds must already be registered.
func New(store *ecs.Store, bus *event.Bus, log *zap.Logger, opts Options) *World {
	if log == nil {
		log = zap.NewNop()
	}
	w := &World{
		Store:      store,
		Bus:        bus,
		log:        log,
		bounds:     opts.Bounds,
		weightRule: opts.WeightRule,
		effects:    make(map[component.Effect]EffectFunc),
	}
	w.RegisterEffect(component.EffectRemove, effectRemove)
	w.RegisterEffect(component.EffectRelease, effectRelease)
	w.RegisterEffect(component.EffectSpawn, effectSpawn)
	return w
}

func (w *World) Log() *zap.Logger { return w.log }

func (w *World) Bounds() geom.Region { return w.bounds }

// SetBounds replaces the playable region, e.g. after loading a level.
func (w *World) SetBounds(r geom.Region) { w.bounds = r }

// InBounds reports whether v lies inside the playable region. An empty
// region is unbounded.
func (w *World) InBounds(v geom.Vec) bool {
	return w.bounds.Empty() || w.bounds.Contains(v)
}

// BelowFloor reports whether v lies under the bottom of the world.
func (w *World) BelowFloor(v geom.Vec) bool {
	return !w.bounds.Empty() && v[0] > w.bounds.Max[0]
}

// At returns a snapshot of the entities at v.
func (w *World) At(v geom.Vec) []ecs.EntityID {
	return ecs.GetAllByIndex[component.Pos](w.Store, v)
}

// PosOf returns id's cell.
func (w *World) PosOf(id ecs.EntityID) (geom.Vec, bool) {
	p, ok := ecs.Get[component.Pos](w.Store, id)
	if !ok {
		return geom.Vec{}, false
	}
	return p.V, true
}

// Blocked reports whether an obstacle occupies v.
func (w *World) Blocked(v geom.Vec) bool {
	for _, id := range w.At(v) {
		if ecs.Has[component.BlocksMovement](w.Store, id) {
			return true
		}
	}
	return false
}

// WeightOf is the total weight an entity puts on its cell: its Weight times
// its stack count.
func (w *World) WeightOf(id ecs.EntityID) int {
	wt, ok := ecs.Get[component.Weight](w.Store, id)
	if !ok {
		return 0
	}
	if st, ok := ecs.Get[component.Stackable](w.Store, id); ok {
		return wt.Value * st.Count
	}
	return wt.Value
}

// CellWeight sums WeightOf over every entity at v.
func (w *World) CellWeight(v geom.Vec) int {
	total := 0
	for _, id := range w.At(v) {
		total += w.WeightOf(id)
	}
	return total
}

// NameOf returns a display name for logs and messages.
func (w *World) NameOf(id ecs.EntityID) string {
	if n, ok := ecs.Get[component.Name](w.Store, id); ok && n.Name != "" {
		return n.Name
	}
	return id.String()
}

// Damage subtracts n hit points from a Mortal. A Mortal brought to zero is
// queued for destruction and reported dead. Returns false when id is not
// Mortal.
func (w *World) Damage(id ecs.EntityID, n int) bool {
	m, ok := ecs.Get[component.Mortal](w.Store, id)
	if !ok || m.HP <= 0 {
		return false
	}
	m.HP -= n
	w.log.Debug("damage",
		zap.String("target", w.NameOf(id)), zap.Int("amount", n), zap.Int("hp", m.HP))
	if m.HP <= 0 {
		event.Publish(w.Bus, event.Died{Entity: id})
		w.Store.MarkForDestruction(id)
	}
	return true
}
