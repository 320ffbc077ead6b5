package world

import (
	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/event"
	"github.com/tetrarogue/sim/internal/geom"
	"go.uber.org/zap"
)

// RawMove relocates id to newPos. Every position change in the simulation
// goes through here, so the side effects run in one fixed order:
//
//  1. the old Pos is removed
//  2. a stackable mover merges into a compatible stack at newPos
//  3. otherwise Pos = newPos is attached
//  4. onMoved runs once (may be nil), then event.Moved is published
//  5. an autopickup inventory collects the pickable items at newPos
//  6. the first trigger at newPos whose condition holds fires
//  7. Message components at newPos are published
//
// The returned id is the entity that now represents the mover: the target
// stack when it merged, id otherwise.
func (w *World) RawMove(id ecs.EntityID, newPos geom.Vec, onMoved func()) ecs.EntityID {
	from, _ := w.PosOf(id)
	moverWeight := w.WeightOf(id)

	ecs.Remove[component.Pos](w.Store, id)

	mover := id
	merged := false
	if ecs.Has[component.Stackable](w.Store, id) {
		for _, other := range w.At(newPos) {
			if w.CanStack(id, other) {
				mover = w.StackObjs(id, other)
				merged = true
				break
			}
		}
	}
	if !merged {
		ecs.Add(w.Store, id, component.Pos{V: newPos})
	}

	if onMoved != nil {
		onMoved()
	}
	event.Publish(w.Bus, event.Moved{Entity: mover, From: from, To: newPos, Merged: merged})

	// Taken before autopickup empties the cell.
	before := max(w.CellWeight(newPos)-moverWeight, 0)
	w.autopickup(mover, newPos)
	w.checkTriggers(mover, before, moverWeight, newPos)
	w.emitMessages(mover, newPos)
	return mover
}

func (w *World) autopickup(mover ecs.EntityID, at geom.Vec) {
	inv, ok := ecs.Get[component.Inventory](w.Store, mover)
	if !ok || !inv.AutoPickup {
		return
	}
	for _, item := range w.At(at) {
		if item == mover || !ecs.Has[component.Pickable](w.Store, item) {
			continue
		}
		// An earlier pickup may have merged this item away.
		if p, ok := w.PosOf(item); !ok || p != at {
			continue
		}
		w.PickUp(mover, item)
	}
}

func (w *World) checkTriggers(mover ecs.EntityID, before, moverWeight int, at geom.Vec) {
	for _, t := range w.At(at) {
		trig, ok := ecs.Get[component.Trigger](w.Store, t)
		if !ok {
			continue
		}
		if w.triggered(before, moverWeight, *trig) {
			w.Fire(t, mover, trig.TriggerID, at)
			return
		}
	}
}

func (w *World) emitMessages(mover ecs.EntityID, at geom.Vec) {
	for _, src := range w.At(at) {
		if src == mover {
			continue
		}
		if msg, ok := ecs.Get[component.Message](w.Store, src); ok {
			event.Publish(w.Bus, event.Message{Source: src, Mover: mover, Text: msg.Text})
		}
	}
}

// IsTriggered decides whether trig at pos fires for a mover of the given
// weight that has just entered pos. onEnter always fires. onWeight fires only
// on the arrival that lifts the cell weight from below MinWeight to at least
// MinWeight.
func (w *World) IsTriggered(moverWeight int, pos geom.Vec, trig component.Trigger) bool {
	return w.triggered(max(w.CellWeight(pos)-moverWeight, 0), moverWeight, trig)
}

// triggered applies the trigger condition given the cell weight before the
// mover arrived.
func (w *World) triggered(oldWeight, moverWeight int, trig component.Trigger) bool {
	switch trig.On {
	case component.OnEnter:
		return true
	case component.OnWeight:
		var newWeight int
		switch w.weightRule {
		case WeightLegacy:
			hasWeight := 0
			if moverWeight > 0 {
				hasWeight = 1
			}
			if oldWeight+hasWeight != 0 {
				newWeight = moverWeight
			}
		default:
			newWeight = oldWeight + moverWeight
		}
		return oldWeight < trig.MinWeight && newWeight >= trig.MinWeight
	}
	w.log.Warn("unknown trigger kind", zap.Stringer("kind", trig.On))
	return false
}
