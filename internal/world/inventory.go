package world

import (
	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/event"
	"go.uber.org/zap"
)

// PickUp moves item from the ground into actor's inventory. A stackable item
// merges into an equal stack already carried. Returns false when actor has
// no Inventory or item is not Pickable.
func (w *World) PickUp(actor, item ecs.EntityID) bool {
	inv, ok := ecs.Get[component.Inventory](w.Store, actor)
	if !ok || !ecs.Has[component.Pickable](w.Store, item) || inv.Contains(item) {
		return false
	}
	ecs.Remove[component.Pos](w.Store, item)
	event.Publish(w.Bus, event.PickedUp{Actor: actor, Item: item})

	// Carried items have no Pos, so they compare equal to item now.
	if ecs.Has[component.Stackable](w.Store, item) {
		for _, carried := range inv.Items {
			if w.CanStack(item, carried) {
				w.StackObjs(item, carried)
				return true
			}
		}
	}
	inv.Items = append(inv.Items, item)
	w.log.Debug("picked up",
		zap.String("actor", w.NameOf(actor)), zap.String("item", w.NameOf(item)))
	return true
}

// DropFromInventory places n items of a carried entity in actor's cell
// through the move primitive. n <= 0 drops the whole stack. Returns the
// entity now on the ground, or zero when nothing was dropped.
func (w *World) DropFromInventory(actor, item ecs.EntityID, n int) ecs.EntityID {
	inv, ok := ecs.Get[component.Inventory](w.Store, actor)
	if !ok || !inv.Contains(item) {
		return 0
	}
	at, ok := w.PosOf(actor)
	if !ok {
		return 0
	}
	part := item
	if n > 0 {
		part = w.SplitStack(item, n)
	}
	if part == item {
		inv.Items = inv.Without(item)
	}
	return w.RawMove(part, at, nil)
}

// Carried returns a copy of actor's inventory list.
func (w *World) Carried(actor ecs.EntityID) []ecs.EntityID {
	inv, ok := ecs.Get[component.Inventory](w.Store, actor)
	if !ok {
		return nil
	}
	return append([]ecs.EntityID(nil), inv.Items...)
}
