package component

import (
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/save"
)

// Stackable marks fungible items. Count is always at least 1; a stack that
// would reach zero is destroyed instead.
type Stackable struct {
	Count int
}

func (Stackable) Kind() ecs.Kind          { return KindStackable }
func (s Stackable) Save(e *save.Encoder)  { e.Int("count", s.Count) }
func (s *Stackable) Load(d *save.Decoder) { d.Int("count", &s.Count) }

// Pickable items can be taken into an inventory.
type Pickable struct{}

func (Pickable) Kind() ecs.Kind      { return KindPickable }
func (Pickable) Save(*save.Encoder)  {}
func (*Pickable) Load(*save.Decoder) {}

// Inventory lists the entities an actor carries. Carried items have no Pos.
type Inventory struct {
	Items      []ecs.EntityID
	AutoPickup bool
}

func (Inventory) Kind() ecs.Kind { return KindInventory }

func (inv Inventory) Save(e *save.Encoder) {
	ids := make([]uint64, len(inv.Items))
	for i, id := range inv.Items {
		ids[i] = uint64(id)
	}
	e.Uint64s("items", ids)
	e.Bool("autopickup", inv.AutoPickup)
}

func (inv *Inventory) Load(d *save.Decoder) {
	var ids []uint64
	d.Uint64s("items", &ids)
	d.Bool("autopickup", &inv.AutoPickup)
	inv.Items = make([]ecs.EntityID, len(ids))
	for i, id := range ids {
		inv.Items[i] = ecs.EntityID(id)
	}
}

// Contains reports whether id is carried.
func (inv *Inventory) Contains(id ecs.EntityID) bool {
	for _, it := range inv.Items {
		if it == id {
			return true
		}
	}
	return false
}

// Without returns the item list minus id.
func (inv *Inventory) Without(id ecs.EntityID) []ecs.EntityID {
	out := make([]ecs.EntityID, 0, len(inv.Items))
	for _, it := range inv.Items {
		if it != id {
			out = append(out, it)
		}
	}
	return out
}
