// Package component defines the data records attached to entities. Pure data:
// every mutation happens in world and system code.
package component

import (
	"slices"

	"github.com/tetrarogue/sim/internal/core/ecs"
)

const (
	KindPos ecs.Kind = iota + 1
	KindWeight
	KindNoGravity
	KindSupportsWeight
	KindCanMove
	KindAgent
	KindStackable
	KindTrigger
	KindTriggerable
	KindInventory
	KindPickable
	KindMessage
	KindMortal
	KindBlocksMovement
	KindName
)

// Special entity slots. The IDs survive save/load unchanged.
var (
	SpecialPlayer = ecs.SpecialID(1)
)

// RegisterAll installs every component kind on s.
func RegisterAll(s *ecs.Store) {
	ecs.Register(s, ecs.Spec[Pos]{
		Name:    "Pos",
		Dense:   true,
		Tracked: true,
		Index:   func(p *Pos) any { return p.V },
		Equal:   ecs.Comparable[Pos](),
	})
	ecs.Register(s, ecs.Spec[Weight]{Name: "Weight", Equal: ecs.Comparable[Weight]()})
	ecs.Register(s, ecs.Spec[NoGravity]{Name: "NoGravity", Equal: ecs.Comparable[NoGravity]()})
	ecs.Register(s, ecs.Spec[SupportsWeight]{Name: "SupportsWeight", Equal: ecs.Comparable[SupportsWeight]()})
	ecs.Register(s, ecs.Spec[CanMove]{Name: "CanMove", Equal: ecs.Comparable[CanMove]()})
	ecs.Register(s, ecs.Spec[Agent]{Name: "Agent", Tracked: true, Equal: ecs.Comparable[Agent]()})
	ecs.Register(s, ecs.Spec[Stackable]{Name: "Stackable", Equal: ecs.Comparable[Stackable]()})
	ecs.Register(s, ecs.Spec[Trigger]{Name: "Trigger", Equal: ecs.Comparable[Trigger]()})
	ecs.Register(s, ecs.Spec[Triggerable]{
		Name:  "Triggerable",
		Index: func(t *Triggerable) any { return t.TriggerID },
		Equal: ecs.Comparable[Triggerable](),
	})
	ecs.Register(s, ecs.Spec[Inventory]{
		Name: "Inventory",
		Equal: func(a, b *Inventory) bool {
			return a.AutoPickup == b.AutoPickup && slices.Equal(a.Items, b.Items)
		},
		Clone: func(inv *Inventory) Inventory {
			return Inventory{Items: slices.Clone(inv.Items), AutoPickup: inv.AutoPickup}
		},
	})
	ecs.Register(s, ecs.Spec[Pickable]{Name: "Pickable", Equal: ecs.Comparable[Pickable]()})
	ecs.Register(s, ecs.Spec[Message]{Name: "Message", Equal: ecs.Comparable[Message]()})
	ecs.Register(s, ecs.Spec[Mortal]{Name: "Mortal", Equal: ecs.Comparable[Mortal]()})
	ecs.Register(s, ecs.Spec[BlocksMovement]{Name: "BlocksMovement", Equal: ecs.Comparable[BlocksMovement]()})
	ecs.Register(s, ecs.Spec[Name]{Name: "Name", Equal: ecs.Comparable[Name]()})
}
