package event

import (
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/geom"
)

// Moved is published after the move primitive commits a position change.
type Moved struct {
	Entity ecs.EntityID
	From   geom.Vec
	To     geom.Vec
	Merged bool // the mover joined an existing stack and no longer exists
}

// Triggered is published when a trigger fires.
type Triggered struct {
	Trigger   ecs.EntityID
	Mover     ecs.EntityID
	TriggerID int
	Pos       geom.Vec
}

// Message carries the text of a Message component a mover stepped on.
type Message struct {
	Source ecs.EntityID
	Mover  ecs.EntityID
	Text   string
}

// PickedUp is published when autopickup moves an item into an inventory.
type PickedUp struct {
	Actor ecs.EntityID
	Item  ecs.EntityID
}

// Fell is published for every cell an unsupported entity drops.
type Fell struct {
	Entity ecs.EntityID
	From   geom.Vec
	To     geom.Vec
}

// Landed is published when a falling entity finds support.
type Landed struct {
	Entity ecs.EntityID
	Pos    geom.Vec
}

// Sank is published when a sinking entity advances one cell.
type Sank struct {
	Entity ecs.EntityID
	From   geom.Vec
	To     geom.Vec
}

// FellOn is published when a falling entity hits a blocking obstacle.
type FellOn struct {
	Entity   ecs.EntityID
	Obstacle ecs.EntityID
	Damage   int
	// Displaced is false when no free neighbour existed and the faller stayed.
	Displaced bool
	To        geom.Vec
}

// Died is published when damage brings a Mortal to zero hit points.
type Died struct {
	Entity ecs.EntityID
}

// ActionFailed is published when an agent's action did not succeed.
type ActionFailed struct {
	Entity ecs.EntityID
	Reason string
	Tick   uint64
}
