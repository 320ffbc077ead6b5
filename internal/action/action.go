// Package action defines what an agent can do on its turn. Behaviors return
// an Action; the scheduler executes it and charges its TurnCost.
package action

import (
	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/geom"
	"github.com/tetrarogue/sim/internal/world"
)

// Result reports the outcome of one action. TurnCost is charged whether or
// not the action succeeded and must be at least 1.
type Result struct {
	Success        bool
	TurnCost       int
	FailureMessage string
}

type Action interface {
	Execute(w *world.World, actor ecs.EntityID) Result
}

// Cost is the price of one ordinary action for actor: its Agent's
// TicksPerTurn, never less than 1.
func Cost(w *world.World, actor ecs.EntityID) int {
	if a, ok := ecs.Get[component.Agent](w.Store, actor); ok && a.TicksPerTurn > 0 {
		return a.TicksPerTurn
	}
	return 1
}

func succeed(w *world.World, actor ecs.EntityID) Result {
	return Result{Success: true, TurnCost: Cost(w, actor)}
}

func failed(w *world.World, actor ecs.EntityID, msg string) Result {
	return Result{TurnCost: Cost(w, actor), FailureMessage: msg}
}

// Wait does nothing for one turn.
type Wait struct{}

func (Wait) Execute(w *world.World, actor ecs.EntityID) Result { return succeed(w, actor) }

// Move steps one cell in Dir. Lateral steps need walk or swim, upward steps
// need a climbable support and the climb capability.
type Move struct {
	Dir geom.Vec
}

func (m Move) Execute(w *world.World, actor ecs.EntityID) Result {
	from, ok := w.PosOf(actor)
	if !ok {
		return failed(w, actor, "nowhere to move from")
	}
	cm, ok := ecs.Get[component.CanMove](w.Store, actor)
	if !ok {
		return failed(w, actor, "cannot move")
	}
	if !unit(m.Dir) {
		return failed(w, actor, "invalid direction "+m.Dir.String())
	}
	to := from.Add(m.Dir)
	if !w.InBounds(to) {
		return failed(w, actor, "edge of the world")
	}
	if w.Blocked(to) {
		return failed(w, actor, "the way is blocked")
	}
	switch {
	case m.Dir == geom.Up:
		if !cm.Bits.Has(component.MoveClimb) || !(climbable(w, from) || climbable(w, to)) {
			return failed(w, actor, "cannot climb here")
		}
	case m.Dir == geom.Down:
	default:
		if !cm.Bits.Has(component.MoveWalk) && !cm.Bits.Has(component.MoveSwim) {
			return failed(w, actor, "cannot walk")
		}
	}
	w.RawMove(actor, to, nil)
	return succeed(w, actor)
}

// unit reports whether d changes exactly one axis by one.
func unit(d geom.Vec) bool {
	n := 0
	for _, c := range d {
		switch c {
		case 0:
		case 1, -1:
			n++
		default:
			return false
		}
	}
	return n == 1
}

func climbable(w *world.World, at geom.Vec) bool {
	for _, id := range w.At(at) {
		sw, ok := ecs.Get[component.SupportsWeight](w.Store, id)
		if ok && sw.Type == component.SupportWithin && sw.Cond == component.CondClimbing {
			return true
		}
	}
	return false
}

// PickUp takes Item from the actor's cell. A zero Item takes the first
// pickable entity there.
type PickUp struct {
	Item ecs.EntityID
}

func (p PickUp) Execute(w *world.World, actor ecs.EntityID) Result {
	at, ok := w.PosOf(actor)
	if !ok {
		return failed(w, actor, "nowhere to pick up from")
	}
	item := p.Item
	if item.IsZero() {
		for _, id := range w.At(at) {
			if id != actor && ecs.Has[component.Pickable](w.Store, id) {
				item = id
				break
			}
		}
	}
	if item.IsZero() {
		return failed(w, actor, "nothing to pick up")
	}
	if pos, ok := w.PosOf(item); !ok || pos != at {
		return failed(w, actor, "that is not here")
	}
	if !w.PickUp(actor, item) {
		return failed(w, actor, "cannot pick that up")
	}
	return succeed(w, actor)
}

// Drop puts Count of Item down in the actor's cell. Count <= 0 drops all.
type Drop struct {
	Item  ecs.EntityID
	Count int
}

func (d Drop) Execute(w *world.World, actor ecs.EntityID) Result {
	if w.DropFromInventory(actor, d.Item, d.Count).IsZero() {
		return failed(w, actor, "not carrying that")
	}
	return succeed(w, actor)
}
