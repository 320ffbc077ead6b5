// Package behavior provides the agent behaviors the scheduler dispatches to:
// idle agents and agents driven by Lua scripts.
package behavior

import (
	"github.com/tetrarogue/sim/internal/action"
	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/geom"
	"github.com/tetrarogue/sim/internal/scripting"
	"github.com/tetrarogue/sim/internal/system"
	"github.com/tetrarogue/sim/internal/world"
	"go.uber.org/zap"
)

// Idle waits every turn.
func Idle() system.Behavior {
	return system.Behavior{
		ChooseAction: func(*world.World, ecs.EntityID) action.Action { return action.Wait{} },
	}
}

// Lua asks the script function fn for each decision. clock supplies the
// current tick and may be nil. Failed actions are logged at debug level.
func Lua(engine *scripting.Engine, fn string, clock func() uint64, log *zap.Logger) system.Behavior {
	if log == nil {
		log = zap.NewNop()
	}
	return system.Behavior{
		ChooseAction: func(w *world.World, id ecs.EntityID) action.Action {
			ctx := Context(w, id)
			if clock != nil {
				ctx.Tick = clock()
			}
			cmd := engine.RunAgentAI(fn, ctx)
			return ToAction(w, id, cmd)
		},
		OnFailure: func(_ *world.World, id ecs.EntityID, res action.Result) {
			log.Debug("scripted action failed",
				zap.String("func", fn), zap.Stringer("entity", id), zap.String("reason", res.FailureMessage))
		},
	}
}

// Context packs what a script may see about id.
func Context(w *world.World, id ecs.EntityID) scripting.AgentContext {
	ctx := scripting.AgentContext{ID: uint64(id)}
	if a, ok := ecs.Get[component.Agent](w.Store, id); ok {
		ctx.Type = a.Type
	}
	if m, ok := ecs.Get[component.Mortal](w.Store, id); ok {
		ctx.HP, ctx.MaxHP = m.HP, m.MaxHP
	}
	ctx.Carried = len(w.Carried(id))

	at, ok := w.PosOf(id)
	if !ok {
		return ctx
	}
	ctx.Pos = append([]int(nil), at[:]...)
	for _, other := range w.At(at) {
		if other != id && ecs.Has[component.Pickable](w.Store, other) {
			ctx.ItemsHere++
		}
	}
	for _, d := range geom.Lateral() {
		to := at.Add(d)
		if w.InBounds(to) && !w.Blocked(to) {
			ctx.Exits = append(ctx.Exits, append([]int(nil), d[:]...))
		}
	}
	for _, other := range w.At(at) {
		sw, ok := ecs.Get[component.SupportsWeight](w.Store, other)
		if ok && sw.Type == component.SupportWithin && sw.Cond == component.CondClimbing {
			ctx.CanClimb = true
			break
		}
	}
	return ctx
}

// ToAction maps a script command onto an action. Unknown or malformed
// commands wait.
func ToAction(w *world.World, id ecs.EntityID, cmd scripting.AgentCommand) action.Action {
	switch cmd.Type {
	case "move":
		dir, err := geom.FromSlice(cmd.Dir)
		if err != nil {
			return action.Wait{}
		}
		return action.Move{Dir: dir}
	case "pickup":
		return action.PickUp{Item: ecs.EntityID(cmd.Item)}
	case "drop":
		item := ecs.EntityID(cmd.Item)
		if item.IsZero() {
			carried := w.Carried(id)
			if len(carried) == 0 {
				return action.Wait{}
			}
			item = carried[0]
		}
		return action.Drop{Item: item, Count: cmd.Count}
	}
	return action.Wait{}
}
