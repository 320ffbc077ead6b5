package world

import (
	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/event"
	"github.com/tetrarogue/sim/internal/geom"
	"go.uber.org/zap"
)

// EffectFunc applies a Triggerable's reaction to target.
type EffectFunc func(w *World, target ecs.EntityID, fired event.Triggered)

// RegisterEffect installs or replaces the handler for an effect name.
func (w *World) RegisterEffect(name component.Effect, fn EffectFunc) {
	w.effects[name] = fn
}

// Fire publishes event.Triggered and applies the effect of every entity
// wired to triggerID. Effects may create or destroy entities, so the
// subscriber list is a snapshot taken before the first one runs.
func (w *World) Fire(trigger, mover ecs.EntityID, triggerID int, at geom.Vec) {
	ev := event.Triggered{Trigger: trigger, Mover: mover, TriggerID: triggerID, Pos: at}
	event.Publish(w.Bus, ev)

	for _, target := range ecs.GetAllByIndex[component.Triggerable](w.Store, triggerID) {
		tb, ok := ecs.Get[component.Triggerable](w.Store, target)
		if !ok {
			continue
		}
		fn, ok := w.effects[tb.Effect]
		if !ok {
			w.log.Warn("no handler for trigger effect",
				zap.String("effect", string(tb.Effect)), zap.Stringer("target", target))
			continue
		}
		fn(w, target, ev)
	}
}

func effectRemove(w *World, target ecs.EntityID, _ event.Triggered) {
	w.Store.Destroy(target)
}

// effectRelease drops NoGravity and re-flags the position so the gravity
// engine evaluates the entity on its next run.
func effectRelease(w *World, target ecs.EntityID, _ event.Triggered) {
	ecs.Remove[component.NoGravity](w.Store, target)
	ecs.Remove[component.Triggerable](w.Store, target)
	ecs.MarkNew[component.Pos](w.Store, target)
}

// effectSpawn drops a copy of target. The copy is not wired to the trigger
// and is subject to gravity.
func effectSpawn(w *World, target ecs.EntityID, _ event.Triggered) {
	clone := w.Store.Clone(target)
	if clone.IsZero() {
		return
	}
	ecs.Remove[component.Triggerable](w.Store, clone)
	ecs.Remove[component.NoGravity](w.Store, clone)
	w.log.Debug("trigger spawned entity",
		zap.Stringer("source", target), zap.Stringer("spawned", clone))
}
