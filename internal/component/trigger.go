package component

import (
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/save"
)

type TriggerKind uint8

const (
	// OnEnter fires whenever something enters the cell.
	OnEnter TriggerKind = iota
	// OnWeight fires when the weight in the cell rises to MinWeight.
	OnWeight
)

var triggerKindNames = []string{"on_enter", "on_weight"}

func (k TriggerKind) String() string { return enumName(triggerKindNames, int(k)) }

func ParseTriggerKind(s string) (TriggerKind, error) {
	i, err := parseEnum(triggerKindNames, s, "trigger kind")
	return TriggerKind(i), err
}

// Trigger is the cause half of a cause/effect link. TriggerID is an opaque
// address; every Triggerable with the same ID reacts when it fires.
type Trigger struct {
	On        TriggerKind
	TriggerID int
	MinWeight int
}

func (Trigger) Kind() ecs.Kind { return KindTrigger }

func (t Trigger) Save(e *save.Encoder) {
	e.String("on", t.On.String())
	e.Int("trigger_id", t.TriggerID)
	e.Int("min_weight", t.MinWeight)
}

func (t *Trigger) Load(d *save.Decoder) {
	var kind string
	d.String("on", &kind)
	d.Int("trigger_id", &t.TriggerID)
	d.Int("min_weight", &t.MinWeight)
	if kind == "" {
		return
	}
	k, err := ParseTriggerKind(kind)
	if err != nil {
		d.Fail("on", err)
		return
	}
	t.On = k
}

// Effect names a reaction registered with the world.
type Effect string

const (
	EffectRemove  Effect = "remove"  // destroy the triggerable entity
	EffectRelease Effect = "release" // drop NoGravity so it falls
	EffectSpawn   Effect = "spawn"   // drop a falling copy of the entity
)

// Triggerable is the effect half. Indexed by TriggerID.
type Triggerable struct {
	TriggerID int
	Effect    Effect
}

func (Triggerable) Kind() ecs.Kind { return KindTriggerable }

func (t Triggerable) Save(e *save.Encoder) {
	e.Int("trigger_id", t.TriggerID)
	e.String("effect", string(t.Effect))
}

func (t *Triggerable) Load(d *save.Decoder) {
	var effect string
	d.Int("trigger_id", &t.TriggerID)
	d.String("effect", &effect)
	t.Effect = Effect(effect)
}
