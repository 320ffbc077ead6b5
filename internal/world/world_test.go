package world_test

import (
	"testing"

	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/event"
	"github.com/tetrarogue/sim/internal/geom"
	"github.com/tetrarogue/sim/internal/world"
	"go.uber.org/zap/zaptest"
)

func newWorld(t *testing.T, rule world.WeightRule) *world.World {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := ecs.NewStore(log)
	component.RegisterAll(store)
	return world.New(store, event.NewBus(), log, world.Options{
		Bounds:     geom.Region{Min: geom.Vec{0, 0, 0, 0}, Max: geom.Vec{9, 9, 9, 9}},
		WeightRule: rule,
	})
}

func coin(n int, at geom.Vec) []ecs.Component {
	return []ecs.Component{
		component.Pos{V: at},
		component.Name{Name: "gold"},
		component.Weight{Value: 1},
		component.Stackable{Count: n},
		component.Pickable{},
	}
}

func count(t *testing.T, w *world.World, id ecs.EntityID) int {
	t.Helper()
	st, ok := ecs.Get[component.Stackable](w.Store, id)
	if !ok {
		t.Fatalf("%v has no Stackable", id)
	}
	return st.Count
}

func TestRawMoveOrder(t *testing.T) {
	w := newWorld(t, world.WeightSum)
	a, b := geom.Vec{5, 1, 1, 1}, geom.Vec{5, 2, 1, 1}
	id := w.Store.CreateObj(component.Pos{V: a})

	var log []string
	event.Subscribe(w.Bus, func(ev event.Moved) {
		if ev.From != a || ev.To != b {
			t.Errorf("moved %v->%v, want %v->%v", ev.From, ev.To, a, b)
		}
		log = append(log, "event")
	})

	got := w.RawMove(id, b, func() {
		if p, _ := w.PosOf(id); p != b {
			t.Errorf("onMoved saw pos %v, want %v", p, b)
		}
		log = append(log, "onMoved")
	})
	if got != id {
		t.Errorf("RawMove returned %v, want %v", got, id)
	}
	if len(log) != 2 || log[0] != "onMoved" || log[1] != "event" {
		t.Errorf("notification order = %v", log)
	}
	if len(w.At(a)) != 0 {
		t.Errorf("old cell still occupied: %v", w.At(a))
	}
}

func TestRawMoveMergesStacks(t *testing.T) {
	w := newWorld(t, world.WeightSum)
	src := w.Store.CreateObj(coin(3, geom.Vec{5, 0, 0, 0})...)
	dst := w.Store.CreateObj(coin(2, geom.Vec{5, 1, 0, 0})...)

	merged := false
	event.Subscribe(w.Bus, func(ev event.Moved) { merged = ev.Merged })

	got := w.RawMove(src, geom.Vec{5, 1, 0, 0}, nil)
	if got != dst {
		t.Fatalf("RawMove returned %v, want target stack %v", got, dst)
	}
	if !merged {
		t.Error("Moved event not flagged as merged")
	}
	if w.Store.Alive(src) {
		t.Error("source stack should be destroyed")
	}
	if c := count(t, w, dst); c != 5 {
		t.Errorf("count = %d, want 5", c)
	}
}

func TestStackRoundTrip(t *testing.T) {
	w := newWorld(t, world.WeightSum)
	at := geom.Vec{5, 0, 0, 0}
	a := w.Store.CreateObj(coin(3, at)...)
	b := w.Store.CreateObj(coin(4, at)...)

	merged := w.StackObjs(a, b)
	if c := count(t, w, merged); c != 7 {
		t.Fatalf("merged count = %d, want 7", c)
	}

	part := w.SplitStack(merged, 4)
	if part == merged {
		t.Fatal("partial split returned the source stack")
	}
	if c := count(t, w, part); c != 4 {
		t.Errorf("split count = %d, want 4", c)
	}
	if c := count(t, w, merged); c != 3 {
		t.Errorf("remainder count = %d, want 3", c)
	}
	if !w.CanStack(part, merged) {
		t.Error("split halves should be stackable again")
	}
	if got := w.SplitStack(merged, 3); got != merged {
		t.Errorf("splitting the whole stack returned %v, want %v", got, merged)
	}
}

func TestCanStackRequiresEqualComponents(t *testing.T) {
	w := newWorld(t, world.WeightSum)
	at := geom.Vec{5, 0, 0, 0}
	a := w.Store.CreateObj(coin(1, at)...)
	b := w.Store.CreateObj(coin(1, at.Add(geom.Vec{0, 1}))...)
	c := w.Store.CreateObj(coin(1, at)...)
	ecs.Add(w.Store, c, component.Name{Name: "silver"})
	d := w.Store.CreateObj(coin(1, at)...)
	ecs.Add(w.Store, d, component.Message{Text: "engraved"})

	if !w.CanStack(a, b) {
		t.Error("stacks differing only in Pos and count should stack")
	}
	if w.CanStack(a, c) {
		t.Error("different names must not stack")
	}
	if w.CanStack(a, d) {
		t.Error("different kind sets must not stack")
	}
	if w.CanStack(a, a) {
		t.Error("an entity cannot stack with itself")
	}
}

func TestOnWeightIsEdgeTriggered(t *testing.T) {
	w := newWorld(t, world.WeightSum)
	plate := geom.Vec{5, 5, 5, 5}
	w.Store.CreateObj(component.Pos{V: plate},
		component.Trigger{On: component.OnWeight, TriggerID: 7, MinWeight: 10})
	w.Store.CreateObj(component.Triggerable{TriggerID: 7, Effect: "count"})

	fired := 0
	w.RegisterEffect("count", func(*world.World, ecs.EntityID, event.Triggered) { fired++ })

	rock := func() ecs.EntityID {
		return w.Store.CreateObj(component.Pos{V: geom.Vec{4, 5, 5, 5}}, component.Weight{Value: 6})
	}
	w.RawMove(rock(), plate, nil)
	if fired != 0 {
		t.Fatalf("fired below threshold")
	}
	w.RawMove(rock(), plate, nil) // 6 -> 12 crosses 10
	if fired != 1 {
		t.Fatalf("fired %d times on crossing, want 1", fired)
	}
	w.RawMove(rock(), plate, nil) // 12 -> 18 stays above
	if fired != 1 {
		t.Errorf("refired while above threshold: %d", fired)
	}
}

func TestOnWeightCountsItemsPickedUpOnArrival(t *testing.T) {
	w := newWorld(t, world.WeightSum)
	plate := geom.Vec{5, 5, 5, 5}
	w.Store.CreateObj(component.Pos{V: plate},
		component.Trigger{On: component.OnWeight, TriggerID: 3, MinWeight: 10})
	w.Store.CreateObj(component.Triggerable{TriggerID: 3, Effect: "count"})
	fired := 0
	w.RegisterEffect("count", func(*world.World, ecs.EntityID, event.Triggered) { fired++ })

	gold := w.Store.CreateObj(coin(10, plate)...)
	player := w.Store.CreateObj(component.Pos{V: geom.Vec{4, 5, 5, 5}}, component.Weight{Value: 12},
		component.Inventory{AutoPickup: true})

	w.RawMove(player, plate, nil)

	if carried := w.Carried(player); len(carried) != 1 || carried[0] != gold {
		t.Fatalf("carried = %v, want the gold", carried)
	}
	if fired != 0 {
		t.Errorf("plate already at its threshold fired %d times", fired)
	}
}

func TestOnWeightLegacyRule(t *testing.T) {
	w := newWorld(t, world.WeightLegacy)
	plate := geom.Vec{5, 5, 5, 5}
	trig := component.Trigger{On: component.OnWeight, TriggerID: 1, MinWeight: 10}
	w.Store.CreateObj(component.Pos{V: plate}, trig)
	w.Store.CreateObj(component.Pos{V: plate}, component.Weight{Value: 6})

	light := w.Store.CreateObj(component.Pos{V: plate}, component.Weight{Value: 6})
	if w.IsTriggered(6, plate, trig) {
		t.Error("legacy rule uses the mover's weight alone; 6 < 10 must not fire")
	}
	ecs.Add(w.Store, light, component.Weight{Value: 12})
	if !w.IsTriggered(12, plate, trig) {
		t.Error("a 12-weight mover should fire a 10 plate")
	}
}

func TestOnlyFirstTriggerFires(t *testing.T) {
	w := newWorld(t, world.WeightSum)
	at := geom.Vec{5, 5, 5, 5}
	w.Store.CreateObj(component.Pos{V: at}, component.Trigger{On: component.OnEnter, TriggerID: 1})
	w.Store.CreateObj(component.Pos{V: at}, component.Trigger{On: component.OnEnter, TriggerID: 2})

	var ids []int
	event.Subscribe(w.Bus, func(ev event.Triggered) { ids = append(ids, ev.TriggerID) })

	mover := w.Store.CreateObj(component.Pos{V: geom.Vec{5, 4, 5, 5}})
	w.RawMove(mover, at, nil)
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("fired %v, want [1]", ids)
	}
}

func TestAutopickupMergesIntoInventory(t *testing.T) {
	w := newWorld(t, world.WeightSum)
	at := geom.Vec{5, 5, 0, 0}
	c1 := w.Store.CreateObj(coin(2, at)...)
	w.Store.CreateObj(coin(5, at)...)
	player := w.Store.CreateObj(component.Pos{V: geom.Vec{5, 4, 0, 0}},
		component.Inventory{AutoPickup: true})

	w.RawMove(player, at, nil)

	carried := w.Carried(player)
	if len(carried) != 1 || carried[0] != c1 {
		t.Fatalf("carried = %v, want [%v]", carried, c1)
	}
	if c := count(t, w, c1); c != 7 {
		t.Errorf("carried count = %d, want 7", c)
	}
	if _, ok := w.PosOf(c1); ok {
		t.Error("carried item still has a position")
	}
	if got := w.At(at); len(got) != 1 || got[0] != player {
		t.Errorf("cell holds %v, want only the player", got)
	}
}

func TestDropFromInventorySplits(t *testing.T) {
	w := newWorld(t, world.WeightSum)
	at := geom.Vec{5, 5, 0, 0}
	c := w.Store.CreateObj(coin(5, geom.Vec{5, 4, 0, 0})...)
	player := w.Store.CreateObj(component.Pos{V: at}, component.Inventory{})
	if !w.PickUp(player, c) {
		t.Fatal("PickUp failed")
	}

	dropped := w.DropFromInventory(player, c, 2)
	if dropped == 0 || dropped == c {
		t.Fatalf("dropped = %v, want a new stack", dropped)
	}
	if p, _ := w.PosOf(dropped); p != at {
		t.Errorf("dropped at %v, want %v", p, at)
	}
	if n := count(t, w, dropped); n != 2 {
		t.Errorf("dropped count = %d, want 2", n)
	}
	if n := count(t, w, c); n != 3 {
		t.Errorf("carried count = %d, want 3", n)
	}

	rest := w.DropFromInventory(player, c, 0)
	if rest != dropped {
		t.Errorf("dropping the rest should merge into %v, got %v", dropped, rest)
	}
	if n := count(t, w, dropped); n != 5 {
		t.Errorf("ground count = %d, want 5", n)
	}
	if len(w.Carried(player)) != 0 {
		t.Errorf("inventory not empty: %v", w.Carried(player))
	}
}

func TestReleaseAndSpawnEffects(t *testing.T) {
	w := newWorld(t, world.WeightSum)
	plate := geom.Vec{5, 5, 5, 5}
	w.Store.CreateObj(component.Pos{V: plate}, component.Trigger{On: component.OnEnter, TriggerID: 3})
	held := w.Store.CreateObj(component.Pos{V: geom.Vec{1, 5, 5, 5}}, component.Weight{Value: 10},
		component.NoGravity{}, component.Triggerable{TriggerID: 3, Effect: component.EffectRelease})
	dropper := w.Store.CreateObj(component.Pos{V: geom.Vec{1, 6, 5, 5}}, component.Weight{Value: 10},
		component.NoGravity{}, component.Triggerable{TriggerID: 3, Effect: component.EffectSpawn})
	ecs.ClearNew[component.Pos](w.Store)

	mover := w.Store.CreateObj(component.Pos{V: geom.Vec{5, 4, 5, 5}})
	w.RawMove(mover, plate, nil)

	if ecs.Has[component.NoGravity](w.Store, held) {
		t.Error("released entity kept NoGravity")
	}
	if !ecs.Has[component.NoGravity](w.Store, dropper) {
		t.Error("spawn source should stay put")
	}

	fresh := ecs.GetAllNew[component.Pos](w.Store)
	var spawned ecs.EntityID
	for _, id := range fresh {
		if id != held && id != mover && id != dropper {
			spawned = id
		}
	}
	if spawned.IsZero() {
		t.Fatalf("no spawned entity among new positions %v", fresh)
	}
	if ecs.Has[component.Triggerable](w.Store, spawned) || ecs.Has[component.NoGravity](w.Store, spawned) {
		t.Error("spawned copy must be unwired and subject to gravity")
	}
	if p, _ := w.PosOf(spawned); p != (geom.Vec{1, 6, 5, 5}) {
		t.Errorf("spawned at %v", p)
	}
}

func TestMessagesAreEmitted(t *testing.T) {
	w := newWorld(t, world.WeightSum)
	at := geom.Vec{5, 5, 5, 5}
	sign := w.Store.CreateObj(component.Pos{V: at}, component.Message{Text: "beware"})

	var got []event.Message
	event.Subscribe(w.Bus, func(ev event.Message) { got = append(got, ev) })

	mover := w.Store.CreateObj(component.Pos{V: geom.Vec{5, 4, 5, 5}})
	w.RawMove(mover, at, nil)
	if len(got) != 1 || got[0].Source != sign || got[0].Mover != mover || got[0].Text != "beware" {
		t.Errorf("messages = %+v", got)
	}
}

func TestDamageQueuesDeath(t *testing.T) {
	w := newWorld(t, world.WeightSum)
	id := w.Store.CreateObj(component.Mortal{HP: 2, MaxHP: 2})

	died := 0
	event.Subscribe(w.Bus, func(event.Died) { died++ })

	w.Damage(id, 1)
	if died != 0 {
		t.Fatal("died at 1 HP")
	}
	w.Damage(id, 1)
	if died != 1 {
		t.Fatalf("Died published %d times", died)
	}
	if n := w.Store.FlushDestroyQueue(); n != 1 || w.Store.Alive(id) {
		t.Errorf("flushed %d, alive=%v", n, w.Store.Alive(id))
	}
	if w.Damage(w.Store.CreateObj(), 1) {
		t.Error("damage to a non-mortal should report false")
	}
}
