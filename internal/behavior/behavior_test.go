package behavior_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tetrarogue/sim/internal/action"
	"github.com/tetrarogue/sim/internal/behavior"
	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/event"
	"github.com/tetrarogue/sim/internal/geom"
	"github.com/tetrarogue/sim/internal/scripting"
	"github.com/tetrarogue/sim/internal/system"
	"github.com/tetrarogue/sim/internal/world"
	"go.uber.org/zap/zaptest"
)

func newWorld(t *testing.T) *world.World {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := ecs.NewStore(log)
	component.RegisterAll(store)
	return world.New(store, event.NewBus(), log, world.Options{
		Bounds: geom.Region{Max: geom.Vec{4, 4, 4, 4}},
	})
}

func newEngine(t *testing.T, src string) *scripting.Engine {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "ai"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ai", "test.lua"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	e, err := scripting.NewEngine(dir, 1, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestContextDescribesSurroundings(t *testing.T) {
	w := newWorld(t)
	id := w.Store.CreateObj(
		component.Agent{Type: "walker", TicksPerTurn: 2},
		component.Pos{V: geom.Vec{4, 0, 0, 0}},
		component.Mortal{HP: 3, MaxHP: 5},
	)
	w.Store.CreateObj(component.Pos{V: geom.Vec{4, 0, 0, 0}}, component.Pickable{})
	w.Store.CreateObj(component.Pos{V: geom.Vec{4, 1, 0, 0}}, component.BlocksMovement{})

	ctx := behavior.Context(w, id)
	if ctx.Type != "walker" || ctx.HP != 3 || ctx.MaxHP != 5 {
		t.Errorf("ctx = %+v", ctx)
	}
	if ctx.ItemsHere != 1 {
		t.Errorf("items here = %d, want 1", ctx.ItemsHere)
	}
	// Only +2 and +3 remain: the -1 sides are out of bounds and +1 is blocked.
	if len(ctx.Exits) != 2 {
		t.Errorf("exits = %v, want 2", ctx.Exits)
	}
	if len(ctx.Pos) != geom.Dim || ctx.Pos[0] != 4 {
		t.Errorf("pos = %v", ctx.Pos)
	}
}

func TestToAction(t *testing.T) {
	w := newWorld(t)
	actor := w.Store.CreateObj(component.Pos{V: geom.Vec{4, 1, 1, 1}})
	item := w.Store.CreateObj(component.Pickable{})
	ecs.Add(w.Store, actor, component.Inventory{Items: []ecs.EntityID{item}})

	tests := []struct {
		name string
		cmd  scripting.AgentCommand
		want action.Action
	}{
		{"move", scripting.AgentCommand{Type: "move", Dir: []int{0, 0, 1}}, action.Move{Dir: geom.Vec{0, 0, 1, 0}}},
		{"bad dir", scripting.AgentCommand{Type: "move", Dir: []int{0, 0, 0, 0, 1}}, action.Wait{}},
		{"pickup any", scripting.AgentCommand{Type: "pickup"}, action.PickUp{}},
		{"drop first", scripting.AgentCommand{Type: "drop", Count: 2}, action.Drop{Item: item, Count: 2}},
		{"unknown", scripting.AgentCommand{Type: "dance"}, action.Wait{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := behavior.ToAction(w, actor, tc.cmd); got != tc.want {
				t.Errorf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestLuaBehaviorDrivesScheduler(t *testing.T) {
	w := newWorld(t)
	engine := newEngine(t, `
function walker_ai(ctx)
  if ctx.tick > 0 then return { type = "wait" } end
  return { type = "move", dir = ctx.exits[1] }
end
`)
	s := system.NewScheduler(w, zaptest.NewLogger(t))
	s.RegisterBehavior("walker", behavior.Lua(engine, "walker_ai", s.CurrentTick, zaptest.NewLogger(t)))
	id := w.Store.CreateObj(
		component.Agent{Type: "walker", TicksPerTurn: 1},
		component.Pos{V: geom.Vec{4, 1, 1, 1}},
		component.CanMove{Bits: component.MoveWalk},
	)

	s.Run()
	s.Run()
	if p, _ := w.PosOf(id); p != (geom.Vec{4, 2, 1, 1}) {
		t.Errorf("walker at %v, want one step along axis 1", p)
	}
}

func TestIdleWaits(t *testing.T) {
	w := newWorld(t)
	if _, ok := behavior.Idle().ChooseAction(w, 0).(action.Wait); !ok {
		t.Error("idle should wait")
	}
}
