package scripting

import (
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/tetrarogue/sim/internal/core/save"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for agent decision scripts.
// Single-goroutine access only (simulation loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
	pcg *rand.PCG
	rng *rand.Rand
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
// Scripts draw random numbers through sim_random, which is seeded from seed
// and saved with the session so replays stay deterministic.
func NewEngine(scriptsDir string, seed uint64, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	pcg := rand.NewPCG(seed, seed^0x2545f4914f6cdd1d)
	e := &Engine{vm: vm, log: log, pcg: pcg, rng: rand.New(pcg)}
	vm.SetGlobal("sim_random", vm.NewFunction(e.luaRandom))

	// Shared helpers first, then agent scripts
	for _, sub := range []string{"core", "ai"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// luaRandom implements sim_random(n): an integer in [1, n].
func (e *Engine) luaRandom(L *lua.LState) int {
	n := L.CheckInt(1)
	if n < 1 {
		L.ArgError(1, "upper bound must be positive")
		return 0
	}
	L.Push(lua.LNumber(e.rng.IntN(n) + 1))
	return 1
}

// HasFunc reports whether a global Lua function is defined.
func (e *Engine) HasFunc(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// AgentContext holds pre-packed data for one agent decision.
type AgentContext struct {
	ID        uint64
	Type      string
	Tick      uint64
	Pos       []int
	HP        int
	MaxHP     int
	Carried   int     // items in inventory
	ItemsHere int     // pickable items sharing the agent's cell
	Exits     [][]int // lateral directions the agent could step into
	CanClimb  bool    // a climbable support is at the agent's cell
}

// AgentCommand is the decision returned by a Lua agent function.
type AgentCommand struct {
	Type  string // "move", "wait", "pickup", "drop"
	Dir   []int  // move direction, one entry per axis
	Item  uint64 // pickup/drop target (0 = first available)
	Count int    // drop count (0 = whole stack)
}

// RunAgentAI calls the Lua function fn(ctx) and returns its command. A
// missing function, a script error or a malformed result all yield "wait".
func (e *Engine) RunAgentAI(fn string, ctx AgentContext) AgentCommand {
	wait := AgentCommand{Type: "wait"}
	f := e.vm.GetGlobal(fn)
	if f == lua.LNil {
		e.log.Error("lua agent function not found", zap.String("name", fn))
		return wait
	}

	t := e.vm.NewTable()
	t.RawSetString("id", lua.LNumber(ctx.ID))
	t.RawSetString("type", lua.LString(ctx.Type))
	t.RawSetString("tick", lua.LNumber(ctx.Tick))
	t.RawSetString("pos", e.intList(ctx.Pos))
	t.RawSetString("hp", lua.LNumber(ctx.HP))
	t.RawSetString("max_hp", lua.LNumber(ctx.MaxHP))
	t.RawSetString("carried", lua.LNumber(ctx.Carried))
	t.RawSetString("items_here", lua.LNumber(ctx.ItemsHere))
	t.RawSetString("can_climb", lua.LBool(ctx.CanClimb))

	exits := e.vm.NewTable()
	for i, d := range ctx.Exits {
		exits.RawSetInt(i+1, e.intList(d))
	}
	t.RawSetString("exits", exits)

	if err := e.vm.CallByParam(lua.P{
		Fn:      f,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua agent ai error", zap.String("func", fn), zap.Error(err), zap.Uint64("entity", ctx.ID))
		return wait
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return wait
	}
	cmd := AgentCommand{
		Type:  lStr(rt, "type"),
		Item:  uint64(lInt(rt, "item")),
		Count: lInt(rt, "count"),
	}
	if dir, ok := rt.RawGetString("dir").(*lua.LTable); ok {
		for i := 1; i <= dir.Len(); i++ {
			cmd.Dir = append(cmd.Dir, int(lua.LVAsNumber(dir.RawGetInt(i))))
		}
	}
	if cmd.Type == "" {
		return wait
	}
	return cmd
}

// TicksPerTurn calls Lua ticks_per_turn(type, base) when a script defines it,
// letting scripts tune agent speed. Without it base is returned unchanged.
func (e *Engine) TicksPerTurn(agentType string, base int) int {
	fn := e.vm.GetGlobal("ticks_per_turn")
	if fn == lua.LNil {
		return base
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(agentType), lua.LNumber(base)); err != nil {
		e.log.Error("lua call error", zap.String("func", "ticks_per_turn"), zap.Error(err))
		return base
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	n := int(lua.LVAsNumber(result))
	if n < 1 {
		return base
	}
	return n
}

func (e *Engine) intList(xs []int) *lua.LTable {
	t := e.vm.NewTable()
	for i, x := range xs {
		t.RawSetInt(i+1, lua.LNumber(x))
	}
	return t
}

// Save writes the script RNG state.
func (e *Engine) Save(enc *save.Encoder) {
	if state, err := e.pcg.MarshalBinary(); err == nil {
		enc.String("rng", hex.EncodeToString(state))
	}
}

func (e *Engine) Load(d *save.Decoder) {
	var rng string
	d.String("rng", &rng)
	if rng == "" {
		return
	}
	state, err := hex.DecodeString(rng)
	if err == nil {
		err = e.pcg.UnmarshalBinary(state)
	}
	if err != nil {
		d.Fail("rng", err)
	}
}

// --- Lua helpers ---

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
