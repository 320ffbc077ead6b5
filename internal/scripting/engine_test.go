package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tetrarogue/sim/internal/core/save"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

func writeScript(t *testing.T, dir, sub, name, src string) {
	t.Helper()
	p := filepath.Join(dir, sub)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(p, name), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newEngine(t *testing.T, scripts map[string]string) *Engine {
	t.Helper()
	dir := t.TempDir()
	for name, src := range scripts {
		writeScript(t, dir, "ai", name, src)
	}
	e, err := NewEngine(dir, 7, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestRunAgentAIReadsContext(t *testing.T) {
	e := newEngine(t, map[string]string{"walker.lua": `
function walker_ai(ctx)
  if ctx.items_here > 0 then
    return { type = "pickup", item = 70 }
  end
  if ctx.hp < ctx.max_hp then
    return { type = "drop", count = 2 }
  end
  return { type = "move", dir = ctx.exits[2] }
end
`})

	tests := []struct {
		name string
		ctx  AgentContext
		want AgentCommand
	}{
		{
			name: "pickup",
			ctx:  AgentContext{ItemsHere: 1, HP: 3, MaxHP: 3},
			want: AgentCommand{Type: "pickup", Item: 70},
		},
		{
			name: "drop",
			ctx:  AgentContext{HP: 1, MaxHP: 3},
			want: AgentCommand{Type: "drop", Count: 2},
		},
		{
			name: "move",
			ctx:  AgentContext{HP: 3, MaxHP: 3, Exits: [][]int{{0, 1, 0, 0}, {0, -1, 0, 0}}},
			want: AgentCommand{Type: "move", Dir: []int{0, -1, 0, 0}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := e.RunAgentAI("walker_ai", tc.ctx)
			if got.Type != tc.want.Type || got.Item != tc.want.Item || got.Count != tc.want.Count {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
			if len(got.Dir) != len(tc.want.Dir) {
				t.Fatalf("dir = %v, want %v", got.Dir, tc.want.Dir)
			}
			for i := range got.Dir {
				if got.Dir[i] != tc.want.Dir[i] {
					t.Errorf("dir = %v, want %v", got.Dir, tc.want.Dir)
				}
			}
		})
	}
}

func TestRunAgentAIFallsBackToWait(t *testing.T) {
	e := newEngine(t, map[string]string{"bad.lua": `
function broken_ai(ctx) error("boom") end
function silent_ai(ctx) return nil end
`})
	for _, fn := range []string{"broken_ai", "silent_ai", "missing_ai"} {
		if got := e.RunAgentAI(fn, AgentContext{}); got.Type != "wait" {
			t.Errorf("%s: got %+v, want wait", fn, got)
		}
	}
}

func TestTicksPerTurn(t *testing.T) {
	plain := newEngine(t, nil)
	if got := plain.TicksPerTurn("goblin", 3); got != 3 {
		t.Errorf("without script: %d, want 3", got)
	}

	e := newEngine(t, map[string]string{"speed.lua": `
function ticks_per_turn(kind, base)
  if kind == "slow" then return base * 4 end
  return 0
end
`})
	if got := e.TicksPerTurn("slow", 2); got != 8 {
		t.Errorf("slow: %d, want 8", got)
	}
	if got := e.TicksPerTurn("fast", 2); got != 2 {
		t.Errorf("non-positive result should keep base, got %d", got)
	}
}

func TestRandomStateRoundTrip(t *testing.T) {
	src := map[string]string{"rand.lua": `function roll(ctx) return { type = "wait", count = sim_random(1000) } end`}
	e := newEngine(t, src)
	e.RunAgentAI("roll", AgentContext{})

	enc := save.NewEncoder()
	e.Save(enc)
	text, err := yaml.Marshal(enc.Node())
	if err != nil {
		t.Fatal(err)
	}

	restored := newEngine(t, src)
	var doc yaml.Node
	if err := yaml.Unmarshal(text, &doc); err != nil {
		t.Fatal(err)
	}
	d, err := save.NewDecoder(&doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	restored.Load(d)
	if err := d.Finish(); err != nil {
		t.Fatalf("load: %v", err)
	}

	for range 5 {
		a := e.RunAgentAI("roll", AgentContext{}).Count
		b := restored.RunAgentAI("roll", AgentContext{}).Count
		if a != b {
			t.Fatalf("rolls diverged: %d vs %d", a, b)
		}
	}
}

func TestLoadErrorNamesFile(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "core", "bad.lua", "function (")
	if _, err := NewEngine(dir, 1, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected a syntax error")
	}
}
