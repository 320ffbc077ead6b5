package system

import "testing"

type recorder struct {
	phase Phase
	name  string
	log   *[]string
}

func (r recorder) Phase() Phase { return r.phase }
func (r recorder) Update(uint64) { *r.log = append(*r.log, r.name) }

func TestRunnerOrdersByPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{PhasePersist, "persist", &log})
	r.Register(recorder{PhaseResolve, "gravity", &log})
	r.Register(recorder{PhaseCleanup, "cleanup", &log})
	r.Register(recorder{PhaseResolve, "gravity2", &log})

	r.Tick()
	want := []string{"gravity", "gravity2", "cleanup", "persist"}
	if len(log) != len(want) {
		t.Fatalf("ran %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("ran %v, want %v", log, want)
		}
	}
	if r.Step() != 1 {
		t.Fatalf("Step = %d, want 1", r.Step())
	}

	log = log[:0]
	r.TickPhase(PhaseCleanup)
	if len(log) != 1 || log[0] != "cleanup" || r.Step() != 1 {
		t.Fatalf("TickPhase ran %v (step %d)", log, r.Step())
	}
}
