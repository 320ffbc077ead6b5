package system

import (
	"sort"
)

// Runner executes systems in phase order after every action.
type Runner struct {
	systems []System
	sorted  bool
	step    uint64
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Step returns how many times Tick has run.
func (r *Runner) Step() uint64 { return r.step }

// SetStep restores the step counter after a load.
func (r *Runner) SetStep(n uint64) { r.step = n }

func (r *Runner) Tick() {
	r.ensureSorted()
	r.step++
	for _, s := range r.systems {
		s.Update(r.step)
	}
}

// TickPhase runs only the systems of one phase without advancing the step
// counter. Used to settle the world after loading a level.
func (r *Runner) TickPhase(phase Phase) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(r.step)
		}
	}
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		// Stable so systems of one phase keep registration order.
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
