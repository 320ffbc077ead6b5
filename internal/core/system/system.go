package system

// Phase defines execution ordering within a single scheduler step.
type Phase int

const (
	PhaseResolve Phase = iota // 0: physical consistency (gravity fixpoint)
	PhaseCleanup              // 1: destroy queued entities
	PhasePersist              // 2: autosave
)

// System is the interface every per-step system implements. step counts
// executed actions; it is not the scheduler's tick.
type System interface {
	Phase() Phase
	Update(step uint64)
}
