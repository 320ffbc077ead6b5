package system

// Metrics receives counters from the scheduler and the gravity engine. The
// Prometheus collector in package observability implements it.
type Metrics interface {
	ActionExecuted(agentType string, success bool)
	QueueDepth(n int)
	TickAdvanced(tick uint64)
	GravityMove(kind string)
}

type nopMetrics struct{}

func (nopMetrics) ActionExecuted(string, bool) {}
func (nopMetrics) QueueDepth(int)              {}
func (nopMetrics) TickAdvanced(uint64)         {}
func (nopMetrics) GravityMove(string)          {}
