// Package observability exposes simulation counters to Prometheus.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector holds the simulation's Prometheus metrics. A nil collector is
// valid and records nothing.
type SimCollector struct {
	gatherer prometheus.Gatherer

	ActionsTotal      *prometheus.CounterVec
	GravityMovesTotal *prometheus.CounterVec
	QueuedTurns       prometheus.Gauge
	Tick              prometheus.Gauge
	LiveEntities      prometheus.Gauge
	SaveDuration      prometheus.Histogram
}

// NewSimCollector registers the simulation metrics against reg, or the
// default registerer when reg is nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	actions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_actions_total",
		Help: "Actions executed by agents, by agent type and outcome.",
	}, []string{"agent_type", "result"}), "sim_actions_total")
	if err != nil {
		return nil, err
	}

	moves, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_gravity_moves_total",
		Help: "Entities moved or stopped by the gravity engine, by kind (fall, fall_on, sink, stuck).",
	}, []string{"kind"}), "sim_gravity_moves_total")
	if err != nil {
		return nil, err
	}

	queued, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_queued_turns",
		Help: "Turns waiting in the scheduler queue.",
	}), "sim_queued_turns")
	if err != nil {
		return nil, err
	}

	tick, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_tick",
		Help: "Current scheduler tick.",
	}), "sim_tick")
	if err != nil {
		return nil, err
	}

	entities, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_live_entities",
		Help: "Entities currently alive in the store.",
	}), "sim_live_entities")
	if err != nil {
		return nil, err
	}

	saves, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_save_duration_seconds",
		Help:    "Time taken to write a session save.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}), "sim_save_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:          gatherer,
		ActionsTotal:      actions,
		GravityMovesTotal: moves,
		QueuedTurns:       queued,
		Tick:              tick,
		LiveEntities:      entities,
		SaveDuration:      saves,
	}, nil
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *SimCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *SimCollector) ActionExecuted(agentType string, success bool) {
	if c == nil || c.ActionsTotal == nil {
		return
	}
	result := "ok"
	if !success {
		result = "failed"
	}
	c.ActionsTotal.WithLabelValues(agentType, result).Inc()
}

func (c *SimCollector) QueueDepth(n int) {
	if c == nil || c.QueuedTurns == nil {
		return
	}
	c.QueuedTurns.Set(float64(n))
}

func (c *SimCollector) TickAdvanced(tick uint64) {
	if c == nil || c.Tick == nil {
		return
	}
	c.Tick.Set(float64(tick))
}

func (c *SimCollector) GravityMove(kind string) {
	if c == nil || c.GravityMovesTotal == nil {
		return
	}
	c.GravityMovesTotal.WithLabelValues(kind).Inc()
}

func (c *SimCollector) SetLiveEntities(n int) {
	if c == nil || c.LiveEntities == nil {
		return
	}
	c.LiveEntities.Set(float64(n))
}

func (c *SimCollector) ObserveSave(d time.Duration) {
	if c == nil || c.SaveDuration == nil {
		return
	}
	c.SaveDuration.Observe(d.Seconds())
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
