package system

import (
	"container/heap"
	"errors"
	"fmt"
	"slices"

	"github.com/tetrarogue/sim/internal/action"
	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/event"
	"github.com/tetrarogue/sim/internal/core/save"
	"github.com/tetrarogue/sim/internal/world"
	"go.uber.org/zap"
)

// ErrCorruptQueue is reported when a saved turn queue is out of order. The
// save cannot be replayed deterministically and must not be used.
var ErrCorruptQueue = errors.New("turn queue is corrupt")

// Behavior drives every agent of one Agent.Type. OnFailure may be nil.
type Behavior struct {
	ChooseAction func(w *world.World, id ecs.EntityID) action.Action
	OnFailure    func(w *world.World, id ecs.EntityID, res action.Result)
}

type turn struct {
	tick uint64
	id   ecs.EntityID
}

func (a turn) less(b turn) bool {
	if a.tick != b.tick {
		return a.tick < b.tick
	}
	return a.id < b.id
}

// turnQueue is a min-heap ordered by (tick, id).
type turnQueue []turn

func (q turnQueue) Len() int           { return len(q) }
func (q turnQueue) Less(i, j int) bool { return q[i].less(q[j]) }
func (q turnQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *turnQueue) Push(x any)        { *q = append(*q, x.(turn)) }

func (q *turnQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	*q = old[:n-1]
	return t
}

// Scheduler decides whose turn it is. It owns the Agent "new" set: each Run
// enqueues freshly tagged agents and clears it.
type Scheduler struct {
	world     *world.World
	log       *zap.Logger
	metrics   Metrics
	behaviors map[string]Behavior
	queue     turnQueue
	queued    map[ecs.EntityID]bool
	tick      uint64

	// AfterAction runs after every executed action, once the actor has been
	// rescheduled. The session wires the system runner here.
	AfterAction func()
	// OnTickAdvance runs once each time the clock moves to a later tick.
	OnTickAdvance func(tick uint64)
}

func NewScheduler(w *world.World, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		world:     w,
		log:       log,
		metrics:   nopMetrics{},
		behaviors: make(map[string]Behavior),
		queue:     make(turnQueue, 0, 64),
		queued:    make(map[ecs.EntityID]bool),
	}
}

func (s *Scheduler) SetMetrics(m Metrics) { s.metrics = m }

// RegisterBehavior installs the behavior for agents whose Type is tag.
func (s *Scheduler) RegisterBehavior(tag string, b Behavior) {
	if b.ChooseAction == nil {
		panic("system: behavior " + tag + " has no ChooseAction")
	}
	s.behaviors[tag] = b
}

// CurrentTick is the tick of the most recently popped turn.
func (s *Scheduler) CurrentTick() uint64 { return s.tick }

// Len is the number of queued turns, including stale ones not yet purged.
func (s *Scheduler) Len() int { return len(s.queue) }

// NextTurn returns the tick at which id is queued.
func (s *Scheduler) NextTurn(id ecs.EntityID) (uint64, bool) {
	for _, t := range s.queue {
		if t.id == id {
			return t.tick, true
		}
	}
	return 0, false
}

// Schedule queues id at tick. An agent already queued is left alone.
func (s *Scheduler) Schedule(id ecs.EntityID, tick uint64) {
	if s.queued[id] {
		return
	}
	heap.Push(&s.queue, turn{tick: tick, id: id})
	s.queued[id] = true
}

// Run executes one turn. It returns false when no agent is queued.
func (s *Scheduler) Run() bool {
	s.admit()
	if len(s.queue) == 0 {
		return false
	}
	t := heap.Pop(&s.queue).(turn)
	delete(s.queued, t.id)
	s.metrics.QueueDepth(len(s.queue))
	if t.tick > s.tick {
		s.tick = t.tick
		s.metrics.TickAdvanced(s.tick)
		if s.OnTickAdvance != nil {
			s.OnTickAdvance(s.tick)
		}
	}

	// Entries for entities that lost Agent are purged here.
	agent, ok := ecs.Get[component.Agent](s.world.Store, t.id)
	if !ok {
		return true
	}
	b, ok := s.behaviors[agent.Type]
	if !ok {
		s.log.Warn("no behavior for agent type",
			zap.String("type", agent.Type), zap.Stringer("entity", t.id))
		s.Schedule(t.id, s.tick+uint64(max(agent.TicksPerTurn, 1)))
		return true
	}

	act := b.ChooseAction(s.world, t.id)
	if act == nil {
		act = action.Wait{}
	}
	res := act.Execute(s.world, t.id)
	if res.TurnCost <= 0 {
		panic(fmt.Sprintf("system: %T by %v cost %d ticks", act, t.id, res.TurnCost))
	}
	s.metrics.ActionExecuted(agent.Type, res.Success)
	if !res.Success {
		s.log.Debug("action failed",
			zap.Stringer("entity", t.id), zap.String("reason", res.FailureMessage))
		event.Publish(s.world.Bus, event.ActionFailed{Entity: t.id, Reason: res.FailureMessage, Tick: s.tick})
		if b.OnFailure != nil {
			b.OnFailure(s.world, t.id, res)
		}
	}

	// Requeue before the hook so an autosave sees the actor. If gravity or
	// cleanup kills it, the stale entry is purged when popped.
	if ecs.Has[component.Agent](s.world.Store, t.id) {
		s.Schedule(t.id, s.tick+uint64(res.TurnCost))
	}
	if s.AfterAction != nil {
		s.AfterAction()
	}
	return true
}

// admit queues agents tagged since the last run at the earliest queued tick,
// or the current tick when the queue is empty.
func (s *Scheduler) admit() {
	store := s.world.Store
	fresh := ecs.GetAllNew[component.Agent](store)
	ecs.ClearNew[component.Agent](store)
	if len(fresh) == 0 {
		return
	}
	at := s.tick
	if len(s.queue) > 0 {
		at = s.queue[0].tick
	}
	for _, id := range fresh {
		s.Schedule(id, at)
	}
}

// Save writes the clock and the queue in pop order.
func (s *Scheduler) Save(e *save.Encoder) {
	e.Uint64("tick", s.tick)
	sorted := slices.Clone(s.queue)
	slices.SortFunc(sorted, func(a, b turn) int {
		switch {
		case a.less(b):
			return -1
		case b.less(a):
			return 1
		}
		return 0
	})
	e.List("queue", len(sorted), func(i int, te *save.Encoder) {
		te.Uint64("tick", sorted[i].tick)
		te.Uint64("id", uint64(sorted[i].id))
	})
}

// Load restores a queue written by Save. Entries must be strictly ascending
// and not earlier than the clock; anything else fails with ErrCorruptQueue.
func (s *Scheduler) Load(d *save.Decoder) {
	s.queue = s.queue[:0]
	clear(s.queued)
	d.Uint64("tick", &s.tick)
	var prev turn
	d.List("queue", func(i int, td *save.Decoder) {
		var t turn
		var raw uint64
		td.Uint64("tick", &t.tick)
		td.Uint64("id", &raw)
		t.id = ecs.EntityID(raw)
		switch {
		case t.tick < s.tick:
			td.Fail("tick", fmt.Errorf("%w: entry %d at tick %d before clock %d", ErrCorruptQueue, i, t.tick, s.tick))
			return
		case i > 0 && !prev.less(t):
			td.Fail("tick", fmt.Errorf("%w: entry %d (%d, %v) out of order", ErrCorruptQueue, i, t.tick, t.id))
			return
		}
		prev = t
		s.queue = append(s.queue, t)
		s.queued[t.id] = true
	})
	// A sorted slice already satisfies the heap property.
}
