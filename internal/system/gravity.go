package system

import (
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/event"
	"github.com/tetrarogue/sim/internal/core/save"
	coresys "github.com/tetrarogue/sim/internal/core/system"
	"github.com/tetrarogue/sim/internal/geom"
	"github.com/tetrarogue/sim/internal/world"
	"go.uber.org/zap"
)

// Support is what the supports around an entity do for it, ordered from
// least to most severe. When several supports apply the least severe wins.
type Support uint8

const (
	SupportNone Support = iota // permanent ground: stop tracking
	SupportRest
	SupportSink
	SupportFall
)

var supportNames = []string{"none", "rest", "sink", "fall"}

func (s Support) String() string {
	if int(s) < len(supportNames) {
		return supportNames[s]
	}
	return fmt.Sprintf("support(%d)", s)
}

// Status is a tracked entity's standing between runs.
type Status uint8

const (
	StatusPending Status = iota // needs evaluation
	StatusRest
	StatusSink  // advanced by SinkObjects only
	StatusStuck // fell onto an obstacle with nowhere to go; waits to be moved
)

var statusNames = []string{"pending", "rest", "sink", "stuck"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", s)
}

func parseStatus(s string) (Status, error) {
	if i := slices.Index(statusNames, s); i >= 0 {
		return Status(i), nil
	}
	return 0, fmt.Errorf("unknown gravity status %q", s)
}

const (
	// maxRounds bounds Run against trigger chains that keep spawning
	// entities onto each other.
	maxRounds = 1024
	// maxFall bounds a single drop in an unbounded world.
	maxFall = 1 << 16
)

type GravityOptions struct {
	// FallOnDamage is dealt to each living obstacle a falling entity hits.
	FallOnDamage int
	// ReadmitOnSupportLoss re-flags the occupants a support held when the
	// support moves, is destroyed or loses SupportsWeight.
	ReadmitOnSupportLoss bool
	Seed                 uint64
}

// Gravity converges every weighted entity to rest, sink or fall and applies
// the consequence. It owns the Pos "new" set: each run consumes and clears
// it. Phase: Resolve.
type Gravity struct {
	world        *world.World
	log          *zap.Logger
	metrics      Metrics
	tracked      map[ecs.EntityID]Status
	pcg          *rand.PCG
	rng          *rand.Rand
	fallOnDamage int
}

func NewGravity(w *world.World, log *zap.Logger, opts GravityOptions) *Gravity {
	if log == nil {
		log = zap.NewNop()
	}
	pcg := rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)
	g := &Gravity{
		world:        w,
		log:          log,
		metrics:      nopMetrics{},
		tracked:      make(map[ecs.EntityID]Status, 256),
		pcg:          pcg,
		rng:          rand.New(pcg),
		fallOnDamage: opts.FallOnDamage,
	}
	if opts.ReadmitOnSupportLoss {
		g.watchSupports()
	}
	return g
}

func (g *Gravity) SetMetrics(m Metrics) { g.metrics = m }

func (g *Gravity) Phase() coresys.Phase { return coresys.PhaseResolve }

func (g *Gravity) Update(_ uint64) { g.Run() }

// Status reports whether id is tracked and how.
func (g *Gravity) Status(id ecs.EntityID) (Status, bool) {
	s, ok := g.tracked[id]
	return s, ok
}

// Tracked is the number of entities in the working set.
func (g *Gravity) Tracked() int { return len(g.tracked) }

// Resolve computes id's support at its current cell without moving it.
// Returns false when id has no position.
func (g *Gravity) Resolve(id ecs.EntityID) (Support, bool) {
	at, ok := g.world.PosOf(id)
	if !ok {
		return 0, false
	}
	return g.supportAt(id, at, false), true
}

// Run admits newly positioned weighted entities and settles the working set
// until a round admits nothing new. Sinking entities are left alone, and
// stuck ones only resume once the obstacle below them is gone or something
// supports them. Calling Run on a settled world moves nothing.
func (g *Gravity) Run() {
	for round := 0; ; round++ {
		admitted := g.admit()
		if round > 0 && admitted == 0 {
			return
		}
		if round >= maxRounds {
			g.log.Error("gravity did not settle", zap.Int("rounds", round), zap.Int("tracked", len(g.tracked)))
			return
		}
		for _, id := range g.trackedIDs() {
			st, ok := g.tracked[id]
			if !ok || st == StatusSink {
				continue
			}
			if st == StatusStuck && !g.freed(id) {
				continue
			}
			g.settle(id)
		}
	}
}

// freed reports whether a stuck entity can be settled again.
func (g *Gravity) freed(id ecs.EntityID) bool {
	at, ok := g.world.PosOf(id)
	if !ok || !g.subject(id) {
		delete(g.tracked, id)
		return false
	}
	return !g.world.Blocked(at.Add(geom.Down)) || g.supportAt(id, at, false) != SupportFall
}

// SinkObjects moves every sinking entity one cell down, or updates its
// status if its support changed. Called once per scheduler tick, never from
// Run, so repeated runs within a tick do not speed sinking up.
func (g *Gravity) SinkObjects() {
	for _, id := range g.trackedIDs() {
		if g.tracked[id] != StatusSink {
			continue
		}
		at, ok := g.world.PosOf(id)
		if !ok || !g.subject(id) {
			delete(g.tracked, id)
			continue
		}
		st := g.supportAt(id, at, false)
		if st != SupportSink {
			g.setStatus(id, st)
			continue
		}
		below := at.Add(geom.Down)
		if g.world.Blocked(below) {
			continue
		}
		moved := g.world.RawMove(id, below, func() {
			event.Publish(g.world.Bus, event.Sank{Entity: id, From: at, To: below})
		})
		g.metrics.GravityMove("sink")
		if moved != id {
			delete(g.tracked, id)
		}
		if p, ok := g.world.PosOf(moved); ok {
			g.setStatus(moved, g.supportAt(moved, p, false))
		}
	}
}

// admit consumes the Pos "new" set.
func (g *Gravity) admit() int {
	store := g.world.Store
	fresh := ecs.GetAllNew[component.Pos](store)
	ecs.ClearNew[component.Pos](store)
	n := 0
	for _, id := range fresh {
		if g.subject(id) {
			g.tracked[id] = StatusPending
			n++
		}
	}
	return n
}

func (g *Gravity) subject(id ecs.EntityID) bool {
	store := g.world.Store
	return ecs.Has[component.Weight](store, id) &&
		ecs.Has[component.Pos](store, id) &&
		!ecs.Has[component.NoGravity](store, id)
}

func (g *Gravity) setStatus(id ecs.EntityID, st Support) {
	switch st {
	case SupportNone:
		delete(g.tracked, id)
	case SupportRest:
		g.tracked[id] = StatusRest
	case SupportSink:
		g.tracked[id] = StatusSink
	default:
		g.tracked[id] = StatusPending
	}
}

// settle drops id until something holds it.
func (g *Gravity) settle(id ecs.EntityID) {
	falling := false
	for steps := 0; ; steps++ {
		// A trigger fired on the way down may have removed the entity.
		at, ok := g.world.PosOf(id)
		if !ok || !g.subject(id) {
			delete(g.tracked, id)
			return
		}
		st := g.supportAt(id, at, falling)
		if st != SupportFall {
			g.setStatus(id, st)
			if falling {
				event.Publish(g.world.Bus, event.Landed{Entity: id, Pos: at})
			}
			return
		}
		if steps >= maxFall {
			g.log.Error("entity fell without reaching ground", zap.Stringer("entity", id), zap.Stringer("pos", at))
			g.tracked[id] = StatusStuck
			return
		}
		below := at.Add(geom.Down)
		if g.world.Blocked(below) {
			g.fallOn(id, at, below)
			return
		}
		id = g.moveTracked(id, below, func() {
			event.Publish(g.world.Bus, event.Fell{Entity: id, From: at, To: below})
		})
		g.metrics.GravityMove("fall")
		falling = true
	}
}

// fallOn handles a faller at `at` whose cell below holds an obstacle that
// does not support it: living obstacles take damage, then the faller slides
// to a lateral neighbour of the obstacle whose cell above is also free. With
// no such neighbour it stays put and is marked stuck.
func (g *Gravity) fallOn(id ecs.EntityID, at, below geom.Vec) {
	ev := event.FellOn{Entity: id}
	for _, ob := range g.world.At(below) {
		if !ecs.Has[component.BlocksMovement](g.world.Store, ob) {
			continue
		}
		if ev.Obstacle.IsZero() {
			ev.Obstacle = ob
		}
		if g.fallOnDamage > 0 && g.world.Damage(ob, g.fallOnDamage) {
			ev.Obstacle, ev.Damage = ob, g.fallOnDamage
		}
	}

	var free []geom.Vec
	for _, d := range geom.Lateral() {
		to, over := below.Add(d), at.Add(d)
		if g.world.InBounds(to) && g.world.InBounds(over) &&
			!g.world.Blocked(to) && !g.world.Blocked(over) {
			free = append(free, to)
		}
	}
	if len(free) == 0 {
		g.tracked[id] = StatusStuck
		g.metrics.GravityMove("stuck")
		g.log.Debug("falling entity stuck", zap.Stringer("entity", id), zap.Stringer("pos", at))
		event.Publish(g.world.Bus, ev)
		return
	}
	ev.Displaced, ev.To = true, free[g.rng.IntN(len(free))]
	event.Publish(g.world.Bus, ev)
	g.metrics.GravityMove("fall_on")
	g.moveTracked(id, ev.To, nil)
}

// moveTracked moves id and carries its tracking over to whatever entity
// represents it afterwards.
func (g *Gravity) moveTracked(id ecs.EntityID, to geom.Vec, onMoved func()) ecs.EntityID {
	moved := g.world.RawMove(id, to, onMoved)
	if moved != id {
		delete(g.tracked, id)
	}
	g.tracked[moved] = StatusPending
	return moved
}

// supportAt combines the Within supports sharing the cell with the Above
// supports in the cell below. The bottom of the world is permanent.
func (g *Gravity) supportAt(id ecs.EntityID, at geom.Vec, falling bool) Support {
	below := at.Add(geom.Down)
	if g.world.BelowFloor(below) {
		return SupportNone
	}
	store := g.world.Store
	var bits component.MoveBits
	if cm, ok := ecs.Get[component.CanMove](store, id); ok {
		bits = cm.Bits
	}
	best := SupportFall
	consider := func(cell geom.Vec, typ component.SupportType) {
		for _, s := range g.world.At(cell) {
			if s == id {
				continue
			}
			sw, ok := ecs.Get[component.SupportsWeight](store, s)
			if !ok || sw.Type != typ {
				continue
			}
			best = min(best, condSupport(sw.Cond, bits, falling))
		}
	}
	consider(at, component.SupportWithin)
	consider(below, component.SupportAbove)
	return best
}

func condSupport(cond component.SupportCond, bits component.MoveBits, falling bool) Support {
	switch cond {
	case component.CondAlways:
		return SupportRest
	case component.CondPermanent:
		return SupportNone
	case component.CondClimbing:
		// Ladders hold climbers but do not catch one already falling.
		if bits.Has(component.MoveClimb) && !falling {
			return SupportRest
		}
	case component.CondBuoyant:
		if bits.Has(component.MoveSwim) {
			return SupportRest
		}
		return SupportSink
	}
	return SupportFall
}

// watchSupports re-flags whatever a support was holding when it stops being
// one at its cell.
func (g *Gravity) watchSupports() {
	store := g.world.Store
	ecs.OnRemove(store, func(id ecs.EntityID, p component.Pos) {
		if sw, ok := ecs.Get[component.SupportsWeight](store, id); ok {
			g.readmit(p.V, sw.Type)
		}
	})
	ecs.OnRemove(store, func(id ecs.EntityID, sw component.SupportsWeight) {
		if p, ok := ecs.Get[component.Pos](store, id); ok {
			g.readmit(p.V, sw.Type)
		}
	})
}

func (g *Gravity) readmit(at geom.Vec, typ component.SupportType) {
	held := at
	if typ == component.SupportAbove {
		held = at.Add(geom.Up)
	}
	for _, id := range g.world.At(held) {
		ecs.MarkNew[component.Pos](g.world.Store, id)
	}
}

func (g *Gravity) trackedIDs() []ecs.EntityID {
	ids := make([]ecs.EntityID, 0, len(g.tracked))
	for id := range g.tracked {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Save writes the working set in ID order and the fall-on RNG state.
func (g *Gravity) Save(e *save.Encoder) {
	ids := g.trackedIDs()
	e.List("tracked", len(ids), func(i int, te *save.Encoder) {
		te.Uint64("id", uint64(ids[i]))
		te.String("status", g.tracked[ids[i]].String())
	})
	if state, err := g.pcg.MarshalBinary(); err == nil {
		e.String("rng", hex.EncodeToString(state))
	}
}

func (g *Gravity) Load(d *save.Decoder) {
	clear(g.tracked)
	d.List("tracked", func(_ int, td *save.Decoder) {
		var raw uint64
		var status string
		td.Uint64("id", &raw)
		td.String("status", &status)
		st, err := parseStatus(status)
		if err != nil {
			td.Fail("status", err)
			return
		}
		g.tracked[ecs.EntityID(raw)] = st
	})
	var rng string
	d.String("rng", &rng)
	if rng == "" {
		return
	}
	state, err := hex.DecodeString(rng)
	if err == nil {
		err = g.pcg.UnmarshalBinary(state)
	}
	if err != nil {
		d.Fail("rng", err)
	}
}
