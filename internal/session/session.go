// Package session assembles one running simulation: the store, world,
// gravity engine, turn scheduler and per-step systems, plus save and resume.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/tetrarogue/sim/internal/behavior"
	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/config"
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/event"
	"github.com/tetrarogue/sim/internal/core/save"
	coresys "github.com/tetrarogue/sim/internal/core/system"
	"github.com/tetrarogue/sim/internal/data"
	"github.com/tetrarogue/sim/internal/geom"
	"github.com/tetrarogue/sim/internal/persist"
	"github.com/tetrarogue/sim/internal/scripting"
	"github.com/tetrarogue/sim/internal/system"
	"github.com/tetrarogue/sim/internal/world"
	"go.uber.org/zap"
)

// Metrics extends the scheduler and gravity hooks with session-level gauges.
type Metrics interface {
	system.Metrics
	SetLiveEntities(n int)
	ObserveSave(d time.Duration)
}

// Session owns all simulation state. Nothing here is shared between
// sessions; a fresh session is constructed for every run or resume.
type Session struct {
	Store     *ecs.Store
	Bus       *event.Bus
	World     *world.World
	Gravity   *system.Gravity
	Scheduler *system.Scheduler

	cfg      *config.Config
	log      *zap.Logger
	engine   *scripting.Engine
	backend  persist.Backend
	runner   *coresys.Runner
	autosave *system.PersistenceSystem
	metrics  Metrics
}

// New builds an empty session. engine may be nil, in which case every agent
// idles. backend may be nil when the session is never saved.
func New(cfg *config.Config, engine *scripting.Engine, backend persist.Backend, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rule, err := world.ParseWeightRule(cfg.Triggers.WeightRule)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	store := ecs.NewStore(log.Named("store"))
	component.RegisterAll(store)
	bus := event.NewBus()
	w := world.New(store, bus, log.Named("world"), world.Options{WeightRule: rule})

	s := &Session{
		Store:   store,
		Bus:     bus,
		World:   w,
		cfg:     cfg,
		log:     log,
		engine:  engine,
		backend: backend,
		runner:  coresys.NewRunner(),
	}
	s.Gravity = system.NewGravity(w, log.Named("gravity"), system.GravityOptions{
		FallOnDamage:         cfg.Gravity.FallOnDamage,
		ReadmitOnSupportLoss: cfg.Gravity.ReadmitOnSupportLoss,
		Seed:                 cfg.Simulation.Seed,
	})
	s.Scheduler = system.NewScheduler(w, log.Named("scheduler"))
	s.autosave = system.NewPersistenceSystem(s.Save, log.Named("autosave"), cfg.Save.AutosaveEvery)

	s.runner.Register(s.Gravity)
	s.runner.Register(system.NewCleanupSystem(store, log.Named("cleanup")))
	if backend != nil {
		s.runner.Register(s.autosave)
	}
	s.Scheduler.AfterAction = s.runner.Tick
	s.Scheduler.OnTickAdvance = func(uint64) { s.Gravity.SinkObjects() }

	s.registerBehaviors()
	s.logNotifications()
	return s, nil
}

func (s *Session) registerBehaviors() {
	s.Scheduler.RegisterBehavior("idle", behavior.Idle())
	for agentType, fn := range s.cfg.Scripting.Behaviors {
		if s.engine == nil || !s.engine.HasFunc(fn) {
			s.log.Warn("agent script unavailable, agents will idle",
				zap.String("type", agentType), zap.String("func", fn))
			s.Scheduler.RegisterBehavior(agentType, behavior.Idle())
			continue
		}
		s.Scheduler.RegisterBehavior(agentType,
			behavior.Lua(s.engine, fn, s.Scheduler.CurrentTick, s.log.Named("ai")))
	}
}

// logNotifications reports what observers would see to the structured log.
func (s *Session) logNotifications() {
	log := s.log.Named("notify")
	event.Subscribe(s.Bus, func(ev event.Message) {
		log.Info("message", zap.Stringer("mover", ev.Mover), zap.String("text", ev.Text))
	})
	event.Subscribe(s.Bus, func(ev event.Triggered) {
		log.Info("trigger fired", zap.Int("trigger_id", ev.TriggerID), zap.Stringer("by", ev.Mover))
	})
	event.Subscribe(s.Bus, func(ev event.FellOn) {
		log.Info("fell on",
			zap.Stringer("entity", ev.Entity), zap.Stringer("obstacle", ev.Obstacle),
			zap.Int("damage", ev.Damage), zap.Bool("displaced", ev.Displaced))
	})
	event.Subscribe(s.Bus, func(ev event.Died) {
		log.Info("died", zap.Stringer("entity", ev.Entity), zap.String("name", s.World.NameOf(ev.Entity)))
	})
	event.Subscribe(s.Bus, func(ev event.PickedUp) {
		log.Debug("picked up", zap.Stringer("actor", ev.Actor), zap.Stringer("item", ev.Item))
	})
	event.Subscribe(s.Bus, func(ev event.Landed) {
		log.Debug("landed", zap.Stringer("entity", ev.Entity), zap.Stringer("pos", ev.Pos))
	})
}

// SetMetrics routes scheduler, gravity and session measurements to m.
func (s *Session) SetMetrics(m Metrics) {
	s.metrics = m
	s.Scheduler.SetMetrics(m)
	s.Gravity.SetMetrics(m)
}

// LoadLevel spawns lv into the empty session and settles it: agents without
// a turn cost get the configured default (scripts may adjust it), and
// gravity and cleanup run once before the first turn.
func (s *Session) LoadLevel(lv *data.Level) error {
	if s.Store.Len() != 0 {
		return fmt.Errorf("session: level loaded into a non-empty world")
	}
	n, err := lv.Spawn(s.World, s.log.Named("level"))
	if err != nil {
		return err
	}
	for _, id := range ecs.All[component.Agent](s.Store) {
		a, _ := ecs.Get[component.Agent](s.Store, id)
		if a.TicksPerTurn <= 0 {
			a.TicksPerTurn = s.cfg.Simulation.DefaultTicksPerTurn
		}
		if s.engine != nil {
			a.TicksPerTurn = s.engine.TicksPerTurn(a.Type, a.TicksPerTurn)
		}
	}
	s.settle()
	s.log.Info("level ready", zap.String("level", lv.Name), zap.Int("entities", n),
		zap.Int("agents", ecs.Count[component.Agent](s.Store)))
	return nil
}

func (s *Session) settle() {
	s.runner.TickPhase(coresys.PhaseResolve)
	s.runner.TickPhase(coresys.PhaseCleanup)
	if s.metrics != nil {
		s.metrics.SetLiveEntities(s.Store.Len())
	}
}

// Step executes one turn. It returns false once no agent is left.
func (s *Session) Step() bool {
	ok := s.Scheduler.Run()
	if s.metrics != nil {
		s.metrics.SetLiveEntities(s.Store.Len())
	}
	return ok
}

// Run steps until ctx is cancelled, the queue runs dry or maxTurns turns
// have run (0 means no limit). It returns the number of turns taken.
func (s *Session) Run(ctx context.Context, maxTurns int) (int, error) {
	turns := 0
	for maxTurns <= 0 || turns < maxTurns {
		if err := ctx.Err(); err != nil {
			return turns, err
		}
		if !s.Step() {
			s.log.Info("no agents left", zap.Uint64("tick", s.Scheduler.CurrentTick()))
			break
		}
		turns++
	}
	return turns, nil
}

// Encode writes every piece of session state.
func (s *Session) Encode(e *save.Encoder) {
	e.Uint64("step", s.runner.Step())
	b := s.World.Bounds()
	e.Object("bounds", func(be *save.Encoder) {
		be.Ints("min", b.Min[:])
		be.Ints("max", b.Max[:])
	})
	e.Value("store", s.Store)
	e.Value("gravity", s.Gravity)
	e.Value("scheduler", s.Scheduler)
	if s.engine != nil {
		e.Value("scripting", s.engine)
	}
}

// Decode restores a session written by Encode into this freshly built one.
func (s *Session) Decode(d *save.Decoder) {
	var step uint64
	d.Uint64("step", &step)
	d.Object("bounds", func(bd *save.Decoder) {
		var lo, hi []int
		bd.Ints("min", &lo)
		bd.Ints("max", &hi)
		var r geom.Region
		var err error
		if r.Min, err = geom.FromSlice(lo); err != nil {
			bd.Fail("min", err)
			return
		}
		if r.Max, err = geom.FromSlice(hi); err != nil {
			bd.Fail("max", err)
			return
		}
		s.World.SetBounds(r)
	})
	d.Value("store", s.Store)
	d.Value("gravity", s.Gravity)
	d.Value("scheduler", s.Scheduler)
	if s.engine != nil {
		d.Value("scripting", s.engine)
	} else {
		d.Skip("scripting")
	}
	s.runner.SetStep(step)
}

// Save writes the session to the backend.
func (s *Session) Save(ctx context.Context) error {
	if s.backend == nil {
		return fmt.Errorf("session: no save backend")
	}
	start := time.Now()
	e := save.NewEncoder()
	s.Encode(e)
	err := s.backend.Store(ctx, e.Node(), persist.Meta{
		Tick:     s.Scheduler.CurrentTick(),
		Entities: s.Store.Len(),
	})
	if err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveSave(time.Since(start))
	}
	return nil
}

// SaveNow saves immediately through the autosave system, logging the result.
func (s *Session) SaveNow() {
	s.autosave.SaveNow(s.runner.Step())
}

// Resume loads the stored save, if any, into this empty session. It reports
// whether a save was found. Incompatible saves fail with
// persist.ErrIncompatibleSave and leave nothing loaded.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	if s.backend == nil {
		return false, nil
	}
	doc, found, err := s.backend.Fetch(ctx)
	if err != nil || !found {
		return false, err
	}
	d, err := save.NewDecoder(doc, func(path, key string) {
		s.log.Warn("unknown save field skipped", zap.String("path", path), zap.String("key", key))
	})
	if err != nil {
		return false, fmt.Errorf("session: resume: %w", err)
	}
	s.Decode(d)
	if err := d.Finish(); err != nil {
		return false, fmt.Errorf("session: resume: %w", err)
	}
	s.Store.Verify()
	s.log.Info("session resumed",
		zap.Uint64("tick", s.Scheduler.CurrentTick()), zap.Int("entities", s.Store.Len()))
	return true, nil
}
