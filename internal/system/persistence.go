package system

import (
	"context"
	"time"

	coresys "github.com/tetrarogue/sim/internal/core/system"
	"go.uber.org/zap"
)

// SaveFunc writes the whole session somewhere durable.
type SaveFunc func(ctx context.Context) error

// PersistenceSystem autosaves every interval steps. Phase: Persist.
type PersistenceSystem struct {
	save      SaveFunc
	log       *zap.Logger
	stepCount int
	interval  int // autosave every N steps; 0 disables
}

func NewPersistenceSystem(save SaveFunc, log *zap.Logger, intervalSteps int) *PersistenceSystem {
	return &PersistenceSystem{
		save:     save,
		log:      log,
		interval: intervalSteps,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(step uint64) {
	if s.interval <= 0 {
		return
	}
	s.stepCount++
	if s.stepCount < s.interval {
		return
	}
	s.stepCount = 0
	s.SaveNow(step)
}

// SaveNow saves immediately, ignoring the interval. Used on shutdown.
func (s *PersistenceSystem) SaveNow(step uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	if err := s.save(ctx); err != nil {
		s.log.Error("autosave failed", zap.Uint64("step", step), zap.Error(err))
		return
	}
	s.log.Info("autosave complete", zap.Uint64("step", step), zap.Duration("took", time.Since(start)))
}
