package system

import (
	"github.com/tetrarogue/sim/internal/core/ecs"
	coresys "github.com/tetrarogue/sim/internal/core/system"
	"go.uber.org/zap"
)

// CleanupSystem flushes the deferred entity destruction queue after gravity
// has settled. Phase: Cleanup.
type CleanupSystem struct {
	store *ecs.Store
	log   *zap.Logger
}

func NewCleanupSystem(store *ecs.Store, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{store: store, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(step uint64) {
	if n := s.store.FlushDestroyQueue(); n > 0 {
		s.log.Debug("destroyed queued entities", zap.Int("count", n), zap.Uint64("step", step))
	}
}
