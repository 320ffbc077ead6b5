package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/tetrarogue/sim/internal/config"
	"github.com/tetrarogue/sim/internal/data"
	"github.com/tetrarogue/sim/internal/observability"
	"github.com/tetrarogue/sim/internal/persist"
	"github.com/tetrarogue/sim/internal/scripting"
	"github.com/tetrarogue/sim/internal/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(level string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            tetrarogue  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       four-dimensional turn simulator     \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mlevel:\033[0m %s\n\n", level)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Simulation ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/sim.toml"
	if p := os.Getenv("TETRAROGUE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if p := startProfile(cfg.Profile); p != nil {
		defer p.Stop()
	}

	printBanner(cfg.Simulation.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Save backend
	printSection("storage")
	backend, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeBackend()
	printOK("save backend: " + cfg.Save.Backend)
	fmt.Println()

	// 4. Scripts
	printSection("scripts")
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, cfg.Simulation.Seed, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	printStat("agent behaviors", len(cfg.Scripting.Behaviors))
	fmt.Println()

	// 5. Session
	printSection("world")
	sess, err := session.New(cfg, engine, backend, log)
	if err != nil {
		return err
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		collector, err := observability.NewSimCollector(nil)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		sess.SetMetrics(collector)
		metricsSrv = serveMetrics(cfg.Metrics.BindAddress, collector, log)
	}

	resumed := false
	if cfg.Save.Resume {
		if resumed, err = sess.Resume(ctx); err != nil {
			return fmt.Errorf("resume: %w", err)
		}
	}
	if resumed {
		printOK("resumed from save")
	} else {
		lv, err := data.LoadLevel(cfg.Simulation.Level)
		if err != nil {
			return err
		}
		if err := sess.LoadLevel(lv); err != nil {
			return err
		}
	}
	printStat("entities", sess.Store.Len())
	printStat("tracked by gravity", sess.Gravity.Tracked())
	fmt.Println()

	// 6. Run
	printReady(fmt.Sprintf("running up to %d turns", cfg.Simulation.MaxTurns))
	start := time.Now()
	turns, runErr := sess.Run(ctx, cfg.Simulation.MaxTurns)
	log.Info("simulation stopped",
		zap.Int("turns", turns),
		zap.Uint64("tick", sess.Scheduler.CurrentTick()),
		zap.Int("entities", sess.Store.Len()),
		zap.Duration("took", time.Since(start)),
	)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	// 7. Final save
	sess.SaveNow()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// openBackend returns the configured save backend and a cleanup func.
func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (persist.Backend, func(), error) {
	if cfg.Save.Backend != "postgres" {
		return persist.FileBackend{Path: cfg.Save.Path}, func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(connectCtx, cfg.Database, log.Named("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	printOK("PostgreSQL connected")

	if err := db.Migrate(connectCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")

	repo := persist.NewSaveRepo(db)
	slots, err := repo.List(connectCtx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("list save slots: %w", err)
	}
	printStat("stored save slots", len(slots))
	for _, s := range slots {
		log.Debug("save slot", zap.String("slot", s.Slot), zap.Uint64("tick", s.Tick),
			zap.Int("entities", s.Entities), zap.Time("updated", s.UpdatedAt))
	}

	return persist.SlotBackend{Slots: repo, Slot: cfg.Save.Slot}, db.Close, nil
}

func startProfile(cfg config.ProfileConfig) interface{ Stop() } {
	opts := []func(*profile.Profile){profile.ProfilePath(cfg.Path), profile.NoShutdownHook, profile.Quiet}
	switch cfg.Mode {
	case "cpu":
		return profile.Start(append(opts, profile.CPUProfile)...)
	case "mem":
		return profile.Start(append(opts, profile.MemProfileAllocs)...)
	case "trace":
		return profile.Start(append(opts, profile.TraceProfile)...)
	}
	return nil
}

func serveMetrics(addr string, collector *observability.SimCollector, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("metrics listening", zap.String("addr", addr))
	return srv
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
