package engine

import (
	"context"

	"github.com/matfelipe/deskchat/internal/bus"
	"github.com/matfelipe/deskchat/internal/call"
	"github.com/matfelipe/deskchat/internal/clock"
	"github.com/matfelipe/deskchat/internal/config"
	"github.com/matfelipe/deskchat/internal/delivery"
	"github.com/matfelipe/deskchat/internal/lock"
	"github.com/matfelipe/deskchat/internal/logging"
	"github.com/matfelipe/deskchat/internal/peer"
	"github.com/matfelipe/deskchat/internal/profile"
	"github.com/matfelipe/deskchat/internal/roster"
	"github.com/matfelipe/deskchat/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	Config      *config.Config
}

// Module returns the fx module for the chat engine, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("engine",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideScheduler,
			provideLock,
			provideStore,
			provideGateway,
			provideRoster,
			provideTracker,
			provideSimulator,
			provideController,
			NewOrchestrator,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideScheduler() *clock.Scheduler {
	return clock.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideGateway(p Params) call.MediaGateway {
	return call.NewPolicyGateway(p.Config.Media)
}

func provideRoster(db *store.DB, b *bus.Bus, logger *zap.Logger) *roster.Manager {
	return roster.NewManager(db, b, logger)
}

func provideTracker(p Params, r *roster.Manager, db *store.DB, sched *clock.Scheduler, b *bus.Bus, logger *zap.Logger) *delivery.Tracker {
	return delivery.NewTracker(r, db, sched, b, p.Config.Identity, p.Config.Timings, logger)
}

func provideSimulator(p Params, r *roster.Manager, sched *clock.Scheduler, b *bus.Bus, logger *zap.Logger) *peer.Simulator {
	return peer.NewSimulator(r, sched, b, p.Config.Timings, logger)
}

func provideController(p Params, gw call.MediaGateway, db *store.DB, sched *clock.Scheduler, b *bus.Bus, logger *zap.Logger) *call.Controller {
	return call.NewController(gw, db, sched, b, p.Config.Timings, logger)
}

func registerLifecycle(lc fx.Lifecycle, orch *Orchestrator, lk *lock.Lock, sim *peer.Simulator, tracker *delivery.Tracker, controller *call.Controller, sched *clock.Scheduler, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The simulator subscribes to message.* bus events.
			sim.Start(context.Background())
			logger.Info("engine started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			sim.Stop()
			tracker.Stop()
			controller.Stop()
			sched.StopAll()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("engine stopped")
			return nil
		},
	})
}
