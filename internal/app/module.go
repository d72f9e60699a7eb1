// Package app composes the synchronization engine: every component is a
// constructed instance provided through fx, so the whole engine can be
// created and disposed per profile with no ambient process-wide state.
package app

import (
	"context"
	"time"

	"github.com/brunodmt/tether/internal/bus"
	"github.com/brunodmt/tether/internal/cache"
	"github.com/brunodmt/tether/internal/config"
	"github.com/brunodmt/tether/internal/lock"
	"github.com/brunodmt/tether/internal/logging"
	"github.com/brunodmt/tether/internal/orchestrate"
	"github.com/brunodmt/tether/internal/profile"
	"github.com/brunodmt/tether/internal/provision"
	"github.com/brunodmt/tether/internal/push"
	"github.com/brunodmt/tether/internal/rest"
	"github.com/brunodmt/tether/internal/router"
	"github.com/brunodmt/tether/internal/state"
	"github.com/brunodmt/tether/internal/status"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// searchDelay carries the configured debounce window to the engine.
type searchDelay struct {
	delay time.Duration
}

// Module returns the fx module for the engine, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("engine",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCache,
			provideStore,
			provideRESTClient,
			providePushManager,
			provideRouter,
			provideConfirmCoordinator,
			provideProvisioner,
			provideOrchestrator,
			provideCacheWriter,
			provideSearchDelay,
			NewEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideConfig() *config.Config {
	return config.LoadOrDefault(profile.ConfigPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
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

func provideCache(p Params, logger *zap.Logger) (*cache.DB, error) {
	dbPath := profile.CacheDBPath(p.ProfileName)
	db, err := cache.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("cache migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("cache migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideStore(b *bus.Bus) *state.Store {
	return state.New(b)
}

func provideRESTClient(cfg *config.Config) *rest.Client {
	return rest.New(cfg.Server.APIURL, cfg.Server.Token)
}

func providePushManager(cfg *config.Config, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *push.Manager {
	return push.NewManager(cfg.Server.WSURL, cfg.Sync.AutoReconnect, b, machine, logger)
}

func provideRouter(store *state.Store, api *rest.Client, conn *push.Manager, b *bus.Bus, logger *zap.Logger) *router.Router {
	return router.New(store, api, conn, b, logger)
}

func provideConfirmCoordinator(cfg *config.Config, logger *zap.Logger) *provision.Coordinator {
	return provision.NewCoordinator(cfg.Sync.PollMaxAttempts, cfg.PollInterval(), logger)
}

func provideProvisioner(store *state.Store, api *rest.Client, confirm *provision.Coordinator, conn *push.Manager, logger *zap.Logger) *provision.ChannelProvisioner {
	return provision.NewChannelProvisioner(store, api, confirm, conn, logger)
}

func provideOrchestrator(store *state.Store, api *rest.Client, b *bus.Bus, logger *zap.Logger) *orchestrate.Orchestrator {
	return orchestrate.New(store, api, b, logger)
}

func provideCacheWriter(db *cache.DB, store *state.Store, b *bus.Bus, logger *zap.Logger) *cache.Writer {
	return cache.NewWriter(db, store, b, logger)
}

func provideSearchDelay(cfg *config.Config) searchDelay {
	return searchDelay{delay: cfg.Debounce()}
}

func registerLifecycle(lc fx.Lifecycle, p Params, db *cache.DB, store *state.Store,
	rt *router.Router, orch *orchestrate.Orchestrator, writer *cache.Writer,
	conn *push.Manager, engine *Engine, lk *lock.Lock, logger *zap.Logger) {

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Seed the store from the cache before the orchestrator
			// attaches, so stale cached data does not trigger fetches.
			cached, err := db.LoadChannels()
			if err != nil {
				logger.Warn("cache read failed, starting cold", zap.Error(err))
			} else if len(cached) > 0 {
				store.Apply(state.ReplaceAllChannels{Channels: cached})
				logger.Info("store seeded from cache", zap.Int("channels", len(cached)))
			}

			orch.Start()
			rt.Start(context.Background())
			writer.Start(context.Background())

			go func() {
				if err := conn.Connect(); err != nil {
					logger.Error("push connect failed", zap.Error(err))
				}
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := engine.Bootstrap(ctx); err != nil {
					logger.Error("bootstrap failed", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(_ context.Context) error {
			engine.Close()
			rt.Stop()
			orch.Stop()
			writer.Stop()
			conn.Disconnect()

			// Final snapshot so the next start seeds from fresh data.
			if err := db.SaveChannels(store.Channels()); err != nil {
				logger.Warn("final cache write failed", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("cache close failed", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("engine stopped")
			return nil
		},
	})
}
