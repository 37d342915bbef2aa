package modules

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"
	"time"

	"go.uber.org/fx"

	dbembed "github.com/lveraszto/hubot-slack/db"
	"github.com/lveraszto/hubot-slack/internal/boot"
	"github.com/lveraszto/hubot-slack/internal/brain"
	"github.com/lveraszto/hubot-slack/internal/config"
	"github.com/lveraszto/hubot-slack/internal/db"
	"github.com/lveraszto/hubot-slack/internal/event"
	"github.com/lveraszto/hubot-slack/internal/schedule"
)

const brainLoadTimeout = 30 * time.Second

var BrainModule = fx.Module(
	"brain",
	fx.Provide(
		provideBrainStore,
		provideBrain,
	),
	fx.Invoke(startBrain),
)

// ---------------------------------------------------------------------------
// brain
// ---------------------------------------------------------------------------

func provideBrainStore(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (brain.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), brainLoadTimeout)
	defer cancel()

	log = log.With(slog.String("backend", rc.BrainBackend))
	switch rc.BrainBackend {
	case "memory":
		log.Warn("brain is not persisted; users are resynced from Slack on every start")
		return brain.NewMemoryStore(), nil
	case "redis":
		return brain.OpenRedis(ctx, cfg.Redis.URL, cfg.Redis.Prefix)
	case "sqlite":
		return brain.OpenSQLite(ctx, cfg.SQLite.Path)
	case "postgres":
		migrations, err := fs.Sub(dbembed.MigrationsFS, "migrations")
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrate(log, cfg.Postgres, migrations, "up", nil); err != nil {
			return nil, err
		}
		pool, err := db.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		return brain.NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown brain backend %q (use memory, redis, sqlite or postgres)", rc.BrainBackend)
	}
}

func provideBrain(log *slog.Logger, store brain.Store, hub *event.Hub) *brain.Brain {
	return brain.New(log, store, hub)
}

// startBrain loads the brain once Slack first connects, so the adapter is
// already listening for brain_loaded. Autosave starts only after a load; a
// brain that never loaded is not written back over the store.
func startBrain(lc fx.Lifecycle, log *slog.Logger, b *brain.Brain, store brain.Store, hub *event.Hub, sched *schedule.Service, cfg config.Config) {
	var (
		loaded      atomic.Bool
		unsubscribe = func() {}
	)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, connected, cancel := hub.Subscribe(event.TypeConnected, 1)
			unsubscribe = cancel
			go func() {
				if _, ok := <-connected; !ok {
					return
				}
				cancel()
				loadCtx, done := context.WithTimeout(context.Background(), brainLoadTimeout)
				defer done()
				if err := b.Load(loadCtx); err != nil {
					log.Error("brain load failed", slog.Any("error", err))
					return
				}
				loaded.Store(true)
				if cfg.Brain.Autosave == "" {
					return
				}
				if err := b.Autosave(sched, cfg.Brain.Autosave); err != nil {
					log.Error("brain autosave not scheduled", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			unsubscribe()
			if !loaded.Load() {
				return store.Close()
			}
			return b.Close(ctx)
		},
	})
}
