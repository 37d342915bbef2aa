package modules

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/lveraszto/hubot-slack/internal/boot"
	"github.com/lveraszto/hubot-slack/internal/config"
	"github.com/lveraszto/hubot-slack/internal/event"
	"github.com/lveraszto/hubot-slack/internal/logger"
	"github.com/lveraszto/hubot-slack/internal/schedule"
)

// ConfigPath is the TOML file to load. Empty falls back to CONFIG_PATH, then config.toml.
type ConfigPath string

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		provideLogger,
		boot.ProvideRuntimeConfig,
		event.NewHub,
		provideScheduler,
	),
)

// ---------------------------------------------------------------------------
// infrastructure providers
// ---------------------------------------------------------------------------

func provideConfig(path ConfigPath) (config.Config, error) {
	cfgPath := string(path)
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideScheduler(lc fx.Lifecycle, log *slog.Logger) *schedule.Service {
	s := schedule.NewService(log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
	return s
}
