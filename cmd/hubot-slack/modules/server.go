package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/fx"

	"github.com/lveraszto/hubot-slack/internal/adapter/slack"
	"github.com/lveraszto/hubot-slack/internal/boot"
	"github.com/lveraszto/hubot-slack/internal/brain"
	"github.com/lveraszto/hubot-slack/internal/config"
	"github.com/lveraszto/hubot-slack/internal/handlers"
	"github.com/lveraszto/hubot-slack/internal/robot"
	"github.com/lveraszto/hubot-slack/internal/server"
	"github.com/lveraszto/hubot-slack/internal/version"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServerHandler(providePingHandler),
		provideServerHandler(provideUsersHandler),
		provideServerHandler(provideRoomsHandler),
		provideServer,
	),
	fx.Invoke(startServer),
)

// ---------------------------------------------------------------------------
// server
// ---------------------------------------------------------------------------

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func providePingHandler(log *slog.Logger, adapter *slack.Adapter) *handlers.PingHandler {
	return handlers.NewPingHandler(log, adapter)
}

func provideUsersHandler(log *slog.Logger, b *brain.Brain) *handlers.UsersHandler {
	return handlers.NewUsersHandler(log, b)
}

func provideRoomsHandler(log *slog.Logger, r *robot.Robot) *handlers.RoomsHandler {
	return handlers.NewRoomsHandler(log, r)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, server.Options{
		Addr:         params.RuntimeConfig.ServerAddr,
		JWTSecret:    params.RuntimeConfig.JWTSecret,
		RateLimit:    params.Config.Server.RateLimit,
		ErrorHandler: handlers.ErrorHandler(params.Logger),
	}, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, rc *boot.RuntimeConfig) {
	fmt.Printf("Starting hubot-slack %s\n", version.GetInfo())
	if rc.JWTSecret == "" {
		logger.Warn("server.jwt_secret is empty; /api is unauthenticated")
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
