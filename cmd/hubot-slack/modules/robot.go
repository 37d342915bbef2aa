package modules

import (
	"context"
	"log/slog"

	slackapi "github.com/slack-go/slack"
	"go.uber.org/fx"

	"github.com/lveraszto/hubot-slack/internal/adapter/slack"
	"github.com/lveraszto/hubot-slack/internal/boot"
	"github.com/lveraszto/hubot-slack/internal/brain"
	"github.com/lveraszto/hubot-slack/internal/config"
	"github.com/lveraszto/hubot-slack/internal/event"
	"github.com/lveraszto/hubot-slack/internal/robot"
	"github.com/lveraszto/hubot-slack/internal/schedule"
	"github.com/lveraszto/hubot-slack/internal/scripts"
)

var RobotModule = fx.Module(
	"robot",
	fx.Provide(
		provideRobot,
		provideSlackOptions,
		provideSlackAPI,
		fx.Annotate(slack.NewWebClient, fx.As(new(slack.Remote))),
		provideTransport,
		provideAdapter,
	),
	fx.Invoke(startRobot),
)

// ---------------------------------------------------------------------------
// robot and slack adapter
// ---------------------------------------------------------------------------

func provideRobot(log *slog.Logger, cfg config.Config, b *brain.Brain, hub *event.Hub) *robot.Robot {
	return robot.New(log, robot.Options{
		Name:    cfg.Robot.Name,
		Alias:   cfg.Robot.Alias,
		Workers: cfg.Robot.ReceiveWorkers,
		Queue:   cfg.Robot.ReceiveQueue,
	}, b, hub)
}

func provideSlackOptions(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) slack.Options {
	return slack.Options{
		Token:                cfg.Slack.Token,
		AppToken:             cfg.Slack.AppToken,
		DisableUserSync:      cfg.Slack.DisableUserSync,
		APIPageSize:          rc.APIPageSize,
		InstalledTeamOnly:    cfg.Slack.InstalledTeamOnly,
		Transport:            slack.ParseTransportOptions(log, cfg.Slack.TransportOptions),
		ConversationCacheTTL: rc.ConversationCacheTTL,
		UserSyncSchedule:     cfg.Slack.UserSyncSchedule,
	}
}

func provideSlackAPI(log *slog.Logger, opts slack.Options) *slackapi.Client {
	return slack.NewAPI(log, opts)
}

func provideTransport(log *slog.Logger, api *slackapi.Client, opts slack.Options) slack.Transport {
	return slack.NewSocketTransport(log, api, opts.Transport)
}

func provideAdapter(
	log *slog.Logger,
	r *robot.Robot,
	remote slack.Remote,
	transport slack.Transport,
	opts slack.Options,
	sched *schedule.Service,
	shutdowner fx.Shutdowner,
) *slack.Adapter {
	return slack.New(log, r, remote, transport, opts,
		slack.WithScheduler(sched),
		slack.WithFatalHandler(func(err error) {
			log.Error("slack connection lost", slog.Any("error", err))
			_ = shutdowner.Shutdown(fx.ExitCode(1))
		}),
	)
}

func startRobot(lc fx.Lifecycle, log *slog.Logger, r *robot.Robot, adapter *slack.Adapter, shutdowner fx.Shutdowner) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.SetAdapter(adapter)
			scripts.Register(r)
			go func() {
				defer close(done)
				if err := r.Run(ctx); err != nil {
					log.Error("robot stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return r.Shutdown(stopCtx)
		},
	})
}
