// Package scripts holds the listeners every robot starts with.
package scripts

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/lveraszto/hubot-slack/internal/robot"
)

var (
	pingPattern  = regexp.MustCompile(`(?i)^ping$`)
	echoPattern  = regexp.MustCompile(`(?is)^echo (.+)$`)
	topicPattern = regexp.MustCompile(`(?is)^topic (.+)$`)
)

// Register attaches the built-in listeners to r and returns their ids.
func Register(r *robot.Robot) []string {
	log := r.Logger().With(slog.String("component", "scripts"))
	return []string{
		r.Respond(pingPattern, func(ctx context.Context, res *robot.Response) {
			reply(ctx, log, res.Send(ctx, "PONG"))
		}),
		r.Respond(echoPattern, func(ctx context.Context, res *robot.Response) {
			reply(ctx, log, res.Send(ctx, res.Match[1]))
		}),
		r.Respond(topicPattern, func(ctx context.Context, res *robot.Response) {
			reply(ctx, log, res.Topic(ctx, res.Match[1]))
		}),
		r.Listen(robot.KindReaction, func(_ context.Context, res *robot.Response) {
			msg := res.Message.(*robot.ReactionMessage)
			log.Info("reaction",
				slog.String("type", string(msg.Type)),
				slog.String("user", msg.User.ID),
				slog.String("reaction", msg.Reaction),
				slog.String("emoji", msg.Emoji),
				slog.String("item_user", msg.ItemUser.ID))
		}),
		r.Listen(robot.KindEnter, func(_ context.Context, res *robot.Response) {
			log.Info("user joined", slog.String("user", res.Message.Sender().ID), slog.String("room", res.Envelope.Room))
		}),
		r.Listen(robot.KindLeave, func(_ context.Context, res *robot.Response) {
			log.Info("user left", slog.String("user", res.Message.Sender().ID), slog.String("room", res.Envelope.Room))
		}),
	}
}

func reply(ctx context.Context, log *slog.Logger, err error) {
	if err != nil {
		log.ErrorContext(ctx, "reply failed", slog.Any("error", err))
	}
}
