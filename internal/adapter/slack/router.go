package slack

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kenshaw/emoji"

	"github.com/lveraszto/hubot-slack/internal/brain"
	"github.com/lveraszto/hubot-slack/internal/robot"
)

// route filters an enriched event and hands the matching message variant to the robot.
func (a *Adapter) route(ctx context.Context, ev *EnrichedEvent) {
	self := a.Self()
	if ev.User.ID != "" && ev.User.ID == self.UserID {
		return
	}
	if a.opts.InstalledTeamOnly && ev.Team != "" && ev.Team != self.TeamID {
		a.logger.Debug("skipped event from another workspace in shared channel",
			slog.String("team", ev.Team), slog.String("channel", ev.Channel))
		return
	}

	switch ev.Type {
	case "message":
		a.routeMessage(ctx, ev)
	case "member_joined_channel":
		a.logger.Debug("received enter message", slog.String("user", ev.User.ID), slog.String("channel", ev.Channel))
		a.receive(&robot.EnterMessage{User: ev.User.WithRoom(ev.Channel), TS: ev.TS})
	case "member_left_channel":
		a.logger.Debug("received leave message", slog.String("user", ev.User.ID), slog.String("channel", ev.Channel))
		a.receive(&robot.LeaveMessage{User: ev.User.WithRoom(ev.Channel), TS: ev.TS})
	case "reaction_added", "reaction_removed":
		a.routeReaction(ev)
	case "presence_change":
		a.routePresence(ev)
	case "file_shared":
		a.logger.Debug("received file_shared message", slog.String("user", ev.User.ID), slog.String("file_id", ev.FileID))
		a.receive(&robot.FileSharedMessage{
			User:    ev.User.WithRoom(ev.ChannelID),
			FileID:  ev.FileID,
			EventTS: ev.EventTS,
		})
	default:
		a.logger.Debug("ignored event", slog.String("type", ev.Type))
	}
}

func (a *Adapter) routeMessage(ctx context.Context, ev *EnrichedEvent) {
	user := ev.User.WithRoom(ev.Channel)
	switch ev.Subtype {
	case "", "bot_message", "thread_broadcast":
		a.logger.Debug("received text message",
			slog.String("channel", ev.Channel), slog.String("user", user.ID), slog.String("subtype", ev.Subtype))
		a.receive(a.buildTextMessage(ctx, ev))
	case "channel_topic", "group_topic":
		a.logger.Debug("received topic change", slog.String("channel", ev.Channel), slog.String("user", user.ID))
		a.receive(&robot.TopicMessage{User: user, Topic: ev.Topic, ID: ev.TS})
	case "me_message":
		a.logger.Debug("received /me message", slog.String("channel", ev.Channel), slog.String("user", user.ID))
		a.receive(&robot.MeMessage{TextMessage: robot.TextMessage{
			User:     user,
			ID:       ev.TS,
			ThreadTS: ev.ThreadTS,
			Text:     ev.Text,
			RawText:  ev.Text,
			RawEvent: ev.Event,
		}})
	default:
		a.logger.Debug("ignored message subtype", slog.String("subtype", ev.Subtype), slog.String("channel", ev.Channel))
	}
}

func (a *Adapter) routeReaction(ev *EnrichedEvent) {
	room := ""
	if ev.Item.Type == "message" {
		room = ev.Item.Channel
	}
	var itemUser brain.User
	if ev.ItemUser != nil {
		itemUser = a.robot.Brain().UserForID(ev.ItemUser.ID, *ev.ItemUser)
	}
	kind := robot.ReactionAdded
	if ev.Type == "reaction_removed" {
		kind = robot.ReactionRemoved
	}
	a.logger.Debug("received reaction message",
		slog.String("user", ev.User.ID), slog.String("reaction", ev.Reaction), slog.String("item_type", ev.Item.Type))
	a.receive(&robot.ReactionMessage{
		Type:     kind,
		User:     ev.User.WithRoom(room),
		Reaction: ev.Reaction,
		Emoji:    reactionGlyph(ev.Reaction),
		ItemUser: itemUser,
		Item:     ev.Item,
		EventTS:  ev.EventTS,
	})
}

// reactionGlyph renders a reaction name such as "thumbsup::skin-tone-2" as its
// base emoji, or "" for custom workspace emoji.
func reactionGlyph(name string) string {
	name, _, _ = strings.Cut(name, "::")
	if e := emoji.FromAlias(name); e != nil {
		return e.Emoji
	}
	return ""
}

func (a *Adapter) routePresence(ev *EnrichedEvent) {
	ids := ev.Users
	if len(ids) == 0 && ev.User.ID != "" {
		ids = []string{ev.User.ID}
	}
	users := make([]brain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := a.robot.Brain().Get(id); ok {
			users = append(users, u)
		}
	}
	a.logger.Debug("received presence update", slog.Int("users", len(users)), slog.String("status", ev.Presence))
	a.receive(&robot.PresenceMessage{Users: users, Status: ev.Presence})
}

func (a *Adapter) receive(msg robot.Message) {
	if err := a.robot.Receive(msg); err != nil {
		level := slog.LevelError
		if errors.Is(err, robot.ErrQueueFull) {
			level = slog.LevelWarn
		}
		a.logger.Log(context.Background(), level, "robot did not accept message",
			slog.String("kind", string(msg.Kind())), slog.Any("error", err))
	}
}
