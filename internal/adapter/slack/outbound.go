package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/lveraszto/hubot-slack/internal/robot"
)

// OutgoingMessage is a chat.postMessage payload. Use NewOutgoingMessage for
// the defaults plain sends get.
type OutgoingMessage struct {
	Text        string
	ThreadTS    string
	AsUser      bool
	LinkNames   bool
	Unfurl      bool
	Attachments []slackapi.Attachment
	Blocks      []slackapi.Block
}

// NewOutgoingMessage posts text as the bot user with names linked.
func NewOutgoingMessage(text string) OutgoingMessage {
	return OutgoingMessage{Text: text, AsUser: true, LinkNames: true}
}

// Send posts each non-empty text to the envelope's room, in the originating
// thread when there is one. A failed post is logged and does not stop the others.
func (a *Adapter) Send(ctx context.Context, env robot.Envelope, texts ...string) error {
	return a.sendAll(ctx, env, texts, func(text string) string { return text })
}

// Reply is Send with the sender mentioned, except in direct messages.
func (a *Adapter) Reply(ctx context.Context, env robot.Envelope, texts ...string) error {
	room := env.Target()
	return a.sendAll(ctx, env, texts, func(text string) string {
		if strings.HasPrefix(room, "D") {
			return text
		}
		return fmt.Sprintf("<@%s>: %s", env.User.ID, text)
	})
}

func (a *Adapter) sendAll(ctx context.Context, env robot.Envelope, texts []string, decorate func(string) string) error {
	var errs []error
	for _, text := range texts {
		if text == "" {
			continue
		}
		if err := a.SendMessage(ctx, env, NewOutgoingMessage(decorate(text))); err != nil {
			if errors.Is(err, ErrNoRoom) {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendMessage posts a rich message. An empty ThreadTS is filled from the envelope.
func (a *Adapter) SendMessage(ctx context.Context, env robot.Envelope, msg OutgoingMessage) error {
	room := env.Target()
	if room == "" {
		a.logger.Error("cannot send message without a valid room; envelopes should contain a room set to a Slack conversation ID")
		return ErrNoRoom
	}
	if msg.ThreadTS == "" {
		msg.ThreadTS = env.ThreadTS()
	}
	a.logger.Debug("sending message", slog.String("room", room), slog.String("thread_ts", msg.ThreadTS))
	if err := a.remote.PostMessage(ctx, room, msg); err != nil {
		a.logger.Error("send failed", slog.String("room", room), slog.Any("error", err))
		return fmt.Errorf("chat.postMessage %s: %w", room, err)
	}
	return nil
}

// SetTopic sets the newline-joined lines as the conversation topic. Direct and
// group direct messages have no topic and are skipped.
func (a *Adapter) SetTopic(ctx context.Context, env robot.Envelope, lines ...string) error {
	room := env.Target()
	if room == "" {
		return ErrNoRoom
	}
	topic := strings.Join(lines, "\n")
	a.logger.Debug("setting topic", slog.String("room", room), slog.String("topic", topic))

	conv, err := a.remote.ConversationInfo(ctx, room)
	if err != nil {
		a.logger.Error("error setting topic", slog.String("room", room), slog.Any("error", err))
		return fmt.Errorf("conversations.info %s: %w", room, err)
	}
	if conv.IsIM || conv.IsMpIM {
		a.logger.Debug("conversation is a DM or MPDM; these conversation types do not have topics", slog.String("room", room))
		return nil
	}
	if err := a.remote.SetTopic(ctx, room, topic); err != nil {
		a.logger.Error("error setting topic", slog.String("room", room), slog.Any("error", err))
		return fmt.Errorf("conversations.setTopic %s: %w", room, err)
	}
	return nil
}

// LoadUsers follows users.list cursors and returns every page's members.
func (a *Adapter) LoadUsers(ctx context.Context) ([]map[string]any, error) {
	var (
		members []map[string]any
		cursor  string
	)
	for {
		page, err := a.remote.ListUsers(ctx, cursor, a.opts.APIPageSize)
		if err != nil {
			return nil, fmt.Errorf("users.list: %w", err)
		}
		members = append(members, page.Members...)
		if page.NextCursor == "" {
			return members, nil
		}
		cursor = page.NextCursor
	}
}

// SyncUsers writes every workspace user to the brain.
func (a *Adapter) SyncUsers(ctx context.Context) error {
	members, err := a.LoadUsers(ctx)
	if err != nil || len(members) == 0 {
		a.logger.Error("can't fetch users", slog.Any("error", err))
		if err == nil {
			err = errors.New("users.list returned no members")
		}
		return err
	}
	for _, m := range members {
		a.cache.UpsertUser(m)
	}
	a.logger.Info("users synced", slog.Int("count", len(members)))
	return nil
}
