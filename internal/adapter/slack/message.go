package slack

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	slackapi "github.com/slack-go/slack"

	"github.com/lveraszto/hubot-slack/internal/robot"
)

// buildTextMessage turns a message event into a TextMessage. References are
// resolved while the event's own conversation is fetched; in a direct message
// the robot name is prepended so respond listeners match. A failed
// conversation fetch is logged and leaves the text unresolved.
func (a *Adapter) buildTextMessage(ctx context.Context, ev *EnrichedEvent) *robot.TextMessage {
	rawText := flattenText(ev.Event, true)

	var (
		wg       sync.WaitGroup
		text     string
		mentions []robot.Mention
		conv     *slackapi.Channel
		convErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		text, mentions = a.resolveLinks(ctx, rawText)
	}()
	go func() {
		defer wg.Done()
		conv, convErr = a.cache.Conversation(ctx, ev.Channel)
	}()
	wg.Wait()

	if convErr != nil {
		a.logger.Error("failed to fetch conversation for message",
			slog.String("channel", ev.Channel), slog.String("user", ev.User.ID), slog.Any("error", convErr))
		text = rawText
	} else if conv.IsIM && !a.addressesRobot(text) {
		text = a.robot.Name() + " " + text
	}

	return &robot.TextMessage{
		User:     ev.User.WithRoom(ev.Channel),
		ID:       ev.TS,
		ThreadTS: ev.ThreadTS,
		Text:     text,
		RawText:  rawText,
		RawEvent: ev.Event,
		Mentions: mentions,
	}
}

func (a *Adapter) addressesRobot(text string) bool {
	text = strings.TrimPrefix(text, "@")
	for _, name := range []string{a.robot.Name(), a.robot.Alias()} {
		if name != "" && len(text) >= len(name) && strings.EqualFold(text[:len(name)], name) {
			return true
		}
	}
	return false
}
