package slack

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	slackapi "github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	"github.com/lveraszto/hubot-slack/internal/brain"
	"github.com/lveraszto/hubot-slack/internal/robot"
)

// linkPattern matches <@U123>, <#C123|general>, <!here>, <https://x|label> and friends.
var linkPattern = regexp.MustCompile(`<([@#!])?([^>|]+)(?:\|([^>]+))?>`)

var reservedKeywords = map[string]bool{
	"channel":  true,
	"group":    true,
	"everyone": true,
	"here":     true,
}

// resolvedRefs holds the users and conversations known for one piece of text.
type resolvedRefs struct {
	users    map[string]brain.User
	channels map[string]*slackapi.Channel
}

func newResolvedRefs() resolvedRefs {
	return resolvedRefs{users: map[string]brain.User{}, channels: map[string]*slackapi.Channel{}}
}

type linkToken struct {
	sigil string
	link  string
	label string
	raw   string
}

func parseToken(m []string) linkToken {
	return linkToken{raw: m[0], sigil: m[1], link: m[2], label: m[3]}
}

// unlabeledRefs lists the user and channel ids that need a lookup, without duplicates.
func unlabeledRefs(text string) (users, channels []string) {
	seen := map[string]bool{}
	for _, m := range linkPattern.FindAllStringSubmatch(text, -1) {
		tok := parseToken(m)
		if tok.label != "" || seen[tok.sigil+tok.link] {
			continue
		}
		switch tok.sigil {
		case "@":
			users = append(users, tok.link)
		case "#":
			channels = append(channels, tok.link)
		default:
			continue
		}
		seen[tok.sigil+tok.link] = true
	}
	return users, channels
}

// replaceLinks rewrites every token using refs and then decodes &lt; &gt; &amp;
// in that order. Unknown ids leave the token untouched.
func replaceLinks(text string, refs resolvedRefs) string {
	text = linkPattern.ReplaceAllStringFunc(text, func(match string) string {
		tok := parseToken(linkPattern.FindStringSubmatch(match))
		switch tok.sigil {
		case "@":
			if tok.label != "" {
				return "@" + tok.label
			}
			if u, ok := refs.users[tok.link]; ok {
				return "@" + u.Name
			}
			return tok.raw
		case "#":
			if tok.label != "" {
				return "#" + tok.label
			}
			if c, ok := refs.channels[tok.link]; ok {
				return "#" + c.Name
			}
			return tok.raw
		case "!":
			if reservedKeywords[tok.link] {
				return "@" + tok.link
			}
			if tok.label != "" {
				return tok.label
			}
			return tok.raw
		default:
			link := strings.TrimPrefix(tok.link, "mailto:")
			if tok.label != "" && !strings.Contains(link, tok.label) {
				return tok.label + " (" + link + ")"
			}
			return link
		}
	})
	return decodeEntities(text)
}

func decodeEntities(text string) string {
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	return strings.ReplaceAll(text, "&amp;", "&")
}

// extractMentions lists user and channel references in order of occurrence.
func extractMentions(text string, refs resolvedRefs) []robot.Mention {
	var mentions []robot.Mention
	for _, m := range linkPattern.FindAllStringSubmatch(text, -1) {
		tok := parseToken(m)
		var mention robot.Mention
		switch tok.sigil {
		case "@":
			mention = robot.Mention{Type: robot.MentionUser, ID: tok.link}
			if u, ok := refs.users[tok.link]; ok && tok.label == "" {
				mention.Info = u
			}
		case "#":
			mention = robot.Mention{Type: robot.MentionChannel, ID: tok.link}
			if c, ok := refs.channels[tok.link]; ok && tok.label == "" {
				mention.Info = c
			}
		default:
			continue
		}
		mentions = append(mentions, mention)
	}
	return mentions
}

// resolveLinks looks up every unlabeled reference concurrently, then rewrites
// text with the same routine the cache-only formatter uses. Failed lookups
// are logged and leave their tokens raw.
func (a *Adapter) resolveLinks(ctx context.Context, text string) (string, []robot.Mention) {
	userIDs, channelIDs := unlabeledRefs(text)
	refs := newResolvedRefs()
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(8)
	for _, id := range userIDs {
		g.Go(func() error {
			u, err := a.cache.User(ctx, id)
			if err != nil {
				a.logger.Error("user lookup failed", slog.String("user", id), slog.Any("error", err))
				return nil
			}
			mu.Lock()
			refs.users[id] = u
			mu.Unlock()
			return nil
		})
	}
	for _, id := range channelIDs {
		g.Go(func() error {
			c, err := a.cache.Conversation(ctx, id)
			if err != nil {
				a.logger.Error("conversation lookup failed", slog.String("channel", id), slog.Any("error", err))
				return nil
			}
			mu.Lock()
			refs.channels[id] = c
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return replaceLinks(text, refs), extractMentions(text, refs)
}
