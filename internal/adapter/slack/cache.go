package slack

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/lveraszto/hubot-slack/internal/brain"
)

// slackbotID is the built-in Slackbot integration, which has no bots.info entry.
const slackbotID = "B01"

type cachedConversation struct {
	conversation *slackapi.Channel
	fetchedAt    time.Time
}

// botEntry maps a bot id to its user. none marks a bot without an associated user.
type botEntry struct {
	user brain.User
	none bool
}

// Cache resolves users, bots and conversations, hitting the Web API only on a miss.
// Concurrent misses for the same id may fetch twice; both fetches store the same value.
type Cache struct {
	remote Remote
	brain  *brain.Brain
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	mu            sync.Mutex
	conversations map[string]cachedConversation
	bots          map[string]botEntry
}

func newCache(log *slog.Logger, remote Remote, b *brain.Brain, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultConversationCacheTTL
	}
	return &Cache{
		remote:        remote,
		brain:         b,
		logger:        log,
		ttl:           ttl,
		now:           time.Now,
		conversations: map[string]cachedConversation{},
		bots: map[string]botEntry{
			slackbotID: {user: brain.User{
				ID:    slackbotID,
				Slack: map[string]any{"id": slackbotID, "user_id": "USLACKBOT"},
			}},
		},
	}
}

// User returns the brain record for id, fetching and storing it on a miss.
func (c *Cache) User(ctx context.Context, id string) (brain.User, error) {
	if u, ok := c.brain.Get(id); ok {
		return u, nil
	}
	raw, err := c.remote.UserInfo(ctx, id)
	if err != nil {
		return brain.User{}, fmt.Errorf("users.info %s: %w", id, err)
	}
	if raw == nil {
		return brain.User{}, fmt.Errorf("users.info %s: empty response", id)
	}
	return c.UpsertUser(raw), nil
}

// BotUser resolves the user behind a bot id. Bots without an associated user
// resolve to the zero User, and that outcome is remembered.
func (c *Cache) BotUser(ctx context.Context, botID string) (brain.User, error) {
	c.mu.Lock()
	entry, ok := c.bots[botID]
	c.mu.Unlock()
	if ok {
		if entry.none {
			return brain.User{}, nil
		}
		return entry.user.Clone(), nil
	}

	c.logger.Debug("calling bots.info", slog.String("bot_id", botID))
	bot, err := c.remote.BotInfo(ctx, botID)
	if err != nil {
		return brain.User{}, fmt.Errorf("bots.info %s: %w", botID, err)
	}
	if bot == nil || bot.UserID == "" {
		c.mu.Lock()
		c.bots[botID] = botEntry{none: true}
		c.mu.Unlock()
		return brain.User{}, nil
	}

	raw, err := c.remote.UserInfo(ctx, bot.UserID)
	if err != nil {
		return brain.User{}, fmt.Errorf("users.info %s for bot %s: %w", bot.UserID, botID, err)
	}
	user := normalizeUser(raw)
	c.mu.Lock()
	c.bots[botID] = botEntry{user: user}
	c.mu.Unlock()
	return user.Clone(), nil
}

// Conversation returns conversation info, refetching once the cached copy is older than the TTL.
// Failed fetches are not cached.
func (c *Cache) Conversation(ctx context.Context, id string) (*slackapi.Channel, error) {
	if conv, ok := c.cachedConversation(id); ok {
		return conv, nil
	}
	conv, err := c.remote.ConversationInfo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("conversations.info %s: %w", id, err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversations.info %s: empty response", id)
	}
	c.mu.Lock()
	c.conversations[id] = cachedConversation{conversation: conv, fetchedAt: c.now()}
	c.mu.Unlock()
	return conv, nil
}

// cachedConversation returns an unexpired entry and evicts an expired one.
func (c *Cache) cachedConversation(id string) (*slackapi.Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.conversations[id]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.conversation, true
	}
	delete(c.conversations, id)
	return nil, false
}

func (c *Cache) putConversation(conv *slackapi.Channel, at time.Time) {
	c.mu.Lock()
	c.conversations[conv.ID] = cachedConversation{conversation: conv, fetchedAt: at}
	c.mu.Unlock()
}
