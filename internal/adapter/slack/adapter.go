package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lveraszto/hubot-slack/internal/brain"
	"github.com/lveraszto/hubot-slack/internal/event"
	"github.com/lveraszto/hubot-slack/internal/robot"
	"github.com/lveraszto/hubot-slack/internal/schedule"
)

const userSyncJob = "slack.user_sync"

// Robot is what the adapter needs from the host robot.
type Robot interface {
	Name() string
	Alias() string
	SetName(name string)
	Receive(msg robot.Message) error
	Brain() *brain.Brain
	Events() *event.Hub
}

// Self is the identity the adapter authenticated as.
type Self struct {
	UserID   string
	Name     string
	BotID    string
	TeamID   string
	TeamName string
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithScheduler enables the periodic user sync on s.
func WithScheduler(s *schedule.Service) Option {
	return func(a *Adapter) { a.scheduler = s }
}

// WithFatalHandler sets the hook called when the connection is lost for good.
func WithFatalHandler(fn func(error)) Option {
	return func(a *Adapter) { a.fatal = fn }
}

// Adapter connects a Robot to one Slack workspace.
type Adapter struct {
	opts      Options
	robot     Robot
	remote    Remote
	transport Transport
	cache     *Cache
	formatter *Formatter
	scheduler *schedule.Service
	fatal     func(error)
	logger    *slog.Logger

	mu        sync.RWMutex
	self      Self
	connected atomic.Bool

	brainLoaded atomic.Bool
	inflight    sync.WaitGroup
}

func New(log *slog.Logger, r Robot, remote Remote, transport Transport, opts Options, options ...Option) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("adapter", "slack"))
	opts = opts.withDefaults()
	a := &Adapter{
		opts:      opts,
		robot:     r,
		remote:    remote,
		transport: transport,
		logger:    log,
	}
	a.cache = newCache(log, remote, r.Brain(), opts.ConversationCacheTTL)
	a.formatter = newFormatter(log, a.cache)
	for _, o := range options {
		o(a)
	}
	return a
}

// Self returns the authenticated identity.
func (a *Adapter) Self() Self {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.self
}

// Connected reports whether the realtime connection is open.
func (a *Adapter) Connected() bool { return a.connected.Load() }

func (a *Adapter) Cache() *Cache { return a.cache }

// Formatter returns the cache-only markup formatter.
//
// Deprecated: see Formatter.
func (a *Adapter) Formatter() *Formatter { return a.formatter }

// Run validates the tokens, authenticates, syncs users and then blocks on the
// realtime connection until ctx ends.
func (a *Adapter) Run(ctx context.Context) error {
	if err := a.opts.Validate(); err != nil {
		a.logger.Error(err.Error())
		return err
	}

	auth, err := a.remote.AuthTest(ctx)
	if err != nil {
		a.logger.Error("authentication failed", slog.Any("error", err))
		return fmt.Errorf("auth.test: %w", err)
	}
	a.authenticated(Self{
		UserID:   auth.UserID,
		Name:     auth.User,
		BotID:    auth.BotID,
		TeamID:   auth.TeamID,
		TeamName: auth.Team,
	})

	_, loaded, cancel := a.robot.Events().Subscribe(event.TypeBrainLoaded, 1)
	defer cancel()
	go a.watchBrain(ctx, loaded)

	if !a.opts.DisableUserSync {
		_ = a.SyncUsers(ctx)
	} else {
		a.brainLoaded.Store(true)
	}

	if a.scheduler != nil && a.opts.UserSyncSchedule != "" {
		if err := a.scheduler.Add(userSyncJob, a.opts.UserSyncSchedule, func(ctx context.Context) {
			_ = a.SyncUsers(ctx)
		}); err != nil {
			return fmt.Errorf("user sync schedule: %w", err)
		}
		defer a.scheduler.Remove(userSyncJob)
	}

	err = a.transport.Run(ctx, a)
	a.inflight.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		a.disconnect(err)
		return fmt.Errorf("slack transport: %w", err)
	}
	return nil
}

// watchBrain reloads users and subscribes to presence the first time the
// brain reports it has loaded from its store.
func (a *Adapter) watchBrain(ctx context.Context, loaded <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-loaded:
			if !ok {
				return
			}
			if !a.brainLoaded.CompareAndSwap(false, true) {
				continue
			}
			_ = a.SyncUsers(ctx)
			a.presenceSub(ctx)
		}
	}
}

func (a *Adapter) authenticated(self Self) {
	a.mu.Lock()
	a.self = self
	a.mu.Unlock()
	a.robot.SetName(self.Name)
	a.logger.Info(fmt.Sprintf("Logged in as @%s in workspace %s", a.robot.Name(), self.TeamName))
}

// presenceSub subscribes to presence for human users that are not deleted.
func (a *Adapter) presenceSub(ctx context.Context) {
	var ids []string
	for _, u := range a.robot.Brain().Users() {
		if !u.SlackBool("is_bot") && !u.SlackBool("deleted") {
			ids = append(ids, u.ID)
		}
	}
	a.logger.Debug("subscribing to presence", slog.Int("users", len(ids)))
	if err := a.transport.SubscribePresence(ctx, ids); err != nil {
		a.logger.Error("presence subscription failed", slog.Any("error", err))
	}
}

func (a *Adapter) opened() {
	a.connected.Store(true)
	a.logger.Info("Connected to Slack")
	a.robot.Events().Publish(event.Event{Type: event.TypeConnected})
}

func (a *Adapter) closed() {
	a.connected.Store(false)
	if a.opts.Transport.Reconnects() {
		a.logger.Info("Disconnected from Slack")
		a.logger.Info("Waiting for reconnect...")
		return
	}
	a.disconnect(nil)
}

// disconnect tears down the connection for good and calls the fatal hook.
func (a *Adapter) disconnect(cause error) {
	a.connected.Store(false)
	a.logger.Info("Disconnected from Slack")
	a.logger.Info("Exiting...")
	a.transport.Disconnect()
	if cause == nil {
		cause = errors.New("slack connection closed")
	}
	if a.fatal != nil {
		a.fatal(cause)
	}
}

func (a *Adapter) failed(err error) {
	a.logger.Error("Slack transport error", slog.Any("error", err))
	if isRateLimited(err) {
		return
	}
	a.robot.Events().Publish(event.Event{Type: event.TypeError, Err: err})
}

func (a *Adapter) received(ctx context.Context, raw json.RawMessage) {
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.handleRaw(ctx, raw)
	}()
}

func (a *Adapter) handleRaw(ctx context.Context, raw []byte) {
	ev, err := DecodeEvent(raw)
	if err != nil {
		a.logger.Error("dropping malformed event", slog.Any("error", err))
		return
	}
	a.handleEvent(ctx, ev)
}

// handleEvent enriches and routes one event. user_change only updates the brain.
func (a *Adapter) handleEvent(ctx context.Context, ev *Event) {
	switch ev.Type {
	case "user_change":
		if ev.UserObject != nil {
			a.cache.UpsertUser(ev.UserObject)
		}
		return
	case "message", "reaction_added", "reaction_removed", "presence_change",
		"member_joined_channel", "member_left_channel", "file_shared":
	default:
		a.logger.Debug("ignored event", slog.String("type", ev.Type))
		return
	}

	enriched, err := a.enrich(ctx, ev)
	if err != nil {
		a.logger.Error("incoming event dropped due to error fetching info for a property",
			slog.String("type", ev.Type), slog.String("channel", ev.Channel), slog.Any("error", err))
		return
	}
	a.route(ctx, enriched)
}
