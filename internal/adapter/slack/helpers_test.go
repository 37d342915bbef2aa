package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"sync"
	"testing"

	slackapi "github.com/slack-go/slack"

	"github.com/lveraszto/hubot-slack/internal/brain"
	"github.com/lveraszto/hubot-slack/internal/event"
	"github.com/lveraszto/hubot-slack/internal/logger"
	"github.com/lveraszto/hubot-slack/internal/robot"
)

type postedMessage struct {
	Channel string
	Msg     OutgoingMessage
}

// fakeRemote is an in-memory Slack workspace that counts every call.
type fakeRemote struct {
	mu            sync.Mutex
	auth          *slackapi.AuthTestResponse
	authErr       error
	users         map[string]map[string]any
	bots          map[string]*slackapi.Bot
	conversations map[string]*slackapi.Channel
	pages         []UserPage
	listErr       error
	failPost      map[string]bool
	setTopicErr   error
	posted        []postedMessage
	topics        map[string]string
	calls         map[string]int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		auth: &slackapi.AuthTestResponse{
			User:   "self",
			UserID: "U456",
			Team:   "Example Team",
			TeamID: "T123",
			BotID:  "B456",
		},
		users: map[string]map[string]any{
			"U123": {
				"id":        "U123",
				"name":      "name",
				"real_name": "real_name",
				"profile":   map[string]any{"email": "email@example.com"},
				"misc":      "misc",
			},
			"U456": {"id": "U456", "name": "self", "is_bot": true},
			"U555": {"id": "U555", "name": "Example User"},
		},
		bots: map[string]*slackapi.Bot{
			"B123": {ID: "B123", UserID: "U123"},
			"B789": {ID: "B789"},
		},
		conversations: map[string]*slackapi.Channel{
			"C123":   conversation("C123", "general", false, false),
			"D1232":  conversation("D1232", "", true, false),
			"G12324": conversation("G12324", "", false, true),
		},
		failPost: map[string]bool{},
		topics:   map[string]string{},
		calls:    map[string]int{},
	}
}

func conversation(id, name string, im, mpim bool) *slackapi.Channel {
	c := &slackapi.Channel{}
	c.ID = id
	c.Name = name
	c.IsIM = im
	c.IsMpIM = mpim
	return c
}

func (f *fakeRemote) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRemote) hit(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *fakeRemote) AuthTest(_ context.Context) (*slackapi.AuthTestResponse, error) {
	f.hit("auth.test")
	return f.auth, f.authErr
}

func (f *fakeRemote) UserInfo(_ context.Context, id string) (map[string]any, error) {
	f.hit("users.info")
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("user_not_found")
	}
	return maps.Clone(u), nil
}

func (f *fakeRemote) BotInfo(_ context.Context, id string) (*slackapi.Bot, error) {
	f.hit("bots.info")
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bots[id]
	if !ok {
		return nil, errors.New("bot_not_found")
	}
	return b, nil
}

func (f *fakeRemote) ConversationInfo(_ context.Context, id string) (*slackapi.Channel, error) {
	f.hit("conversations.info")
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil, errors.New("channel_not_found")
	}
	return c, nil
}

func (f *fakeRemote) ListUsers(_ context.Context, cursor string, _ int) (UserPage, error) {
	f.hit("users.list")
	if f.listErr != nil {
		return UserPage{}, f.listErr
	}
	idx := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return UserPage{}, fmt.Errorf("bad cursor %q", cursor)
		}
		idx = n
	}
	if idx >= len(f.pages) {
		return UserPage{}, nil
	}
	page := f.pages[idx]
	if idx+1 < len(f.pages) {
		page.NextCursor = strconv.Itoa(idx + 1)
	}
	return page, nil
}

func (f *fakeRemote) PostMessage(_ context.Context, channel string, msg OutgoingMessage) error {
	f.hit("chat.postMessage")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, postedMessage{Channel: channel, Msg: msg})
	if f.failPost[msg.Text] {
		return errors.New("msg_too_long")
	}
	return nil
}

func (f *fakeRemote) SetTopic(_ context.Context, channel, topic string) error {
	f.hit("conversations.setTopic")
	if f.setTopicErr != nil {
		return f.setTopicErr
	}
	f.mu.Lock()
	f.topics[channel] = topic
	f.mu.Unlock()
	return nil
}

func (f *fakeRemote) sent() []postedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postedMessage(nil), f.posted...)
}

// fakeTransport hands the sink to the test and blocks until ctx ends, unless runErr is set.
type fakeTransport struct {
	mu           sync.Mutex
	runErr       error
	sink         eventSink
	ready        chan struct{}
	subscribed   [][]string
	disconnected int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{ready: make(chan struct{})}
}

func (t *fakeTransport) Run(ctx context.Context, sink eventSink) error {
	t.mu.Lock()
	t.sink = sink
	t.mu.Unlock()
	close(t.ready)
	if t.runErr != nil {
		return t.runErr
	}
	<-ctx.Done()
	return nil
}

func (t *fakeTransport) Disconnect() {
	t.mu.Lock()
	t.disconnected++
	t.mu.Unlock()
}

func (t *fakeTransport) SubscribePresence(_ context.Context, ids []string) error {
	t.mu.Lock()
	t.subscribed = append(t.subscribed, ids)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) subscriptions() [][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]string(nil), t.subscribed...)
}

// fakeRobot records received messages instead of dispatching them.
type fakeRobot struct {
	mu       sync.Mutex
	name     string
	alias    string
	brain    *brain.Brain
	hub      *event.Hub
	received []robot.Message
	err      error
}

func newFakeRobot() *fakeRobot {
	hub := event.NewHub()
	return &fakeRobot{
		name:  "hubot",
		brain: brain.New(logger.Discard(), nil, hub),
		hub:   hub,
	}
}

func (r *fakeRobot) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

func (r *fakeRobot) Alias() string { return r.alias }

func (r *fakeRobot) SetName(name string) {
	r.mu.Lock()
	r.name = name
	r.mu.Unlock()
}

func (r *fakeRobot) Receive(msg robot.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.received = append(r.received, msg)
	return nil
}

func (r *fakeRobot) Brain() *brain.Brain { return r.brain }
func (r *fakeRobot) Events() *event.Hub  { return r.hub }

func (r *fakeRobot) messages() []robot.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]robot.Message(nil), r.received...)
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a shared logger.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	adapter   *Adapter
	remote    *fakeRemote
	transport *fakeTransport
	robot     *fakeRobot
	logs      *syncBuffer
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	opts := Options{Token: "xoxb-faketoken", AppToken: "xapp-faketoken"}
	if mutate != nil {
		mutate(&opts)
	}
	f := &fixture{
		remote:    newFakeRemote(),
		transport: newFakeTransport(),
		robot:     newFakeRobot(),
		logs:      &syncBuffer{},
	}
	log := logger.New("debug", "text", f.logs)
	f.adapter = New(log, f.robot, f.remote, f.transport, opts)
	f.adapter.authenticated(Self{UserID: "U456", Name: "self", BotID: "B456", TeamID: "T123", TeamName: "Example Team"})
	return f
}

// seed stores a user in the brain the way a user sync would.
func (f *fixture) seed(id string) brain.User {
	raw := f.remote.users[id]
	return f.adapter.cache.UpsertUser(maps.Clone(raw))
}

func (f *fixture) handle(t *testing.T, payload string) {
	t.Helper()
	ev, err := DecodeEvent(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	f.adapter.handleEvent(context.Background(), ev)
}
