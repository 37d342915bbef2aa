package scripts

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lveraszto/hubot-slack/internal/brain"
	"github.com/lveraszto/hubot-slack/internal/logger"
	"github.com/lveraszto/hubot-slack/internal/robot"
)

type call struct {
	op    string
	room  string
	texts []string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (a *recorder) add(op string, env robot.Envelope, texts []string) error {
	a.mu.Lock()
	a.calls = append(a.calls, call{op: op, room: env.Target(), texts: texts})
	a.mu.Unlock()
	return nil
}

func (a *recorder) Run(ctx context.Context) error { <-ctx.Done(); return nil }
func (a *recorder) Send(_ context.Context, env robot.Envelope, texts ...string) error {
	return a.add("send", env, texts)
}
func (a *recorder) Reply(_ context.Context, env robot.Envelope, texts ...string) error {
	return a.add("reply", env, texts)
}
func (a *recorder) SetTopic(_ context.Context, env robot.Envelope, lines ...string) error {
	return a.add("topic", env, lines)
}

func (a *recorder) snapshot() []call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]call(nil), a.calls...)
}

func setup(t *testing.T, logs *strings.Builder) (*robot.Robot, *recorder) {
	t.Helper()
	log := logger.Discard()
	if logs != nil {
		log = logger.New("info", "text", logs)
	}
	r := robot.New(log, robot.Options{Name: "hubot", Workers: 1}, nil, nil)
	a := &recorder{}
	r.SetAdapter(a)
	require.Len(t, Register(r), 6)
	r.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r, a
}

func text(s string) *robot.TextMessage {
	return &robot.TextMessage{User: brain.User{ID: "U1", Room: "C1"}, ID: "1.0", Text: s}
}

func TestRespondScripts(t *testing.T) {
	tests := []struct {
		in   string
		want call
	}{
		{"hubot ping", call{op: "send", room: "C1", texts: []string{"PONG"}}},
		{"@hubot: PING", call{op: "send", room: "C1", texts: []string{"PONG"}}},
		{"hubot echo hello there", call{op: "send", room: "C1", texts: []string{"hello there"}}},
		{"hubot topic Release day", call{op: "topic", room: "C1", texts: []string{"Release day"}}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, a := setup(t, nil)
			require.NoError(t, r.Receive(text(tt.in)))
			require.Eventually(t, func() bool { return len(a.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
			assert.Equal(t, tt.want, a.snapshot()[0])
		})
	}
}

func TestUnaddressedMessagesAreIgnored(t *testing.T) {
	r, a := setup(t, nil)
	require.NoError(t, r.Receive(text("ping")))
	require.NoError(t, r.Receive(text("hubot pingpong")))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, a.snapshot())
}

// Serialized by the single worker, so the log is complete once the last message is handled.
func TestEventLogging(t *testing.T) {
	var logs strings.Builder
	r, a := setup(t, &logs)

	user := brain.User{ID: "U1", Room: "C1"}
	require.NoError(t, r.Receive(&robot.EnterMessage{User: user}))
	require.NoError(t, r.Receive(&robot.LeaveMessage{User: user}))
	require.NoError(t, r.Receive(&robot.ReactionMessage{Type: robot.ReactionAdded, User: user, Reaction: "tada"}))
	require.NoError(t, r.Receive(text("hubot ping")))
	require.Eventually(t, func() bool { return len(a.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	out := logs.String()
	assert.Contains(t, out, "user joined")
	assert.Contains(t, out, "user left")
	assert.Contains(t, out, "reaction=tada")
}
