package slack

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lveraszto/hubot-slack/internal/event"
	"github.com/lveraszto/hubot-slack/internal/logger"
	"github.com/lveraszto/hubot-slack/internal/robot"
	"github.com/lveraszto/hubot-slack/internal/schedule"
)

// start runs the adapter until the returned stop function is called.
func start(t *testing.T, f *fixture) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.adapter.Run(ctx) }()

	select {
	case <-f.transport.ready:
	case err := <-errCh:
		cancel()
		t.Fatalf("adapter stopped early: %v", err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("transport never started")
	}
	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("adapter did not stop")
			return nil
		}
	}
}

func TestRunRejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
		app   string
		want  error
		log   string
	}{
		{"missing", "", "xapp-1", ErrNoToken, "No token provided to Hubot"},
		{"legacy", "abc123", "xapp-1", ErrInvalidToken, "Invalid token provided, please follow the upgrade instructions"},
		{"no app token", "xoxb-1", "", ErrNoAppToken, "app-level token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(o *Options) {
				o.Token = tt.token
				o.AppToken = tt.app
			})
			err := f.adapter.Run(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, f.logs.String(), tt.log)
			assert.Zero(t, f.remote.count("auth.test"))
		})
	}
	assert.NoError(t, Options{Token: "xoxp-1", AppToken: "xapp-1"}.Validate())
}

func TestRunAuthFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.authErr = errors.New("invalid_auth")
	err := f.adapter.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_auth")
}

func TestRunAuthenticatesSyncsAndReceives(t *testing.T) {
	f := newFixture(t, nil)
	f.robot.name = "hubot"
	f.remote.auth.User = "bender"
	f.remote.pages = []UserPage{{Members: []map[string]any{
		{"id": "U123", "name": "name"},
		{"id": "U555", "name": "Example User"},
	}}}
	_, connected, cancel := f.robot.hub.Subscribe(event.TypeConnected, 1)
	defer cancel()

	stop := start(t, f)

	assert.Equal(t, "bender", f.robot.Name())
	assert.Equal(t, "U456", f.adapter.Self().UserID)
	assert.Equal(t, "T123", f.adapter.Self().TeamID)
	assert.Contains(t, f.logs.String(), "Logged in as @bender in workspace Example Team")
	assert.Equal(t, 2, f.robot.brain.Len())

	f.transport.sink.opened()
	assert.True(t, f.adapter.Connected())
	select {
	case <-connected:
	default:
		t.Fatal("connected event not published")
	}

	f.transport.sink.received(context.Background(),
		json.RawMessage(`{"type":"message","channel":"C123","user":"U123","text":"hi","ts":"1.0"}`))
	require.Eventually(t, func() bool { return len(f.robot.messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, f.remote.count("users.info"))

	require.NoError(t, stop())
}

func TestRunWithUserSyncDisabled(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.DisableUserSync = true })
	stop := start(t, f)

	require.NoError(t, f.robot.brain.Load(context.Background()))
	require.NoError(t, stop())
	assert.Zero(t, f.remote.count("users.list"))
	assert.Empty(t, f.transport.subscriptions())
}

func TestBrainLoadedSubscribesPresenceOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.pages = []UserPage{{Members: []map[string]any{
		{"id": "U1", "name": "human"},
		{"id": "U2", "name": "robot", "is_bot": true},
		{"id": "U3", "name": "gone", "deleted": true},
	}}}
	stop := start(t, f)
	assert.Equal(t, 1, f.remote.count("users.list"))

	require.NoError(t, f.robot.brain.Load(context.Background()))
	require.Eventually(t, func() bool { return len(f.transport.subscriptions()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"U1"}, f.transport.subscriptions()[0])
	assert.Equal(t, 2, f.remote.count("users.list"))

	require.NoError(t, f.robot.brain.Load(context.Background()))
	require.NoError(t, stop())
	assert.Len(t, f.transport.subscriptions(), 1)
}

func TestRunSchedulesUserSync(t *testing.T) {
	sched := schedule.NewService(logger.Discard())
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })

	f := newFixture(t, func(o *Options) { o.UserSyncSchedule = "@every 1h" })
	WithScheduler(sched)(f.adapter)
	f.remote.pages = []UserPage{{Members: []map[string]any{{"id": "U1"}}}}

	stop := start(t, f)
	assert.Equal(t, []string{userSyncJob}, sched.Names())
	require.NoError(t, sched.Trigger(userSyncJob))
	assert.Equal(t, 2, f.remote.count("users.list"))

	require.NoError(t, stop())
	assert.Empty(t, sched.Names())
}

func TestClosedConnection(t *testing.T) {
	t.Run("reconnects by default", func(t *testing.T) {
		f := newFixture(t, nil)
		var fatal error
		WithFatalHandler(func(err error) { fatal = err })(f.adapter)

		f.adapter.opened()
		f.adapter.closed()
		assert.False(t, f.adapter.Connected())
		assert.NoError(t, fatal)
		assert.Contains(t, f.logs.String(), "Waiting for reconnect...")
		assert.Zero(t, f.transport.disconnected)
	})

	t.Run("exits without auto reconnect", func(t *testing.T) {
		off := false
		f := newFixture(t, func(o *Options) { o.Transport.AutoReconnect = &off })
		var fatal error
		WithFatalHandler(func(err error) { fatal = err })(f.adapter)

		f.adapter.opened()
		f.adapter.closed()
		assert.Error(t, fatal)
		assert.Equal(t, 1, f.transport.disconnected)
		assert.Contains(t, f.logs.String(), "Exiting...")
	})
}

func TestRunTransportFailureIsFatal(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.DisableUserSync = true })
	f.transport.runErr = errors.New("socket closed")
	var fatal error
	WithFatalHandler(func(err error) { fatal = err })(f.adapter)

	err := f.adapter.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, fatal, f.transport.runErr)
}

func TestFailedSuppressesRateLimits(t *testing.T) {
	f := newFixture(t, nil)
	_, errs, cancel := f.robot.hub.Subscribe(event.TypeError, 4)
	defer cancel()

	f.adapter.failed(&TransportError{Code: codeRateLimited, Err: errors.New("slow down")})
	f.adapter.failed(&slackapi.RateLimitedError{RetryAfter: time.Second})
	select {
	case ev := <-errs:
		t.Fatalf("rate limit surfaced as %v", ev.Err)
	default:
	}

	boom := errors.New("boom")
	f.adapter.failed(&TransportError{Err: boom})
	select {
	case ev := <-errs:
		assert.ErrorIs(t, ev.Err, boom)
	default:
		t.Fatal("error event not published")
	}
	assert.Contains(t, f.logs.String(), "Slack transport error")
}

func TestTransportError(t *testing.T) {
	limited := transportError(&slackapi.ConnectionErrorEvent{ErrorObj: &slackapi.RateLimitedError{RetryAfter: time.Second}})
	assert.Equal(t, codeRateLimited, limited.Code)
	assert.True(t, isRateLimited(limited))

	plain := transportError(errors.New("eof"))
	assert.Zero(t, plain.Code)
	assert.False(t, isRateLimited(plain))
	assert.Contains(t, plain.Error(), "eof")

	assert.Contains(t, transportError("odd").Error(), "odd")
}

func TestParseTransportOptions(t *testing.T) {
	opts := ParseTransportOptions(logger.Discard(), `{"debug":true,"autoReconnect":false}`)
	assert.True(t, opts.Debug)
	assert.False(t, opts.Reconnects())

	assert.True(t, ParseTransportOptions(nil, "").Reconnects())

	logs := &syncBuffer{}
	bad := ParseTransportOptions(logger.New("debug", "text", logs), "{nope")
	assert.Equal(t, TransportOptions{}, bad)
	assert.Contains(t, logs.String(), "invalid transport options")
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"message","user":"U1","text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "U1", ev.UserID)
	assert.Nil(t, ev.UserObject)
	assert.JSONEq(t, `{"type":"message","user":"U1","text":"hi"}`, string(ev.Raw))

	ev, err = DecodeEvent([]byte(`{"type":"user_change","user":{"id":"U2","name":"n"}}`))
	require.NoError(t, err)
	assert.Equal(t, "U2", ev.UserID)
	assert.Equal(t, "n", ev.UserObject["name"])

	ev, err = DecodeEvent([]byte(`{"type":"file_shared","user_id":"U3","file_id":"F1","user":null}`))
	require.NoError(t, err)
	assert.Equal(t, "U3", ev.UserID)

	_, err = DecodeEvent([]byte(`{"type":"message","user":42}`))
	assert.Error(t, err)
	_, err = DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestAdapterSatisfiesRobotAdapter(t *testing.T) {
	var _ robot.Adapter = (*Adapter)(nil)
}
