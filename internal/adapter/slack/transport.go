package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// codeRateLimited marks transport errors that resolve themselves once Slack's backoff passes.
const codeRateLimited = -1

// TransportError is an error reported by the realtime connection.
type TransportError struct {
	Code int
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("slack transport error (code %d): %v", e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// eventSink receives connection lifecycle changes and raw events from a Transport.
type eventSink interface {
	opened()
	closed()
	failed(err error)
	received(ctx context.Context, raw json.RawMessage)
}

// Transport is the realtime connection. Run blocks until ctx ends or the
// connection fails for good.
type Transport interface {
	Run(ctx context.Context, sink eventSink) error
	Disconnect()
	SubscribePresence(ctx context.Context, userIDs []string) error
}

// SocketTransport receives Events API payloads over Slack Socket Mode.
type SocketTransport struct {
	client *socketmode.Client
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewSocketTransport(log *slog.Logger, api *slackapi.Client, opts TransportOptions) *SocketTransport {
	if log == nil {
		log = slog.Default()
	}
	return &SocketTransport{
		client: socketmode.New(api,
			socketmode.OptionDebug(opts.Debug),
			socketmode.OptionLog(newSlackLogger(log)),
		),
		logger: log.With(slog.String("component", "socketmode")),
	}
}

func (t *SocketTransport) Run(ctx context.Context, sink eventSink) error {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.loop(ctx, sink)
	}()

	err := t.client.RunContext(ctx)
	cancel()
	<-done
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (t *SocketTransport) Disconnect() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SubscribePresence is a no-op: Socket Mode does not deliver presence_change events.
func (t *SocketTransport) SubscribePresence(_ context.Context, userIDs []string) error {
	t.logger.Debug("presence subscriptions are not available over socket mode", slog.Int("users", len(userIDs)))
	return nil
}

func (t *SocketTransport) loop(ctx context.Context, sink eventSink) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-t.client.Events:
			if !ok {
				return
			}
			t.handle(ctx, evt, sink)
		}
	}
}

func (t *SocketTransport) handle(ctx context.Context, evt socketmode.Event, sink eventSink) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		t.logger.Debug("connecting to socket mode")
	case socketmode.EventTypeConnected:
		sink.opened()
	case socketmode.EventTypeDisconnect:
		sink.closed()
	case socketmode.EventTypeConnectionError,
		socketmode.EventTypeIncomingError,
		socketmode.EventTypeErrorBadMessage,
		socketmode.EventTypeErrorWriteFailed:
		sink.failed(transportError(evt.Data))
	case socketmode.EventTypeInvalidAuth:
		sink.failed(&TransportError{Err: errors.New("invalid auth")})
	case socketmode.EventTypeEventsAPI:
		if evt.Request == nil {
			return
		}
		t.client.Ack(*evt.Request)
		var envelope struct {
			Event json.RawMessage `json:"event"`
		}
		if err := json.Unmarshal(evt.Request.Payload, &envelope); err != nil {
			t.logger.Error("malformed events api payload", slog.Any("error", err))
			return
		}
		if len(envelope.Event) == 0 {
			return
		}
		sink.received(ctx, envelope.Event)
	default:
		t.logger.Debug("ignored socket mode event", slog.String("type", string(evt.Type)))
	}
}

func transportError(data any) *TransportError {
	var err error
	switch v := data.(type) {
	case *slackapi.ConnectionErrorEvent:
		err = v.ErrorObj
	case error:
		err = v
	default:
		err = fmt.Errorf("%v", v)
	}
	te := &TransportError{Err: err}
	var rl *slackapi.RateLimitedError
	if errors.As(err, &rl) {
		te.Code = codeRateLimited
	}
	return te
}

func isRateLimited(err error) bool {
	var rl *slackapi.RateLimitedError
	if errors.As(err, &rl) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te) && te.Code == codeRateLimited
}
