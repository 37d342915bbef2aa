package robot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lveraszto/hubot-slack/internal/brain"
	"github.com/lveraszto/hubot-slack/internal/event"
)

const (
	DefaultReceiveQueue   = 256
	DefaultReceiveWorkers = 4
)

var (
	// ErrQueueFull is returned by Receive when the worker queue has no room.
	ErrQueueFull = errors.New("receive queue full")
	// ErrNoAdapter is returned by outbound calls before an adapter is attached.
	ErrNoAdapter = errors.New("no adapter attached")
)

// Adapter connects the robot to a chat platform.
type Adapter interface {
	Run(ctx context.Context) error
	Send(ctx context.Context, env Envelope, texts ...string) error
	Reply(ctx context.Context, env Envelope, texts ...string) error
	SetTopic(ctx context.Context, env Envelope, lines ...string) error
}

// Options configures a Robot.
type Options struct {
	Name    string
	Alias   string
	Workers int
	Queue   int
}

// Robot dispatches received messages to listeners on a fixed worker pool.
type Robot struct {
	mu      sync.RWMutex
	name    string
	alias   string
	adapter Adapter

	brain  *brain.Brain
	events *event.Hub
	logger *slog.Logger

	listenerMu sync.RWMutex
	listeners  []*listener

	queue     chan Message
	workers   int
	startOnce sync.Once
	stop      context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a robot. A nil brain gets an in-memory one; a nil hub gets a fresh hub.
func New(log *slog.Logger, opts Options, b *brain.Brain, events *event.Hub) *Robot {
	if log == nil {
		log = slog.Default()
	}
	if events == nil {
		events = event.NewHub()
	}
	if b == nil {
		b = brain.New(log, nil, events)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultReceiveWorkers
	}
	if opts.Queue <= 0 {
		opts.Queue = DefaultReceiveQueue
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "hubot"
	}
	return &Robot{
		name:    name,
		alias:   strings.TrimSpace(opts.Alias),
		brain:   b,
		events:  events,
		logger:  log.With(slog.String("component", "robot")),
		queue:   make(chan Message, opts.Queue),
		workers: opts.Workers,
	}
}

// Name returns the name respond listeners match against.
func (r *Robot) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

// SetName replaces the robot name, typically with the platform's own username.
func (r *Robot) SetName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	r.mu.Lock()
	r.name = name
	r.mu.Unlock()
}

// Alias returns the optional alternate name.
func (r *Robot) Alias() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alias
}

func (r *Robot) Brain() *brain.Brain { return r.brain }

func (r *Robot) Events() *event.Hub { return r.events }

func (r *Robot) Logger() *slog.Logger { return r.logger }

// SetAdapter attaches the platform adapter.
func (r *Robot) SetAdapter(a Adapter) {
	r.mu.Lock()
	r.adapter = a
	r.mu.Unlock()
}

func (r *Robot) currentAdapter() Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapter
}

// Start launches the receive workers. It is safe to call more than once.
func (r *Robot) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		r.stop = cancel
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.runWorker(workerCtx)
		}
	})
}

// Run starts the workers and blocks in the adapter until ctx ends or the adapter fails.
func (r *Robot) Run(ctx context.Context) error {
	adapter := r.currentAdapter()
	if adapter == nil {
		return ErrNoAdapter
	}
	r.Start(ctx)
	return adapter.Run(ctx)
}

// Shutdown stops the workers and waits for in-flight messages.
func (r *Robot) Shutdown(ctx context.Context) error {
	if r.stop != nil {
		r.stop()
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive enqueues msg for the listeners without blocking.
func (r *Robot) Receive(msg Message) error {
	if msg == nil {
		return nil
	}
	select {
	case r.queue <- msg:
		return nil
	default:
		r.logger.Warn("dropping message", slog.String("kind", string(msg.Kind())), slog.String("room", Room(msg)))
		return ErrQueueFull
	}
}

func (r *Robot) runWorker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.queue:
			r.dispatch(ctx, msg)
		}
	}
}

func (r *Robot) dispatch(ctx context.Context, msg Message) {
	r.listenerMu.RLock()
	listeners := make([]*listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.listenerMu.RUnlock()

	for _, l := range listeners {
		match, ok := l.match(r, msg)
		if !ok {
			continue
		}
		r.invoke(ctx, l, &Response{robot: r, Envelope: NewEnvelope(msg), Message: msg, Match: match})
	}
}

func (r *Robot) invoke(ctx context.Context, l *listener, res *Response) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("listener %s panicked: %v", l.id, rec)
			r.logger.Error("listener failed", slog.String("listener", l.id), slog.Any("error", err))
			r.events.Publish(event.Event{Type: event.TypeError, Err: err})
		}
	}()
	l.handler(ctx, res)
}

// Send posts texts through the adapter.
func (r *Robot) Send(ctx context.Context, env Envelope, texts ...string) error {
	adapter := r.currentAdapter()
	if adapter == nil {
		return ErrNoAdapter
	}
	return adapter.Send(ctx, env, texts...)
}

// Reply posts texts addressed to the envelope's user.
func (r *Robot) Reply(ctx context.Context, env Envelope, texts ...string) error {
	adapter := r.currentAdapter()
	if adapter == nil {
		return ErrNoAdapter
	}
	return adapter.Reply(ctx, env, texts...)
}

// SetTopic changes the topic of the envelope's conversation.
func (r *Robot) SetTopic(ctx context.Context, env Envelope, lines ...string) error {
	adapter := r.currentAdapter()
	if adapter == nil {
		return ErrNoAdapter
	}
	return adapter.SetTopic(ctx, env, lines...)
}
