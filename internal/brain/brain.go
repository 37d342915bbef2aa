// Package brain is the robot's persistent user store.
package brain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/lveraszto/hubot-slack/internal/event"
	"github.com/lveraszto/hubot-slack/internal/schedule"
)

const autosaveJob = "brain.autosave"

// Store persists the user table for a Brain.
type Store interface {
	Load(ctx context.Context) (map[string]User, error)
	Save(ctx context.Context, users map[string]User) error
	Close() error
}

// Brain keeps users in memory and syncs them with a Store.
type Brain struct {
	mu     sync.RWMutex
	users  map[string]User
	dirty  bool
	store  Store
	events event.Publisher
	logger *slog.Logger
}

// New creates an empty brain. A nil store keeps data in memory only.
func New(log *slog.Logger, store Store, events event.Publisher) *Brain {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Brain{
		users:  map[string]User{},
		store:  store,
		events: events,
		logger: log.With(slog.String("component", "brain")),
	}
}

// Load merges the stored users into memory and publishes a brain_loaded event.
// Stored records win over in-memory ones with the same id.
func (b *Brain) Load(ctx context.Context) error {
	users, err := b.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load brain: %w", err)
	}
	b.mu.Lock()
	for id, u := range users {
		b.users[id] = u
	}
	total := len(b.users)
	b.mu.Unlock()

	b.logger.Info("brain loaded", slog.Int("stored", len(users)), slog.Int("users", total))
	if b.events != nil {
		b.events.Publish(event.Event{Type: event.TypeBrainLoaded, Data: total})
	}
	return nil
}

// Save writes the current users to the store when anything changed since the last save.
func (b *Brain) Save(ctx context.Context) error {
	b.mu.Lock()
	if !b.dirty {
		b.mu.Unlock()
		return nil
	}
	snapshot := make(map[string]User, len(b.users))
	for id, u := range b.users {
		snapshot[id] = u.Clone()
	}
	b.dirty = false
	b.mu.Unlock()

	if err := b.store.Save(ctx, snapshot); err != nil {
		b.mu.Lock()
		b.dirty = true
		b.mu.Unlock()
		return fmt.Errorf("save brain: %w", err)
	}
	return nil
}

// Autosave registers a periodic save on the scheduler.
func (b *Brain) Autosave(s *schedule.Service, pattern string) error {
	return s.Add(autosaveJob, pattern, func(ctx context.Context) {
		if err := b.Save(ctx); err != nil {
			b.logger.Error("autosave failed", slog.Any("error", err))
		}
	})
}

// Close flushes pending changes and releases the store.
func (b *Brain) Close(ctx context.Context) error {
	saveErr := b.Save(ctx)
	if err := b.store.Close(); err != nil {
		return err
	}
	return saveErr
}

// Get returns a copy of the user with id.
func (b *Brain) Get(id string) (User, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	u, ok := b.users[id]
	if !ok {
		return User{}, false
	}
	return u.Clone(), true
}

// UserForID returns the stored user with id, creating it from seed when absent.
func (b *Brain) UserForID(id string, seed User) User {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u, ok := b.users[id]; ok {
		return u.Clone()
	}
	seed = seed.Clone()
	seed.ID = id
	b.users[id] = seed
	b.dirty = true
	return seed.Clone()
}

// Put stores u under u.ID, replacing any previous record.
func (b *Brain) Put(u User) {
	if u.ID == "" {
		return
	}
	b.mu.Lock()
	b.users[u.ID] = u.Clone()
	b.dirty = true
	b.mu.Unlock()
}

// Remove deletes the user with id.
func (b *Brain) Remove(id string) {
	b.mu.Lock()
	if _, ok := b.users[id]; ok {
		delete(b.users, id)
		b.dirty = true
	}
	b.mu.Unlock()
}

// Users returns copies of all users ordered by id.
func (b *Brain) Users() []User {
	b.mu.RLock()
	items := make([]User, 0, len(b.users))
	for _, u := range b.users {
		items = append(items, u.Clone())
	}
	b.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// Len returns the number of stored users.
func (b *Brain) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.users)
}
