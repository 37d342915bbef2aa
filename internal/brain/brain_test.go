package brain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lveraszto/hubot-slack/internal/event"
	"github.com/lveraszto/hubot-slack/internal/logger"
)

type failingStore struct {
	*MemoryStore
	saveErr error
}

func (s *failingStore) Save(ctx context.Context, users map[string]User) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.Save(ctx, users)
}

func TestUserForIDCreatesOnce(t *testing.T) {
	b := New(logger.Discard(), nil, nil)

	first := b.UserForID("U1", User{Name: "alice"})
	second := b.UserForID("U1", User{Name: "ignored"})

	assert.Equal(t, "U1", first.ID)
	assert.Equal(t, "alice", second.Name)
	assert.Equal(t, 1, b.Len())
}

func TestGetReturnsCopies(t *testing.T) {
	b := New(logger.Discard(), nil, nil)
	b.Put(User{ID: "U1", Name: "alice", Slack: map[string]any{"is_bot": false}})

	u, ok := b.Get("U1")
	require.True(t, ok)
	u.Slack["is_bot"] = true
	u.Name = "mallory"

	again, _ := b.Get("U1")
	assert.Equal(t, "alice", again.Name)
	assert.False(t, again.SlackBool("is_bot"))
}

func TestRemoveAndUsersOrder(t *testing.T) {
	b := New(logger.Discard(), nil, nil)
	b.Put(User{ID: "U3"})
	b.Put(User{ID: "U1"})
	b.Put(User{ID: "U2"})
	b.Remove("U3")
	b.Remove("missing")

	users := b.Users()
	require.Len(t, users, 2)
	assert.Equal(t, "U1", users[0].ID)
	assert.Equal(t, "U2", users[1].ID)
}

func TestLoadPublishesEventAndMerges(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), map[string]User{
		"U1": {ID: "U1", Name: "stored"},
	}))
	hub := event.NewHub()
	_, stream, cancel := hub.Subscribe(event.TypeBrainLoaded, 1)
	defer cancel()

	b := New(logger.Discard(), store, hub)
	b.Put(User{ID: "U1", Name: "memory"})
	b.Put(User{ID: "U2", Name: "only-memory"})
	require.NoError(t, b.Load(context.Background()))

	u, _ := b.Get("U1")
	assert.Equal(t, "stored", u.Name)
	assert.Equal(t, 2, b.Len())

	select {
	case evt := <-stream:
		assert.Equal(t, 2, evt.Data)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected brain_loaded event")
	}
}

func TestSaveSkipsCleanBrain(t *testing.T) {
	store := NewMemoryStore()
	b := New(logger.Discard(), store, nil)

	require.NoError(t, b.Save(context.Background()))
	assert.Equal(t, 0, store.Saves())

	b.Put(User{ID: "U1"})
	require.NoError(t, b.Save(context.Background()))
	require.NoError(t, b.Save(context.Background()))
	assert.Equal(t, 1, store.Saves())
}

func TestSaveFailureKeepsDirty(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), saveErr: errors.New("disk full")}
	b := New(logger.Discard(), store, nil)
	b.Put(User{ID: "U1"})

	require.Error(t, b.Save(context.Background()))
	store.saveErr = nil
	require.NoError(t, b.Close(context.Background()))

	users, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, users, "U1")
}

func TestWithRoomDoesNotMutateOriginal(t *testing.T) {
	u := User{ID: "U1", Slack: map[string]any{"name": "alice"}}
	addressed := u.WithRoom("C1")
	addressed.Slack["name"] = "bob"

	assert.Equal(t, "", u.Room)
	assert.Equal(t, "C1", addressed.Room)
	assert.Equal(t, "alice", u.SlackString("name"))
}
