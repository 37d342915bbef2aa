package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// document is the JSON layout written under the storage key.
type document struct {
	Users map[string]User `json:"users"`
}

// RedisStore keeps the whole user table as one JSON document under "<prefix>:storage".
type RedisStore struct {
	client *redis.Client
	key    string
}

// OpenRedis connects to the redis URL and verifies the connection.
func OpenRedis(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(client, prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "hubot"
	}
	return &RedisStore{client: client, key: prefix + ":storage"}
}

func (s *RedisStore) Load(ctx context.Context) (map[string]User, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]User{}, nil
		}
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}
	if doc.Users == nil {
		doc.Users = map[string]User{}
	}
	return doc.Users, nil
}

func (s *RedisStore) Save(ctx context.Context, users map[string]User) error {
	raw, err := json.Marshal(document{Users: users})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, raw, 0).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
