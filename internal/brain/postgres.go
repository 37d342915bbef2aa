package brain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one row per user in the brain_users table.
// The table is created by the embedded migrations (see the migrate command).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool. Close closes the pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context) (map[string]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, data FROM brain_users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := map[string]User{}
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var u User
		if err := json.Unmarshal(data, &u); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", id, err)
		}
		users[id] = u
	}
	return users, rows.Err()
}

func (s *PostgresStore) Save(ctx context.Context, users map[string]User) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM brain_users`); err != nil {
			return err
		}
		if len(users) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for id, u := range users {
			raw, err := json.Marshal(u)
			if err != nil {
				return err
			}
			batch.Queue(`INSERT INTO brain_users (id, data, updated_at) VALUES ($1, $2, now())`, id, raw)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
