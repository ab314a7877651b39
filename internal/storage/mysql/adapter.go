package mysql

import (
	"context"

	"logreduce/internal/storage"
)

// newStore is a test hook that points to NewStore by default.
// Tests may replace this variable to avoid real DB connections.
var newStore = func(ctx context.Context, cfg Config) (storage.Store, error) {
	s, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return newStore(ctx, Config{DSN: cfg.DSN, Logger: cfg.Logger})
	})
}
