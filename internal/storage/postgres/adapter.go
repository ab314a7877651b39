package postgres

import (
	"context"

	"logreduce/internal/storage"
)

// newStore is a test hook that points to NewStore by default.
// Tests may replace this variable to avoid real DB connections.
var newStore = NewStore

// wrappedStore implements storage.Store by delegating to the concrete *Store
// while providing a Close method that calls the close function returned by
// NewStore.
type wrappedStore struct {
	*Store
	closeFn func()
}

// Ensure wrappedStore satisfies storage.Store at compile time.
var _ storage.Store = (*wrappedStore)(nil)

// Close implements storage.Store.Close.
func (w *wrappedStore) Close() error {
	if w.closeFn != nil {
		w.closeFn()
	}
	return nil
}

// init registers the "postgres" backend with the storage factory.
func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		s, closeFn, err := newStore(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedStore{Store: s, closeFn: closeFn}, nil
	})
}
