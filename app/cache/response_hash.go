package cache

import (
	"context"
	"errors"
)

const responseHashPrefix = "feed-response-hash:"

// ResponseHashStore remembers the last fetched response hash per feed so unchanged
// responses can be skipped by the fetch service.
type ResponseHashStore struct {
	store Store
}

func NewResponseHashStore(store Store) *ResponseHashStore {
	return &ResponseHashStore{store: store}
}

// Get returns "" when no hash is stored.
func (s *ResponseHashStore) Get(ctx context.Context, feedID string) (string, error) {
	hash, err := s.store.Get(ctx, responseHashPrefix+feedID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return hash, err
}

func (s *ResponseHashStore) Set(ctx context.Context, feedID, hash string) error {
	return s.store.Set(ctx, responseHashPrefix+feedID, hash, SetOptions{})
}

func (s *ResponseHashStore) Remove(ctx context.Context, feedID string) error {
	return s.store.Del(ctx, responseHashPrefix+feedID)
}
