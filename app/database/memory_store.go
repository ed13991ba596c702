package database

import (
	"context"
	"sync"
	"time"

	"github.com/lysyi3m/feed-relay/app/feed"
)

// MemoryStore is an in-process FieldStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	names   map[string]map[string]struct{}
	now     func() time.Time
}

var _ FieldStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		names: make(map[string]map[string]struct{}),
		now:   time.Now,
	}
}

func (s *MemoryStore) HasPriorArticlesStored(ctx context.Context, feedID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.FeedID == feedID && r.FieldName == IDFieldName {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) FindStoredArticleIDs(ctx context.Context, feedID string, idHashes []string) (map[string]struct{}, error) {
	return s.findIDs(feedID, idHashes, func(Record) bool { return true }), nil
}

func (s *MemoryStore) FindStoredArticleIDsPartitioned(ctx context.Context, feedID string, idHashes []string, olderThanOneMonth bool) (map[string]struct{}, error) {
	cutoff := oneMonthBefore(s.now())
	return s.findIDs(feedID, idHashes, func(r Record) bool {
		return !r.CreatedAt.After(cutoff) == olderThanOneMonth
	}), nil
}

// findIDs matches each hash against its most recent id record.
func (s *MemoryStore) findIDs(feedID string, idHashes []string, keep func(Record) bool) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(idHashes))
	for _, h := range idHashes {
		wanted[h] = struct{}{}
	}

	latest := make(map[string]Record)
	for _, r := range s.records {
		if r.FeedID != feedID || r.FieldName != IDFieldName {
			continue
		}
		if _, ok := wanted[r.HashedValue]; !ok {
			continue
		}
		if prev, ok := latest[r.HashedValue]; !ok || r.CreatedAt.After(prev.CreatedAt) {
			latest[r.HashedValue] = r
		}
	}

	found := make(map[string]struct{})
	for h, r := range latest {
		if keep(r) {
			found[h] = struct{}{}
		}
	}
	return found
}

func (s *MemoryStore) SomeFieldsExist(ctx context.Context, feedID string, fields []FieldHash) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.FeedID != feedID {
			continue
		}
		for _, f := range fields {
			if r.FieldName == f.Name && r.HashedValue == f.HashedValue {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *MemoryStore) StoreArticles(ctx context.Context, feedID string, articles []feed.Article, comparisonFields []string) error {
	b, ok := batchFrom(ctx)
	if !ok {
		return ErrNoBatch
	}
	b.add(buildRecords(feedID, articles, comparisonFields, s.now()))
	return nil
}

func (s *MemoryStore) GetStoredComparisonNames(ctx context.Context, feedID string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[string]struct{}, len(s.names[feedID]))
	for n := range s.names[feedID] {
		names[n] = struct{}{}
	}
	return names, nil
}

// StoreComparisonNames joins the active batch when there is one.
func (s *MemoryStore) StoreComparisonNames(ctx context.Context, feedID string, names []string) error {
	if b, ok := batchFrom(ctx); ok {
		b.addNames(feedID, names)
		return nil
	}

	s.mu.Lock()
	s.addNames(feedID, names)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) addNames(feedID string, names []string) {
	set, ok := s.names[feedID]
	if !ok {
		set = make(map[string]struct{})
		s.names[feedID] = set
	}
	for _, n := range names {
		set[n] = struct{}{}
	}
}

func (s *MemoryStore) Clear(ctx context.Context, feedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, r := range s.records {
		if r.FeedID != feedID {
			kept = append(kept, r)
		}
	}
	s.records = kept
	delete(s.names, feedID)
	return nil
}

func (s *MemoryStore) StartBatch(ctx context.Context) context.Context {
	return startBatch(ctx)
}

func (s *MemoryStore) FlushPendingInserts(ctx context.Context) (int64, error) {
	b, ok := batchFrom(ctx)
	if !ok {
		return 0, ErrNoBatch
	}

	records, names := b.drain()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, records...)
	for _, n := range names {
		s.addNames(n.feedID, n.names)
	}
	return int64(len(records)), nil
}

// Insert adds records directly, bypassing batching.
func (s *MemoryStore) Insert(records ...Record) {
	s.mu.Lock()
	s.records = append(s.records, records...)
	s.mu.Unlock()
}
