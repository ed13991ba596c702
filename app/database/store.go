package database

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/lysyi3m/feed-relay/app/feed"
)

const IDFieldName = "id"

// ErrNoBatch is returned when articles are stored or flushed outside StartBatch.
var ErrNoBatch = errors.New("no batch was started for the article field store")

// FieldHash is a comparison field name with the sha1 of its value.
type FieldHash struct {
	Name        string
	HashedValue string
}

// Record is one stored (feed, field, hashed value) entry.
type Record struct {
	FeedID      string
	FieldName   string
	HashedValue string
	CreatedAt   time.Time
}

// FieldStore keeps hashed article identities and comparison field values per feed.
type FieldStore interface {
	HasPriorArticlesStored(ctx context.Context, feedID string) (bool, error)
	FindStoredArticleIDs(ctx context.Context, feedID string, idHashes []string) (map[string]struct{}, error)
	// FindStoredArticleIDsPartitioned looks in the hot partition (stored within
	// the last month) or, when olderThanOneMonth is set, in the cold one.
	FindStoredArticleIDsPartitioned(ctx context.Context, feedID string, idHashes []string, olderThanOneMonth bool) (map[string]struct{}, error)
	SomeFieldsExist(ctx context.Context, feedID string, fields []FieldHash) (bool, error)
	StoreArticles(ctx context.Context, feedID string, articles []feed.Article, comparisonFields []string) error
	GetStoredComparisonNames(ctx context.Context, feedID string) (map[string]struct{}, error)
	StoreComparisonNames(ctx context.Context, feedID string, names []string) error
	Clear(ctx context.Context, feedID string) error
	StartBatch(ctx context.Context) context.Context
	FlushPendingInserts(ctx context.Context) (int64, error)
}

// HashValue returns the hex sha1 of a field value.
func HashValue(value string) string {
	sum := sha1.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}

type batchKey struct{}

type comparisonNames struct {
	feedID string
	names  []string
}

type batch struct {
	mu      sync.Mutex
	records []Record
	names   []comparisonNames
}

// startBatch attaches a fresh pending-insert buffer to ctx.
func startBatch(ctx context.Context) context.Context {
	return context.WithValue(ctx, batchKey{}, &batch{})
}

func batchFrom(ctx context.Context) (*batch, bool) {
	b, ok := ctx.Value(batchKey{}).(*batch)
	return b, ok
}

func (b *batch) add(records []Record) {
	b.mu.Lock()
	b.records = append(b.records, records...)
	b.mu.Unlock()
}

func (b *batch) addNames(feedID string, names []string) {
	b.mu.Lock()
	b.names = append(b.names, comparisonNames{feedID: feedID, names: names})
	b.mu.Unlock()
}

// drain empties the buffer and returns what was pending.
func (b *batch) drain() ([]Record, []comparisonNames) {
	b.mu.Lock()
	defer b.mu.Unlock()
	records, names := b.records, b.names
	b.records, b.names = nil, nil
	return records, names
}

// buildRecords produces the id record of each article plus one record per
// non-empty comparison field.
func buildRecords(feedID string, articles []feed.Article, comparisonFields []string, now time.Time) []Record {
	records := make([]Record, 0, len(articles)*(1+len(comparisonFields)))
	for _, article := range articles {
		records = append(records, Record{
			FeedID:      feedID,
			FieldName:   IDFieldName,
			HashedValue: article.IDHash(),
			CreatedAt:   now,
		})
		for _, field := range comparisonFields {
			value := article.Flattened[field]
			if value == "" {
				continue
			}
			records = append(records, Record{
				FeedID:      feedID,
				FieldName:   field,
				HashedValue: HashValue(value),
				CreatedAt:   now,
			})
		}
	}
	return records
}

func oneMonthBefore(now time.Time) time.Time {
	return now.AddDate(0, -1, 0)
}
