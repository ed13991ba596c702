package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/lysyi3m/feed-relay/app/feed"
)

const (
	recordsTable    = "article_field_records"
	namesTable      = "feed_comparison_names"
	insertChunkSize = 500
	lookupChunkSize = 500
)

// SQLStore is a FieldStore over Postgres or sqlite. Timestamps are unix milliseconds.
type SQLStore struct {
	db  *DB
	now func() time.Time
}

var _ FieldStore = (*SQLStore)(nil)

func NewSQLStore(db *DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) HasPriorArticlesStored(ctx context.Context, feedID string) (bool, error) {
	query, args, err := s.db.builder().
		Select("1").
		From(recordsTable).
		Where(sq.Eq{"feed_id": feedID, "field_name": IDFieldName}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to check prior articles: %w", err)
	}
	defer rows.Close()

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to check prior articles: %w", err)
	}
	return found, nil
}

func (s *SQLStore) FindStoredArticleIDs(ctx context.Context, feedID string, idHashes []string) (map[string]struct{}, error) {
	return s.findIDs(ctx, feedID, idHashes, nil)
}

func (s *SQLStore) FindStoredArticleIDsPartitioned(ctx context.Context, feedID string, idHashes []string, olderThanOneMonth bool) (map[string]struct{}, error) {
	cutoff := oneMonthBefore(s.now()).UnixMilli()
	var partition sq.Sqlizer = sq.Gt{"created_at": cutoff}
	if olderThanOneMonth {
		partition = sq.LtOrEq{"created_at": cutoff}
	}
	return s.findIDs(ctx, feedID, idHashes, partition)
}

func (s *SQLStore) findIDs(ctx context.Context, feedID string, idHashes []string, partition sq.Sqlizer) (map[string]struct{}, error) {
	found := make(map[string]struct{})

	for start := 0; start < len(idHashes); start += lookupChunkSize {
		chunk := idHashes[start:min(start+lookupChunkSize, len(idHashes))]

		where := sq.And{sq.Eq{"feed_id": feedID, "field_name": IDFieldName, "field_hash_value": chunk}}
		if partition != nil {
			where = append(where, partition)
		}

		query, args, err := s.db.builder().
			Select("DISTINCT field_hash_value").
			From(recordsTable).
			Where(where).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build query: %w", err)
		}

		if err := s.collect(ctx, query, args, found); err != nil {
			return nil, err
		}
	}

	return found, nil
}

func (s *SQLStore) collect(ctx context.Context, query string, args []any, into map[string]struct{}) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query stored ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return fmt.Errorf("failed to scan stored id: %w", err)
		}
		into[hash] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating stored ids: %w", err)
	}
	return nil
}

func (s *SQLStore) SomeFieldsExist(ctx context.Context, feedID string, fields []FieldHash) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}

	query, args, err := s.someFieldsQuery(feedID, fields)
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to check stored fields: %w", err)
	}
	defer rows.Close()

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to check stored fields: %w", err)
	}
	return found, nil
}

func (s *SQLStore) someFieldsQuery(feedID string, fields []FieldHash) (string, []any, error) {
	or := make(sq.Or, 0, len(fields))
	for _, f := range fields {
		or = append(or, sq.And{sq.Eq{"field_name": f.Name}, sq.Eq{"field_hash_value": f.HashedValue}})
	}

	return s.db.builder().
		Select("1").
		From(recordsTable).
		Where(sq.Eq{"feed_id": feedID}).
		Where(or).
		Limit(1).
		ToSql()
}

func (s *SQLStore) StoreArticles(ctx context.Context, feedID string, articles []feed.Article, comparisonFields []string) error {
	b, ok := batchFrom(ctx)
	if !ok {
		return ErrNoBatch
	}
	b.add(buildRecords(feedID, articles, comparisonFields, s.now()))
	return nil
}

func (s *SQLStore) GetStoredComparisonNames(ctx context.Context, feedID string) (map[string]struct{}, error) {
	query, args, err := s.db.builder().
		Select("field_name").
		From(namesTable).
		Where(sq.Eq{"feed_id": feedID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	names := make(map[string]struct{})
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get comparison names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan comparison name: %w", err)
		}
		names[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comparison names: %w", err)
	}
	return names, nil
}

// StoreComparisonNames joins the active batch when there is one.
func (s *SQLStore) StoreComparisonNames(ctx context.Context, feedID string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if b, ok := batchFrom(ctx); ok {
		b.addNames(feedID, names)
		return nil
	}

	query, args, err := s.namesInsert(feedID, names).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to store comparison names: %w", err)
	}
	return nil
}

func (s *SQLStore) namesInsert(feedID string, names []string) sq.InsertBuilder {
	now := s.now().UnixMilli()
	insert := s.db.builder().
		Insert(namesTable).
		Columns("feed_id", "field_name", "created_at")
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		insert = insert.Values(feedID, n, now)
	}
	return insert.Suffix("ON CONFLICT (feed_id, field_name) DO NOTHING")
}

func (s *SQLStore) Clear(ctx context.Context, feedID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{recordsTable, namesTable} {
		query, args, err := s.db.builder().Delete(table).Where(sq.Eq{"feed_id": feedID}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}
	return nil
}

func (s *SQLStore) StartBatch(ctx context.Context) context.Context {
	return startBatch(ctx)
}

// FlushPendingInserts writes the batch in one transaction.
func (s *SQLStore) FlushPendingInserts(ctx context.Context) (int64, error) {
	b, ok := batchFrom(ctx)
	if !ok {
		return 0, ErrNoBatch
	}

	records, names := b.drain()
	if len(records) == 0 && len(names) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var affected int64
	for start := 0; start < len(records); start += insertChunkSize {
		chunk := records[start:min(start+insertChunkSize, len(records))]

		query, args, err := s.recordsInsert(chunk).ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build insert: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert article fields: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		affected += n
	}

	for _, n := range names {
		if len(n.names) == 0 {
			continue
		}
		query, args, err := s.namesInsert(n.feedID, n.names).ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("failed to store comparison names: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit pending inserts: %w", err)
	}
	return affected, nil
}

func (s *SQLStore) recordsInsert(records []Record) sq.InsertBuilder {
	insert := s.db.builder().
		Insert(recordsTable).
		Columns("feed_id", "field_name", "field_hash_value", "created_at")
	for _, r := range records {
		insert = insert.Values(r.FeedID, r.FieldName, r.HashedValue, r.CreatedAt.UnixMilli())
	}
	return insert
}
