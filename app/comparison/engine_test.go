package comparison

import (
	"context"
	"testing"
	"time"

	"github.com/lysyi3m/feed-relay/app/database"
	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/preview"
)

const testFeed = "feed-1"

func article(id string, fields ...string) feed.Article {
	flattened := map[string]string{"id": id, "idHash": database.HashValue(id)}
	for i := 0; i+1 < len(fields); i += 2 {
		flattened[fields[i]] = fields[i+1]
	}
	return feed.Article{Flattened: flattened}
}

// run executes one comparison inside its own batch and flushes it.
func run(t *testing.T, e *Engine, store *database.MemoryStore, articles []feed.Article, cfg Config) *Result {
	t.Helper()
	return runCtx(t, context.Background(), e, store, articles, cfg)
}

func runCtx(t *testing.T, ctx context.Context, e *Engine, store *database.MemoryStore, articles []feed.Article, cfg Config) *Result {
	t.Helper()
	ctx = store.StartBatch(ctx)
	result, err := e.GetArticlesToDeliver(ctx, testFeed, articles, cfg)
	if err != nil {
		t.Fatalf("GetArticlesToDeliver failed: %v", err)
	}
	if _, err := store.FlushPendingInserts(ctx); err != nil {
		t.Fatalf("FlushPendingInserts failed: %v", err)
	}
	return result
}

func ids(articles []feed.Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.ID())
	}
	return out
}

func equalIDs(got []feed.Article, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func TestFirstRun(t *testing.T) {
	store := database.NewMemoryStore()
	e := NewEngine(store)
	articles := []feed.Article{article("1"), article("2"), article("3")}

	result := run(t, e, store, articles, Config{})

	if !result.FirstRun {
		t.Error("Expected first run")
	}
	if len(result.ArticlesToDeliver) != 0 {
		t.Errorf("Expected nothing delivered, got %v", ids(result.ArticlesToDeliver))
	}

	hashes := []string{articles[0].IDHash(), articles[1].IDHash(), articles[2].IDHash()}
	found, _ := store.FindStoredArticleIDs(context.Background(), testFeed, hashes)
	if len(found) != 3 {
		t.Errorf("Expected 3 stored ids after flush, got %d", len(found))
	}
}

func TestRequiresBatch(t *testing.T) {
	store := database.NewMemoryStore()
	e := NewEngine(store)

	_, err := e.GetArticlesToDeliver(context.Background(), testFeed, []feed.Article{article("1")}, Config{})
	if err == nil {
		t.Error("Expected error without an active batch")
	}
}

func TestNewArticleDelivered(t *testing.T) {
	store := database.NewMemoryStore()
	e := NewEngine(store)

	run(t, e, store, []feed.Article{article("1")}, Config{})
	result := run(t, e, store, []feed.Article{article("2"), article("1"), article("3")}, Config{})

	if !equalIDs(result.ArticlesToDeliver, "2", "3") {
		t.Errorf("Expected [2 3] in feed order, got %v", ids(result.ArticlesToDeliver))
	}
	if result.FirstRun {
		t.Error("Expected non-first run")
	}
}

func TestIdempotence(t *testing.T) {
	store := database.NewMemoryStore()
	e := NewEngine(store)
	cfg := Config{BlockingComparisons: []string{"title"}}

	run(t, e, store, []feed.Article{article("1", "title", "a")}, cfg)
	batch := []feed.Article{article("1", "title", "a"), article("2", "title", "b")}

	first := run(t, e, store, batch, cfg)
	if !equalIDs(first.ArticlesToDeliver, "2") {
		t.Fatalf("Expected [2], got %v", ids(first.ArticlesToDeliver))
	}

	second := run(t, e, store, batch, cfg)
	if len(second.ArticlesToDeliver) != 0 {
		t.Errorf("Expected nothing on repeat, got %v", ids(second.ArticlesToDeliver))
	}
}

func TestBlockingComparison(t *testing.T) {
	store := database.NewMemoryStore()
	e := NewEngine(store)
	cfg := Config{BlockingComparisons: []string{"title"}}

	run(t, e, store, []feed.Article{article("1", "title", "Same Title")}, cfg)
	result := run(t, e, store, []feed.Article{article("2", "title", "Same Title")}, cfg)

	if len(result.ArticlesToDeliver) != 0 {
		t.Errorf("Expected blocked article not delivered, got %v", ids(result.ArticlesToDeliver))
	}
	if !equalIDs(result.ArticlesBlocked, "2") {
		t.Errorf("Expected [2] blocked, got %v", ids(result.ArticlesBlocked))
	}
}

func TestPassingComparison(t *testing.T) {
	store := database.NewMemoryStore()
	e := NewEngine(store)
	cfg := Config{PassingComparisons: []string{"title"}}

	run(t, e, store, []feed.Article{article("1", "title", "Original Title")}, cfg)
	result := run(t, e, store, []feed.Article{article("1", "title", "Updated Title")}, cfg)

	if !equalIDs(result.ArticlesToDeliver, "1") {
		t.Errorf("Expected [1] delivered, got %v", ids(result.ArticlesToDeliver))
	}
	if !equalIDs(result.ArticlesPassed, "1") {
		t.Errorf("Expected [1] passed, got %v", ids(result.ArticlesPassed))
	}

	again := run(t, e, store, []feed.Article{article("1", "title", "Updated Title")}, cfg)
	if len(again.ArticlesToDeliver) != 0 {
		t.Errorf("Expected updated title stored after pass, got %v", ids(again.ArticlesToDeliver))
	}
}

func TestPassingComparison_EmptyFieldDoesNotPass(t *testing.T) {
	store := database.NewMemoryStore()
	e := NewEngine(store)
	cfg := Config{PassingComparisons: []string{"title"}}

	run(t, e, store, []feed.Article{article("1", "title", "x")}, cfg)
	result := run(t, e, store, []feed.Article{article("1")}, cfg)

	if len(result.ArticlesPassed) != 0 {
		t.Errorf("Expected no pass for empty field, got %v", ids(result.ArticlesPassed))
	}
}

func TestNewComparisonIsInert(t *testing.T) {
	store := database.NewMemoryStore()
	e := NewEngine(store)

	run(t, e, store, []feed.Article{article("1", "title", "Same")}, Config{})

	cfg := Config{BlockingComparisons: []string{"title"}}
	result := run(t, e, store, []feed.Article{article("1", "title", "Same"), article("2", "title", "Same")}, cfg)

	if !equalIDs(result.ArticlesToDeliver, "2") {
		t.Errorf("Expected new comparison to be ignored on first use, got %v", ids(result.ArticlesToDeliver))
	}
	if len(result.IgnoredComparisons) != 1 || result.IgnoredComparisons[0] != "title" {
		t.Errorf("Expected [title] ignored, got %v", result.IgnoredComparisons)
	}

	next := run(t, e, store, []feed.Article{article("3", "title", "Same")}, cfg)
	if len(next.ArticlesToDeliver) != 0 {
		t.Errorf("Expected comparison active on the following run, got %v", ids(next.ArticlesToDeliver))
	}
	if len(next.IgnoredComparisons) != 0 {
		t.Errorf("Expected no ignored comparisons, got %v", next.IgnoredComparisons)
	}
}

func TestPartitioning(t *testing.T) {
	store := database.NewMemoryStore()
	e := NewEngine(store)
	ctx := context.Background()

	old := article("old")
	store.Insert(
		database.Record{FeedID: testFeed, FieldName: database.IDFieldName, HashedValue: old.IDHash(), CreatedAt: time.Now().AddDate(0, -2, 0)},
	)

	result := run(t, e, store, []feed.Article{old, article("new")}, Config{})

	if !equalIDs(result.ArticlesToDeliver, "new") {
		t.Errorf("Expected only [new] delivered, got %v", ids(result.ArticlesToDeliver))
	}

	hot, _ := store.FindStoredArticleIDsPartitioned(ctx, testFeed, []string{old.IDHash()}, false)
	if _, ok := hot[old.IDHash()]; !ok {
		t.Error("Expected cold article re-stored into the hot partition")
	}
}

func TestDateCheck(t *testing.T) {
	store := database.NewMemoryStore()
	e := NewEngine(store)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	run(t, e, store, []feed.Article{article("seed")}, Config{})

	recent := article("recent")
	recent.Raw.Date = now.Add(-time.Hour).Format(time.RFC3339Nano)
	stale := article("stale")
	stale.Raw.Date = now.Add(-48 * time.Hour).Format(time.RFC3339Nano)
	future := article("future")
	future.Raw.PubDate = now.Add(time.Hour).Format(time.RFC3339Nano)
	undated := article("undated")

	cfg := Config{DateChecks: DateChecks{OldArticleDateDiffMs: (24 * time.Hour).Milliseconds()}}
	result := run(t, e, store, []feed.Article{recent, stale, future, undated}, cfg)

	if !equalIDs(result.ArticlesToDeliver, "recent", "future", "undated") {
		t.Errorf("Expected [recent future undated], got %v", ids(result.ArticlesToDeliver))
	}
}

func TestPreviewRecording(t *testing.T) {
	store := database.NewMemoryStore()
	e := NewEngine(store)
	cfg := Config{BlockingComparisons: []string{"title"}}

	first := article("1", "title", "Same")
	ctx := preview.Start(context.Background(), first.IDHash())
	runCtx(t, ctx, e, store, []feed.Article{first}, cfg)

	results := preview.ResultsFor(ctx, first.IDHash())
	if len(results) != 1 || results[0].Stage != preview.StageFeedState || results[0].Status != preview.StatusFailed {
		t.Fatalf("Expected one failed FeedState stage on first run, got %+v", results)
	}

	blocked := article("2", "title", "Same")
	ctx = preview.Start(context.Background(), blocked.IDHash())
	runCtx(t, ctx, e, store, []feed.Article{blocked}, cfg)

	results = preview.ResultsFor(ctx, blocked.IDHash())
	stages := make(map[preview.Stage]preview.StageResult)
	for _, r := range results {
		stages[r.Stage] = r
	}

	if stages[preview.StageIDComparison].Status != preview.StatusPassed {
		t.Errorf("Expected IdComparison passed for new article, got %s", stages[preview.StageIDComparison].Status)
	}
	blocking, ok := stages[preview.StageBlockingComparison]
	if !ok {
		t.Fatal("Expected BlockingComparison stage")
	}
	if blocking.Status != preview.StatusFailed {
		t.Errorf("Expected BlockingComparison failed, got %s", blocking.Status)
	}
	if _, ok := stages[preview.StagePassingComparison]; ok {
		t.Error("Expected no PassingComparison stage without passing comparisons")
	}
}
