package comparison

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/lysyi3m/feed-relay/app/database"
	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/metrics"
	"github.com/lysyi3m/feed-relay/app/preview"
)

var defaultDatePlaceholders = []string{"date", "pubdate"}

type DateChecks struct {
	// OldArticleDateDiffMs drops candidates older than this many milliseconds. Zero disables the check.
	OldArticleDateDiffMs      int64    `json:"oldArticleDateDiffMsThreshold,omitempty" yaml:"old_article_date_diff_ms"`
	DatePlaceholderReferences []string `json:"datePlaceholderReferences,omitempty" yaml:"date_placeholders"`
}

func (d DateChecks) placeholders() []string {
	if len(d.DatePlaceholderReferences) == 0 {
		return defaultDatePlaceholders
	}
	return d.DatePlaceholderReferences
}

type Config struct {
	BlockingComparisons []string
	PassingComparisons  []string
	DateChecks          DateChecks
}

func (c Config) allComparisons() []string {
	return append(slices.Clone(c.BlockingComparisons), c.PassingComparisons...)
}

type Result struct {
	ArticlesToDeliver []feed.Article
	ArticlesBlocked   []feed.Article
	ArticlesPassed    []feed.Article
	FirstRun          bool
	// IgnoredComparisons lists configured comparison names seen for the first time.
	// They are recorded for later runs but did not affect this one.
	IgnoredComparisons []string
}

// Engine decides which parsed articles of a feed are deliverable.
type Engine struct {
	store database.FieldStore
	now   func() time.Time
}

func NewEngine(store database.FieldStore) *Engine {
	return &Engine{store: store, now: time.Now}
}

// GetArticlesToDeliver classifies articles against what is stored for feedID and
// queues the resulting writes. ctx must carry a batch started with the store's
// StartBatch; the caller flushes it.
func (e *Engine) GetArticlesToDeliver(ctx context.Context, feedID string, articles []feed.Article, cfg Config) (*Result, error) {
	byHash := make(map[string]feed.Article, len(articles))
	for _, a := range articles {
		byHash[a.IDHash()] = a
	}

	hasPrior, err := e.store.HasPriorArticlesStored(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to check prior articles: %w", err)
	}

	if !hasPrior {
		return e.firstRun(ctx, feedID, articles, byHash, cfg)
	}

	storedNames, err := e.store.GetStoredComparisonNames(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stored comparison names: %w", err)
	}

	preview.RecordForTargets(ctx, byHash, func(feed.Article, string) *preview.StageResult {
		return &preview.StageResult{
			Stage:  preview.StageFeedState,
			Status: preview.StatusPassed,
			Details: map[string]any{
				"hasPriorArticles":      true,
				"isFirstRun":            false,
				"storedComparisonNames": sortedNames(storedNames),
			},
		}
	})

	activeBlocking := active(cfg.BlockingComparisons, storedNames)
	activePassing := active(cfg.PassingComparisons, storedNames)
	var unstored []string
	for _, name := range cfg.allComparisons() {
		if _, ok := storedNames[name]; !ok && !slices.Contains(unstored, name) {
			unstored = append(unstored, name)
		}
	}

	newArticles, restored, err := e.partitionNewArticles(ctx, feedID, articles)
	if err != nil {
		return nil, err
	}
	newHashes := hashSet(newArticles)
	restoredHashes := hashSet(restored)

	var seen []feed.Article
	for _, a := range articles {
		if _, ok := newHashes[a.IDHash()]; !ok {
			seen = append(seen, a)
		}
	}

	pastBlocks, err := e.checkBlocking(ctx, feedID, activeBlocking, newArticles)
	if err != nil {
		return nil, err
	}
	passed, err := e.checkPassing(ctx, feedID, activePassing, seen)
	if err != nil {
		return nil, err
	}
	pastBlockHashes := hashSet(pastBlocks)
	passedHashes := hashSet(passed)

	preview.RecordForTargets(ctx, byHash, func(_ feed.Article, hash string) *preview.StageResult {
		_, isNew := newHashes[hash]
		_, isRestored := restoredHashes[hash]
		return &preview.StageResult{
			Stage:  preview.StageIDComparison,
			Status: passFail(isNew),
			Details: map[string]any{
				"articleIdHash":        hash,
				"foundInHotPartition":  !isNew && !isRestored,
				"foundInColdPartition": isRestored,
				"isNew":                isNew,
			},
		}
	})

	if len(cfg.BlockingComparisons) > 0 {
		preview.RecordForTargets(ctx, byHash, func(_ feed.Article, hash string) *preview.StageResult {
			if _, ok := newHashes[hash]; !ok {
				return nil
			}
			_, ok := pastBlockHashes[hash]
			blockedBy := []string{}
			if !ok {
				blockedBy = activeBlocking
			}
			return &preview.StageResult{
				Stage:  preview.StageBlockingComparison,
				Status: passFail(ok),
				Details: map[string]any{
					"comparisonFields": cfg.BlockingComparisons,
					"activeFields":     activeBlocking,
					"blockedByFields":  blockedBy,
				},
			}
		})
	}

	if len(cfg.PassingComparisons) > 0 {
		preview.RecordForTargets(ctx, byHash, func(_ feed.Article, hash string) *preview.StageResult {
			if _, ok := newHashes[hash]; ok {
				return nil
			}
			_, ok := passedHashes[hash]
			changed := []string{}
			if ok {
				changed = activePassing
			}
			return &preview.StageResult{
				Stage:  preview.StagePassingComparison,
				Status: passFail(ok),
				Details: map[string]any{
					"comparisonFields": cfg.PassingComparisons,
					"activeFields":     activePassing,
					"changedFields":    changed,
				},
			}
		})
	}

	// Candidates keep feed order.
	var candidates []feed.Article
	for _, a := range articles {
		_, blockedOK := pastBlockHashes[a.IDHash()]
		_, passedOK := passedHashes[a.IDHash()]
		if blockedOK || passedOK {
			candidates = append(candidates, a)
		}
	}

	now := e.now()
	toDeliver := candidates
	if cfg.DateChecks.OldArticleDateDiffMs > 0 {
		toDeliver = nil
		candidateHashes := hashSet(candidates)
		checks := make(map[string]dateCheck, len(candidates))
		for _, a := range candidates {
			check := checkDate(a, cfg.DateChecks, now)
			checks[a.IDHash()] = check
			if check.passes {
				toDeliver = append(toDeliver, a)
			}
		}

		preview.RecordForTargets(ctx, byHash, func(_ feed.Article, hash string) *preview.StageResult {
			if _, ok := candidateHashes[hash]; !ok {
				return nil
			}
			check := checks[hash]
			return &preview.StageResult{
				Stage:  preview.StageDateCheck,
				Status: passFail(check.passes),
				Details: map[string]any{
					"articleDate":      check.articleDate,
					"threshold":        cfg.DateChecks.OldArticleDateDiffMs,
					"datePlaceholders": cfg.DateChecks.placeholders(),
					"ageMs":            check.ageMs,
					"withinThreshold":  check.passes,
				},
			}
		})
	}

	if err := e.persist(ctx, feedID, articles, newArticles, restored, passed, unstored, cfg); err != nil {
		return nil, err
	}

	var blocked []feed.Article
	for _, a := range newArticles {
		if _, ok := pastBlockHashes[a.IDHash()]; !ok {
			blocked = append(blocked, a)
		}
	}

	result := &Result{
		ArticlesToDeliver:  orEmpty(toDeliver),
		ArticlesBlocked:    orEmpty(blocked),
		ArticlesPassed:     orEmpty(passed),
		IgnoredComparisons: orEmpty(unstored),
	}
	metrics.RecordComparison(len(result.ArticlesToDeliver), len(result.ArticlesBlocked), len(result.ArticlesPassed))

	return result, nil
}

func (e *Engine) firstRun(ctx context.Context, feedID string, articles []feed.Article, byHash map[string]feed.Article, cfg Config) (*Result, error) {
	preview.RecordForTargets(ctx, byHash, func(feed.Article, string) *preview.StageResult {
		return &preview.StageResult{
			Stage:  preview.StageFeedState,
			Status: preview.StatusFailed,
			Details: map[string]any{
				"hasPriorArticles":      false,
				"isFirstRun":            true,
				"storedComparisonNames": []string{},
			},
		}
	})

	all := cfg.allComparisons()
	if err := e.store.StoreArticles(ctx, feedID, articles, all); err != nil {
		return nil, fmt.Errorf("failed to store first run articles: %w", err)
	}
	if err := e.store.StoreComparisonNames(ctx, feedID, all); err != nil {
		return nil, fmt.Errorf("failed to store comparison names: %w", err)
	}

	return &Result{
		ArticlesToDeliver:  []feed.Article{},
		ArticlesBlocked:    []feed.Article{},
		ArticlesPassed:     []feed.Article{},
		FirstRun:           true,
		IgnoredComparisons: []string{},
	}, nil
}

// partitionNewArticles looks ids up in the hot partition first and only checks the
// remaining candidates against the cold one. Cold hits are returned for re-storing.
func (e *Engine) partitionNewArticles(ctx context.Context, feedID string, articles []feed.Article) ([]feed.Article, []feed.Article, error) {
	hashes := make([]string, 0, len(articles))
	for _, a := range articles {
		hashes = append(hashes, a.IDHash())
	}

	hot, err := e.store.FindStoredArticleIDsPartitioned(ctx, feedID, hashes, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up recent article ids: %w", err)
	}

	var candidates []string
	for _, h := range hashes {
		if _, ok := hot[h]; !ok {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	cold, err := e.store.FindStoredArticleIDsPartitioned(ctx, feedID, candidates, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up old article ids: %w", err)
	}

	var fresh, restored []feed.Article
	for _, a := range articles {
		h := a.IDHash()
		if _, ok := hot[h]; ok {
			continue
		}
		if _, ok := cold[h]; ok {
			restored = append(restored, a)
		} else {
			fresh = append(fresh, a)
		}
	}
	return fresh, restored, nil
}

// checkBlocking keeps the new articles none of whose blocking field values were stored before.
func (e *Engine) checkBlocking(ctx context.Context, feedID string, fields []string, articles []feed.Article) ([]feed.Article, error) {
	if len(fields) == 0 {
		return articles, nil
	}
	var kept []feed.Article
	for _, a := range articles {
		seen, err := e.fieldsSeenBefore(ctx, feedID, a, fields)
		if err != nil {
			return nil, err
		}
		if !seen {
			kept = append(kept, a)
		}
	}
	return kept, nil
}

// checkPassing returns seen articles that carry passing field values never stored before.
func (e *Engine) checkPassing(ctx context.Context, feedID string, fields []string, articles []feed.Article) ([]feed.Article, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	var passed []feed.Article
	for _, a := range articles {
		if len(fieldHashes(a, fields)) == 0 {
			continue
		}
		seen, err := e.fieldsSeenBefore(ctx, feedID, a, fields)
		if err != nil {
			return nil, err
		}
		if !seen {
			passed = append(passed, a)
		}
	}
	return passed, nil
}

func (e *Engine) fieldsSeenBefore(ctx context.Context, feedID string, article feed.Article, fields []string) (bool, error) {
	hashes := fieldHashes(article, fields)
	if len(hashes) == 0 {
		return false, nil
	}
	seen, err := e.store.SomeFieldsExist(ctx, feedID, hashes)
	if err != nil {
		return false, fmt.Errorf("failed to check stored field values: %w", err)
	}
	return seen, nil
}

func (e *Engine) persist(ctx context.Context, feedID string, all, fresh, restored, passed []feed.Article, unstored []string, cfg Config) error {
	if len(fresh) > 0 {
		names := cfg.allComparisons()
		if err := e.store.StoreArticles(ctx, feedID, fresh, names); err != nil {
			return fmt.Errorf("failed to store new articles: %w", err)
		}
		if err := e.store.StoreComparisonNames(ctx, feedID, names); err != nil {
			return fmt.Errorf("failed to store comparison names: %w", err)
		}
	}

	if len(restored) > 0 {
		if err := e.store.StoreArticles(ctx, feedID, restored, nil); err != nil {
			return fmt.Errorf("failed to re-store old articles: %w", err)
		}
	}

	if len(passed) > 0 {
		if err := e.store.StoreArticles(ctx, feedID, passed, cfg.PassingComparisons); err != nil {
			return fmt.Errorf("failed to store passed articles: %w", err)
		}
	}

	if len(unstored) > 0 {
		if err := e.store.StoreArticles(ctx, feedID, all, unstored); err != nil {
			return fmt.Errorf("failed to store new comparison values: %w", err)
		}
		if err := e.store.StoreComparisonNames(ctx, feedID, unstored); err != nil {
			return fmt.Errorf("failed to store comparison names: %w", err)
		}
	}

	return nil
}
