// Package preview records per-stage delivery decisions for selected articles.
// Recording is scoped to a context started with Start and is a no-op elsewhere.
package preview

import (
	"context"
	"maps"
	"slices"
	"sync"
)

type Stage string

const (
	StageFeedState          Stage = "FeedState"
	StageIDComparison       Stage = "IdComparison"
	StageBlockingComparison Stage = "BlockingComparison"
	StagePassingComparison  Stage = "PassingComparison"
	StageDateCheck          Stage = "DateCheck"
	StageMediumFilter       Stage = "MediumFilter"
)

type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

type StageResult struct {
	Stage   Stage          `json:"stage"`
	Status  Status         `json:"status"`
	Details map[string]any `json:"details"`
}

type recorder struct {
	mu      sync.Mutex
	targets []string
	results map[string][]StageResult
}

func (r *recorder) isTarget(hash string) bool {
	return slices.Contains(r.targets, hash)
}

type recorderKey struct{}

// Start returns a context in which stage results for the given article id hashes are recorded.
func Start(ctx context.Context, targetHashes ...string) context.Context {
	r := &recorder{
		targets: slices.Clone(targetHashes),
		results: make(map[string][]StageResult),
	}
	return context.WithValue(ctx, recorderKey{}, r)
}

func fromContext(ctx context.Context) *recorder {
	r, _ := ctx.Value(recorderKey{}).(*recorder)
	return r
}

func IsActive(ctx context.Context) bool {
	return fromContext(ctx) != nil
}

// TargetArticleIDHash returns the first target hash, or "" outside a preview context.
func TargetArticleIDHash(ctx context.Context) string {
	r := fromContext(ctx)
	if r == nil || len(r.targets) == 0 {
		return ""
	}
	return r.targets[0]
}

// Record appends a stage result for hash if it is a target.
func Record(ctx context.Context, hash string, result StageResult) {
	r := fromContext(ctx)
	if r == nil || !r.isTarget(hash) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[hash] = append(r.results[hash], result)
}

// RecordForTargets calls build for every entry of byHash that is a target and records
// the returned result. A nil result records nothing. build is never called outside a
// preview context.
func RecordForTargets[T any](ctx context.Context, byHash map[string]T, build func(item T, hash string) *StageResult) {
	r := fromContext(ctx)
	if r == nil {
		return
	}
	for _, hash := range r.targets {
		item, ok := byHash[hash]
		if !ok {
			continue
		}
		if result := build(item, hash); result != nil {
			Record(ctx, hash, *result)
		}
	}
}

func ResultsFor(ctx context.Context, hash string) []StageResult {
	r := fromContext(ctx)
	if r == nil {
		return []StageResult{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.results[hash])
}

func AllResults(ctx context.Context) map[string][]StageResult {
	r := fromContext(ctx)
	if r == nil {
		return map[string][]StageResult{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.results)
}
