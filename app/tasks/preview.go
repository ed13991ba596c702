package tasks

import (
	"context"
	"fmt"

	"github.com/lysyi3m/feed-relay/app/cache"
	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/fetch"
	"github.com/lysyi3m/feed-relay/app/formatter"
	"github.com/lysyi3m/feed-relay/app/preview"
	"github.com/lysyi3m/feed-relay/app/subscription"
)

// DeliveryPreview is what one delivery would do with the previewed article.
type DeliveryPreview struct {
	Name       string                `json:"name"`
	Stages     []preview.StageResult `json:"stages"`
	Verdict    preview.Verdict       `json:"verdict"`
	Payloads   []formatter.Payload   `json:"payloads,omitempty"`
	ThreadBody map[string]any        `json:"threadBody,omitempty"`
}

type PreviewResult struct {
	ArticleIDHash         string                      `json:"articleIdHash"`
	Article               *feed.Article               `json:"article,omitempty"`
	Stages                []preview.StageResult       `json:"stages"`
	Deliveries            []DeliveryPreview           `json:"deliveries"`
	Verdict               preview.Verdict             `json:"verdict"`
	ExternalContentErrors []feed.ExternalContentError `json:"externalContentErrors,omitempty"`
}

// Preview explains what a refresh would do with one article of the feed. It
// reuses cached articles when present and never persists comparison state.
func (p *Processor) Preview(ctx context.Context, cfg *subscription.Config, articleIDHash string) (*PreviewResult, error) {
	ctx = preview.Start(p.store.StartBatch(ctx), articleIDHash)
	result := &PreviewResult{ArticleIDHash: articleIDHash, Stages: []preview.StageResult{}, Deliveries: []DeliveryPreview{}}

	cached, err := p.loadArticles(ctx, cfg, result)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return result, nil
	}

	var target *feed.Article
	for i := range cached.Articles {
		if cached.Articles[i].IDHash() == articleIDHash {
			target = &cached.Articles[i]
			break
		}
	}
	if target == nil {
		result.Verdict = preview.Verdict{Outcome: preview.OutcomeArticleNotInFeed, Reason: "Article is not in the current feed."}
		return result, nil
	}
	result.Article = target

	if _, err := p.engine.GetArticlesToDeliver(ctx, cfg.Name, cached.Articles, cfg.ComparisonConfig()); err != nil {
		return nil, fmt.Errorf("failed to compare articles: %w", err)
	}
	result.Stages = append(result.Stages, preview.ResultsFor(ctx, articleIDHash)...)

	verdicts := make([]preview.Verdict, 0, len(cfg.Deliveries))
	for _, d := range cfg.Deliveries {
		dp := p.previewDelivery(ctx, cfg, d, *target, result.Stages)
		verdicts = append(verdicts, dp.Verdict)
		result.Deliveries = append(result.Deliveries, dp)
	}
	result.Verdict = preview.AggregateOutcome(verdicts)

	return result, nil
}

// loadArticles returns nil when the feed could not be fetched or parsed, with
// the verdict already set on result.
func (p *Processor) loadArticles(ctx context.Context, cfg *subscription.Config, result *PreviewResult) (*cache.CachedArticles, error) {
	key := keyInput(cfg)

	cached, err := p.articles.GetArticles(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get cached articles: %w", err)
	}
	if cached != nil {
		return cached, p.articles.RefreshExpiration(ctx, key)
	}

	res, err := p.fetch(ctx, cfg, fetch.Options{ExecuteFetchIfStale: true})
	var parsed *feed.ParseResult
	if err == nil {
		parsed, err = p.parse(ctx, cfg, res.Body)
	}
	if skip, ok := asSkip(err); ok {
		result.Verdict = preview.Verdict{Outcome: preview.OutcomeFeedUnchanged, Reason: skip.reason}
		if skip.feedError {
			result.Verdict.Outcome = preview.OutcomeFeedError
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	result.ExternalContentErrors = parsed.ExternalContentErrors

	cached = &cache.CachedArticles{Articles: parsed.Articles, Feed: parsed.Feed}
	if err := p.articles.SetArticles(ctx, key, *cached); err != nil {
		return nil, fmt.Errorf("failed to cache articles: %w", err)
	}
	return cached, nil
}

func (p *Processor) previewDelivery(ctx context.Context, cfg *subscription.Config, d subscription.Delivery, article feed.Article, shared []preview.StageResult) DeliveryPreview {
	dp := DeliveryPreview{Name: d.Name, Stages: []preview.StageResult{}}

	formatted, filtered := p.prepare(cfg, d, []feed.Article{article})
	if len(formatted) == 0 {
		dp.Verdict = preview.Verdict{Outcome: preview.OutcomeFeedError, Reason: "Article could not be formatted for this delivery."}
		return dp
	}

	stage := preview.StageResult{
		Stage:  preview.StageMediumFilter,
		Status: preview.StatusPassed,
		Details: map[string]any{
			"delivery":       d.Name,
			"hasFilters":     d.Filters != nil,
			"explainBlocked": filtered[0].Result.ExplainBlocked,
			"explainMatched": filtered[0].Result.ExplainMatched,
		},
	}
	if filtered[0].IsFiltered {
		stage.Status = preview.StatusFailed
	}
	preview.Record(ctx, article.IDHash(), stage)
	dp.Stages = append(dp.Stages, stage)

	stages := append(append([]preview.StageResult{}, shared...), stage)
	dp.Verdict = preview.DetermineOutcome(stages)

	if msg, err := p.buildMessage(cfg, d, formatted[0]); err == nil {
		dp.Payloads = msg.Payloads
		dp.ThreadBody = msg.ThreadBody
	}
	return dp
}
