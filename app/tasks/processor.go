package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/feed-relay/app/cache"
	"github.com/lysyi3m/feed-relay/app/comparison"
	"github.com/lysyi3m/feed-relay/app/database"
	"github.com/lysyi3m/feed-relay/app/delivery"
	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/fetch"
	"github.com/lysyi3m/feed-relay/app/formatter"
	"github.com/lysyi3m/feed-relay/app/metrics"
	"github.com/lysyi3m/feed-relay/app/subscription"
)

const DefaultParseTimeout = 10 * time.Second

type ProcessorDeps struct {
	Fetcher      FeedFetcher
	Parser       feed.ArticleParser
	Articles     *cache.ArticlesCache
	Hashes       *cache.ResponseHashStore
	Store        database.FieldStore
	Deliverer    delivery.Deliverer
	ParseTimeout time.Duration
}

// Processor runs one refresh of a feed: fetch, parse, compare, filter, format and deliver.
type Processor struct {
	fetcher      FeedFetcher
	parser       feed.ArticleParser
	articles     *cache.ArticlesCache
	hashes       *cache.ResponseHashStore
	store        database.FieldStore
	engine       *comparison.Engine
	filterer     *feed.Filterer
	deliverer    delivery.Deliverer
	parseTimeout time.Duration
	now          func() time.Time
}

func NewProcessor(deps ProcessorDeps) *Processor {
	deliverer := deps.Deliverer
	if deliverer == nil {
		deliverer = delivery.LogDeliverer{}
	}

	return &Processor{
		fetcher:      deps.Fetcher,
		parser:       deps.Parser,
		articles:     deps.Articles,
		hashes:       deps.Hashes,
		store:        deps.Store,
		engine:       comparison.NewEngine(deps.Store),
		filterer:     feed.NewFilterer(),
		deliverer:    deliverer,
		parseTimeout: cmp.Or(deps.ParseTimeout, DefaultParseTimeout),
		now:          time.Now,
	}
}

type ProcessStatus string

const (
	ProcessStatusSkipped   ProcessStatus = "skipped"
	ProcessStatusCompleted ProcessStatus = "completed"
)

type ProcessResult struct {
	Status     ProcessStatus
	Reason     string
	Articles   int
	Comparison *comparison.Result
	Delivered  int
	Filtered   int
	Failed     int
}

// skipError ends a refresh early without a retry. feedError separates an
// unusable feed from one that has nothing new.
type skipError struct {
	reason    string
	feedError bool
}

func (e *skipError) Error() string {
	return e.reason
}

func asSkip(err error) (*skipError, bool) {
	var skip *skipError
	ok := errors.As(err, &skip)
	return skip, ok
}

// Process refreshes the feed described by cfg. Expected fetch and parse failures
// skip the refresh without an error; everything else is returned for a retry.
func (p *Processor) Process(ctx context.Context, cfg *subscription.Config) (*ProcessResult, error) {
	ctx = p.store.StartBatch(ctx)

	hasPrior, err := p.store.HasPriorArticlesStored(ctx, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check prior articles: %w", err)
	}

	var hashToCompare string
	if hasPrior {
		if hashToCompare, err = p.hashes.Get(ctx, cfg.Name); err != nil {
			return nil, fmt.Errorf("failed to get response hash: %w", err)
		}
	} else {
		slog.Debug("No prior articles stored", "feed", cfg.Name)
	}

	res, err := p.fetch(ctx, cfg, fetch.Options{HashToCompare: hashToCompare})
	if err == nil {
		var parsed *feed.ParseResult
		if parsed, err = p.parse(ctx, cfg, res.Body); err == nil {
			return p.processArticles(ctx, cfg, res, parsed)
		}
	}
	if skip, ok := asSkip(err); ok {
		return &ProcessResult{Status: ProcessStatusSkipped, Reason: skip.reason}, nil
	}
	return nil, err
}

func (p *Processor) processArticles(ctx context.Context, cfg *subscription.Config, res *fetch.Result, parsed *feed.ParseResult) (*ProcessResult, error) {
	if _, err := p.articles.UpdateArticles(ctx, keyInput(cfg), cache.CachedArticles{Articles: parsed.Articles, Feed: parsed.Feed}); err != nil {
		slog.Warn("Failed to update cached articles", "feed", cfg.Name, "error", err)
	}

	compared, err := p.engine.GetArticlesToDeliver(ctx, cfg.Name, parsed.Articles, cfg.ComparisonConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to compare articles: %w", err)
	}

	result := &ProcessResult{
		Status:     ProcessStatusCompleted,
		Articles:   len(parsed.Articles),
		Comparison: compared,
	}
	if len(compared.IgnoredComparisons) > 0 {
		slog.Debug("Comparisons not applied until stored", "feed", cfg.Name, "comparisons", compared.IgnoredComparisons)
	}

	p.deliver(ctx, cfg, compared.ArticlesToDeliver, result)

	rows, err := p.store.FlushPendingInserts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to flush article fields: %w", err)
	}
	if rows > 0 {
		slog.Debug("Flushed article field inserts", "feed", cfg.Name, "rows", rows)
	}

	if res.Hash != "" {
		if err := p.hashes.Set(ctx, cfg.Name, res.Hash); err != nil {
			return nil, fmt.Errorf("failed to save response hash: %w", err)
		}
	}

	return result, nil
}

func (p *Processor) fetch(ctx context.Context, cfg *subscription.Config, opts fetch.Options) (*fetch.Result, error) {
	if cfg.Settings.LookupKey != "" {
		opts.LookupDetails = &fetch.LookupDetails{Key: cfg.Settings.LookupKey, URL: cfg.URL}
	}

	res, err := p.fetcher.FetchFeed(ctx, cfg.URL, opts)
	if err != nil {
		if fetch.IsRequestError(err) {
			slog.Info("Ignoring feed refresh due to request error", "feed", cfg.Name, "url", cfg.URL, "error", err)
			return nil, &skipError{reason: err.Error(), feedError: true}
		}
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	if res.Status != fetch.StatusSuccess {
		slog.Debug("No response body, pending request or matched hash", "feed", cfg.Name, "status", string(res.Status))
		return nil, &skipError{reason: string(res.Status)}
	}

	return res, nil
}

func (p *Processor) parse(ctx context.Context, cfg *subscription.Config, body string) (*feed.ParseResult, error) {
	opts := feed.ParseOptions{
		Timeout:             p.parseTimeout,
		FormatOptions:       cfg.Format,
		ParserRules:         cfg.ParserRules,
		ExternalProperties:  cfg.External,
		IncludeHTMLInErrors: cfg.Settings.IncludeHTML,
	}
	if len(cfg.External) > 0 {
		opts.Fetch = p.fetcher.FetchExternal
	}

	parsed, err := p.parser.Parse(ctx, body, opts)
	switch {
	case feed.IsFeedParseTimeoutError(err):
		slog.Error("Feed parse timed out", "feed", cfg.Name, "url", cfg.URL)
		return nil, &skipError{reason: "parse timeout", feedError: true}
	case feed.IsInvalidFeedError(err):
		slog.Info("Ignoring feed refresh due to invalid feed", "feed", cfg.Name, "url", cfg.URL, "error", err)
		return nil, &skipError{reason: "invalid feed", feedError: true}
	case err != nil:
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metrics.ArticlesParsedTotal.Add(float64(len(parsed.Articles)))
	for _, e := range parsed.ExternalContentErrors {
		metrics.ExternalContentErrorsTotal.WithLabelValues(string(e.ErrorType)).Inc()
	}
	return parsed, nil
}

// deliver hands every article to every delivery of the feed, deliveries first.
func (p *Processor) deliver(ctx context.Context, cfg *subscription.Config, articles []feed.Article, result *ProcessResult) {
	if len(articles) == 0 {
		slog.Debug("No new articles to deliver", "feed", cfg.Name)
		return
	}

	for _, d := range cfg.Deliveries {
		formatted, filtered := p.prepare(cfg, d, articles)
		result.Failed += len(articles) - len(formatted)

		for i, article := range formatted {
			if filtered[i].IsFiltered {
				result.Filtered++
				continue
			}

			msg, err := p.buildMessage(cfg, d, article)
			if err == nil {
				err = p.deliverer.Deliver(ctx, msg)
			}
			if err != nil {
				slog.Warn("Failed to deliver article", "feed", cfg.Name, "delivery", d.Name, "article", article.ID(), "error", err)
				result.Failed++
				continue
			}
			result.Delivered++
		}
	}
}

// prepare formats articles for a delivery and evaluates its filters on the
// formatted values. Articles that fail to format are logged and left out.
func (p *Processor) prepare(cfg *subscription.Config, d subscription.Delivery, articles []feed.Article) ([]formatter.FormattedArticle, []feed.FilteredArticle) {
	formatted := make([]formatter.FormattedArticle, 0, len(articles))
	plain := make([]feed.Article, 0, len(articles))
	for _, a := range articles {
		f, err := formatter.FormatArticleForDiscord(a, d.Format)
		if err != nil {
			slog.Warn("Failed to format article", "feed", cfg.Name, "delivery", d.Name, "article", a.ID(), "error", err)
			continue
		}
		formatted = append(formatted, f)
		plain = append(plain, f.Article)
	}
	return formatted, p.filterer.Run(plain, d.Filters)
}

func (p *Processor) buildMessage(cfg *subscription.Config, d subscription.Delivery, article formatter.FormattedArticle) (delivery.Message, error) {
	payloads, err := formatter.GeneratePayloads(article, d.Message)
	if err != nil {
		return delivery.Message{}, fmt.Errorf("failed to generate payloads: %w", err)
	}

	threadName := ""
	if d.Webhook != nil {
		payloads = formatter.EnhancePayloadsWithWebhookDetails(payloads, article.Flattened, *d.Webhook, d.Message.EnablePlaceholderFallback)
		threadName = d.Webhook.ThreadName
	}

	var threadBody map[string]any
	if d.Forum != nil && len(payloads) > 0 {
		name, err := formatter.GenerateThreadName(article.Flattened, cmp.Or(d.Forum.ThreadName, threadName), d.Format.CustomPlaceholders, d.Message.EnablePlaceholderFallback)
		if err != nil {
			return delivery.Message{}, fmt.Errorf("failed to generate thread name: %w", err)
		}
		tags := formatter.GetForumTagsToSend(d.Forum.ForumTags, article.Flattened)
		if threadBody, err = formatter.BuildForumThreadBody(payloads[0], name, tags, d.Forum.IsWebhook); err != nil {
			return delivery.Message{}, err
		}
		payloads = payloads[1:]
	}

	return delivery.Message{
		Feed:          cfg.Name,
		Delivery:      d.Name,
		ArticleID:     article.ID(),
		ArticleIDHash: article.IDHash(),
		Payloads:      payloads,
		ThreadBody:    threadBody,
		CreatedAt:     p.now(),
		Article:       article,
	}, nil
}

func keyInput(cfg *subscription.Config) cache.KeyInput {
	return cache.KeyInput{
		URL: cfg.URL,
		Options: cache.KeyOptions{
			FormatOptions:           cfg.Format,
			ExternalFeedProperties:  cfg.External,
			RequestLookupDetailsKey: cfg.Settings.LookupKey,
		},
	}
}
