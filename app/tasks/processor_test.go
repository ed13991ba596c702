package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/lysyi3m/feed-relay/app/cache"
	"github.com/lysyi3m/feed-relay/app/database"
	"github.com/lysyi3m/feed-relay/app/delivery"
	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/fetch"
	"github.com/lysyi3m/feed-relay/app/preview"
	"github.com/lysyi3m/feed-relay/app/subscription"
)

// stubFetcher answers every FetchFeed call with the next queued response.
type stubFetcher struct {
	mu        sync.Mutex
	responses []stubResponse
	calls     []fetch.Options
}

type stubResponse struct {
	result *fetch.Result
	err    error
}

func (f *stubFetcher) queue(result *fetch.Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, stubResponse{result, err})
}

func (f *stubFetcher) FetchFeed(ctx context.Context, url string, opts fetch.Options) (*fetch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	if len(f.responses) == 0 {
		return &fetch.Result{Status: fetch.StatusPending}, nil
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r.result, r.err
}

func (f *stubFetcher) FetchExternal(ctx context.Context, url string) feed.ExternalResponse {
	return feed.ExternalResponse{}
}

func rss(ids ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>News</title><link>https://example.com</link>`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<item><title>Post %s</title><link>https://example.com/%s</link><description>About %s</description><guid>%s</guid></item>`, id, id, id, id)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func success(body, hash string) *fetch.Result {
	return &fetch.Result{Status: fetch.StatusSuccess, Body: body, Hash: hash, StatusCode: 200}
}

type fixture struct {
	fetcher   *stubFetcher
	store     *database.MemoryStore
	hashes    *cache.ResponseHashStore
	articles  *cache.ArticlesCache
	outbox    *delivery.Outbox
	processor *Processor
}

func newFixture() *fixture {
	kv := cache.NewMemoryStore()
	f := &fixture{
		fetcher:  &stubFetcher{},
		store:    database.NewMemoryStore(),
		hashes:   cache.NewResponseHashStore(kv),
		articles: cache.NewArticlesCache(kv, 0),
		outbox:   delivery.NewOutbox(10),
	}
	f.processor = NewProcessor(ProcessorDeps{
		Fetcher:   f.fetcher,
		Parser:    feed.NewParser(feed.NewContentExtractor()),
		Articles:  f.articles,
		Hashes:    f.hashes,
		Store:     f.store,
		Deliverer: f.outbox,
	})
	return f
}

func mustConfig(t *testing.T, yaml string) *subscription.Config {
	t.Helper()
	cfg, err := subscription.ParseConfig("news", []byte(yaml))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	return cfg
}

const basicConfig = `
url: "https://example.com/feed.xml"
deliveries:
  - name: "main"
    message:
      content: "{{title}} {{link}}"
`

func TestProcessFirstRunStoresWithoutDelivering(t *testing.T) {
	f := newFixture()
	cfg := mustConfig(t, basicConfig)
	ctx := context.Background()

	f.fetcher.queue(success(rss("1", "2"), "h1"), nil)

	result, err := f.processor.Process(ctx, cfg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Status != ProcessStatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", result.Status, result.Reason)
	}
	if result.Articles != 2 {
		t.Errorf("Expected 2 articles, got %d", result.Articles)
	}
	if result.Delivered != 0 || len(result.Comparison.ArticlesToDeliver) != 0 {
		t.Errorf("Expected nothing delivered on first run, got %d", result.Delivered)
	}

	if f.fetcher.calls[0].HashToCompare != "" {
		t.Errorf("Expected no hash to compare without prior articles, got %s", f.fetcher.calls[0].HashToCompare)
	}

	hasPrior, _ := f.store.HasPriorArticlesStored(ctx, "news")
	if !hasPrior {
		t.Error("Expected articles to be flushed to the store")
	}

	hash, _ := f.hashes.Get(ctx, "news")
	if hash != "h1" {
		t.Errorf("Expected response hash h1, got %q", hash)
	}
}

func TestProcessDeliversNewArticles(t *testing.T) {
	f := newFixture()
	cfg := mustConfig(t, basicConfig)
	ctx := context.Background()

	f.fetcher.queue(success(rss("1", "2"), "h1"), nil)
	f.fetcher.queue(success(rss("3", "1", "2"), "h2"), nil)

	if _, err := f.processor.Process(ctx, cfg); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	result, err := f.processor.Process(ctx, cfg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if f.fetcher.calls[1].HashToCompare != "h1" {
		t.Errorf("Expected stored hash to be compared, got %q", f.fetcher.calls[1].HashToCompare)
	}
	if result.Delivered != 1 {
		t.Fatalf("Expected 1 delivery, got %d", result.Delivered)
	}

	items, _ := f.outbox.Items("news")
	if len(items) != 1 {
		t.Fatalf("Expected 1 outbox item, got %d", len(items))
	}
	if items[0].GUID != "3" || items[0].Title != "Post 3" {
		t.Errorf("Unexpected outbox item: %+v", items[0])
	}
	if items[0].Content != "Post 3 https://example.com/3" {
		t.Errorf("Expected rendered payload content, got %q", items[0].Content)
	}

	// same body again delivers nothing new
	f.fetcher.queue(success(rss("3", "1", "2"), "h3"), nil)
	result, err = f.processor.Process(ctx, cfg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Delivered != 0 {
		t.Errorf("Expected no repeated delivery, got %d", result.Delivered)
	}
}

func TestProcessSkips(t *testing.T) {
	tests := []struct {
		name   string
		result *fetch.Result
		err    error
		reason string
	}{
		{"matched hash", &fetch.Result{Status: fetch.StatusMatchedHash}, nil, string(fetch.StatusMatchedHash)},
		{"pending", &fetch.Result{Status: fetch.StatusPending}, nil, string(fetch.StatusPending)},
		{"bad status", nil, &fetch.BadStatusCodeError{URL: "u", StatusCode: 404}, "feed u returned bad status code 404"},
		{"invalid feed", success("not a feed at all", "h"), nil, "invalid feed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.fetcher.queue(tt.result, tt.err)

			result, err := f.processor.Process(context.Background(), mustConfig(t, basicConfig))
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if result.Status != ProcessStatusSkipped {
				t.Errorf("Expected skipped, got %s", result.Status)
			}
			if result.Reason != tt.reason {
				t.Errorf("Expected reason %q, got %q", tt.reason, result.Reason)
			}
			if hash, _ := f.hashes.Get(context.Background(), "news"); hash != "" {
				t.Errorf("Expected no hash saved, got %q", hash)
			}
		})
	}
}

func TestProcessReturnsUnexpectedFetchErrors(t *testing.T) {
	f := newFixture()
	f.fetcher.queue(nil, context.DeadlineExceeded)

	if _, err := f.processor.Process(context.Background(), mustConfig(t, basicConfig)); err == nil {
		t.Error("Expected error for unexpected fetch failure")
	}
}

func TestProcessAppliesDeliveryFilters(t *testing.T) {
	f := newFixture()
	cfg := mustConfig(t, `
url: "https://example.com/feed.xml"
deliveries:
  - name: "only-three"
    filters:
      type: LOGICAL
      op: AND
      children:
        - type: RELATIONAL
          op: EQ
          left: {type: ARTICLE, value: title}
          right: {type: STRING, value: "Post 3"}
    message:
      content: "{{title}}"
  - name: "all"
    message:
      content: "{{title}}"
`)
	ctx := context.Background()

	f.fetcher.queue(success(rss("1"), "h1"), nil)
	f.fetcher.queue(success(rss("3", "4", "1"), "h2"), nil)
	_, _ = f.processor.Process(ctx, cfg)

	result, err := f.processor.Process(ctx, cfg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Delivered != 3 {
		t.Errorf("Expected 3 deliveries, got %d", result.Delivered)
	}
	if result.Filtered != 1 {
		t.Errorf("Expected 1 filtered article, got %d", result.Filtered)
	}
}

func TestProcessForumDelivery(t *testing.T) {
	f := newFixture()
	cfg := mustConfig(t, `
url: "https://example.com/feed.xml"
deliveries:
  - name: "forum"
    message:
      content: "{{title}}"
    forum:
      thread_name: "Thread {{title}}"
      tags:
        - id: "t1"
`)
	var got []delivery.Message
	f.processor.deliverer = deliverFunc(func(ctx context.Context, msg delivery.Message) error {
		got = append(got, msg)
		return nil
	})
	ctx := context.Background()

	f.fetcher.queue(success(rss("1"), "h1"), nil)
	f.fetcher.queue(success(rss("2", "1"), "h2"), nil)
	_, _ = f.processor.Process(ctx, cfg)
	if _, err := f.processor.Process(ctx, cfg); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(got))
	}
	body := got[0].ThreadBody
	if body == nil {
		t.Fatal("Expected a forum thread body")
	}
	if body["name"] != "Thread Post 2" {
		t.Errorf("Expected thread name 'Thread Post 2', got %v", body["name"])
	}
	if tags, _ := body["applied_tags"].([]string); len(tags) != 1 || tags[0] != "t1" {
		t.Errorf("Expected applied tags [t1], got %v", body["applied_tags"])
	}
	if len(got[0].Payloads) != 0 {
		t.Errorf("Expected first payload to move into the thread body, got %d left", len(got[0].Payloads))
	}
}

type deliverFunc func(ctx context.Context, msg delivery.Message) error

func (f deliverFunc) Deliver(ctx context.Context, msg delivery.Message) error { return f(ctx, msg) }

func TestPreviewDoesNotPersist(t *testing.T) {
	f := newFixture()
	cfg := mustConfig(t, basicConfig)
	ctx := context.Background()

	f.fetcher.queue(success(rss("1"), "h1"), nil)
	_, _ = f.processor.Process(ctx, cfg)

	f.fetcher.queue(success(rss("2", "1"), "h2"), nil)
	hash := database.HashValue("2")

	result, err := f.processor.Preview(ctx, cfg, hash)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Verdict.Outcome != preview.OutcomeWouldDeliver {
		t.Errorf("Expected %s, got %s (%s)", preview.OutcomeWouldDeliver, result.Verdict.Outcome, result.Verdict.Reason)
	}
	if len(result.Deliveries) != 1 || len(result.Deliveries[0].Payloads) != 1 {
		t.Fatalf("Expected one delivery with one payload, got %+v", result.Deliveries)
	}
	if result.Deliveries[0].Payloads[0].Content != "Post 2 https://example.com/2" {
		t.Errorf("Unexpected payload content %q", result.Deliveries[0].Payloads[0].Content)
	}
	if len(result.Stages) == 0 {
		t.Error("Expected comparison stages to be recorded")
	}

	found, _ := f.store.FindStoredArticleIDs(ctx, "news", []string{hash})
	if len(found) != 0 {
		t.Error("Expected preview not to store the article")
	}

	// the parsed articles are cached; a second preview does not fetch
	calls := len(f.fetcher.calls)
	again, err := f.processor.Preview(ctx, cfg, hash)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(f.fetcher.calls) != calls {
		t.Errorf("Expected cached articles to be reused, got %d extra fetches", len(f.fetcher.calls)-calls)
	}
	if again.Verdict.Outcome != preview.OutcomeWouldDeliver {
		t.Errorf("Expected %s, got %s", preview.OutcomeWouldDeliver, again.Verdict.Outcome)
	}
}

func TestPreviewOutcomes(t *testing.T) {
	f := newFixture()
	cfg := mustConfig(t, basicConfig)
	ctx := context.Background()

	f.fetcher.queue(success(rss("1"), "h1"), nil)

	first, err := f.processor.Preview(ctx, cfg, database.HashValue("1"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if first.Verdict.Outcome != preview.OutcomeFirstRunBaseline {
		t.Errorf("Expected %s, got %s", preview.OutcomeFirstRunBaseline, first.Verdict.Outcome)
	}

	missing, err := f.processor.Preview(ctx, cfg, "nope")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if missing.Verdict.Outcome != preview.OutcomeArticleNotInFeed {
		t.Errorf("Expected %s, got %s", preview.OutcomeArticleNotInFeed, missing.Verdict.Outcome)
	}
}

func TestPreviewFeedUnavailable(t *testing.T) {
	f := newFixture()
	f.fetcher.queue(nil, &fetch.TimeoutError{URL: "u"})

	result, err := f.processor.Preview(context.Background(), mustConfig(t, basicConfig), "x")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Verdict.Outcome != preview.OutcomeFeedError {
		t.Errorf("Expected %s, got %s", preview.OutcomeFeedError, result.Verdict.Outcome)
	}

	f.fetcher.queue(&fetch.Result{Status: fetch.StatusPending}, nil)
	result, _ = f.processor.Preview(context.Background(), mustConfig(t, basicConfig), "x")
	if result.Verdict.Outcome != preview.OutcomeFeedUnchanged {
		t.Errorf("Expected %s, got %s", preview.OutcomeFeedUnchanged, result.Verdict.Outcome)
	}
}

func TestClearForgetsFeed(t *testing.T) {
	f := newFixture()
	cfg := mustConfig(t, basicConfig)
	ctx := context.Background()

	f.fetcher.queue(success(rss("1"), "h1"), nil)
	_, _ = f.processor.Process(ctx, cfg)

	task := NewClearFeedTask("news", cfg, f.processor)
	if err := task.Execute(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if hasPrior, _ := f.store.HasPriorArticlesStored(ctx, "news"); hasPrior {
		t.Error("Expected stored articles to be cleared")
	}
	if hash, _ := f.hashes.Get(ctx, "news"); hash != "" {
		t.Errorf("Expected response hash to be removed, got %q", hash)
	}
}
