package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// ArticleParser turns feed XML into articles. Implemented inline by Parser and
// off the calling goroutine by Pool.
type ArticleParser interface {
	Parse(ctx context.Context, xml string, opts ParseOptions) (*ParseResult, error)
}

var _ ArticleParser = (*Parser)(nil)

type Parser struct {
	idResolver *IDResolver
	injector   *Injector
}

func NewParser(extractor *ContentExtractor) *Parser {
	return &Parser{
		idResolver: NewIDResolver(),
		injector:   NewInjector(extractor),
	}
}

// Parse parses xml within opts.Timeout and, when external properties are configured,
// injects external content into the resulting articles.
func (p *Parser) Parse(ctx context.Context, xml string, opts ParseOptions) (*ParseResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultParseTimeout
	}

	type outcome struct {
		result *ParseResult
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		result, err := p.Run(xml, opts)
		done <- outcome{result, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result *ParseResult
	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		result = out.result
	case <-timer.C:
		return nil, &FeedParseTimeoutError{Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.inject(ctx, result, opts)

	return result, nil
}

func (p *Parser) inject(ctx context.Context, result *ParseResult, opts ParseOptions) {
	if len(opts.ExternalProperties) == 0 || opts.Fetch == nil || len(result.Articles) == 0 {
		return
	}

	result.ExternalContentErrors = p.injector.Run(ctx, result.Articles, opts.ExternalProperties, opts.Fetch, opts.IncludeHTMLInErrors)
	for _, e := range result.ExternalContentErrors {
		slog.Debug("External content error", "article", e.ArticleID, "source_field", e.SourceField, "type", string(e.ErrorType), "message", e.Message)
	}
}

// Run parses xml synchronously without injection.
func (p *Parser) Run(xml string, opts ParseOptions) (*ParseResult, error) {
	parsed, err := gofeed.NewParser().ParseString(xml)
	if err != nil {
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return nil, &InvalidFeedError{Reason: "not a feed"}
		}
		if strings.Contains(err.Error(), "EOF") || strings.Contains(err.Error(), "XML syntax error") {
			return nil, &InvalidFeedError{Reason: err.Error()}
		}
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	result := &ParseResult{
		Feed:     Metadata{Title: strings.TrimSpace(parsed.Title)},
		Articles: make([]Article, 0, len(parsed.Items)),
	}

	if len(parsed.Items) == 0 {
		return result, nil
	}

	items := make([]*gofeed.Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item != nil {
			items = append(items, item)
		}
	}

	_, ids := p.idResolver.Run(items)
	seen := make(map[string]struct{}, len(items))

	for i, item := range items {
		article := p.normalizeItem(item, opts)
		article.Flattened["id"] = ids[i]
		article.Flattened["idHash"] = sha1Hex(ids[i])

		if _, dup := seen[article.IDHash()]; dup {
			slog.Warn("Feed has duplicate article id hash", "id", ids[i], "id_hash", article.IDHash())
		}
		seen[article.IDHash()] = struct{}{}

		result.Articles = append(result.Articles, article)
	}

	return result, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item, opts ParseOptions) Article {
	raw := map[string]any{}
	flattenFields("", itemFields(item), raw)

	flattened := stringifyFields(raw, opts.FormatOptions)

	if len(item.Categories) > 0 {
		flattened[processedCategoriesKey] = strings.Join(item.Categories, ",")
	}

	for key, value := range snapshot(flattened) {
		images, anchors := extractImagesAndAnchors(value)
		for i, image := range images {
			flattened[fmt.Sprintf("%s%s::image%d", ExtractedFieldPrefix, key, i+1)] = image
		}
		for i, anchor := range anchors {
			flattened[fmt.Sprintf("%s%s::anchor%d", ExtractedFieldPrefix, key, i+1)] = anchor
		}
	}

	applyParserRules(flattened, opts.ParserRules)

	article := Article{Flattened: flattened}
	if item.UpdatedParsed != nil {
		article.Raw.Date = item.UpdatedParsed.UTC().Format(time.RFC3339Nano)
	} else if item.PublishedParsed != nil {
		article.Raw.Date = item.PublishedParsed.UTC().Format(time.RFC3339Nano)
	}
	if item.PublishedParsed != nil {
		article.Raw.PubDate = item.PublishedParsed.UTC().Format(time.RFC3339Nano)
	}

	return article
}

func applyParserRules(flattened map[string]string, rules []ParserRule) {
	for _, rule := range rules {
		switch rule {
		case ParserRuleRedditCommentLink:
			if description, ok := flattened["description"]; ok {
				stripped := strings.Replace(description, "[link]", "", 1)
				flattened["processed::description::reddit1"] = strings.Replace(stripped, "[comments]", "", 1)
			}
		}
	}
}

func snapshot(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
