package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// FetchFunc retrieves an external page. A nil Body signals failure.
type FetchFunc func(ctx context.Context, url string) ExternalResponse

// Injector augments articles with content scraped from pages they link to.
type Injector struct {
	extractor *ContentExtractor
}

func NewInjector(extractor *ContentExtractor) *Injector {
	if extractor == nil {
		extractor = NewContentExtractor()
	}
	return &Injector{extractor: extractor}
}

type pageEntry struct {
	doc     *goquery.Document
	rawHTML string
	failure *ExternalContentError
}

// Run mutates each article's Flattened map in place and returns every non-fatal error.
// Articles are processed injectionBatchSize at a time.
func (in *Injector) Run(ctx context.Context, articles []Article, props []ExternalProperty, fetch FetchFunc, includeHTML bool) []ExternalContentError {
	if len(props) == 0 || fetch == nil {
		return nil
	}

	var all []ExternalContentError

	for start := 0; start < len(articles); start += injectionBatchSize {
		end := min(start+injectionBatchSize, len(articles))
		batchErrors := make([][]ExternalContentError, end-start)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				batchErrors[idx-start] = in.injectArticle(ctx, articles[idx], props, fetch, includeHTML)
			}(i)
		}
		wg.Wait()

		for _, errs := range batchErrors {
			all = append(all, errs...)
		}
	}

	return all
}

func (in *Injector) injectArticle(ctx context.Context, article Article, props []ExternalProperty, fetch FetchFunc, includeHTML bool) []ExternalContentError {
	var errs []ExternalContentError
	pages := map[string]*pageEntry{}
	record := article.Flattened
	articleID := article.ID()

	for _, prop := range props {
		sourceURL := record[prop.SourceField]
		if sourceURL == "" {
			continue
		}

		page, cached := pages[prop.SourceField]
		if cached && page.failure != nil {
			failure := *page.failure
			failure.Label = prop.Label
			failure.CSSSelector = prop.CSSSelector
			errs = append(errs, failure)
			continue
		}

		if !cached {
			page = in.loadPage(ctx, articleID, sourceURL, prop, fetch)
			pages[prop.SourceField] = page
			if page.failure != nil {
				failure := *page.failure
				failure.Label = prop.Label
				failure.CSSSelector = prop.CSSSelector
				errs = append(errs, failure)
				continue
			}
		}

		if prop.Readability {
			readable, err := in.extractor.Run(page.rawHTML, sourceURL)
			if err != nil {
				slog.Debug("Failed to extract readable content", "url", sourceURL, "error", err)
			} else {
				record[fmt.Sprintf("%s%s::%s::readable", ExternalFieldPrefix, prop.SourceField, prop.Label)] = readable
			}
			if prop.CSSSelector == "" {
				continue
			}
		}

		if err := in.applySelector(page, prop, record); err != nil {
			err.ArticleID = articleID
			if err.ErrorType == ErrorTypeNoSelectorMatch && includeHTML && page.rawHTML != "" {
				err.PageHTML = page.rawHTML
				if len(page.rawHTML) > maxErrorHTMLSize {
					err.PageHTML = page.rawHTML[:maxErrorHTMLSize]
					err.PageHTMLTruncated = true
				}
			}
			errs = append(errs, *err)
		}
	}

	return errs
}

func (in *Injector) loadPage(ctx context.Context, articleID, sourceURL string, prop ExternalProperty, fetch FetchFunc) *pageEntry {
	res := fetch(ctx, sourceURL)
	if res.Body == nil {
		slog.Error("Failed to fetch article injection", "source_field", prop.SourceField, "url", sourceURL)
		return &pageEntry{failure: &ExternalContentError{
			ArticleID:   articleID,
			SourceField: prop.SourceField,
			ErrorType:   ErrorTypeFetchFailed,
			StatusCode:  res.StatusCode,
		}}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(*res.Body))
	if err != nil {
		return &pageEntry{failure: &ExternalContentError{
			ArticleID:   articleID,
			SourceField: prop.SourceField,
			ErrorType:   ErrorTypeHTMLParseFailed,
			Message:     err.Error(),
		}}
	}

	doc.Find("script").Remove()
	rawHTML, err := doc.Html()
	if err != nil {
		return &pageEntry{failure: &ExternalContentError{
			ArticleID:   articleID,
			SourceField: prop.SourceField,
			ErrorType:   ErrorTypeHTMLParseFailed,
			Message:     err.Error(),
		}}
	}

	return &pageEntry{doc: doc, rawHTML: rawHTML}
}

func (in *Injector) applySelector(page *pageEntry, prop ExternalProperty, record map[string]string) *ExternalContentError {
	selector, err := cascadia.Compile(prop.CSSSelector)
	if err != nil {
		return &ExternalContentError{
			SourceField: prop.SourceField,
			Label:       prop.Label,
			CSSSelector: prop.CSSSelector,
			ErrorType:   ErrorTypeInvalidCSSSelector,
			Message:     err.Error(),
		}
	}

	matches := page.doc.FindMatcher(selector)
	if matches.Length() == 0 {
		return &ExternalContentError{
			SourceField: prop.SourceField,
			Label:       prop.Label,
			CSSSelector: prop.CSSSelector,
			ErrorType:   ErrorTypeNoSelectorMatch,
			Message:     fmt.Sprintf("CSS selector %q matched 0 elements", prop.CSSSelector),
		}
	}

	matches.Slice(0, min(matches.Length(), maxSelectorMatches)).Each(func(index int, s *goquery.Selection) {
		outer, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}

		key := fmt.Sprintf("%s%s::%s%d", ExternalFieldPrefix, prop.SourceField, prop.Label, index)
		record[key] = outer

		for _, attr := range s.Nodes[0].Attr {
			if attr.Val != "" {
				record[key+"::attr::"+attr.Key] = attr.Val
			}
		}

		images, anchors := extractFromSelection(s)
		for i, image := range images {
			record[fmt.Sprintf("%s::image%d", key, i)] = image
		}
		for i, anchor := range anchors {
			record[fmt.Sprintf("%s::anchor%d", key, i)] = anchor
		}
	})

	return nil
}
