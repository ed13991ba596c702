package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

// ContentExtractor reduces a full HTML page to its readable article body.
type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

func (e *ContentExtractor) Run(page string, pageURL string) (string, error) {
	if strings.TrimSpace(page) == "" {
		return "", fmt.Errorf("HTML data is empty")
	}

	parsedURL, _ := url.Parse(pageURL)

	article, err := readability.FromReader(strings.NewReader(page), parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Content == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted successfully",
		"url", pageURL,
		"title", article.Title,
		"content_length", len(article.Content))

	return article.Content, nil
}
