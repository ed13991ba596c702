package feed

import (
	"time"
)

const (
	FieldDelimiter         = "__"
	ExternalFieldPrefix    = "external::"
	ExtractedFieldPrefix   = "extracted::"
	DefaultParseTimeout    = 10 * time.Second
	maxSelectorMatches     = 10
	maxErrorHTMLSize       = 50 * 1024
	injectionBatchSize     = 5
	processedCategoriesKey = "processed::categories"
)

// Article is a feed entry reduced to a flat map of string fields.
// Flattened always carries "id" and "idHash".
type Article struct {
	Flattened map[string]string `json:"flattened"`
	Raw       RawDates          `json:"raw"`
}

type RawDates struct {
	Date    string `json:"date,omitempty"`
	PubDate string `json:"pubdate,omitempty"`
}

func (a Article) ID() string {
	return a.Flattened["id"]
}

func (a Article) IDHash() string {
	return a.Flattened["idHash"]
}

type FormatOptions struct {
	DateFormat   string `json:"dateFormat,omitempty" yaml:"date_format"`
	DateTimezone string `json:"dateTimezone,omitempty" yaml:"date_timezone"`
	DateLocale   string `json:"dateLocale,omitempty" yaml:"date_locale"`
}

func (o FormatOptions) IsZero() bool {
	return o == FormatOptions{}
}

type ParserRule string

const (
	ParserRuleRedditCommentLink ParserRule = "reddit-comment-link"
)

type ExternalProperty struct {
	SourceField string `json:"sourceField" yaml:"source_field"`
	Label       string `json:"label" yaml:"label"`
	CSSSelector string `json:"cssSelector" yaml:"css_selector"`
	Readability bool   `json:"readability,omitempty" yaml:"readability"`
}

type ExternalContentErrorType string

const (
	ErrorTypeFetchFailed        ExternalContentErrorType = "FETCH_FAILED"
	ErrorTypeHTMLParseFailed    ExternalContentErrorType = "HTML_PARSE_FAILED"
	ErrorTypeInvalidCSSSelector ExternalContentErrorType = "INVALID_CSS_SELECTOR"
	ErrorTypeNoSelectorMatch    ExternalContentErrorType = "NO_SELECTOR_MATCH"
)

// ExternalContentError is a non-fatal diagnostic produced while injecting external content.
type ExternalContentError struct {
	ArticleID         string                   `json:"articleId"`
	SourceField       string                   `json:"sourceField"`
	Label             string                   `json:"label"`
	CSSSelector       string                   `json:"cssSelector"`
	ErrorType         ExternalContentErrorType `json:"errorType"`
	Message           string                   `json:"message,omitempty"`
	StatusCode        *int                     `json:"statusCode,omitempty"`
	PageHTML          string                   `json:"pageHtml,omitempty"`
	PageHTMLTruncated bool                     `json:"pageHtmlTruncated,omitempty"`
}

// ExternalResponse is what a FetchFunc returns. A nil Body means the fetch failed.
type ExternalResponse struct {
	Body       *string
	StatusCode *int
}

type ParseOptions struct {
	Timeout             time.Duration
	FormatOptions       FormatOptions
	ParserRules         []ParserRule
	ExternalProperties  []ExternalProperty
	Fetch               FetchFunc
	IncludeHTMLInErrors bool
}

type Metadata struct {
	Title string `json:"title,omitempty"`
}

type ParseResult struct {
	Articles              []Article              `json:"articles"`
	Feed                  Metadata               `json:"feed"`
	ExternalContentErrors []ExternalContentError `json:"externalContentErrors,omitempty"`
}
