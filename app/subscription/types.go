package subscription

import (
	"github.com/lysyi3m/feed-relay/app/comparison"
	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/filters"
	"github.com/lysyi3m/feed-relay/app/formatter"
)

const (
	defaultRefreshInterval = 600
	defaultDeliveryName    = "default"
)

// Config is one feed subscription loaded from <feeds-dir>/<name>.yml.
type Config struct {
	Name string `yaml:"-"`
	URL  string `yaml:"url"`

	Settings    Settings                `yaml:"settings"`
	Format      feed.FormatOptions      `yaml:"format"`
	ParserRules []feed.ParserRule       `yaml:"parser_rules"`
	External    []feed.ExternalProperty `yaml:"external_properties"`
	Comparisons Comparisons             `yaml:"comparisons"`
	DateChecks  comparison.DateChecks   `yaml:"date_checks"`
	Deliveries  []Delivery              `yaml:"deliveries"`
}

type Settings struct {
	Enabled         bool   `yaml:"enabled"`
	RefreshInterval int    `yaml:"refresh_interval"`
	LookupKey       string `yaml:"lookup_key"`
	IncludeHTML     bool   `yaml:"include_html_in_errors"`
}

type Comparisons struct {
	Blocking []string `yaml:"blocking"`
	Passing  []string `yaml:"passing"`
}

// FilteredTarget is a mention or forum tag as written in YAML, with its filter
// expression still untyped.
type FilteredTarget struct {
	ID      string         `yaml:"id"`
	Type    string         `yaml:"type"`
	Filters map[string]any `yaml:"filters"`
}

// Delivery is one destination of a feed's articles.
type Delivery struct {
	Name       string                    `yaml:"name"`
	RawFilters map[string]any            `yaml:"filters"`
	Format     formatter.FormatOptions   `yaml:"format"`
	Message    formatter.DeliveryOptions `yaml:"message"`
	Mentions   []FilteredTarget          `yaml:"mentions"`
	Webhook    *formatter.WebhookDetails `yaml:"webhook"`
	Forum      *Forum                    `yaml:"forum"`

	// Filters is RawFilters after validation. Nil passes every article.
	Filters filters.Expression `yaml:"-"`
}

type Forum struct {
	ThreadName string           `yaml:"thread_name"`
	Tags       []FilteredTarget `yaml:"tags"`
	IsWebhook  bool             `yaml:"is_webhook"`

	ForumTags []formatter.ForumTag `yaml:"-"`
}

// ComparisonConfig returns the comparison engine settings of the feed.
func (c *Config) ComparisonConfig() comparison.Config {
	return comparison.Config{
		BlockingComparisons: c.Comparisons.Blocking,
		PassingComparisons:  c.Comparisons.Passing,
		DateChecks:          c.DateChecks,
	}
}
