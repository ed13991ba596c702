package subscription

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lysyi3m/feed-relay/app/formatter"
)

const fullConfig = `
url: "https://example.com/feed.xml"

settings:
  refresh_interval: 1800
  lookup_key: "example"

format:
  date_format: "YYYY-MM-DD"
  date_timezone: "UTC"

comparisons:
  blocking: ["title"]
  passing: ["description"]

date_checks:
  old_article_date_diff_ms: 86400000

external_properties:
  - source_field: "link"
    label: "body"
    css_selector: "article p"

deliveries:
  - name: "main"
    filters:
      type: LOGICAL
      op: AND
      children:
        - type: RELATIONAL
          op: CONTAINS
          left: {type: ARTICLE, value: title}
          right: {type: STRING, value: go}
    format:
      strip_images: true
      custom_placeholders:
        - reference_name: "slug"
          source: "title"
          steps:
            - type: REGEX
              regex_search: "\\s+"
              replacement_string: "-"
            - type: LOWERCASE
    message:
      content: "{{title}} {{discord::mentions}}"
      split_options:
        enabled: true
        limit: 500
    mentions:
      - id: "123"
        type: role
    forum:
      thread_name: "{{title}}"
      tags:
        - id: "t1"
          filters:
            type: LOGICAL
            op: OR
            children: []
`

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCacheLoadValidConfig(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "test", fullConfig)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 feedConfig, got %d", configCache.GetConfigCount())
	}

	feedConfig, err := configCache.GetConfig("test")
	if err != nil {
		t.Fatal(err)
	}

	if feedConfig.Name != "test" {
		t.Errorf("Expected name 'test', got '%s'", feedConfig.Name)
	}
	if !feedConfig.Settings.Enabled {
		t.Error("Expected feed enabled by default")
	}
	if feedConfig.Settings.RefreshInterval != 1800 {
		t.Errorf("Expected refresh interval 1800, got %d", feedConfig.Settings.RefreshInterval)
	}
	if feedConfig.Format.DateFormat != "YYYY-MM-DD" {
		t.Errorf("Expected date format YYYY-MM-DD, got %s", feedConfig.Format.DateFormat)
	}
	if len(feedConfig.External) != 1 || feedConfig.External[0].CSSSelector != "article p" {
		t.Errorf("Expected one external property, got %+v", feedConfig.External)
	}

	cmp := feedConfig.ComparisonConfig()
	if len(cmp.BlockingComparisons) != 1 || cmp.PassingComparisons[0] != "description" {
		t.Errorf("Expected comparisons to be loaded, got %+v", cmp)
	}
	if cmp.DateChecks.OldArticleDateDiffMs != 86400000 {
		t.Errorf("Expected date threshold 86400000, got %d", cmp.DateChecks.OldArticleDateDiffMs)
	}

	if len(feedConfig.Deliveries) != 1 {
		t.Fatalf("Expected 1 delivery, got %d", len(feedConfig.Deliveries))
	}
	d := feedConfig.Deliveries[0]
	if d.Filters == nil {
		t.Error("Expected delivery filters to be resolved")
	}
	if !d.Format.StripImages || len(d.Format.CustomPlaceholders) != 1 {
		t.Errorf("Expected format options with one custom placeholder, got %+v", d.Format)
	}
	if len(d.Format.CustomPlaceholders[0].Steps) != 2 {
		t.Errorf("Expected 2 steps, got %d", len(d.Format.CustomPlaceholders[0].Steps))
	}
	if d.Message.SplitOptions == nil || d.Message.SplitOptions.Limit != 500 {
		t.Errorf("Expected split limit 500, got %+v", d.Message.SplitOptions)
	}
	if len(d.Message.Mentions) != 1 || d.Message.Mentions[0].Type != "role" {
		t.Errorf("Expected one role mention, got %+v", d.Message.Mentions)
	}
	if d.Forum == nil || len(d.Forum.ForumTags) != 1 || d.Forum.ForumTags[0].Filters == nil {
		t.Errorf("Expected one forum tag with filters, got %+v", d.Forum)
	}
}

func TestConfigCacheLoadConfigWithDefaults(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "minimal", `url: "https://example.com/feed.xml"
deliveries:
  - message:
      content: "{{title}}"
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	feedConfig, err := configCache.GetConfig("minimal")
	if err != nil {
		t.Fatal(err)
	}

	if feedConfig.Settings.RefreshInterval != defaultRefreshInterval {
		t.Errorf("Expected default refresh interval %d, got %d", defaultRefreshInterval, feedConfig.Settings.RefreshInterval)
	}
	if feedConfig.Deliveries[0].Name != "default-0" {
		t.Errorf("Expected default delivery name, got %s", feedConfig.Deliveries[0].Name)
	}
	if feedConfig.Deliveries[0].Filters != nil {
		t.Error("Expected nil filters when none configured")
	}
}

func TestConfigCacheInvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"missing url", "settings:\n  enabled: true\n", "feed URL is required"},
		{"bad url", "url: \"not a url\"\n", "is invalid"},
		{"bad parser rule", "url: \"https://e.com/f\"\nparser_rules: [\"nope\"]\n", "unknown parser rule"},
		{"bad filter", "url: \"https://e.com/f\"\ndeliveries:\n  - filters:\n      type: LOGICAL\n      op: XOR\n      children: []\n", "invalid filters"},
		{"bad regex", "url: \"https://e.com/f\"\ndeliveries:\n  - format:\n      custom_placeholders:\n        - reference_name: r\n          source: title\n          steps:\n            - regex_search: \"(\"\n", "regex"},
		{"bad mention type", "url: \"https://e.com/f\"\ndeliveries:\n  - mentions:\n      - id: \"1\"\n        type: channel\n", "expected user or role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig("feed", []byte(tt.content))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("Expected error containing %q, got %v", tt.errText, err)
			}
		})
	}
}

func TestConfigCacheRegexErrorType(t *testing.T) {
	content := "url: \"https://e.com/f\"\ndeliveries:\n  - format:\n      custom_placeholders:\n        - reference_name: r\n          source: title\n          steps:\n            - regex_search: \"(\"\n            - regex_search: \"[\"\n"
	_, err := ParseConfig("feed", []byte(content))

	if !formatter.IsCustomPlaceholderRegexError(err) {
		t.Fatalf("Expected CustomPlaceholderRegexError, got %v", err)
	}
}

func TestConfigCacheEnabledConfigs(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, "on", "url: \"https://example.com/a\"\n")
	writeConfig(t, tempDir, "off", "url: \"https://example.com/b\"\nsettings:\n  enabled: false\n")

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if got := len(configCache.GetConfigs()); got != 2 {
		t.Errorf("Expected 2 configs, got %d", got)
	}
	enabled := configCache.GetEnabledConfigs()
	if _, ok := enabled["on"]; !ok || len(enabled) != 1 {
		t.Errorf("Expected only 'on' enabled, got %v", enabled)
	}
}

func TestConfigCacheMissingDirectory(t *testing.T) {
	configCache := NewConfigCache(filepath.Join(t.TempDir(), "missing"))
	if err := configCache.Run(); err != nil {
		t.Errorf("Expected no error for missing directory, got %v", err)
	}
	if _, err := configCache.GetConfig("any"); err == nil {
		t.Error("Expected error for unknown feed")
	}
}
