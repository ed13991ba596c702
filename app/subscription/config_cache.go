package subscription

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/filters"
	"github.com/lysyi3m/feed-relay/app/formatter"
)

type ConfigCache struct {
	feedsDir string
	cache    map[string]*Config
	mu       sync.RWMutex
}

func NewConfigCache(feedsDir string) *ConfigCache {
	return &ConfigCache{
		feedsDir: feedsDir,
		cache:    make(map[string]*Config),
	}
}

// Run loads every *.yml file of the feeds directory. A missing directory loads nothing.
func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.feedsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		feedName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(feedName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "feed", feedName, "enabled", config.Settings.Enabled, "deliveries", len(config.Deliveries))
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(feedName string) (*Config, error) {
	configFile := cc.getConfigFilePath(feedName)

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	feedConfig, err := ParseConfig(feedName, data)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[feedConfig.Name] = feedConfig

	return feedConfig, nil
}

func (cc *ConfigCache) GetConfig(feedName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	feedConfig, ok := cc.cache[feedName]
	if !ok {
		return nil, fmt.Errorf("feed config with name '%s' not found", feedName)
	}
	return feedConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return maps.Clone(cc.cache)
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabled := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabled[k] = v
		}
	}
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) getConfigFilePath(feedName string) string {
	return filepath.Join(cc.feedsDir, feedName+".yml")
}

// ParseConfig decodes a feed subscription, applies defaults and validates it.
func ParseConfig(name string, data []byte) (*Config, error) {
	feedConfig := Config{
		Settings: Settings{Enabled: true},
	}
	if err := yaml.Unmarshal(data, &feedConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	feedConfig.Name = name

	if feedConfig.Settings.RefreshInterval == 0 {
		feedConfig.Settings.RefreshInterval = defaultRefreshInterval
	}
	for i := range feedConfig.Deliveries {
		if feedConfig.Deliveries[i].Name == "" {
			feedConfig.Deliveries[i].Name = fmt.Sprintf("%s-%d", defaultDeliveryName, i)
		}
	}

	if err := validateConfig(&feedConfig); err != nil {
		return nil, err
	}
	return &feedConfig, nil
}

// validateConfig checks the config and resolves its filter expressions in place.
func validateConfig(feedConfig *Config) error {
	if feedConfig.Name == "" {
		return fmt.Errorf("feed name is required")
	}
	if feedConfig.URL == "" {
		return fmt.Errorf("feed URL is required")
	}
	if u, err := url.Parse(feedConfig.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("feed URL %q is invalid", feedConfig.URL)
	}
	if feedConfig.Settings.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval must be non-negative")
	}
	if feedConfig.DateChecks.OldArticleDateDiffMs < 0 {
		return fmt.Errorf("date check threshold must be non-negative")
	}

	for i, rule := range feedConfig.ParserRules {
		if rule != feed.ParserRuleRedditCommentLink {
			return fmt.Errorf("unknown parser rule at index %d: %s", i, rule)
		}
	}

	for i, prop := range feedConfig.External {
		if prop.SourceField == "" || prop.Label == "" || prop.CSSSelector == "" {
			return fmt.Errorf("external property at index %d needs source_field, label and css_selector", i)
		}
	}

	for i := range feedConfig.Deliveries {
		if err := resolveDelivery(&feedConfig.Deliveries[i]); err != nil {
			return fmt.Errorf("delivery %q: %w", feedConfig.Deliveries[i].Name, err)
		}
	}

	return nil
}

func resolveDelivery(d *Delivery) error {
	expr, err := filters.Parse(d.RawFilters)
	if err != nil {
		return fmt.Errorf("invalid filters: %w", err)
	}
	d.Filters = expr

	if err := formatter.ValidateCustomPlaceholders(d.Format.CustomPlaceholders); err != nil {
		return err
	}

	d.Message.Mentions = make([]formatter.MentionTarget, 0, len(d.Mentions))
	for i, m := range d.Mentions {
		if m.Type != "user" && m.Type != "role" {
			return fmt.Errorf("mention at index %d has type %q, expected user or role", i, m.Type)
		}
		expr, err := filters.Parse(m.Filters)
		if err != nil {
			return fmt.Errorf("invalid filters for mention %s: %w", m.ID, err)
		}
		d.Message.Mentions = append(d.Message.Mentions, formatter.MentionTarget{ID: m.ID, Type: m.Type, Filters: expr})
	}

	if d.Forum != nil {
		d.Forum.ForumTags = make([]formatter.ForumTag, 0, len(d.Forum.Tags))
		for _, tag := range d.Forum.Tags {
			expr, err := filters.Parse(tag.Filters)
			if err != nil {
				return fmt.Errorf("invalid filters for forum tag %s: %w", tag.ID, err)
			}
			d.Forum.ForumTags = append(d.Forum.ForumTags, formatter.ForumTag{ID: tag.ID, Filters: expr})
		}
	}

	return nil
}
