package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/lysyi3m/feed-relay/app/feed"
)

// DefaultArticlesTTL is how long parsed articles stay cached, in seconds.
const DefaultArticlesTTL = 60 * 5

type KeyOptions struct {
	FormatOptions           feed.FormatOptions
	ExternalFeedProperties  []feed.ExternalProperty
	RequestLookupDetailsKey string
}

type KeyInput struct {
	URL     string
	Options KeyOptions
}

// keyMaterial is the normalized form hashed into the cache key.
// Empty option groups are omitted so they hash like absent ones.
type keyMaterial struct {
	URL                    string                  `json:"url"`
	FormatOptions          *feed.FormatOptions     `json:"formatOptions,omitempty"`
	ExternalFeedProperties []feed.ExternalProperty `json:"externalFeedProperties,omitempty"`
	RequestLookupKey       string                  `json:"requestLookupKey,omitempty"`
}

// CalculateCacheKeyForArticles derives articles:<tld>:<sha1> for a feed and its parse options.
func CalculateCacheKeyForArticles(in KeyInput) string {
	material := keyMaterial{
		URL:                    in.URL,
		ExternalFeedProperties: in.Options.ExternalFeedProperties,
		RequestLookupKey:       in.Options.RequestLookupDetailsKey,
	}
	if !in.Options.FormatOptions.IsZero() {
		fo := in.Options.FormatOptions
		material.FormatOptions = &fo
	}

	// Marshalling a struct of strings and slices cannot fail.
	data, _ := json.Marshal(material)
	sum := sha1.Sum(data)

	return "articles:" + topLevelDomain(in.URL) + ":" + hex.EncodeToString(sum[:])
}

func topLevelDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	labels := strings.Split(u.Hostname(), ".")
	return labels[len(labels)-1]
}

// CachedArticles is the payload stored under an articles key.
type CachedArticles struct {
	Articles []feed.Article `json:"articles"`
	Feed     feed.Metadata  `json:"feed"`
}

// ArticlesCache keeps parsed articles keyed by feed URL and parse options.
type ArticlesCache struct {
	store Store
	ttl   int
}

func NewArticlesCache(store Store, ttlSeconds int) *ArticlesCache {
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultArticlesTTL
	}
	return &ArticlesCache{store: store, ttl: ttlSeconds}
}

func (c *ArticlesCache) ArticlesExist(ctx context.Context, in KeyInput) (bool, error) {
	return c.store.Exists(ctx, CalculateCacheKeyForArticles(in))
}

// GetArticles returns nil without error on a cache miss.
func (c *ArticlesCache) GetArticles(ctx context.Context, in KeyInput) (*CachedArticles, error) {
	value, err := c.store.Get(ctx, CalculateCacheKeyForArticles(in))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached CachedArticles
	if err := Decode(value, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (c *ArticlesCache) SetArticles(ctx context.Context, in KeyInput, articles CachedArticles) error {
	value, err := Encode(articles)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, CalculateCacheKeyForArticles(in), value, SetOptions{ExpSeconds: c.ttl})
}

// UpdateArticles replaces the cached value while keeping its expiry. It does nothing when the key is absent.
func (c *ArticlesCache) UpdateArticles(ctx context.Context, in KeyInput, articles CachedArticles) (bool, error) {
	key := CalculateCacheKeyForArticles(in)

	exists, err := c.store.Exists(ctx, key)
	if err != nil || !exists {
		return false, err
	}

	value, err := Encode(articles)
	if err != nil {
		return false, err
	}
	if err := c.store.Set(ctx, key, value, SetOptions{UseOldTTL: true}); err != nil {
		return false, fmt.Errorf("failed to update cached articles: %w", err)
	}
	return true, nil
}

func (c *ArticlesCache) Invalidate(ctx context.Context, in KeyInput) error {
	return c.store.Del(ctx, CalculateCacheKeyForArticles(in))
}

func (c *ArticlesCache) RefreshExpiration(ctx context.Context, in KeyInput) error {
	return c.store.Expire(ctx, CalculateCacheKeyForArticles(in), c.ttl)
}
