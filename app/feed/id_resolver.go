package feed

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/mmcdole/gofeed"
)

type idCandidate struct {
	name  string
	value func(item *gofeed.Item) string
}

var idCandidates = []idCandidate{
	{"guid", func(item *gofeed.Item) string { return strings.TrimSpace(item.GUID) }},
	{"link", func(item *gofeed.Item) string { return strings.TrimSpace(item.Link) }},
	{"title+pubdate", func(item *gofeed.Item) string {
		title := strings.TrimSpace(item.Title)
		published := strings.TrimSpace(item.Published)
		if title == "" || published == "" {
			return ""
		}
		return title + published
	}},
	{"title", func(item *gofeed.Item) string { return strings.TrimSpace(item.Title) }},
}

// IDResolver picks the identity field shared by a whole set of items.
type IDResolver struct{}

func NewIDResolver() *IDResolver {
	return &IDResolver{}
}

// Run returns the chosen id type and one id per item, in item order.
// The first candidate that is present on every item and unique across the set wins,
// otherwise each item is identified by a hash of its content.
func (r *IDResolver) Run(items []*gofeed.Item) (string, []string) {
	for _, candidate := range idCandidates {
		ids := make([]string, len(items))
		seen := make(map[string]struct{}, len(items))
		ok := true

		for i, item := range items {
			id := candidate.value(item)
			if id == "" {
				ok = false
				break
			}
			if _, dup := seen[id]; dup {
				ok = false
				break
			}
			seen[id] = struct{}{}
			ids[i] = id
		}

		if ok {
			return candidate.name, ids
		}
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = contentHash(item)
	}
	return "hash", ids
}

func contentHash(item *gofeed.Item) string {
	content := strings.Join([]string{item.Title, item.Link, item.Description, item.Content, item.Published}, "|")
	return sha1Hex(content)
}

func sha1Hex(value string) string {
	sum := sha1.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}
