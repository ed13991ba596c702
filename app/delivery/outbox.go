package delivery

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/feed-relay/app/feed"
)

const DefaultOutboxSize = 50

// Outbox keeps the most recent deliveries of every feed so they can be served as RSS.
type Outbox struct {
	mu      sync.RWMutex
	size    int
	entries map[string][]Item
	updated map[string]time.Time
}

var _ Deliverer = (*Outbox)(nil)

func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{
		size:    size,
		entries: make(map[string][]Item),
		updated: make(map[string]time.Time),
	}
}

func (o *Outbox) Deliver(ctx context.Context, msg Message) error {
	item := itemFromMessage(msg)

	o.mu.Lock()
	defer o.mu.Unlock()

	items := o.entries[msg.Feed]
	// one entry per article, whichever delivery produced it last
	items = slices.DeleteFunc(items, func(i Item) bool { return i.GUID == item.GUID })
	items = append([]Item{item}, items...)
	if len(items) > o.size {
		items = items[:o.size]
	}
	o.entries[msg.Feed] = items
	o.updated[msg.Feed] = msg.CreatedAt
	return nil
}

// Items returns the newest-first deliveries of feedName and when the last one happened.
func (o *Outbox) Items(feedName string) ([]Item, time.Time) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.entries[feedName]), o.updated[feedName]
}

func itemFromMessage(msg Message) Item {
	values := msg.Article.Flattened

	var content []string
	for _, p := range msg.Payloads {
		if p.Content != "" {
			content = append(content, p.Content)
		}
	}

	published := msg.CreatedAt
	for _, raw := range []string{msg.Article.Raw.PubDate, msg.Article.Raw.Date} {
		if t, err := feed.ParseDate(raw); err == nil {
			published = t
			break
		}
	}

	var categories []string
	if c := values["processed::categories"]; c != "" {
		categories = strings.Split(c, ",")
	}

	return Item{
		GUID:        msg.ArticleID,
		Title:       values["title"],
		Link:        values["link"],
		Description: values["description"],
		Content:     strings.Join(content, "\n\n"),
		PublishedAt: published,
		Author:      values["author"],
		Categories:  categories,
	}
}
