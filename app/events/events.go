package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultDeliverArticlesSubject = "feed.deliver-articles"
	DefaultFeedDeletedSubject     = "feed.deleted"
	DefaultQueueGroup             = "feed-relay"
)

// FeedEvent asks for a feed to be refreshed or forgotten.
type FeedEvent struct {
	Timestamp int64         `json:"timestamp"`
	Debug     bool          `json:"debug"`
	Data      FeedEventData `json:"data"`
}

type FeedEventData struct {
	Feed FeedRef `json:"feed"`
}

type FeedRef struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

var ErrMissingFeedID = errors.New("feed event has no feed id")

// ParseFeedEvent decodes and validates an event payload.
func ParseFeedEvent(data []byte) (*FeedEvent, error) {
	var event FeedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode feed event: %w", err)
	}
	if event.Data.Feed.ID == "" {
		return nil, ErrMissingFeedID
	}
	return &event, nil
}

// Age is how long ago the event was published, or zero without a timestamp.
func (e *FeedEvent) Age(now time.Time) time.Duration {
	if e.Timestamp <= 0 {
		return 0
	}
	return now.Sub(time.UnixMilli(e.Timestamp))
}
