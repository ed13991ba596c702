package delivery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lysyi3m/feed-relay/app/formatter"
)

// Message is everything needed to post one article to one destination.
type Message struct {
	Feed          string                     `json:"feed"`
	Delivery      string                     `json:"delivery"`
	ArticleID     string                     `json:"articleId"`
	ArticleIDHash string                     `json:"articleIdHash"`
	Payloads      []formatter.Payload        `json:"payloads"`
	ThreadBody    map[string]any             `json:"threadBody,omitempty"`
	CreatedAt     time.Time                  `json:"createdAt"`
	Article       formatter.FormattedArticle `json:"-"`
}

// Deliverer hands formatted articles to a destination.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// Multi delivers to each deliverer in order and joins their errors.
type Multi []Deliverer

var _ Deliverer = Multi(nil)

func (m Multi) Deliver(ctx context.Context, msg Message) error {
	var errs []error
	for _, d := range m {
		if err := d.Deliver(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogDeliverer only logs deliveries.
type LogDeliverer struct{}

var _ Deliverer = LogDeliverer{}

func (LogDeliverer) Deliver(ctx context.Context, msg Message) error {
	slog.Info("Article delivered",
		"feed", msg.Feed,
		"delivery", msg.Delivery,
		"article", msg.ArticleID,
		"payloads", len(msg.Payloads),
		"thread", msg.ThreadBody != nil)
	return nil
}
