package api

import (
	"context"
	"time"

	"github.com/lysyi3m/feed-relay/app/delivery"
	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/formatter"
	"github.com/lysyi3m/feed-relay/app/subscription"
	"github.com/lysyi3m/feed-relay/app/tasks"
)

type GeneratorInterface interface {
	Run(ch delivery.Channel, items []delivery.Item) (string, error)
}

var _ GeneratorInterface = (*delivery.Generator)(nil)

type OutboxInterface interface {
	Items(feedName string) ([]delivery.Item, time.Time)
}

var _ OutboxInterface = (*delivery.Outbox)(nil)

type PreviewerInterface interface {
	Preview(ctx context.Context, cfg *subscription.Config, articleIDHash string) (*tasks.PreviewResult, error)
}

var _ PreviewerInterface = (*tasks.Processor)(nil)

// SchedulerInterface is the part of the scheduler the API drives.
type SchedulerInterface interface {
	TriggerFeed(feedName string) error
	Health() map[string]any
}

var _ SchedulerInterface = (*tasks.Scheduler)(nil)

type Handler struct {
	configCache *subscription.ConfigCache
	outbox      OutboxInterface
	generator   GeneratorInterface
	previewer   PreviewerInterface
	scheduler   SchedulerInterface
	baseURL     string
}

type ValidateFiltersRequest struct {
	Expression any `json:"expression"`
}

type ValidateFiltersResponse struct {
	Errors []string `json:"errors"`
}

type PreviewRequest struct {
	Feed          string `json:"feed" binding:"required"`
	ArticleIDHash string `json:"articleIdHash" binding:"required"`
}

type FormatRequest struct {
	Article         feed.Article              `json:"article"`
	FormatOptions   formatter.FormatOptions   `json:"formatOptions"`
	DeliveryOptions formatter.DeliveryOptions `json:"deliveryOptions"`
}

type FormatResponse struct {
	Status                    string              `json:"status"`
	Messages                  []formatter.Payload `json:"messages"`
	CustomPlaceholderPreviews [][]string          `json:"customPlaceholderPreviews,omitempty"`
}

const formatStatusSuccess = "SUCCESS"
