package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/feed-relay/app/subscription"
)

// ClearFeedTask forgets everything stored for a feed, so its next refresh is a first run.
type ClearFeedTask struct {
	Task
	FeedConfig *subscription.Config
	processor  *Processor
}

// NewClearFeedTask accepts a nil feedConfig for feeds whose configuration is gone.
func NewClearFeedTask(feedName string, feedConfig *subscription.Config, processor *Processor) *ClearFeedTask {
	return &ClearFeedTask{
		Task:       NewTask(TaskTypeClearFeed, feedName),
		FeedConfig: feedConfig,
		processor:  processor,
	}
}

func (t *ClearFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.processor.Clear(ctx, t.FeedName, t.FeedConfig); err != nil {
		return fmt.Errorf("failed to clear feed: %w", err)
	}

	slog.Info("Task completed",
		"type", "ClearFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration())

	return nil
}

// Clear deletes the stored fields and response hash of a feed and, when its
// configuration is known, its cached articles.
func (p *Processor) Clear(ctx context.Context, feedName string, cfg *subscription.Config) error {
	if err := p.store.Clear(ctx, feedName); err != nil {
		return fmt.Errorf("failed to clear article fields: %w", err)
	}
	if err := p.hashes.Remove(ctx, feedName); err != nil {
		return fmt.Errorf("failed to remove response hash: %w", err)
	}
	if cfg != nil {
		if err := p.articles.Invalidate(ctx, keyInput(cfg)); err != nil {
			return fmt.Errorf("failed to invalidate cached articles: %w", err)
		}
	}
	return nil
}
