package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/feed-relay/app/subscription"
)

type ProcessFeedTask struct {
	Task
	FeedConfig *subscription.Config
	processor  *Processor
}

func NewProcessFeedTask(feedConfig *subscription.Config, processor *Processor) *ProcessFeedTask {
	return &ProcessFeedTask{
		Task:       NewTask(TaskTypeProcessFeed, feedConfig.Name),
		FeedConfig: feedConfig,
		processor:  processor,
	}
}

func (t *ProcessFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	result, err := t.processor.Process(ctx, t.FeedConfig)
	if err != nil {
		return fmt.Errorf("failed to process feed: %w", err)
	}

	if result.Status == ProcessStatusSkipped {
		slog.Debug("Task skipped", "type", "ProcessFeed", "feed", t.FeedName, "reason", result.Reason)
		return nil
	}

	slog.Info("Task completed",
		"type", "ProcessFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"total", result.Articles,
		"new", len(result.Comparison.ArticlesToDeliver),
		"blocked", len(result.Comparison.ArticlesBlocked),
		"passed", len(result.Comparison.ArticlesPassed),
		"delivered", result.Delivered,
		"filtered", result.Filtered,
		"failed", result.Failed)

	return nil
}
