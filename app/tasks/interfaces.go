package tasks

import (
	"context"

	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/fetch"
)

// TaskSchedulerInterface runs feed tasks on a worker pool.
//
//	scheduler := NewScheduler(configCache, processor, SchedulerOptions{...})
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.TriggerFeed("news")
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	TriggerFeed(feedName string) error
	ClearFeed(feedName string) error
}

// FeedFetcher is the part of the fetch client the processor needs.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, url string, opts fetch.Options) (*fetch.Result, error)
	FetchExternal(ctx context.Context, url string) feed.ExternalResponse
}

var _ FeedFetcher = (*fetch.Client)(nil)
