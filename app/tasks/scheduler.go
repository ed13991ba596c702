package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/feed-relay/app/metrics"
	"github.com/lysyi3m/feed-relay/app/subscription"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	defaultQueueSize = 300
	taskTimeout      = 5 * time.Minute
	maxRetryDelay    = 30 * time.Second
)

type SchedulerOptions struct {
	Interval    time.Duration
	WorkerCount int
}

type Scheduler struct {
	configCache *subscription.ConfigCache
	processor   *Processor
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu        sync.Mutex
	nextFetch map[string]time.Time
	stats     Stats
	now       func() time.Time
}

type Stats struct {
	TotalProcessed int64 `json:"total_processed"`
	TotalErrors    int64 `json:"total_errors"`
	QueueSize      int   `json:"queue_size"`
	Workers        int   `json:"workers"`
}

func NewScheduler(configCache *subscription.ConfigCache, processor *Processor, opts SchedulerOptions) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}

	return &Scheduler{
		configCache: configCache,
		processor:   processor,
		interval:    opts.Interval,
		workerCount: opts.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, defaultQueueSize),
		nextFetch:   make(map[string]time.Time),
		now:         time.Now,
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// TriggerFeed queues a refresh of a configured feed regardless of its refresh interval.
func (s *Scheduler) TriggerFeed(feedName string) error {
	feedConfig, err := s.configCache.GetConfig(feedName)
	if err != nil {
		return err
	}
	if !feedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, ignoring trigger", "feed", feedName)
		return nil
	}

	if err := s.EnqueueTask(NewProcessFeedTask(feedConfig, s.processor)); err != nil {
		return fmt.Errorf("failed to enqueue ProcessFeedTask: %w", err)
	}
	s.markScheduled(feedConfig)
	return nil
}

// ClearFeed queues removal of everything stored for feedName.
func (s *Scheduler) ClearFeed(feedName string) error {
	feedConfig, _ := s.configCache.GetConfig(feedName)
	if err := s.EnqueueTask(NewClearFeedTask(feedName, feedConfig, s.processor)); err != nil {
		return fmt.Errorf("failed to enqueue ClearFeedTask: %w", err)
	}
	return nil
}

func (s *Scheduler) enqueueTasks() {
	feedConfigs := s.configCache.GetEnabledConfigs()
	if len(feedConfigs) == 0 {
		slog.Debug("No enabled feed configurations found")
		return
	}

	slog.Debug("Processing enabled feed configurations for task scheduling", "count", len(feedConfigs))

	for _, feedConfig := range feedConfigs {
		if !s.isDue(feedConfig.Name) {
			continue
		}

		if err := s.EnqueueTask(NewProcessFeedTask(feedConfig, s.processor)); err != nil {
			slog.Warn("Failed to enqueue ProcessFeedTask", "feed", feedConfig.Name, "error", err)
			continue
		}
		s.markScheduled(feedConfig)
	}
}

func (s *Scheduler) isDue(feedName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.nextFetch[feedName]
	if ok && next.After(s.now()) {
		slog.Debug("Feed not due for refresh yet", "feed", feedName, "next_fetch_at", next)
		return false
	}
	return true
}

func (s *Scheduler) markScheduled(feedConfig *subscription.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFetch[feedConfig.Name] = s.now().Add(time.Duration(feedConfig.Settings.RefreshInterval) * time.Second)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	s.recordResult(err)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.TaskDuration.WithLabelValues(string(task.GetType()), status).Observe(task.GetDuration().Seconds())

	if err == nil {
		return
	}

	retries, maxRetries := task.Retries()
	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", retries, "error", err)

	if !task.Retry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", retries, "max_retries", maxRetries, "last_error", err)
		return
	}

	retries++
	retryDelay := retryDelayFor(retries)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedName(), "retry_count", retries, "max_retries", maxRetries, "delay", retryDelay.String())

	go func() {
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-time.After(retryDelay):
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", retries, "error", retryErr)
			}
		}
	}()
}

func (s *Scheduler) recordResult(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalProcessed++
	if err != nil {
		s.stats.TotalErrors++
	}
}

func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.QueueSize = len(s.taskQueue)
	stats.Workers = s.workerCount
	return stats
}

// Health reports degraded above a 10% task error rate and unhealthy above 50%.
func (s *Scheduler) Health() map[string]any {
	stats := s.GetStats()

	errorRate := 0.0
	if stats.TotalProcessed > 0 {
		errorRate = float64(stats.TotalErrors) / float64(stats.TotalProcessed)
	}

	status := "healthy"
	switch {
	case errorRate > 0.5:
		status = "unhealthy"
	case errorRate > 0.1:
		status = "degraded"
	}

	return map[string]any{
		"status":          status,
		"workers":         stats.Workers,
		"queue_size":      stats.QueueSize,
		"total_processed": stats.TotalProcessed,
		"total_errors":    stats.TotalErrors,
		"error_rate":      errorRate,
	}
}

// retryDelayFor doubles from one second per attempt, capped at 30s.
func retryDelayFor(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	if retryCount > 6 {
		return maxRetryDelay
	}
	return min(time.Duration(1<<uint(retryCount-1))*time.Second, maxRetryDelay)
}
