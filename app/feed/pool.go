package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrPoolClosed = errors.New("parser pool is closed")

type PoolOptions struct {
	MinWorkers  int
	MaxWorkers  int
	IdleTimeout time.Duration
	QueueSize   int
}

var _ ArticleParser = (*Pool)(nil)

// Pool runs feed parsing on a bounded set of worker goroutines. Workers above
// MinWorkers exit after IdleTimeout without work; jobs queue while all workers are busy.
type Pool struct {
	parser *Parser
	opts   PoolOptions
	jobs   chan *parseJob
	quit   chan struct{}

	mu      sync.Mutex
	workers int
	idle    int
	pending int
	closed  bool
	wg      sync.WaitGroup
}

type parseJob struct {
	xml  string
	opts ParseOptions
	done chan parseOutcome
}

type parseOutcome struct {
	result *ParseResult
	err    error
}

func NewPool(parser *Parser, opts PoolOptions) *Pool {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 4
	}
	if opts.MinWorkers < 0 || opts.MinWorkers > opts.MaxWorkers {
		opts.MinWorkers = 0
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = time.Minute
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}

	p := &Pool{
		parser: parser,
		opts:   opts,
		jobs:   make(chan *parseJob, opts.QueueSize),
		quit:   make(chan struct{}),
	}

	p.mu.Lock()
	for i := 0; i < opts.MinWorkers; i++ {
		p.spawnLocked()
	}
	p.mu.Unlock()

	return p
}

// Parse queues the job and waits for it. A timeout or cancelled context rejects
// only this caller; the worker finishes the job and discards the result.
func (p *Pool) Parse(ctx context.Context, xml string, opts ParseOptions) (*ParseResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultParseTimeout
	}

	job := &parseJob{xml: xml, opts: opts, done: make(chan parseOutcome, 1)}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	// pending is counted under the same lock idle workers take before evicting,
	// so a queued job always has a worker that will receive it.
	p.pending++
	if p.pending > p.idle && p.workers < p.opts.MaxWorkers {
		p.spawnLocked()
	}
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case p.jobs <- job:
	case <-p.quit:
		p.unqueue()
		return nil, ErrPoolClosed
	case <-timer.C:
		p.unqueue()
		return nil, &FeedParseTimeoutError{Timeout: timeout}
	case <-ctx.Done():
		p.unqueue()
		return nil, ctx.Err()
	}

	select {
	case out := <-job.done:
		return p.finish(ctx, out, opts)
	case <-p.quit:
		select {
		case out := <-job.done:
			return p.finish(ctx, out, opts)
		default:
			return nil, ErrPoolClosed
		}
	case <-timer.C:
		return nil, &FeedParseTimeoutError{Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) finish(ctx context.Context, out parseOutcome, opts ParseOptions) (*ParseResult, error) {
	if out.err != nil {
		return nil, out.err
	}
	p.parser.inject(ctx, out.result, opts)
	return out.result, nil
}

func (p *Pool) unqueue() {
	p.mu.Lock()
	p.pending--
	p.mu.Unlock()
}

func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.quit)
	p.mu.Unlock()

	p.wg.Wait()

	// Reject jobs still buffered once every worker has exited.
	for {
		select {
		case job := <-p.jobs:
			p.unqueue()
			job.done <- parseOutcome{err: ErrPoolClosed}
		default:
			return
		}
	}
}

func (p *Pool) spawnLocked() {
	p.workers++
	p.wg.Add(1)
	go p.worker()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	idleTimer := time.NewTimer(p.opts.IdleTimeout)
	defer idleTimer.Stop()

	for {
		p.mu.Lock()
		p.idle++
		p.mu.Unlock()

		select {
		case <-p.quit:
			p.mu.Lock()
			p.idle--
			p.workers--
			p.mu.Unlock()
			return

		case job := <-p.jobs:
			p.mu.Lock()
			p.idle--
			p.pending--
			p.mu.Unlock()

			result, err := p.parser.Run(job.xml, job.opts)
			job.done <- parseOutcome{result: result, err: err}

			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(p.opts.IdleTimeout)

		case <-idleTimer.C:
			p.mu.Lock()
			p.idle--
			if p.workers > p.opts.MinWorkers && p.pending == 0 {
				p.workers--
				p.mu.Unlock()
				slog.Debug("Parser worker evicted after idle timeout")
				return
			}
			p.mu.Unlock()
			idleTimer.Reset(p.opts.IdleTimeout)
		}
	}
}
