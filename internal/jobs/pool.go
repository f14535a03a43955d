package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrShutdownTimeout is returned when in-flight jobs outlive the grace period.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// ErrPoolStarted is returned by a second Start.
var ErrPoolStarted = errors.New("worker pool already started")

// Pool runs a fixed set of workers.
type Pool struct {
	cancel  context.CancelFunc
	done    chan struct{}
	logger  *slog.Logger
	err     error
	workers []*Worker
	grace   time.Duration
	mu      sync.Mutex
}

// PoolOptions configures a pool.
type PoolOptions struct {
	Logger        *slog.Logger
	Worker        WorkerOptions
	Workers       int
	ShutdownGrace time.Duration
}

// NewPool creates a pool of opts.Workers workers sharing store and proc.
func NewPool(store Store, proc Processor, opts PoolOptions) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Worker.Logger == nil {
		opts.Worker.Logger = opts.Logger
	}

	p := &Pool{
		grace:  opts.ShutdownGrace,
		logger: opts.Logger.With("component", "pool"),
	}
	for i := range opts.Workers {
		p.workers = append(p.workers, NewWorker(i+1, store, proc, opts.Worker))
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches every worker. Workers stop polling when ctx is done or
// Shutdown is called.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return ErrPoolStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error { return w.Run(gctx) })
	}
	go func() {
		err := g.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()

	p.logger.Info("Worker pool started", "workers", len(p.workers))
	return nil
}

// Shutdown stops polling and waits up to the grace period for in-flight jobs.
// Jobs still running afterwards are left to the stale-job sweeper.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}

	cancel()
	timer := time.NewTimer(p.grace)
	defer timer.Stop()

	select {
	case <-done:
		p.mu.Lock()
		defer p.mu.Unlock()
		p.logger.Info("Worker pool stopped")
		return p.err
	case <-timer.C:
	case <-ctx.Done():
	}
	p.logger.Warn("Worker pool shutdown grace period expired", "grace", p.grace)
	return ErrShutdownTimeout
}
