// Package workerpool implements the Worker Pool (spec.md §4.4): a
// fixed-capacity set of sandboxed workers that execute compiled guest
// modules. Each worker owns its own wazero.Runtime, so guest code running
// in one worker cannot observe or corrupt state belonging to another.
package workerpool

import (
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"

	"github.com/weisyn/viewd/internal/hostbridge"
	"github.com/weisyn/viewd/pkg/log"
)

// DefaultCapacity is the worker count used when Config.Capacity is zero.
const DefaultCapacity = 10

// Config configures the pool.
type Config struct {
	// Capacity is the fixed number of workers. Defaults to DefaultCapacity.
	Capacity int
	// DefaultTimeout bounds every job that doesn't specify its own
	// deadline via the submitted context.
	DefaultTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 5 * time.Second
	}
	return c
}

// Pool is the fixed-capacity sandbox pool. Jobs are dispatched to whichever
// worker is free; free workers sit in one buffered channel sized to
// capacity and there is no separate overflow queue, so Submit blocks
// (subject to ctx) on that channel until a worker is available.
type Pool struct {
	cfg     Config
	logger  log.Logger
	workers []*worker
	free    chan *worker
}

// New builds and starts a Pool of cfg.Capacity workers, each with its own
// wazero.Runtime and the full host bridge registered. Every worker's
// runtime shares compCache with the module cache's compile-only runtime
// (see internal/modcache), so a module compiled once for caching purposes
// costs no repeat codegen the first time any worker instantiates it.
func New(cfg Config, bridge *hostbridge.Bridge, compCache wazero.CompilationCache, logger log.Logger) (*Pool, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.NewNop()
	}
	if compCache == nil {
		compCache = wazero.NewCompilationCache()
	}

	p := &Pool{
		cfg:    cfg,
		logger: logger,
		free:   make(chan *worker, cfg.Capacity),
	}

	for i := 0; i < cfg.Capacity; i++ {
		w, err := newWorker(i, logger, bridge, compCache)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("workerpool: start worker %d: %w", i, err)
		}
		p.workers = append(p.workers, w)
		p.free <- w
	}

	return p, nil
}

// Submit acquires a free worker, runs job on it, and returns the worker to
// the pool. It blocks until a worker is free or ctx is done.
func (p *Pool) Submit(ctx context.Context, job Job) (Result, error) {
	if job.Timeout == 0 {
		job.Timeout = p.cfg.DefaultTimeout
	}

	var w *worker
	select {
	case w = <-p.free:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	// w is pooled back as soon as Submit returns, even if that's because
	// ctx was cancelled while the job is still running: the worker's jobs
	// channel is unbuffered and served by a single goroutine, so a
	// subsequent Submit simply blocks on the send until this job finishes
	// rather than double-booking it.
	defer func() { p.free <- w }()

	resultCh := make(chan Result, 1)
	select {
	case w.jobs <- jobRequest{job: job, result: resultCh}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case res := <-resultCh:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Close stops every worker and releases its runtime.
func (p *Pool) Close() {
	for _, w := range p.workers {
		w.stop()
	}
}

// Stats returns a per-worker snapshot, used to feed pool-utilization and
// replacement-count metrics.
func (p *Pool) Stats() []WorkerStats {
	out := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		out[i] = w.stats()
	}
	return out
}

// Idle reports how many workers are currently free.
func (p *Pool) Idle() int {
	return len(p.free)
}

// Capacity reports the pool's fixed worker count.
func (p *Pool) Capacity() int {
	return len(p.workers)
}
