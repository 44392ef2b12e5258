// Package coordinator implements the View-Call Coordinator (spec.md §4.6):
// the single entry point that resolves a contract's state at its pinned
// height, obtains a compiled module, and runs the requested method in the
// worker pool, translating each failure it recognizes into one of this
// package's sentinel errors. A failed Submit and a worker error that
// matches no workerpool sentinel are returned wrapped but without a
// sentinel.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weisyn/viewd/internal/domain"
	"github.com/weisyn/viewd/internal/hostbridge"
	"github.com/weisyn/viewd/internal/metrics"
	"github.com/weisyn/viewd/internal/modcache"
	"github.com/weisyn/viewd/internal/resolver"
	"github.com/weisyn/viewd/internal/store"
	"github.com/weisyn/viewd/internal/workerpool"
	"github.com/weisyn/viewd/pkg/log"
)

// Coordinator runs view calls end to end.
type Coordinator struct {
	resolver *resolver.Resolver
	cache    *modcache.Cache
	pool     *workerpool.Pool
	logger   log.Logger
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// Config configures the Coordinator's own behavior (worker submission
// timeout); the resolver, cache, and pool are built and wired separately
// since each has its own configuration surface.
type Config struct {
	CallTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Second
	}
	return c
}

// New builds a Coordinator atop already-constructed components. m may be
// nil, in which case metrics are skipped entirely.
func New(cfg Config, res *resolver.Resolver, cache *modcache.Cache, pool *workerpool.Pool, m *metrics.Metrics, logger log.Logger) *Coordinator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.NewNop()
	}
	return &Coordinator{resolver: res, cache: cache, pool: pool, logger: logger, timeout: cfg.CallTimeout, metrics: m}
}

// Result is the outcome of a successful View call.
type Result struct {
	ReturnBytes []byte
	Logs        []string
	Height      domain.Height
}

// View executes method on contractID's currently deployed code, against
// the state visible as of the latest indexed block height, per spec.md §4.6's
// five-step algorithm exactly:
//
//  1. resolve H (latest_block_height, TTL-memoized)
//  2. resolve the code revision at H
//  3. get-or-compile the module for that revision
//  4. submit the call to the worker pool
//  5. await the result
//
// Every read inside the call — including any storage_read/iter the guest
// triggers — is pinned to the same H (resolver.RequestScope), so the call
// observes one consistent snapshot even under concurrent indexer writes.
func (c *Coordinator) View(ctx context.Context, contractID domain.ContractID, method string, argsBytes []byte) (Result, error) {
	start := time.Now()
	result, err := c.view(ctx, contractID, method, argsBytes)
	c.record(time.Since(start), err)
	return result, err
}

func (c *Coordinator) view(ctx context.Context, contractID domain.ContractID, method string, argsBytes []byte) (Result, error) {
	height, err := c.resolver.LatestHeight(ctx)
	if err != nil {
		return Result{}, wrapTransient("latest_height", err)
	}

	scope := c.resolver.NewRequestScope(height)

	codeRev, err := scope.CodeRevision(ctx, contractID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, wrapCodeNotFound(string(contractID), err)
		}
		return Result{}, wrapTransient("code_revision", err)
	}

	cacheLenBefore := c.cache.Len()
	compiled, err := c.cache.GetOrCompile(ctx, modcache.NewKey(contractID, codeRev), func(ctx context.Context) ([]byte, error) {
		return c.resolver.CodeBlob(ctx, contractID, codeRev)
	})
	if err != nil {
		return Result{}, wrapCodeCompilation(string(contractID), err)
	}
	c.recordCacheOutcome(cacheLenBefore)

	call := hostbridge.NewCall(contractID, method, argsBytes, scope)
	job := workerpool.Job{Call: call, Module: compiled, Timeout: c.timeout}

	destroyedBefore := sumDestroyed(c.pool.Stats())
	res, err := c.pool.Submit(ctx, job)
	if c.metrics != nil {
		if delta := sumDestroyed(c.pool.Stats()) - destroyedBefore; delta > 0 {
			c.metrics.WorkerReplacements.Add(float64(delta))
		}
	}
	if err != nil {
		return Result{}, fmt.Errorf("coordinator: submit: %w", err)
	}
	if res.Err != nil {
		return Result{}, c.classify(res.Err)
	}

	return Result{ReturnBytes: res.ReturnBytes, Logs: res.Logs, Height: height}, nil
}

// recordCacheOutcome compares the cache's entry count before and after a
// GetOrCompile call: a miss grows it by one, a hit leaves it unchanged.
func (c *Coordinator) recordCacheOutcome(lenBefore int) {
	if c.metrics == nil {
		return
	}
	if c.cache.Len() > lenBefore {
		c.metrics.CacheMissesTotal.Inc()
	} else {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *Coordinator) record(elapsed time.Duration, err error) {
	if c.metrics == nil {
		return
	}
	outcome := c.outcomeLabel(err)
	c.metrics.ViewCallsTotal.WithLabelValues(outcome).Inc()
	c.metrics.ViewCallDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	c.metrics.PoolIdleWorkers.Set(float64(c.pool.Idle()))
}

func (c *Coordinator) outcomeLabel(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrCodeNotFound):
		return metrics.OutcomeCodeNotFound
	case errors.Is(err, ErrCodeCompilation):
		return metrics.OutcomeCodeCompilation
	case errors.Is(err, ErrMethodNotFound):
		return metrics.OutcomeMethodNotFound
	case errors.Is(err, ErrPanic):
		return metrics.OutcomePanic
	case errors.Is(err, ErrAbort):
		return metrics.OutcomeAbort
	case errors.Is(err, ErrNotImplemented):
		return metrics.OutcomeNotImplemented
	case errors.Is(err, ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, ErrTransient):
		return metrics.OutcomeTransient
	default:
		return metrics.OutcomeUnknown
	}
}

func sumDestroyed(stats []workerpool.WorkerStats) int64 {
	var total int64
	for _, s := range stats {
		total += s.Destroyed
	}
	return total
}

func (c *Coordinator) classify(err error) error {
	switch {
	case errors.Is(err, workerpool.ErrMethodNotFound):
		return wrapMethodNotFound(err)
	case errors.Is(err, workerpool.ErrNotImplemented):
		return wrapNotImplemented(err)
	case errors.Is(err, workerpool.ErrAbort):
		return wrapAbort(err)
	case errors.Is(err, workerpool.ErrPanic):
		return wrapPanic(err)
	case errors.Is(err, workerpool.ErrTimeout):
		return wrapTimeout(err)
	default:
		return fmt.Errorf("coordinator: %w", err)
	}
}
