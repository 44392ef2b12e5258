package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tetratelabs/wazero"

	"github.com/weisyn/viewd/internal/config"
	"github.com/weisyn/viewd/internal/coordinator"
	"github.com/weisyn/viewd/internal/hostbridge"
	"github.com/weisyn/viewd/internal/metrics"
	"github.com/weisyn/viewd/internal/modcache"
	"github.com/weisyn/viewd/internal/resolver"
	"github.com/weisyn/viewd/internal/store"
	"github.com/weisyn/viewd/internal/workerpool"
	"github.com/weisyn/viewd/pkg/log"
)

// app bundles every long-lived component a subcommand needs, along with
// the means to tear them down cleanly.
type app struct {
	logger      log.Logger
	resolver    *resolver.Resolver
	coordinator *coordinator.Coordinator

	storeClient store.Client
	compileRT   wazero.Runtime
	pool        *workerpool.Pool
}

// buildApp wires every component from opts, sharing one wazero
// CompilationCache between the module cache's compile-only runtime and
// every worker's own execution runtime (internal/workerpool.New), so a
// module compiled once for caching costs no repeat codegen when a worker
// instantiates it.
func buildApp(ctx context.Context, opts *config.Options) (*app, error) {
	logger, err := log.New(&log.Options{
		Level:        opts.Log.Level,
		FilePath:     opts.Log.FilePath,
		EnableCaller: opts.Log.EnableCaller,
		MaxSizeMB:    opts.Log.MaxSizeMB,
		MaxBackups:   opts.Log.MaxBackups,
		MaxAgeDays:   opts.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("viewd: build logger: %w", err)
	}

	client, err := store.NewRedisClient(store.Config{
		Addr:         opts.Store.Addr,
		Password:     opts.Store.Password,
		DB:           opts.Store.DB,
		PoolSize:     opts.Store.PoolSize,
		MinIdleConns: opts.Store.MinIdleConns,
		DialTimeout:  opts.Store.DialTimeout,
		ReadTimeout:  opts.Store.ReadTimeout,
		WriteTimeout: opts.Store.WriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("viewd: connect store: %w", err)
	}

	res := resolver.New(client, logger)

	compCache := wazero.NewCompilationCache()
	compileRT := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCompilationCache(compCache))
	cache := modcache.New(compileRT, logger)

	bridge := hostbridge.New(logger)
	pool, err := workerpool.New(workerpool.Config{
		Capacity:       opts.Pool.Capacity,
		DefaultTimeout: opts.CallTimeout(),
	}, bridge, compCache, logger)
	if err != nil {
		_ = compileRT.Close(ctx)
		_ = client.Close()
		return nil, fmt.Errorf("viewd: start worker pool: %w", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	coord := coordinator.New(coordinator.Config{CallTimeout: opts.CallTimeout()}, res, cache, pool, m, logger)

	return &app{
		logger:      logger,
		resolver:    res,
		coordinator: coord,
		storeClient: client,
		compileRT:   compileRT,
		pool:        pool,
	}, nil
}

// close releases every resource buildApp acquired, in reverse order.
func (a *app) close(ctx context.Context) {
	a.pool.Close()
	_ = a.compileRT.Close(ctx)
	_ = a.storeClient.Close()
	_ = a.logger.Sync()
}
