package workerpool

import (
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/weisyn/viewd/internal/hostbridge"
	"github.com/weisyn/viewd/pkg/log"
)

// Job is one view-call execution request submitted to a worker.
type Job struct {
	Call     *hostbridge.Call
	Module   wazero.CompiledModule
	Timeout  time.Duration
}

// Result is what a worker hands back after running a Job.
type Result struct {
	ReturnBytes []byte
	Logs        []string
	Err         error
}

// worker owns one wazero.Runtime for its entire lifetime, giving it full
// sandbox isolation from every other worker (spec.md §4.4, §9's redesign
// note: the teacher shares one runtime across calls, this engine does not).
// A worker that hits a fatal condition — compile failure, guest panic,
// guest abort, timeout, or an error it doesn't recognize — is destroyed and
// replaced rather than reused, since wazero does not guarantee a runtime's
// internal state is uncorrupted after such a fault.
type worker struct {
	id        int
	logger    log.Logger
	bridge    *hostbridge.Bridge
	compCache wazero.CompilationCache

	runtime wazero.Runtime
	jobs    chan jobRequest
	stopCh  chan struct{}
	doneCh  chan struct{}

	processed int64
	destroyed int64
}

type jobRequest struct {
	job    Job
	result chan<- Result
}

func newWorker(id int, logger log.Logger, bridge *hostbridge.Bridge, compCache wazero.CompilationCache) (*worker, error) {
	w := &worker{
		id:        id,
		logger:    logger,
		bridge:    bridge,
		compCache: compCache,
		jobs:      make(chan jobRequest),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	if err := w.buildRuntime(context.Background()); err != nil {
		return nil, err
	}
	go w.run()
	return w, nil
}

func (w *worker) buildRuntime(ctx context.Context) error {
	runtime := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCompilationCache(w.compCache))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		_ = runtime.Close(ctx)
		return fmt.Errorf("workerpool: worker %d: instantiate wasi: %w", w.id, err)
	}
	if err := w.bridge.Instantiate(ctx, runtime); err != nil {
		_ = runtime.Close(ctx)
		return fmt.Errorf("workerpool: worker %d: instantiate env: %w", w.id, err)
	}
	w.runtime = runtime
	return nil
}

// replace tears down the worker's runtime and builds a fresh one in place,
// so the pool slot stays filled without a caller having to notice.
func (w *worker) replace(ctx context.Context) error {
	_ = w.runtime.Close(ctx)
	w.destroyed++
	return w.buildRuntime(ctx)
}

func (w *worker) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case req := <-w.jobs:
			req.result <- w.execute(req.job)
		}
	}
}

func (w *worker) execute(job Job) (res Result) {
	ctx := context.Background()
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	ctx = hostbridge.WithCall(ctx, job.Call)

	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("workerpool: worker %d: unrecovered panic: %v", w.id, r)}
			if replaceErr := w.replace(context.Background()); replaceErr != nil {
				w.logger.Errorf("workerpool: worker %d: replace after panic failed: %v", w.id, replaceErr)
			}
		}
	}()

	w.processed++

	modName := fmt.Sprintf("contract_%d_%d", w.id, w.processed)
	modConfig := wazero.NewModuleConfig().WithName(modName)

	instance, err := w.runtime.InstantiateModule(ctx, job.Module, modConfig)
	if err != nil {
		if destroyErr := w.replace(context.Background()); destroyErr != nil {
			w.logger.Errorf("workerpool: worker %d: replace after instantiate failure failed: %v", w.id, destroyErr)
		}
		return Result{Err: fmt.Errorf("workerpool: instantiate: %w", err)}
	}
	defer instance.Close(context.Background())

	fn := instance.ExportedFunction(job.Call.MethodName)
	if fn == nil {
		return Result{Err: errMethodNotFound(job.Call.MethodName)}
	}

	if _, err := fn.Call(ctx); err != nil {
		if sig, ok := asSignal(err); ok {
			if sig.Kind == "not_implemented" {
				return Result{Err: errNotImplemented(sig.Message)}
			}
			if destroyErr := w.replace(context.Background()); destroyErr != nil {
				w.logger.Errorf("workerpool: worker %d: replace after %s failed: %v", w.id, sig.Kind, destroyErr)
			}
			return Result{Err: errGuestSignal(sig)}
		}
		if ctx.Err() != nil {
			if destroyErr := w.replace(context.Background()); destroyErr != nil {
				w.logger.Errorf("workerpool: worker %d: replace after timeout failed: %v", w.id, destroyErr)
			}
			return Result{Err: errTimeout(job.Call.MethodName)}
		}
		if destroyErr := w.replace(context.Background()); destroyErr != nil {
			w.logger.Errorf("workerpool: worker %d: replace after unrecognized failure failed: %v", w.id, destroyErr)
		}
		return Result{Err: fmt.Errorf("workerpool: call: %w", err)}
	}

	return Result{ReturnBytes: job.Call.Result, Logs: job.Call.Logs}
}

func (w *worker) stop() {
	close(w.stopCh)
	<-w.doneCh
	_ = w.runtime.Close(context.Background())
}

func (w *worker) stats() WorkerStats {
	return WorkerStats{
		ID:        w.id,
		Processed: w.processed,
		Destroyed: w.destroyed,
	}
}

// WorkerStats is a point-in-time snapshot of one worker's lifetime
// counters, exposed for metrics.
type WorkerStats struct {
	ID        int
	Processed int64
	Destroyed int64
}
