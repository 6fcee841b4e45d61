// Package workers runs a fixed-size goroutine pool that executes the
// independent resample runs behind a backtest robustness report
// (internal/backtester/robustness.go): each run resamples realized
// per-tick returns with replacement and replays them, and none depend on any other's
// result, so they fan out across a bounded set of workers instead of
// one goroutine per simulation.
package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ResampleTask is one independent unit of resample work.
type ResampleTask interface {
	Execute() error
}

// TaskFunc adapts a plain function to a ResampleTask.
type TaskFunc func() error

func (f TaskFunc) Execute() error { return f() }

// Pool manages a bounded set of worker goroutines draining a shared
// task queue.
type Pool struct {
	logger *zap.Logger
	config *PoolConfig

	taskQueue chan ResampleTask
	workers   []*worker
	wg        sync.WaitGroup

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	tasksFailed  int64
	tasksTimeout int64
	panics       int64
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	Name            string        // pool name for logging
	NumWorkers      int           // number of worker goroutines
	QueueSize       int           // size of the task queue
	TaskTimeout     time.Duration // timeout for a single resample run
	ShutdownTimeout time.Duration // timeout for graceful shutdown
	PanicRecovery   bool          // recover panics inside a resample run
}

// DefaultPoolConfig sizes the pool for a robustness report's batch of
// resample runs: a fixed four workers, a queue
// large enough to hold the whole NumSimulations batch without blocking
// Submit, and a generous per-run timeout since resample replay is CPU
// work, not I/O.
func DefaultPoolConfig(name string) *PoolConfig {
	return &PoolConfig{
		Name:            name,
		NumWorkers:      4,
		QueueSize:       4096,
		TaskTimeout:     30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		PanicRecovery:   true,
	}
}

// worker drains taskQueue until the pool's context is cancelled.
type worker struct {
	id     int
	pool   *Pool
	logger *zap.Logger
}

// NewPool creates a new worker pool.
func NewPool(logger *zap.Logger, config *PoolConfig) *Pool {
	if config == nil {
		config = DefaultPoolConfig("default")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		logger:    logger,
		config:    config,
		taskQueue: make(chan ResampleTask, config.QueueSize),
		workers:   make([]*worker, config.NumWorkers),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	if p.running.Swap(true) {
		return
	}

	p.logger.Info("starting resample worker pool",
		zap.String("name", p.config.Name),
		zap.Int("workers", p.config.NumWorkers),
		zap.Int("queue_size", p.config.QueueSize),
	)

	for i := 0; i < p.config.NumWorkers; i++ {
		w := &worker{
			id:     i,
			pool:   p,
			logger: p.logger.With(zap.Int("worker_id", i)),
		}
		p.workers[i] = w
		p.wg.Add(1)
		go w.run()
	}
}

func (w *worker) run() {
	defer w.pool.wg.Done()

	for {
		select {
		case <-w.pool.ctx.Done():
			return
		case task, ok := <-w.pool.taskQueue:
			if !ok {
				return
			}
			w.executeTask(task)
		}
	}
}

func (w *worker) executeTask(task ResampleTask) {
	ctx, cancel := context.WithTimeout(w.pool.ctx, w.pool.config.TaskTimeout)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		var err error
		if w.pool.config.PanicRecovery {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddInt64(&w.pool.panics, 1)
					w.logger.Error("resample task recovered from panic", zap.Any("panic", r))
					err = &PanicError{Recovered: r}
				}
				done <- err
			}()
		}
		err = task.Execute()
		if !w.pool.config.PanicRecovery {
			done <- err
		}
	}()

	select {
	case err := <-done:
		if err != nil {
			atomic.AddInt64(&w.pool.tasksFailed, 1)
			w.logger.Debug("resample task failed", zap.Error(err))
		}
	case <-ctx.Done():
		atomic.AddInt64(&w.pool.tasksTimeout, 1)
		w.logger.Warn("resample task timed out", zap.Duration("timeout", w.pool.config.TaskTimeout))
	}
}

// Submit enqueues a task without blocking the caller for its result.
func (p *Pool) Submit(task ResampleTask) error {
	if !p.running.Load() {
		return ErrPoolStopped
	}

	select {
	case p.taskQueue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait submits a task and blocks until that specific task has
// run to completion, returning its error. Callers that need every
// submitted task to have actually executed before reading results
// (e.g. one resample run per Monte Carlo iteration) must use this
// instead of Submit+Stop: Stop cancels the pool's context, and a
// worker blocked in its select can take the cancellation branch
// before draining whatever is still queued.
func (p *Pool) SubmitWait(task ResampleTask) error {
	if !p.running.Load() {
		return ErrPoolStopped
	}

	done := make(chan error, 1)
	wrapper := TaskFunc(func() error {
		err := task.Execute()
		done <- err
		return err
	})

	if err := p.Submit(wrapper); err != nil {
		return err
	}

	return <-done
}

// Stop signals all workers to exit and waits up to ShutdownTimeout.
func (p *Pool) Stop() error {
	if !p.running.Swap(false) {
		return nil
	}

	p.logger.Info("stopping resample worker pool", zap.String("name", p.config.Name))

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("resample worker pool stopped", zap.String("name", p.config.Name))
		return nil
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("resample worker pool shutdown timed out",
			zap.String("name", p.config.Name),
			zap.Duration("timeout", p.config.ShutdownTimeout),
		)
		return ErrShutdownTimeout
	}
}

// Errors
var (
	ErrPoolStopped     = &PoolError{Message: "pool is stopped"}
	ErrQueueFull       = &PoolError{Message: "task queue is full"}
	ErrShutdownTimeout = &PoolError{Message: "shutdown timed out"}
)

// PoolError represents a pool error.
type PoolError struct {
	Message string
}

func (e *PoolError) Error() string { return e.Message }

// PanicError represents a recovered panic from inside a resample run.
type PanicError struct {
	Recovered interface{}
}

func (e *PanicError) Error() string { return "panic recovered" }
