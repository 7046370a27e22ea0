package backtest

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/ducminhle1904/quant-backtest/internal/sizing"
	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

// WorkerPool runs independent simulations in parallel. Each job owns its
// bars, signals and sizer, so workers share no mutable state; callers are
// responsible for merging results deterministically.
type WorkerPool struct {
	workerCount int
	jobQueue    chan Job
	resultQueue chan JobResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// Job is a single simulation task.
type Job struct {
	ID      string
	Config  Config
	Bars    []types.OHLCV
	Signals []float64
	Sizer   sizing.Sizer
}

// JobResult is the outcome of one job.
type JobResult struct {
	ID       string
	Result   *Result
	Duration time.Duration
	Err      error
}

// NewWorkerPool creates a pool; workerCount <= 0 uses all CPUs.
func NewWorkerPool(workerCount, jobBufferSize int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workerCount: workerCount,
		jobQueue:    make(chan Job, jobBufferSize),
		resultQueue: make(chan JobResult, jobBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop drains the queue and waits for the workers to finish.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
}

// Cancel aborts outstanding work without waiting for the queue.
func (wp *WorkerPool) Cancel() {
	wp.cancel()
}

// Submit queues a job. Returns false once the pool is cancelled.
func (wp *WorkerPool) Submit(job Job) bool {
	select {
	case <-wp.ctx.Done():
		return false
	case wp.jobQueue <- job:
		return true
	}
}

// Results exposes the result channel; closed by Stop.
func (wp *WorkerPool) Results() <-chan JobResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		start := time.Now()
		engine := NewEngine(job.Config, job.Sizer)
		result, err := engine.Run(job.Bars, job.Signals)
		wp.resultQueue <- JobResult{
			ID:       job.ID,
			Result:   result,
			Duration: time.Since(start),
			Err:      err,
		}
	}
}

// RunJobs executes a batch on a fresh pool and returns results keyed by job
// ID, independent of completion order.
func RunJobs(jobs []Job, workers int) map[string]JobResult {
	pool := NewWorkerPool(workers, len(jobs))
	pool.Start()
	for _, job := range jobs {
		pool.Submit(job)
	}

	results := make(map[string]JobResult, len(jobs))
	var collect sync.WaitGroup
	collect.Add(1)
	go func() {
		defer collect.Done()
		for res := range pool.Results() {
			results[res.ID] = res
		}
	}()

	pool.Stop()
	collect.Wait()
	return results
}
