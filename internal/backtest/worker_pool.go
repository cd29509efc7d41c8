package backtest

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// WorkerPool runs independent replays in parallel over shared, read-only bars
type WorkerPool struct {
	workerCount int
	jobQueue    chan Job
	resultQueue chan JobResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	steps [][]types.Bar
	carry []types.CarryCost
}

// Job is one replay configuration
type Job struct {
	ID     string
	Engine *Engine
}

// JobResult is the outcome of a Job
type JobResult struct {
	ID       string
	Results  *Results
	Duration time.Duration
	Error    error
}

// NewWorkerPool creates a pool replaying steps and carry for every job
func NewWorkerPool(ctx context.Context, workerCount, jobBufferSize int, steps [][]types.Bar, carry []types.CarryCost) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		workerCount: workerCount,
		jobQueue:    make(chan Job, jobBufferSize),
		resultQueue: make(chan JobResult, jobBufferSize),
		ctx:         ctx,
		cancel:      cancel,
		steps:       steps,
		carry:       carry,
	}
}

// Start starts the worker pool
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop closes the job queue, waits for the workers and closes the results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// SubmitJob submits a replay job to the pool
func (wp *WorkerPool) SubmitJob(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// GetResults returns the result channel for collecting completed jobs
func (wp *WorkerPool) GetResults() <-chan JobResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}

			result := wp.processJob(job)

			select {
			case wp.resultQueue <- result:
			case <-wp.ctx.Done():
				return
			}

		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) processJob(job Job) JobResult {
	start := time.Now()
	res, err := job.Engine.Run(wp.ctx, wp.steps, wp.carry)
	return JobResult{ID: job.ID, Results: res, Duration: time.Since(start), Error: err}
}

// RunBatch replays every job and returns the results sorted by job ID
func RunBatch(ctx context.Context, jobs []Job, workers int, steps [][]types.Bar, carry []types.CarryCost, progress *ProgressTracker) []JobResult {
	wp := NewWorkerPool(ctx, workers, len(jobs), steps, carry)
	wp.Start()

	go func() {
		defer wp.Stop()
		for _, job := range jobs {
			if err := wp.SubmitJob(job); err != nil {
				return
			}
		}
	}()

	results := make([]JobResult, 0, len(jobs))
	for r := range wp.GetResults() {
		results = append(results, r)
		if progress != nil {
			progress.Increment()
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results
}

// ProgressTracker tracks the progress of batch processing
type ProgressTracker struct {
	total     int
	completed int
	startTime time.Time
	mutex     sync.RWMutex
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{total: total, startTime: time.Now()}
}

// Increment increments the completion count
func (pt *ProgressTracker) Increment() {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	pt.completed++
}

// GetProgress returns completed, total, percentage and elapsed time
func (pt *ProgressTracker) GetProgress() (int, int, float64, time.Duration) {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	elapsed := time.Since(pt.startTime)
	progress := 0.0
	if pt.total > 0 {
		progress = float64(pt.completed) / float64(pt.total) * 100
	}
	return pt.completed, pt.total, progress, elapsed
}

// EstimateTimeRemaining estimates the remaining time based on current progress
func (pt *ProgressTracker) EstimateTimeRemaining() time.Duration {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	if pt.completed == 0 {
		return 0
	}

	elapsed := time.Since(pt.startTime)
	avgTimePerItem := elapsed / time.Duration(pt.completed)
	return avgTimePerItem * time.Duration(pt.total-pt.completed)
}
