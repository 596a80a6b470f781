package utils

import (
	"sync"
	"time"
)

// WorkerPool runs jobs on a bounded number of goroutines, optionally spacing job starts.
type WorkerPool struct {
	maxWorkers  int
	rateLimitMs int
	semaphore   chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastStart   time.Time

	errMu sync.Mutex
	errs  map[string]error
}

// NewWorkerPool creates a WorkerPool with the given concurrency and minimum start interval.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers:  maxWorkers,
		rateLimitMs: rateLimitMs,
		semaphore:   make(chan struct{}, maxWorkers),
		errs:        make(map[string]error),
	}
}

// Submit enqueues a named job. A non-nil error is kept under its name.
func (wp *WorkerPool) Submit(name string, job func() error) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		wp.enforceRateLimit()
		if err := job(); err != nil {
			wp.errMu.Lock()
			wp.errs[name] = err
			wp.errMu.Unlock()
		}
	}()
}

// Wait blocks until all submitted jobs have completed and returns the failed ones by name.
func (wp *WorkerPool) Wait() map[string]error {
	wp.wg.Wait()

	wp.errMu.Lock()
	defer wp.errMu.Unlock()
	out := make(map[string]error, len(wp.errs))
	for k, v := range wp.errs {
		out[k] = v
	}
	return out
}

func (wp *WorkerPool) enforceRateLimit() {
	if wp.rateLimitMs <= 0 {
		return
	}
	wp.mu.Lock()
	defer wp.mu.Unlock()

	minInterval := time.Duration(wp.rateLimitMs) * time.Millisecond
	elapsed := time.Since(wp.lastStart)
	if elapsed < minInterval {
		time.Sleep(minInterval - elapsed)
	}
	wp.lastStart = time.Now()
}
