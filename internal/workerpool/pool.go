// Package workerpool runs independent jobs with bounded concurrency.
package workerpool

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"jiraharvest/pkg/logger"
)

// Job is one unit of work identified by ID
type Job struct {
	ID  string
	Run func(ctx context.Context) error
}

// Result is the outcome of one job
type Result struct {
	ID       string
	Err      error
	Duration time.Duration
	// Skipped is true when the context ended before the job started
	Skipped bool
}

// WorkerPool runs jobs on at most numWorkers goroutines. A failing job
// does not stop the others.
type WorkerPool struct {
	numWorkers int
	logger     logger.Logger
}

// NewWorkerPool creates a pool; numWorkers below 1 is treated as 1
func NewWorkerPool(numWorkers int, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &WorkerPool{numWorkers: numWorkers, logger: log}
}

// Run executes every job and returns results in job order. Jobs not yet
// started when ctx is cancelled are reported as skipped.
func (wp *WorkerPool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))

	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
		"jobs":        len(jobs),
	})

	var g errgroup.Group
	g.SetLimit(wp.numWorkers)

	for i, job := range jobs {
		results[i].ID = job.ID
		if ctx.Err() != nil {
			results[i].Skipped = true
			results[i].Err = ctx.Err()
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Skipped = true
				results[i].Err = err
				return nil
			}
			start := time.Now()
			results[i].Err = runJob(ctx, job)
			results[i].Duration = time.Since(start)
			return nil
		})
	}

	_ = g.Wait()
	wp.logger.Debug("Worker pool stopped")
	return results
}

// runJob turns a panic into an error so one bad job cannot take down the
// whole run
func runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return job.Run(ctx)
}
