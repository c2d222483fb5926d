// Package worker runs independent pipeline stages on a bounded pool of
// goroutines. Stages are CPU-bound (model training, LP solves, artifact
// writes), so the pool size tracks the configured worker count rather than
// fanning out per item.
package worker

import (
	"context"
	"sync"

	"github.com/optilens/demand-engine/pkg/logger"
)

// Job is one named unit of pipeline work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool executes jobs with bounded concurrency.
type Pool struct {
	workers int
}

func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run executes all jobs and returns the first error encountered. Remaining
// queued jobs are abandoned once the context is canceled; in-flight jobs
// run to completion.
func (p *Pool) Run(ctx context.Context, jobs []Job) error {
	jobChan := make(chan Job, len(jobs))
	errChan := make(chan error, p.workers)
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobChan {
				if err := job.Run(ctx); err != nil {
					logger.Log.Error().Err(err).Str("job", job.Name).Int("worker", workerID).Msg("pipeline job failed")
					select {
					case errChan <- err:
					default:
					}
				}
			}
		}(i)
	}

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			close(jobChan)
			wg.Wait()
			return ctx.Err()
		case jobChan <- job:
		}
	}
	close(jobChan)

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return err
	}
	return nil
}
