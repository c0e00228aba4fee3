package runner

import (
	"context"
	"sync"
)

type Job func() error

// RunPool executes jobs with at most maxWorkers concurrently. Returns all errors.
func RunPool(maxWorkers int, jobs []Job) []error {
	errs, _ := RunPoolContext(context.Background(), maxWorkers, jobs)
	return errs
}

// RunPoolContext is RunPool that stops starting new jobs once ctx is done.
// Jobs already running are waited for; the context error is returned
// alongside the job errors collected so far.
func RunPoolContext(ctx context.Context, maxWorkers int, jobs []Job) ([]error, error) {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, maxWorkers)

	var ctxErr error
schedule:
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break schedule
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := j(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()
	return errs, ctxErr
}
