package generator

import (
	"context"
	"sync"
)

// downloadTask pairs a scene index with the work that fetches its clip.
type downloadTask struct {
	index int
	run   func(ctx context.Context) (string, error)
}

// runDownloads executes tasks on at most workers goroutines and returns the
// per-index results. The first error cancels the remaining tasks.
func runDownloads(ctx context.Context, workers int, tasks []downloadTask) ([]string, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]string, len(tasks))
	queue := make(chan downloadTask)
	errs := make(chan error, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				if ctx.Err() != nil {
					errs <- ctx.Err()
					continue
				}
				path, err := task.run(ctx)
				if err != nil {
					errs <- err
					cancel()
					continue
				}
				results[task.index] = path
				errs <- nil
			}
		}()
	}

	for _, task := range tasks {
		queue <- task
	}
	close(queue)
	wg.Wait()

	var firstErr error
	for range tasks {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
