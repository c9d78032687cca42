package worker

import "context"

// RunBatch runs jobs on a fresh pool of the given size and returns one result per
// job in input order. The pool lives only for this call.
func RunBatch(ctx context.Context, workers int, jobs []Job) []Result {
	if len(jobs) == 0 {
		return []Result{}
	}

	if workers > len(jobs) {
		workers = len(jobs)
	}

	pool := NewPoolWithContext(ctx, workers)
	pool.Start()
	defer pool.Shutdown()

	for _, job := range jobs {
		pool.Submit(job)
	}

	return pool.Wait()
}
