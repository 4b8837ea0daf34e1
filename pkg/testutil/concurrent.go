package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	"skillbadge/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes  int32
	Errors     int32
	Conflicts  int32
	InProgress int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.InProgress
}

// RunConcurrent executes fn in parallel goroutines released together and
// categorizes each result as success, conflict, in-progress, or generic error.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, conflicts, inProgress atomic.Int32
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			case errors.Is(err, sentinel.ErrInProgress):
				inProgress.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes:  successes.Load(),
		Errors:     errs.Load(),
		Conflicts:  conflicts.Load(),
		InProgress: inProgress.Load(),
	}
}

// RunConcurrentCollect executes fn in parallel and collects every returned value.
// Use this when the callee reports outcomes in its result rather than its error.
func RunConcurrentCollect[T any](goroutines int, fn func(idx int) (T, error)) ([]T, []error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make([]T, 0, goroutines)
	collectedErrs := make([]error, 0)
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			v, err := fn(idx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				collectedErrs = append(collectedErrs, err)
				return
			}
			results = append(results, v)
		}(i)
	}

	close(start)
	wg.Wait()
	return results, collectedErrs
}
