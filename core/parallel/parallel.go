package parallel

import (
	"runtime"
	"sync"
)

// Workers resolves an n_jobs style setting into a worker count.
// Values below 1 (conventionally -1) mean one worker per CPU core.
func Workers(nJobs int) int {
	if nJobs < 1 {
		return runtime.NumCPU()
	}
	return nJobs
}

// Parallelize divides the specified total number (items) according to the number of CPU cores,
// and executes the specified function (fn) in parallel for each range (start, end)
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(items, runtime.NumCPU(), fn)
}

// ParallelizeN is Parallelize with an explicit worker count. With one worker
// fn runs on the calling goroutine.
func ParallelizeN(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if workers > items {
		workers = items // No need for more workers than items
	}
	if workers == 1 {
		fn(0, items)
		return
	}

	// Calculate the number of items each worker handles (ceiling division)
	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}

		// Skip if there's no range to handle
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	// Wait for all workers to finish processing
	wg.Wait()
}
