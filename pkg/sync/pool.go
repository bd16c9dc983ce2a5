package sync

import (
	goSync "sync"
)

// runPool runs `work` on each item using at most `numWorkers` goroutines.
// Results are passed to `consume` from the calling goroutine as they
// complete, so `consume` doesn't need to be threadsafe. The workers have
// exited by the time runPool returns.
func runPool[T, R any](numWorkers int, items []T, work func(T) R, consume func(R)) {
	if len(items) == 0 {
		return
	}

	if numWorkers < 1 {
		numWorkers = 1
	}
	if len(items) < numWorkers {
		numWorkers = len(items)
	}

	var workerWaitGroup goSync.WaitGroup
	itemsChan := make(chan T, numWorkers*2)
	results := make(chan R, numWorkers)
	for i := 0; i < numWorkers; i++ {
		workerWaitGroup.Add(1)
		go func() {
			defer workerWaitGroup.Done()
			for item := range itemsChan {
				results <- work(item)
			}
		}()
	}

	// Feed the workers.
	go func() {
		for _, item := range items {
			itemsChan <- item
		}
		close(itemsChan)

		workerWaitGroup.Wait()
		close(results)
	}()

	for res := range results {
		consume(res)
	}
}
