package engine

import (
	"context"
	"sync"
)

// fans fingerprinting out across a bounded worker pool. Fingerprinting is
// pure per file, so workers are safe to run in parallel; every table
// mutation stays with the cycle driver in detect.go.

type digestResult struct {
	digest string
	err    error
}

func (e *Engine) fingerprintAll(ctx context.Context, cands []candidate) []digestResult {
	out := make([]digestResult, len(cands))

	workers := e.hashWorkers
	if workers > len(cands) {
		workers = len(cands)
	}

	if workers <= 1 {
		for i, c := range cands {
			if err := ctx.Err(); err != nil {
				out[i] = digestResult{err: err}
				continue
			}
			d, err := e.fp.Sum(c.path)
			out[i] = digestResult{digest: d, err: err}
		}
		return out
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				d, err := e.fp.Sum(cands[i].path)
				out[i] = digestResult{digest: d, err: err}
			}
		}()
	}

dispatch:
	for i := range cands {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(cands); j++ {
				out[j] = digestResult{err: ctx.Err()}
			}
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	return out
}
