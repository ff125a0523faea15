package vcftiles

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
)

// levelJob is one zoom level to materialize
type levelJob struct {
	level uint32
	index int // slot in the result slice
}

// levelResult is a materialized level or the error that stopped it
type levelResult struct {
	result LevelResult
	index  int
	err    error
}

// levelPool builds zoom levels concurrently. Levels only read the catalog,
// so workers share it without locking; results are placed by index so the
// output order does not depend on scheduling.
type levelPool struct {
	workers     int
	build       func(ctx context.Context, level uint32) (LevelResult, error)
	jobQueue    chan levelJob
	resultQueue chan levelResult
	workerWg    sync.WaitGroup
}

// newLevelPool creates a pool running build on at most workers goroutines.
// build receives the pool context, which is cancelled on the first error.
func newLevelPool(workers int, build func(ctx context.Context, level uint32) (LevelResult, error)) *levelPool {
	if workers <= 0 {
		workers = 1
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	return &levelPool{
		workers:     workers,
		build:       build,
		jobQueue:    make(chan levelJob, workers*2),
		resultQueue: make(chan levelResult, workers*2),
	}
}

// run builds every level in levels and returns the results in the same
// order. The first error cancels the remaining work.
func (p *levelPool) run(ctx context.Context, levels []uint32) ([]LevelResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < p.workers; i++ {
		p.workerWg.Add(1)
		go p.worker(ctx, i)
	}

	// Feed jobs
	go func() {
		defer close(p.jobQueue)
		for i, level := range levels {
			select {
			case p.jobQueue <- levelJob{level: level, index: i}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		p.workerWg.Wait()
		close(p.resultQueue)
	}()

	results := make([]LevelResult, len(levels))
	done := 0
	var firstErr error
	for r := range p.resultQueue {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		results[r.index] = r.result
		done++
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil && done < len(levels) {
		return nil, err
	}
	return results, nil
}

// worker builds levels until the queue is drained or ctx is cancelled
func (p *levelPool) worker(ctx context.Context, id int) {
	defer p.workerWg.Done()

	for job := range p.jobQueue {
		if ctx.Err() != nil {
			return
		}
		result := levelResult{index: job.index}
		result.result, result.err = p.build(ctx, job.level)
		if result.err != nil {
			result.err = errors.E(result.err, fmt.Sprintf("worker %d: level %d", id, job.level))
		}
		select {
		case p.resultQueue <- result:
		case <-ctx.Done():
			return
		}
	}
}
