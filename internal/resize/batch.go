package resize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/acm19/resizer/internal/logger"
)

// Batch resizes many files concurrently.
type Batch interface {
	// ResizeFiles runs one resize operation per file using a worker pool.
	//
	// Results are returned in the order of files; entries for files that failed
	// or were never started (ctx cancelled) are nil. The returned error joins
	// every per-file error, or is ctx.Err() when dispatch was cut short.
	ResizeFiles(ctx context.Context, files []string, outputDir string, settings Settings, opts BatchOptions) ([]*Result, error)
}

// batch implements the Batch interface
type batch struct {
	resizer Resizer
}

// NewBatch creates a Batch running operations through resizer.
func NewBatch(resizer Resizer) Batch {
	return &batch{resizer: resizer}
}

type batchJob struct {
	index int
	path  string
}

// ResizeFiles resizes files with at most opts.MaxConcurrency operations in flight.
func (b *batch) ResizeFiles(ctx context.Context, files []string, outputDir string, settings Settings, opts BatchOptions) ([]*Result, error) {
	results := make([]*Result, len(files))
	if len(files) == 0 {
		return results, nil
	}

	numWorkers := opts.MaxConcurrency
	if numWorkers <= 0 {
		numWorkers = DefaultBatchOptions().MaxConcurrency
	}
	numWorkers = min(numWorkers, len(files))

	jobs := make(chan batchJob, numWorkers)
	errs := make([]error, len(files))
	var wg sync.WaitGroup
	var processed atomic.Int64
	total := len(files)

	logger.Info("Starting batch", "files", total, "workers", numWorkers, "output", outputDir)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				emitProgress(opts.ProgressChan, ProgressEvent{
					Stage:   "resizing",
					Current: int(processed.Load()),
					Total:   total,
					Message: fmt.Sprintf("Resizing %s", job.path),
					File:    job.path,
				})

				result, err := b.resizer.Resize(job.path, outputDir, settings)
				results[job.index] = result
				errs[job.index] = err
				if err != nil {
					logger.Error("Failed to resize file", "file", job.path, "error", err)
				}

				current := processed.Add(1)
				emitProgress(opts.ProgressChan, ProgressEvent{
					Stage:   "done",
					Current: int(current),
					Total:   total,
					Message: fmt.Sprintf("Resized file %d of %d", current, total),
					File:    job.path,
				})
			}
		}()
	}

	var dispatchErr error
dispatch:
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			dispatchErr = err
			break
		}
		select {
		case <-ctx.Done():
			dispatchErr = ctx.Err()
			break dispatch
		case jobs <- batchJob{index: i, path: path}:
		}
	}
	close(jobs)
	wg.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}

	if dispatchErr != nil {
		logger.Warn("Batch cancelled", "processed", processed.Load(), "total", total)
		return results, errors.Join(append([]error{dispatchErr}, failed...)...)
	}
	if len(failed) > 0 {
		logger.Error("Batch completed with errors", "successful", total-len(failed), "failed", len(failed))
		return results, fmt.Errorf("resize failed for %d of %d files: %w", len(failed), total, errors.Join(failed...))
	}

	logger.Info("Batch completed successfully", "files", total)
	return results, nil
}

// emitProgress sends without blocking; events are dropped when the channel is full.
func emitProgress(ch chan<- ProgressEvent, event ProgressEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- event:
	default:
		logger.Debug("Progress event dropped (channel full)", "stage", event.Stage)
	}
}
