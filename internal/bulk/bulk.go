package bulk

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond"
	"github.com/mattn/go-isatty"
)

// Operation represents a bulk operation configuration
type Operation struct {
	Jobs            int
	ContinueOnError bool
	Ordered         bool
	ShowProgress    bool
	// Progress receives the progress line. Defaults to os.Stderr.
	Progress io.Writer
}

// Result represents the result of a bulk operation
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	// Skipped counts items never started because the run stopped early.
	Skipped int
	Errors  []ItemError
}

// ItemError represents an error for a specific item
type ItemError struct {
	Index int
	Item  string
	Error error
}

// ItemFunc is the function to execute for each item
type ItemFunc[T any] func(ctx context.Context, item T) error

// Execute runs fn for every item. name labels an item in errors and progress.
func Execute[T any](ctx context.Context, op *Operation, items []T, name func(T) string, fn ItemFunc[T]) *Result {
	if len(items) == 0 {
		return &Result{}
	}

	// Auto-detect CPU count if jobs == 0
	jobs := op.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	// Force sequential if ordered or jobs == 1
	if op.Ordered || jobs == 1 {
		return executeSequential(ctx, op, items, name, fn)
	}
	return executeParallel(ctx, op, items, name, fn, jobs)
}

// executeSequential processes items one by one
func executeSequential[T any](ctx context.Context, op *Operation, items []T, name func(T) string, fn ItemFunc[T]) *Result {
	result := &Result{TotalItems: len(items)}
	progress := op.progressWriter()

	for i, item := range items {
		if ctx.Err() != nil {
			result.Skipped = len(items) - i
			break
		}
		if progress != nil {
			fmt.Fprintf(progress, "\rProcessing %d/%d...", i+1, len(items))
		}

		if err := fn(ctx, item); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{Index: i, Item: name(item), Error: err})
			if !op.ContinueOnError {
				result.Skipped = len(items) - i - 1
				break
			}
			continue
		}
		result.Succeeded++
	}

	// Clear progress line
	if progress != nil {
		fmt.Fprint(progress, "\r\033[K")
	}
	return result
}

// executeParallel processes items on a bounded worker pool
func executeParallel[T any](ctx context.Context, op *Operation, items []T, name func(T) string, fn ItemFunc[T], workers int) *Result {
	result := &Result{TotalItems: len(items)}

	var (
		completed atomic.Int32
		succeeded atomic.Int32
		failed    atomic.Int32
		skipped   atomic.Int32
		stop      atomic.Bool
		errorsMux sync.Mutex
	)

	progressDone := make(chan struct{})
	var progressWG sync.WaitGroup
	if progress := op.progressWriter(); progress != nil {
		progressWG.Add(1)
		go func() {
			defer progressWG.Done()
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-progressDone:
					fmt.Fprint(progress, "\r\033[K") // Clear line
					return
				case <-ticker.C:
					c := int(completed.Load())
					pct := c * 100 / len(items)
					fmt.Fprintf(progress, "\rProcessing with %d workers... [%s] %d/%d (✓ %d ✗ %d)",
						workers, progressBar(pct, 20), c, len(items), succeeded.Load(), failed.Load())
				}
			}
		}()
	}

	pool := pond.New(workers, len(items))
	for i, item := range items {
		pool.Submit(func() {
			if stop.Load() || ctx.Err() != nil {
				skipped.Add(1)
				return
			}

			err := fn(ctx, item)
			completed.Add(1)
			if err != nil {
				failed.Add(1)
				errorsMux.Lock()
				result.Errors = append(result.Errors, ItemError{Index: i, Item: name(item), Error: err})
				errorsMux.Unlock()
				if !op.ContinueOnError {
					stop.Store(true)
				}
				return
			}
			succeeded.Add(1)
		})
	}
	pool.StopAndWait()

	close(progressDone)
	progressWG.Wait()

	sort.Slice(result.Errors, func(a, b int) bool { return result.Errors[a].Index < result.Errors[b].Index })
	result.Succeeded = int(succeeded.Load())
	result.Failed = int(failed.Load())
	result.Skipped = int(skipped.Load())
	return result
}

func (op *Operation) progressWriter() io.Writer {
	if !op.ShowProgress {
		return nil
	}
	if op.Progress != nil {
		return op.Progress
	}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return os.Stderr
	}
	return nil
}

// ExitCode returns the appropriate exit code for the result
func (r *Result) ExitCode() int {
	if r.Failed == 0 {
		return 0 // All succeeded
	}
	if r.Succeeded > 0 {
		return 5 // Partial success
	}
	return 1 // All failed
}

// PrintSummary prints a human-readable summary of the result
func (r *Result) PrintSummary(w io.Writer) {
	if r.Failed == 0 {
		fmt.Fprintf(w, "\n✓ All %d operations succeeded\n", r.TotalItems)
	} else if r.Succeeded == 0 {
		fmt.Fprintf(w, "\n✗ All %d operations failed\n", r.TotalItems)
	} else {
		fmt.Fprintf(w, "\n⚠ Partial success: %d succeeded, %d failed (out of %d)\n",
			r.Succeeded, r.Failed, r.TotalItems)
	}
	if r.Skipped > 0 {
		fmt.Fprintf(w, "  %d not started\n", r.Skipped)
	}

	if len(r.Errors) > 0 && len(r.Errors) <= 10 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s: %v\n", e.Item, e.Error)
		}
	} else if len(r.Errors) > 10 {
		fmt.Fprintf(w, "\nShowing first 10 errors (of %d):\n", len(r.Errors))
		for _, e := range r.Errors[:10] {
			fmt.Fprintf(w, "  %s: %v\n", e.Item, e.Error)
		}
	}
}

// progressBar creates a simple ASCII progress bar
func progressBar(percent, width int) string {
	filled := percent * width / 100
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
