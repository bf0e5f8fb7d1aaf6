// Package utils contains concurrency and math helpers shared by the depth fusion packages.
package utils

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization for row based work. This might be
// useful to set in tests where too much parallelism actually slows tests down in aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// ParallelForEachRow splits [0, rows) into contiguous bands and calls f for every row index,
// one goroutine per band. It returns once every row has been visited.
func ParallelForEachRow(rows int, f func(row int)) {
	if rows <= 0 {
		return
	}
	workers := ParallelFactor
	if workers > rows {
		workers = rows
	}
	band := rows / workers
	extra := rows % workers

	var wg sync.WaitGroup
	wg.Add(workers)
	from := 0
	for w := 0; w < workers; w++ {
		to := from + band
		if w < extra {
			to++
		}
		start, end := from, to
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			for row := start; row < end; row++ {
				f(row)
			}
		})
		from = to
	}
	wg.Wait()
}

// SimpleFunc is for RunInParallel.
type SimpleFunc func(ctx context.Context) error

// RunInParallel runs all functions in parallel, return is elapsed time and an error.
// The first failure cancels the context handed to the remaining functions.
func RunInParallel(ctx context.Context, fs []SimpleFunc) (time.Duration, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	var bigError error
	var bigErrorMutex sync.Mutex
	storeError := func(err error) {
		bigErrorMutex.Lock()
		defer bigErrorMutex.Unlock()
		if bigError == nil || !errors.Is(err, context.Canceled) {
			bigError = multierr.Combine(bigError, err)
		}
	}

	helper := func(f SimpleFunc) {
		defer func() {
			if thePanic := recover(); thePanic != nil {
				storeError(fmt.Errorf("got panic running something in parallel: %v", thePanic))
				cancel()
			}
			wg.Done()
		}()
		if err := f(ctx); err != nil {
			storeError(err)
			cancel()
		}
	}

	for _, f := range fs {
		wg.Add(1)
		go helper(f)
	}

	wg.Wait()
	return time.Since(start), bigError
}
