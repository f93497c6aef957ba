package stats

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/starford/daylog/internal/notes"
	"github.com/starford/daylog/internal/storage"
)

// DefaultConcurrency bounds the number of notes read in parallel.
const DefaultConcurrency = 8

// Recompute rebuilds statistics from every note dated on or before today.
// Days without tasks are not recorded.
func Recompute(ctx context.Context, files storage.Provider, today notes.Date, concurrency int) (Statistics, error) {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	var (
		mu      sync.Mutex
		daily   = map[string]DailyStats{}
		readErr error
	)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for e := range notes.Days(files.Root()) {
		if ctx.Err() != nil {
			break
		}
		if e.Date.After(today) {
			continue
		}

		sem <- struct{}{} // acquire
		wg.Add(1)

		go func(e notes.Entry) {
			defer wg.Done()
			defer func() { <-sem }() // release

			data, err := files.Read(e.Path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) && readErr == nil {
					readErr = err
				}
				return
			}
			d := ParseDay(string(data))
			if d.Total == 0 {
				return
			}
			key := e.Date.String()
			if prev, ok := daily[key]; ok {
				// DD.md and a legacy MM-DD.md for the same day.
				d.Total += prev.Total
				d.Completed += prev.Completed
				d.Uncompleted += prev.Uncompleted
			}
			daily[key] = d
		}(e)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return Statistics{}, err
	}
	if readErr != nil {
		return Statistics{}, readErr
	}
	return build(daily, today), nil
}
