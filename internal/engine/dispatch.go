package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/botcsync/internal/entity"
	"github.com/roach88/botcsync/internal/merge"
)

// Dispatch defaults.
const (
	DefaultConcurrency = 5
	DefaultBatchDelay  = time.Second
)

// Fetcher retrieves one auxiliary value. *wiki.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, cat entity.AuxCategory, e *entity.Entity) (entity.AuxValue, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, cat entity.AuxCategory, e *entity.Entity) (entity.AuxValue, error)

func (f FetcherFunc) Fetch(ctx context.Context, cat entity.AuxCategory, e *entity.Entity) (entity.AuxValue, error) {
	return f(ctx, cat, e)
}

// Job is one fetch: a category of one character.
type Job struct {
	Entity   *entity.Entity
	Category entity.AuxCategory
}

var errNoFetcher = errors.New("no fetcher configured")

// Dispatcher runs jobs in batches of at most Concurrency parallel fetches,
// waiting BatchDelay between batches. No delay follows the last batch.
type Dispatcher struct {
	Fetcher     Fetcher
	Concurrency int
	BatchDelay  time.Duration

	// Sleep waits between batches. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher returns a Dispatcher with the default limits.
func NewDispatcher(f Fetcher) *Dispatcher {
	return &Dispatcher{
		Fetcher:     f,
		Concurrency: DefaultConcurrency,
		BatchDelay:  DefaultBatchDelay,
		Sleep:       sleep,
	}
}

// Run fetches every job and returns one result per job, in job order.
// Individual fetch errors are carried in the results. The returned error is
// non-nil only when ctx ends before all batches completed.
func (d *Dispatcher) Run(ctx context.Context, jobs []Job) ([]merge.Result, error) {
	results := make([]merge.Result, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}
	if d.Fetcher == nil {
		for i := range results {
			results[i].Err = errNoFetcher
		}
		return results, nil
	}

	size := d.Concurrency
	if size <= 0 {
		size = DefaultConcurrency
	}
	pause := d.Sleep
	if pause == nil {
		pause = sleep
	}

	batches := (len(jobs) + size - 1) / size
	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		start := b * size
		end := min(start+size, len(jobs))
		slog.Debug("dispatching fetch batch", "batch", b+1, "of", batches, "jobs", end-start)

		var g errgroup.Group
		g.SetLimit(size)
		for i := start; i < end; i++ {
			job := jobs[i]
			g.Go(func() error {
				v, err := d.Fetcher.Fetch(ctx, job.Category, job.Entity)
				if err != nil {
					slog.Warn("fetch failed", "id", job.Entity.ID, "category", job.Category, "error", err)
				}
				results[i] = merge.Result{Value: v, Err: err}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return results, err
		}
		if b < batches-1 && d.BatchDelay > 0 {
			if err := pause(ctx, d.BatchDelay); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
