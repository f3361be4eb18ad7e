package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/roach88/botcsync/internal/entity"
	"github.com/roach88/botcsync/internal/manifest"
	"github.com/roach88/botcsync/internal/merge"
	"github.com/roach88/botcsync/internal/policy"
	"github.com/roach88/botcsync/internal/store"
	"github.com/roach88/botcsync/internal/validate"
)

// Recorder receives the report of every completed run.
// *history.Ledger implements it.
type Recorder interface {
	Record(ctx context.Context, r *Report) error
}

// Engine runs sync passes against one store.
type Engine struct {
	store      *store.Store
	dispatcher *Dispatcher
	schema     *validate.Schema
	recorder   Recorder
	now        func() time.Time
	source     string
}

// Option configures an Engine.
type Option func(*Engine)

// WithDispatch sets the batch size and the delay between batches.
func WithDispatch(concurrency int, delay time.Duration) Option {
	return func(e *Engine) {
		e.dispatcher.Concurrency = concurrency
		e.dispatcher.BatchDelay = delay
	}
}

// WithSleep replaces the wait between fetch batches.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.dispatcher.Sleep = fn
	}
}

// WithSchema enables CUE schema validation before persisting.
func WithSchema(s *validate.Schema) Option {
	return func(e *Engine) {
		e.schema = s
	}
}

// WithRecorder appends each run's report to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithClock sets the time source used for report and manifest stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSource sets the manifest's source URL.
func WithSource(src string) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// New creates an Engine writing to s and fetching through f.
func New(s *store.Store, f Fetcher, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		dispatcher: NewDispatcher(f),
		now:        time.Now,
		source:     manifest.DefaultSource,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOptions select what one run does.
type RunOptions struct {
	// Categories enabled for fetching. Disabled categories are preserved.
	Categories []entity.AuxCategory
	// Force re-fetches every enabled category.
	Force bool
	// DryRun stops after merging; nothing is written.
	DryRun bool
	// Strict reports fields unknown to the schema.
	Strict bool
}

// Run performs one sync pass over scraped. The input is not modified.
//
// On success the report's State is StateManifested, or StateMerged for a
// dry run. Run fails only on local I/O errors or cancellation; the error
// is a *RunError.
func (e *Engine) Run(ctx context.Context, scraped []*entity.Entity, opts RunOptions) (*Report, error) {
	r := newReport(e.now(), opts)
	slog.Info("sync started", "characters", len(scraped), "categories", opts.Categories, "force", opts.Force, "dry_run", opts.DryRun)

	// Scraped
	current, dups := dedupe(scraped)
	r.Issues = append(r.Issues, dups...)
	r.Characters = len(current)

	previous, loadIssues, err := e.store.LoadSnapshot(ctx)
	if err != nil {
		return r, runError(StateScraped, "load snapshot", err)
	}
	for _, li := range loadIssues {
		r.Issues = append(r.Issues, validate.Issue{Code: validate.ErrLoad, Field: li.Path, Message: li.Err.Error()})
	}
	r.Previous = len(previous)
	if err := ctx.Err(); err != nil {
		return r, runError(StateScraped, "load snapshot", err)
	}

	// Classified
	r.State = StateClassified
	classify := policy.Options{Enabled: make(map[entity.AuxCategory]bool), Force: opts.Force}
	for _, c := range opts.Categories {
		classify.Enabled[c] = true
	}
	verdicts := make([][]policy.Verdict, len(current))
	var jobs []Job
	for i, ent := range current {
		verdicts[i] = policy.Classify(ent, previous[ent.ID], classify)
		for _, v := range verdicts[i] {
			if v.Fetch {
				jobs = append(jobs, Job{Entity: ent, Category: v.Category})
			}
			slog.Debug("classified", "id", ent.ID, "category", v.Category, "fetch", v.Fetch, "reason", v.Reason)
		}
	}
	slog.Info("classification complete", "fetch", len(jobs), "pairs", len(current)*len(entity.Categories))

	// Fetching
	r.State = StateFetching
	results, err := e.dispatcher.Run(ctx, jobs)
	if err != nil {
		return r, runError(StateFetching, "dispatch fetches", err)
	}
	byJob := make(map[Job]*merge.Result, len(jobs))
	for i, j := range jobs {
		byJob[j] = &results[i]
	}

	// Merged
	r.State = StateMerged
	for i, ent := range current {
		prev := previous[ent.ID]
		for _, v := range verdicts[i] {
			outcome := merge.Resolve(ent, prev, v, byJob[Job{Entity: ent, Category: v.Category}])
			r.add(v, outcome)
			if outcome == merge.Failed || outcome == merge.FailedPreserved {
				slog.Debug("fetch not applied", "id", ent.ID, "category", v.Category, "outcome", outcome)
			}
		}
	}
	r.Issues = append(r.Issues, merge.SymmetrizeJinxes(current)...)
	r.Issues = append(r.Issues, validate.Run(e.schema, current, opts.Strict)...)
	r.Entities = current
	if len(r.Issues) > 0 {
		slog.Warn("dataset has integrity issues", "count", len(r.Issues))
	}

	if opts.DryRun {
		r.finish(e.now())
		slog.Info("dry run complete, nothing written")
		return r, nil
	}
	if err := ctx.Err(); err != nil {
		return r, runError(StateMerged, "persist", err)
	}

	// Persisted
	if err := e.store.SaveSnapshot(ctx, current); err != nil {
		return r, runError(StateMerged, "persist snapshot", err)
	}
	r.State = StatePersisted
	if err := ctx.Err(); err != nil {
		return r, runError(StatePersisted, "build manifest", err)
	}

	// Manifested
	m, err := e.writeManifest(current)
	if err != nil {
		return r, runError(StatePersisted, "write manifest", err)
	}
	r.Manifest = m
	r.State = StateManifested
	r.finish(e.now())

	slog.Info("sync complete", "characters", r.Characters, "hash", m.ContentHash, "version", m.Version)

	if e.recorder != nil {
		if err := e.recorder.Record(ctx, r); err != nil {
			slog.Warn("recording run history failed", "error", err)
		}
	}
	return r, nil
}

func (e *Engine) writeManifest(entities []*entity.Entity) (*manifest.Manifest, error) {
	fsys := e.store.FS()

	prev, err := manifest.Read(fsys, manifest.FileName)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("previous manifest unreadable, stamping a new version", "error", err)
		}
		prev = nil
	}

	m, err := manifest.Build(entities, e.now(), prev)
	if err != nil {
		return nil, fmt.Errorf("build manifest: %w", err)
	}
	m.Source = e.source
	if err := manifest.Write(fsys, manifest.FileName, m); err != nil {
		return nil, err
	}
	return m, nil
}

// dedupe clones and normalizes the scrape, keeping the first record for
// each id.
func dedupe(scraped []*entity.Entity) ([]*entity.Entity, []validate.Issue) {
	seen := make(map[string]bool, len(scraped))
	out := make([]*entity.Entity, 0, len(scraped))
	var issues []validate.Issue
	for _, s := range scraped {
		c := s.Clone()
		c.Normalize()
		if seen[c.ID] {
			slog.Warn("duplicate id in scrape, keeping first", "id", c.ID)
			issues = append(issues, validate.Issue{Code: validate.ErrDuplicateID, EntityID: c.ID, Message: "duplicate id in scrape input"})
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out, issues
}
