package engine

import (
	"time"

	"github.com/roach88/botcsync/internal/entity"
	"github.com/roach88/botcsync/internal/manifest"
	"github.com/roach88/botcsync/internal/merge"
	"github.com/roach88/botcsync/internal/policy"
	"github.com/roach88/botcsync/internal/validate"
)

// Stats counts outcomes for one category.
//
// Failed includes fetches that fell back to a preserved value; Healed counts
// corrupt cached values replaced by a successful fetch.
type Stats struct {
	Fetched   int `json:"fetched"`
	Preserved int `json:"preserved"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Healed    int `json:"healed"`
}

// Report summarizes one run.
type Report struct {
	Started    time.Time                     `json:"started"`
	Finished   time.Time                     `json:"finished"`
	State      State                         `json:"state"`
	DryRun     bool                          `json:"dryRun"`
	Force      bool                          `json:"force"`
	Categories []entity.AuxCategory          `json:"categories"`
	Characters int                           `json:"characters"`
	Previous   int                           `json:"previous"`
	Stats      map[entity.AuxCategory]*Stats `json:"stats"`
	Issues     []validate.Issue              `json:"issues,omitempty"`
	Manifest   *manifest.Manifest            `json:"manifest,omitempty"`

	// Entities is the merged dataset.
	Entities []*entity.Entity `json:"-"`
}

func newReport(now time.Time, opts RunOptions) *Report {
	r := &Report{
		Started:    now.UTC(),
		State:      StateScraped,
		DryRun:     opts.DryRun,
		Force:      opts.Force,
		Categories: append([]entity.AuxCategory{}, opts.Categories...),
		Stats:      make(map[entity.AuxCategory]*Stats, len(entity.Categories)),
	}
	for _, c := range entity.Categories {
		r.Stats[c] = &Stats{}
	}
	return r
}

func (r *Report) add(v policy.Verdict, o merge.Outcome) {
	s := r.Stats[v.Category]
	switch o {
	case merge.Fetched:
		s.Fetched++
		if v.Reason == policy.ReasonCorrupt {
			s.Healed++
		}
	case merge.Preserved:
		s.Preserved++
	case merge.Skipped:
		s.Skipped++
	case merge.Failed, merge.FailedPreserved:
		s.Failed++
	}
}

func (r *Report) finish(now time.Time) {
	r.Finished = now.UTC()
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Total sums the stats over all categories.
func (r *Report) Total() Stats {
	var t Stats
	for _, s := range r.Stats {
		t.Fetched += s.Fetched
		t.Preserved += s.Preserved
		t.Skipped += s.Skipped
		t.Failed += s.Failed
		t.Healed += s.Healed
	}
	return t
}
