// Package merge writes fetch results or preserved values back into the
// in-memory entity.
//
// Every operation mutates only the auxiliary fields of one category and the
// matching fetch flag. ID, Edition, Name and Ability are never touched.
package merge

import (
	"github.com/roach88/botcsync/internal/entity"
	"github.com/roach88/botcsync/internal/policy"
)

// Outcome is what happened to one (entity, category) pair in a run.
type Outcome int

const (
	// Skipped: preserve branch, but the previous record held nothing valid.
	// The field is left explicitly empty.
	Skipped Outcome = iota
	// Preserved: preserve branch, previous value carried forward.
	Preserved
	// Fetched: fetch succeeded and overwrote the field.
	Fetched
	// FailedPreserved: fetch failed, previous value carried forward.
	FailedPreserved
	// Failed: fetch failed and nothing could be preserved.
	Failed
)

var outcomeNames = [...]string{
	Skipped:         "skipped",
	Preserved:       "preserved",
	Fetched:         "fetched",
	FailedPreserved: "failed-preserved",
	Failed:          "failed",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Preserve copies prev's value for c into e when it passes the validity
// check. The flag is carried from prev. When nothing valid exists the field
// is set to its explicit empty value, the flag is cleared and false is
// returned.
func Preserve(e, prev *entity.Entity, c entity.AuxCategory) bool {
	if !policy.Preservable(c, prev) {
		e.ClearAux(c)
		e.Fetched = e.Fetched.Without(c)
		return false
	}
	e.SetAux(c, prev.Aux(c))
	e.Fetched.Set(c, prev.Fetched.Has(c))
	return true
}

// ApplyFetched overwrites e's value for c and marks the category fetched.
func ApplyFetched(e *entity.Entity, c entity.AuxCategory, v entity.AuxValue) {
	e.SetAux(c, v)
	e.Fetched = e.Fetched.With(c)
}

// ApplyFailed handles a failed fetch: fall back to the previous value, or
// leave the field empty with the flag cleared so the next run retries.
func ApplyFailed(e, prev *entity.Entity, c entity.AuxCategory) Outcome {
	if Preserve(e, prev, c) {
		return FailedPreserved
	}
	return Failed
}

// Result is the fetch collaborator's answer for one (entity, category).
type Result struct {
	Value entity.AuxValue
	Err   error
}

// Acceptable reports whether a fetched value may be stored. Fetched flavor
// must be present and valid; a fetched reminder list may be empty.
func Acceptable(c entity.AuxCategory, v entity.AuxValue) bool {
	probe := &entity.Entity{}
	probe.SetAux(c, v)
	if c == entity.Flavor && !probe.HasAux(c) {
		return false
	}
	return policy.Valid(c, probe)
}

// Resolve applies the verdict for one category. res is ignored on the
// preserve branch; on the fetch branch a nil res or an unacceptable value
// counts as a failed fetch.
func Resolve(e, prev *entity.Entity, v policy.Verdict, res *Result) Outcome {
	if !v.Fetch {
		if Preserve(e, prev, v.Category) {
			return Preserved
		}
		return Skipped
	}
	if res == nil || res.Err != nil || !Acceptable(v.Category, res.Value) {
		return ApplyFailed(e, prev, v.Category)
	}
	ApplyFetched(e, v.Category, res.Value)
	return Fetched
}
