// Package policy decides, per entity and per auxiliary category, whether
// previously fetched data can be reused or must be fetched again.
package policy

import (
	"github.com/roach88/botcsync/internal/entity"
)

// Reason explains a verdict. Reasons are ordered: the first applicable rule
// wins.
type Reason int

const (
	ReasonUnchanged Reason = iota
	ReasonNew
	ReasonNeverFetched
	ReasonCorrupt
	ReasonAbilityChanged
	ReasonNameChanged
	ReasonForced
	ReasonDisabled
)

var reasonNames = map[Reason]string{
	ReasonUnchanged:      "unchanged",
	ReasonNew:            "new",
	ReasonNeverFetched:   "never-fetched",
	ReasonCorrupt:        "corrupt",
	ReasonAbilityChanged: "ability-changed",
	ReasonNameChanged:    "name-changed",
	ReasonForced:         "forced",
	ReasonDisabled:       "disabled",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return "unknown"
}

// Evaluate applies the staleness rules for category c and returns whether a
// fetch is needed along with the rule that decided it.
func Evaluate(current, previous *entity.Entity, c entity.AuxCategory) (bool, Reason) {
	switch {
	case previous == nil:
		return true, ReasonNew
	case !previous.Fetched.Has(c):
		return true, ReasonNeverFetched
	case Invalid(c, previous):
		return true, ReasonCorrupt
	case current.Ability != previous.Ability:
		return true, ReasonAbilityChanged
	case current.Name != previous.Name:
		return true, ReasonNameChanged
	}
	return false, ReasonUnchanged
}

// NeedsUpdate reports whether category c of current must be fetched, given
// the record from the previous run (nil when the entity is new).
func NeedsUpdate(current, previous *entity.Entity, c entity.AuxCategory) bool {
	needs, _ := Evaluate(current, previous, c)
	return needs
}

// Verdict is the classification of one (entity, category) pair.
type Verdict struct {
	Category entity.AuxCategory
	Fetch    bool
	Reason   Reason
}

// Options control classification.
type Options struct {
	// Enabled lists the categories that may be fetched this run. Disabled
	// categories are always preserved.
	Enabled map[entity.AuxCategory]bool
	// Force fetches every enabled category regardless of previous state.
	Force bool
}

// Classify returns one verdict per category, in entity.Categories order.
func Classify(current, previous *entity.Entity, opts Options) []Verdict {
	verdicts := make([]Verdict, 0, len(entity.Categories))
	for _, c := range entity.Categories {
		v := Verdict{Category: c}
		switch {
		case !opts.Enabled[c]:
			v.Reason = ReasonDisabled
		case opts.Force:
			v.Fetch, v.Reason = true, ReasonForced
		default:
			v.Fetch, v.Reason = Evaluate(current, previous, c)
		}
		verdicts = append(verdicts, v)
	}
	return verdicts
}
