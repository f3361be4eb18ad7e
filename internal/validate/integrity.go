// Package validate checks a dataset for integrity problems. Findings are
// collected and reported; they never abort a sync run.
package validate

import (
	"fmt"

	"github.com/roach88/botcsync/internal/entity"
)

// MaxNightOrder bounds firstNight and otherNight.
const MaxNightOrder = 200

// Integrity checks cross-entity invariants: unique ids, resolvable and
// symmetric jinxes, night order range and non-empty required fields.
func Integrity(entities []*entity.Entity) []Issue {
	var issues []Issue

	byID := make(map[string]*entity.Entity, len(entities))
	for _, e := range entities {
		if _, dup := byID[e.ID]; dup {
			issues = append(issues, Issue{
				Code:     ErrDuplicateID,
				EntityID: e.ID,
				Message:  "duplicate character id",
			})
			continue
		}
		byID[e.ID] = e
	}

	for _, e := range entities {
		for _, j := range e.Jinxes {
			other, ok := byID[j.ID]
			if !ok {
				issues = append(issues, Issue{
					Code:     ErrDanglingJinx,
					EntityID: e.ID,
					Field:    "jinxes",
					Message:  fmt.Sprintf("jinx references unknown character %q", j.ID),
				})
				continue
			}
			if reason, found := jinxReason(other, e.ID); !found || reason != j.Reason {
				issues = append(issues, Issue{
					Code:     ErrAsymmetricJinx,
					EntityID: e.ID,
					Field:    "jinxes",
					Message:  fmt.Sprintf("jinx with %q has no matching reverse entry", j.ID),
				})
			}
		}
	}

	for _, e := range entities {
		if e.FirstNight < 0 || e.FirstNight > MaxNightOrder {
			issues = append(issues, Issue{
				Code:     ErrNightOrderRange,
				EntityID: e.ID,
				Field:    "firstNight",
				Message:  fmt.Sprintf("invalid firstNight value %d", e.FirstNight),
			})
		}
		if e.OtherNight < 0 || e.OtherNight > MaxNightOrder {
			issues = append(issues, Issue{
				Code:     ErrNightOrderRange,
				EntityID: e.ID,
				Field:    "otherNight",
				Message:  fmt.Sprintf("invalid otherNight value %d", e.OtherNight),
			})
		}
	}

	for _, e := range entities {
		for field, value := range map[string]string{"name": e.Name, "ability": e.Ability, "team": e.Team, "edition": e.Edition} {
			if value == "" {
				issues = append(issues, Issue{
					Code:     ErrEmptyField,
					EntityID: e.ID,
					Field:    field,
					Message:  "required field is empty",
				})
			}
		}
	}

	sortIssues(issues)
	return issues
}

func jinxReason(e *entity.Entity, id string) (string, bool) {
	for _, j := range e.Jinxes {
		if j.ID == id {
			return j.Reason, true
		}
	}
	return "", false
}
