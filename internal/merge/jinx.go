package merge

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/botcsync/internal/entity"
	"github.com/roach88/botcsync/internal/validate"
)

type jinxPair struct{ lo, hi string }

func newJinxPair(a, b string) jinxPair {
	if a < b {
		return jinxPair{a, b}
	}
	return jinxPair{b, a}
}

// SymmetrizeJinxes makes every jinx between two characters of the dataset
// appear on both sides with the same reason. When the two sides disagree
// the reason stored on the lexically smaller id wins and a V003 issue is
// returned. References to ids outside the dataset are left alone; the
// integrity pass reports them. Jinx lists end up sorted by id.
func SymmetrizeJinxes(entities []*entity.Entity) []validate.Issue {
	byID := make(map[string]*entity.Entity, len(entities))
	for _, e := range entities {
		if _, ok := byID[e.ID]; !ok {
			byID[e.ID] = e
		}
	}

	reasons := make(map[jinxPair]string)
	holders := make(map[jinxPair]string)
	conflicts := make(map[jinxPair]bool)
	for _, e := range entities {
		if byID[e.ID] != e {
			continue
		}
		for _, j := range e.Jinxes {
			if j.ID == e.ID || byID[j.ID] == nil {
				continue
			}
			p := newJinxPair(e.ID, j.ID)
			r, seen := reasons[p]
			if !seen {
				reasons[p], holders[p] = j.Reason, e.ID
				continue
			}
			if r == j.Reason {
				continue
			}
			conflicts[p] = true
			if e.ID < holders[p] {
				reasons[p], holders[p] = j.Reason, e.ID
			}
		}
	}

	for p, r := range reasons {
		setJinx(byID[p.lo], p.hi, r)
		setJinx(byID[p.hi], p.lo, r)
	}
	for _, e := range entities {
		e.Jinxes = dedupeJinxes(e.Jinxes)
	}

	var issues []validate.Issue
	for p := range conflicts {
		issues = append(issues, validate.Issue{
			Code:     validate.ErrAsymmetricJinx,
			EntityID: p.lo,
			Field:    "jinxes",
			Message:  fmt.Sprintf("jinx reasons with %q disagreed; kept %q", p.hi, reasons[p]),
		})
	}
	slices.SortFunc(issues, func(a, b validate.Issue) int {
		if c := strings.Compare(a.EntityID, b.EntityID); c != 0 {
			return c
		}
		return strings.Compare(a.Message, b.Message)
	})
	return issues
}

func setJinx(e *entity.Entity, id, reason string) {
	for i := range e.Jinxes {
		if e.Jinxes[i].ID == id {
			e.Jinxes[i].Reason = reason
			return
		}
	}
	e.Jinxes = append(e.Jinxes, entity.Jinx{ID: id, Reason: reason})
}

// dedupeJinxes keeps the first entry per id and sorts by id.
func dedupeJinxes(in []entity.Jinx) []entity.Jinx {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]entity.Jinx, 0, len(in))
	for _, j := range in {
		if seen[j.ID] {
			continue
		}
		seen[j.ID] = true
		out = append(out, j)
	}
	slices.SortStableFunc(out, func(a, b entity.Jinx) int { return strings.Compare(a.ID, b.ID) })
	return out
}
