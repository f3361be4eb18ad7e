package validate

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// Issue codes (V001-V099)
const (
	ErrDuplicateID     = "V001" // same id scraped twice
	ErrDanglingJinx    = "V002" // jinx references an id not in the dataset
	ErrAsymmetricJinx  = "V003" // jinx reasons disagree between the two sides
	ErrNightOrderRange = "V004" // firstNight/otherNight outside 0..MaxNightOrder
	ErrEmptyField      = "V005" // required field is empty
	ErrSchema          = "V006" // record does not satisfy the character schema
	ErrUnknownField    = "V007" // strict mode: field not in the schema
	ErrLoad            = "V008" // persisted record could not be read
)

var codeTitles = map[string]string{
	ErrDuplicateID:     "duplicate ids",
	ErrDanglingJinx:    "dangling jinxes",
	ErrAsymmetricJinx:  "asymmetric jinxes",
	ErrNightOrderRange: "night order out of range",
	ErrEmptyField:      "empty required fields",
	ErrSchema:          "schema violations",
	ErrUnknownField:    "unknown fields",
	ErrLoad:            "unreadable records",
}

// Issue is a non-blocking integrity finding.
type Issue struct {
	Code     string `json:"code"`
	EntityID string `json:"entity_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// Error implements the error interface.
func (i Issue) Error() string {
	switch {
	case i.EntityID != "" && i.Field != "":
		return fmt.Sprintf("[%s] %s.%s: %s", i.Code, i.EntityID, i.Field, i.Message)
	case i.EntityID != "":
		return fmt.Sprintf("[%s] %s: %s", i.Code, i.EntityID, i.Message)
	}
	return fmt.Sprintf("[%s] %s", i.Code, i.Message)
}

// Group buckets issues by code, codes in ascending order.
func Group(issues []Issue) map[string][]Issue {
	groups := make(map[string][]Issue)
	for _, i := range issues {
		groups[i.Code] = append(groups[i.Code], i)
	}
	return groups
}

// WriteReport prints issues grouped by code, at most perGroup lines per
// group.
func WriteReport(w io.Writer, issues []Issue, perGroup int) {
	if len(issues) == 0 {
		fmt.Fprintln(w, "✓ No integrity issues")
		return
	}
	groups := Group(issues)
	codes := make([]string, 0, len(groups))
	for c := range groups {
		codes = append(codes, c)
	}
	slices.Sort(codes)

	fmt.Fprintf(w, "⚠ %d integrity issue(s)\n", len(issues))
	for _, code := range codes {
		list := groups[code]
		title := codeTitles[code]
		if title == "" {
			title = "other"
		}
		fmt.Fprintf(w, "\n%s %s (%d)\n", code, title, len(list))
		for i, issue := range list {
			if perGroup > 0 && i >= perGroup {
				fmt.Fprintf(w, "  ... and %d more\n", len(list)-perGroup)
				break
			}
			fmt.Fprintf(w, "  - %s\n", strings.TrimPrefix(issue.Error(), "["+code+"] "))
		}
	}
}

func sortIssues(issues []Issue) {
	slices.SortStableFunc(issues, func(a, b Issue) int {
		if c := strings.Compare(a.Code, b.Code); c != 0 {
			return c
		}
		if c := strings.Compare(a.EntityID, b.EntityID); c != 0 {
			return c
		}
		if c := strings.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return strings.Compare(a.Message, b.Message)
	})
}
