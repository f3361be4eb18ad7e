package policy

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/roach88/botcsync/internal/entity"
)

// Limits applied to auxiliary values.
const (
	MinFlavorLength   = 3
	MaxFlavorLength   = 500
	MaxReminderLength = 30
	MaxReminderCount  = 20
)

var (
	tagPattern    = regexp.MustCompile(`</?[a-zA-Z][^<>]*>`)
	entityPattern = regexp.MustCompile(`&(#[0-9]+|#x[0-9a-fA-F]+|[a-zA-Z]+);`)
)

// Valid reports whether e's value for c is well-formed. An empty value is
// valid: absence is not corruption.
func Valid(c entity.AuxCategory, e *entity.Entity) bool {
	switch c {
	case entity.Reminders:
		return validTokens(e.Reminders) && validTokens(e.RemindersGlobal)
	case entity.Flavor:
		return e.Flavor == "" || validFlavor(e.Flavor)
	}
	return false
}

// Invalid reports whether e carries a non-empty value for c that fails the
// format check, e.g. raw page markup captured instead of text.
func Invalid(c entity.AuxCategory, e *entity.Entity) bool {
	return e.HasAux(c) && !Valid(c, e)
}

// Preservable reports whether prev holds a value for c worth carrying
// forward. Reminders may legitimately be empty once fetched; flavor text
// must be present.
func Preservable(c entity.AuxCategory, prev *entity.Entity) bool {
	if prev == nil || Invalid(c, prev) {
		return false
	}
	if c == entity.Reminders {
		return prev.Fetched.Has(c) || prev.HasAux(c)
	}
	return prev.HasAux(c)
}

func validFlavor(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < MinFlavorLength || n > MaxFlavorLength {
		return false
	}
	return cleanText(s)
}

func validTokens(tokens []string) bool {
	if len(tokens) > MaxReminderCount {
		return false
	}
	for _, t := range tokens {
		if strings.TrimSpace(t) == "" || utf8.RuneCountInString(t) > MaxReminderLength {
			return false
		}
		if !cleanText(t) {
			return false
		}
	}
	return true
}

// cleanText rejects control characters, HTML entities and markup.
func cleanText(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	if entityPattern.MatchString(s) {
		return false
	}
	if !strings.ContainsAny(s, "<>") {
		return true
	}
	if tagPattern.MatchString(s) {
		return false
	}
	// Fragments such as "<html>garbage" without a closing bracket still
	// parse into element nodes.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return false
	}
	return doc.Find("body *").Length() == 0 && doc.Find("head *").Length() == 0
}
