package wiki

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Selectors tried in order for flavor text.
var flavorSelectors = []string{
	".flavour",
	".flavor",
	"blockquote i",
	"p > i",
	"p > em",
}

// Phrases that mark ability or navigation text rather than flavor.
var flavorSkip = []string{
	"you start", "each night", "once per game", "if you", "when you",
	"navigation", "jump to", "edit", "main page",
}

const (
	minFlavorRunes   = 3
	maxFlavorRunes   = 500
	maxReminderRunes = 30
)

// ExtractFlavor returns the first plausible flavor line on a character
// page, or "" when none is found.
func ExtractFlavor(doc *goquery.Document) string {
	for _, sel := range flavorSelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := collapseSpace(s.Text())
			n := utf8.RuneCountInString(text)
			if n < minFlavorRunes || n > maxFlavorRunes {
				return true
			}
			lower := strings.ToLower(text)
			for _, skip := range flavorSkip {
				if strings.Contains(lower, skip) {
					return true
				}
			}
			found = text
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

var (
	tokenPattern      = regexp.MustCompile(`\b([A-Z0-9][A-Z0-9\s:']*[A-Z0-9]|[A-Z]{2,})\s+reminder`)
	otherTokenPattern = regexp.MustCompile(`the\s+(\w+)'s\s+([A-Z0-9][A-Z0-9\s:]*[A-Z0-9]|[A-Z]{2,})\s+reminder`)
)

// Info tokens shown to players; never reminder tokens.
var infoTokens = []string{
	"YOU ARE",
	"THIS PLAYER IS",
	"THESE ARE YOUR MINIONS",
	"THIS IS THE DEMON",
	"THESE CHARACTERS ARE NOT IN PLAY",
	"THIS CHARACTER SELECTED YOU",
	"DID YOU NOMINATE TODAY",
	"DID YOU VOTE TODAY",
}

// reminderOverrides replaces extraction for characters whose pages do not
// follow the usual phrasing.
var reminderOverrides = map[string][]string{
	"lunatic":     {"CHOSEN", "CHOSEN", "CHOSEN"},
	"po":          {"3 ATTACKS", "DEAD", "DEAD", "DEAD"},
	"juggler":     {"CORRECT", "CORRECT", "CORRECT", "CORRECT", "CORRECT"},
	"zenomancer":  {"GOAL", "GOAL", "GOAL"},
	"alhadikhia":  {"1", "2", "3"},
	"leviathan":   {"DAY 1", "DAY 2", "DAY 3", "DAY 4", "DAY 5", "GOOD PLAYER EXECUTED"},
	"ojo":         {"DEAD"},
	"yaggababble": {"DEAD", "DEAD", "DEAD"},
}

// ExtractReminders finds the capitalised "X reminder" tokens in the "How to
// Run" section of a character page. Tokens owned by other characters and
// player info tokens are dropped. A page without the section yields an
// empty list.
//
// Each distinct token appears once; how many copies a character needs is not
// inferred from the page text. Characters known to need several copies of a
// token are listed in the override table instead.
func ExtractReminders(doc *goquery.Document, name string) []string {
	text := howToRun(doc)
	tokens := []string{}
	if text == "" {
		return tokens
	}

	self := strings.NewReplacer(" ", "", "-", "").Replace(strings.ToLower(name))
	others := make(map[string]bool)
	for _, m := range otherTokenPattern.FindAllStringSubmatch(text, -1) {
		owner := strings.ToLower(m[1])
		if owner != self && !strings.Contains(self, owner) {
			others[strings.TrimSpace(m[2])] = true
		}
	}

	seen := make(map[string]bool)
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		token := strings.TrimSuffix(collapseSpace(strings.ToUpper(m[1])), "'S")
		if token == "" || seen[token] || others[token] || isInfoToken(token) {
			continue
		}
		if utf8.RuneCountInString(token) > maxReminderRunes {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}

func isInfoToken(token string) bool {
	for _, info := range infoTokens {
		if strings.Contains(token, info) {
			return true
		}
	}
	return false
}

// howToRun returns the text between the "How to Run" heading and the next
// heading of the same or higher level.
func howToRun(doc *goquery.Document) string {
	var parts []string
	doc.Find("h2, h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !strings.Contains(strings.ToUpper(h.Text()), "HOW TO RUN") {
			return true
		}
		level := headingLevel(goquery.NodeName(h))
		h.NextAll().EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if l := headingLevel(goquery.NodeName(s)); l > 0 && l <= level {
				return false
			}
			if text := collapseSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
			return true
		})
		return false
	})
	return strings.Join(parts, " ")
}

func headingLevel(node string) int {
	switch node {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	}
	return 0
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
