// Package entity defines the character record shared by every stage of a
// sync run, and its two on-disk encodings: the persisted per-entity record
// (public fields plus the internal "_" namespace) and the public map used for
// the combined file and the content hash.
package entity

import (
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// InternalPrefix marks bookkeeping keys that never reach public output.
const InternalPrefix = "_"

// UnknownGroup holds characters scraped without an edition.
const UnknownGroup = "unknown"

// Jinx is one side of a symmetric cross-reference between two characters.
type Jinx struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Entity is a playable character.
//
// Field declaration order is the canonical on-disk field order.
// Ability is the core attribute whose change invalidates derived data;
// Reminders, RemindersGlobal and Flavor are auxiliary fields owned by the
// merge engine.
type Entity struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Edition            string   `json:"edition"`
	Team               string   `json:"team"`
	Ability            string   `json:"ability"`
	Flavor             string   `json:"flavor"`
	Image              string   `json:"image"`
	Setup              bool     `json:"setup"`
	FirstNight         int      `json:"firstNight"`
	FirstNightReminder string   `json:"firstNightReminder"`
	OtherNight         int      `json:"otherNight"`
	OtherNightReminder string   `json:"otherNightReminder"`
	Reminders          []string `json:"reminders"`
	RemindersGlobal    []string `json:"remindersGlobal"`
	Jinxes             []Jinx   `json:"jinxes,omitempty"`

	// Fetched records which auxiliary categories have been populated by a
	// successful fetch. Persisted as "_fetched", never public.
	Fetched FetchFlags `json:"-"`

	// ImageURL is the remote icon location reported by the scraper.
	ImageURL string `json:"-"`

	// Extra holds decoded fields the model does not define. It is only
	// inspected by strict schema validation and is never written.
	Extra map[string]any `json:"-"`
}

// Group returns the edition e is stored and counted under.
func (e *Entity) Group() string {
	if e.Edition == "" {
		return UnknownGroup
	}
	return e.Edition
}

// Clone returns a deep copy.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Reminders = slices.Clone(e.Reminders)
	c.RemindersGlobal = slices.Clone(e.RemindersGlobal)
	c.Jinxes = slices.Clone(e.Jinxes)
	c.Extra = maps.Clone(e.Extra)
	return &c
}

// Normalize lowercases the id, replaces nil reminder lists with empty ones so
// public output always carries arrays, and puts every public string in NFC.
// Slices shared with other entities are copied before they are rewritten.
func (e *Entity) Normalize() {
	e.ID = strings.ToLower(strings.TrimSpace(nfc(e.ID)))
	for _, f := range []*string{
		&e.Name, &e.Edition, &e.Team, &e.Ability, &e.Flavor, &e.Image,
		&e.FirstNightReminder, &e.OtherNightReminder,
	} {
		*f = nfc(*f)
	}
	e.Reminders = nfcList(e.Reminders)
	e.RemindersGlobal = nfcList(e.RemindersGlobal)
	if len(e.Jinxes) == 0 {
		e.Jinxes = nil
	}
	copied := false
	for i, j := range e.Jinxes {
		id, reason := nfc(j.ID), nfc(j.Reason)
		if id == j.ID && reason == j.Reason {
			continue
		}
		if !copied {
			e.Jinxes = slices.Clone(e.Jinxes)
			copied = true
		}
		e.Jinxes[i] = Jinx{ID: id, Reason: reason}
	}
}

func nfc(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

// nfcList returns in with every element in NFC, never nil. in is copied
// before any element changes.
func nfcList(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := in
	copied := false
	for i, s := range in {
		n := nfc(s)
		if n == s {
			continue
		}
		if !copied {
			out = slices.Clone(in)
			copied = true
		}
		out[i] = n
	}
	return out
}

// Public returns the entity's public fields as a generic map, the shape
// hashed by the manifest builder. Internal fields are not representable here.
func (e *Entity) Public() map[string]any {
	m := map[string]any{
		"id":                 e.ID,
		"name":               e.Name,
		"edition":            e.Edition,
		"team":               e.Team,
		"ability":            e.Ability,
		"flavor":             e.Flavor,
		"image":              e.Image,
		"setup":              e.Setup,
		"firstNight":         int64(e.FirstNight),
		"firstNightReminder": e.FirstNightReminder,
		"otherNight":         int64(e.OtherNight),
		"otherNightReminder": e.OtherNightReminder,
		"reminders":          stringList(e.Reminders),
		"remindersGlobal":    stringList(e.RemindersGlobal),
	}
	if len(e.Jinxes) > 0 {
		jinxes := make([]any, len(e.Jinxes))
		for i, j := range e.Jinxes {
			jinxes[i] = map[string]any{"id": j.ID, "reason": j.Reason}
		}
		m["jinxes"] = jinxes
	}
	return m
}

func stringList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// StripInternal removes every key in the internal namespace from a decoded
// record. The input map is not modified.
func StripInternal(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if strings.HasPrefix(k, InternalPrefix) {
			continue
		}
		out[k] = v
	}
	return out
}

// Sort orders entities by (edition, id), the canonical dataset order.
func Sort(entities []*Entity) {
	slices.SortStableFunc(entities, func(a, b *Entity) int {
		if c := strings.Compare(a.Edition, b.Edition); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
