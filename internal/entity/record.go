package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// record is the persisted per-entity shape: public fields followed by the
// internal namespace. The legacy keys are read for records written before
// flags were typed and are never written.
type record struct {
	Entity
	Flags           map[AuxCategory]bool `json:"_fetched,omitempty"`
	LegacyReminders bool                 `json:"_remindersFetched,omitempty"`
	LegacyFlavor    bool                 `json:"_flavorValid,omitempty"`
}

// MarshalRecord encodes e as a persisted per-entity record.
func MarshalRecord(e *Entity) ([]byte, error) {
	r := record{Entity: *e}
	r.Entity.Normalize()
	for _, c := range Categories {
		if e.Fetched.Has(c) {
			if r.Flags == nil {
				r.Flags = make(map[AuxCategory]bool, len(Categories))
			}
			r.Flags[c] = true
		}
	}
	return encodeIndented(r)
}

// UnmarshalRecord decodes a persisted per-entity record.
func UnmarshalRecord(data []byte) (*Entity, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.ID == "" {
		return nil, fmt.Errorf("record has no id")
	}
	e := r.Entity
	e.Fetched = 0
	for c, on := range r.Flags {
		if on {
			e.Fetched = e.Fetched.With(c)
		}
	}
	if r.LegacyReminders {
		e.Fetched = e.Fetched.With(Reminders)
	}
	if r.LegacyFlavor {
		e.Fetched = e.Fetched.With(Flavor)
	}
	e.Normalize()
	return &e, nil
}

// MarshalPublicList encodes entities as the combined public file: a JSON
// array in the given order, canonical field order, no internal fields.
func MarshalPublicList(entities []*Entity) ([]byte, error) {
	list := make([]Entity, len(entities))
	for i, e := range entities {
		list[i] = *e
		list[i].Normalize()
	}
	return encodeIndented(list)
}

type scraped struct {
	Entity
	ImageURL string `json:"_imageUrl,omitempty"`
}

// DecodeScraped reads the scrape collaborator's output: a JSON array of
// character records. Auxiliary values present in the input are dropped;
// they are owned by the merge engine. Fields the model does not define are
// kept in Extra.
func DecodeScraped(r io.Reader) ([]*Entity, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode scraped records: %w", err)
	}
	out := make([]*Entity, 0, len(raw))
	for i, msg := range raw {
		var s scraped
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, fmt.Errorf("decode scraped record %d: %w", i, err)
		}
		e := s.Entity
		if e.ID == "" {
			return nil, fmt.Errorf("scraped record %d has no id", i)
		}
		extra, err := extraFields(msg)
		if err != nil {
			return nil, fmt.Errorf("decode scraped record %d: %w", i, err)
		}
		e.Extra = extra
		e.ImageURL = s.ImageURL
		e.Fetched = 0
		e.Reminders = nil
		e.RemindersGlobal = nil
		e.Flavor = ""
		e.Normalize()
		out = append(out, &e)
	}
	return out, nil
}

// DecodePublicList decodes a combined public file. Fields the model does
// not define are kept in Extra.
func DecodePublicList(data []byte) ([]*Entity, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]*Entity, 0, len(raw))
	for i, msg := range raw {
		var e Entity
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		extra, err := extraFields(msg)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		e.Extra = extra
		e.Normalize()
		out = append(out, &e)
	}
	return out, nil
}

var publicKeys = func() map[string]bool {
	keys := map[string]bool{"jinxes": true}
	for k := range (&Entity{}).Public() {
		keys[k] = true
	}
	return keys
}()

// extraFields returns the keys of a JSON object that are neither public
// fields nor internal bookkeeping, or nil when there are none.
func extraFields(msg json.RawMessage) (map[string]any, error) {
	var all map[string]any
	if err := json.Unmarshal(msg, &all); err != nil {
		return nil, err
	}
	for k := range all {
		if publicKeys[k] || strings.HasPrefix(k, InternalPrefix) {
			delete(all, k)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func encodeIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
