// Package manifest builds, writes and verifies the dataset manifest: a
// content hash over the public character data plus per-edition statistics
// that consumers use to detect updates.
package manifest

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/hack-pad/hackpadfs"

	"github.com/roach88/botcsync/internal/entity"
	"github.com/roach88/botcsync/internal/store"
)

const (
	// SchemaVersion is bumped only on breaking changes to the output shape.
	SchemaVersion = 1

	// FileName is the manifest's file name next to the combined file.
	FileName = "manifest.json"

	// DefaultSource is the upstream the dataset is scraped from.
	DefaultSource = "https://script.bloodontheclocktower.com/"

	versionLayout = "2006.01.02"
)

// Manifest describes one dataset snapshot.
type Manifest struct {
	SchemaVersion    int                 `json:"schemaVersion"`
	Version          string              `json:"version"`
	Generated        string              `json:"generated"`
	LastModified     string              `json:"lastModified"`
	ContentHash      string              `json:"contentHash"`
	Source           string              `json:"source"`
	TotalCharacters  int                 `json:"total_characters"`
	TotalReminders   int                 `json:"total_reminders"`
	TotalJinxes      int                 `json:"total_jinxes"`
	TotalFlavor      int                 `json:"total_flavor"`
	Editions         map[string][]string `json:"editions"`
	EditionCounts    map[string]int      `json:"edition_counts"`
	EditionReminders map[string]int      `json:"edition_reminders"`
}

// Build computes the manifest for entities. The hash is taken over the
// dataset in canonical (edition, id) order; the input slice is not
// reordered.
//
// When prev carries the same content hash its Version and LastModified are
// kept, so an unchanged dataset keeps its update stamp.
func Build(entities []*entity.Entity, now time.Time, prev *Manifest) (*Manifest, error) {
	sorted := slices.Clone(entities)
	entity.Sort(sorted)

	hash, err := ComputeHash(sorted)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	m := &Manifest{
		SchemaVersion:    SchemaVersion,
		Version:          now.Format(versionLayout),
		Generated:        now.Format(time.RFC3339),
		LastModified:     now.Format(time.RFC3339),
		ContentHash:      hash,
		Source:           DefaultSource,
		TotalCharacters:  len(sorted),
		Editions:         make(map[string][]string),
		EditionCounts:    make(map[string]int),
		EditionReminders: make(map[string]int),
	}

	rawJinxes := 0
	for _, e := range sorted {
		g := e.Group()
		m.Editions[g] = append(m.Editions[g], e.ID)
		m.EditionCounts[g]++
		m.EditionReminders[g] += len(e.Reminders)
		m.TotalReminders += len(e.Reminders)
		rawJinxes += len(e.Jinxes)
		if e.Flavor != "" {
			m.TotalFlavor++
		}
	}
	// Each jinx is stored on both characters.
	m.TotalJinxes = rawJinxes / 2

	for _, ids := range m.Editions {
		slices.Sort(ids)
	}

	if prev != nil && prev.ContentHash == hash {
		m.Version = prev.Version
		m.LastModified = prev.LastModified
	}
	return m, nil
}

// Marshal encodes m with two-space indentation and a trailing newline.
func Marshal(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Write replaces name on fsys with m atomically.
func Write(fsys hackpadfs.FS, name string, m *Manifest) error {
	data, err := Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return store.WriteAtomic(fsys, name, data)
}

// Read decodes the manifest at name.
func Read(fsys hackpadfs.FS, name string) (*Manifest, error) {
	data, err := hackpadfs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses manifest JSON.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
