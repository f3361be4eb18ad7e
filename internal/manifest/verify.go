package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hack-pad/hackpadfs"

	"github.com/roach88/botcsync/internal/store"
)

// ErrHashMismatch is returned by VerifyPackage when the recorded and the
// recomputed content hashes differ.
var ErrHashMismatch = errors.New("content hash mismatch")

// Verification is the result of checking a package.
type Verification struct {
	Manifest   *Manifest
	Computed   string
	Characters int
}

// VerifyPackage recomputes the content hash of characters.json on fsys and
// compares it with manifest.json. Only a full-length digest is accepted.
func VerifyPackage(fsys hackpadfs.FS) (*Verification, error) {
	m, err := Read(fsys, FileName)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}
	data, err := hackpadfs.ReadFile(fsys, store.CombinedFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", store.CombinedFile, err)
	}

	records, err := decodeRecords(data)
	if err != nil {
		return nil, err
	}
	hash, err := HashRecords(records)
	if err != nil {
		return nil, err
	}

	v := &Verification{Manifest: m, Computed: hash, Characters: len(records)}
	if len(m.ContentHash) != HashLength {
		return v, fmt.Errorf("%w: recorded hash %q is not a full digest", ErrHashMismatch, m.ContentHash)
	}
	if m.ContentHash != hash {
		return v, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, m.ContentHash, hash)
	}
	if m.TotalCharacters != len(records) {
		slog.Warn("manifest character count differs from package",
			"manifest", m.TotalCharacters,
			"package", len(records))
	}
	return v, nil
}

func decodeRecords(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", store.CombinedFile, err)
	}
	return records, nil
}

// Package copies the combined file and manifest from src to dst after
// verifying them. The manifest is written last.
func Package(src, dst hackpadfs.FS) (*Manifest, error) {
	v, err := VerifyPackage(src)
	if err != nil {
		return nil, err
	}

	data, err := hackpadfs.ReadFile(src, store.CombinedFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", store.CombinedFile, err)
	}
	if err := store.WriteAtomic(dst, store.CombinedFile, data); err != nil {
		return nil, err
	}
	if err := Write(dst, FileName, v.Manifest); err != nil {
		return nil, err
	}

	slog.Info("package written",
		"characters", v.Characters,
		"version", v.Manifest.Version,
		"hash", v.Manifest.ContentHash)
	return v.Manifest, nil
}
