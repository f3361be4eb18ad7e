package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/botcsync/internal/canon"
	"github.com/roach88/botcsync/internal/entity"
)

// HashLength is the length of a content hash: a full SHA-256 hex digest.
const HashLength = sha256.Size * 2

// ComputeHash fingerprints the public fields of entities, in the order
// given. Internal fields cannot reach the hash input.
func ComputeHash(entities []*entity.Entity) (string, error) {
	list := make([]any, len(entities))
	for i, e := range entities {
		list[i] = e.Public()
	}
	return hashList(list)
}

// HashRecords fingerprints decoded records, dropping keys in the internal
// namespace first. Matches ComputeHash for the same public data.
func HashRecords(records []map[string]any) (string, error) {
	list := make([]any, len(records))
	for i, r := range records {
		list[i] = entity.StripInternal(r)
	}
	return hashList(list)
}

// hashList computes SHA256(canonical JSON). No domain prefix: consumers
// recompute the hash from characters.json alone.
func hashList(list []any) (string, error) {
	data, err := canon.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
