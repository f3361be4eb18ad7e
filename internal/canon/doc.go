// Package canon produces RFC 8785 canonical JSON.
//
// Canonical JSON is the only serialization used as hash input for the
// dataset content hash. Two values that differ only in object key order
// serialize to identical bytes; array order is preserved as given.
//
// Accepted inputs are the shapes produced by encoding/json decoding and by
// entity.Entity.Public: string, bool, int, int64, json.Number (integral
// only), []any, []string and map[string]any. Floats and null are rejected
// so the hash never depends on float formatting.
package canon
