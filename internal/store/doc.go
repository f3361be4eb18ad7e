// Package store persists the character dataset on a hackpadfs filesystem.
//
// Layout under the storage root:
//   - <edition>/<id>.json: one record per character, public fields followed
//     by the internal "_" namespace (fetch flags)
//   - characters.json: every character, internal fields stripped, sorted by
//     (edition, id)
//   - index.json: the list of per-character record paths written by the
//     last snapshot
//
// # Loading
//
// LoadSnapshot reads exactly the records listed in index.json. Aggregate
// files are never mistaken for records because nothing is discovered by
// filename. Roots written before the index existed are scanned two levels
// deep (<edition>/<id>.json), skipping every file at the root.
//
// A record that cannot be read or decoded is logged and reported as a
// LoadIssue. It never fails the load.
//
// # Writing
//
// Every file is written to a temporary sibling and renamed into place, so a
// crash leaves either the old or the new content, never a torn file.
package store
