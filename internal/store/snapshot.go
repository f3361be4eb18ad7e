package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/hack-pad/hackpadfs"

	"github.com/roach88/botcsync/internal/entity"
	"github.com/roach88/botcsync/internal/merge"
	"github.com/roach88/botcsync/internal/policy"
)

const indexVersion = 1

// index lists the per-character records of the last snapshot.
type index struct {
	Version int      `json:"version"`
	Records []string `json:"records"`
}

// LoadIssue is a record skipped during LoadSnapshot.
type LoadIssue struct {
	Path string
	Err  error
}

func (i LoadIssue) Error() string {
	return fmt.Sprintf("%s: %v", i.Path, i.Err)
}

// RecordPath returns the storage path of e's record.
func RecordPath(e *entity.Entity) string {
	return path.Join(e.Group(), e.ID+".json")
}

// LoadSnapshot reads every per-character record of the previous run, keyed
// by id. An empty store yields an empty map. Only a failure to list the
// records is returned as an error.
func (s *Store) LoadSnapshot(ctx context.Context) (map[string]*entity.Entity, []LoadIssue, error) {
	paths, err := s.readIndex()
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("no record index, scanning storage root")
		paths, err = s.scan()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("list records: %w", err)
	}

	snapshot := make(map[string]*entity.Entity, len(paths))
	var issues []LoadIssue
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		e, err := s.loadRecord(p)
		if err != nil {
			slog.Warn("skipping unreadable record", "path", p, "error", err)
			issues = append(issues, LoadIssue{Path: p, Err: err})
			continue
		}
		if _, dup := snapshot[e.ID]; dup {
			err := fmt.Errorf("duplicate id %q", e.ID)
			slog.Warn("skipping duplicate record", "path", p, "id", e.ID)
			issues = append(issues, LoadIssue{Path: p, Err: err})
			continue
		}
		snapshot[e.ID] = e
	}

	slog.Debug("snapshot loaded", "records", len(snapshot), "skipped", len(issues))
	return snapshot, issues, nil
}

func (s *Store) loadRecord(p string) (*entity.Entity, error) {
	data, err := hackpadfs.ReadFile(s.fs, p)
	if err != nil {
		return nil, err
	}
	return entity.UnmarshalRecord(data)
}

func (s *Store) readIndex() ([]string, error) {
	data, err := hackpadfs.ReadFile(s.fs, IndexFile)
	if err != nil {
		return nil, err
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode %s: %w", IndexFile, err)
	}
	if idx.Version != indexVersion {
		return nil, fmt.Errorf("%s: unsupported version %d", IndexFile, idx.Version)
	}
	return idx.Records, nil
}

// scan finds <group>/<id>.json records. Files at the root are aggregates and
// are skipped, as is anything nested deeper than one directory.
func (s *Store) scan() ([]string, error) {
	top, err := hackpadfs.ReadDir(s.fs, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, group := range top {
		if !group.IsDir() || strings.HasPrefix(group.Name(), ".") {
			continue
		}
		entries, err := hackpadfs.ReadDir(s.fs, group.Name())
		if err != nil {
			return nil, err
		}
		for _, f := range entries {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			paths = append(paths, path.Join(group.Name(), f.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// SaveEntity writes e's record. An existing record at the same path is read
// first: for each category where e holds neither a value nor a fetch flag,
// a valid value found on disk is carried into e before writing. Only records
// listed in the current index are carried from; without an index every
// existing record qualifies.
func (s *Store) SaveEntity(e *entity.Entity) error {
	live, err := s.liveRecords()
	if err != nil {
		return err
	}
	return s.saveEntity(e, live)
}

// liveRecords returns the set of record paths in the index, or nil when no
// index has been written yet.
func (s *Store) liveRecords() (map[string]bool, error) {
	paths, err := s.readIndex()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	live := make(map[string]bool, len(paths))
	for _, p := range paths {
		live[p] = true
	}
	return live, nil
}

func (s *Store) saveEntity(e *entity.Entity, live map[string]bool) error {
	p := RecordPath(e)

	ok, err := exists(s.fs, p)
	if err != nil {
		return fmt.Errorf("stat %s: %w", p, err)
	}
	if ok && live != nil && !live[p] {
		slog.Debug("ignoring stale record", "path", p)
		ok = false
	}
	if ok {
		if onDisk, err := s.loadRecord(p); err != nil {
			slog.Warn("existing record unreadable, overwriting", "path", p, "error", err)
		} else {
			for _, c := range entity.Categories {
				if e.Fetched.Has(c) || e.HasAux(c) || !policy.Preservable(c, onDisk) {
					continue
				}
				merge.Preserve(e, onDisk, c)
				slog.Debug("carried value from existing record", "id", e.ID, "category", c)
			}
		}
	}

	data, err := entity.MarshalRecord(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.ID, err)
	}
	return s.WriteAtomic(p, data)
}

// SaveSnapshot writes every record, then the combined file, then the
// index. The slice is sorted into (edition, id) order in place.
func (s *Store) SaveSnapshot(ctx context.Context, entities []*entity.Entity) error {
	entity.Sort(entities)

	live, err := s.liveRecords()
	if err != nil {
		return err
	}

	idx := index{Version: indexVersion, Records: make([]string, 0, len(entities))}
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.saveEntity(e, live); err != nil {
			return err
		}
		idx.Records = append(idx.Records, RecordPath(e))
	}

	combined, err := entity.MarshalPublicList(entities)
	if err != nil {
		return fmt.Errorf("encode %s: %w", CombinedFile, err)
	}
	if err := s.WriteAtomic(CombinedFile, combined); err != nil {
		return err
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", IndexFile, err)
	}
	if err := s.WriteAtomic(IndexFile, append(data, '\n')); err != nil {
		return err
	}

	slog.Info("snapshot saved", "records", len(entities))
	return nil
}

// LoadCombined decodes the combined file. Fields the model does not define
// are kept in each entity's Extra.
func (s *Store) LoadCombined() ([]*entity.Entity, error) {
	data, err := hackpadfs.ReadFile(s.fs, CombinedFile)
	if err != nil {
		return nil, err
	}
	list, err := entity.DecodePublicList(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", CombinedFile, err)
	}
	return list, nil
}
