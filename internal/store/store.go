package store

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/hack-pad/hackpadfs"
	hackos "github.com/hack-pad/hackpadfs/os"
)

// File names at the storage root.
const (
	CombinedFile = "characters.json"
	IndexFile    = "index.json"
)

const (
	filePerm  = 0o644
	dirPerm   = 0o755
	tmpSuffix = ".tmp"
)

// Store provides durable storage for character records.
type Store struct {
	fs hackpadfs.FS
}

// New wraps an existing filesystem. Tests pass a mem.FS.
func New(fsys hackpadfs.FS) *Store {
	return &Store{fs: fsys}
}

// OpenDir roots a store at dir on the host filesystem, creating it if
// needed.
func OpenDir(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	osfs := hackos.NewFS()
	root, err := osfs.FromOSPath(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	if err := hackpadfs.MkdirAll(osfs, root, dirPerm); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	sub, err := osfs.Sub(root)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dir, err)
	}
	return New(sub), nil
}

// FS returns the underlying filesystem.
func (s *Store) FS() hackpadfs.FS {
	return s.fs
}

// ReadFile reads a file relative to the storage root.
func (s *Store) ReadFile(name string) ([]byte, error) {
	return hackpadfs.ReadFile(s.fs, name)
}

// WriteAtomic replaces name with data via a temporary sibling and a rename.
// Filesystems without rename support get a direct write.
func (s *Store) WriteAtomic(name string, data []byte) error {
	return WriteAtomic(s.fs, name, data)
}

// WriteAtomic is the filesystem-level form of Store.WriteAtomic.
func WriteAtomic(fsys hackpadfs.FS, name string, data []byte) error {
	if dir := path.Dir(name); dir != "." {
		if err := hackpadfs.MkdirAll(fsys, dir, dirPerm); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmp := name + tmpSuffix
	if err := hackpadfs.WriteFullFile(fsys, tmp, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	err := hackpadfs.Rename(fsys, tmp, name)
	if errors.Is(err, hackpadfs.ErrNotImplemented) {
		_ = hackpadfs.Remove(fsys, tmp)
		err = hackpadfs.WriteFullFile(fsys, name, data, filePerm)
	}
	if err != nil {
		_ = hackpadfs.Remove(fsys, tmp)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// exists reports whether name exists. Errors other than not-exist are
// returned.
func exists(fsys hackpadfs.FS, name string) (bool, error) {
	_, err := hackpadfs.Stat(fsys, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
