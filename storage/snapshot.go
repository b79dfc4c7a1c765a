package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"leafdb/storage/index"
)

// ErrSnapshotNotFound is returned by SnapshotStore.Load when nothing is
// stored under the requested name.
var ErrSnapshotNotFound = errors.New("index snapshot not found")

// SnapshotStore persists encoded index snapshots by name. Names are
// produced by IndexFileName and are filesystem-safe.
type SnapshotStore interface {
	Load(name string) ([]byte, error)
	Save(name string, data []byte) error
	Remove(name string) error
	Close() error
}

// FileSnapshotStore keeps each snapshot in its own file under a directory.
// Files are replaced atomically.
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore returns a store rooted at dir, creating it if needed.
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

func (s *FileSnapshotStore) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	return data, err
}

func (s *FileSnapshotStore) Save(name string, data []byte) error {
	return writeFileAtomic(filepath.Join(s.dir, name), data)
}

func (s *FileSnapshotStore) Remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileSnapshotStore) Close() error { return nil }

// DecodeIndex decodes an index snapshot as held by a SnapshotStore and
// rebuilds its tree. The tree's keys are opaque; IndexKeyParts splits
// them.
func DecodeIndex(data []byte) (*index.Tree, error) {
	s, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	// compareIndexKeys panics on anything but an indexKey.
	for _, n := range s.Nodes {
		for _, k := range n.Keys {
			if _, ok := k.(indexKey); !ok {
				return nil, fmt.Errorf("%w: key %v is not an index key", ErrCorruptSnapshot, k)
			}
		}
	}
	return index.FromSnapshot(s, compareIndexKeys)
}

// IndexKeyParts splits a key of a table index into the field value and
// the primary key of the record it locates.
func IndexKeyParts(k any) (value, pk any, ok bool) {
	ik, ok := k.(indexKey)
	if !ok {
		return nil, nil, false
	}
	return ik.Value, ik.PK, true
}
