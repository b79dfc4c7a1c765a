package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// pebbleKeyPrefix namespaces index snapshots inside the pebble keyspace.
const pebbleKeyPrefix = "idx/"

// PebbleSnapshotStore keeps index snapshots as values in a pebble database.
type PebbleSnapshotStore struct {
	db *pebble.DB
}

// OpenPebbleSnapshotStore opens (or creates) a pebble database at dir.
func OpenPebbleSnapshotStore(dir string) (*PebbleSnapshotStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	return &PebbleSnapshotStore{db: db}, nil
}

func (s *PebbleSnapshotStore) Load(name string) ([]byte, error) {
	val, closer, err := s.db.Get([]byte(pebbleKeyPrefix + name))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	// val is only valid until closer is closed.
	return append([]byte(nil), val...), nil
}

func (s *PebbleSnapshotStore) Save(name string, data []byte) error {
	return s.db.Set([]byte(pebbleKeyPrefix+name), data, pebble.Sync)
}

func (s *PebbleSnapshotStore) Remove(name string) error {
	return s.db.Delete([]byte(pebbleKeyPrefix+name), pebble.Sync)
}

func (s *PebbleSnapshotStore) Close() error {
	return s.db.Close()
}
