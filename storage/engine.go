package storage

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"leafdb/storage/index"
)

// Options configures a Database.
type Options struct {
	// Order is the B+ tree order given to indexes of newly created tables.
	// Zero means index.DefaultOrder. Existing tables keep the order they
	// were created with.
	Order int

	// Store holds index snapshots. Nil means a FileSnapshotStore in the
	// data directory. The database closes the store on Close.
	Store SnapshotStore

	// Compress enables snappy compression of index snapshots.
	Compress bool
}

// Database is a directory of tables. Each table is a JSON document of
// records plus a metadata document, and every indexed field has a B+ tree
// whose snapshot is kept in the SnapshotStore.
//
// Concurrency: a sync.RWMutex provides single-writer / multi-reader
// access across the database and all its tables. Every mutation is
// written through to disk before it returns.
type Database struct {
	mu      sync.RWMutex
	dir     string
	opts    Options
	store   SnapshotStore
	catalog *catalog
	closed  bool
}

// Open creates or opens the database rooted at dataDir and loads every
// table it lists. Index snapshots that are missing or do not match the
// table's records are rebuilt from the records. If Open fails it closes
// opts.Store.
func Open(dataDir string, opts Options) (db *Database, err error) {
	defer func() {
		if err != nil && opts.Store != nil {
			opts.Store.Close()
		}
	}()

	if opts.Order == 0 {
		opts.Order = index.DefaultOrder
	}
	if opts.Order < 2 {
		return nil, fmt.Errorf("index order %d is below the minimum of 2", opts.Order)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if opts.Store == nil {
		fs, err := NewFileSnapshotStore(dataDir)
		if err != nil {
			return nil, err
		}
		opts.Store = fs
	}

	db = &Database{
		dir:     dataDir,
		opts:    opts,
		store:   opts.Store,
		catalog: newCatalog(),
	}

	names, err := readCatalogNames(dataDir)
	if err != nil {
		return nil, fmt.Errorf("read database metadata: %w", err)
	}
	for _, name := range names {
		t, err := db.loadTable(name)
		if err != nil {
			return nil, fmt.Errorf("load table %q: %w", name, err)
		}
		db.catalog.add(t)
	}
	return db, nil
}

// Close releases the snapshot store. All data is already on disk.
// Closing twice is a no-op.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true
	return db.store.Close()
}

// CreateTable creates an empty table whose primary key is key. The key
// field is indexed immediately.
func (db *Database) CreateTable(name string, fields []FieldDef, key string) (*Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if name == "" {
		return nil, errors.New("table name must not be empty")
	}
	if _, exists := db.catalog.get(name); exists {
		return nil, &TableExistsError{Name: name}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("table %q must have at least one field", name)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("table %q: field name must not be empty", name)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("table %q: field %q specified more than once", name, f.Name)
		}
		if f.Type > TypeFloat {
			return nil, fmt.Errorf("table %q: field %q has unknown type %d", name, f.Name, f.Type)
		}
		seen[f.Name] = true
	}
	if !seen[key] {
		return nil, &KeyFieldError{Table: name, Field: key, Reason: KeyNotAField}
	}

	t := &Table{
		db: db,
		def: TableDef{
			Name:    name,
			Fields:  slices.Clone(fields),
			Key:     key,
			Indexes: []string{key},
			Order:   db.opts.Order,
		},
		pos:     make(map[any]int),
		indexes: map[string]*index.Tree{key: index.New(db.opts.Order, compareIndexKeys)},
	}

	if err := t.saveRecords(nil); err != nil {
		return nil, err
	}
	if err := t.saveDef(); err != nil {
		return nil, err
	}
	if err := t.saveIndex(key); err != nil {
		return nil, err
	}
	db.catalog.add(t)
	if err := db.catalog.save(db.dir); err != nil {
		db.catalog.remove(name)
		return nil, err
	}
	return t, nil
}

// GetTable returns the named table.
func (db *Database) GetTable(name string) (*Table, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.catalog.get(name)
	if !ok {
		return nil, &TableNotFoundError{Name: name}
	}
	return t, nil
}

// DropTable removes a table with its records, metadata, and indexes.
// Handles to the table fail with TableNotFoundError afterwards.
func (db *Database) DropTable(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.catalog.get(name)
	if !ok {
		return &TableNotFoundError{Name: name}
	}
	db.catalog.remove(name)
	if err := db.catalog.save(db.dir); err != nil {
		db.catalog.add(t)
		return err
	}
	t.dropped = true

	// The table is gone once the catalog no longer lists it; leftover
	// files are only logged.
	for _, field := range t.def.Indexes {
		if err := db.store.Remove(IndexFileName(name, field)); err != nil {
			log.Printf("drop table %q: remove index %q: %v", name, field, err)
		}
	}
	for _, file := range []string{tableFileName(name), metadataFileName(name)} {
		if err := os.Remove(filepath.Join(db.dir, file)); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("drop table %q: %v", name, err)
		}
	}
	return nil
}

// NumTables returns the number of tables.
func (db *Database) NumTables() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.catalog.names)
}

// TableNames returns the table names in creation order.
func (db *Database) TableNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.catalog.names)
}

// loadTable reads one table from disk.
func (db *Database) loadTable(name string) (*Table, error) {
	var def TableDef
	if err := readJSON(filepath.Join(db.dir, metadataFileName(name)), &def); err != nil {
		return nil, err
	}
	if def.Name != name {
		return nil, fmt.Errorf("metadata names table %q", def.Name)
	}
	if _, ok := def.Field(def.Key); !ok {
		return nil, &KeyFieldError{Table: name, Field: def.Key, Reason: KeyNotAField}
	}
	if def.Order < 2 {
		def.Order = db.opts.Order
	}
	if !def.HasIndex(def.Key) {
		def.Indexes = append([]string{def.Key}, def.Indexes...)
	}

	records, err := readRecords(filepath.Join(db.dir, tableFileName(name)), &def)
	if err != nil {
		return nil, err
	}

	t := &Table{
		db:      db,
		def:     def,
		records: records,
		indexes: make(map[string]*index.Tree, len(def.Indexes)),
	}
	if err := t.reindexPositions(); err != nil {
		return nil, err
	}

	for _, field := range def.Indexes {
		if _, ok := def.Field(field); !ok {
			return nil, &FieldNotFoundError{Field: field, Table: name}
		}
		tree, err := t.loadIndex(field)
		if err != nil {
			log.Printf("table %q: rebuilding index on %q: %v", name, field, err)
			tree = t.buildIndex(field)
			t.indexes[field] = tree
			if err := t.saveIndex(field); err != nil {
				return nil, err
			}
			continue
		}
		t.indexes[field] = tree
	}
	return t, nil
}
