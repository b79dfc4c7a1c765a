package storage

import (
	"fmt"
	"log"
	"path/filepath"
	"slices"
	"time"

	"leafdb/storage/index"
)

// Table is a handle to one table of a Database. Records are kept in
// insertion order; every indexed field maps (value, primary key) index
// keys to the record's primary key. The record document on disk is the
// source of truth: index snapshots are derived from it and are rebuilt on
// load if they disagree.
type Table struct {
	db      *Database
	def     TableDef
	records []Record
	pos     map[any]int // primary key → position in records
	indexes map[string]*index.Tree
	dropped bool
}

// timeKey is the map key used for TIMESTAMP primary keys, since equal
// instants need not be == as time.Time values.
type timeKey struct {
	sec  int64
	nsec int
}

func mapKey(v any) any {
	if ts, ok := v.(time.Time); ok {
		return timeKey{ts.Unix(), ts.Nanosecond()}
	}
	return v
}

// Name returns the table name.
func (t *Table) Name() string { return t.def.Name }

// Def returns a copy of the table definition.
func (t *Table) Def() TableDef {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()

	def := t.def
	def.Fields = slices.Clone(def.Fields)
	def.Indexes = slices.Clone(def.Indexes)
	return def
}

// Count returns the number of records.
func (t *Table) Count() (int, error) {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()

	if t.dropped {
		return 0, &TableNotFoundError{Name: t.def.Name}
	}
	return len(t.records), nil
}

// InsertRecord inserts one record. See InsertRecords.
func (t *Table) InsertRecord(rec Record) error {
	_, err := t.InsertRecords([]Record{rec})
	return err
}

// InsertRecords validates and inserts recs as a unit: if any record is
// invalid or would duplicate a primary key, nothing is inserted. Fields
// absent from a record are stored as NULL. The primary key must be set.
func (t *Table) InsertRecords(recs []Record) (int, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.dropped {
		return 0, &TableNotFoundError{Name: t.def.Name}
	}

	// Resolve all records first so uniqueness is checked before any write.
	resolved := make([]Record, 0, len(recs))
	seen := make(map[any]bool, len(recs))
	for _, rec := range recs {
		r, err := checkRecord(&t.def, rec)
		if err != nil {
			return 0, err
		}
		key := r[t.def.Key]
		if key == nil {
			return 0, &KeyFieldError{Table: t.def.Name, Field: t.def.Key, Reason: KeyNull}
		}
		mk := mapKey(key)
		if _, exists := t.pos[mk]; exists || seen[mk] {
			return 0, &UniqueViolationError{Table: t.def.Name, Field: t.def.Key, Value: key}
		}
		seen[mk] = true
		for _, f := range t.def.Fields {
			if _, ok := r[f.Name]; !ok {
				r[f.Name] = nil
			}
		}
		resolved = append(resolved, r)
	}
	if len(resolved) == 0 {
		return 0, nil
	}

	records := slices.Concat(t.records, resolved)
	if err := t.saveRecords(records); err != nil {
		return 0, err
	}
	for i, r := range resolved {
		t.pos[mapKey(r[t.def.Key])] = len(t.records) + i
	}
	t.records = records

	for field, tree := range t.indexes {
		for _, r := range resolved {
			if k, ok := t.entry(field, r); ok {
				tree.Insert(k, k.PK)
			}
		}
	}
	return len(resolved), t.saveIndexes(t.def.Indexes...)
}

// GetRecord returns a copy of the record whose primary key is key, looked
// up through the primary key index. It returns nil, nil if there is none.
func (t *Table) GetRecord(key any) (Record, error) {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()

	if t.dropped {
		return nil, &TableNotFoundError{Name: t.def.Name}
	}
	p, ok := t.lookup(normalize(key))
	if !ok {
		return nil, nil
	}
	return t.records[p].clone(), nil
}

// lookup finds the position of the record with primary key key.
func (t *Table) lookup(key any) (int, bool) {
	if key == nil {
		return 0, false
	}
	b, ok := t.indexes[t.def.Key].Search(indexKey{Value: key, PK: key})
	if !ok || b.IsTombstone() || len(b) == 0 {
		return 0, false
	}
	p, ok := t.pos[mapKey(b[0])]
	return p, ok
}

// UpdateRecord applies changes to the record with primary key key. The
// primary key itself cannot be changed.
func (t *Table) UpdateRecord(key any, changes Record) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.dropped {
		return &TableNotFoundError{Name: t.def.Name}
	}
	key = normalize(key)
	p, ok := t.lookup(key)
	if !ok {
		return &RecordNotFoundError{Table: t.def.Name, Key: key}
	}
	return t.update([]int{p}, changes)
}

// UpdateRecords applies changes to every record matching criteria and
// returns the number of records updated.
func (t *Table) UpdateRecords(criteria []Criteria, changes Record) (int, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.dropped {
		return 0, &TableNotFoundError{Name: t.def.Name}
	}
	positions, err := t.match(criteria)
	if err != nil {
		return 0, err
	}
	if err := t.update(positions, changes); err != nil {
		return 0, err
	}
	return len(positions), nil
}

func (t *Table) update(positions []int, changes Record) error {
	c, err := checkRecord(&t.def, changes)
	if err != nil {
		return err
	}
	if v, ok := c[t.def.Key]; ok {
		for _, p := range positions {
			if CompareValues(v, t.records[p][t.def.Key]) != 0 {
				return &KeyFieldError{Table: t.def.Name, Field: t.def.Key, Reason: KeyImmutable}
			}
		}
		delete(c, t.def.Key)
	}
	if len(positions) == 0 || len(c) == 0 {
		return nil
	}

	records := slices.Clone(t.records)
	for _, p := range positions {
		r := records[p].clone()
		for name, v := range c {
			r[name] = v
		}
		records[p] = r
	}
	if err := t.saveRecords(records); err != nil {
		return err
	}

	var touched []string
	for _, field := range t.def.Indexes {
		if _, ok := c[field]; !ok {
			continue
		}
		touched = append(touched, field)
		tree := t.indexes[field]
		for _, p := range positions {
			if k, ok := t.entry(field, t.records[p]); ok {
				tree.Delete(k)
			}
			if k, ok := t.entry(field, records[p]); ok {
				tree.Insert(k, k.PK)
			}
		}
	}
	t.records = records
	return t.saveIndexes(touched...)
}

// DeleteRecord deletes the record with primary key key. Its entries in
// every index become tombstones.
func (t *Table) DeleteRecord(key any) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.dropped {
		return &TableNotFoundError{Name: t.def.Name}
	}
	key = normalize(key)
	p, ok := t.lookup(key)
	if !ok {
		return &RecordNotFoundError{Table: t.def.Name, Key: key}
	}
	return t.delete([]int{p})
}

// DeleteRecords deletes every record matching criteria and returns the
// number deleted. With no criteria every record is deleted.
func (t *Table) DeleteRecords(criteria []Criteria) (int, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.dropped {
		return 0, &TableNotFoundError{Name: t.def.Name}
	}
	positions, err := t.match(criteria)
	if err != nil {
		return 0, err
	}
	if err := t.delete(positions); err != nil {
		return 0, err
	}
	return len(positions), nil
}

func (t *Table) delete(positions []int) error {
	if len(positions) == 0 {
		return nil
	}
	doomed := make(map[int]bool, len(positions))
	for _, p := range positions {
		doomed[p] = true
	}
	records := make([]Record, 0, len(t.records)-len(doomed))
	for i, r := range t.records {
		if !doomed[i] {
			records = append(records, r)
		}
	}
	if err := t.saveRecords(records); err != nil {
		return err
	}

	for field, tree := range t.indexes {
		for p := range doomed {
			if k, ok := t.entry(field, t.records[p]); ok {
				tree.Delete(k)
			}
		}
	}
	t.records = records
	if err := t.reindexPositions(); err != nil {
		return err
	}
	return t.saveIndexes(t.def.Indexes...)
}

// QueryTable returns copies of the records matching every criterion, in
// insertion order. A criterion on an indexed field narrows the candidates
// through that field's index.
func (t *Table) QueryTable(criteria []Criteria) ([]Record, error) {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()

	if t.dropped {
		return nil, &TableNotFoundError{Name: t.def.Name}
	}
	positions, err := t.match(criteria)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(positions))
	for i, p := range positions {
		out[i] = t.records[p].clone()
	}
	return out, nil
}

// match returns the sorted positions of records satisfying criteria.
func (t *Table) match(criteria []Criteria) ([]int, error) {
	cs, err := prepareCriteria(&t.def, criteria)
	if err != nil {
		return nil, err
	}

	candidates, indexed := t.candidates(cs)
	if !indexed {
		candidates = make([]int, len(t.records))
		for i := range candidates {
			candidates[i] = i
		}
	}

	var out []int
	for _, p := range candidates {
		if matchesAll(cs, t.records[p]) {
			out = append(out, p)
		}
	}
	return out, nil
}

// candidates narrows the search using the first criterion that an index
// can serve. It reports false if no criterion could use an index.
func (t *Table) candidates(cs []Criteria) ([]int, bool) {
	c, ok := t.servingCriterion(cs)
	if !ok {
		return nil, false
	}
	lo, hi, _ := c.indexRange()
	var positions []int
	t.indexes[c.Field].Scan(lo, hi, func(_ any, b index.Bucket) bool {
		for _, pk := range b {
			if p, ok := t.pos[mapKey(pk)]; ok {
				positions = append(positions, p)
			}
		}
		return true
	})
	slices.Sort(positions)
	return positions, true
}

func (t *Table) servingCriterion(cs []Criteria) (Criteria, bool) {
	for _, c := range cs {
		if _, ok := t.indexes[c.Field]; !ok {
			continue
		}
		if _, _, ok := c.indexRange(); ok {
			return c, true
		}
	}
	return Criteria{}, false
}

// IndexFor reports the indexed field that QueryTable would use to narrow
// criteria, if any.
func (t *Table) IndexFor(criteria []Criteria) (string, bool) {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()

	cs, err := prepareCriteria(&t.def, criteria)
	if err != nil || t.dropped {
		return "", false
	}
	c, ok := t.servingCriterion(cs)
	return c.Field, ok
}

func matchesAll(cs []Criteria, rec Record) bool {
	for _, c := range cs {
		if !c.matches(rec) {
			return false
		}
	}
	return true
}

// CreateIndex builds an index on field from the current records.
func (t *Table) CreateIndex(field string) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.dropped {
		return &TableNotFoundError{Name: t.def.Name}
	}
	if _, ok := t.def.Field(field); !ok {
		return &FieldNotFoundError{Field: field, Table: t.def.Name}
	}
	if t.def.HasIndex(field) {
		return &IndexExistsError{Field: field, Table: t.def.Name}
	}

	t.indexes[field] = t.buildIndex(field)
	if err := t.saveIndex(field); err != nil {
		delete(t.indexes, field)
		return err
	}
	t.def.Indexes = append(t.def.Indexes, field)
	if err := t.saveDef(); err != nil {
		t.def.Indexes = t.def.Indexes[:len(t.def.Indexes)-1]
		delete(t.indexes, field)
		return err
	}
	return nil
}

// DropIndex removes the index on field. The primary key index cannot be
// dropped.
func (t *Table) DropIndex(field string) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if t.dropped {
		return &TableNotFoundError{Name: t.def.Name}
	}
	if field == t.def.Key {
		return &KeyFieldError{Table: t.def.Name, Field: field, Reason: KeyIndexPinned}
	}
	if !t.def.HasIndex(field) {
		return &IndexNotFoundError{Field: field, Table: t.def.Name}
	}

	prev := t.def.Indexes
	t.def.Indexes = slices.DeleteFunc(slices.Clone(prev), func(f string) bool { return f == field })
	if err := t.saveDef(); err != nil {
		t.def.Indexes = prev
		return err
	}
	delete(t.indexes, field)
	if err := t.db.store.Remove(IndexFileName(t.def.Name, field)); err != nil {
		log.Printf("drop index %q on %q: %v", field, t.def.Name, err)
	}
	return nil
}

// Indexes returns the indexed fields in creation order.
func (t *Table) Indexes() []string {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	return slices.Clone(t.def.Indexes)
}

// IndexStats describes the shape of one index.
type IndexStats struct {
	Field  string
	Order  int
	Height int
	Keys   int // distinct index keys, tombstones included
}

// IndexStats reports the shape of the index on field.
func (t *Table) IndexStats(field string) (IndexStats, error) {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()

	tree, err := t.index(field)
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{Field: field, Order: tree.Order(), Height: tree.Height(), Keys: tree.Len()}, nil
}

// WalkIndex visits every node of the index on field in pre-order, giving
// its depth and the field values of its keys.
func (t *Table) WalkIndex(field string, fn func(depth int, values []any)) error {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()

	tree, err := t.index(field)
	if err != nil {
		return err
	}
	tree.Walk(func(depth int, keys []any) {
		values := make([]any, len(keys))
		for i, k := range keys {
			values[i] = k.(indexKey).Value
		}
		fn(depth, values)
	})
	return nil
}

// VerifyIndex checks the structure of the index on field and that it
// holds exactly one live entry per record with a non-NULL value.
func (t *Table) VerifyIndex(field string) error {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()

	tree, err := t.index(field)
	if err != nil {
		return err
	}
	return t.checkIndex(field, tree)
}

func (t *Table) index(field string) (*index.Tree, error) {
	if t.dropped {
		return nil, &TableNotFoundError{Name: t.def.Name}
	}
	tree, ok := t.indexes[field]
	if !ok {
		return nil, &IndexNotFoundError{Field: field, Table: t.def.Name}
	}
	return tree, nil
}

// -------------------------------------------------------------------------
// Index maintenance
// -------------------------------------------------------------------------

// entry returns the index key for rec in the index on field. NULL values
// are not indexed.
func (t *Table) entry(field string, rec Record) (indexKey, bool) {
	v := rec[field]
	if v == nil {
		return indexKey{}, false
	}
	return indexKey{Value: v, PK: rec[t.def.Key]}, true
}

func (t *Table) buildIndex(field string) *index.Tree {
	tree := index.New(t.def.Order, compareIndexKeys)
	for _, r := range t.records {
		if k, ok := t.entry(field, r); ok {
			tree.Insert(k, k.PK)
		}
	}
	return tree
}

func (t *Table) checkIndex(field string, tree *index.Tree) error {
	if err := tree.Verify(); err != nil {
		return err
	}
	live := 0
	tree.Scan(nil, nil, func(any, index.Bucket) bool {
		live++
		return true
	})
	want := 0
	for _, r := range t.records {
		k, ok := t.entry(field, r)
		if !ok {
			continue
		}
		want++
		b, found := tree.Search(k)
		if !found || b.IsTombstone() || len(b) != 1 || CompareValues(b[0], k.PK) != 0 {
			return fmt.Errorf("record %v has no live index entry", k.PK)
		}
	}
	if live != want {
		return fmt.Errorf("index has %d live entries, table has %d indexed values", live, want)
	}
	return nil
}

// reindexPositions rebuilds the primary key → position map.
func (t *Table) reindexPositions() error {
	t.pos = make(map[any]int, len(t.records))
	for i, r := range t.records {
		key := r[t.def.Key]
		if key == nil {
			return &KeyFieldError{Table: t.def.Name, Field: t.def.Key, Reason: fmt.Sprintf("record %d has no key", i)}
		}
		mk := mapKey(key)
		if _, dup := t.pos[mk]; dup {
			return &UniqueViolationError{Table: t.def.Name, Field: t.def.Key, Value: key}
		}
		t.pos[mk] = i
	}
	return nil
}

// -------------------------------------------------------------------------
// Persistence
// -------------------------------------------------------------------------

func (t *Table) saveRecords(records []Record) error {
	return writeRecords(filepath.Join(t.db.dir, tableFileName(t.def.Name)), records)
}

func (t *Table) saveDef() error {
	return writeJSON(filepath.Join(t.db.dir, metadataFileName(t.def.Name)), &t.def)
}

func (t *Table) saveIndex(field string) error {
	data := encodeSnapshot(t.indexes[field].Snapshot(), t.db.opts.Compress)
	if err := t.db.store.Save(IndexFileName(t.def.Name, field), data); err != nil {
		return fmt.Errorf("save index %q on %q: %w", field, t.def.Name, err)
	}
	return nil
}

func (t *Table) saveIndexes(fields ...string) error {
	for _, field := range fields {
		if err := t.saveIndex(field); err != nil {
			return err
		}
	}
	return nil
}

// loadIndex restores the index on field from its snapshot and checks it
// against the table's order and records.
func (t *Table) loadIndex(field string) (*index.Tree, error) {
	data, err := t.db.store.Load(IndexFileName(t.def.Name, field))
	if err != nil {
		return nil, err
	}
	tree, err := DecodeIndex(data)
	if err != nil {
		return nil, err
	}
	if tree.Order() != t.def.Order {
		return nil, fmt.Errorf("snapshot has order %d, table has order %d", tree.Order(), t.def.Order)
	}
	if err := t.checkIndex(field, tree); err != nil {
		return nil, err
	}
	return tree, nil
}
