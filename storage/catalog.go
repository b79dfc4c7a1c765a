package storage

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
)

// catalog tracks the open tables of a database. Table names, in creation
// order, are persisted in DatabaseMetadataFile; each table's definition
// lives in its own metadata file.
type catalog struct {
	names  []string
	tables map[string]*Table
}

type databaseMetadata struct {
	Tables []string `json:"tables"`
}

func newCatalog() *catalog {
	return &catalog{tables: make(map[string]*Table)}
}

// readCatalogNames loads the table list from dir. A missing metadata file
// means an empty database.
func readCatalogNames(dir string) ([]string, error) {
	var md databaseMetadata
	err := readJSON(filepath.Join(dir, DatabaseMetadataFile), &md)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return md.Tables, err
}

func (c *catalog) save(dir string) error {
	names := c.names
	if names == nil {
		names = []string{}
	}
	return writeJSON(filepath.Join(dir, DatabaseMetadataFile), databaseMetadata{Tables: names})
}

func (c *catalog) add(t *Table) {
	c.names = append(c.names, t.def.Name)
	c.tables[t.def.Name] = t
}

func (c *catalog) remove(name string) {
	c.names = slices.DeleteFunc(c.names, func(n string) bool { return n == name })
	delete(c.tables, name)
}

func (c *catalog) get(name string) (*Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}
