package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic replaces path with data. The data is written to a
// temporary file in the same directory, synced, and renamed over path, so
// readers see either the old contents or the new ones.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// writeJSON atomically replaces path with the indented JSON encoding of v.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// readJSON decodes the JSON document at path into v, keeping numbers as
// json.Number. A missing file is reported as os.ErrNotExist.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readRecords loads a table document: a JSON array of objects, one per
// record, in insertion order.
func readRecords(path string, def *TableDef) ([]Record, error) {
	var raw []map[string]any
	if err := readJSON(path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	records := make([]Record, len(raw))
	for i, obj := range raw {
		rec := make(Record, len(obj))
		for name, v := range obj {
			f, ok := def.Field(name)
			if !ok {
				return nil, fmt.Errorf("record %d: %w", i, &FieldNotFoundError{Field: name, Table: def.Name})
			}
			val, err := decodeField(f.Type, v)
			if err != nil {
				return nil, fmt.Errorf("record %d field %q: %w", i, name, err)
			}
			rec[name] = val
		}
		records[i] = rec
	}
	return records, nil
}

// writeRecords atomically replaces the table document at path.
func writeRecords(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	return writeJSON(path, records)
}
