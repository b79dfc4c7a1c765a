package storage

import (
	"fmt"
	"strings"
)

// DataType identifies a field's data type.
type DataType uint8

const (
	TypeInteger DataType = iota
	TypeText
	TypeBoolean
	TypeTimestamp
	TypeFloat
)

func (d DataType) String() string {
	switch d {
	case TypeInteger:
		return "INTEGER"
	case TypeText:
		return "TEXT"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeFloat:
		return "FLOAT"
	default:
		return "UNKNOWN"
	}
}

// ParseDataType maps a type name, as written in SQL or in table metadata,
// to a DataType.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToUpper(s) {
	case "INTEGER", "INT", "BIGINT":
		return TypeInteger, nil
	case "TEXT", "STRING":
		return TypeText, nil
	case "BOOLEAN", "BOOL":
		return TypeBoolean, nil
	case "TIMESTAMP":
		return TypeTimestamp, nil
	case "FLOAT", "DOUBLE", "REAL":
		return TypeFloat, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", s)
	}
}

func (d DataType) MarshalText() ([]byte, error) {
	if d > TypeFloat {
		return nil, fmt.Errorf("unknown data type %d", d)
	}
	return []byte(d.String()), nil
}

func (d *DataType) UnmarshalText(b []byte) error {
	dt, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*d = dt
	return nil
}

// FieldDef describes a field of a table.
type FieldDef struct {
	Name string   `json:"name"`
	Type DataType `json:"type"`
}

// TableDef describes the schema of a table. It is stored as the table's
// metadata document.
type TableDef struct {
	Name    string     `json:"name"`
	Fields  []FieldDef `json:"fields"`
	Key     string     `json:"key"`     // primary key field
	Indexes []string   `json:"indexes"` // indexed fields, in creation order
	Order   int        `json:"order"`   // B+ tree order of every index on the table
}

// Field returns the definition of the named field.
func (d *TableDef) Field(name string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// HasIndex reports whether field is indexed.
func (d *TableDef) HasIndex(field string) bool {
	for _, f := range d.Indexes {
		if f == field {
			return true
		}
	}
	return false
}

// Record is a single row keyed by field name. Values are one of:
//
//	int64      (INTEGER)
//	float64    (FLOAT)
//	string     (TEXT)
//	bool       (BOOLEAN)
//	time.Time  (TIMESTAMP)
//	nil        (NULL)
type Record map[string]any

// clone returns a shallow copy of r.
func (r Record) clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// -------------------------------------------------------------------------
// Typed errors, mapped to SQLSTATE codes by the executor
// -------------------------------------------------------------------------

// TableExistsError is returned when creating a table that already exists.
type TableExistsError struct{ Name string }

func (e *TableExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Name)
}

// TableNotFoundError is returned when referencing a table that does not exist.
type TableNotFoundError struct{ Name string }

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q does not exist", e.Name)
}

// FieldNotFoundError is returned when referencing a field that does not exist.
type FieldNotFoundError struct{ Field, Table string }

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found in table %q", e.Field, e.Table)
}

// TypeMismatchError is returned when a value does not have its field's type.
type TypeMismatchError struct {
	Field string
	Want  DataType
	Value any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %q expects %s, got %T", e.Field, e.Want, e.Value)
}

// UniqueViolationError is returned when an insert would duplicate a
// primary key.
type UniqueViolationError struct {
	Table string
	Field string
	Value any
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("duplicate key value %v violates primary key %q of table %q", e.Value, e.Field, e.Table)
}

// Reasons carried by KeyFieldError.
const (
	KeyNotAField   = "not a field of the table"
	KeyNull        = "must not be NULL"
	KeyImmutable   = "cannot be changed"
	KeyIndexPinned = "its index cannot be dropped"
)

// KeyFieldError is returned when the primary key field is misused. Reason
// is one of the Key* constants, or describes corrupt table data.
type KeyFieldError struct {
	Table  string
	Field  string
	Reason string
}

func (e *KeyFieldError) Error() string {
	return fmt.Sprintf("primary key %q of table %q: %s", e.Field, e.Table, e.Reason)
}

// RecordNotFoundError is returned when no record has the given primary key.
type RecordNotFoundError struct {
	Table string
	Key   any
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("no record with key %v in table %q", e.Key, e.Table)
}

// IndexExistsError is returned when creating an index on a field that is
// already indexed.
type IndexExistsError struct{ Field, Table string }

func (e *IndexExistsError) Error() string {
	return fmt.Sprintf("index on field %q already exists on table %q", e.Field, e.Table)
}

// IndexNotFoundError is returned when referencing an index that does not exist.
type IndexNotFoundError struct{ Field, Table string }

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("no index on field %q of table %q", e.Field, e.Table)
}

// OperatorError is returned for a selection criterion with an unknown
// comparison operator.
type OperatorError struct{ Op string }

func (e *OperatorError) Error() string {
	return fmt.Sprintf("unknown comparison operator %q", e.Op)
}
