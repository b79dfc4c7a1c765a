package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampFormats lists the accepted input formats for TIMESTAMP values,
// tried in order. Parsed times are converted to UTC.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses s into a UTC time.Time. Strings without a zone
// are taken to be UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// normalize widens Go numeric types to the canonical int64 and float64
// representations so callers may pass plain ints.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case float32:
		return float64(n)
	case time.Time:
		return n.UTC()
	}
	return v
}

// checkType reports whether v, already normalized, is a legal value for a
// field of type dt. NULL is legal for every type.
func checkType(dt DataType, v any) bool {
	switch v.(type) {
	case nil:
		return true
	case int64:
		return dt == TypeInteger
	case float64:
		return dt == TypeFloat
	case string:
		return dt == TypeText
	case bool:
		return dt == TypeBoolean
	case time.Time:
		return dt == TypeTimestamp
	}
	return false
}

// checkRecord validates every value of rec against def and returns a
// normalized copy. Fields missing from rec are left out of the copy.
func checkRecord(def *TableDef, rec Record) (Record, error) {
	out := make(Record, len(rec))
	for name, v := range rec {
		f, ok := def.Field(name)
		if !ok {
			return nil, &FieldNotFoundError{Field: name, Table: def.Name}
		}
		v = normalize(v)
		if !checkType(f.Type, v) {
			return nil, &TypeMismatchError{Field: name, Want: f.Type, Value: v}
		}
		out[name] = v
	}
	return out, nil
}

// decodeField converts a value produced by encoding/json, with numbers
// kept as json.Number, back into the canonical Go type for dt.
func decodeField(dt DataType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch dt {
	case TypeInteger:
		if n, ok := v.(json.Number); ok {
			return n.Int64()
		}
	case TypeFloat:
		if n, ok := v.(json.Number); ok {
			return n.Float64()
		}
	case TypeText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeTimestamp:
		if s, ok := v.(string); ok {
			return ParseTimestamp(s)
		}
	}
	return nil, fmt.Errorf("cannot decode %T as %s", v, dt)
}
