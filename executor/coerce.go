package executor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"leafdb/parser"
	"leafdb/storage"
)

// coerceLiteral converts a parser literal to the target storage DataType.
// NULL stays NULL. Returns a QueryError with SQLSTATE 22P02 on failure.
func coerceLiteral(val any, target storage.DataType) (any, error) {
	if val == nil {
		return nil, nil
	}
	switch target {
	case storage.TypeInteger:
		switch v := val.(type) {
		case int64:
			return v, nil
		case float64:
			if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
				return nil, invalidInput("integer", val)
			}
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, invalidInput("integer", val)
			}
			return n, nil
		}

	case storage.TypeFloat:
		switch v := val.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, invalidInput("float", val)
			}
			return f, nil
		}

	case storage.TypeText:
		switch v := val.(type) {
		case string:
			return v, nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(v), nil
		}

	case storage.TypeBoolean:
		switch v := val.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "t", "yes", "on", "1":
				return true, nil
			case "false", "f", "no", "off", "0":
				return false, nil
			}
		}

	case storage.TypeTimestamp:
		if v, ok := val.(string); ok {
			ts, err := storage.ParseTimestamp(v)
			if err != nil {
				return nil, invalidInput("timestamp", val)
			}
			return ts, nil
		}
	}
	return nil, invalidInput(strings.ToLower(target.String()), val)
}

func invalidInput(typ string, val any) error {
	return &QueryError{Code: "22P02", Message: fmt.Sprintf("invalid input syntax for type %s: %q", typ, fmt.Sprint(val))}
}

// buildCriteria turns a WHERE list into storage criteria, coercing each
// literal to its field's type. A fractional literal compared with an
// INTEGER field is kept as a float so "age > 29.5" means what it says.
func buildCriteria(where []parser.Condition, def *storage.TableDef) ([]storage.Criteria, error) {
	criteria := make([]storage.Criteria, 0, len(where))
	for _, c := range where {
		f, ok := def.Field(c.Column)
		if !ok {
			return nil, WrapError(&storage.FieldNotFoundError{Field: c.Column, Table: def.Name})
		}
		v := c.Value
		if fv, isFloat := v.(float64); !isFloat || f.Type != storage.TypeInteger || fv == math.Trunc(fv) {
			var err error
			if v, err = coerceLiteral(v, f.Type); err != nil {
				return nil, err
			}
		}
		criteria = append(criteria, storage.Criteria{Field: c.Column, Op: c.Op, Value: v})
	}
	return criteria, nil
}

// buildRecord maps a VALUES tuple onto the table's fields. With no column
// list the values are taken in field order.
func buildRecord(columns []string, values []any, def *storage.TableDef) (storage.Record, error) {
	if len(columns) == 0 {
		if len(values) > len(def.Fields) {
			return nil, &QueryError{Code: "42601", Message: fmt.Sprintf("INSERT has more expressions than target columns (%d > %d)", len(values), len(def.Fields))}
		}
		columns = make([]string, len(values))
		for i := range values {
			columns[i] = def.Fields[i].Name
		}
	}
	rec := make(storage.Record, len(columns))
	for i, name := range columns {
		f, ok := def.Field(name)
		if !ok {
			return nil, WrapError(&storage.FieldNotFoundError{Field: name, Table: def.Name})
		}
		if _, dup := rec[name]; dup {
			return nil, &QueryError{Code: "42701", Message: fmt.Sprintf("column %q specified more than once", name)}
		}
		v, err := coerceLiteral(values[i], f.Type)
		if err != nil {
			return nil, err
		}
		rec[name] = v
	}
	return rec, nil
}
