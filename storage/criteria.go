package storage

// Comparison operators understood by Criteria.
const (
	OpEQ = "="
	OpNE = "!="
	OpLT = "<"
	OpLE = "<="
	OpGT = ">"
	OpGE = ">="
)

// Criteria is one selection criterion: Field Op Value. A query matches a
// record only if every criterion matches.
type Criteria struct {
	Field string
	Op    string
	Value any
}

// canonicalOp maps operator spellings onto the Op constants.
func canonicalOp(op string) (string, error) {
	switch op {
	case "=", "==":
		return OpEQ, nil
	case "!=", "<>":
		return OpNE, nil
	case OpLT, OpLE, OpGT, OpGE:
		return op, nil
	}
	return "", &OperatorError{Op: op}
}

// matches evaluates c, whose Op is canonical, against rec. NULL equals
// only NULL and is never ordered; values of different types are unequal.
func (c Criteria) matches(rec Record) bool {
	v := rec[c.Field]
	r := CompareValues(v, c.Value)
	if r == incomparable {
		same := v == nil && c.Value == nil
		switch c.Op {
		case OpEQ:
			return same
		case OpNE:
			return !same
		}
		return false
	}
	switch c.Op {
	case OpEQ:
		return r == 0
	case OpNE:
		return r != 0
	case OpLT:
		return r < 0
	case OpLE:
		return r <= 0
	case OpGT:
		return r > 0
	case OpGE:
		return r >= 0
	}
	return false
}

// indexRange returns the inclusive index-key bounds covering every entry
// that can satisfy c, or ok=false if the index cannot narrow c.
func (c Criteria) indexRange() (lo, hi any, ok bool) {
	if c.Value == nil {
		return nil, nil, false
	}
	switch c.Op {
	case OpEQ:
		return indexKey{c.Value, minPK}, indexKey{c.Value, maxPK}, true
	case OpLT:
		return nil, indexKey{c.Value, minPK}, true
	case OpLE:
		return nil, indexKey{c.Value, maxPK}, true
	case OpGT:
		return indexKey{c.Value, maxPK}, nil, true
	case OpGE:
		return indexKey{c.Value, minPK}, nil, true
	}
	return nil, nil, false
}

// prepareCriteria validates criteria against def and returns copies with
// canonical operators and normalized values.
func prepareCriteria(def *TableDef, criteria []Criteria) ([]Criteria, error) {
	out := make([]Criteria, len(criteria))
	for i, c := range criteria {
		f, ok := def.Field(c.Field)
		if !ok {
			return nil, &FieldNotFoundError{Field: c.Field, Table: def.Name}
		}
		op, err := canonicalOp(c.Op)
		if err != nil {
			return nil, err
		}
		v := normalize(c.Value)
		// INTEGER and FLOAT compare with each other; anything else must
		// match the field type exactly.
		if !checkType(f.Type, v) && !numeric(f.Type, v) {
			return nil, &TypeMismatchError{Field: c.Field, Want: f.Type, Value: v}
		}
		out[i] = Criteria{Field: c.Field, Op: op, Value: v}
	}
	return out, nil
}

func numeric(dt DataType, v any) bool {
	switch v.(type) {
	case int64, float64:
		return dt == TypeInteger || dt == TypeFloat
	}
	return false
}
