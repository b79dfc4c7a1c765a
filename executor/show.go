package executor

import (
	"bytes"
	"fmt"

	"leafdb/parser"
)

// execShowTables lists the tables in creation order.
func (e *Executor) execShowTables() (*Result, error) {
	names := e.db.TableNames()
	rows := make([][][]byte, len(names))
	for i, name := range names {
		rows[i] = [][]byte{[]byte(name)}
	}
	return &Result{
		Columns: []Column{textColumn("table_name")},
		Rows:    rows,
		Tag:     fmt.Sprintf("SELECT %d", len(rows)),
	}, nil
}

// execShowIndexes describes every index of a table and whether it passes
// verification against the table's records.
func (e *Executor) execShowIndexes(s *parser.ShowIndexesStmt) (*Result, error) {
	t, err := e.db.GetTable(s.Table)
	if err != nil {
		return nil, WrapError(err)
	}

	var rows [][][]byte
	for _, field := range t.Indexes() {
		st, err := t.IndexStats(field)
		if err != nil {
			return nil, WrapError(err)
		}
		rows = append(rows, [][]byte{
			[]byte(st.Field),
			formatValue(int64(st.Order)),
			formatValue(int64(st.Height)),
			formatValue(int64(st.Keys)),
			formatValue(t.VerifyIndex(field) == nil),
		})
	}
	return &Result{
		Columns: []Column{
			textColumn("field"),
			int8Column("order"),
			int8Column("height"),
			int8Column("keys"),
			{Name: "valid", TypeOID: OIDBool, TypeSize: 1},
		},
		Rows: rows,
		Tag:  fmt.Sprintf("SELECT %d", len(rows)),
	}, nil
}

// execShowIndex walks one index in pre-order, one row per node.
func (e *Executor) execShowIndex(s *parser.ShowIndexStmt) (*Result, error) {
	t, err := e.db.GetTable(s.Table)
	if err != nil {
		return nil, WrapError(err)
	}

	var rows [][][]byte
	err = t.WalkIndex(s.Column, func(depth int, values []any) {
		rows = append(rows, [][]byte{formatValue(int64(depth)), formatKeys(values)})
	})
	if err != nil {
		return nil, WrapError(err)
	}
	return &Result{
		Columns: []Column{int8Column("depth"), textColumn("keys")},
		Rows:    rows,
		Tag:     fmt.Sprintf("SELECT %d", len(rows)),
	}, nil
}

// formatKeys renders node keys as "[k1 k2 ...]".
func formatKeys(values []any) []byte {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.Write(formatValue(v))
	}
	b.WriteByte(']')
	return b.Bytes()
}
