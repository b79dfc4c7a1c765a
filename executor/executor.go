package executor

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"leafdb/parser"
	"leafdb/storage"
)

// Executor takes a parsed SQL statement and executes it against the
// database, returning a Result suitable for the wire protocol.
type Executor struct {
	db *storage.Database
}

// New creates an Executor backed by the given database.
func New(db *storage.Database) *Executor {
	return &Executor{db: db}
}

// Execute runs a single SQL statement (no tracing overhead).
func (e *Executor) Execute(sql string) (*Result, error) {
	return e.execute(sql, nil)
}

// ExecuteTraced runs a single SQL statement with timing instrumentation.
func (e *Executor) ExecuteTraced(sql string) (*Result, *Trace, error) {
	tr := &Trace{}
	start := time.Now()
	result, err := e.execute(sql, tr)
	tr.Total = time.Since(start)
	return result, tr, err
}

func (e *Executor) execute(sql string, tr *Trace) (*Result, error) {
	parseStart := time.Now()
	stmt, err := parser.Parse(sql)
	if tr != nil {
		tr.Parse = time.Since(parseStart)
	}
	if err != nil {
		return nil, &QueryError{Code: "42601", Message: err.Error()} // syntax_error
	}

	switch s := stmt.(type) {
	case *parser.CreateTableStmt:
		tr.describe("CREATE TABLE", s.Name)
		return e.execCreateTable(s, tr)
	case *parser.DropTableStmt:
		tr.describe("DROP TABLE", s.Name)
		return e.execDropTable(s, tr)
	case *parser.CreateIndexStmt:
		tr.describe("CREATE INDEX", s.Table)
		return e.execCreateIndex(s, tr)
	case *parser.DropIndexStmt:
		tr.describe("DROP INDEX", s.Table)
		return e.execDropIndex(s, tr)
	case *parser.InsertStmt:
		tr.describe("INSERT", s.Table)
		return e.execInsert(s, tr)
	case *parser.SelectStmt:
		tr.describe("SELECT", s.Table)
		return e.execSelect(s, tr)
	case *parser.UpdateStmt:
		tr.describe("UPDATE", s.Table)
		return e.execUpdate(s, tr)
	case *parser.DeleteStmt:
		tr.describe("DELETE", s.Table)
		return e.execDelete(s, tr)
	case *parser.ShowTablesStmt:
		tr.describe("SHOW", "")
		return e.execShowTables()
	case *parser.ShowIndexesStmt:
		tr.describe("SHOW", s.Table)
		return e.execShowIndexes(s)
	case *parser.ShowIndexStmt:
		tr.describe("SHOW", s.Table)
		return e.execShowIndex(s)
	default:
		return nil, &QueryError{Code: "42601", Message: fmt.Sprintf("unsupported statement type %T", stmt)}
	}
}

// -------------------------------------------------------------------------
// Statement executors
// -------------------------------------------------------------------------

func (e *Executor) execCreateTable(s *parser.CreateTableStmt, tr *Trace) (*Result, error) {
	planStart := time.Now()

	fields := make([]storage.FieldDef, len(s.Columns))
	var key string
	for i, c := range s.Columns {
		dt, err := storage.ParseDataType(c.DataType)
		if err != nil {
			return nil, &QueryError{Code: "42704", Message: fmt.Sprintf("type %q does not exist", c.DataType)}
		}
		fields[i] = storage.FieldDef{Name: c.Name, Type: dt}
		if c.PrimaryKey {
			key = c.Name
		}
	}
	if key == "" {
		return nil, &QueryError{Code: "42P16", Message: fmt.Sprintf("table %q must have a PRIMARY KEY column", s.Name)}
	}
	tr.planned(planStart)

	execStart := time.Now()
	res := &Result{Tag: "CREATE TABLE"}
	_, err := e.db.CreateTable(s.Name, fields, key)
	var exists *storage.TableExistsError
	if errors.As(err, &exists) && s.IfNotExists {
		res.Notice = fmt.Sprintf("table %q already exists, skipping", s.Name)
	} else if err != nil {
		return nil, WrapError(err)
	}
	tr.executed(execStart, 0)
	return res, nil
}

func (e *Executor) execDropTable(s *parser.DropTableStmt, tr *Trace) (*Result, error) {
	execStart := time.Now()
	res := &Result{Tag: "DROP TABLE"}
	err := e.db.DropTable(s.Name)
	var missing *storage.TableNotFoundError
	if errors.As(err, &missing) && s.IfExists {
		res.Notice = fmt.Sprintf("table %q does not exist, skipping", s.Name)
	} else if err != nil {
		return nil, WrapError(err)
	}
	tr.executed(execStart, 0)
	return res, nil
}

func (e *Executor) execCreateIndex(s *parser.CreateIndexStmt, tr *Trace) (*Result, error) {
	t, err := e.db.GetTable(s.Table)
	if err != nil {
		return nil, WrapError(err)
	}

	execStart := time.Now()
	res := &Result{Tag: "CREATE INDEX"}
	err = t.CreateIndex(s.Column)
	var exists *storage.IndexExistsError
	if errors.As(err, &exists) && s.IfNotExists {
		res.Notice = fmt.Sprintf("index on %q already exists, skipping", s.Column)
	} else if err != nil {
		return nil, WrapError(err)
	}
	tr.executed(execStart, 0)
	return res, nil
}

func (e *Executor) execDropIndex(s *parser.DropIndexStmt, tr *Trace) (*Result, error) {
	t, err := e.db.GetTable(s.Table)
	if err != nil {
		return nil, WrapError(err)
	}

	execStart := time.Now()
	res := &Result{Tag: "DROP INDEX"}
	err = t.DropIndex(s.Column)
	var missing *storage.IndexNotFoundError
	if errors.As(err, &missing) && s.IfExists {
		res.Notice = fmt.Sprintf("index on %q does not exist, skipping", s.Column)
	} else if err != nil {
		return nil, WrapError(err)
	}
	tr.executed(execStart, 0)
	return res, nil
}

func (e *Executor) execInsert(s *parser.InsertStmt, tr *Trace) (*Result, error) {
	planStart := time.Now()

	t, err := e.db.GetTable(s.Table)
	if err != nil {
		return nil, WrapError(err)
	}
	def := t.Def()

	recs := make([]storage.Record, len(s.Values))
	for i, values := range s.Values {
		rec, err := buildRecord(s.Columns, values, &def)
		if err != nil {
			return nil, err
		}
		recs[i] = rec
	}
	tr.planned(planStart)

	execStart := time.Now()
	n, err := t.InsertRecords(recs)
	if err != nil {
		return nil, WrapError(err)
	}
	tr.executed(execStart, n)
	return &Result{Tag: fmt.Sprintf("INSERT 0 %d", n)}, nil
}

func (e *Executor) execSelect(s *parser.SelectStmt, tr *Trace) (*Result, error) {
	planStart := time.Now()

	t, err := e.db.GetTable(s.Table)
	if err != nil {
		return nil, WrapError(err)
	}
	def := t.Def()

	criteria, err := buildCriteria(s.Where, &def)
	if err != nil {
		return nil, err
	}

	fields := def.Fields
	if len(s.Columns) > 0 {
		fields = make([]storage.FieldDef, len(s.Columns))
		for i, name := range s.Columns {
			f, ok := def.Field(name)
			if !ok {
				return nil, WrapError(&storage.FieldNotFoundError{Field: name, Table: def.Name})
			}
			fields[i] = f
		}
	}
	if tr != nil {
		tr.IndexField, _ = t.IndexFor(criteria)
	}
	tr.planned(planStart)

	execStart := time.Now()
	recs, err := t.QueryTable(criteria)
	if err != nil {
		return nil, WrapError(err)
	}

	if s.Count {
		tr.executed(execStart, 1)
		return &Result{
			Columns: []Column{int8Column("count")},
			Rows:    [][][]byte{{formatValue(int64(len(recs)))}},
			Tag:     "SELECT 1",
		}, nil
	}

	cols := make([]Column, len(fields))
	for i, f := range fields {
		cols[i] = Column{Name: f.Name, TypeOID: typeOID(f.Type), TypeSize: typeSize(f.Type)}
	}
	rows := make([][][]byte, len(recs))
	for i, rec := range recs {
		row := make([][]byte, len(fields))
		for j, f := range fields {
			row[j] = formatValue(rec[f.Name])
		}
		rows[i] = row
	}
	tr.executed(execStart, len(rows))
	return &Result{Columns: cols, Rows: rows, Tag: fmt.Sprintf("SELECT %d", len(rows))}, nil
}

func (e *Executor) execUpdate(s *parser.UpdateStmt, tr *Trace) (*Result, error) {
	planStart := time.Now()

	t, err := e.db.GetTable(s.Table)
	if err != nil {
		return nil, WrapError(err)
	}
	def := t.Def()

	changes := make(storage.Record, len(s.Sets))
	for _, sc := range s.Sets {
		f, ok := def.Field(sc.Column)
		if !ok {
			return nil, WrapError(&storage.FieldNotFoundError{Field: sc.Column, Table: def.Name})
		}
		if _, dup := changes[sc.Column]; dup {
			return nil, &QueryError{Code: "42601", Message: fmt.Sprintf("multiple assignments to same column %q", sc.Column)}
		}
		v, err := coerceLiteral(sc.Value, f.Type)
		if err != nil {
			return nil, err
		}
		changes[sc.Column] = v
	}
	criteria, err := buildCriteria(s.Where, &def)
	if err != nil {
		return nil, err
	}
	tr.planned(planStart)

	execStart := time.Now()
	n, err := t.UpdateRecords(criteria, changes)
	if err != nil {
		return nil, WrapError(err)
	}
	tr.executed(execStart, n)
	return &Result{Tag: fmt.Sprintf("UPDATE %d", n)}, nil
}

func (e *Executor) execDelete(s *parser.DeleteStmt, tr *Trace) (*Result, error) {
	planStart := time.Now()

	t, err := e.db.GetTable(s.Table)
	if err != nil {
		return nil, WrapError(err)
	}
	def := t.Def()
	criteria, err := buildCriteria(s.Where, &def)
	if err != nil {
		return nil, err
	}
	tr.planned(planStart)

	execStart := time.Now()
	n, err := t.DeleteRecords(criteria)
	if err != nil {
		return nil, WrapError(err)
	}
	tr.executed(execStart, n)
	return &Result{Tag: fmt.Sprintf("DELETE %d", n)}, nil
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func typeOID(dt storage.DataType) int32 {
	switch dt {
	case storage.TypeInteger:
		return OIDInt8
	case storage.TypeText:
		return OIDText
	case storage.TypeBoolean:
		return OIDBool
	case storage.TypeTimestamp:
		return OIDTimestamp
	case storage.TypeFloat:
		return OIDFloat8
	default:
		return OIDUnknown
	}
}

func typeSize(dt storage.DataType) int16 {
	switch dt {
	case storage.TypeInteger, storage.TypeTimestamp, storage.TypeFloat:
		return 8
	case storage.TypeBoolean:
		return 1
	default:
		return -1 // variable length
	}
}

// formatValue converts a storage value to its text-encoded wire format.
// nil means SQL NULL.
func formatValue(v any) []byte {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case int64:
		return strconv.AppendInt(nil, val, 10)
	case float64:
		return strconv.AppendFloat(nil, val, 'g', -1, 64)
	case string:
		return []byte(val)
	case bool:
		if val {
			return []byte("t")
		}
		return []byte("f")
	case time.Time:
		return []byte(val.UTC().Format("2006-01-02 15:04:05.999999"))
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}
