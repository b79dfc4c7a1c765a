package executor

import (
	"errors"
	"strings"
	"testing"

	"leafdb/storage"
)

func setup(t *testing.T) *Executor {
	t.Helper()
	return setupDir(t, t.TempDir())
}

func setupDir(t *testing.T, dir string) *Executor {
	t.Helper()
	db, err := storage.Open(dir, storage.Options{Order: 4})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func exec(t *testing.T, e *Executor, sql string) *Result {
	t.Helper()
	r, err := e.Execute(sql)
	if err != nil {
		t.Fatalf("Execute(%q): %v", sql, err)
	}
	return r
}

// rowStrings flattens a result into one string per row, NULL as "NULL".
func rowStrings(r *Result) []string {
	out := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		vals := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				vals[j] = "NULL"
			} else {
				vals[j] = string(v)
			}
		}
		out[i] = strings.Join(vals, "|")
	}
	return out
}

func assertRows(t *testing.T, r *Result, want ...string) {
	t.Helper()
	got := rowStrings(r)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("rows = %q, want %q", got, want)
	}
}

func seedUsers(t *testing.T, e *Executor) {
	t.Helper()
	exec(t, e, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, age INTEGER, active BOOLEAN)")
	exec(t, e, `INSERT INTO users VALUES
		(1, 'alice', 30, TRUE),
		(2, 'bob', 25, FALSE),
		(3, 'carol', 30, TRUE),
		(4, 'dave', NULL, NULL)`)
}

// -------------------------------------------------------------------------
// Full round-trip tests
// -------------------------------------------------------------------------

func TestExecutor_CreateInsertSelect(t *testing.T) {
	e := setup(t)

	r := exec(t, e, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, active BOOLEAN)")
	if r.Tag != "CREATE TABLE" {
		t.Errorf("tag = %q, want CREATE TABLE", r.Tag)
	}

	r = exec(t, e, "INSERT INTO users (id, name, active) VALUES (1, 'alice', TRUE), (2, 'bob', FALSE)")
	if r.Tag != "INSERT 0 2" {
		t.Errorf("tag = %q, want INSERT 0 2", r.Tag)
	}

	r = exec(t, e, "SELECT * FROM users")
	if r.Tag != "SELECT 2" {
		t.Errorf("tag = %q, want SELECT 2", r.Tag)
	}
	if len(r.Columns) != 3 {
		t.Fatalf("columns = %d, want 3", len(r.Columns))
	}
	assertRows(t, r, "1|alice|t", "2|bob|f")
}

func TestExecutor_SelectSpecificColumns(t *testing.T) {
	e := setup(t)
	seedUsers(t, e)

	r := exec(t, e, "SELECT name, id FROM users WHERE id = 2")
	if len(r.Columns) != 2 || r.Columns[0].Name != "name" || r.Columns[1].Name != "id" {
		t.Fatalf("columns = %+v, want [name id]", r.Columns)
	}
	assertRows(t, r, "bob|2")
}

func TestExecutor_SelectWhere(t *testing.T) {
	e := setup(t)
	seedUsers(t, e)

	tests := []struct {
		where string
		want  []string
	}{
		{"age = 30", []string{"1", "3"}},
		{"age == 30", []string{"1", "3"}},
		{"age <> 30", []string{"2", "4"}},
		{"age >= 25 AND active = FALSE", []string{"2"}},
		{"age > 29.5", []string{"1", "3"}},
		{"age < 25", nil},
		{"age IS NULL", []string{"4"}},
		{"age IS NOT NULL", []string{"1", "2", "3"}},
		{"name > 'b'", []string{"2", "3", "4"}},
		{"active = 't'", []string{"1", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.where, func(t *testing.T) {
			r := exec(t, e, "SELECT id FROM users WHERE "+tt.where)
			assertRows(t, r, tt.want...)
		})
	}

	// The same answers must come back once age is indexed.
	exec(t, e, "CREATE INDEX ON users (age)")
	for _, tt := range tests {
		t.Run("indexed "+tt.where, func(t *testing.T) {
			r := exec(t, e, "SELECT id FROM users WHERE "+tt.where)
			assertRows(t, r, tt.want...)
		})
	}
}

func TestExecutor_Count(t *testing.T) {
	e := setup(t)
	seedUsers(t, e)

	r := exec(t, e, "SELECT COUNT(*) FROM users WHERE age = 30")
	if len(r.Columns) != 1 || r.Columns[0].Name != "count" || r.Columns[0].TypeOID != OIDInt8 {
		t.Fatalf("columns = %+v", r.Columns)
	}
	assertRows(t, r, "2")
	if r.Tag != "SELECT 1" {
		t.Errorf("tag = %q, want SELECT 1", r.Tag)
	}
}

func TestExecutor_Update(t *testing.T) {
	e := setup(t)
	seedUsers(t, e)
	exec(t, e, "CREATE INDEX ON users (age)")

	r := exec(t, e, "UPDATE users SET age = 31, name = 'Alice' WHERE id = 1")
	if r.Tag != "UPDATE 1" {
		t.Errorf("tag = %q, want UPDATE 1", r.Tag)
	}
	assertRows(t, exec(t, e, "SELECT name FROM users WHERE age = 31"), "Alice")
	assertRows(t, exec(t, e, "SELECT id FROM users WHERE age = 30"), "3")

	r = exec(t, e, "UPDATE users SET active = NULL")
	if r.Tag != "UPDATE 4" {
		t.Errorf("tag = %q, want UPDATE 4", r.Tag)
	}
	assertRows(t, exec(t, e, "SELECT COUNT(*) FROM users WHERE active IS NULL"), "4")
}

func TestExecutor_Delete(t *testing.T) {
	e := setup(t)
	seedUsers(t, e)

	r := exec(t, e, "DELETE FROM users WHERE age = 30")
	if r.Tag != "DELETE 2" {
		t.Errorf("tag = %q, want DELETE 2", r.Tag)
	}
	assertRows(t, exec(t, e, "SELECT id FROM users"), "2", "4")

	r = exec(t, e, "DELETE FROM users")
	if r.Tag != "DELETE 2" {
		t.Errorf("tag = %q, want DELETE 2", r.Tag)
	}
	assertRows(t, exec(t, e, "SELECT COUNT(*) FROM users"), "0")
}

func TestExecutor_DropTable(t *testing.T) {
	e := setup(t)
	exec(t, e, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	exec(t, e, "DROP TABLE t")

	if _, err := e.Execute("SELECT * FROM t"); err == nil {
		t.Fatal("expected error after DROP TABLE")
	}
	exec(t, e, "DROP TABLE IF EXISTS t")
}

func TestExecutor_IfNotExists(t *testing.T) {
	e := setup(t)
	exec(t, e, "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)")
	if r := exec(t, e, "CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY)"); r.Notice == "" {
		t.Error("expected a notice for skipped CREATE TABLE")
	}
	if r := exec(t, e, "CREATE INDEX ON t (v)"); r.Notice != "" {
		t.Errorf("unexpected notice %q", r.Notice)
	}
	if r := exec(t, e, "CREATE INDEX IF NOT EXISTS ON t (v)"); r.Notice == "" {
		t.Error("expected a notice for skipped CREATE INDEX")
	}
	exec(t, e, "DROP INDEX ON t (v)")
	if r := exec(t, e, "DROP INDEX IF EXISTS ON t (v)"); r.Notice == "" {
		t.Error("expected a notice for skipped DROP INDEX")
	}
}

func TestExecutor_Types(t *testing.T) {
	e := setup(t)
	exec(t, e, "CREATE TABLE m (id INTEGER PRIMARY KEY, score FLOAT, at TIMESTAMP, note TEXT)")
	exec(t, e, "INSERT INTO m VALUES (1, 2, '2024-03-01 12:30:00', 7), (2, -0.25, '2024-03-02T08:00:00.5Z', NULL)")

	r := exec(t, e, "SELECT * FROM m")
	wantOIDs := []int32{OIDInt8, OIDFloat8, OIDTimestamp, OIDText}
	for i, c := range r.Columns {
		if c.TypeOID != wantOIDs[i] {
			t.Errorf("column %s OID = %d, want %d", c.Name, c.TypeOID, wantOIDs[i])
		}
	}
	assertRows(t, r,
		"1|2|2024-03-01 12:30:00|7",
		"2|-0.25|2024-03-02 08:00:00.5|NULL",
	)

	assertRows(t, exec(t, e, "SELECT id FROM m WHERE at > '2024-03-01'"), "1", "2")
	assertRows(t, exec(t, e, "SELECT id FROM m WHERE at >= '2024-03-02'"), "2")
}

func TestExecutor_ShowTables(t *testing.T) {
	e := setup(t)
	exec(t, e, "CREATE TABLE b (id INTEGER PRIMARY KEY)")
	exec(t, e, "CREATE TABLE a (id INTEGER PRIMARY KEY)")

	r := exec(t, e, "SHOW TABLES")
	if r.Columns[0].Name != "table_name" {
		t.Errorf("column = %q, want table_name", r.Columns[0].Name)
	}
	assertRows(t, r, "b", "a")
}

func TestExecutor_ShowIndexes(t *testing.T) {
	e := setup(t)
	seedUsers(t, e)
	exec(t, e, "CREATE INDEX ON users (name)")

	r := exec(t, e, "SHOW INDEXES ON users")
	assertRows(t, r, "id|4|2|4|t", "name|4|2|4|t")
}

func TestExecutor_ShowIndex(t *testing.T) {
	e := setup(t)
	exec(t, e, "CREATE TABLE letters (k TEXT PRIMARY KEY)")
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		exec(t, e, "INSERT INTO letters VALUES ('"+k+"')")
	}

	r := exec(t, e, "SHOW INDEX ON letters (k)")
	if r.Columns[0].Name != "depth" || r.Columns[1].Name != "keys" {
		t.Fatalf("columns = %+v", r.Columns)
	}
	assertRows(t, r, "0|[c]", "1|[a b]", "1|[c d e]")
}

func TestExecutor_Persistence(t *testing.T) {
	dir := t.TempDir()
	e := setupDir(t, dir)
	seedUsers(t, e)
	exec(t, e, "CREATE INDEX ON users (age)")
	if err := e.db.Close(); err != nil {
		t.Fatal(err)
	}

	e = setupDir(t, dir)
	assertRows(t, exec(t, e, "SELECT name FROM users WHERE age = 30"), "alice", "carol")
	assertRows(t, exec(t, e, "SHOW INDEXES ON users"), "id|4|2|4|t", "age|4|1|3|t")
}

func TestExecutor_Traced(t *testing.T) {
	e := setup(t)
	seedUsers(t, e)
	exec(t, e, "CREATE INDEX ON users (age)")

	_, tr, err := e.ExecuteTraced("SELECT * FROM users WHERE name = 'bob' AND age > 20")
	if err != nil {
		t.Fatal(err)
	}
	if tr.StmtType != "SELECT" || tr.Table != "users" {
		t.Errorf("trace = %s %q", tr.StmtType, tr.Table)
	}
	if tr.IndexField != "age" {
		t.Errorf("index = %q, want age", tr.IndexField)
	}
	if tr.RowsReturned != 1 {
		t.Errorf("rows = %d, want 1", tr.RowsReturned)
	}
	if !strings.Contains(tr.String(), "index=age") {
		t.Errorf("String() = %q", tr.String())
	}
}

// -------------------------------------------------------------------------
// Errors
// -------------------------------------------------------------------------

func TestExecutor_SQLSTATECodes(t *testing.T) {
	e := setup(t)
	seedUsers(t, e)

	tests := []struct {
		sql  string
		code string
	}{
		{"SELEKT 1", "42601"},
		{"SELECT * FROM nope", "42P01"},
		{"CREATE TABLE users (id INTEGER PRIMARY KEY)", "42P07"},
		{"CREATE TABLE k (a INTEGER)", "42P16"},
		{"CREATE TABLE k (a BLOB PRIMARY KEY)", "42704"},
		{"SELECT nope FROM users", "42703"},
		{"SELECT * FROM users WHERE nope = 1", "42703"},
		{"INSERT INTO users (id, nope) VALUES (9, 1)", "42703"},
		{"INSERT INTO users VALUES (1, 'dup', 1, TRUE)", "23505"},
		{"INSERT INTO users (name) VALUES ('nokey')", "23502"},
		{"INSERT INTO users VALUES ('x', 'y', 1, TRUE)", "22P02"},
		{"INSERT INTO users VALUES (9, 'y', 1.5, TRUE)", "22P02"},
		{"INSERT INTO users VALUES (9, 'y', 1, 2)", "22P02"},
		{"INSERT INTO users VALUES (9, 'y', 1, TRUE, 5)", "42601"},
		{"INSERT INTO users (id, id) VALUES (9, 9)", "42701"},
		{"UPDATE users SET id = 7 WHERE id = 1", "0A000"},
		{"UPDATE users SET age = 1, age = 2", "42601"},
		{"CREATE INDEX ON users (id)", "42P07"},
		{"CREATE INDEX ON users (nope)", "42703"},
		{"DROP INDEX ON users (age)", "42704"},
		{"DROP INDEX ON users (id)", "0A000"},
		{"SHOW INDEX ON users (age)", "42704"},
		{"SHOW INDEXES ON nope", "42P01"},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			_, err := e.Execute(tt.sql)
			if err == nil {
				t.Fatal("expected error")
			}
			var qe *QueryError
			if !errors.As(err, &qe) {
				t.Fatalf("error %v (%T) is not a QueryError", err, err)
			}
			if qe.Code != tt.code {
				t.Errorf("code = %s, want %s (%v)", qe.Code, tt.code, err)
			}
		})
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil) != nil {
		t.Error("WrapError(nil) != nil")
	}
	qe := &QueryError{Code: "22012", Message: "x"}
	if got := WrapError(qe); got != qe {
		t.Errorf("QueryError not passed through: %v", got)
	}
	var wrapped *QueryError
	if !errors.As(WrapError(errors.New("disk on fire")), &wrapped) || wrapped.Code != "XX000" {
		t.Errorf("plain error code = %v", wrapped)
	}
}

func TestCoerceLiteral(t *testing.T) {
	tests := []struct {
		val     any
		target  storage.DataType
		want    any
		wantErr bool
	}{
		{int64(5), storage.TypeInteger, int64(5), false},
		{3.0, storage.TypeInteger, int64(3), false},
		{3.5, storage.TypeInteger, nil, true},
		{" 12 ", storage.TypeInteger, int64(12), false},
		{"12x", storage.TypeInteger, nil, true},
		{int64(2), storage.TypeFloat, 2.0, false},
		{"1e3", storage.TypeFloat, 1000.0, false},
		{"NaN", storage.TypeFloat, nil, true},
		{int64(7), storage.TypeText, "7", false},
		{true, storage.TypeText, "true", false},
		{"yes", storage.TypeBoolean, true, false},
		{"F", storage.TypeBoolean, false, false},
		{int64(1), storage.TypeBoolean, nil, true},
		{"maybe", storage.TypeBoolean, nil, true},
		{int64(1), storage.TypeTimestamp, nil, true},
		{nil, storage.TypeInteger, nil, false},
	}
	for _, tt := range tests {
		got, err := coerceLiteral(tt.val, tt.target)
		if tt.wantErr {
			if err == nil {
				t.Errorf("coerceLiteral(%v, %s) = %v, want error", tt.val, tt.target, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("coerceLiteral(%v, %s) = %v, %v; want %v", tt.val, tt.target, got, err, tt.want)
		}
	}
}
