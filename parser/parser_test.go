package parser

import (
	"reflect"
	"strings"
	"testing"
)

func mustParse(t *testing.T, sql string) Statement {
	t.Helper()
	stmt, err := Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q): %v", sql, err)
	}
	return stmt
}

func TestParse_Statements(t *testing.T) {
	tests := []struct {
		sql  string
		want Statement
	}{
		{
			"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, signup timestamp)",
			&CreateTableStmt{Name: "users", Columns: []ColumnDef{
				{Name: "id", DataType: "INTEGER", PrimaryKey: true},
				{Name: "name", DataType: "TEXT"},
				{Name: "signup", DataType: "TIMESTAMP"},
			}},
		},
		{
			"create table if not exists t (a int, b float, primary key (b));",
			&CreateTableStmt{Name: "t", IfNotExists: true, Columns: []ColumnDef{
				{Name: "a", DataType: "INT"},
				{Name: "b", DataType: "FLOAT", PrimaryKey: true},
			}},
		},
		{"DROP TABLE users", &DropTableStmt{Name: "users"}},
		{"DROP TABLE IF EXISTS users", &DropTableStmt{Name: "users", IfExists: true}},
		{"CREATE INDEX ON users (age)", &CreateIndexStmt{Table: "users", Column: "age"}},
		{"CREATE INDEX IF NOT EXISTS ON users (age)", &CreateIndexStmt{Table: "users", Column: "age", IfNotExists: true}},
		{"DROP INDEX ON users (age)", &DropIndexStmt{Table: "users", Column: "age"}},
		{"DROP INDEX IF EXISTS ON users (age)", &DropIndexStmt{Table: "users", Column: "age", IfExists: true}},
		{
			"INSERT INTO users VALUES (1, 'alice', TRUE, NULL), (-2, 'bob', false, 1.5)",
			&InsertStmt{Table: "users", Values: [][]any{
				{int64(1), "alice", true, nil},
				{int64(-2), "bob", false, 1.5},
			}},
		},
		{
			"INSERT INTO users (name, id) VALUES ('carol', 3)",
			&InsertStmt{Table: "users", Columns: []string{"name", "id"}, Values: [][]any{{"carol", int64(3)}}},
		},
		{"SELECT * FROM users", &SelectStmt{Table: "users"}},
		{"SELECT COUNT(*) FROM users", &SelectStmt{Table: "users", Count: true}},
		{
			"SELECT id, name FROM users WHERE age >= 21 AND name <> 'bob' AND score == -0.5",
			&SelectStmt{Table: "users", Columns: []string{"id", "name"}, Where: []Condition{
				{Column: "age", Op: ">=", Value: int64(21)},
				{Column: "name", Op: "<>", Value: "bob"},
				{Column: "score", Op: "==", Value: -0.5},
			}},
		},
		{
			"SELECT * FROM users WHERE active IS NULL AND email IS NOT NULL",
			&SelectStmt{Table: "users", Where: []Condition{
				{Column: "active", Op: "=", Value: nil},
				{Column: "email", Op: "!=", Value: nil},
			}},
		},
		{
			"UPDATE users SET name = 'x', age = 3 WHERE id = 1",
			&UpdateStmt{Table: "users",
				Sets:  []SetClause{{Column: "name", Value: "x"}, {Column: "age", Value: int64(3)}},
				Where: []Condition{{Column: "id", Op: "=", Value: int64(1)}},
			},
		},
		{"DELETE FROM users", &DeleteStmt{Table: "users"}},
		{
			"DELETE FROM users WHERE age < 18",
			&DeleteStmt{Table: "users", Where: []Condition{{Column: "age", Op: "<", Value: int64(18)}}},
		},
		{"SHOW TABLES", &ShowTablesStmt{}},
		{"show indexes on users", &ShowIndexesStmt{Table: "users"}},
		{"SHOW INDEX ON users (age)", &ShowIndexStmt{Table: "users", Column: "age"}},
		{`SELECT "select" FROM "my table"`, &SelectStmt{Table: "my table", Columns: []string{"select"}}},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			got := mustParse(t, tt.sql)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got  %#v\nwant %#v", got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		sql     string
		wantErr string
	}{
		{"", "unexpected end of input"},
		{"EXPLAIN SELECT 1", "unexpected"},
		{"CREATE VIEW v", "unexpected"},
		{"CREATE TABLE t (id INTEGER PRIMARY KEY, b TEXT PRIMARY KEY)", "multiple primary keys"},
		{"CREATE TABLE t (id INTEGER PRIMARY KEY, PRIMARY KEY (id), PRIMARY KEY (id))", "multiple primary keys"},
		{"CREATE TABLE t (a INTEGER, PRIMARY KEY (b))", "not defined"},
		{"CREATE TABLE t (a)", "expected data type"},
		{"INSERT INTO t (a, b) VALUES (1)", "2 target columns but 1 values"},
		{"INSERT INTO t VALUES (a)", "unexpected"},
		{"SELECT FROM t", "expected IDENT"},
		{"SELECT * FROM t WHERE a", "expected comparison operator"},
		{"SELECT * FROM t WHERE a = 1 OR b = 2", "unexpected \"OR\" after statement"},
		{"SELECT * FROM t WHERE a IS 1", "expected NULL"},
		{"UPDATE t SET a == 1", "expected = in SET"},
		{"SELECT * FROM t WHERE a = -'x'", "cannot negate"},
		{"SELECT * FROM t WHERE a = 99999999999999999999", "out of range"},
		{"SHOW INDEX users", "expected ON"},
		{"SELECT * FROM t;;", "unexpected"},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			_, err := Parse(tt.sql)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
