package parser

// Statement is the interface implemented by all SQL statement AST nodes.
// The unexported marker method restricts implementations to this package.
type Statement interface {
	statementNode()
}

// ColumnDef describes a column in a CREATE TABLE statement.
type ColumnDef struct {
	Name       string
	DataType   string // type name as written, e.g. "INTEGER" or "timestamp"
	PrimaryKey bool
}

// Condition is one comparison of a WHERE clause: Column Op Value. Op keeps
// its spelling ("=", "==", "!=", "<>", "<", "<=", ">", ">="); IS NULL and
// IS NOT NULL become "=" and "!=" against a nil Value.
type Condition struct {
	Column string
	Op     string
	Value  any // int64, float64, string, bool, or nil
}

// SetClause is a single col = literal assignment in UPDATE ... SET.
type SetClause struct {
	Column string
	Value  any
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// CreateTableStmt: CREATE TABLE [IF NOT EXISTS] <name> (<col> <type> [PRIMARY KEY], ... [, PRIMARY KEY (<col>)])
type CreateTableStmt struct {
	Name        string
	Columns     []ColumnDef
	IfNotExists bool
}

// DropTableStmt: DROP TABLE [IF EXISTS] <name>
type DropTableStmt struct {
	Name     string
	IfExists bool
}

// CreateIndexStmt: CREATE INDEX [IF NOT EXISTS] ON <table> (<col>)
type CreateIndexStmt struct {
	Table       string
	Column      string
	IfNotExists bool
}

// DropIndexStmt: DROP INDEX [IF EXISTS] ON <table> (<col>)
type DropIndexStmt struct {
	Table    string
	Column   string
	IfExists bool
}

// InsertStmt: INSERT INTO <table> [(<cols>)] VALUES (<literals>), ...
type InsertStmt struct {
	Table   string
	Columns []string // nil when omitted
	Values  [][]any
}

// SelectStmt: SELECT * | COUNT(*) | <cols> FROM <table> [WHERE <conds>]
type SelectStmt struct {
	Table   string
	Columns []string // nil for *
	Count   bool     // SELECT COUNT(*)
	Where   []Condition
}

// UpdateStmt: UPDATE <table> SET <col> = <literal>, ... [WHERE <conds>]
type UpdateStmt struct {
	Table string
	Sets  []SetClause
	Where []Condition
}

// DeleteStmt: DELETE FROM <table> [WHERE <conds>]
type DeleteStmt struct {
	Table string
	Where []Condition
}

// ShowTablesStmt: SHOW TABLES
type ShowTablesStmt struct{}

// ShowIndexesStmt: SHOW INDEXES ON <table>
type ShowIndexesStmt struct {
	Table string
}

// ShowIndexStmt: SHOW INDEX ON <table> (<col>)
type ShowIndexStmt struct {
	Table  string
	Column string
}

func (*CreateTableStmt) statementNode() {}
func (*DropTableStmt) statementNode()   {}
func (*CreateIndexStmt) statementNode() {}
func (*DropIndexStmt) statementNode()   {}
func (*InsertStmt) statementNode()      {}
func (*SelectStmt) statementNode()      {}
func (*UpdateStmt) statementNode()      {}
func (*DeleteStmt) statementNode()      {}
func (*ShowTablesStmt) statementNode()  {}
func (*ShowIndexesStmt) statementNode() {}
func (*ShowIndexStmt) statementNode()   {}
