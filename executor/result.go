package executor

// Column describes a column in a query result.
type Column struct {
	Name     string
	TypeOID  int32 // PostgreSQL type OID for wire protocol
	TypeSize int16 // type size in bytes (-1 for variable length)
}

// Result is the outcome of executing a single SQL statement.
type Result struct {
	// Columns is set for statements that return rows. nil otherwise.
	Columns []Column

	// Rows holds text-encoded values (nil entry means NULL). Outer
	// slice = rows, inner slice = columns.
	Rows [][][]byte

	// Tag is the CommandComplete tag, e.g. "SELECT 2", "INSERT 0 1".
	Tag string

	// Notice, when set, is sent to the client ahead of the result, e.g.
	// when IF NOT EXISTS skips a CREATE.
	Notice string
}

// PostgreSQL type OIDs for the supported types.
const (
	OIDBool      int32 = 16   // BOOLEAN
	OIDInt8      int32 = 20   // INT8 / BIGINT
	OIDText      int32 = 25   // TEXT
	OIDFloat8    int32 = 701  // FLOAT8 / DOUBLE PRECISION
	OIDUnknown   int32 = 705  // UNKNOWN
	OIDTimestamp int32 = 1114 // TIMESTAMP WITHOUT TIME ZONE
)

func textColumn(name string) Column { return Column{Name: name, TypeOID: OIDText, TypeSize: -1} }

func int8Column(name string) Column { return Column{Name: name, TypeOID: OIDInt8, TypeSize: 8} }
