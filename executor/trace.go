package executor

import (
	"fmt"
	"strings"
	"time"
)

// Trace captures timing and metadata for a single statement execution.
// Only populated when tracing is enabled (ExecuteTraced).
type Trace struct {
	Total        time.Duration
	Parse        time.Duration // lexer + parser
	Plan         time.Duration // table lookup, literal coercion, index choice
	Exec         time.Duration // storage calls
	RowsReturned int64         // rows returned or affected
	IndexField   string        // field whose index narrowed the query
	Table        string
	StmtType     string // "SELECT", "INSERT", etc.
}

// String formats the trace as a single log line.
func (tr *Trace) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", tr.StmtType)
	if tr.Table != "" {
		fmt.Fprintf(&b, " %s", tr.Table)
	}
	fmt.Fprintf(&b, ": parse=%s plan=%s exec=%s total=%s rows=%d",
		tr.Parse, tr.Plan, tr.Exec, tr.Total, tr.RowsReturned)
	if tr.IndexField != "" {
		fmt.Fprintf(&b, " index=%s", tr.IndexField)
	}
	return b.String()
}

func (tr *Trace) describe(stmtType, table string) {
	if tr != nil {
		tr.StmtType = stmtType
		tr.Table = table
	}
}

func (tr *Trace) planned(start time.Time) {
	if tr != nil {
		tr.Plan = time.Since(start)
	}
}

func (tr *Trace) executed(start time.Time, rows int) {
	if tr != nil {
		tr.Exec = time.Since(start)
		tr.RowsReturned = int64(rows)
	}
}
