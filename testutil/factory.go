package testutil

import (
	"fmt"
	"sync/atomic"

	"github.com/lukeed/hrana/protocol"
)

// Sequence counters for unique fixture values. Tests that create rows or
// tables against a shared server use these to avoid colliding with each
// other.

var (
	idSequence    uint64
	emailSequence uint64
	tableSequence uint64
)

// SequenceID generates unique row IDs.
func SequenceID() int64 {
	return int64(atomic.AddUint64(&idSequence, 1))
}

// SequenceEmail generates unique email addresses.
func SequenceEmail() string {
	n := atomic.AddUint64(&emailSequence, 1)
	return fmt.Sprintf("user%d@example.com", n)
}

// SequenceTableName generates a unique table name with the given prefix.
func SequenceTableName(prefix string) string {
	n := atomic.AddUint64(&tableSequence, 1)
	return fmt.Sprintf("%s_%d", prefix, n)
}

// Wire value shorthands. Tests compose statement results from these instead
// of spelling out the tagged union by hand.

// Text builds a text wire value.
func Text(v string) protocol.Value {
	return protocol.Text(v)
}

// Integer builds an integer wire value.
func Integer(v int64) protocol.Value {
	return protocol.Integer(v)
}

// Float builds a float wire value.
func Float(v float64) protocol.Value {
	return protocol.Float(v)
}

// Null builds a null wire value.
func Null() protocol.Value {
	return protocol.Null()
}

// Blob builds a blob wire value.
func Blob(v []byte) protocol.Value {
	return protocol.Blob(v)
}

// Column builds a named result column without a declared type.
func Column(name string) protocol.Col {
	return protocol.Col{Name: &name}
}

// TypedColumn builds a named result column with a declared type.
func TypedColumn(name, decltype string) protocol.Col {
	return protocol.Col{Name: &name, Decltype: &decltype}
}

// Columns builds a column list from names.
func Columns(names ...string) []protocol.Col {
	cols := make([]protocol.Col, len(names))
	for i, name := range names {
		cols[i] = Column(name)
	}
	return cols
}

// Row builds one result row.
func Row(values ...protocol.Value) []protocol.Value {
	return values
}

// Result builds a statement result from columns and rows.
func Result(cols []protocol.Col, rows ...[]protocol.Value) *protocol.StmtResult {
	return &protocol.StmtResult{
		Cols: cols,
		Rows: rows,
	}
}

// WriteResult builds a statement result for a write with no rows.
func WriteResult(affected uint64, lastInsert int64) *protocol.StmtResult {
	res := &protocol.StmtResult{AffectedRowCount: affected}
	if lastInsert != 0 {
		s := fmt.Sprintf("%d", lastInsert)
		res.LastInsertRowID = &s
	}
	return res
}

// UsersResult builds a deterministic (id, name, email) result with count
// rows. IDs run from 1 to count.
func UsersResult(count int) *protocol.StmtResult {
	cols := []protocol.Col{
		TypedColumn("id", "INTEGER"),
		TypedColumn("name", "TEXT"),
		TypedColumn("email", "TEXT"),
	}
	rows := make([][]protocol.Value, count)
	for i := 0; i < count; i++ {
		id := int64(i + 1)
		rows[i] = Row(
			Integer(id),
			Text(fmt.Sprintf("user%d", id)),
			Text(fmt.Sprintf("user%d@example.com", id)),
		)
	}
	return Result(cols, rows...)
}
