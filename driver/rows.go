package driver

import (
	"database/sql/driver"
	"fmt"
	"io"
	"strings"

	"github.com/lukeed/hrana/protocol"
)

// Rows implements driver.Rows over a pre-fetched statement result. The
// pipeline returns whole result sets in one exchange, so iteration never
// touches the network.
type Rows struct {
	res  *protocol.StmtResult
	cols []string
	next int
}

func newRows(res *protocol.StmtResult) *Rows {
	cols := make([]string, len(res.Cols))
	for i, col := range res.Cols {
		if col.Name != nil {
			cols[i] = *col.Name
		}
	}
	return &Rows{res: res, cols: cols}
}

// Columns returns the names of the columns.
func (r *Rows) Columns() []string {
	return r.cols
}

// Close releases the buffered result.
func (r *Rows) Close() error {
	r.res = nil
	return nil
}

// Next populates dest with the values of the next row.
// Returns io.EOF when there are no more rows.
func (r *Rows) Next(dest []driver.Value) error {
	if r.res == nil || r.next >= len(r.res.Rows) {
		return io.EOF
	}

	row := r.res.Rows[r.next]
	if len(row) != len(dest) {
		return fmt.Errorf("hrana: row has %d cells, want %d", len(row), len(dest))
	}

	for i, v := range row {
		dv, err := toDriverValue(v)
		if err != nil {
			return err
		}
		dest[i] = dv
	}

	r.next++
	return nil
}

// ColumnTypeDatabaseTypeName reports the declared column type in upper case,
// or "" when the server did not send one.
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	if r.res == nil || index >= len(r.res.Cols) {
		return ""
	}
	if dt := r.res.Cols[index].Decltype; dt != nil {
		return strings.ToUpper(*dt)
	}
	return ""
}

// Ensure Rows implements required interfaces.
var _ driver.Rows = &Rows{}
var _ driver.RowsColumnTypeDatabaseTypeName = &Rows{}
