package driver

import (
	"context"
	"database/sql/driver"
)

// Stmt implements driver.Stmt, driver.StmtExecContext and
// driver.StmtQueryContext. Statements hold no server-side state; they
// delegate to the connection at execution time.
type Stmt struct {
	conn   *Conn
	query  string
	closed bool
}

// Close closes the statement.
func (s *Stmt) Close() error {
	s.closed = true
	return nil
}

// NumInput returns -1 so the database/sql package validates args dynamically.
func (s *Stmt) NumInput() int {
	return -1
}

// Exec executes the statement with positional arguments.
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	if s.closed {
		return nil, driver.ErrBadConn
	}
	return s.conn.ExecContext(context.Background(), s.query, namedValues(args))
}

// Query executes the statement and returns its rows.
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	if s.closed {
		return nil, driver.ErrBadConn
	}
	return s.conn.QueryContext(context.Background(), s.query, namedValues(args))
}

// ExecContext executes the statement with context support.
func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if s.closed {
		return nil, driver.ErrBadConn
	}
	return s.conn.ExecContext(ctx, s.query, args)
}

// QueryContext executes the statement with context support.
func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if s.closed {
		return nil, driver.ErrBadConn
	}
	return s.conn.QueryContext(ctx, s.query, args)
}

// namedValues lifts legacy positional values into NamedValue form.
func namedValues(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, a := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: a}
	}
	return out
}

// Ensure Stmt implements required interfaces.
var _ driver.Stmt = &Stmt{}
var _ driver.StmtExecContext = &Stmt{}
var _ driver.StmtQueryContext = &Stmt{}
