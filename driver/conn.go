package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lukeed/hrana/client"
	"github.com/lukeed/hrana/protocol"
)

var errQueryInTx = errors.New("hrana: queries are not available inside a transaction; statements are buffered until Commit")

// Conn implements driver.Conn, driver.ConnBeginTx, driver.ExecerContext,
// driver.QueryerContext, driver.Pinger and driver.NamedValueChecker.
//
// Connections are stateless between transactions: every statement travels as
// its own pipeline exchange. BeginTx switches the connection into buffering
// mode, where writes accumulate locally and are submitted as one conditional
// batch at Commit.
type Conn struct {
	client     *client.Client
	ownsClient bool
	tx         *Tx
}

// Prepare returns a prepared statement. Preparation is local; the server
// sees the SQL only at execution time.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{conn: c, query: query}, nil
}

// Close releases the connection. The client is closed only when this
// connection owns it (DSN-opened connections, not connector-shared ones).
func (c *Conn) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

// Begin starts a transaction with default options.
func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx starts a buffering transaction. The isolation level maps onto the
// transaction's locking mode: the default level defers locking, Serializable
// takes the write lock up front, and ReadOnly rejects writes. Other levels
// are not supported.
func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.tx != nil {
		return nil, errors.New("hrana: transaction already in progress")
	}

	mode, err := txMode(opts)
	if err != nil {
		return nil, err
	}

	c.tx = &Tx{conn: c, ctx: ctx, mode: mode}
	return c.tx, nil
}

func txMode(opts driver.TxOptions) (client.TxMode, error) {
	if opts.ReadOnly {
		return client.TxReadOnly, nil
	}
	switch level := sql.IsolationLevel(opts.Isolation); level {
	case sql.LevelDefault:
		return client.TxDeferred, nil
	case sql.LevelSerializable:
		return client.TxImmediate, nil
	default:
		return 0, fmt.Errorf("hrana: unsupported isolation level %s", level)
	}
}

// ExecContext executes a statement. Inside a transaction the statement is
// buffered and the returned result stays unknown until Commit.
func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	stmt, err := buildStmt(query, args, false)
	if err != nil {
		return nil, err
	}

	if c.tx != nil {
		return c.tx.buffer(stmt), nil
	}

	res, err := c.client.Execute(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return resultFrom(res), nil
}

// QueryContext executes a query and returns its pre-fetched rows.
func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.tx != nil {
		return nil, errQueryInTx
	}

	stmt, err := buildStmt(query, args, true)
	if err != nil {
		return nil, err
	}

	res, err := c.client.Execute(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return newRows(res), nil
}

// Ping probes the server for pipeline support.
func (c *Conn) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// CheckNamedValue encodes the argument into its wire form up front, so
// unsupported bind types fail before any request is built.
func (c *Conn) CheckNamedValue(nv *driver.NamedValue) error {
	v, err := protocol.EncodeValue(nv.Value)
	if err != nil {
		return err
	}
	nv.Value = v
	return nil
}

// buildStmt assembles a wire statement from a query and its arguments.
// Arguments already encoded by CheckNamedValue pass through; anything else
// is encoded here.
func buildStmt(query string, args []driver.NamedValue, wantRows bool) (*protocol.Stmt, error) {
	stmt := &protocol.Stmt{SQL: query, WantRows: wantRows}

	for _, a := range args {
		v, ok := a.Value.(protocol.Value)
		if !ok {
			var err error
			v, err = protocol.EncodeValue(a.Value)
			if err != nil {
				return nil, fmt.Errorf("hrana: arg %d: %w", a.Ordinal, err)
			}
		}
		if a.Name != "" {
			stmt.NamedArgs = append(stmt.NamedArgs, protocol.NamedArg{Name: a.Name, Value: v})
		} else {
			stmt.Args = append(stmt.Args, v)
		}
	}

	return stmt, nil
}

// Ensure Conn implements required interfaces.
var _ driver.Conn = &Conn{}
var _ driver.ConnBeginTx = &Conn{}
var _ driver.ExecerContext = &Conn{}
var _ driver.QueryerContext = &Conn{}
var _ driver.Pinger = &Conn{}
var _ driver.NamedValueChecker = &Conn{}
