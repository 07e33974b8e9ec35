package driver

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/lukeed/hrana/client"
	"github.com/lukeed/hrana/protocol"
)

var errTxDone = errors.New("hrana: transaction has already been committed or rolled back")

// Tx implements driver.Tx by buffering statements locally and submitting
// them as a single conditional batch at Commit. Nothing reaches the server
// before Commit, so a Rollback is purely a local discard and statement
// failures surface from Commit rather than from Exec.
type Tx struct {
	conn  *Conn
	ctx   context.Context
	mode  client.TxMode
	stmts []protocol.Stmt
	done  bool
}

// buffer appends a statement to the pending batch.
func (t *Tx) buffer(stmt *protocol.Stmt) driver.Result {
	t.stmts = append(t.stmts, *stmt)
	return bufferedResult{}
}

// Commit submits the buffered statements atomically. Any statement failure,
// a failed commit, or a server-side rollback is returned as the commit
// error.
func (t *Tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.conn.tx = nil

	if len(t.stmts) == 0 {
		return nil
	}

	res, err := t.conn.client.Transaction(t.ctx, t.mode, t.stmts)
	if err != nil {
		return err
	}
	return res.Err()
}

// Rollback discards the buffered statements. The server never saw them.
func (t *Tx) Rollback() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.conn.tx = nil
	t.stmts = nil
	return nil
}

// Ensure Tx implements driver.Tx.
var _ driver.Tx = &Tx{}
