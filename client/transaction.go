package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/lukeed/hrana/protocol"
)

// TxMode selects the locking behavior of an interactive transaction.
type TxMode int

const (
	// TxDeferred takes no lock until the first read or write.
	TxDeferred TxMode = iota

	// TxImmediate takes the write lock up front.
	TxImmediate

	// TxReadOnly rejects writes for the duration of the transaction.
	TxReadOnly
)

// String returns the mode's SQL keyword, lower-cased.
func (m TxMode) String() string {
	switch m {
	case TxImmediate:
		return "immediate"
	case TxReadOnly:
		return "readonly"
	default:
		return "deferred"
	}
}

// ParseTxMode maps a configuration name to its mode.
func ParseTxMode(s string) (TxMode, bool) {
	switch s {
	case "deferred", "":
		return TxDeferred, true
	case "immediate":
		return TxImmediate, true
	case "readonly":
		return TxReadOnly, true
	default:
		return TxDeferred, false
	}
}

// BuildTransaction compiles a flat statement list into a conditional batch
// that emulates an interactive transaction in one round trip. The synthesized
// step list is:
//
//	step 0        BEGIN <mode>
//	step i+1      stmts[i], gated on And(Ok(i), Not(IsAutocommit))
//	step N+1      COMMIT, unconditional
//	step N+2      ROLLBACK, gated on Not(Ok(N+1))
//
// Each statement runs only when the step before it succeeded and the
// connection is still inside the transaction. Autocommit turning true
// mid-batch means the transaction silently ended, so the remaining
// statements are skipped instead of running outside it. COMMIT and ROLLBACK
// are both submitted, but their conditions make them mutually exclusive in
// effect: ROLLBACK runs only when COMMIT did not report success.
func BuildTransaction(mode TxMode, stmts []protocol.Stmt) *protocol.Batch {
	batch := &protocol.Batch{Steps: make([]protocol.BatchStep, 0, len(stmts)+3)}

	batch.Add(protocol.Stmt{SQL: "BEGIN " + mode.String()})

	for i, stmt := range stmts {
		// Step i's outcome gates step i+1, so the index of the prior
		// step in the synthesized list is exactly i.
		cond := protocol.CondAnd(
			protocol.CondOk(int32(i)),
			protocol.CondNot(protocol.CondIsAutocommit()),
		)
		batch.AddConditional(stmt, cond)
	}

	batch.Add(protocol.Stmt{SQL: "COMMIT"})

	commitIdx := int32(len(stmts) + 1)
	batch.AddConditional(protocol.Stmt{SQL: "ROLLBACK"}, protocol.CondNot(protocol.CondOk(commitIdx)))

	return batch
}

// TransactionResult reports a transaction's outcome. Results and Errors are
// index-aligned with the submitted statements; both are nil at positions the
// server skipped. The synthetic BEGIN, COMMIT and ROLLBACK steps are sliced
// out, with the commit outcome surfaced separately.
type TransactionResult struct {
	// Results holds one entry per submitted statement
	Results []*protocol.StmtResult

	// Errors holds the in-band failure per submitted statement
	Errors []*protocol.Error

	// CommitError is the commit step's failure, if it ran and failed
	CommitError *protocol.Error

	// RolledBack reports whether the rollback step executed
	RolledBack bool
}

// Ok reports whether every statement executed and the commit succeeded.
func (r *TransactionResult) Ok() bool {
	return r.Err() == nil
}

// Err returns the first failure recorded in the result: a statement error, the
// commit error, a bare rollback, or a skipped statement. Nil means the
// transaction committed cleanly.
func (r *TransactionResult) Err() error {
	for i := range r.Errors {
		if r.Errors[i] != nil {
			return fmt.Errorf("statement %d: %w", i, r.Errors[i])
		}
	}
	if r.CommitError != nil {
		return fmt.Errorf("commit: %w", r.CommitError)
	}
	if r.RolledBack {
		return errors.New("transaction rolled back")
	}
	for i := range r.Results {
		if r.Results[i] == nil {
			return fmt.Errorf("statement %d was skipped", i)
		}
	}
	return nil
}

// Transaction executes the statements atomically in a single round trip. The
// returned result is aligned 1:1 with stmts. A non-nil error means the
// exchange itself failed; statement failures stay in-band on the result.
func (c *Client) Transaction(ctx context.Context, mode TxMode, stmts []protocol.Stmt) (*TransactionResult, error) {
	batch := BuildTransaction(mode, stmts)

	res, err := c.batch(ctx, "transaction", batch)
	if err != nil {
		return nil, err
	}

	want := len(stmts) + 3
	if len(res.StepResults) != want || len(res.StepErrors) != want {
		return nil, ErrEnvelope("transaction",
			"batch result does not cover the synthesized steps", nil)
	}

	n := len(stmts)
	out := &TransactionResult{
		Results:     res.StepResults[1 : n+1],
		Errors:      res.StepErrors[1 : n+1],
		CommitError: res.StepErrors[n+1],
		RolledBack:  res.StepResults[n+2] != nil,
	}
	return out, nil
}
