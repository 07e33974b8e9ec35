package driver

import (
	"database/sql/driver"
	"errors"

	"github.com/lukeed/hrana/protocol"
)

var errBufferedResult = errors.New("hrana: result is not available for a statement buffered inside a transaction")

// Result implements driver.Result.
type Result struct {
	lastInsertID int64
	rowsAffected int64
}

func resultFrom(res *protocol.StmtResult) Result {
	r := Result{rowsAffected: int64(res.AffectedRowCount)}
	if id, ok := res.LastInsertID(); ok {
		r.lastInsertID = id
	}
	return r
}

func (r Result) LastInsertId() (int64, error) {
	return r.lastInsertID, nil
}

func (r Result) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// bufferedResult stands in for a statement that has not been submitted yet.
// Counts become known only after Commit runs the batch.
type bufferedResult struct{}

func (bufferedResult) LastInsertId() (int64, error) {
	return 0, errBufferedResult
}

func (bufferedResult) RowsAffected() (int64, error) {
	return 0, errBufferedResult
}

// Ensure both results implement driver.Result.
var _ driver.Result = Result{}
var _ driver.Result = bufferedResult{}
