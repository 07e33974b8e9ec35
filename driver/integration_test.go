package driver_test

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/lukeed/hrana/driver"
	"github.com/lukeed/hrana/protocol"
	"github.com/lukeed/hrana/testutil"
)

func openDB(t *testing.T, srv *testutil.Server) *sql.DB {
	t.Helper()

	db, err := sql.Open(driver.DriverName, srv.URL())
	testutil.RequireNoError(t, err, "sql.Open failed")
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAndPing(t *testing.T) {
	srv := testutil.NewServer(t)
	db := openDB(t, srv)

	testutil.RequireNoError(t, db.Ping())
}

func TestQueryScan(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.QueueExecute(testutil.UsersResult(3))
	db := openDB(t, srv)

	rows, err := db.Query("SELECT id, name, email FROM users")
	testutil.RequireNoError(t, err)
	defer rows.Close()

	var count int
	for rows.Next() {
		var id int64
		var name, email string
		testutil.RequireNoError(t, rows.Scan(&id, &name, &email))
		count++
		if id != int64(count) {
			t.Errorf("row %d: id = %d, want %d", count, id, count)
		}
		if !strings.HasPrefix(email, name) {
			t.Errorf("row %d: email %q does not match name %q", count, email, name)
		}
	}
	testutil.RequireNoError(t, rows.Err())
	testutil.AssertEqual(t, 3, count, "row count")
}

func TestExecResult(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.QueueExecute(testutil.WriteResult(2, 9))
	db := openDB(t, srv)

	res, err := db.Exec("UPDATE users SET active = 1")
	testutil.RequireNoError(t, err)

	affected, err := res.RowsAffected()
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, int64(2), affected)

	id, err := res.LastInsertId()
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, int64(9), id)
}

func TestArgsOnWire(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.QueueExecute(testutil.UsersResult(1))
	db := openDB(t, srv)

	rows, err := db.Query("SELECT * FROM users WHERE id = ? AND blob = ?", int64(7), []byte{0x01, 0x02})
	testutil.RequireNoError(t, err)
	rows.Close()

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 pipeline request, got %d", len(reqs))
	}
	stmt := reqs[0].Requests[0].Stmt
	if stmt == nil {
		t.Fatal("expected an execute entry with a statement")
	}
	if !stmt.WantRows {
		t.Error("expected want_rows for a query")
	}
	if len(stmt.Args) != 2 {
		t.Fatalf("expected 2 wire args, got %d", len(stmt.Args))
	}
	testutil.AssertEqual(t, protocol.TypeInteger, stmt.Args[0].Type)
	testutil.AssertEqual(t, "7", stmt.Args[0].Text)
	testutil.AssertEqual(t, protocol.TypeBlob, stmt.Args[1].Type)
	testutil.AssertEqual(t, "AQI=", stmt.Args[1].Base64)
}

func TestNamedArgsOnWire(t *testing.T) {
	srv := testutil.NewServer(t)
	db := openDB(t, srv)

	_, err := db.Exec("UPDATE users SET name = :name", sql.Named("name", "alice"))
	testutil.RequireNoError(t, err)

	stmt := srv.Requests()[0].Requests[0].Stmt
	if stmt.WantRows {
		t.Error("expected want_rows to be off for exec")
	}
	if len(stmt.NamedArgs) != 1 {
		t.Fatalf("expected 1 named arg, got %d", len(stmt.NamedArgs))
	}
	testutil.AssertEqual(t, "name", stmt.NamedArgs[0].Name)
	testutil.AssertEqual(t, "alice", stmt.NamedArgs[0].Value.Text)
}

func TestTransactionCommit(t *testing.T) {
	srv := testutil.NewServer(t)
	db := openDB(t, srv)

	tx, err := db.Begin()
	testutil.RequireNoError(t, err)

	_, err = tx.Exec("INSERT INTO users (name) VALUES (?)", "a")
	testutil.RequireNoError(t, err)
	_, err = tx.Exec("INSERT INTO users (name) VALUES (?)", "b")
	testutil.RequireNoError(t, err)

	testutil.RequireNoError(t, tx.Commit())

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected a single pipeline request for the whole transaction, got %d", len(reqs))
	}

	batch := reqs[0].Requests[0].Batch
	if batch == nil {
		t.Fatal("expected a batch entry")
	}
	if len(batch.Steps) != 5 {
		t.Fatalf("expected 5 synthesized steps, got %d", len(batch.Steps))
	}
	testutil.AssertEqual(t, "BEGIN deferred", batch.Steps[0].Stmt.SQL)
	testutil.AssertEqual(t, "COMMIT", batch.Steps[3].Stmt.SQL)
	testutil.AssertEqual(t, "ROLLBACK", batch.Steps[4].Stmt.SQL)
	if batch.Steps[1].Condition == nil || batch.Steps[2].Condition == nil {
		t.Error("expected the buffered statements to be gated")
	}
}

func TestTransactionSerializable(t *testing.T) {
	srv := testutil.NewServer(t)
	db := openDB(t, srv)
	ctx, _ := testutil.WithTimeout(t)

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	testutil.RequireNoError(t, err)

	_, err = tx.Exec("DELETE FROM logs")
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, tx.Commit())

	batch := srv.Requests()[0].Requests[0].Batch
	testutil.AssertEqual(t, "BEGIN immediate", batch.Steps[0].Stmt.SQL)
}

func TestTransactionUnsupportedIsolation(t *testing.T) {
	srv := testutil.NewServer(t)
	db := openDB(t, srv)
	ctx, _ := testutil.WithTimeout(t)

	_, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelLinearizable})
	testutil.RequireError(t, err, "expected unsupported isolation to be rejected")
}

func TestTransactionRollbackIsLocal(t *testing.T) {
	srv := testutil.NewServer(t)
	db := openDB(t, srv)

	tx, err := db.Begin()
	testutil.RequireNoError(t, err)

	_, err = tx.Exec("INSERT INTO users (name) VALUES ('discarded')")
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, tx.Rollback())

	testutil.AssertEqual(t, 0, srv.PipelineCount(), "rollback must not reach the server")
}

func TestTransactionEmptyCommit(t *testing.T) {
	srv := testutil.NewServer(t)
	db := openDB(t, srv)

	tx, err := db.Begin()
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, tx.Commit())

	testutil.AssertEqual(t, 0, srv.PipelineCount(), "empty transaction must not reach the server")
}

func TestTransactionStatementFailure(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.FailSQL("bad_insert", "SQLITE_CONSTRAINT", "NOT NULL constraint failed")
	db := openDB(t, srv)

	tx, err := db.Begin()
	testutil.RequireNoError(t, err)

	_, err = tx.Exec("INSERT INTO bad_insert (name) VALUES (NULL)")
	testutil.RequireNoError(t, err, "failures surface at commit, not at exec")

	err = tx.Commit()
	testutil.RequireError(t, err)
	testutil.AssertContains(t, err.Error(), "statement 0")
	testutil.AssertContains(t, err.Error(), "NOT NULL constraint failed")
}

func TestQueryInsideTransaction(t *testing.T) {
	srv := testutil.NewServer(t)
	db := openDB(t, srv)

	tx, err := db.Begin()
	testutil.RequireNoError(t, err)
	defer tx.Rollback()

	_, err = tx.Query("SELECT * FROM users")
	testutil.RequireError(t, err)
	testutil.AssertContains(t, err.Error(), "buffered until Commit")
}

func TestBufferedResultUnavailable(t *testing.T) {
	srv := testutil.NewServer(t)
	db := openDB(t, srv)

	tx, err := db.Begin()
	testutil.RequireNoError(t, err)
	defer tx.Rollback()

	res, err := tx.Exec("INSERT INTO users (name) VALUES ('x')")
	testutil.RequireNoError(t, err)

	if _, err := res.RowsAffected(); err == nil {
		t.Error("expected RowsAffected to be unavailable before commit")
	}
}

func TestColumnTypes(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.QueueExecute(testutil.Result(
		[]protocol.Col{
			testutil.TypedColumn("id", "integer"),
			testutil.Column("score"),
		},
		testutil.Row(testutil.Integer(1), testutil.Float(0.5)),
	))
	db := openDB(t, srv)

	rows, err := db.Query("SELECT id, score FROM scores")
	testutil.RequireNoError(t, err)
	defer rows.Close()

	types, err := rows.ColumnTypes()
	testutil.RequireNoError(t, err)
	if len(types) != 2 {
		t.Fatalf("expected 2 column types, got %d", len(types))
	}
	testutil.AssertEqual(t, "INTEGER", types[0].DatabaseTypeName())
	testutil.AssertEqual(t, "", types[1].DatabaseTypeName())
}

type userRow struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

func TestSqlxSelect(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.QueueExecute(testutil.UsersResult(2))

	db, err := sqlx.Open(driver.DriverName, srv.URL())
	testutil.RequireNoError(t, err)
	defer db.Close()

	var users []userRow
	testutil.RequireNoError(t, db.Select(&users, "SELECT id, name, email FROM users"))

	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	testutil.AssertEqual(t, int64(1), users[0].ID)
	testutil.AssertEqual(t, "user2", users[1].Name)
	testutil.AssertEqual(t, "user1@example.com", users[0].Email)
}

func TestSqlxGet(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.QueueExecute(testutil.UsersResult(1))

	db, err := sqlx.Open(driver.DriverName, srv.URL())
	testutil.RequireNoError(t, err)
	defer db.Close()

	var u userRow
	testutil.RequireNoError(t, db.Get(&u, "SELECT id, name, email FROM users WHERE id = ?", int64(1)))
	testutil.AssertEqual(t, "user1", u.Name)
}

func TestDBCloseReleasesClient(t *testing.T) {
	srv := testutil.NewServer(t)
	db, err := sql.Open(driver.DriverName, srv.URL())
	testutil.RequireNoError(t, err)

	testutil.RequireNoError(t, db.Ping())
	testutil.RequireNoError(t, db.Close())

	if err := db.Ping(); err == nil {
		t.Error("expected ping to fail after close")
	}
}
