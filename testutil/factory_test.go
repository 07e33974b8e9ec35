package testutil_test

import (
	"testing"

	"github.com/lukeed/hrana/protocol"
	"github.com/lukeed/hrana/testutil"
)

func TestSequenceGenerators(t *testing.T) {
	if testutil.SequenceID() == testutil.SequenceID() {
		t.Error("expected unique ids")
	}
	if testutil.SequenceEmail() == testutil.SequenceEmail() {
		t.Error("expected unique emails")
	}

	name := testutil.SequenceTableName("orders")
	if name == testutil.SequenceTableName("orders") {
		t.Error("expected unique table names")
	}
	if got := name[:7]; got != "orders_" {
		t.Errorf("expected orders_ prefix, got %q", name)
	}
}

func TestColumns(t *testing.T) {
	cols := testutil.Columns("id", "name")
	if len(cols) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(cols))
	}
	if cols[0].Name == nil || *cols[0].Name != "id" {
		t.Errorf("expected column name id, got %v", cols[0].Name)
	}
	if cols[0].Decltype != nil {
		t.Errorf("expected no decltype, got %q", *cols[0].Decltype)
	}

	typed := testutil.TypedColumn("id", "INTEGER")
	if typed.Decltype == nil || *typed.Decltype != "INTEGER" {
		t.Errorf("expected INTEGER decltype, got %v", typed.Decltype)
	}
}

func TestResult(t *testing.T) {
	res := testutil.Result(
		testutil.Columns("id", "name"),
		testutil.Row(testutil.Integer(1), testutil.Text("alice")),
		testutil.Row(testutil.Integer(2), testutil.Null()),
	)

	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if res.Rows[0][1].Type != protocol.TypeText {
		t.Errorf("expected text value, got %q", res.Rows[0][1].Type)
	}
	if res.Rows[1][1].Type != protocol.TypeNull {
		t.Errorf("expected null value, got %q", res.Rows[1][1].Type)
	}
}

func TestWriteResult(t *testing.T) {
	res := testutil.WriteResult(3, 42)
	if res.AffectedRowCount != 3 {
		t.Errorf("expected 3 affected rows, got %d", res.AffectedRowCount)
	}
	if res.LastInsertRowID == nil || *res.LastInsertRowID != "42" {
		t.Errorf("expected last insert id 42, got %v", res.LastInsertRowID)
	}

	noID := testutil.WriteResult(1, 0)
	if noID.LastInsertRowID != nil {
		t.Errorf("expected no last insert id, got %q", *noID.LastInsertRowID)
	}
}

func TestUsersResult(t *testing.T) {
	res := testutil.UsersResult(3)
	if len(res.Cols) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(res.Cols))
	}
	if len(res.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(res.Rows))
	}
	if got := res.Rows[2][0].Text; got != "3" {
		t.Errorf("expected id 3, got %q", got)
	}
	if got := res.Rows[0][2].Text; got != "user1@example.com" {
		t.Errorf("expected user1@example.com, got %q", got)
	}
}
