package hrana_test

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/lukeed/hrana"
	"github.com/lukeed/hrana/client"
	"github.com/lukeed/hrana/migration"
	"github.com/lukeed/hrana/protocol"
	"github.com/lukeed/hrana/schema"
	"github.com/lukeed/hrana/testutil"
)

// connect builds a probed facade client against the fake server.
func connect(t *testing.T, srv *testutil.Server, opts ...hrana.Option) *hrana.Client {
	t.Helper()

	all := append([]hrana.Option{hrana.WithLogger(client.NewNoopLogger())}, opts...)
	c, err := hrana.Connect(context.Background(), srv.URL(), all...)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// requestSQL flattens every statement the fake server received.
func requestSQL(srv *testutil.Server) []string {
	var out []string
	for _, req := range srv.Requests() {
		for _, entry := range req.Requests {
			if entry.Stmt != nil {
				out = append(out, entry.Stmt.SQL)
			}
			if entry.Batch != nil {
				for _, step := range entry.Batch.Steps {
					out = append(out, step.Stmt.SQL)
				}
			}
		}
	}
	return out
}

func containsSQL(sqls []string, substr string) bool {
	for _, sql := range sqls {
		if strings.Contains(sql, substr) {
			return true
		}
	}
	return false
}

// TestIntegration_Connect verifies the probing entry point.
func TestIntegration_Connect(t *testing.T) {
	srv := testutil.NewServer(t)
	c := connect(t, srv)

	if c.BaseURL() == "" {
		t.Error("expected a normalized base URL")
	}
}

// TestIntegration_UnsupportedServer verifies that Connect rejects servers
// without pipeline support.
func TestIntegration_UnsupportedServer(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.SetProbeStatus(404)

	_, err := hrana.Connect(context.Background(), srv.URL(),
		hrana.WithLogger(client.NewNoopLogger()))
	if err == nil {
		t.Fatal("expected Connect to fail against a non-pipeline server")
	}
}

func TestIntegration_OpenMissingURL(t *testing.T) {
	if _, err := hrana.Open(""); err == nil {
		t.Error("expected Open to reject an empty URL")
	}
}

// TestIntegration_InsertQuery runs a write and a read through the facade.
func TestIntegration_InsertQuery(t *testing.T) {
	srv := testutil.NewServer(t)
	c := connect(t, srv)

	srv.QueueExecute(testutil.WriteResult(1, 7))
	srv.QueueExecute(testutil.UsersResult(2))

	res, err := c.Exec(context.Background(),
		"INSERT INTO users (name, email) VALUES (?, ?)", "user7", "user7@example.com")
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if res.AffectedRowCount != 1 {
		t.Errorf("expected 1 affected row, got %d", res.AffectedRowCount)
	}
	if id, ok := res.LastInsertID(); !ok || id != 7 {
		t.Errorf("expected last insert id 7, got %d (%v)", id, ok)
	}

	rows, err := c.Query(context.Background(), "SELECT id, name, email FROM users")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["name"] != "user1" {
		t.Errorf("expected name user1, got %v", rows[0]["name"])
	}
	if rows[1]["id"] != float64(2) {
		t.Errorf("expected id 2 as float64, got %T %v", rows[1]["id"], rows[1]["id"])
	}
}

// TestIntegration_Transaction runs a transactional batch through the
// condition evaluation of the fake server.
func TestIntegration_Transaction(t *testing.T) {
	srv := testutil.NewServer(t)
	c := connect(t, srv)

	stmts := []protocol.Stmt{
		{SQL: "INSERT INTO users (name) VALUES ('a')"},
		{SQL: "INSERT INTO users (name) VALUES ('b')"},
	}

	res, err := c.Transaction(context.Background(), hrana.TxImmediate, stmts)
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
	if err := res.Err(); err != nil {
		t.Fatalf("expected transaction to succeed, got %v", err)
	}

	if len(res.Results) != 2 {
		t.Fatalf("expected 2 aligned results, got %d", len(res.Results))
	}
	if res.Results[0] == nil || res.Results[1] == nil {
		t.Error("expected both statements to execute")
	}
	if res.RolledBack {
		t.Error("expected no rollback on the happy path")
	}

	sqls := requestSQL(srv)
	if !containsSQL(sqls, "BEGIN immediate") {
		t.Errorf("expected BEGIN in batch, got %v", sqls)
	}
	if !containsSQL(sqls, "COMMIT") {
		t.Errorf("expected COMMIT in batch, got %v", sqls)
	}
}

func TestIntegration_TransactionStatementFailure(t *testing.T) {
	srv := testutil.NewServer(t)
	c := connect(t, srv)

	srv.FailSQL("INSERT INTO broken", "SQLITE_ERROR", "no such table: broken")

	stmts := []protocol.Stmt{
		{SQL: "INSERT INTO broken (x) VALUES (1)"},
	}

	res, err := c.Transaction(context.Background(), hrana.TxDeferred, stmts)
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	if res.Err() == nil {
		t.Fatal("expected statement failure to surface through Err")
	}
	if res.Errors[0] == nil {
		t.Error("expected the in-band error at index 0")
	}
	if res.Results[0] != nil {
		t.Error("expected no result for the failed statement")
	}
}

// TestIntegration_BigIntMode verifies mode selection flows from the facade
// option down to row projection.
func TestIntegration_BigIntMode(t *testing.T) {
	srv := testutil.NewServer(t)
	c := connect(t, srv, hrana.WithIntegerMode(hrana.ModeBigInt))

	srv.QueueExecute(testutil.Result(
		testutil.Columns("n"),
		testutil.Row(testutil.Integer(9007199254740993)),
	))

	rows, err := c.Query(context.Background(), "SELECT n FROM counters")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	n, ok := rows[0]["n"].(*big.Int)
	if !ok {
		t.Fatalf("expected *big.Int, got %T", rows[0]["n"])
	}
	if n.String() != "9007199254740993" {
		t.Errorf("expected 9007199254740993, got %s", n)
	}
}

// TestIntegration_Migration applies and rolls back a migration through the
// facade client.
func TestIntegration_Migration(t *testing.T) {
	srv := testutil.NewServer(t)
	c := connect(t, srv)

	mc := migration.NewClient(c)
	migrations := []*migration.Migration{
		{
			ID:        "0001_create_events",
			Name:      "Create events table",
			Timestamp: time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC),
			Up: []string{
				`CREATE TABLE events (id INTEGER PRIMARY KEY, kind TEXT NOT NULL)`,
			},
			Down: []string{
				`DROP TABLE events;`,
			},
		},
	}

	plan, err := mc.Plan(migrations)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if err := mc.Apply(context.Background(), plan); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	record, ok := mc.GetMigrationRecord("0001_create_events")
	if !ok || record.Status != migration.Applied {
		t.Fatalf("expected applied record, got %+v", record)
	}

	if err := mc.Rollback(context.Background(), "0001_create_events", migrations); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	record, _ = mc.GetMigrationRecord("0001_create_events")
	if record.Status != migration.RolledBack {
		t.Errorf("expected rolled_back status, got %s", record.Status)
	}

	sqls := requestSQL(srv)
	if !containsSQL(sqls, "CREATE TABLE events") {
		t.Errorf("expected up statement on the wire, got %v", sqls)
	}
	if !containsSQL(sqls, "DROP TABLE events") {
		t.Errorf("expected down statement on the wire, got %v", sqls)
	}
}

// TestIntegration_SchemaSync drives the snapshot-diff-DDL loop end to end:
// introspect an empty database, diff against a local snapshot, and apply
// the generated DDL through the client.
func TestIntegration_SchemaSync(t *testing.T) {
	srv := testutil.NewServer(t)
	c := connect(t, srv)

	// Empty database
	srv.QueueExecute(testutil.Result(testutil.Columns("name")))

	live, err := schema.Introspect(context.Background(), c)
	if err != nil {
		t.Fatalf("Introspect failed: %v", err)
	}
	if len(live.Tables) != 0 {
		t.Fatalf("expected empty schema, got %d tables", len(live.Tables))
	}

	local := &schema.SchemaDefinition{
		Tables: []schema.TableDefinition{
			{
				Name: "users",
				Columns: []schema.ColumnDefinition{
					{Name: "id", Type: "INTEGER", PrimaryKey: true},
					{Name: "email", Type: "TEXT", NotNull: true},
				},
				Indexes: []schema.IndexDefinition{
					{Name: "idx_users_email", Unique: true, Columns: []string{"email"}},
				},
			},
		},
	}

	diff := schema.CompareSchemas(local, live)
	if !diff.HasChanges {
		t.Fatal("expected the snapshot to differ from an empty database")
	}

	statements, err := schema.GenerateDDL(diff)
	if err != nil {
		t.Fatalf("GenerateDDL failed: %v", err)
	}
	if len(statements) != 2 {
		t.Fatalf("expected 2 DDL statements, got %d", len(statements))
	}

	for _, ddl := range statements {
		if _, err := c.Exec(context.Background(), ddl); err != nil {
			t.Fatalf("failed to apply %q: %v", ddl, err)
		}
	}

	sqls := requestSQL(srv)
	if !containsSQL(sqls, `CREATE TABLE "users"`) {
		t.Errorf("expected table DDL on the wire, got %v", sqls)
	}
	if !containsSQL(sqls, `CREATE UNIQUE INDEX "idx_users_email"`) {
		t.Errorf("expected index DDL on the wire, got %v", sqls)
	}
}
