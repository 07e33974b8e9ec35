package testutil_test

import (
	"testing"
	"time"

	"github.com/lukeed/hrana/testutil"
)

func TestWithTimeout(t *testing.T) {
	ctx, _ := testutil.WithTimeout(t, 100*time.Millisecond)
	select {
	case <-ctx.Done():
		t.Fatal("context canceled too early")
	default:
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if time.Until(deadline) > 100*time.Millisecond {
		t.Errorf("deadline too far out: %v", time.Until(deadline))
	}
}

func TestAssertEqual(t *testing.T) {
	testutil.AssertEqual(t, 42, 42, "values should be equal")
}

func TestAssertNotEqual(t *testing.T) {
	testutil.AssertNotEqual(t, 42, 43, "values should not be equal")
}

func TestAssertContains(t *testing.T) {
	testutil.AssertContains(t, "hello world", "world", "should contain substring")
}

func TestNewTestClient(t *testing.T) {
	srv := testutil.NewServer(t)
	c := testutil.NewTestClient(t, srv)

	ctx, _ := testutil.WithTimeout(t)
	testutil.RequireNoError(t, c.Ping(ctx))
}

func TestSetupTestTable(t *testing.T) {
	srv := testutil.NewServer(t)
	c := testutil.NewTestClient(t, srv)

	cleanup := testutil.SetupTestTable(t, c, "users", "id INTEGER PRIMARY KEY, name TEXT")
	cleanup()

	reqs := srv.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 pipeline requests, got %d", len(reqs))
	}
	testutil.AssertContains(t, reqs[0].Requests[0].Stmt.SQL, "CREATE TABLE users")
	testutil.AssertContains(t, reqs[1].Requests[0].Stmt.SQL, "DROP TABLE users")
}
