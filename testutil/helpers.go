package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lukeed/hrana/client"
)

// NewTestClient builds a client against the fake server. The client is
// closed when the test ends.
func NewTestClient(t testing.TB, srv *Server, opts ...client.Option) *client.Client {
	t.Helper()

	all := append([]client.Option{client.WithLogger(client.NewNoopLogger())}, opts...)
	c, err := client.New(srv.URL(), all...)
	RequireNoError(t, err, "failed to build test client")

	t.Cleanup(func() { c.Close() })
	return c
}

// NewLiveClient builds a client against a real server named by the
// HRANA_TEST_URL environment variable. The test is skipped when the
// variable is unset.
//
// Example:
//
//	export HRANA_TEST_URL="https://db.example.com"
//	export HRANA_TEST_TOKEN="..."
//	c := testutil.NewLiveClient(t)
func NewLiveClient(t testing.TB) *client.Client {
	t.Helper()

	url := os.Getenv("HRANA_TEST_URL")
	if url == "" {
		t.Skip("HRANA_TEST_URL not set, skipping live test")
		return nil
	}

	opts := []client.Option{
		client.WithDebugMode(testing.Verbose()),
	}
	if token := os.Getenv("HRANA_TEST_TOKEN"); token != "" {
		opts = append(opts, client.WithAuthToken(token))
	}

	c, err := client.New(url, opts...)
	if err != nil {
		t.Fatalf("failed to build live client: %v", err)
	}

	t.Cleanup(func() { c.Close() })
	return c
}

// SetupTestTable creates a table and returns a cleanup function that drops
// it. Works against both the fake server and a live one.
//
// Example:
//
//	cleanup := testutil.SetupTestTable(t, c, "users", "id INTEGER PRIMARY KEY, name TEXT")
//	defer cleanup()
func SetupTestTable(t testing.TB, c *client.Client, table, columns string) func() {
	t.Helper()

	ctx, _ := WithTimeout(t)
	_, err := c.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, columns))
	RequireNoError(t, err, "failed to create test table")

	return func() {
		if _, err := c.Exec(ctx, "DROP TABLE "+table); err != nil {
			t.Logf("warning: failed to drop test table %s: %v", table, err)
		}
	}
}

// WithTimeout creates a context with timeout for tests.
// Default timeout is 10 seconds.
func WithTimeout(t testing.TB, timeout ...time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()

	duration := 10 * time.Second
	if len(timeout) > 0 {
		duration = timeout[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	t.Cleanup(cancel)

	return ctx, cancel
}

// RequireNoError fails the test if err is not nil.
func RequireNoError(t testing.TB, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("Unexpected error: %v - %v", err, msgAndArgs)
		} else {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
}

// RequireError fails the test if err is nil.
func RequireError(t testing.TB, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err == nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("Expected error but got nil - %v", msgAndArgs)
		} else {
			t.Fatal("Expected error but got nil")
		}
	}
}

// AssertEqual checks if two values are equal.
func AssertEqual(t testing.TB, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if expected != actual {
		if len(msgAndArgs) > 0 {
			t.Errorf("Not equal: expected=%v, actual=%v - %v", expected, actual, msgAndArgs)
		} else {
			t.Errorf("Not equal: expected=%v, actual=%v", expected, actual)
		}
	}
}

// AssertNotEqual checks if two values are not equal.
func AssertNotEqual(t testing.TB, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if expected == actual {
		if len(msgAndArgs) > 0 {
			t.Errorf("Should not be equal: value=%v - %v", actual, msgAndArgs)
		} else {
			t.Errorf("Should not be equal: value=%v", actual)
		}
	}
}

// AssertContains checks if a string contains a substring.
func AssertContains(t testing.TB, str, substr string, msgAndArgs ...interface{}) {
	t.Helper()
	if !strings.Contains(str, substr) {
		if len(msgAndArgs) > 0 {
			t.Errorf("String does not contain substring: str=%q, substr=%q - %v", str, substr, msgAndArgs)
		} else {
			t.Errorf("String does not contain substring: str=%q, substr=%q", str, substr)
		}
	}
}

// SkipIf skips the test if the condition is true.
func SkipIf(t testing.TB, condition bool, reason string) {
	t.Helper()
	if condition {
		t.Skip(reason)
	}
}
