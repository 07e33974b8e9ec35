package client

import (
	"context"
	"testing"

	"github.com/lukeed/hrana/protocol"
	"github.com/lukeed/hrana/transport/mock"
)

// noopHook measures pure dispatch overhead.
type noopHook struct {
	name string
}

func (h *noopHook) Name() string { return h.name }

func (h *noopHook) Before(ctx context.Context, hookCtx *HookContext) error { return nil }

func (h *noopHook) After(ctx context.Context, hookCtx *HookContext) error { return nil }

// taggingHook does representative hook work: it stashes state in Before and
// reads the timing fields back in After.
type taggingHook struct {
	name string
}

func (h *taggingHook) Name() string { return h.name }

func (h *taggingHook) Before(ctx context.Context, hookCtx *HookContext) error {
	hookCtx.Metadata[h.name] = hookCtx.Fingerprint
	return nil
}

func (h *taggingHook) After(ctx context.Context, hookCtx *HookContext) error {
	_ = hookCtx.Duration
	_ = hookCtx.Metadata[h.name]
	return nil
}

// newBenchClient builds a client over a replaying transport so the loop can
// run any number of identical exchanges.
func newBenchClient(b *testing.B, hooks ...Hook) *Client {
	b.Helper()

	tr := mock.New().WithReplay(executeEnvelope(&protocol.StmtResult{AffectedRowCount: 1}))
	c, err := New("", WithTransport(tr), WithLogger(NewNoopLogger()))
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	for _, h := range hooks {
		c.RegisterHook(h)
	}
	b.Cleanup(func() { c.Close() })
	return c
}

func benchmarkExec(b *testing.B, c *Client) {
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Exec(ctx, "UPDATE counters SET n = n + 1"); err != nil {
			b.Fatalf("exec: %v", err)
		}
	}
}

func BenchmarkExecNoHooks(b *testing.B) {
	benchmarkExec(b, newBenchClient(b))
}

func BenchmarkExec1Hook(b *testing.B) {
	benchmarkExec(b, newBenchClient(b, &noopHook{name: "noop1"}))
}

func BenchmarkExec3Hooks(b *testing.B) {
	benchmarkExec(b, newBenchClient(b,
		&noopHook{name: "noop1"},
		&noopHook{name: "noop2"},
		&noopHook{name: "noop3"},
	))
}

func BenchmarkExec3TaggingHooks(b *testing.B) {
	benchmarkExec(b, newBenchClient(b,
		&taggingHook{name: "tag1"},
		&taggingHook{name: "tag2"},
		&taggingHook{name: "tag3"},
	))
}

func BenchmarkRunBeforeHooks(b *testing.B) {
	c := newBenchClient(b,
		&noopHook{name: "noop1"},
		&noopHook{name: "noop2"},
		&noopHook{name: "noop3"},
	)
	hooks := c.snapshotHooks()
	ctx := context.Background()
	hookCtx := &HookContext{
		Op:       "execute",
		SQL:      "SELECT 1",
		Metadata: make(map[string]any),
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.runBeforeHooks(ctx, hooks, hookCtx); err != nil {
			b.Fatalf("before hooks: %v", err)
		}
	}
}

func BenchmarkHookRegistration(b *testing.B) {
	c := newBenchClient(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.RegisterHook(&noopHook{name: "bench"})
		c.UnregisterHook("bench")
	}
}

func BenchmarkFingerprintAlt(b *testing.B) {
	const sql = "SELECT id, name, email FROM users WHERE created_at > ? ORDER BY id LIMIT 50"

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Fingerprint(sql)
	}
}
