package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lukeed/hrana/mapper"
	"github.com/lukeed/hrana/protocol"
	"github.com/lukeed/hrana/transport"
	"github.com/lukeed/hrana/transport/pipeline"
)

// Client talks to a Hrana v3 server over single-exchange HTTP pipelines.
// Every operation submits its requests plus a trailing stream close in one
// POST, so no server-side stream outlives the call. Safe for concurrent use.
type Client struct {
	baseURL   string
	transport transport.Transport
	opts      ClientOptions
	logger    Logger
	debugMode atomic.Bool
	closed    atomic.Bool
	hooks     []Hook       // Registered hooks in execution order
	hooksMu   sync.RWMutex // Protects hooks slice
}

// New creates a client for the server at baseURL. The URL accepts the http,
// https and libsql schemes; libsql is rewritten to https. A custom Transport
// option bypasses URL handling entirely, which is how tests substitute a
// scripted transport.
func New(baseURL string, opts ...Option) (*Client, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.Logger
	if logger == nil {
		logger = NewLogger(o.LogLevel, nil)
	}

	if !o.IntegerMode.Valid() {
		return nil, ErrInvalidIntegerMode(o.IntegerMode)
	}

	tr := o.Transport
	if tr == nil {
		if baseURL == "" {
			return nil, ErrMissingURL()
		}
		httpClient := o.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: o.Timeout}
		}
		pt, err := pipeline.New(baseURL, o.AuthToken, httpClient)
		if err != nil {
			return nil, err
		}
		tr = pt
		baseURL = pt.BaseURL()
	}

	client := &Client{
		baseURL:   baseURL,
		transport: tr,
		opts:      o,
		logger:    logger,
	}
	client.debugMode.Store(o.DebugMode)

	for _, hook := range o.Hooks {
		client.RegisterHook(hook)
	}

	client.warnIfTokenExpired()

	logger.Debug("client initialized",
		String("base_url", baseURL),
		String("integer_mode", o.IntegerMode.String()))

	return client, nil
}

// BaseURL returns the normalized server URL, or "" when a custom transport
// was supplied.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Version returns the build version of the client.
func (c *Client) Version() string {
	return Version
}

// SetLogLevel changes the logging level at runtime.
// Valid levels: DEBUG, INFO, WARN, ERROR.
func (c *Client) SetLogLevel(level string) {
	parsedLevel := ParseLogLevel(level)

	c.opts.LogLevel = level

	// If using default logger, update its level via recreating
	if _, ok := c.logger.(*defaultLogger); ok {
		c.logger = NewLogger(parsedLevel.String(), nil)
		c.logger.Info("log level changed", String("newLevel", level))
	}
}

// Execute runs one statement in its own pipeline and returns its result.
// A statement the server rejects comes back as a *ProtocolError; transport
// failures come back as the transport's own error types.
func (c *Client) Execute(ctx context.Context, stmt *protocol.Stmt) (*protocol.StmtResult, error) {
	resp, err := c.exchange(ctx, "execute", stmt.SQL, protocol.ExecuteRequest(stmt))
	if err != nil {
		return nil, err
	}

	entry := resp.Results[0]
	switch entry.Type {
	case protocol.ResultError:
		if entry.Error == nil {
			return nil, ErrEnvelope("execute", "error entry carries no error object", nil)
		}
		return nil, ErrPipeline("execute", entry.Error)
	case protocol.ResultOk:
		if entry.Response == nil || entry.Response.Execute == nil {
			return nil, ErrEnvelope("execute", "ok entry carries no execute result", nil)
		}
		return entry.Response.Execute, nil
	default:
		return nil, ErrEnvelope("execute", fmt.Sprintf("unknown result type %q", entry.Type), nil)
	}
}

// Batch runs a multi-step batch in one round trip. Per-step failures are
// in-band on the returned BatchResult; only rejection of the batch entry
// itself becomes an error.
func (c *Client) Batch(ctx context.Context, batch *protocol.Batch) (*protocol.BatchResult, error) {
	return c.batch(ctx, "batch", batch)
}

func (c *Client) batch(ctx context.Context, op string, batch *protocol.Batch) (*protocol.BatchResult, error) {
	resp, err := c.exchange(ctx, op, firstStepSQL(batch), protocol.BatchRequest(batch))
	if err != nil {
		return nil, err
	}

	entry := resp.Results[0]
	switch entry.Type {
	case protocol.ResultError:
		if entry.Error == nil {
			return nil, ErrEnvelope(op, "error entry carries no error object", nil)
		}
		return nil, ErrPipeline(op, entry.Error)
	case protocol.ResultOk:
		if entry.Response == nil || entry.Response.Batch == nil {
			return nil, ErrEnvelope(op, "ok entry carries no batch result", nil)
		}
		return entry.Response.Batch, nil
	default:
		return nil, ErrEnvelope(op, fmt.Sprintf("unknown result type %q", entry.Type), nil)
	}
}

// Exec executes sql with positional arguments bound from Go values. Rows are
// not requested, which lets the server skip materializing them.
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (*protocol.StmtResult, error) {
	stmt, err := NewStmt(sql).Bind(args...).WantRows(false).Build()
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, stmt)
}

// Query executes sql with positional arguments and projects the result into
// named rows using the client's integer mode.
func (c *Client) Query(ctx context.Context, sql string, args ...any) ([]mapper.Row, error) {
	stmt, err := NewStmt(sql).Bind(args...).Build()
	if err != nil {
		return nil, err
	}
	res, err := c.Execute(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return mapper.Rows(res, mapper.WithIntegerMode(c.opts.IntegerMode))
}

// Ping probes the server for v3 pipeline support. It returns ErrUnsupported
// when the server answers but does not speak the protocol.
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	hookCtx := &HookContext{
		Op:        "ping",
		TraceID:   uuid.New().String(),
		StartTime: start,
		Metadata:  make(map[string]any),
	}

	hooks := c.snapshotHooks()
	if err := c.runBeforeHooks(ctx, hooks, hookCtx); err != nil {
		return err
	}

	supported, err := c.transport.Probe(ctx)
	if err == nil && !supported {
		err = ErrUnsupported
	}

	hookCtx.Error = err
	hookCtx.Duration = time.Since(start)
	if hookErr := c.runAfterHooks(ctx, hooks, hookCtx); hookErr != nil {
		err = hookErr
	}

	if err != nil {
		c.logger.Warn("ping failed", Error("error", err))
		return err
	}

	c.logger.Debug("ping succeeded", Duration("duration", hookCtx.Duration))
	return nil
}

// Metrics returns the transport's counters for this client.
func (c *Client) Metrics() transport.Metrics {
	return c.transport.Metrics()
}

// Close marks the client closed and releases transport resources. Further
// operations return ErrClosed, as does a second Close.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return ErrClosed
	}

	c.logger.Info("client closed")
	return c.transport.Close()
}

// exchange submits one pipeline with a trailing stream close and returns the
// parsed envelope. It owns the hook chain, trace logging and the result
// count check shared by every operation.
func (c *Client) exchange(ctx context.Context, op, sql string, entries ...protocol.StreamRequest) (*protocol.PipelineResponse, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	traceID := uuid.New().String()
	debugMode := c.IsDebugMode()

	hookCtx := &HookContext{
		Op:        op,
		SQL:       sql,
		TraceID:   traceID,
		StartTime: start,
		Metadata:  make(map[string]any),
	}
	if sql != "" {
		hookCtx.Fingerprint = Fingerprint(sql)
	}

	hooks := c.snapshotHooks()
	if err := c.runBeforeHooks(ctx, hooks, hookCtx); err != nil {
		return nil, err
	}

	req := &protocol.PipelineRequest{
		Requests: append(entries, protocol.CloseRequest()),
	}

	if debugMode {
		c.logger.Debug("sending pipeline request",
			String("trace_id", traceID),
			String("op", op),
			Int("entries", len(req.Requests)),
			String("fingerprint", hookCtx.Fingerprint))
	}

	resp, err := c.transport.RoundTrip(ctx, req)
	duration := time.Since(start)

	hookCtx.Error = err
	hookCtx.Duration = duration

	if debugMode {
		c.logger.Debug("received pipeline response",
			String("trace_id", traceID),
			Duration("elapsed", duration),
			Bool("success", err == nil))
	}

	if hookErr := c.runAfterHooks(ctx, hooks, hookCtx); hookErr != nil {
		// Hook error replaces original error
		err = hookErr
	}

	if err != nil {
		c.logger.Error("pipeline exchange failed",
			String("op", op),
			String("trace_id", traceID),
			Error("error", err),
			Duration("duration", duration))
		return nil, err
	}

	if got, want := len(resp.Results), len(req.Requests); got != want {
		return nil, ErrEnvelope(op,
			fmt.Sprintf("response carries %d results for %d requests", got, want), nil)
	}

	c.logger.Debug("pipeline exchange completed",
		String("op", op),
		String("trace_id", traceID),
		Duration("duration", duration))

	return resp, nil
}

// firstStepSQL picks the statement text hooks see for a batch operation.
func firstStepSQL(batch *protocol.Batch) string {
	if batch == nil || len(batch.Steps) == 0 {
		return ""
	}
	return batch.Steps[0].Stmt.SQL
}
