// Package transport defines the transport layer abstraction for the Hrana
// pipeline
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/lukeed/hrana/protocol"
)

// Transport carries pipeline envelopes to a server and back.
type Transport interface {
	// RoundTrip submits one pipeline request and returns the decoded
	// response. Transport-level failures are returned as errors; failures
	// reported inside the response envelope are left to the caller.
	RoundTrip(ctx context.Context, req *protocol.PipelineRequest) (*protocol.PipelineResponse, error)

	// Probe reports whether the server speaks the v3 pipeline protocol.
	// The error is non-nil only when the probe itself could not run.
	Probe(ctx context.Context) (bool, error)

	// Close releases any resources held by the transport
	Close() error

	// Metrics returns transport performance counters
	Metrics() Metrics
}

// Metrics contains transport performance counters.
type Metrics struct {
	// TotalRequests is the total number of round trips attempted
	TotalRequests int64

	// TotalErrors is the total number of failed round trips
	TotalErrors int64

	// AverageLatency is the average round-trip latency
	AverageLatency time.Duration

	// BytesSent is the total request body bytes written
	BytesSent int64

	// BytesReceived is the total response body bytes read
	BytesReceived int64

	// LastError is the most recent transport failure
	LastError error

	// LastErrorTime is when the last failure occurred
	LastErrorTime time.Time
}

// HTTPError is a non-2xx response from the server. The body is carried
// verbatim without interpretation so callers can inspect whatever the server
// sent.
type HTTPError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("pipeline request failed: HTTP %d", e.Status)
	}
	return fmt.Sprintf("pipeline request failed: HTTP %d: %s", e.Status, e.Body)
}
