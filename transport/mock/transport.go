// Package mock provides a scripted transport.Transport for testing
package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lukeed/hrana/protocol"
	"github.com/lukeed/hrana/transport"
)

// Transport implements transport.Transport with scripted responses. Queue
// responses and errors with the WithX configurators, then inspect the
// recorded requests after exercising the code under test.
type Transport struct {
	// Behavior configuration
	responses      []*protocol.PipelineResponse
	errs           []error
	replay         *protocol.PipelineResponse
	probeSupported bool
	probeErr       error
	delay          time.Duration

	// Call tracking
	roundTripCalls atomic.Int32
	probeCalls     atomic.Int32
	closeCalls     atomic.Int32

	mu       sync.RWMutex
	closed   bool
	requests []*protocol.PipelineRequest
}

// New creates a mock transport that reports v3 support and has nothing
// scripted. An unscripted round trip fails loudly so tests notice.
func New() *Transport {
	return &Transport{probeSupported: true}
}

// WithResponse queues a pipeline response. Responses are consumed in order,
// interleaved with queued errors: each round trip pops an error first if one
// is pending.
func (m *Transport) WithResponse(resp *protocol.PipelineResponse) *Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	return m
}

// WithError queues a transport failure for the next round trip.
func (m *Transport) WithError(err error) *Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
	return m
}

// WithReplay sets a response served whenever the queues are empty, instead of
// failing the round trip. Replayed round trips are not recorded; benchmarks
// use this to drive unlimited identical exchanges without growing state.
func (m *Transport) WithReplay(resp *protocol.PipelineResponse) *Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replay = resp
	return m
}

// WithProbe configures the probe outcome.
func (m *Transport) WithProbe(supported bool, err error) *Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeSupported = supported
	m.probeErr = err
	return m
}

// WithDelay adds a delay to every round trip, honoring context cancellation.
func (m *Transport) WithDelay(delay time.Duration) *Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
	return m
}

// RoundTrip implements transport.Transport.
func (m *Transport) RoundTrip(ctx context.Context, req *protocol.PipelineRequest) (*protocol.PipelineResponse, error) {
	m.roundTripCalls.Add(1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("transport is closed")
	}
	delay := m.delay

	var pendingErr error
	if len(m.errs) > 0 {
		pendingErr = m.errs[0]
		m.errs = m.errs[1:]
	}
	var resp *protocol.PipelineResponse
	if pendingErr == nil && len(m.responses) > 0 {
		resp = m.responses[0]
		m.responses = m.responses[1:]
	}
	if resp == nil && pendingErr == nil && m.replay != nil {
		resp = m.replay
	} else {
		m.requests = append(m.requests, req)
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if pendingErr != nil {
		return nil, pendingErr
	}
	if resp == nil {
		return nil, fmt.Errorf("no scripted response for request %d", m.roundTripCalls.Load())
	}
	return resp, nil
}

// Probe implements transport.Transport.
func (m *Transport) Probe(ctx context.Context) (bool, error) {
	m.probeCalls.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.probeSupported, m.probeErr
}

// Close implements transport.Transport.
func (m *Transport) Close() error {
	m.closeCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Metrics implements transport.Transport.
func (m *Transport) Metrics() transport.Metrics {
	return transport.Metrics{
		TotalRequests: int64(m.roundTripCalls.Load()),
	}
}

// Requests returns every recorded pipeline request in order.
func (m *Transport) Requests() []*protocol.PipelineRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modifications
	requests := make([]*protocol.PipelineRequest, len(m.requests))
	copy(requests, m.requests)
	return requests
}

// LastRequest returns the most recent pipeline request, or nil.
func (m *Transport) LastRequest() *protocol.PipelineRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// RoundTripCount returns the number of round trips attempted.
func (m *Transport) RoundTripCount() int {
	return int(m.roundTripCalls.Load())
}

// ProbeCount returns the number of probes attempted.
func (m *Transport) ProbeCount() int {
	return int(m.probeCalls.Load())
}

// CloseCount returns the number of times Close was called.
func (m *Transport) CloseCount() int {
	return int(m.closeCalls.Load())
}

// IsClosed returns whether the transport has been closed.
func (m *Transport) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Reset clears scripted behavior, recorded requests and call counts.
func (m *Transport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses = nil
	m.errs = nil
	m.replay = nil
	m.probeSupported = true
	m.probeErr = nil
	m.delay = 0
	m.closed = false
	m.requests = nil

	m.roundTripCalls.Store(0)
	m.probeCalls.Store(0)
	m.closeCalls.Store(0)
}
