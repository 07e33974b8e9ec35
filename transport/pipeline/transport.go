// Package pipeline implements the Hrana v3 HTTP pipeline transport
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lukeed/hrana/protocol"
	"github.com/lukeed/hrana/transport"
)

const (
	pipelinePath = "/v3/pipeline"
	probePath    = "/v3"
	userAgent    = "hrana-go"
)

// Transport speaks the v3 pipeline protocol over HTTP. Every round trip is a
// single POST carrying the full request list; no baton state is kept between
// calls, so one Transport is safe for concurrent use.
type Transport struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	metrics    transportMetrics
}

// transportMetrics tracks transport performance
type transportMetrics struct {
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
	latencySum    atomic.Int64 // nanoseconds
	mu            sync.RWMutex
	lastError     error
	lastErrorTime time.Time
}

// New creates an HTTP pipeline transport for the given base URL. A libsql://
// URL is treated as https://. The auth token, when non-empty, is sent as a
// bearer token on every request. Pass nil to use a default HTTP client with a
// 30 second timeout.
func New(baseURL, authToken string, httpClient *http.Client) (*Transport, error) {
	normalized, err := normalizeURL(baseURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Transport{
		baseURL:    normalized,
		authToken:  authToken,
		httpClient: httpClient,
	}, nil
}

// normalizeURL validates the base URL and strips trailing slashes
func normalizeURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http", "https":
	case "libsql":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base URL %q has no host", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// BaseURL returns the normalized server URL.
func (t *Transport) BaseURL() string {
	return t.baseURL
}

// RoundTrip implements transport.Transport.
func (t *Transport) RoundTrip(ctx context.Context, req *protocol.PipelineRequest) (*protocol.PipelineResponse, error) {
	start := time.Now()
	t.metrics.totalRequests.Add(1)

	body, err := json.Marshal(req)
	if err != nil {
		t.recordError(err)
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+pipelinePath, bytes.NewReader(body))
	if err != nil {
		t.recordError(err)
		return nil, err
	}
	t.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		t.recordError(err)
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		t.recordError(err)
		return nil, err
	}

	t.metrics.bytesSent.Add(int64(len(body)))
	t.metrics.bytesReceived.Add(int64(len(respBody)))

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		err := &transport.HTTPError{Status: httpResp.StatusCode, Body: string(respBody)}
		t.recordError(err)
		return nil, err
	}

	var resp protocol.PipelineResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		envErr := protocol.EnvelopeError("malformed pipeline response", err)
		t.recordError(envErr)
		return nil, envErr
	}

	t.recordLatency(time.Since(start))
	return &resp, nil
}

// Probe implements transport.Transport. Any 2xx status means the server
// supports the v3 pipeline protocol.
func (t *Transport) Probe(ctx context.Context) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+probePath, nil)
	if err != nil {
		return false, err
	}
	t.setHeaders(httpReq)

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return false, err
	}
	defer httpResp.Body.Close()
	io.Copy(io.Discard, httpResp.Body)

	return httpResp.StatusCode >= 200 && httpResp.StatusCode <= 299, nil
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

// Metrics implements transport.Transport.
func (t *Transport) Metrics() transport.Metrics {
	t.metrics.mu.RLock()
	lastErr := t.metrics.lastError
	lastErrTime := t.metrics.lastErrorTime
	t.metrics.mu.RUnlock()

	totalReqs := t.metrics.totalRequests.Load()
	avgLatency := time.Duration(0)
	if totalReqs > 0 {
		avgLatency = time.Duration(t.metrics.latencySum.Load() / totalReqs)
	}

	return transport.Metrics{
		TotalRequests:  totalReqs,
		TotalErrors:    t.metrics.totalErrors.Load(),
		AverageLatency: avgLatency,
		BytesSent:      t.metrics.bytesSent.Load(),
		BytesReceived:  t.metrics.bytesReceived.Load(),
		LastError:      lastErr,
		LastErrorTime:  lastErrTime,
	}
}

// setHeaders applies the headers shared by every request
func (t *Transport) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	if t.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.authToken)
	}
}

// recordError records a failed round trip in metrics
func (t *Transport) recordError(err error) {
	t.metrics.totalErrors.Add(1)
	t.metrics.mu.Lock()
	t.metrics.lastError = err
	t.metrics.lastErrorTime = time.Now()
	t.metrics.mu.Unlock()
}

// recordLatency records round-trip latency in metrics
func (t *Transport) recordLatency(latency time.Duration) {
	t.metrics.latencySum.Add(int64(latency))
}
