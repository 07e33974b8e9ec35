package client

import (
	"net/http"
	"time"

	"github.com/lukeed/hrana/protocol"
	"github.com/lukeed/hrana/transport"
)

// ClientOptions configures the client behavior.
type ClientOptions struct {
	// AuthToken is the JWT sent as a bearer token on every request.
	// Default: "" (no authentication)
	AuthToken string

	// HTTPClient is the HTTP client used by the default transport.
	// If nil, a client with Timeout as its request timeout is used.
	HTTPClient *http.Client

	// Timeout bounds each pipeline round trip when HTTPClient is nil.
	// Default: 30s
	Timeout time.Duration

	// IntegerMode selects the Go representation of decoded integers for
	// Query results.
	// Default: ModeNumber
	IntegerMode protocol.IntegerMode

	// Logger is the logger implementation to use.
	// If nil, a default logger at LogLevel is used.
	Logger Logger

	// LogLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR).
	// Default: "INFO"
	LogLevel string

	// DebugMode enables verbose error formatting and request tracing.
	// Default: false
	DebugMode bool

	// Transport overrides the HTTP pipeline transport. When set, AuthToken,
	// HTTPClient and Timeout are ignored.
	Transport transport.Transport

	// Hooks run before and after every server operation, in order.
	Hooks []Hook
}

// DefaultOptions returns ClientOptions with default values.
func DefaultOptions() ClientOptions {
	return ClientOptions{
		Timeout:     30 * time.Second,
		IntegerMode: protocol.ModeNumber,
		LogLevel:    "INFO",
	}
}

// Option mutates ClientOptions during New.
type Option func(*ClientOptions)

// WithAuthToken sets the bearer token sent on every request.
func WithAuthToken(token string) Option {
	return func(o *ClientOptions) {
		o.AuthToken = token
	}
}

// WithHTTPClient sets the HTTP client used by the default transport.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *ClientOptions) {
		o.HTTPClient = httpClient
	}
}

// WithTimeout bounds each pipeline round trip.
func WithTimeout(timeout time.Duration) Option {
	return func(o *ClientOptions) {
		o.Timeout = timeout
	}
}

// WithIntegerMode selects the representation of decoded integers.
func WithIntegerMode(mode protocol.IntegerMode) Option {
	return func(o *ClientOptions) {
		o.IntegerMode = mode
	}
}

// WithLogger sets the logger implementation.
func WithLogger(logger Logger) Option {
	return func(o *ClientOptions) {
		o.Logger = logger
	}
}

// WithLogLevel sets the minimum log level for the default logger.
func WithLogLevel(level string) Option {
	return func(o *ClientOptions) {
		o.LogLevel = level
	}
}

// WithDebugMode toggles verbose error formatting and request tracing.
func WithDebugMode(enabled bool) Option {
	return func(o *ClientOptions) {
		o.DebugMode = enabled
	}
}

// WithTransport overrides the HTTP pipeline transport.
func WithTransport(t transport.Transport) Option {
	return func(o *ClientOptions) {
		o.Transport = t
	}
}

// WithHook appends an operation hook.
func WithHook(h Hook) Option {
	return func(o *ClientOptions) {
		o.Hooks = append(o.Hooks, h)
	}
}
