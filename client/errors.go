package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/lukeed/hrana/protocol"
)

var (
	// ErrUnsupported reports that the server does not speak the v3
	// pipeline protocol.
	ErrUnsupported = errors.New("server does not support the v3 pipeline protocol")

	// ErrClosed reports use of a client after Close.
	ErrClosed = errors.New("client is closed")
)

// ProtocolError reports a pipeline entry the server rejected, or a response
// envelope that does not line up with what was submitted. Per-step failures
// inside a batch are not errors; they stay in BatchResult.
type ProtocolError struct {
	Code       string         `json:"code"`
	Type       string         `json:"type"`
	Op         string         `json:"op"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
	StackTrace []string       `json:"stack_trace,omitempty"`
	Timestamp  time.Time      `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s (caused by: %s)", e.Code, e.Op, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
}

// FormatError formats the error based on debug mode. Debug mode renders the
// full JSON form with stack trace and timestamp.
func (e *ProtocolError) FormatError(debugMode bool) string {
	if !debugMode {
		return e.Error()
	}
	return formatDebugJSON(e)
}

// Unwrap returns the underlying cause for errors.Is and errors.As.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// ErrPipeline wraps a server-rejected pipeline entry. The server's error is
// kept as the cause, so errors.As recovers the raw *protocol.Error.
func ErrPipeline(op string, serverErr *protocol.Error) *ProtocolError {
	code := serverErr.Code
	if code == "" {
		code = "E_PIPELINE"
	}
	return &ProtocolError{
		Code:       code,
		Type:       "PROTOCOL_ERROR",
		Op:         op,
		Message:    serverErr.Message,
		Cause:      serverErr,
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrEnvelope reports a response envelope that does not match the submitted
// pipeline.
func ErrEnvelope(op, message string, cause error) *ProtocolError {
	return &ProtocolError{
		Code:       "E_ENVELOPE",
		Type:       "PROTOCOL_ERROR",
		Op:         op,
		Message:    message,
		Cause:      cause,
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ConfigError reports invalid client configuration.
type ConfigError struct {
	Code    string         `json:"code"`
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FormatError formats the error based on debug mode.
func (e *ConfigError) FormatError(debugMode bool) string {
	if !debugMode {
		return e.Error()
	}
	return formatDebugJSON(e)
}

// ErrMissingURL creates an error for a client built without a base URL.
func ErrMissingURL() *ConfigError {
	return &ConfigError{
		Code:    "E_CONFIG_URL",
		Type:    "CONFIG_ERROR",
		Message: "base URL is required",
	}
}

// ErrInvalidIntegerMode creates an error for an unknown integer mode.
func ErrInvalidIntegerMode(mode protocol.IntegerMode) *ConfigError {
	return &ConfigError{
		Code:    "E_CONFIG_INTEGER_MODE",
		Type:    "CONFIG_ERROR",
		Message: fmt.Sprintf("unknown integer mode %d", int(mode)),
		Details: map[string]any{
			"mode": int(mode),
		},
	}
}

// FormatError formats any error honoring debug mode for the structured types.
func FormatError(err error, debugMode bool) string {
	if err == nil {
		return ""
	}
	switch e := err.(type) {
	case *ProtocolError:
		return e.FormatError(debugMode)
	case *ConfigError:
		return e.FormatError(debugMode)
	default:
		return err.Error()
	}
}

// formatDebugJSON renders the full indented JSON form of a structured error
func formatDebugJSON(e any) string {
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", e)
	}
	return string(b)
}

// captureStackTrace captures the current stack trace for error reporting.
func captureStackTrace() []string {
	const maxDepth = 16
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(3, pcs)

	frames := make([]string, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := callersFrames.Next()
		frames = append(frames, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return frames
}
