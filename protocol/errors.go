package protocol

import (
	"fmt"
)

// ErrorCode identifies a client-side protocol failure.
type ErrorCode int

const (
	// Codec errors (1000-1099)
	ErrorCodeUnknownValueType ErrorCode = 1001
	ErrorCodeIntegerFormat    ErrorCode = 1002
	ErrorCodeBase64           ErrorCode = 1003
	ErrorCodeUnsupportedBind  ErrorCode = 1004
	ErrorCodeIntegerMode      ErrorCode = 1005

	// Envelope errors (2000-2099)
	ErrorCodeEnvelope ErrorCode = 2001
)

// CodedError is a structured client-side failure raised while encoding or
// decoding wire data. Server-reported failures use Error instead.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// NewCodedError creates a coded error with an optional cause.
func NewCodedError(code ErrorCode, message string, cause error) *CodedError {
	return &CodedError{Code: code, Message: message, Cause: cause}
}

// UnknownValueTypeError reports a wire value with an unrecognized type tag.
func UnknownValueTypeError(t ValueType) *CodedError {
	return NewCodedError(ErrorCodeUnknownValueType, fmt.Sprintf("unknown wire value type %q", string(t)), nil)
}

// IntegerFormatError reports an integer payload that is not a decimal string.
func IntegerFormatError(literal string, cause error) *CodedError {
	return NewCodedError(ErrorCodeIntegerFormat, fmt.Sprintf("malformed integer literal %q", literal), cause)
}

// Base64Error reports a blob payload that no base64 alphabet can decode.
func Base64Error(cause error) *CodedError {
	return NewCodedError(ErrorCodeBase64, "malformed base64 blob payload", cause)
}

// UnsupportedBindError reports a Go value with no wire representation.
func UnsupportedBindError(v any) *CodedError {
	return NewCodedError(ErrorCodeUnsupportedBind, fmt.Sprintf("cannot bind value of type %T", v), nil)
}

// IntegerModeError reports an integer decoding mode outside the known set.
func IntegerModeError(mode IntegerMode) *CodedError {
	return NewCodedError(ErrorCodeIntegerMode, fmt.Sprintf("unknown integer mode %d", int(mode)), nil)
}

// EnvelopeError reports a pipeline envelope that does not match the expected
// shape.
func EnvelopeError(message string, cause error) *CodedError {
	return NewCodedError(ErrorCodeEnvelope, message, cause)
}
