// Package errors provides standardized error codes for the support desk host.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (auth, frame, storage, delivery, server)
//   - error: The specific error type within that domain
//
// Codes are stable and are returned to the operator console alongside a
// human-readable message.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
const (
	// Auth domain - handshake and credential errors
	CodeAuthInvalid     = "auth.invalid"      // Unknown identity or wrong token
	CodeAuthMalformed   = "auth.malformed"    // Handshake frame missing separator or fields
	CodeAuthRateLimited = "auth.rate_limited" // Too many handshake attempts
	CodeAuthIdentity    = "auth.bad_identity" // Identity cannot be issued (empty or contains separator)

	// Frame domain - inbound chat frame errors
	CodeFrameParseFailed  = "frame.parse_failed"  // Frame does not split into the expected fields
	CodeFrameInvalidField = "frame.invalid_field" // A field is empty or too long
	CodeFrameRateLimited  = "frame.rate_limited"  // Too many frames per second

	// Storage domain - database and persistence errors
	CodeStorageNotFound    = "storage.not_found"    // Credential or resource not found
	CodeStorageOpenFailed  = "storage.open_failed"  // Database open failed
	CodeStorageQueryFailed = "storage.query_failed" // Database query failed
	CodeStorageSaveFailed  = "storage.save_failed"  // Failed to save data

	// Delivery domain - operator replies
	CodeDeliveryClientOffline = "delivery.client_offline" // Target identity is not connected
	CodeDeliverySendFailed    = "delivery.send_failed"    // Transport write failed

	// Server domain - WebSocket and network errors
	CodeServerUpgradeFailed  = "server.upgrade_failed"  // WebSocket upgrade failed
	CodeServerInvalidMessage = "server.invalid_message" // Malformed operator request
	CodeServerConnectionLost = "server.connection_lost" // Connection unexpectedly closed

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal server error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "storage.not_found")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for errors that carry no code.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
// If the error is a CodedError, returns its message.
// Otherwise, returns the error's Error() string.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// ToCodeAndMessage extracts both code and message from an error.
// This is the primary function for converting errors to API responses.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}

	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Common error constructors.

// AuthInvalid creates an "auth.invalid" error for a failed handshake.
func AuthInvalid(identity string) *CodedError {
	return New(CodeAuthInvalid, fmt.Sprintf("invalid credentials for %q", identity))
}

// AuthMalformed creates an "auth.malformed" error.
func AuthMalformed(reason string) *CodedError {
	return New(CodeAuthMalformed, fmt.Sprintf("malformed handshake: %s", reason))
}

// ParseFailed creates a "frame.parse_failed" error.
func ParseFailed(reason string) *CodedError {
	return New(CodeFrameParseFailed, reason)
}

// InvalidField creates a "frame.invalid_field" error naming the offending field.
func InvalidField(field string, cause error) *CodedError {
	return Wrap(CodeFrameInvalidField, fmt.Sprintf("invalid %s", field), cause)
}

// NotFound creates a "storage.not_found" error.
func NotFound(resource string) *CodedError {
	return New(CodeStorageNotFound, fmt.Sprintf("%s not found", resource))
}

// SaveFailed creates a "storage.save_failed" error.
func SaveFailed(what string, cause error) *CodedError {
	return Wrap(CodeStorageSaveFailed, fmt.Sprintf("failed to save %s", what), cause)
}

// ClientOffline creates a "delivery.client_offline" error.
// The operator may retry once the client reconnects; nothing is queued.
func ClientOffline(identity string) *CodedError {
	return New(CodeDeliveryClientOffline, fmt.Sprintf("%s is not connected", identity))
}

// SendFailed creates a "delivery.send_failed" error.
func SendFailed(identity string, cause error) *CodedError {
	return Wrap(CodeDeliverySendFailed, fmt.Sprintf("failed to send to %s", identity), cause)
}

// InvalidMessage creates a "server.invalid_message" error.
func InvalidMessage(reason string) *CodedError {
	return New(CodeServerInvalidMessage, reason)
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}
