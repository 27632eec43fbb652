// Package errors provides structured error handling for Mooring.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess      = 0 // Successful execution
	ExitGeneral      = 1 // General/unknown error
	ExitInput        = 2 // Invalid input
	ExitNotConnected = 3 // No wallet connection established
	ExitNotFound     = 4 // Resource not found
	ExitUnavailable  = 5 // Service suspended or storage unavailable
)

// MooringError is the structured error type for Mooring.
type MooringError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *MooringError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *MooringError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for MooringError.
func (e *MooringError) Is(target error) bool {
	var t *MooringError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &MooringError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &MooringError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrTimeout = &MooringError{
		Code:     "TIMEOUT",
		Message:  "operation timed out",
		ExitCode: ExitGeneral,
	}

	// Connection errors.
	ErrNotConnected = &MooringError{
		Code:     "NOT_CONNECTED",
		Message:  "no wallet connection is established",
		ExitCode: ExitNotConnected,
	}

	ErrConnectionFailed = &MooringError{
		Code:     "CONNECTION_FAILED",
		Message:  "connection attempt failed",
		ExitCode: ExitGeneral,
	}

	ErrConnectionDeclined = &MooringError{
		Code:     "CONNECTION_DECLINED",
		Message:  "connection request was declined by the wallet",
		ExitCode: ExitGeneral,
	}

	ErrUnknownKind = &MooringError{
		Code:     "UNKNOWN_KIND",
		Message:  "unknown connection kind",
		ExitCode: ExitInput,
	}

	ErrUnsupportedChain = &MooringError{
		Code:     "UNSUPPORTED_CHAIN",
		Message:  "chain selector is not supported for this connection kind",
		ExitCode: ExitInput,
	}

	ErrCircuitOpen = &MooringError{
		Code:     "CIRCUIT_OPEN",
		Message:  "connection attempts suspended after repeated failures",
		ExitCode: ExitUnavailable,
	}

	ErrCallbackUnroutable = &MooringError{
		Code:     "CALLBACK_UNROUTABLE",
		Message:  "callback does not match any connection kind",
		ExitCode: ExitInput,
	}

	// Session errors.
	ErrSessionNotFound = &MooringError{
		Code:     "SESSION_NOT_FOUND",
		Message:  "session not found",
		ExitCode: ExitNotFound,
	}

	ErrSessionExpired = &MooringError{
		Code:     "SESSION_EXPIRED",
		Message:  "session has expired",
		ExitCode: ExitNotFound,
	}

	ErrSessionStale = &MooringError{
		Code:     "SESSION_STALE",
		Message:  "session is stale and needs a reconnect",
		ExitCode: ExitUnavailable,
	}

	ErrInvalidAddress = &MooringError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	// Storage errors.
	ErrStoreKeyNotFound = &MooringError{
		Code:     "STORE_KEY_NOT_FOUND",
		Message:  "no value stored under key",
		ExitCode: ExitNotFound,
	}

	ErrStorageFailed = &MooringError{
		Code:     "STORAGE_FAILED",
		Message:  "storage operation failed",
		ExitCode: ExitUnavailable,
	}

	ErrSnapshotInvalid = &MooringError{
		Code:     "SNAPSHOT_INVALID",
		Message:  "session snapshot is invalid",
		ExitCode: ExitGeneral,
	}

	ErrDecryptionFailed = &MooringError{
		Code:     "DECRYPTION_FAILED",
		Message:  "decryption failed - wrong key or corrupted data",
		ExitCode: ExitGeneral,
	}

	ErrKeyringUnavailable = &MooringError{
		Code:     "KEYRING_UNAVAILABLE",
		Message:  "OS keyring is unavailable",
		ExitCode: ExitUnavailable,
	}

	// Crypto errors.
	ErrCryptoFailed = &MooringError{
		Code:     "CRYPTO_FAILED",
		Message:  "cryptographic operation failed",
		ExitCode: ExitGeneral,
	}

	ErrPoolClosed = &MooringError{
		Code:     "CRYPTO_POOL_CLOSED",
		Message:  "crypto worker pool is closed",
		ExitCode: ExitGeneral,
	}

	// Config errors.
	ErrConfigNotFound = &MooringError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &MooringError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new MooringError with the given code and message.
func New(code, message string) *MooringError {
	return &MooringError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var me *MooringError
	if errors.As(err, &me) {
		return &MooringError{
			Code:       me.Code,
			Message:    fmt.Sprintf("%s: %s", msg, me.Message),
			Details:    me.Details,
			Suggestion: me.Suggestion,
			Cause:      err,
			ExitCode:   me.ExitCode,
		}
	}

	return &MooringError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var me *MooringError
	if errors.As(err, &me) {
		return &MooringError{
			Code:       me.Code,
			Message:    me.Message,
			Details:    details,
			Suggestion: me.Suggestion,
			Cause:      me.Cause,
			ExitCode:   me.ExitCode,
		}
	}

	return &MooringError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var me *MooringError
	if errors.As(err, &me) {
		return &MooringError{
			Code:       me.Code,
			Message:    me.Message,
			Details:    me.Details,
			Suggestion: suggestion,
			Cause:      me.Cause,
			ExitCode:   me.ExitCode,
		}
	}

	return &MooringError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var me *MooringError
	if errors.As(err, &me) {
		return me.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var me *MooringError
	if errors.As(err, &me) {
		return me.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
