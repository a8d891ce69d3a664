// Package errors provides structured error handling for ipscannr operations.
// It defines error codes and error types that carry the target or field they
// relate to, plus helpers to classify errors returned by the engine.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodePermission    ErrorCode = "PERMISSION"

	// Scanning errors.
	CodeTargetInvalid ErrorCode = "TARGET_INVALID"
	CodeHostNotFound  ErrorCode = "HOST_NOT_FOUND"
	CodeInvalidState  ErrorCode = "INVALID_STATE"

	// Cache errors.
	CodeCacheIO ErrorCode = "CACHE_IO"
)

// ScanError represents an error that occurred during scanning operations.
type ScanError struct {
	Code      ErrorCode
	Message   string
	Target    string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, msg, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithOperation records the operation that failed.
func (e *ScanError) WithOperation(op string) *ScanError {
	e.Operation = op
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
	}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
	}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// IsCode checks if an error, or any error it wraps, has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from the first coded error in the chain.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if stderrors.As(err, &scanErr) {
		return scanErr.Code
	}
	var cfgErr *ConfigError
	if stderrors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return CodeUnknown
}

// IsParseError reports whether err was produced while parsing a range expression.
func IsParseError(err error) bool {
	return IsCode(err, CodeTargetInvalid)
}

// Common error creation functions

// ErrInvalidTarget creates an error for invalid scan targets.
func ErrInvalidTarget(target string) *ScanError {
	return NewScanErrorWithTarget(CodeTargetInvalid, "invalid target", target)
}

// ErrInvalidRange creates a parse error describing why a range expression was rejected.
func ErrInvalidRange(target, reason string) *ScanError {
	return NewScanErrorWithTarget(CodeTargetInvalid, reason, target)
}

// WrapInvalidRange creates a parse error caused by a lower level parse failure.
func WrapInvalidRange(target, reason string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeTargetInvalid, reason, target, err)
}

// ErrRangeTooLarge rejects a range that expands past the configured limit.
func ErrRangeTooLarge(target string, size, limit uint64) *ScanError {
	return NewScanErrorWithTarget(CodeTargetInvalid,
		fmt.Sprintf("range has %d addresses, limit is %d", size, limit), target)
}

// ErrScanCanceled reports a run that stopped before every address was scanned.
func ErrScanCanceled(target string, completed, total int) *ScanError {
	return NewScanErrorWithTarget(CodeCanceled,
		fmt.Sprintf("scan interrupted after %d of %d addresses", completed, total), target)
}

// ErrInvalidState creates an error for an operation issued in the wrong session state.
func ErrInvalidState(operation, state string) *ScanError {
	return NewScanError(CodeInvalidState,
		fmt.Sprintf("cannot %s while %s", operation, state)).WithOperation(operation)
}

// ErrHostNotFound creates an error for a host that is not part of the current session.
func ErrHostNotFound(target string) *ScanError {
	return NewScanErrorWithTarget(CodeHostNotFound, "host not found in session", target)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "required configuration field missing", field, nil)
}
