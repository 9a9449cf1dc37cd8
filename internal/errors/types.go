// Package errors provides the structured error type used across peek.
//
// Every failure that crosses a package boundary is a *PeekError carrying a
// category (Type), a stable code for programmatic handling, and whether the
// orchestrator may keep running after it. The categories mirror the failure
// taxonomy of the live-update loop: bootstrap failures abort the run, scan and
// generate failures are absorbed by the reconciler, daemon failures end the
// session.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeBootstrap  ErrorType = "bootstrap"
	ErrorTypeScan       ErrorType = "scan"
	ErrorTypeGenerate   ErrorType = "generate"
	ErrorTypeDaemon     ErrorType = "daemon"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// PeekError is a structured error type with context.
type PeekError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *PeekError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PeekError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PeekError) Is(target error) bool {
	var t *PeekError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PeekError) WithContext(key string, value interface{}) *PeekError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *PeekError) WithLocation(filePath string, line, column int) *PeekError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithComponent adds component context.
func (e *PeekError) WithComponent(component string) *PeekError {
	e.Component = component

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PeekError {
	return &PeekError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PeekError {
	return &PeekError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PeekError {
	return &PeekError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var pe *PeekError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}

	return false
}

// Common error codes.
const (
	ErrCodeInvalidPath       = "ERR_INVALID_PATH"
	ErrCodeParseFailed       = "ERR_PARSE_FAILED"
	ErrCodeFormatFailed      = "ERR_FORMAT_FAILED"
	ErrCodeWriteFailed       = "ERR_WRITE_FAILED"
	ErrCodeModuleNotFound    = "ERR_MODULE_NOT_FOUND"
	ErrCodeCreateFailed      = "ERR_SCAFFOLD_CREATE_FAILED"
	ErrCodeScaffoldMissing   = "ERR_SCAFFOLD_MISSING"
	ErrCodeBuildFailed       = "ERR_BUILD_FAILED"
	ErrCodeLocked            = "ERR_LOCKED"
	ErrCodeProcessStart      = "ERR_PROCESS_START"
	ErrCodeProcessExited     = "ERR_PROCESS_EXITED"
	ErrCodeRequestFailed     = "ERR_REQUEST_FAILED"
	ErrCodeMalformedEvent    = "ERR_MALFORMED_EVENT"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeCommandNotAllowed = "ERR_COMMAND_NOT_ALLOWED"
	ErrCodeInternalError     = "ERR_INTERNAL"
)
