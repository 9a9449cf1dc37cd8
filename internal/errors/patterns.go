package errors

import (
	"errors"
	"fmt"
)

// Bootstrap errors are fatal: there is nothing to run without a scaffold.

// BootstrapError creates a fatal scaffold bootstrap error.
func BootstrapError(code, message string, cause error) *PeekError {
	return &PeekError{
		Type:        ErrorTypeBootstrap,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Component:   "scaffold",
		Recoverable: false,
	}
}

// ScanError creates a recoverable error for a single file that failed to parse.
func ScanError(filePath, message string, cause error) *PeekError {
	return &PeekError{
		Type:        ErrorTypeScan,
		Code:        ErrCodeParseFailed,
		Message:     message,
		Cause:       cause,
		Component:   "scanner",
		FilePath:    filePath,
		Recoverable: true,
	}
}

// GenerateError creates a recoverable artifact generation error. The previous
// artifact on disk is left untouched when one of these is returned.
func GenerateError(code, message string, cause error) *PeekError {
	return &PeekError{
		Type:        ErrorTypeGenerate,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Component:   "renderer",
		Recoverable: true,
	}
}

// DaemonError creates an error raised by the companion process client.
func DaemonError(code, message string, cause error) *PeekError {
	return &PeekError{
		Type:        ErrorTypeDaemon,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Component:   "daemon",
		Recoverable: code == ErrCodeMalformedEvent,
	}
}

// ProcessExitedError reports the termination of the companion process.
func ProcessExitedError(exitCode int, cause error) *PeekError {
	return DaemonError(
		ErrCodeProcessExited,
		fmt.Sprintf("companion process exited with code %d", exitCode),
		cause,
	).WithContext("exit_code", exitCode)
}

// FileOperationError creates file operation errors.
func FileOperationError(operation, filePath, message string, cause error) *PeekError {
	return &PeekError{
		Type:        ErrorTypeIO,
		Code:        fmt.Sprintf("ERR_IO_%s", operation),
		Message:     message,
		Cause:       cause,
		FilePath:    filePath,
		Recoverable: false,
	}
}

// ConfigurationError creates configuration-related errors.
func ConfigurationError(setting, message string, value interface{}) *PeekError {
	return NewConfigError(
		ErrCodeConfigInvalid,
		fmt.Sprintf("invalid configuration for %s: %s", setting, message),
	).WithContext("setting", setting).WithContext("value", value)
}

// HasErrorCode checks if an error or any error in its chain has the given code.
func HasErrorCode(err error, code string) bool {
	for _, e := range GetErrorChain(err) {
		var pe *PeekError
		if errors.As(e, &pe) && pe.Code == code {
			return true
		}
	}
	return false
}

// HasErrorType checks if an error or any error in its chain has the given type.
func HasErrorType(err error, errType ErrorType) bool {
	for _, e := range GetErrorChain(err) {
		var pe *PeekError
		if errors.As(e, &pe) && pe.Type == errType {
			return true
		}
	}
	return false
}

// GetErrorChain returns the full chain of wrapped errors, outermost first.
func GetErrorChain(err error) []error {
	var chain []error
	for err != nil {
		chain = append(chain, err)
		err = errors.Unwrap(err)
	}
	return chain
}
