package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a PeekError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *PeekError {
	if err == nil {
		return nil
	}

	// Preserve location and recoverability of an inner PeekError
	var pe *PeekError
	if errors.As(err, &pe) {
		return &PeekError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       pe,
			Context:     pe.Context,
			Component:   pe.Component,
			FilePath:    pe.FilePath,
			Line:        pe.Line,
			Column:      pe.Column,
			Recoverable: pe.Recoverable,
		}
	}

	return &PeekError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypeScan || errType == ErrorTypeGenerate,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *PeekError {
	pe := Wrap(err, ErrorTypeIO, code, message)
	if pe != nil {
		pe.Recoverable = false
	}
	return pe
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *PeekError {
	pe := Wrap(err, ErrorTypeConfig, code, message)
	if pe != nil {
		pe.Recoverable = false
	}
	return pe
}

// FormatError formats an error for user display
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var pe *PeekError
	if errors.As(err, &pe) {
		return pe.Error()
	}

	return err.Error()
}

// GetErrorContext extracts context information from a PeekError
func GetErrorContext(err error) map[string]interface{} {
	var pe *PeekError
	if errors.As(err, &pe) {
		context := make(map[string]interface{})
		for k, v := range pe.Context {
			context[k] = v
		}
		if pe.Component != "" {
			context["component"] = pe.Component
		}
		if pe.FilePath != "" {
			context["file"] = pe.FilePath
			if pe.Line > 0 {
				context["line"] = pe.Line
			}
		}
		context["type"] = string(pe.Type)
		context["code"] = pe.Code
		context["recoverable"] = pe.Recoverable
		return context
	}

	return map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}
}
