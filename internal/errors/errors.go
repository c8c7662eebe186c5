package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the OCR worker
 *
 * The taxonomy mirrors the fallback pipeline's propagation policy:
 * per-engine processing and timeout errors are caught inside the factory
 * and only surface when every attempted engine failed.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Engine construction errors (non-fatal at pool level)
	ErrorConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// Per-engine processing errors (transient, trigger fallback)
	ErrorProcessingFailed  ErrorCode = "PROCESSING_FAILED"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"

	// Input errors
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Fatal orchestration error
	ErrorAllEnginesFailed ErrorCode = "ALL_ENGINES_FAILED"
)

// OCRError represents a structured OCR error
type OCRError struct {
	Code      ErrorCode
	Message   string
	Engine    string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *OCRError) Error() string {
	prefix := string(e.Code)
	if e.Engine != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Code, e.Engine)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *OCRError) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err (or anything it wraps) is an OCRError with
// the given code.
func IsCode(err error, code ErrorCode) bool {
	var ocrErr *OCRError
	if stderrors.As(err, &ocrErr) {
		return ocrErr.Code == code
	}
	return false
}

// Factory functions for common errors

func NewConfigurationError(engine string, message string, cause error) *OCRError {
	return &OCRError{
		Code:      ErrorConfiguration,
		Message:   message,
		Engine:    engine,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewProcessingError(engine string, message string, cause error) *OCRError {
	return &OCRError{
		Code:      ErrorProcessingFailed,
		Message:   message,
		Engine:    engine,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewTimeoutError(engine string, timeout time.Duration, cause error) *OCRError {
	return &OCRError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("processing timed out after %v", timeout),
		Engine:    engine,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout": timeout.String(),
		},
		Cause: cause,
	}
}

func NewEngineUnavailableError(engine string, message string) *OCRError {
	return &OCRError{
		Code:      ErrorEngineUnavailable,
		Message:   message,
		Engine:    engine,
		Timestamp: time.Now(),
	}
}

func NewUnsupportedFormatError(detected string) *OCRError {
	return &OCRError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("unsupported input format: %s", detected),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"detected_format": detected,
		},
	}
}

func NewAllEnginesFailedError(attempted []string, cause error) *OCRError {
	return &OCRError{
		Code:      ErrorAllEnginesFailed,
		Message:   "all OCR engines failed",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"attempted_engines": attempted,
		},
		Cause: cause,
	}
}

// ToMap converts error to map for task result reporting
func (e *OCRError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.Engine != "" {
		result["engine"] = e.Engine
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
