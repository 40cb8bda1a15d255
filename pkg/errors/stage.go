package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorCode represents a classified processing error.
type ErrorCode string

const (
	CodeInputMissing     ErrorCode = "input_missing"
	CodeUnreadable       ErrorCode = "unreadable"
	CodeEmptyContent     ErrorCode = "empty_content"
	CodeOutOfBounds      ErrorCode = "out_of_bounds"
	CodeMarkerMissing    ErrorCode = "marker_missing"
	CodeStorageError     ErrorCode = "storage_error"
	CodePublishError     ErrorCode = "publish_error"
	CodeContextCancelled ErrorCode = "context_cancelled"
	CodeTimeout          ErrorCode = "timeout"
	CodeProcessingError  ErrorCode = "processing_error"
)

// Stage names used by the batch processor and splitter.
const (
	StageRead    = "read"
	StageAgenda  = "agenda"
	StageMinutes = "minutes"
	StageSplit   = "split"
	StageWrite   = "write"
	StageStore   = "store"
	StagePublish = "publish"
)

// StageError is a structured error for a failed processing stage.
type StageError struct {
	Code    ErrorCode
	Stage   string
	Path    string
	Message string
	Cause   error
}

func (e *StageError) Error() string {
	switch {
	case e.Stage != "" && e.Path != "":
		return fmt.Sprintf("%s: %s %s: %s", e.Code, e.Stage, e.Path, e.Message)
	case e.Stage != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// ClassifyError inspects an error and returns a *StageError with the appropriate code.
// If the error doesn't match any known pattern, it returns a StageError with CodeProcessingError.
func ClassifyError(err error, stage string) *StageError {
	if err == nil {
		return nil
	}

	var existing *StageError
	if errors.As(err, &existing) {
		return existing
	}

	se := &StageError{
		Stage: stage,
		Cause: err,
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		se.Code = CodeTimeout
		se.Message = "operation timed out"
		return se
	case errors.Is(err, context.Canceled):
		se.Code = CodeContextCancelled
		se.Message = "operation cancelled"
		return se
	}

	msg := err.Error()
	se.Message = msg

	switch {
	case errors.Is(err, ErrInputMissing), errors.Is(err, fs.ErrNotExist):
		se.Code = CodeInputMissing
		return se
	case errors.Is(err, ErrUnreadable):
		se.Code = CodeUnreadable
		return se
	case errors.Is(err, ErrOutOfBounds):
		se.Code = CodeOutOfBounds
		return se
	}

	lower := strings.ToLower(msg)

	// Empty content patterns
	if strings.Contains(lower, "no text") || strings.Contains(lower, "empty content") || strings.Contains(lower, "no pages") {
		se.Code = CodeEmptyContent
		return se
	}

	// Marker patterns (file number not found where the agenda says it is)
	if strings.Contains(lower, "marker") || strings.Contains(lower, "not found in pages") {
		se.Code = CodeMarkerMissing
		return se
	}

	// Database patterns
	if strings.Contains(lower, "postgres") || strings.Contains(lower, "sqlstate") || strings.Contains(lower, "pgx") {
		se.Code = CodeStorageError
		return se
	}

	// Redis patterns
	if strings.Contains(lower, "redis") || strings.Contains(lower, "publish") {
		se.Code = CodePublishError
		return se
	}

	se.Code = CodeProcessingError
	return se
}

// NewStageError builds a StageError with a known code.
func NewStageError(code ErrorCode, stage, path string, cause error) *StageError {
	se := &StageError{Code: code, Stage: stage, Path: path, Cause: cause}
	if cause != nil {
		se.Message = cause.Error()
	}
	return se
}

// CodeOf returns the code of the first StageError in err's chain, or
// CodeProcessingError when there is none.
func CodeOf(err error) ErrorCode {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeProcessingError
}

// IsTimeout returns true if the error is a timeout error.
func IsTimeout(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code == CodeTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsErrorRetryable returns true if the error is likely transient and worth retrying.
// This function checks the error code using the ErrorCodeRegistry.
func IsErrorRetryable(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		if info, ok := ErrorCodeRegistry[se.Code]; ok {
			return info.Retryable
		}
		return false
	}
	return false
}
