package extraction

import (
	"errors"
	"fmt"
)

// ExtractionErrorCode represents specific extraction error types.
type ExtractionErrorCode string

const (
	ErrUnreadableDocument ExtractionErrorCode = "UNREADABLE_DOCUMENT"
	ErrNoText             ExtractionErrorCode = "NO_TEXT"
	ErrPanic              ExtractionErrorCode = "PANIC"
	ErrInternal           ExtractionErrorCode = "INTERNAL"
)

// ExtractionError is a structured error for a single document's extraction.
type ExtractionError struct {
	Code    ExtractionErrorCode
	Message string
	Path    string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// RowError renders err for the error column of a report row:
// "P&L parse error: <CODE>: <message>".
func RowError(err error) string {
	if err == nil {
		return ""
	}
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		msg := extErr.Message
		if extErr.Cause != nil {
			msg = fmt.Sprintf("%s: %v", msg, extErr.Cause)
		}
		return fmt.Sprintf("P&L parse error: %s: %s", extErr.Code, msg)
	}
	return fmt.Sprintf("P&L parse error: %s: %s", ErrInternal, err.Error())
}
