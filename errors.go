package formula

import "fmt"

// AppErrorCode represents gRPC-style codes for host API errors. formula
// errors are values and never use these.
type AppErrorCode int

const (
	// Unknown error, for failures that carry no better classification.
	Unknown AppErrorCode = 2

	// InvalidArgument means the caller passed a malformed address, name or
	// value.
	InvalidArgument AppErrorCode = 3

	// NotFound means a worksheet or named range does not exist.
	NotFound AppErrorCode = 5

	// AlreadyExists means a worksheet, named range or function name is
	// already taken.
	AlreadyExists AppErrorCode = 6

	// OutOfRange means a row or column lies outside the sheet bounds.
	OutOfRange AppErrorCode = 11

	// Internal means an invariant of the workbook was broken.
	Internal AppErrorCode = 13
)

func (c AppErrorCode) String() string {
	switch c {
	case Unknown:
		return "Unknown"
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case OutOfRange:
		return "OutOfRange"
	case Internal:
		return "Internal"
	}
	return fmt.Sprintf("AppErrorCode(%d)", int(c))
}

// AppError is returned by the workbook and registry APIs
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func appErrorf(code AppErrorCode, format string, args ...any) *AppError {
	return NewApplicationError(code, fmt.Sprintf(format, args...))
}
