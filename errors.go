package ctm

import (
	"errors"
	"fmt"
)

// ErrorCode is the latched error taxonomy exposed at the Context boundary,
// mirroring the CTM_* error enum of the original OpenCTM API surface.
type ErrorCode uint32

const (
	ErrNone ErrorCode = iota
	ErrInvalidContext
	ErrInvalidArgument
	ErrInvalidOperation
	ErrInvalidMesh
	ErrOutOfMemory
	ErrFileError
	ErrFormatError
	ErrLZMAError
	ErrInternalError
)

func (e ErrorCode) String() string {
	switch e {
	case ErrNone:
		return "NONE"
	case ErrInvalidContext:
		return "INVALID_CONTEXT"
	case ErrInvalidArgument:
		return "INVALID_ARGUMENT"
	case ErrInvalidOperation:
		return "INVALID_OPERATION"
	case ErrInvalidMesh:
		return "INVALID_MESH"
	case ErrOutOfMemory:
		return "OUT_OF_MEMORY"
	case ErrFileError:
		return "FILE_ERROR"
	case ErrFormatError:
		return "FORMAT_ERROR"
	case ErrLZMAError:
		return "LZMA_ERROR"
	case ErrInternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// codedError attaches a latched ErrorCode to an underlying error so internal
// plumbing can keep returning plain Go errors while the Context boundary
// still classifies them into the CTM_* taxonomy.
type codedError struct {
	code ErrorCode
	err  error
}

func (e *codedError) Error() string {
	if e.err == nil {
		return e.code.String()
	}
	return fmt.Sprintf("%s: %s", e.code, e.err)
}

func (e *codedError) Unwrap() error { return e.err }

func newError(code ErrorCode, format string, args ...interface{}) error {
	return &codedError{code: code, err: fmt.Errorf(format, args...)}
}

func wrapError(code ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// errorCode extracts the latched ErrorCode from err, defaulting to
// ErrInternalError for errors that were never classified.
func errorCode(err error) ErrorCode {
	if err == nil {
		return ErrNone
	}
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return ErrInternalError
}

var errShortIO = errors.New("short read or write")
