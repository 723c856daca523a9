// Package errs defines the error kinds shared by the ingestion pipeline,
// the catalog and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by what the caller can do about it.
type Kind int

const (
	Internal        Kind = iota
	Validation           // missing or malformed input
	UnreadableMedia      // the extractor cannot parse the file
	Transcode            // transcoder failed or produced nothing
	StorageWrite
	StorageRead
	StorageDelete
	Catalog
	Conflict // unique constraint violation
	NotFound
	Unauthorized
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case UnreadableMedia:
		return "unreadable_media"
	case Transcode:
		return "transcode"
	case StorageWrite:
		return "storage_write"
	case StorageRead:
		return "storage_read"
	case StorageDelete:
		return "storage_delete"
	case Catalog:
		return "catalog"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case Unauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is the structured error returned across package boundaries.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "storage.Put"
	Msg  string // user-facing reason
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "" && e.Msg != e.Err.Error():
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error.
func E(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func Validationf(op, format string, args ...any) *Error {
	return E(Validation, op, fmt.Sprintf(format, args...), nil)
}

func NotFoundf(op, format string, args ...any) *Error {
	return E(NotFound, op, fmt.Sprintf(format, args...), nil)
}

// KindOf returns the kind of the outermost *Error in the chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing reason for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "internal server error"
}

// TranscodeError reports an external transcoder failure with its diagnostics.
type TranscodeError struct {
	ExitCode int    // -1 when the process never exited (timeout, start failure)
	Stderr   string // tail of the diagnostic stream
	Reason   string
	Err      error
}

func (e *TranscodeError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("transcode failed (exit status %d): %s", e.ExitCode, e.Reason)
	}
	return fmt.Sprintf("transcode failed: %s", e.Reason)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// NewTranscode wraps a TranscodeError so it classifies as Transcode.
func NewTranscode(op string, te *TranscodeError) *Error {
	return E(Transcode, op, te.Error(), te)
}
