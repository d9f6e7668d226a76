package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ileri/atelier/dbopen"
)

// Code classifies a store failure.
type Code string

const (
	CodePermissionDenied Code = "permission-denied"
	CodeUnavailable      Code = "unavailable"
	CodeInvalidArgument  Code = "invalid-argument"
	CodeUnknown          Code = "unknown"
)

// ErrPermissionDenied matches every *Error with CodePermissionDenied.
var ErrPermissionDenied = errors.New("docstore: permission denied")

// Error is returned by every store operation and delivered to listener
// error callbacks.
type Error struct {
	Op   string
	Path string
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("docstore: %s %s: %s: %v", e.Op, e.Path, e.Code, e.Err)
	}
	return fmt.Sprintf("docstore: %s %s: %s", e.Op, e.Path, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPermissionDenied) match.
func (e *Error) Is(target error) bool {
	return target == ErrPermissionDenied && e.Code == CodePermissionDenied
}

// PermissionDenied reports whether the caller lacked rights for the path.
func (e *Error) PermissionDenied() bool { return e.Code == CodePermissionDenied }

// Temporary reports whether retrying the same operation may succeed.
func (e *Error) Temporary() bool { return e.Code == CodeUnavailable }

func denied(op, path string) error {
	return &Error{Op: op, Path: path, Code: CodePermissionDenied}
}

func invalid(op, path string, err error) error {
	return &Error{Op: op, Path: path, Code: CodeInvalidArgument, Err: err}
}

// wrap attaches a code to a database error.
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	code := CodeUnknown
	if dbopen.IsBusy(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		code = CodeUnavailable
	}
	return &Error{Op: op, Path: path, Code: code, Err: err}
}
